package share

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"stackaudit/internal/errors"
)

// supportedVersions is the payload version range this build decodes.
var supportedVersions = mustConstraint("1.x")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

func invalid(path, msg string) error {
	return errors.Newf(errors.InvalidPayload, "invalid payload at %s: %s", path, msg).
		WithDetails(map[string]string{"path": path, "reason": msg})
}

// validatePayload checks the decoded JSON shape field by field so every
// violation names its path.
func validatePayload(raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return errors.New(errors.InvalidPayload, "payload is not JSON", err)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return invalid("$", "must be an object")
	}

	if err := checkVersion(root["v"]); err != nil {
		return err
	}

	nodes, ok := root["n"].([]any)
	if !ok {
		return invalid("n", "must be an array")
	}
	edges, ok := root["e"].([]any)
	if !ok {
		return invalid("e", "must be an array")
	}
	if err := checkCounts(len(nodes), len(edges)); err != nil {
		return err
	}

	for i, n := range nodes {
		if err := checkNode(fmt.Sprintf("n[%d]", i), n); err != nil {
			return err
		}
	}
	for i, e := range edges {
		if err := checkEdge(fmt.Sprintf("e[%d]", i), e); err != nil {
			return err
		}
	}
	return nil
}

func checkVersion(v any) error {
	if v == nil {
		return invalid("v", "version tag is required")
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 0 {
		return invalid("v", "must be a non-negative integer")
	}
	ver, err := semver.NewVersion(strconv.FormatInt(int64(f), 10))
	if err != nil {
		return invalid("v", err.Error())
	}
	if !supportedVersions.Check(ver) {
		return errors.Newf(errors.UnsupportedVersion, "unsupported payload version %d", int64(f)).
			WithDetails(map[string]any{"version": int64(f), "supported": supportedVersions.String()})
	}
	return nil
}

func checkNode(path string, v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return invalid(path, "node must be an object")
	}
	if err := requireString(path, obj, "id"); err != nil {
		return err
	}
	if err := requireString(path, obj, "type"); err != nil {
		return err
	}

	pos, ok := obj["position"].(map[string]any)
	if !ok {
		return invalid(path+".position", "must be an object")
	}
	for _, axis := range []string{"x", "y"} {
		if _, ok := pos[axis].(float64); !ok {
			return invalid(path+".position."+axis, "must be a number")
		}
	}

	data, ok := obj["data"].(map[string]any)
	if !ok {
		return invalid(path+".data", "must be an object")
	}
	if err := requireString(path+".data", data, "category"); err != nil {
		return err
	}
	for _, key := range []string{"toolId", "notes"} {
		if val, present := data[key]; present {
			if _, ok := val.(string); !ok {
				return invalid(path+".data."+key, "must be a string")
			}
		}
	}
	return nil
}

func checkEdge(path string, v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return invalid(path, "edge must be an object")
	}
	for _, key := range []string{"id", "source", "target"} {
		if err := requireString(path, obj, key); err != nil {
			return err
		}
	}
	return nil
}

func requireString(path string, obj map[string]any, key string) error {
	if _, ok := obj[key].(string); !ok {
		return invalid(path+"."+key, "must be a string")
	}
	return nil
}
