// Package stackfile reads and writes the local state blob holding a stack
// graph between sessions. JSON and TOML are both accepted; the format is
// chosen by file extension.
package stackfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"stackaudit/internal/graph"
)

// CurrentVersion is written into every saved state.
const CurrentVersion = "1.0.0"

// supported accepts any 1.x state.
var supported = mustConstraint(">=1.0.0, <2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ErrUnsupportedVersion is returned for states written by an incompatible build.
var ErrUnsupportedVersion = errors.New("unsupported stack file version")

// ErrUnknownFormat is returned for paths that are neither .json nor .toml.
var ErrUnknownFormat = errors.New("unknown stack file format")

// State is the persisted graph.
type State struct {
	Version string       `json:"version" toml:"version"`
	Nodes   []graph.Node `json:"nodes" toml:"nodes"`
	Edges   []graph.Edge `json:"edges" toml:"edges"`
	SavedAt time.Time    `json:"savedAt" toml:"savedAt"`
}

// Format is an on-disk encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the encoding from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", errors.Wrapf(ErrUnknownFormat, "%s", path)
	}
}

// New returns a state for the given graph stamped with the current version.
func New(nodes []graph.Node, edges []graph.Edge, now time.Time) State {
	if nodes == nil {
		nodes = []graph.Node{}
	}
	if edges == nil {
		edges = []graph.Edge{}
	}
	return State{Version: CurrentVersion, Nodes: nodes, Edges: edges, SavedAt: now.UTC()}
}

// Load reads and validates a state file.
func Load(path string) (State, error) {
	format, err := FormatOf(path)
	if err != nil {
		return State{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, errors.Wrapf(err, "read stack file %s", path)
	}
	st, err := Decode(data, format)
	if err != nil {
		return State{}, errors.Wrapf(err, "load %s", path)
	}
	return st, nil
}

// Decode parses and validates state bytes.
func Decode(data []byte, format Format) (State, error) {
	var st State
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&st); err != nil {
			return State{}, errors.Wrap(err, "parse JSON")
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&st); err != nil {
			return State{}, errors.Wrap(err, "parse TOML")
		}
	default:
		return State{}, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
	if err := st.Validate(); err != nil {
		return State{}, err
	}
	if st.Nodes == nil {
		st.Nodes = []graph.Node{}
	}
	if st.Edges == nil {
		st.Edges = []graph.Edge{}
	}
	return st, nil
}

// Encode serializes a state.
func Encode(st State, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "marshal JSON")
		}
		return append(data, '\n'), nil
	case FormatTOML:
		data, err := toml.Marshal(st)
		if err != nil {
			return nil, errors.Wrap(err, "marshal TOML")
		}
		return data, nil
	default:
		return nil, errors.Wrapf(ErrUnknownFormat, "%q", format)
	}
}

// Save validates st and writes it atomically.
func Save(path string, st State) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	if st.Version == "" {
		st.Version = CurrentVersion
	}
	if err := st.Validate(); err != nil {
		return err
	}
	data, err := Encode(st, format)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create %s", dir)
		}
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.Wrapf(err, "write %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.Wrapf(err, "rename %s", tmpPath)
	}
	return nil
}

// Validate checks the version range and graph shape.
func (st State) Validate() error {
	if st.Version == "" {
		return errors.New("stack file has no version")
	}
	v, err := semver.NewVersion(st.Version)
	if err != nil {
		return errors.Wrapf(err, "stack file version %q", st.Version)
	}
	if !supported.Check(v) {
		return errors.Wrapf(ErrUnsupportedVersion, "%s (supported %s)", st.Version, supported)
	}

	ids := make(map[string]bool, len(st.Nodes))
	for i, n := range st.Nodes {
		switch {
		case n.ID == "":
			return errors.Errorf("nodes[%d]: id is empty", i)
		case ids[n.ID]:
			return errors.Errorf("nodes[%d]: duplicate id %q", i, n.ID)
		}
		ids[n.ID] = true
	}

	edgeIDs := make(map[string]bool, len(st.Edges))
	pairs := make(map[string]string, len(st.Edges))
	for i, e := range st.Edges {
		where := fmt.Sprintf("edges[%d]", i)
		pair := graph.PairKey(e.Source, e.Target)
		switch {
		case e.ID == "":
			return errors.Errorf("%s: id is empty", where)
		case edgeIDs[e.ID]:
			return errors.Errorf("%s: duplicate id %q", where, e.ID)
		case !ids[e.Source]:
			return errors.Errorf("%s: unknown source %q", where, e.Source)
		case !ids[e.Target]:
			return errors.Errorf("%s: unknown target %q", where, e.Target)
		case e.Source == e.Target:
			return errors.Errorf("%s: self loop on %q", where, e.Source)
		case pairs[pair] != "":
			return errors.Errorf("%s: %q and %q already connected by %q", where, e.Source, e.Target, pairs[pair])
		}
		edgeIDs[e.ID] = true
		pairs[pair] = e.ID
	}
	return nil
}
