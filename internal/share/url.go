package share

import (
	"net/url"
	"strings"

	"stackaudit/internal/errors"
)

// DemoPath is the path share links point at.
const DemoPath = "/demo"

// BuildURL returns <base>/demo?data=<encoded>.
func BuildURL(base, encoded string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", errors.New(errors.InvalidPayload, "share base URL must be absolute", err)
	}
	u.Path = strings.TrimRight(u.Path, "/") + DemoPath
	u.RawPath = ""
	u.RawQuery = url.Values{"data": {encoded}}.Encode()
	u.Fragment = ""
	return u.String(), nil
}

// ParseURL extracts the encoded graph from a share link.
func ParseURL(link string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return "", errors.New(errors.InvalidPayload, "share link is not a URL", err)
	}
	data := u.Query().Get("data")
	if data == "" {
		return "", errors.Newf(errors.InvalidPayload, "share link has no data parameter")
	}
	return data, nil
}

// EncodeURL encodes a graph straight into a share link.
func EncodeURL(base string, g Graph, opts ...Option) (string, error) {
	encoded, err := Encode(g.Nodes, g.Edges, opts...)
	if err != nil {
		return "", err
	}
	return BuildURL(base, encoded)
}

// DecodeURL decodes the graph carried by a share link.
func DecodeURL(link string, opts ...Option) (Graph, error) {
	data, err := ParseURL(link)
	if err != nil {
		return Graph{}, err
	}
	return Decode(data, opts...)
}
