package share

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stackaudit/internal/errors"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"https://stackaudit.dev", "https://stackaudit.dev/demo?data=abc-_1"},
		{"https://stackaudit.dev/", "https://stackaudit.dev/demo?data=abc-_1"},
		{"https://example.com/app/", "https://example.com/app/demo?data=abc-_1"},
	}
	for _, tt := range tests {
		got, err := BuildURL(tt.base, "abc-_1")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	_, err := BuildURL("not a url", "x")
	assert.Equal(t, errors.InvalidPayload, errors.CodeOf(err))
}

func TestParseURL(t *testing.T) {
	data, err := ParseURL("https://stackaudit.dev/demo?data=abc-_1&utm=x")
	require.NoError(t, err)
	assert.Equal(t, "abc-_1", data)

	_, err = ParseURL("https://stackaudit.dev/demo")
	assert.Equal(t, errors.InvalidPayload, errors.CodeOf(err))
}

func TestURLRoundTrip(t *testing.T) {
	nodes, edges := sampleGraph()
	link, err := EncodeURL("https://stackaudit.dev", Graph{Nodes: nodes, Edges: edges})
	require.NoError(t, err)
	assert.Contains(t, link, "/demo?data=")

	got, err := DecodeURL(link)
	require.NoError(t, err)
	assert.Equal(t, Canonicalize(nodes, edges), got)
}
