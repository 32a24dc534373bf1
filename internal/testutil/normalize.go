package testutil

import (
	"encoding/json"
	"reflect"
	"testing"
)

// volatileFields are dropped before golden comparison.
var volatileFields = map[string]bool{
	"generatedAt": true,
	"savedAt":     true,
	"timestamp":   true,
	"duration":    true,
}

// NormalizeJSON deep-copies data through JSON and strips volatile fields at
// every depth.
func NormalizeJSON(t *testing.T, data any) any {
	t.Helper()

	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to marshal data for normalization: %v", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("Failed to unmarshal data for normalization: %v", err)
	}
	return normalizeValue(v)
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			if volatileFields[k] {
				continue
			}
			out[k] = normalizeValue(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalizeValue(child)
		}
		return out
	default:
		return v
	}
}

// MarshalNormalized returns indented, normalized JSON with a trailing newline.
func MarshalNormalized(t *testing.T, data any) []byte {
	t.Helper()

	out, err := json.MarshalIndent(NormalizeJSON(t, data), "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal normalized data: %v", err)
	}
	return append(out, '\n')
}

// DeepEqual compares two values after normalization.
func DeepEqual(t *testing.T, a, b any) bool {
	t.Helper()
	return reflect.DeepEqual(NormalizeJSON(t, a), NormalizeJSON(t, b))
}
