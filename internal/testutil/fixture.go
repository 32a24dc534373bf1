// Package testutil provides fixture and golden file helpers for tests.
package testutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"stackaudit/internal/graph"
)

// StackFixture is a stack graph stored under testdata/stacks/.
type StackFixture struct {
	Name  string       `json:"-"`
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

// LoadStack loads testdata/stacks/<name>.json, failing the test on error.
func LoadStack(t *testing.T, name string) *StackFixture {
	t.Helper()

	path := filepath.Join(stacksRoot(t), name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Fixture not found: %s: %v", path, err)
	}

	var fx StackFixture
	if err := json.Unmarshal(data, &fx); err != nil {
		t.Fatalf("Failed to parse fixture %s: %v", path, err)
	}
	fx.Name = name
	return &fx
}

// AvailableStacks returns the fixture names under testdata/stacks/, sorted.
func AvailableStacks(t *testing.T) []string {
	t.Helper()

	entries, err := os.ReadDir(stacksRoot(t))
	if err != nil {
		t.Fatalf("Failed to read fixtures directory: %v", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

// ForEachStack runs fn as a subtest for every stack fixture.
func ForEachStack(t *testing.T, fn func(t *testing.T, fx *StackFixture)) {
	t.Helper()

	names := AvailableStacks(t)
	if len(names) == 0 {
		t.Skip("No fixtures available")
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			fn(t, LoadStack(t, name))
		})
	}
}

// stacksRoot returns the absolute path to testdata/stacks/ at the project root.
func stacksRoot(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get caller information")
	}

	// Navigate from internal/testutil to project root
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(thisFile)))
	root := filepath.Join(projectRoot, "testdata", "stacks")

	if _, err := os.Stat(root); os.IsNotExist(err) {
		t.Fatalf("Fixtures root not found: %s", root)
	}
	return root
}
