package version

import (
	"runtime"
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
)

// withBuild swaps the ldflags variables for the duration of a test.
func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	v, c, d := Version, Commit, BuildDate
	t.Cleanup(func() { Version, Commit, BuildDate = v, c, d })
	Version, Commit, BuildDate = version, commit, date
}

func TestInfo_ShortensCommit(t *testing.T) {
	for commit, want := range map[string]string{
		"unknown":        "0.9.1",
		"1234567":        "0.9.1",
		"9f8e7d6c5b4a39": "0.9.1 (9f8e7d6)",
	} {
		withBuild(t, "0.9.1", commit, "unknown")
		if got := Info(); got != want {
			t.Errorf("Info() with commit %q = %q, want %q", commit, got, want)
		}
	}
}

func TestFull_Lines(t *testing.T) {
	withBuild(t, "1.2.3", "9f8e7d6c5b4a39", "2026-03-01T10:00:00Z")

	lines := strings.Split(Full(), "\n")
	if len(lines) != 4 {
		t.Fatalf("Full() has %d lines, want 4:\n%s", len(lines), Full())
	}
	want := []string{
		"stackaudit version 1.2.3",
		"Commit: 9f8e7d6c5b4a39",
		"Built: 2026-03-01T10:00:00Z",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d = %q, want %q", i, lines[i], w)
		}
	}
}

func TestFull_GoToolchain(t *testing.T) {
	last := strings.Split(Full(), "\n")[3]
	got := strings.TrimPrefix(last, "Go: ")
	if got == last {
		t.Fatalf("last line = %q, want a Go: prefix", last)
	}
	// Test binaries carry build info, so the toolchain is reported.
	if !strings.HasPrefix(got, "go1.") || !strings.HasPrefix(runtime.Version(), "go") {
		t.Errorf("Go version = %q, want the running toolchain %q", got, runtime.Version())
	}
}

func TestVersionIsSemver(t *testing.T) {
	if _, err := semver.StrictNewVersion(Version); err != nil {
		t.Errorf("Version %q is not semver: %v", Version, err)
	}
}
