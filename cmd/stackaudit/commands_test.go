package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"stackaudit/internal/errors"
	"stackaudit/internal/graph"
	"stackaudit/internal/stackfile"
)

// resetFlags restores every flag to its default so commands do not leak
// state between tests.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// writeStack saves a stack file into dir and returns its path.
func writeStack(t *testing.T, dir, name string, nodes []graph.Node, edges []graph.Edge) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := stackfile.Save(path, stackfile.New(nodes, edges, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("stackfile.Save() error = %v", err)
	}
	return path
}

func sqliteVercelStack(t *testing.T, dir, name string) string {
	return writeStack(t, dir, name,
		[]graph.Node{
			{ID: "db", Type: "stack", Data: graph.NodeData{Category: "Database", ToolID: "sqlite"}},
			{ID: "host", Type: "stack", Position: graph.Position{X: 240}, Data: graph.NodeData{Category: "Hosting", ToolID: "vercel"}},
		},
		[]graph.Edge{{ID: "e1", Source: "db", Target: "host"}},
	)
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"score", "report", "share", "evidence", "tools", "save", "load", "list", "delete", "version"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("expected %q command to be registered", name)
		}
	}
}

func TestScoreCommand(t *testing.T) {
	dir := t.TempDir()
	path := sqliteVercelStack(t, dir, "stack.json")

	out, err := executeCommand(t, "--root", dir, "score", path, "--format", "json")
	if err != nil {
		t.Fatalf("score error = %v", err)
	}

	var resp ScoreResponseCLI
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("score output is not JSON: %v\n%s", err, out)
	}
	if resp.GlobalScore != 49 {
		t.Errorf("GlobalScore = %d, want 49", resp.GlobalScore)
	}
	if resp.Components != 1 {
		t.Errorf("Components = %d, want 1", resp.Components)
	}
	if len(resp.Edges) != 1 || resp.Edges[0].Status != "COLLISION" {
		t.Errorf("Edges = %+v, want one COLLISION", resp.Edges)
	}

	out, err = executeCommand(t, "--root", dir, "score", path)
	if err != nil {
		t.Fatalf("score (human) error = %v", err)
	}
	if !strings.Contains(out, "Global score: 49") {
		t.Errorf("human output missing global score:\n%s", out)
	}
}

func TestScoreCommand_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := executeCommand(t, "--root", dir, "score", filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected error for missing stack file")
	}
	if _, err := executeCommand(t, "--root", dir, "score"); err == nil {
		t.Error("expected error for missing argument")
	}

	path := sqliteVercelStack(t, dir, "stack.toml")
	_, err := executeCommand(t, "--root", dir, "score", path, "--format", "xml")
	if err == nil || !strings.Contains(err.Error(), "unsupported format") {
		t.Errorf("score --format xml error = %v", err)
	}
}

func TestReportCommand_Formats(t *testing.T) {
	dir := t.TempDir()
	path := sqliteVercelStack(t, dir, "stack.json")
	at := "2025-01-01T00:00:00Z"

	tests := []struct {
		format string
		want   []string
	}{
		{"markdown", []string{"# Stack Audit Report", "## Recommended Swaps", "collision:sqlite+vercel"}},
		{"html", []string{"<!DOCTYPE html>", "<h1>Stack Audit Report</h1>", "<table>"}},
		{"json", []string{`"globalScore": 49`, `"generatedAt": "2025-01-01T00:00:00Z"`, `"risk-sqlite-serverless-fs"`}},
		{"manifest", []string{`"tools"`, `"install"`}},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := executeCommand(t, "--root", dir, "report", path, "--format", tt.format, "--at", at)
			if err != nil {
				t.Fatalf("report error = %v", err)
			}
			for _, part := range tt.want {
				if !strings.Contains(out, part) {
					t.Errorf("report --format %s missing %q", tt.format, part)
				}
			}
		})
	}
}

func TestReportCommand_DeterministicAndFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := sqliteVercelStack(t, dir, "stack.json")
	outPath := filepath.Join(dir, "report.md")

	first, err := executeCommand(t, "--root", dir, "report", path, "--at", "2025-01-01T00:00:00Z")
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	if _, err := executeCommand(t, "--root", dir, "report", path, "--at", "2025-01-01T00:00:00Z", "--out", outPath); err != nil {
		t.Fatalf("report --out error = %v", err)
	}
	second, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("reading report file: %v", err)
	}
	if first != string(second) {
		t.Errorf("report output differs between runs:\n--- stdout\n%s\n--- file\n%s", first, second)
	}
}

func TestReportCommand_BadInput(t *testing.T) {
	dir := t.TempDir()
	path := sqliteVercelStack(t, dir, "stack.json")

	if _, err := executeCommand(t, "--root", dir, "report", path, "--at", "yesterday"); err == nil {
		t.Error("expected error for invalid --at")
	}
	if _, err := executeCommand(t, "--root", dir, "report", path, "--format", "pdf"); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestShareCommands_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := sqliteVercelStack(t, dir, "stack.json")

	encoded, err := executeCommand(t, "--root", dir, "share", "encode", path)
	if err != nil {
		t.Fatalf("share encode error = %v", err)
	}
	encoded = strings.TrimSpace(encoded)
	if encoded == "" || strings.ContainsAny(encoded, "+/=") {
		t.Fatalf("encoded = %q, want non-empty base64url", encoded)
	}

	link, err := executeCommand(t, "--root", dir, "share", "encode", path, "--url")
	if err != nil {
		t.Fatalf("share encode --url error = %v", err)
	}
	if strings.TrimSpace(link) != "https://stackaudit.dev/demo?data="+encoded {
		t.Errorf("link = %q", link)
	}

	outPath := filepath.Join(dir, "decoded.toml")
	if _, err := executeCommand(t, "--root", dir, "share", "decode", strings.TrimSpace(link), "--out", outPath); err != nil {
		t.Fatalf("share decode error = %v", err)
	}
	st, err := stackfile.Load(outPath)
	if err != nil {
		t.Fatalf("loading decoded stack: %v", err)
	}
	if len(st.Nodes) != 2 || st.Nodes[0].ID != "db" || st.Nodes[1].Data.ToolID != "vercel" {
		t.Errorf("decoded nodes = %+v", st.Nodes)
	}
	if len(st.Edges) != 1 || st.Edges[0].ID != "e1" {
		t.Errorf("decoded edges = %+v", st.Edges)
	}

	out, err := executeCommand(t, "--root", dir, "share", "decode", encoded)
	if err != nil {
		t.Fatalf("share decode (stdout) error = %v", err)
	}
	if !strings.Contains(out, `"toolId": "sqlite"`) {
		t.Errorf("decode output missing sqlite:\n%s", out)
	}
}

func TestShareCommands_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := executeCommand(t, "--root", dir, "share", "decode", "!!corrupt!!")
	if errors.CodeOf(err) != errors.DecompressFailed {
		t.Errorf("decode corrupt: CodeOf = %s, want %s", errors.CodeOf(err), errors.DecompressFailed)
	}

	path := writeStack(t, dir, "unknown.json",
		[]graph.Node{{ID: "cms", Type: "stack", Data: graph.NodeData{Category: "CMS", ToolID: "strapi"}}}, nil)

	if _, err := executeCommand(t, "--root", dir, "share", "encode", path); err != nil {
		t.Errorf("encode without --strict error = %v", err)
	}
	_, err = executeCommand(t, "--root", dir, "share", "encode", path, "--strict")
	if errors.CodeOf(err) != errors.UnknownTool {
		t.Errorf("encode --strict: CodeOf = %s, want %s", errors.CodeOf(err), errors.UnknownTool)
	}
}

func TestEvidenceLint(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "--root", dir, "evidence", "lint")
	if err != nil {
		t.Fatalf("lint of built-in packs error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "All packs valid.") {
		t.Errorf("lint output:\n%s", out)
	}

	packDir := filepath.Join(dir, "packs")
	if err := os.MkdirAll(packDir, 0755); err != nil {
		t.Fatal(err)
	}
	bad := "ruleId: risk-broken\nkind: risk\nclaim: \"\"\n"
	if err := os.WriteFile(filepath.Join(packDir, "bad.yaml"), []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}

	out, err = executeCommand(t, "--root", dir, "evidence", "lint", "--dir", "packs")
	if errors.CodeOf(err) != errors.PackInvalid {
		t.Errorf("lint bad pack: CodeOf = %s, want %s", errors.CodeOf(err), errors.PackInvalid)
	}
	if !strings.Contains(out, "missing claim") {
		t.Errorf("lint output should name the problem:\n%s", out)
	}
}

func TestToolsCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCommand(t, "--root", dir, "tools", "--category", "Database")
	if err != nil {
		t.Fatalf("tools error = %v", err)
	}
	if !strings.Contains(out, "postgres") || strings.Contains(out, "vercel") {
		t.Errorf("tools --category Database output:\n%s", out)
	}

	out, err = executeCommand(t, "--root", dir, "tools", "--format", "json")
	if err != nil {
		t.Fatalf("tools --format json error = %v", err)
	}
	var resp struct {
		Tools []struct {
			ID string `json:"id"`
		} `json:"tools"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("tools output is not JSON: %v", err)
	}
	if len(resp.Tools) == 0 {
		t.Error("tools --format json returned no tools")
	}
}

func TestStackCommands(t *testing.T) {
	dir := t.TempDir()
	path := sqliteVercelStack(t, dir, "stack.json")

	out, err := executeCommand(t, "--root", dir, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "No saved stacks.") {
		t.Errorf("initial list = %q", out)
	}

	if _, err := executeCommand(t, "--root", dir, "save", "demo", path); err != nil {
		t.Fatalf("save error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".stackaudit", "stacks.db")); err != nil {
		t.Errorf("stack database not created: %v", err)
	}

	out, err = executeCommand(t, "--root", dir, "list", "--format", "json")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, `"name": "demo"`) || !strings.Contains(out, `"nodeCount": 2`) {
		t.Errorf("list output:\n%s", out)
	}

	outPath := filepath.Join(dir, "restored.toml")
	if _, err := executeCommand(t, "--root", dir, "load", "demo", "--out", outPath); err != nil {
		t.Fatalf("load error = %v", err)
	}
	if st, err := stackfile.Load(outPath); err != nil || len(st.Nodes) != 2 {
		t.Errorf("restored stack = %+v, err = %v", st, err)
	}

	if _, err := executeCommand(t, "--root", dir, "delete", "demo"); err != nil {
		t.Fatalf("delete error = %v", err)
	}
	_, err = executeCommand(t, "--root", dir, "load", "demo")
	if errors.CodeOf(err) != errors.StackNotFound {
		t.Errorf("load after delete: CodeOf = %s, want %s", errors.CodeOf(err), errors.StackNotFound)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "--root", t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, "stackaudit version") {
		t.Errorf("version output = %q", out)
	}
}

func TestInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, ".stackaudit")
	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		t.Fatal(err)
	}
	data := `{"version": 1, "evidence": {"loadPolicy": "sometimes"}}`
	if err := os.WriteFile(filepath.Join(cfgDir, "config.json"), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(t, "--root", dir, "tools")
	if err == nil || !strings.Contains(err.Error(), "evidence.loadPolicy") {
		t.Errorf("tools with invalid config error = %v", err)
	}
}
