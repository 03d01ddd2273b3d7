package executor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/DaltonGOO/dyn-advisor/internal/parser"
)

func testRecord(t *testing.T) *parser.GraphRecord {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.dyn")
	if err := os.WriteFile(path, []byte(`{"Name": "TestGraph"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	return &parser.GraphRecord{Name: "TestGraph", SourcePath: path}
}

// fakeCLI writes an executable shell script standing in for the Dynamo CLI.
func fakeCLI(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	path := filepath.Join(t.TempDir(), "dynamocli")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.AllowExecution {
		t.Error("execution must be disabled by default")
	}
	if cfg.Timeout != 5*time.Minute {
		t.Errorf("expected 5m default timeout, got %s", cfg.Timeout)
	}
}

func TestExecute_BlockedWhenDisabled(t *testing.T) {
	exec := New(&Config{AllowExecution: false}, nil)
	res, err := exec.Execute(context.Background(), testRecord(t), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed {
		t.Error("disabled execution must not run")
	}
	if !strings.Contains(res.Message, "disabled") {
		t.Errorf("expected a disabled message, got %q", res.Message)
	}
}

func TestExecute_BlockedWithoutConsent(t *testing.T) {
	cli := fakeCLI(t, "exit 0")
	exec := New(&Config{AllowExecution: true, DynamoCLIPath: cli}, nil)
	res, err := exec.Execute(context.Background(), testRecord(t), false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed {
		t.Error("run without consent must be blocked")
	}
	if !strings.Contains(res.Message, "consent") {
		t.Errorf("expected a consent message, got %q", res.Message)
	}
}

func TestExecute_BlockedWithoutCLIPath(t *testing.T) {
	exec := New(&Config{AllowExecution: true}, nil)
	res, err := exec.Execute(context.Background(), testRecord(t), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed {
		t.Error("run without a configured CLI must be blocked")
	}
}

func TestExecute_BlockedWhenCLIMissing(t *testing.T) {
	exec := New(&Config{AllowExecution: true, DynamoCLIPath: "/nonexistent/dynamocli"}, nil)
	res, err := exec.Execute(context.Background(), testRecord(t), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed {
		t.Error("run with a missing CLI binary must be blocked")
	}
	if !strings.Contains(res.Message, "not found") {
		t.Errorf("expected a not-found message, got %q", res.Message)
	}
}

func TestExecute_BlockedWhenGraphMissing(t *testing.T) {
	cli := fakeCLI(t, "exit 0")
	exec := New(&Config{AllowExecution: true, DynamoCLIPath: cli}, nil)
	rec := &parser.GraphRecord{Name: "Gone", SourcePath: "/nonexistent/gone.dyn"}
	res, err := exec.Execute(context.Background(), rec, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Executed {
		t.Error("run on a missing graph file must be blocked")
	}
}

func TestExecute_Success(t *testing.T) {
	cli := fakeCLI(t, `echo "ran $1"`)
	exec := New(&Config{AllowExecution: true, DynamoCLIPath: cli, Timeout: 10 * time.Second}, nil)
	rec := testRecord(t)
	res, err := exec.Execute(context.Background(), rec, true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Executed || !res.Success {
		t.Fatalf("expected a successful run, got %+v", res)
	}
	if !strings.Contains(res.Output, rec.SourcePath) {
		t.Errorf("expected the graph path on stdout, got %q", res.Output)
	}
}

func TestExecute_NonZeroExit(t *testing.T) {
	cli := fakeCLI(t, "echo oops >&2\nexit 3")
	exec := New(&Config{AllowExecution: true, DynamoCLIPath: cli, Timeout: 10 * time.Second}, nil)
	res, err := exec.Execute(context.Background(), testRecord(t), true)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Executed || res.Success {
		t.Fatalf("expected a failed run, got %+v", res)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Errors, "oops") {
		t.Errorf("expected stderr to be captured, got %q", res.Errors)
	}
}

func TestExecute_Timeout(t *testing.T) {
	cli := fakeCLI(t, "sleep 5")
	exec := New(&Config{AllowExecution: true, DynamoCLIPath: cli, Timeout: 100 * time.Millisecond}, nil)
	res, err := exec.Execute(context.Background(), testRecord(t), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Success {
		t.Error("a timed-out run must not be successful")
	}
	if !strings.Contains(res.Message, "timed out") {
		t.Errorf("expected a timeout message, got %q", res.Message)
	}
}

func TestCanExecute(t *testing.T) {
	cli := fakeCLI(t, "exit 0")
	tests := []struct {
		name string
		cfg  *Config
		want bool
	}{
		{"disabled", &Config{DynamoCLIPath: cli}, false},
		{"no path", &Config{AllowExecution: true}, false},
		{"missing binary", &Config{AllowExecution: true, DynamoCLIPath: "/nonexistent"}, false},
		{"ready", &Config{AllowExecution: true, DynamoCLIPath: cli}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := New(tt.cfg, nil).CanExecute(); got != tt.want {
				t.Errorf("CanExecute() = %v, want %v", got, tt.want)
			}
		})
	}
}
