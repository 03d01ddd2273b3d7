// Package executor runs a selected graph through the external Dynamo CLI
// binary. Execution is never implicit: it requires the configuration switch,
// the caller's explicit consent flag, and a configured, existing binary.
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/DaltonGOO/dyn-advisor/internal/observability"
	"github.com/DaltonGOO/dyn-advisor/internal/parser"
)

// Config holds the execution safety switches and runtime limits.
type Config struct {
	// AllowExecution must be set in configuration before any graph runs.
	AllowExecution bool
	// DynamoCLIPath is the external graph-runner binary.
	DynamoCLIPath string
	// Timeout bounds a single graph run.
	Timeout time.Duration
}

// DefaultConfig returns the safe default: execution disabled.
func DefaultConfig() *Config {
	return &Config{Timeout: 5 * time.Minute}
}

// Result reports one execution request. Executed distinguishes "the binary
// ran" from "a gate blocked the run"; Message is always human-readable.
type Result struct {
	Executed bool          `json:"executed"`
	Success  bool          `json:"success"`
	Message  string        `json:"message"`
	Output   string        `json:"output,omitempty"`
	Errors   string        `json:"errors,omitempty"`
	ExitCode int           `json:"exit_code,omitempty"`
	Duration time.Duration `json:"duration_ms,omitempty"`
}

// Executor shells out to the Dynamo CLI with safety gates applied.
type Executor struct {
	cfg   *Config
	audit *observability.AuditLogger
}

// New creates an executor. A nil config selects DefaultConfig; the audit
// logger may be nil.
func New(cfg *Config, audit *observability.AuditLogger) *Executor {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Executor{cfg: cfg, audit: audit}
}

// CanExecute reports whether the configuration side of the gates would let a
// run proceed. It does not consume consent.
func (e *Executor) CanExecute() bool {
	if !e.cfg.AllowExecution || e.cfg.DynamoCLIPath == "" {
		return false
	}
	_, err := os.Stat(e.cfg.DynamoCLIPath)
	return err == nil
}

// Execute runs the record's source file through the Dynamo CLI. Every gate is
// checked in order; a blocked run returns a Result with Executed=false and a
// nil error. Only marshaling-level failures return an error.
func (e *Executor) Execute(ctx context.Context, rec *parser.GraphRecord, consented bool) (*Result, error) {
	e.audit.LogExecuteAttempt(rec.Name, rec.SourcePath)

	if !e.cfg.AllowExecution {
		msg := "execution is disabled; set execution.allow (ALLOW_EXECUTION) to enable"
		e.audit.LogExecuteBlocked(rec.Name, msg)
		return &Result{Message: msg}, nil
	}
	if !consented {
		msg := "execution requires explicit consent; pass --run to execute"
		e.audit.LogExecuteBlocked(rec.Name, msg)
		return &Result{Message: msg}, nil
	}
	if e.cfg.DynamoCLIPath == "" {
		msg := "execution is not configured; set execution.dynamo_cli_path (DYNAMO_CLI_PATH)"
		e.audit.LogExecuteBlocked(rec.Name, msg)
		return &Result{Message: msg}, nil
	}
	if _, err := os.Stat(e.cfg.DynamoCLIPath); err != nil {
		msg := fmt.Sprintf("Dynamo CLI not found at %s", e.cfg.DynamoCLIPath)
		e.audit.LogExecuteBlocked(rec.Name, msg)
		return &Result{Message: msg}, nil
	}
	if _, err := os.Stat(rec.SourcePath); err != nil {
		msg := fmt.Sprintf("graph file not found: %s", rec.SourcePath)
		e.audit.LogExecuteBlocked(rec.Name, msg)
		return &Result{Message: msg}, nil
	}

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.cfg.DynamoCLIPath, rec.SourcePath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &Result{
		Executed: true,
		Output:   stdout.String(),
		Errors:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case ctx.Err() == context.DeadlineExceeded:
		res.Message = fmt.Sprintf("graph %q execution timed out after %s", rec.Name, timeout)
	case err == nil:
		res.Success = true
		res.Message = fmt.Sprintf("graph %q executed successfully", rec.Name)
	default:
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
			res.Message = fmt.Sprintf("graph %q execution failed with code %d", rec.Name, res.ExitCode)
		} else {
			res.Message = fmt.Sprintf("graph %q execution error: %v", rec.Name, err)
		}
	}

	e.audit.LogExecuteComplete(rec.Name, res.Success, res.Duration, res.Errors)
	return res, nil
}
