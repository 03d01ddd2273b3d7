// Package observability provides audit logging and OpenTelemetry tracing.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventIndexStart        AuditEventType = "index.start"
	AuditEventIndexComplete     AuditEventType = "index.complete"
	AuditEventRecommendRequest  AuditEventType = "recommend.request"
	AuditEventRecommendComplete AuditEventType = "recommend.complete"
	AuditEventExecuteAttempt    AuditEventType = "execute.attempt"
	AuditEventExecuteBlocked    AuditEventType = "execute.blocked"
	AuditEventExecuteComplete   AuditEventType = "execute.complete"
)

// AuditEvent represents a single audit log entry, written as one JSON line.
type AuditEvent struct {
	Timestamp   time.Time              `json:"timestamp"`
	EventType   AuditEventType         `json:"event_type"`
	SessionID   string                 `json:"session_id"`
	GraphName   string                 `json:"graph_name,omitempty"`
	Query       string                 `json:"query,omitempty"`
	Success     bool                   `json:"success"`
	Duration    time.Duration          `json:"duration_ms,omitempty"`
	Message     string                 `json:"message,omitempty"`
	Details     map[string]interface{} `json:"details,omitempty"`
	ErrorDetail string                 `json:"error_detail,omitempty"`
}

// AuditLogger handles audit event logging.
type AuditLogger struct {
	mu        sync.Mutex
	writer    io.Writer
	sessionID string
	enabled   bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	SessionID  string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	}
}

// NewAuditLogger creates a new audit logger. Each process run gets its own
// session ID unless one is supplied.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stderr", "":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	sessionID := config.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	return &AuditLogger{
		writer:    writer,
		sessionID: sessionID,
		enabled:   config.Enabled,
	}, nil
}

// SessionID returns the session identifier stamped on every event.
func (l *AuditLogger) SessionID() string { return l.sessionID }

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.SessionID == "" {
		event.SessionID = l.sessionID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogIndexStart logs the beginning of an index operation.
func (l *AuditLogger) LogIndexStart(graphDir, docsDir string) {
	l.Log(&AuditEvent{
		EventType: AuditEventIndexStart,
		Success:   true,
		Message:   "indexing graph repository",
		Details: map[string]interface{}{
			"graph_repo": graphDir,
			"docs_path":  docsDir,
		},
	})
}

// LogIndexComplete logs the outcome of an index operation.
func (l *AuditLogger) LogIndexComplete(indexed, skipped int, duration time.Duration, err error) {
	event := &AuditEvent{
		EventType: AuditEventIndexComplete,
		Success:   err == nil,
		Duration:  duration,
		Message:   fmt.Sprintf("indexed %d graph(s), skipped %d", indexed, skipped),
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	l.Log(event)
}

// LogRecommendRequest logs an incoming recommendation query.
func (l *AuditLogger) LogRecommendRequest(query string, maxResults int) {
	l.Log(&AuditEvent{
		EventType: AuditEventRecommendRequest,
		Query:     query,
		Success:   true,
		Details: map[string]interface{}{
			"max_results": maxResults,
		},
	})
}

// LogRecommendComplete logs how many recommendations a query produced.
func (l *AuditLogger) LogRecommendComplete(query string, results int, duration time.Duration, err error) {
	event := &AuditEvent{
		EventType: AuditEventRecommendComplete,
		Query:     query,
		Success:   err == nil,
		Duration:  duration,
		Message:   fmt.Sprintf("%d recommendation(s)", results),
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	l.Log(event)
}

// LogExecuteAttempt logs that an execution was requested for a graph.
func (l *AuditLogger) LogExecuteAttempt(graphName, sourcePath string) {
	l.Log(&AuditEvent{
		EventType: AuditEventExecuteAttempt,
		GraphName: graphName,
		Success:   true,
		Details: map[string]interface{}{
			"source_path": sourcePath,
		},
	})
}

// LogExecuteBlocked logs an execution stopped by a consent gate.
func (l *AuditLogger) LogExecuteBlocked(graphName, reason string) {
	l.Log(&AuditEvent{
		EventType: AuditEventExecuteBlocked,
		GraphName: graphName,
		Success:   false,
		Message:   reason,
	})
}

// LogExecuteComplete logs the outcome of a graph execution.
func (l *AuditLogger) LogExecuteComplete(graphName string, success bool, duration time.Duration, detail string) {
	l.Log(&AuditEvent{
		EventType:   AuditEventExecuteComplete,
		GraphName:   graphName,
		Success:     success,
		Duration:    duration,
		ErrorDetail: detail,
	})
}
