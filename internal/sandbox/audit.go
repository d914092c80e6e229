package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"autograder/internal/logging"
)

// AuditEntry is one JSON-lines record of a sandboxed command execution.
// Kept as an optional, off-by-default concern: an execution audit trail
// is a sandboxing property in its own right, distinct from metrics
// emission.
type AuditEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SandboxID string    `json:"sandbox_id"`
	Language  string    `json:"language"`
	Command   string    `json:"command"`
	ExitCode  int       `json:"exit_code"`
	Category  Category  `json:"category"`
	Elapsed   int64     `json:"elapsed_ms"`
}

// AuditLogger appends AuditEntry records to a JSON-lines file. Safe for
// concurrent use across sandboxes.
type AuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

// NewAuditLogger opens (creating if needed) the audit log at path.
func NewAuditLogger(path string) (*AuditLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("sandbox: open audit log %s: %w", path, err)
	}
	return &AuditLogger{file: f}, nil
}

// Record appends one entry. Errors are returned so a caller may decide
// whether a broken audit log should be fatal; RunCommand itself only
// logs a warning and keeps going, since command execution must never
// fail because auditing did.
func (a *AuditLogger) Record(entry AuditEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = a.file.Write(data)
	return err
}

func (a *AuditLogger) Close() error {
	return a.file.Close()
}

// auditingSandbox wraps a Sandbox to log every RunCommand/RunCommands
// call to an AuditLogger, without the container implementation needing
// to know auditing exists.
type auditingSandbox struct {
	Sandbox
	logger *AuditLogger
}

// WithAudit wraps box so every command it runs is recorded to logger.
// A nil logger makes this a no-op passthrough.
func WithAudit(box Sandbox, logger *AuditLogger) Sandbox {
	if logger == nil {
		return box
	}
	return &auditingSandbox{Sandbox: box, logger: logger}
}

func (a *auditingSandbox) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	res, err := a.Sandbox.RunCommand(ctx, cmd, timeout)
	a.record(cmd, res)
	return res, err
}

func (a *auditingSandbox) RunCommands(ctx context.Context, inputs []string, programCommand string, timeout time.Duration) (CommandResult, error) {
	res, err := a.Sandbox.RunCommands(ctx, inputs, programCommand, timeout)
	a.record(programCommand, res)
	return res, err
}

func (a *auditingSandbox) record(cmd string, res CommandResult) {
	entry := AuditEntry{
		Timestamp: time.Now(),
		SandboxID: a.Sandbox.ID(),
		Language:  a.Sandbox.Language(),
		Command:   cmd,
		ExitCode:  res.ExitCode,
		Category:  res.Category,
		Elapsed:   res.Elapsed.Milliseconds(),
	}
	if err := a.logger.Record(entry); err != nil {
		logging.S().Warnw("audit log write failed", "sandbox", a.Sandbox.ID(), "error", err)
	}
}
