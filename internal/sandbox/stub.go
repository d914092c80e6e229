package sandbox

import (
	"context"
	"time"
)

// Stub is an in-memory Sandbox double for tests in other packages
// (preflight, pipeline steps) that need to drive logic built around a
// Sandbox without a container runtime. Exported because Sandbox's
// unexported pickup method otherwise makes it unimplementable outside
// this package.
type Stub struct {
	LangValue     string
	CommandResult CommandResult
	CommandErr    error
	Commands      []string
	DestroyCalled bool

	state        State
	createdAt    time.Time
	lastPickedAt time.Time
	prepared     bool
}

// NewStub builds an idle Stub for the given language.
func NewStub(language string) *Stub {
	now := time.Now()
	return &Stub{LangValue: language, state: StateIdle, createdAt: now, lastPickedAt: now}
}

func (s *Stub) PrepareWorkdir(ctx context.Context, files map[string]string) error {
	s.prepared = true
	return nil
}

func (s *Stub) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	s.Commands = append(s.Commands, cmd)
	return s.CommandResult, s.CommandErr
}

func (s *Stub) RunCommands(ctx context.Context, inputs []string, programCommand string, timeout time.Duration) (CommandResult, error) {
	s.Commands = append(s.Commands, programCommand)
	return s.CommandResult, s.CommandErr
}

func (s *Stub) MakeRequest(ctx context.Context, method, path string, body []byte, headers map[string]string, timeout time.Duration) (HTTPResult, error) {
	return HTTPResult{}, ErrNoPortConfigured{}
}

func (s *Stub) Language() string        { return s.LangValue }
func (s *Stub) ID() string              { return "stub" }
func (s *Stub) State() State            { return s.state }
func (s *Stub) CreatedAt() time.Time    { return s.createdAt }
func (s *Stub) LastPickedAt() time.Time { return s.lastPickedAt }
func (s *Stub) WorkdirPrepared() bool   { return s.prepared }

func (s *Stub) pickup() {
	s.state = StateBusy
	s.lastPickedAt = time.Now()
}

func (s *Stub) Destroy(ctx context.Context) error {
	s.DestroyCalled = true
	return nil
}

var _ Sandbox = (*Stub)(nil)
