// Package pipeline implements the staged grading executor: an ordered
// list of steps run against one submission, with early-exit on the
// first failure and a structured log of every step's outcome.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"autograder/internal/grading/focus"
	"autograder/internal/grading/model"
	"autograder/internal/sandbox"
)

// StepName identifies one of the fixed pipeline stages.
type StepName string

const (
	StepBootstrap    StepName = "BOOTSTRAP"
	StepPreFlight    StepName = "PRE_FLIGHT"
	StepLoadTemplate StepName = "LOAD_TEMPLATE"
	StepBuildTree    StepName = "BUILD_TREE"
	StepGrade        StepName = "GRADE"
	StepFeedback     StepName = "FEEDBACK"
	StepFocus        StepName = "FOCUS"
	StepExport       StepName = "EXPORT"
)

// StepStatus is one step's individual outcome.
type StepStatus string

const (
	StatusSuccess StepStatus = "success"
	StatusFail    StepStatus = "fail"
)

// StepResult is one entry in an Execution's append-only log.
type StepResult struct {
	Step    StepName
	Status  StepStatus
	Data    interface{}
	Error   string
	Elapsed time.Duration
}

// ExecutionStatus is the overall state of a pipeline run.
type ExecutionStatus string

const (
	ExecutionEmpty       ExecutionStatus = "empty"
	ExecutionRunning     ExecutionStatus = "running"
	ExecutionSuccess     ExecutionStatus = "success"
	ExecutionFailed      ExecutionStatus = "failed"
	ExecutionInterrupted ExecutionStatus = "interrupted"
)

// Execution is the append-only log of step outcomes for one submission,
// plus whatever sandbox was bound to it by PRE_FLIGHT.
type Execution struct {
	Submission   *model.Submission
	Steps        []StepResult
	Status       ExecutionStatus
	FailedAtStep StepName

	Sandbox sandbox.Sandbox
	release func(context.Context)
}

// NewExecution starts a fresh, empty execution for sub.
func NewExecution(sub *model.Submission) *Execution {
	return &Execution{Submission: sub, Status: ExecutionEmpty}
}

func (e *Execution) add(r StepResult) {
	e.Steps = append(e.Steps, r)
	if r.Status == StatusFail {
		e.Status = ExecutionFailed
		e.FailedAtStep = r.Step
	}
}

// Get returns the most recent StepResult recorded under name.
func (e *Execution) Get(name StepName) (StepResult, bool) {
	for i := len(e.Steps) - 1; i >= 0; i-- {
		if e.Steps[i].Step == name {
			return e.Steps[i], true
		}
	}
	return StepResult{}, false
}

// IsSuccessful reports whether no step has failed yet.
func (e *Execution) IsSuccessful() bool {
	return e.Status != ExecutionFailed
}

// BindSandbox attaches a sandbox acquired by a step (PRE_FLIGHT) to the
// execution so later steps can use it, and registers how to release it
// on pipeline exit. Only the first bound sandbox is kept.
func (e *Execution) BindSandbox(box sandbox.Sandbox, release func(context.Context)) {
	if e.Sandbox != nil {
		return
	}
	e.Sandbox = box
	e.release = release
}

// ReleaseSandbox runs the bound release hook, if any, exactly once.
func (e *Execution) ReleaseSandbox(ctx context.Context) {
	if e.release == nil {
		return
	}
	release := e.release
	e.release = nil
	release(ctx)
}

// Step is one morphism Execution -> (data, error). Steps read prior
// step outputs from exec via Get, and return either the data to record
// as this step's output or an error to record as a failure.
type Step interface {
	Name() StepName
	Execute(ctx context.Context, exec *Execution) (interface{}, error)
}

// Pipeline is an ordered list of steps run against one submission at a
// time. It owns no background work; it is driven entirely by its
// caller's Run call.
type Pipeline struct {
	steps []Step
}

// New builds a Pipeline executing steps in the given order.
func New(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Len returns the number of configured steps.
func (p *Pipeline) Len() int {
	return len(p.steps)
}

// Run drives sub through every configured step in order, short-
// circuiting on the first failure. The sandbox bound by any step
// (normally PRE_FLIGHT) is always released before Run returns,
// regardless of outcome.
func (p *Pipeline) Run(ctx context.Context, sub *model.Submission) *Execution {
	exec := NewExecution(sub)
	defer exec.ReleaseSandbox(ctx)

	exec.Status = ExecutionRunning
	exec.add(StepResult{Step: StepBootstrap, Status: StatusSuccess, Data: sub})

	for _, step := range p.steps {
		if !exec.IsSuccessful() {
			break
		}

		start := time.Now()
		data, err := runStep(ctx, step, exec)
		elapsed := time.Since(start)

		if err != nil {
			exec.add(StepResult{Step: step.Name(), Status: StatusFail, Error: err.Error(), Elapsed: elapsed})
			continue
		}
		exec.add(StepResult{Step: step.Name(), Status: StatusSuccess, Data: data, Elapsed: elapsed})
	}

	if exec.Status == ExecutionRunning {
		exec.Status = ExecutionSuccess
	}
	return exec
}

// runStep executes step, converting any panic into an error so a single
// misbehaving step can never take down the executor.
func runStep(ctx context.Context, step Step, exec *Execution) (data interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &model.InternalError{Step: string(step.Name()), Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	return step.Execute(ctx, exec)
}

// GradingResult is the synthesized outcome read off a finished
// Execution: on success, the GRADE/FEEDBACK/FOCUS step outputs; on
// failure, the failed step identity and its error text.
type GradingResult struct {
	Status       string            `json:"status"`
	FinalScore   float64           `json:"final_score"`
	ResultTree   *model.ResultTree `json:"result,omitempty"`
	Feedback     string            `json:"feedback,omitempty"`
	Focus        *focus.Focus      `json:"focus,omitempty"`
	Error        string            `json:"error,omitempty"`
	FailedAtStep StepName          `json:"failed_at_step,omitempty"`
}

// Synthesize reads exec's recorded step outputs into a GradingResult.
func Synthesize(exec *Execution) GradingResult {
	if !exec.IsSuccessful() {
		errText := ""
		if r, ok := exec.Get(exec.FailedAtStep); ok {
			errText = r.Error
		}
		return GradingResult{Status: "error", Error: errText, FailedAtStep: exec.FailedAtStep}
	}

	result := GradingResult{Status: "success"}
	if r, ok := exec.Get(StepGrade); ok {
		if tree, ok := r.Data.(*model.ResultTree); ok {
			result.ResultTree = tree
			result.FinalScore = tree.FinalScore
		}
	}
	if r, ok := exec.Get(StepFeedback); ok {
		if text, ok := r.Data.(string); ok {
			result.Feedback = text
		}
	}
	if r, ok := exec.Get(StepFocus); ok {
		if f, ok := r.Data.(*focus.Focus); ok {
			result.Focus = f
		}
	}
	return result
}
