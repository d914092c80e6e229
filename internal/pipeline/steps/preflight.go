// Package steps implements the concrete Step for each stage named in
// the pipeline: preflight, template loading, tree building, grading,
// feedback, focus ranking, and export.
package steps

import (
	"context"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
	"autograder/internal/preflight"
	"autograder/internal/sandbox"
)

// SandboxAcquirer is the narrow facade PreFlightStep needs from the
// sandbox manager: acquire/release by language.
type SandboxAcquirer interface {
	GetSandbox(language string) (sandbox.Sandbox, error)
	ReleaseSandbox(ctx context.Context, language string, box sandbox.Sandbox) error
}

// PreFlightStep acquires a sandbox for the submission's language,
// stages its files, and runs the language's required-file and
// setup-command checks.
type PreFlightStep struct {
	Manager SandboxAcquirer
	Config  preflight.SetupConfig
}

func (s *PreFlightStep) Name() pipeline.StepName { return pipeline.StepPreFlight }

func (s *PreFlightStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	sub := exec.Submission

	box, err := s.Manager.GetSandbox(string(sub.Language))
	if err != nil {
		return nil, err
	}
	// Bound immediately: later steps, and the pipeline's own deferred
	// release, must see this sandbox even if a later check fails.
	exec.BindSandbox(box, func(releaseCtx context.Context) {
		_ = s.Manager.ReleaseSandbox(releaseCtx, string(sub.Language), box)
	})

	if err := box.PrepareWorkdir(ctx, sub.Files); err != nil {
		return nil, &model.SandboxError{Op: "prepare_workdir", Err: err}
	}

	cfg := preflight.ResolveForLanguage(s.Config, sub.Language)
	if err := preflight.Run(ctx, cfg, sub.Files, box); err != nil {
		return nil, err
	}

	return box, nil
}
