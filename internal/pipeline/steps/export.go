package steps

import (
	"context"
	"fmt"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
)

// Exporter is the external collaborator that persists or ships a
// finished grading result (to a repository, a queue, a file — the
// pipeline doesn't care which).
type Exporter interface {
	Export(ctx context.Context, sub *model.Submission, exec *pipeline.Execution) error
}

// ExportStep hands the finished execution to an external sink.
// Optional: a nil Exporter makes this step a no-op success.
type ExportStep struct {
	Exporter Exporter
}

func (s *ExportStep) Name() pipeline.StepName { return pipeline.StepExport }

func (s *ExportStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	if s.Exporter == nil {
		return nil, nil
	}
	if err := s.Exporter.Export(ctx, exec.Submission, exec); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return nil, nil
}
