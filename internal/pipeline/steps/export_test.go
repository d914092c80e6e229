package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
)

func TestExportStepNilExporterIsNoOp(t *testing.T) {
	step := &ExportStep{}
	exec := pipeline.NewExecution(&model.Submission{})
	_, err := step.Execute(context.Background(), exec)
	require.NoError(t, err)
}

type fakeExporter struct {
	called bool
}

func (f *fakeExporter) Export(ctx context.Context, sub *model.Submission, exec *pipeline.Execution) error {
	f.called = true
	return nil
}

func TestExportStepCallsExporter(t *testing.T) {
	exporter := &fakeExporter{}
	step := &ExportStep{Exporter: exporter}
	exec := pipeline.NewExecution(&model.Submission{})
	_, err := step.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.True(t, exporter.called)
}
