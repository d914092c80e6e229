package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
)

func TestFocusStepErrorsWithoutBuiltTree(t *testing.T) {
	step := &FocusStep{}
	exec := pipeline.NewExecution(&model.Submission{})
	_, err := step.Execute(context.Background(), exec)
	require.Error(t, err)
}

func TestFocusStepErrorsWithoutGradedResult(t *testing.T) {
	step := &FocusStep{}
	exec := pipeline.NewExecution(&model.Submission{})
	exec.Steps = append(exec.Steps, pipeline.StepResult{
		Step:   pipeline.StepBuildTree,
		Status: pipeline.StatusSuccess,
		Data:   &model.CriteriaTree{},
	})
	_, err := step.Execute(context.Background(), exec)
	require.Error(t, err)
}
