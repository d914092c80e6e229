package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
)

func TestFeedbackStepNilGeneratorIsNoOp(t *testing.T) {
	step := &FeedbackStep{}
	exec := pipeline.NewExecution(&model.Submission{})
	data, err := step.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, "", data)
}

type fakeGenerator struct {
	text string
}

func (f fakeGenerator) Generate(ctx context.Context, sub *model.Submission, result *model.ResultTree, preferences map[string]interface{}) (string, error) {
	return f.text, nil
}

func TestFeedbackStepCallsGeneratorWithGradedResult(t *testing.T) {
	step := &FeedbackStep{Generator: fakeGenerator{text: "nice work"}}
	exec := pipeline.NewExecution(&model.Submission{})
	exec.Steps = append(exec.Steps, pipeline.StepResult{
		Step:   pipeline.StepGrade,
		Status: pipeline.StatusSuccess,
		Data:   &model.ResultTree{},
	})

	data, err := step.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, "nice work", data)
}

func TestFeedbackStepWithGeneratorButNoGradeErrors(t *testing.T) {
	step := &FeedbackStep{Generator: fakeGenerator{text: "nice work"}}
	exec := pipeline.NewExecution(&model.Submission{})
	_, err := step.Execute(context.Background(), exec)
	require.Error(t, err)
}
