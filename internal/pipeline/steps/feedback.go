package steps

import (
	"context"
	"fmt"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
)

// FeedbackGenerator is the external collaborator that turns a graded
// result tree into student-facing text. Its implementation (templated
// text, an AI call, or anything else) is opaque to the pipeline; only
// this call shape matters.
type FeedbackGenerator interface {
	Generate(ctx context.Context, sub *model.Submission, result *model.ResultTree, preferences map[string]interface{}) (string, error)
}

// FeedbackStep renders feedback text for a graded submission. It is
// optional: a nil Generator is a configuration choice, not an error,
// and the step simply produces empty feedback.
type FeedbackStep struct {
	Generator   FeedbackGenerator
	Preferences map[string]interface{}
}

func (s *FeedbackStep) Name() pipeline.StepName { return pipeline.StepFeedback }

func (s *FeedbackStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	if s.Generator == nil {
		return "", nil
	}

	graded, ok := exec.Get(pipeline.StepGrade)
	if !ok {
		return nil, fmt.Errorf("feedback: no result tree graded")
	}
	result, ok := graded.Data.(*model.ResultTree)
	if !ok {
		return nil, fmt.Errorf("feedback: unexpected result tree data type")
	}

	return s.Generator.Generate(ctx, exec.Submission, result, s.Preferences)
}
