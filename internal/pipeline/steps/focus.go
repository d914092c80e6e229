package steps

import (
	"context"
	"fmt"

	"autograder/internal/grading/focus"
	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
)

// FocusStep ranks graded tests by their impact on the final root score.
// It is purely derivative: it does not modify the result tree built by
// GRADE. It fails when the BUILD_TREE or GRADE output it reads is
// missing or of an unexpected type.
type FocusStep struct{}

func (s *FocusStep) Name() pipeline.StepName { return pipeline.StepFocus }

func (s *FocusStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	builtTree, ok := exec.Get(pipeline.StepBuildTree)
	if !ok {
		return nil, fmt.Errorf("focus: no criteria tree built")
	}
	criteria, ok := builtTree.Data.(*model.CriteriaTree)
	if !ok {
		return nil, fmt.Errorf("focus: unexpected criteria tree data type")
	}

	graded, ok := exec.Get(pipeline.StepGrade)
	if !ok {
		return nil, fmt.Errorf("focus: no result tree graded")
	}
	result, ok := graded.Data.(*model.ResultTree)
	if !ok {
		return nil, fmt.Errorf("focus: unexpected result tree data type")
	}

	return focus.Compute(criteria, result), nil
}
