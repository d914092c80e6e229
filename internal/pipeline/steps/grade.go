package steps

import (
	"context"
	"fmt"

	"autograder/internal/grading/grader"
	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
	"autograder/internal/template"
)

// GradeStep walks the built criteria tree against the submission,
// using whatever sandbox PRE_FLIGHT bound to the execution.
type GradeStep struct{}

func (s *GradeStep) Name() pipeline.StepName { return pipeline.StepGrade }

func (s *GradeStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	loadedTemplate, ok := exec.Get(pipeline.StepLoadTemplate)
	if !ok {
		return nil, fmt.Errorf("grade: no template loaded")
	}
	tmpl, ok := loadedTemplate.Data.(template.Template)
	if !ok {
		return nil, fmt.Errorf("grade: unexpected template data type")
	}

	builtTree, ok := exec.Get(pipeline.StepBuildTree)
	if !ok {
		return nil, fmt.Errorf("grade: no criteria tree built")
	}
	criteria, ok := builtTree.Data.(*model.CriteriaTree)
	if !ok {
		return nil, fmt.Errorf("grade: unexpected criteria tree data type")
	}

	g := grader.New(tmpl)
	result, err := g.Grade(ctx, criteria, exec.Submission, exec.Sandbox)
	// The template contract promises exactly one Stop after grading, for
	// batch cleanup (e.g. flushing buffered feedback calls).
	tmpl.Stop()
	if err != nil {
		return nil, err
	}
	return result, nil
}
