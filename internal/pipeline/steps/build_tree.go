package steps

import (
	"context"
	"fmt"

	"autograder/internal/grading/model"
	"autograder/internal/grading/tree"
	"autograder/internal/pipeline"
	"autograder/internal/template"
)

// BuildTreeStep compiles a criteria config into a normalized
// CriteriaTree, resolving every test name against the template loaded
// by LOAD_TEMPLATE.
type BuildTreeStep struct {
	Criteria model.CriteriaConfig
}

func (s *BuildTreeStep) Name() pipeline.StepName { return pipeline.StepBuildTree }

func (s *BuildTreeStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	loaded, ok := exec.Get(pipeline.StepLoadTemplate)
	if !ok {
		return nil, fmt.Errorf("build_tree: no template loaded")
	}
	tmpl, ok := loaded.Data.(template.Template)
	if !ok {
		return nil, fmt.Errorf("build_tree: unexpected template data type")
	}

	return tree.Build(s.Criteria, templateResolver{tmpl})
}

// templateResolver adapts a template.Template to tree.Resolver.
type templateResolver struct{ tmpl template.Template }

func (r templateResolver) HasTest(name string) bool {
	_, ok := r.tmpl.GetTest(name)
	return ok
}
