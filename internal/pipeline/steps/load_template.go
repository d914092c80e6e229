package steps

import (
	"context"
	"fmt"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
	"autograder/internal/template"
)

// LoadTemplateStep resolves a named template from the registry. Custom,
// user-supplied templates are out of scope (see template package doc);
// only the build-time registry is consulted.
type LoadTemplateStep struct {
	Registry     *template.Registry
	TemplateName string
}

func (s *LoadTemplateStep) Name() pipeline.StepName { return pipeline.StepLoadTemplate }

func (s *LoadTemplateStep) Execute(ctx context.Context, exec *pipeline.Execution) (interface{}, error) {
	tmpl, ok := s.Registry.Get(s.TemplateName)
	if !ok {
		return nil, &model.ConfigError{Reason: fmt.Sprintf("unknown template %q", s.TemplateName)}
	}
	return tmpl, nil
}
