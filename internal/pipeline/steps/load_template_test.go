package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autograder/internal/grading/model"
	"autograder/internal/pipeline"
	"autograder/internal/sandbox"
	"autograder/internal/template"
)

// scoredTemplate is the steps-package fixture template: every named test
// returns a hardcoded score, and Stop calls are counted so the grade
// step's cleanup contract can be asserted.
type scoredTemplate struct {
	name      string
	scores    map[string]float64
	stopCount *int
}

func (s scoredTemplate) Name() string          { return s.name }
func (s scoredTemplate) Description() string   { return "" }
func (s scoredTemplate) RequiresSandbox() bool { return false }
func (s scoredTemplate) Stop() {
	if s.stopCount != nil {
		*s.stopCount++
	}
}
func (s scoredTemplate) GetTest(name string) (template.TestFunc, bool) {
	score, ok := s.scores[name]
	if !ok {
		return nil, false
	}
	return func(files map[string]string, box sandbox.Sandbox, params map[string]interface{}) (template.Result, error) {
		return template.Result{Score: score, Report: "ok"}, nil
	}, true
}

func TestLoadTemplateStepResolvesRegisteredTemplate(t *testing.T) {
	registry := template.NewRegistry()
	registry.Register(scoredTemplate{name: "default", scores: map[string]float64{}})

	step := &LoadTemplateStep{Registry: registry, TemplateName: "default"}
	exec := pipeline.NewExecution(&model.Submission{})

	data, err := step.Execute(context.Background(), exec)
	require.NoError(t, err)

	tmpl, ok := data.(template.Template)
	require.True(t, ok)
	assert.Equal(t, "default", tmpl.Name())
}

func TestLoadTemplateStepUnknownNameIsConfigError(t *testing.T) {
	step := &LoadTemplateStep{Registry: template.NewRegistry(), TemplateName: "nope"}
	exec := pipeline.NewExecution(&model.Submission{})

	_, err := step.Execute(context.Background(), exec)
	require.Error(t, err)

	var cfgErr *model.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Error(), "nope")
}
