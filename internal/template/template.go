// Package template defines the interface the grading engine uses to reach
// test-function implementations. Templates themselves are opaque, external
// collaborators: this package only declares the shape the Grader invokes.
//
// Reflection-loaded custom templates (dynamically evaluated at request
// time) are deliberately not supported here; a template is a build-time
// registered Go value. "Custom" templates are expected to be provided
// out-of-band as prebuilt plugins implementing this same interface.
package template

import "autograder/internal/sandbox"

// TestFunc is the signature every test function implements. files is nil
// when the bound test has no file target; sandbox is nil unless the
// template declares RequiresSandbox.
type TestFunc func(files map[string]string, box sandbox.Sandbox, params map[string]interface{}) (Result, error)

// Result is a test function's return value, pre-binding to the engine's
// TestResult (the grader fills in test name, subject name and parameters).
type Result struct {
	Score  float64
	Report string
}

// Template groups a named, cohesive set of test functions along with
// library-level metadata the Grader needs to invoke them correctly.
type Template interface {
	Name() string
	Description() string
	RequiresSandbox() bool
	GetTest(name string) (TestFunc, bool)
	// Stop is called once after grading completes, for batch cleanup
	// (e.g. flushing buffered calls to an external feedback generator).
	Stop()
}

// Registry resolves template names to Template implementations.
// Registration happens at build/init time, not per-request.
type Registry struct {
	templates map[string]Template
}

func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]Template)}
}

func (r *Registry) Register(t Template) {
	r.templates[t.Name()] = t
}

func (r *Registry) Get(name string) (Template, bool) {
	t, ok := r.templates[name]
	return t, ok
}
