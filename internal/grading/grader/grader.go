// Package grader walks a criteria tree against a submission, invoking
// test functions and assembling the scored result tree.
package grader

import (
	"context"
	"fmt"
	"math"

	"autograder/internal/grading/model"
	"autograder/internal/sandbox"
	"autograder/internal/template"
)

// Grader processes one submission at a time; distinct Graders may run
// concurrently on distinct sandboxes. Test functions are treated as pure
// given (files, sandbox, params) and must not share mutable state across
// calls.
type Grader struct {
	tmpl template.Template
}

// New constructs a Grader bound to the resolved template for this
// grading run.
func New(tmpl template.Template) *Grader {
	return &Grader{tmpl: tmpl}
}

// Grade walks tree against sub, optionally using box when the template
// declares RequiresSandbox, and returns the scored result tree.
func (g *Grader) Grade(ctx context.Context, criteria *model.CriteriaTree, sub *model.Submission, box sandbox.Sandbox) (*model.ResultTree, error) {
	result := &model.ResultTree{}

	base, baseScore, err := g.processCategory(ctx, criteria.Base, sub, box)
	if err != nil {
		return nil, err
	}
	base.Name = "base"
	base.Score = baseScore
	result.Base = base

	var bonusScore, penaltyScore float64
	var bonusWeight, penaltyWeight float64

	if criteria.Bonus != nil {
		bonus, score, err := g.processCategory(ctx, criteria.Bonus, sub, box)
		if err != nil {
			return nil, err
		}
		bonus.Name = "bonus"
		bonus.Score = score
		result.Bonus = bonus
		bonusScore = score
		bonusWeight = criteria.Bonus.Weight
	}
	if criteria.Penalty != nil {
		penalty, score, err := g.processCategory(ctx, criteria.Penalty, sub, box)
		if err != nil {
			return nil, err
		}
		penalty.Name = "penalty"
		penalty.Score = score
		result.Penalty = penalty
		penaltyScore = score
		penaltyWeight = criteria.Penalty.Weight
	}

	final := baseScore + (bonusScore/100)*bonusWeight - (penaltyScore/100)*penaltyWeight
	result.FinalScore = clamp(final, 0, 100)

	return result, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// processCategory handles a root holder (base/bonus/penalty), which has
// the same shape as a SubjectNode but no weight of its own relative to a
// parent.
func (g *Grader) processCategory(ctx context.Context, cat *model.CategoryNode, sub *model.Submission, box sandbox.Sandbox) (*model.ResultNode, float64, error) {
	switch cat.Kind {
	case model.KindTests:
		return g.processTestGroup(ctx, cat.Tests, sub, box)
	case model.KindSubjects:
		return g.processSubjectGroup(ctx, cat.Subjects, sub, box)
	default: // KindMixed
		return g.processMixed(ctx, cat.Subjects, cat.Tests, cat.SubjectsWeight, sub, box)
	}
}

// processSubject handles one subject node, recursing into its children.
func (g *Grader) processSubject(ctx context.Context, n *model.SubjectNode, sub *model.Submission, box sandbox.Sandbox) (*model.ResultNode, error) {
	var node *model.ResultNode
	var score float64
	var err error

	switch n.Kind {
	case model.KindTests:
		node, score, err = g.processTestGroup(ctx, n.Tests, sub, box)
	case model.KindSubjects:
		node, score, err = g.processSubjectGroup(ctx, n.Subjects, sub, box)
	default:
		node, score, err = g.processMixed(ctx, n.Subjects, n.Tests, n.SubjectsWeight, sub, box)
	}
	if err != nil {
		return nil, err
	}
	node.Name = n.SubjectName
	node.Score = score
	return node, nil
}

// processSubjectGroup recurses into a list of same-kind subject siblings
// and computes score = Σ child.score · child.weight / 100.
func (g *Grader) processSubjectGroup(ctx context.Context, subjects []*model.SubjectNode, sub *model.Submission, box sandbox.Sandbox) (*model.ResultNode, float64, error) {
	children := make([]*model.ResultNode, 0, len(subjects))
	var total float64
	for _, s := range subjects {
		child, err := g.processSubject(ctx, s, sub, box)
		if err != nil {
			return nil, 0, err
		}
		children = append(children, child)
		total += child.Score * s.Weight / 100
	}
	return &model.ResultNode{Children: children}, total, nil
}

// processTestGroup invokes each test in a list of same-kind test siblings
// and computes score = Σ test.score · test.weight / 100.
func (g *Grader) processTestGroup(ctx context.Context, tests []*model.TestNode, sub *model.Submission, box sandbox.Sandbox) (*model.ResultNode, float64, error) {
	children := make([]*model.ResultNode, 0, len(tests))
	var total float64
	for _, t := range tests {
		result, err := g.processTest(ctx, t, sub, box)
		if err != nil {
			return nil, 0, err
		}
		children = append(children, &model.ResultNode{Name: t.Name, Score: result.Score, Test: result})
		total += result.Score * t.Weight / 100
	}
	return &model.ResultNode{Children: children}, total, nil
}

// processMixed combines a subjects-group score and a tests-group score
// using the subjects_weight split: subjects_weight / (100 -
// subjects_weight) as the ratio between the two groups' contributions.
func (g *Grader) processMixed(ctx context.Context, subjects []*model.SubjectNode, tests []*model.TestNode, subjectsWeight float64, sub *model.Submission, box sandbox.Sandbox) (*model.ResultNode, float64, error) {
	subjectsNode, subjectsScore, err := g.processSubjectGroup(ctx, subjects, sub, box)
	if err != nil {
		return nil, 0, err
	}
	testsNode, testsScore, err := g.processTestGroup(ctx, tests, sub, box)
	if err != nil {
		return nil, 0, err
	}

	combined := (subjectsScore*subjectsWeight + testsScore*(100-subjectsWeight)) / 100
	children := append(append([]*model.ResultNode{}, subjectsNode.Children...), testsNode.Children...)
	return &model.ResultNode{Children: children}, combined, nil
}

// processTest resolves a test node's file target against the submission,
// invokes the bound test function, and produces exactly one TestResult.
// A missing file target never aborts grading: it produces a zero-score
// result with a clear report instead.
func (g *Grader) processTest(ctx context.Context, t *model.TestNode, sub *model.Submission, box sandbox.Sandbox) (*model.TestResult, error) {
	files, missing := resolveFiles(t.FileTarget, sub)
	if missing != "" {
		return &model.TestResult{
			TestName:    t.Name,
			Score:       0,
			Report:      fmt.Sprintf("required file %q not found in submission", missing),
			Parameters:  t.Parameters,
			SubjectName: t.SubjectName,
		}, nil
	}

	fn, ok := g.tmpl.GetTest(t.Name)
	if !ok {
		// The builder already validated this name; a missing function
		// here means the template changed between build and grade.
		return nil, &model.ConfigError{Reason: fmt.Sprintf("template no longer exposes test %q", t.Name)}
	}

	var box2 sandbox.Sandbox
	if g.tmpl.RequiresSandbox() {
		box2 = box
	}

	var out template.Result
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		out, err = fn(files, box2, t.Parameters)
		return err
	}()
	if err != nil {
		// TestExecutionError never fails the pipeline: captured as a
		// zero-score result whose report carries the error text.
		execErr := &model.TestExecutionError{TestName: t.Name, Err: err}
		return &model.TestResult{
			TestName:    t.Name,
			Score:       0,
			Report:      execErr.Error(),
			Parameters:  t.Parameters,
			SubjectName: t.SubjectName,
		}, nil
	}

	return &model.TestResult{
		TestName:    t.Name,
		Score:       out.Score,
		Report:      out.Report,
		Parameters:  t.Parameters,
		SubjectName: t.SubjectName,
	}, nil
}

// resolveFiles interprets a test's file_target (nil, a single filename,
// a list of filenames, or the literal "all") against the submission's
// file set. Returns (nil, "") when the target is nil; (files, "") when
// every requested file is present; (nil, missingName) on the first
// missing file.
func resolveFiles(target interface{}, sub *model.Submission) (map[string]string, string) {
	switch v := target.(type) {
	case nil:
		return nil, ""
	case string:
		if v == "all" {
			return sub.Files, ""
		}
		content, ok := sub.FileContent(v)
		if !ok {
			return nil, v
		}
		return map[string]string{v: content}, ""
	case []string:
		out := make(map[string]string, len(v))
		for _, name := range v {
			content, ok := sub.FileContent(name)
			if !ok {
				return nil, name
			}
			out[name] = content
		}
		return out, ""
	case []interface{}:
		names := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
		return resolveFiles(names, sub)
	default:
		return nil, ""
	}
}
