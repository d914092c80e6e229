// Package tree builds a normalized CriteriaTree from a declarative
// CriteriaConfig: weight normalization across siblings, subjects/tests
// exclusivity, subjects_weight splits, and test-name resolution against
// a loaded template.
package tree

import (
	"fmt"

	"autograder/internal/grading/model"
)

// Resolver reports whether a template exposes a test function under the
// given name. The builder depends only on this narrow interface, not on
// the template package itself, to keep the dependency graph acyclic.
type Resolver interface {
	HasTest(name string) bool
}

// Build compiles cfg into a normalized CriteriaTree, resolving every test
// name against resolver. Returns a *model.ConfigError for any invariant
// violation.
func Build(cfg model.CriteriaConfig, resolver Resolver) (*model.CriteriaTree, error) {
	base, err := buildCategory(cfg.Base, resolver, "base")
	if err != nil {
		return nil, err
	}

	var bonus, penalty *model.CategoryNode
	if cfg.Bonus != nil {
		bonus, err = buildCategory(*cfg.Bonus, resolver, "bonus")
		if err != nil {
			return nil, err
		}
	}
	if cfg.Penalty != nil {
		penalty, err = buildCategory(*cfg.Penalty, resolver, "penalty")
		if err != nil {
			return nil, err
		}
	}

	return &model.CriteriaTree{Base: base, Bonus: bonus, Penalty: penalty}, nil
}

func buildCategory(cfg model.CategoryConfig, resolver Resolver, path string) (*model.CategoryNode, error) {
	if cfg.Weight < 0 {
		return nil, &model.ConfigError{Path: path, Reason: fmt.Sprintf("weight %v out of range: must be non-negative", cfg.Weight)}
	}
	if cfg.HasSubjects() && cfg.HasTests() {
		if cfg.SubjectsWeight == nil {
			return nil, &model.ConfigError{Path: path, Reason: "holder mixes subjects and tests but declares no subjects_weight"}
		}
		if *cfg.SubjectsWeight < 0 || *cfg.SubjectsWeight > 100 {
			return nil, &model.ConfigError{Path: path, Reason: fmt.Sprintf("subjects_weight %v out of range: must be between 0 and 100", *cfg.SubjectsWeight)}
		}
	}
	if !cfg.HasSubjects() && !cfg.HasTests() {
		return nil, &model.ConfigError{Path: path, Reason: "holder declares neither subjects nor tests"}
	}

	kind, subjectsWeight := holderKind(cfg.HasSubjects(), cfg.HasTests(), cfg.SubjectsWeight)

	node := &model.CategoryNode{Kind: kind, Weight: cfg.Weight, SubjectsWeight: subjectsWeight}

	if cfg.HasSubjects() {
		subjects, err := buildSubjects(cfg.Subjects, resolver, path)
		if err != nil {
			return nil, err
		}
		node.Subjects = subjects
	}
	if cfg.HasTests() {
		tests, err := buildTests(cfg.Tests, resolver, path, "")
		if err != nil {
			return nil, err
		}
		node.Tests = tests
	}

	return node, nil
}

func buildSubjects(cfgs []model.SubjectConfig, resolver Resolver, path string) ([]*model.SubjectNode, error) {
	nodes := make([]*model.SubjectNode, 0, len(cfgs))
	weights := make([]float64, 0, len(cfgs))

	for _, sc := range cfgs {
		subPath := path + "/" + sc.SubjectName
		if sc.Weight < 0 {
			return nil, &model.ConfigError{Path: subPath, Reason: fmt.Sprintf("weight %v out of range: must be non-negative", sc.Weight)}
		}
		if sc.HasSubjects() && sc.HasTests() {
			if sc.SubjectsWeight == nil {
				return nil, &model.ConfigError{Path: subPath, Reason: "holder mixes subjects and tests but declares no subjects_weight"}
			}
			if *sc.SubjectsWeight < 0 || *sc.SubjectsWeight > 100 {
				return nil, &model.ConfigError{Path: subPath, Reason: fmt.Sprintf("subjects_weight %v out of range: must be between 0 and 100", *sc.SubjectsWeight)}
			}
		}
		if !sc.HasSubjects() && !sc.HasTests() {
			return nil, &model.ConfigError{Path: subPath, Reason: "holder declares neither subjects nor tests"}
		}

		kind, subjectsWeight := holderKind(sc.HasSubjects(), sc.HasTests(), sc.SubjectsWeight)
		node := &model.SubjectNode{SubjectName: sc.SubjectName, Kind: kind, SubjectsWeight: subjectsWeight}

		if sc.HasSubjects() {
			children, err := buildSubjects(sc.Subjects, resolver, subPath)
			if err != nil {
				return nil, err
			}
			node.Subjects = children
		}
		if sc.HasTests() {
			tests, err := buildTests(sc.Tests, resolver, subPath, sc.SubjectName)
			if err != nil {
				return nil, err
			}
			node.Tests = tests
		}

		nodes = append(nodes, node)
		weights = append(weights, sc.Weight)
	}

	normalized := normalizeWeights(weights)
	for i, n := range nodes {
		n.Weight = normalized[i]
	}

	return nodes, nil
}

func buildTests(cfgs []model.TestConfig, resolver Resolver, path, subjectName string) ([]*model.TestNode, error) {
	nodes := make([]*model.TestNode, 0, len(cfgs))
	for _, tc := range cfgs {
		if !resolver.HasTest(tc.Name) {
			return nil, &model.ConfigError{Path: path, Reason: fmt.Sprintf("unknown test %q", tc.Name)}
		}
		nodes = append(nodes, &model.TestNode{
			Name:        tc.Name,
			FileTarget:  tc.FileTarget,
			Parameters:  normalizeParameters(tc.Parameters),
			SubjectName: subjectName,
		})
	}

	// Tests carry no declared weight in the config; they are always
	// equal-weighted siblings, same as weight-0 subjects.
	normalized := normalizeWeights(make([]float64, len(nodes)))
	for i, n := range nodes {
		n.Weight = normalized[i]
	}

	return nodes, nil
}

// normalizeParameters accepts an ordered list, a named mapping, or an
// array of {name, value} records, and returns a named mapping in all
// cases.
func normalizeParameters(raw interface{}) map[string]interface{} {
	switch v := raw.(type) {
	case nil:
		return map[string]interface{}{}
	case map[string]interface{}:
		return v
	case []interface{}:
		out := make(map[string]interface{}, len(v))
		for i, item := range v {
			if m, ok := item.(map[string]interface{}); ok {
				if name, ok := m["name"].(string); ok {
					out[name] = m["value"]
					continue
				}
			}
			out[fmt.Sprintf("%d", i)] = item
		}
		return out
	default:
		return map[string]interface{}{}
	}
}

// holderKind derives the HolderKind and effective subjects_weight for a
// holder that may mix subjects and tests.
func holderKind(hasSubjects, hasTests bool, subjectsWeight *float64) (model.HolderKind, float64) {
	switch {
	case hasSubjects && hasTests:
		return model.KindMixed, *subjectsWeight
	case hasSubjects:
		return model.KindSubjects, 100
	default:
		return model.KindTests, 0
	}
}

// normalizeWeights rescales weights so siblings sum to 100. If every
// weight is 0, each receives 100/n.
func normalizeWeights(weights []float64) []float64 {
	n := len(weights)
	out := make([]float64, n)
	if n == 0 {
		return out
	}

	var sum float64
	for _, w := range weights {
		sum += w
	}

	if sum == 0 {
		share := 100.0 / float64(n)
		for i := range out {
			out[i] = share
		}
		return out
	}

	scale := 100.0 / sum
	for i, w := range weights {
		out[i] = w * scale
	}
	return out
}
