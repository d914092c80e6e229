// Package focus ranks tests by how many points they cost or would have
// cost at the root of a graded result, letting callers surface only the
// highest-impact failures instead of the full result tree.
package focus

import (
	"sort"

	"autograder/internal/grading/model"
)

// FocusedTest pairs a graded test with its impact on the absolute root
// score, on a 0-100 scale.
type FocusedTest struct {
	TestName    string  `json:"test_name"`
	SubjectName string  `json:"subject_name,omitempty"`
	Score       float64 `json:"score"`
	Report      string  `json:"report,omitempty"`
	Impact      float64 `json:"impact"`
}

// Focus is the ranked output for one graded submission: each list is
// sorted descending by Impact.
type Focus struct {
	Base    []FocusedTest `json:"base"`
	Bonus   []FocusedTest `json:"bonus,omitempty"`
	Penalty []FocusedTest `json:"penalty,omitempty"`
}

// Compute derives Focus from a criteria tree and the result tree it
// produced. criteria and result must come from the same Grade call:
// Compute walks both in lockstep, matching each CategoryNode/SubjectNode
// child to the ResultNode built for it in the same order.
//
// Base contributes to the root at full scale, so its path multiplier
// starts at 1. Bonus and penalty contribute at most their declared
// category weight, so their paths start at weight/100, mirroring how
// the root score formula scales them.
func Compute(criteria *model.CriteriaTree, result *model.ResultTree) *Focus {
	f := &Focus{Base: processCategory(criteria.Base, result.Base, 1.0)}
	if criteria.Bonus != nil && result.Bonus != nil {
		f.Bonus = processCategory(criteria.Bonus, result.Bonus, criteria.Bonus.Weight/100)
	}
	if criteria.Penalty != nil && result.Penalty != nil {
		f.Penalty = processCategory(criteria.Penalty, result.Penalty, criteria.Penalty.Weight/100)
	}
	return f
}

func splitMultiplier(kind model.HolderKind, subjectsWeight, multiplier float64) (subjectMult, testMult float64) {
	if kind == model.KindMixed {
		return multiplier * subjectsWeight / 100, multiplier * (100 - subjectsWeight) / 100
	}
	return multiplier, multiplier
}

func processCategory(cat *model.CategoryNode, node *model.ResultNode, multiplier float64) []FocusedTest {
	subjectMult, testMult := splitMultiplier(cat.Kind, cat.SubjectsWeight, multiplier)

	out := make([]FocusedTest, 0, len(cat.Subjects)+len(cat.Tests))
	idx := 0
	for _, s := range cat.Subjects {
		child := node.Children[idx]
		idx++
		out = append(out, processSubject(s, child, subjectMult*s.Weight/100)...)
	}
	for _, t := range cat.Tests {
		child := node.Children[idx]
		idx++
		out = append(out, focusedTestFrom(t, child, testMult))
	}

	sortDescending(out)
	return out
}

func processSubject(s *model.SubjectNode, node *model.ResultNode, multiplier float64) []FocusedTest {
	subjectMult, testMult := splitMultiplier(s.Kind, s.SubjectsWeight, multiplier)

	out := make([]FocusedTest, 0, len(s.Subjects)+len(s.Tests))
	idx := 0
	for _, cs := range s.Subjects {
		child := node.Children[idx]
		idx++
		out = append(out, processSubject(cs, child, subjectMult*cs.Weight/100)...)
	}
	for _, t := range s.Tests {
		child := node.Children[idx]
		idx++
		out = append(out, focusedTestFrom(t, child, testMult))
	}
	return out
}

func focusedTestFrom(t *model.TestNode, node *model.ResultNode, multiplier float64) FocusedTest {
	report := ""
	if node.Test != nil {
		report = node.Test.Report
	}
	return FocusedTest{
		TestName:    t.Name,
		SubjectName: t.SubjectName,
		Score:       node.Score,
		Report:      report,
		Impact:      calculateImpact(node.Score, t.Weight, multiplier),
	}
}

// calculateImpact returns how many of the 100 root points this test cost,
// given its normalized sibling weight and the cumulative multiplier
// carried down from every ancestor split.
func calculateImpact(score, weight, multiplier float64) float64 {
	if score == 100 {
		return 0
	}
	pointsMissed := 100 - score
	return pointsMissed * (weight / 100) * multiplier
}

func sortDescending(tests []FocusedTest) {
	sort.SliceStable(tests, func(i, j int) bool { return tests[i].Impact > tests[j].Impact })
}
