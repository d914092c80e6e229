package model

// HolderKind distinguishes a criteria-tree holder's children: a holder
// never mixes kinds without an explicit subjects/tests split.
type HolderKind int

const (
	KindTests HolderKind = iota
	KindSubjects
	KindMixed
)

// TestNode is a normalized, bound leaf: a reference to a test function
// (resolved by name at build time, invoked at grade time) plus its
// normalized parameter mapping and file target.
type TestNode struct {
	Name        string
	FileTarget  interface{} // nil, string, []string, or the literal "all"
	Parameters  map[string]interface{}
	SubjectName string
	Weight      float64 // normalized against sibling tests, sums to 100
}

// SubjectNode is a normalized non-leaf holder.
type SubjectNode struct {
	SubjectName    string
	Kind           HolderKind
	Weight         float64 // normalized against siblings, sums to 100 among same-kind siblings
	SubjectsWeight float64 // only meaningful when Kind == KindMixed; 0-100
	Subjects       []*SubjectNode
	Tests          []*TestNode
}

// CategoryNode is a root holder: base, bonus, or penalty.
type CategoryNode struct {
	Kind           HolderKind
	Weight         float64 // declared weight; for bonus/penalty, the maximum contribution to the final score (base's weight is not used in scoring)
	SubjectsWeight float64
	Subjects       []*SubjectNode
	Tests          []*TestNode
}

// CriteriaTree is the fully normalized, build-time-resolved rubric.
type CriteriaTree struct {
	Base    *CategoryNode
	Bonus   *CategoryNode
	Penalty *CategoryNode
}
