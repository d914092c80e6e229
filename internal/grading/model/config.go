package model

// TestConfig is one leaf entry of a criteria config document, as authored
// by an instructor (JSON or YAML).
type TestConfig struct {
	Name       string                 `json:"name" yaml:"name"`
	FileTarget interface{}            `json:"file,omitempty" yaml:"file,omitempty"`
	Parameters interface{}            `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Extra      map[string]interface{} `json:"-" yaml:"-"`
}

// SubjectConfig is a declarative holder that nests either subjects or tests.
type SubjectConfig struct {
	SubjectName    string          `json:"subject_name" yaml:"subject_name"`
	Weight         float64         `json:"weight" yaml:"weight"`
	SubjectsWeight *float64        `json:"subjects_weight,omitempty" yaml:"subjects_weight,omitempty"`
	Subjects       []SubjectConfig `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Tests          []TestConfig    `json:"tests,omitempty" yaml:"tests,omitempty"`
}

// CategoryConfig is a top-level root holder (base, bonus, or penalty).
type CategoryConfig struct {
	Weight         float64         `json:"weight" yaml:"weight"`
	SubjectsWeight *float64        `json:"subjects_weight,omitempty" yaml:"subjects_weight,omitempty"`
	Subjects       []SubjectConfig `json:"subjects,omitempty" yaml:"subjects,omitempty"`
	Tests          []TestConfig    `json:"tests,omitempty" yaml:"tests,omitempty"`
}

// CriteriaConfig is the full instructor-authored rubric document.
type CriteriaConfig struct {
	TestLibrary string          `json:"test_library,omitempty" yaml:"test_library,omitempty"`
	Base        CategoryConfig  `json:"base" yaml:"base"`
	Bonus       *CategoryConfig `json:"bonus,omitempty" yaml:"bonus,omitempty"`
	Penalty     *CategoryConfig `json:"penalty,omitempty" yaml:"penalty,omitempty"`
}

// HasSubjects/HasTests let builders check "both kinds declared" uniformly
// for subjects and categories without duplicating the check per type.
func (s SubjectConfig) HasSubjects() bool { return len(s.Subjects) > 0 }
func (s SubjectConfig) HasTests() bool    { return len(s.Tests) > 0 }

func (c CategoryConfig) HasSubjects() bool { return len(c.Subjects) > 0 }
func (c CategoryConfig) HasTests() bool    { return len(c.Tests) > 0 }
