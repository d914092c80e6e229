// Package model holds the data types shared across the grading engine:
// submissions, the criteria tree, and the result tree it produces.
package model

// Language identifies a submission's target runtime.
type Language string

const (
	LanguagePython Language = "python"
	LanguageJava   Language = "java"
	LanguageNode   Language = "node"
	LanguageCPP    Language = "cpp"
	LanguageNone   Language = "none"
)

// Normalize lowercases and aliases common spellings (js/node, py/python) to
// the canonical Language values above.
func Normalize(raw string) Language {
	switch raw {
	case "py", "python", "python3":
		return LanguagePython
	case "java":
		return LanguageJava
	case "js", "node", "nodejs", "javascript":
		return LanguageNode
	case "cpp", "c++":
		return LanguageCPP
	case "":
		return LanguageNone
	default:
		return Language(raw)
	}
}

// Submission is the immutable unit of work entering the pipeline.
type Submission struct {
	Username     string
	UserID       string
	AssignmentID string
	Files        map[string]string
	Language     Language
}

// FileContent returns the content of a single file, or ("", false) if absent.
func (s *Submission) FileContent(name string) (string, bool) {
	c, ok := s.Files[name]
	return c, ok
}
