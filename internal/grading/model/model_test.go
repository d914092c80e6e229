package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAliasesCommonLanguageSpellings(t *testing.T) {
	cases := map[string]Language{
		"py":         LanguagePython,
		"python":     LanguagePython,
		"python3":    LanguagePython,
		"java":       LanguageJava,
		"js":         LanguageNode,
		"nodejs":     LanguageNode,
		"javascript": LanguageNode,
		"c++":        LanguageCPP,
		"cpp":        LanguageCPP,
		"":           LanguageNone,
	}
	for raw, want := range cases {
		assert.Equal(t, want, Normalize(raw), "raw=%q", raw)
	}

	// Unrecognized values pass through untouched so config validation
	// can name them in its error.
	assert.Equal(t, Language("fortran"), Normalize("fortran"))
}

func TestFileContent(t *testing.T) {
	sub := &Submission{Files: map[string]string{"main.py": "print(1)"}}

	content, ok := sub.FileContent("main.py")
	require.True(t, ok)
	assert.Equal(t, "print(1)", content)

	_, ok = sub.FileContent("missing.py")
	assert.False(t, ok)
}

func TestConfigErrorNamesPath(t *testing.T) {
	err := &ConfigError{Path: "base/a", Reason: "holder declares neither subjects nor tests"}
	assert.Contains(t, err.Error(), "base/a")

	bare := &ConfigError{Reason: "unknown test"}
	assert.Equal(t, "config error: unknown test", bare.Error())
}

func TestPreflightErrorPrefersMissingFiles(t *testing.T) {
	err := &PreflightError{MissingFiles: []string{"main.py"}}
	assert.Contains(t, err.Error(), "main.py")

	cmdErr := &PreflightError{CommandName: "compile", ExitCode: 1, Category: "COMPILATION_ERROR"}
	assert.Contains(t, cmdErr.Error(), "compile")
	assert.Contains(t, cmdErr.Error(), "COMPILATION_ERROR")
}

func TestWrappedErrorsUnwrapToTheirCause(t *testing.T) {
	cause := errors.New("daemon unreachable")

	var sbErr error = &SandboxError{Op: "create", Err: cause}
	assert.ErrorIs(t, sbErr, cause)

	var execErr error = &TestExecutionError{TestName: "t1", Err: cause}
	assert.ErrorIs(t, execErr, cause)

	var internal error = &InternalError{Step: "GRADE", Err: cause}
	assert.ErrorIs(t, internal, cause)
}

func TestErrorKindsAreBranchableWithErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("pipeline: %w", &PoolExhausted{Language: LanguagePython})

	var exhausted *PoolExhausted
	require.ErrorAs(t, wrapped, &exhausted)
	assert.Equal(t, LanguagePython, exhausted.Language)
	assert.Contains(t, exhausted.Error(), "python")
}
