package sandbox

import "strings"

// runtimeMarkers lists per-language stderr substrings that indicate an
// uncaught runtime error, distinct from a compilation failure.
var runtimeMarkers = map[string][]string{
	"python": {"Traceback", "Error:"},
	"java":   {"Exception in thread", "java.lang."},
	"node":   {"ReferenceError:", "TypeError:", "Uncaught"},
	"cpp":    {"segmentation fault", "core dumped"},
}

// compilationMarkers are checked regardless of language.
var compilationMarkers = []string{"error:", "javac", "g++"}

// Classify maps (stdout, stderr, exit_code, language) to an output
// category, following a fixed rule cascade: success, then the Docker
// OOM/killed exit code, then compiler errors, then per-language runtime
// errors, else an unclassified system error.
func Classify(stdout, stderr string, exitCode int, language string) Category {
	if exitCode == 0 {
		return CategorySuccess
	}
	if exitCode == 137 {
		return CategoryTimeout
	}

	lowerStderr := strings.ToLower(stderr)
	if exitCode != 0 {
		for _, marker := range compilationMarkers {
			if strings.Contains(lowerStderr, marker) {
				return CategoryCompilationError
			}
		}
	}

	for _, marker := range runtimeMarkers[language] {
		if strings.Contains(stderr, marker) {
			return CategoryRuntimeError
		}
	}

	return CategorySystemError
}
