package sandbox

import (
	"strings"

	"autograder/internal/logging"
)

// defaultCommands holds the auto-resolution fallback when no entry
// filename is given.
var defaultCommands = map[string]string{
	"python": "python3 main.py",
	"java":   "java Main",
	"node":   "node index.js",
	"cpp":    "./a.out",
}

// ResolveCommand resolves a test's program_command parameter to a
// concrete shell command for the submission's language. programCommand
// may be nil, a string (legacy, or the literal "CMD"), or a
// map[string]string keyed by language value.
func ResolveCommand(programCommand interface{}, language string, fallbackFilename string) *string {
	if programCommand == nil {
		return nil
	}

	switch v := programCommand.(type) {
	case string:
		if v == "CMD" {
			return autoResolveCommand(language, fallbackFilename)
		}
		logging.S().Warnw("using legacy single-command format", "command", v)
		return &v
	case map[string]string:
		return resolveFromMap(v, language)
	case map[string]interface{}:
		m := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				m[k] = s
			}
		}
		return resolveFromMap(m, language)
	default:
		logging.S().Errorw("invalid program_command format", "type", v)
		return nil
	}
}

func resolveFromMap(commands map[string]string, language string) *string {
	key := strings.ToLower(language)
	if cmd, ok := commands[key]; ok {
		return &cmd
	}
	logging.S().Warnw("no command defined for language in multi-language config", "language", language)
	return nil
}

func autoResolveCommand(language, fallbackFilename string) *string {
	var cmd string
	switch language {
	case "python":
		if fallbackFilename != "" {
			cmd = "python3 " + fallbackFilename
		} else {
			cmd = defaultCommands["python"]
		}
	case "java":
		if strings.HasSuffix(fallbackFilename, ".java") {
			cmd = "java " + strings.TrimSuffix(fallbackFilename, ".java")
		} else {
			cmd = defaultCommands["java"]
		}
	case "node":
		if fallbackFilename != "" {
			cmd = "node " + fallbackFilename
		} else {
			cmd = defaultCommands["node"]
		}
	case "cpp":
		if strings.HasSuffix(fallbackFilename, ".cpp") {
			cmd = "./" + strings.TrimSuffix(fallbackFilename, ".cpp")
		} else {
			cmd = defaultCommands["cpp"]
		}
	default:
		logging.S().Errorw("cannot auto-resolve command for language", "language", language)
		return nil
	}
	return &cmd
}
