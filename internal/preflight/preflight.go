// Package preflight runs the two-phase check a submission must pass
// before grading: required-file presence, then setup-command execution
// in an acquired sandbox.
package preflight

import (
	"context"
	"strconv"
	"time"

	"autograder/internal/grading/model"
	"autograder/internal/sandbox"
)

const defaultCommandTimeout = 30 * time.Second

// SetupCommand is one setup-command entry: either a bare string (Name
// left empty) or an explicit {name, command} record.
type SetupCommand struct {
	Name    string
	Command string
}

// Config is the language-specific preflight configuration: files that
// must exist in the submission, and commands run against the acquired
// sandbox before grading begins.
type Config struct {
	RequiredFiles []string
	SetupCommands []SetupCommand
}

// SetupConfig maps a submission language to its Config. A language
// absent from the map gets an empty Config.
type SetupConfig map[model.Language]Config

// ResolveForLanguage looks up cfg's entry for language, defaulting to
// an empty Config when none is configured.
func ResolveForLanguage(cfg SetupConfig, language model.Language) Config {
	return cfg[language]
}

// checkRequiredFiles returns every path in cfg.RequiredFiles missing
// from files. All missing files are collected before reporting, so a
// submission sees every gap at once rather than one at a time.
func checkRequiredFiles(cfg Config, files map[string]string) []string {
	var missing []string
	for _, path := range cfg.RequiredFiles {
		if _, ok := files[path]; !ok {
			missing = append(missing, path)
		}
	}
	return missing
}

// Run executes both preflight phases against an already-acquired
// sandbox whose workdir has been staged with the submission's files.
// Returns a *model.PreflightError on the first failing phase; runs no
// setup commands when a required file is missing.
func Run(ctx context.Context, cfg Config, files map[string]string, box sandbox.Sandbox) error {
	if missing := checkRequiredFiles(cfg, files); len(missing) > 0 {
		return &model.PreflightError{MissingFiles: missing}
	}

	for i, cmd := range cfg.SetupCommands {
		name := cmd.Name
		if name == "" {
			name = defaultCommandName(i)
		}

		result, err := box.RunCommand(ctx, cmd.Command, defaultCommandTimeout)
		if err != nil {
			return &model.PreflightError{CommandName: name, Category: string(sandbox.CategorySystemError)}
		}
		if result.Category != sandbox.CategorySuccess {
			return &model.PreflightError{
				CommandName: name,
				ExitCode:    result.ExitCode,
				Stdout:      result.Stdout,
				Stderr:      result.Stderr,
				Category:    string(result.Category),
			}
		}
	}

	return nil
}

func defaultCommandName(index int) string {
	return "setup command " + strconv.Itoa(index+1)
}
