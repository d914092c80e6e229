package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autograder/internal/grading/model"
	"autograder/internal/preflight"
)

// setupCommandYAML accepts either a bare string or a {name, command}
// mapping, matching the two shapes a single setup command may take.
type setupCommandYAML struct {
	Name    string
	Command string
}

func (s *setupCommandYAML) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&s.Command)
	}
	var named struct {
		Name    string `yaml:"name"`
		Command string `yaml:"command"`
	}
	if err := value.Decode(&named); err != nil {
		return err
	}
	s.Name, s.Command = named.Name, named.Command
	return nil
}

type preflightLanguageYAML struct {
	RequiredFiles []string           `yaml:"required_files"`
	SetupCommands []setupCommandYAML `yaml:"setup_commands"`
}

// LoadPreflightConfig reads a language -> {required_files, setup_commands}
// mapping from path into a preflight.SetupConfig. A language absent from
// the document simply isn't a key in the returned map, which
// preflight.ResolveForLanguage already treats as an empty Config.
func LoadPreflightConfig(path string) (preflight.SetupConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read preflight config %s: %w", path, err)
	}

	var doc map[string]preflightLanguageYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("config: parse preflight config %s: %w", path, err)
	}

	out := make(preflight.SetupConfig, len(doc))
	for lang, entry := range doc {
		cmds := make([]preflight.SetupCommand, len(entry.SetupCommands))
		for i, c := range entry.SetupCommands {
			cmds[i] = preflight.SetupCommand{Name: c.Name, Command: c.Command}
		}
		out[model.Normalize(lang)] = preflight.Config{
			RequiredFiles: entry.RequiredFiles,
			SetupCommands: cmds,
		}
	}
	return out, nil
}
