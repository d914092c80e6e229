// Package config loads the two structured documents this system owns
// from disk: the instructor-authored criteria/rubric file and the
// sandbox pool configuration file. Both are plain YAML, loaded once at
// process start or test setup and handed to the tree builder / sandbox
// manager as already-parsed values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"autograder/internal/grading/model"
)

// LoadCriteria reads and parses a criteria config document from path.
// It does not validate weights or subjects/tests exclusivity; that's
// the tree builder's job. This only gets the document off disk and
// into model.CriteriaConfig.
func LoadCriteria(path string) (model.CriteriaConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CriteriaConfig{}, fmt.Errorf("config: read criteria file %s: %w", path, err)
	}

	var cfg model.CriteriaConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.CriteriaConfig{}, fmt.Errorf("config: parse criteria file %s: %w", path, err)
	}
	return cfg, nil
}
