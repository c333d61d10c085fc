package stagerun

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// StageConfig is one stage's file-provided settings.
type StageConfig struct {
	Name      string `yaml:"name" toml:"name" json:"name"`
	Frequency uint32 `yaml:"frequency" toml:"frequency" json:"frequency"`
}

// StagesConfig is the file format for stage frequencies:
//
//	stages:
//	  - name: physics
//	    frequency: 60
//	  - name: render
//	    frequency: 30
//
// or the TOML equivalent with [[stages]] tables. Frequencies override the
// values stage builders were created with; at runtime the config watcher
// turns file edits into SetFrequency commands.
type StagesConfig struct {
	Stages []StageConfig `yaml:"stages" toml:"stages" json:"stages"`
}

// LoadStagesConfig reads a stage config file, choosing the decoder by file
// extension: .yaml/.yml or .toml.
func LoadStagesConfig(path string) (*StagesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stage config: %w", err)
	}

	cfg := &StagesConfig{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML stage config %s: %w", path, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing TOML stage config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, filepath.Ext(path))
	}
	return cfg, nil
}

// Frequencies returns the config as a name-to-frequency map.
func (c *StagesConfig) Frequencies() map[string]uint32 {
	out := make(map[string]uint32, len(c.Stages))
	for _, sc := range c.Stages {
		out[sc.Name] = sc.Frequency
	}
	return out
}
