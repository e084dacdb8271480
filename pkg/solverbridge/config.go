package solverbridge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LaunchConfig is the on-disk description of how to spawn a solver
// subprocess: the executable, its fixed arguments, and the log level
// passed through the SOLVER_LOG_LEVEL environment variable.
type LaunchConfig struct {
	Command  string   `yaml:"command"`
	Args     []string `yaml:"args"`
	LogLevel string   `yaml:"log_level"`
}

func (c LaunchConfig) validate() error {
	if c.Command == "" {
		return fmt.Errorf("command must not be empty")
	}
	return nil
}

// Bridge constructs a Bridge from the launch configuration.
func (c LaunchConfig) Bridge() *Bridge {
	b := NewBridge(c.Command, c.Args)
	if c.LogLevel != "" {
		b.env = append(b.env, "SOLVER_LOG_LEVEL="+c.LogLevel)
	}
	return b
}

// LoadLaunchConfig reads and validates a YAML solver launch file.
func LoadLaunchConfig(path string) (*LaunchConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config LaunchConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing launch config %s: %w", path, err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid launch config %s: %w", path, err)
	}
	return &config, nil
}
