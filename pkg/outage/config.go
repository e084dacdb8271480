package outage

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RatesConfig is the on-disk form of a Monte Carlo run's parameters:
// failure rates, demand spread, and the run size itself. It exists so
// study configurations travel as files rather than hard-coded values.
type RatesConfig struct {
	Seed              uint64  `yaml:"seed"`
	NumScenarios      int     `yaml:"num_scenarios"`
	GenFailureRate    float64 `yaml:"gen_failure_rate"`
	BranchFailureRate float64 `yaml:"branch_failure_rate"`
	DemandMin         float64 `yaml:"demand_min"`
	DemandMax         float64 `yaml:"demand_max"`
}

// Rates converts the file form into the generator's parameter struct.
func (c RatesConfig) Rates() Rates {
	return Rates{
		GenFailureRate:    c.GenFailureRate,
		BranchFailureRate: c.BranchFailureRate,
		DemandMin:         c.DemandMin,
		DemandMax:         c.DemandMax,
	}
}

func (c RatesConfig) validate() error {
	if c.NumScenarios <= 0 {
		return fmt.Errorf("num_scenarios must be positive, got %d", c.NumScenarios)
	}
	if c.GenFailureRate < 0 || c.GenFailureRate > 1 {
		return fmt.Errorf("gen_failure_rate must be in [0, 1], got %v", c.GenFailureRate)
	}
	if c.BranchFailureRate < 0 || c.BranchFailureRate > 1 {
		return fmt.Errorf("branch_failure_rate must be in [0, 1], got %v", c.BranchFailureRate)
	}
	if c.DemandMin != 0 || c.DemandMax != 0 {
		if c.DemandMin < 0 || c.DemandMax < c.DemandMin {
			return fmt.Errorf("demand range [%v, %v] is not a valid interval", c.DemandMin, c.DemandMax)
		}
	}
	return nil
}

// LoadRatesConfig reads and validates a YAML rates file.
func LoadRatesConfig(path string) (*RatesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config RatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing rates config %s: %w", path, err)
	}
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid rates config %s: %w", path, err)
	}
	return &config, nil
}
