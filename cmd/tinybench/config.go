package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config drives one benchmark run. Every field has a default, so the
// YAML file is optional.
type Config struct {
	Entries  int      `yaml:"entries"`   // total key/value pairs per engine
	KeyLen   int      `yaml:"key_len"`   // random key length in bytes
	ValueLen int      `yaml:"value_len"` // random value length in bytes
	Cycles   int      `yaml:"cycles"`    // open/insert/query cycles (reopen between them)
	MixedOps int      `yaml:"mixed_ops"` // operations per mixed workload phase
	Engines  []string `yaml:"engines"`   // engines to evaluate, in order
	Output   string   `yaml:"output"`    // CSV result path
	Seed     int64    `yaml:"seed"`      // workload RNG seed
}

func defaultConfig() *Config {
	return &Config{
		Entries:  100000,
		KeyLen:   10,
		ValueLen: 6,
		Cycles:   1,
		MixedOps: 50000,
		Engines:  []string{"tinystore", "pebble", "bolt", "sqlite", "mem"},
		Output:   "results.csv",
		Seed:     1,
	}
}

// LoadConfig returns the defaults overlaid with the YAML file at path,
// when one is given.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if cfg.Cycles < 1 {
		cfg.Cycles = 1
	}
	if cfg.Entries < cfg.Cycles {
		return nil, fmt.Errorf("config: %d entries cannot spread over %d cycles", cfg.Entries, cfg.Cycles)
	}
	if cfg.KeyLen < 1 {
		return nil, fmt.Errorf("config: key_len must be at least 1")
	}
	return cfg, nil
}
