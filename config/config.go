// Package config loads server and brain-weight settings from a YAML file
// using the same two-stage viper/yaml unmarshal the teacher used for
// training configuration (reinforcement.FromYaml): an outer envelope carries
// a free-form `def` block, which is re-marshaled and unmarshaled into the
// typed inner Config. This lets operators override individual brain weights
// or timing constants without touching code.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// outerConfig is the file's top-level envelope, mirroring
// reinforcement.OuterConfig.
type outerConfig struct {
	Kind string      `mapstructure:"kind"`
	Def  interface{} `mapstructure:"def"`
}

// HyperParameter is a named float override, the same shape the teacher used
// for RL training hyperparameters.
type HyperParameter struct {
	Key string  `yaml:"key"`
	Val float64 `yaml:"val"`
}

// Config holds every spec.md §6 constant as a named field. Brain weights are
// not named fields; they are read by key from the hyperParams block.
type Config struct {
	// Server
	Port string `yaml:"port"`

	// Timing, spec.md §6
	TickPeriodMs         int `yaml:"tickPeriodMs"`
	FrightenedDurationMs int `yaml:"frightenedDurationMs"`
	RespawnDelayMs       int `yaml:"respawnDelayMs"`
	MatchDurationMs      int `yaml:"matchDurationMs"`
	RoomTTLMs            int `yaml:"roomTtlMs"`

	// Grid
	GridWidth  int `yaml:"gridWidth"`
	GridHeight int `yaml:"gridHeight"`

	// Scoring
	CapturesToWin    int     `yaml:"capturesToWin"`
	BaseCaptureScore float64 `yaml:"baseCaptureScore"`
	CaptureMultiplier float64 `yaml:"captureMultiplier"`
	DotValue         int     `yaml:"dotValue"`
	PowerPelletValue int     `yaml:"powerPelletValue"`

	// Brain
	DefaultSearchDepth int    `yaml:"defaultSearchDepth"`
	ModelFilePath      string `yaml:"modelFilePath"`

	// HyperParams carries brain weights and any other tunable not promoted
	// to a named field above, looked up with GetHyperParamOrDefault.
	HyperParams []HyperParameter `yaml:"hyperParams"`
}

// Default returns the reference configuration, matching the constants in
// spec.md §6. It carries no hyperParams, so every brain weight lookup falls
// back to the default the caller passes in.
func Default() *Config {
	return &Config{
		Port: "8080",

		TickPeriodMs:         50,
		FrightenedDurationMs: 10000,
		RespawnDelayMs:       5000,
		MatchDurationMs:      180000,
		RoomTTLMs:            3600000,

		GridWidth:  28,
		GridHeight: 35,

		CapturesToWin:     3,
		BaseCaptureScore:  200,
		CaptureMultiplier: 1.5,
		DotValue:          10,
		PowerPelletValue:  50,

		DefaultSearchDepth: 12,
		ModelFilePath:      "",
	}
}

// GetHyperParamOrDefault looks up a named hyperparameter, falling back to
// defaultVal if it isn't present in the config file. Mirrors
// reinforcement.TrainingConfig.GetHyperParamOrDefault.
func (c *Config) GetHyperParamOrDefault(param string, defaultVal float64) float64 {
	for _, kvp := range c.HyperParams {
		if kvp.Key == param {
			return kvp.Val
		}
	}
	return defaultVal
}

// TickPeriod returns TickPeriodMs as a time.Duration.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.TickPeriodMs) * time.Millisecond
}

// FrightenedDuration returns FrightenedDurationMs as a time.Duration.
func (c *Config) FrightenedDuration() time.Duration {
	return time.Duration(c.FrightenedDurationMs) * time.Millisecond
}

// RespawnDelay returns RespawnDelayMs as a time.Duration.
func (c *Config) RespawnDelay() time.Duration {
	return time.Duration(c.RespawnDelayMs) * time.Millisecond
}

// MatchDuration returns MatchDurationMs as a time.Duration.
func (c *Config) MatchDuration() time.Duration {
	return time.Duration(c.MatchDurationMs) * time.Millisecond
}

// RoomTTL returns RoomTTLMs as a time.Duration.
func (c *Config) RoomTTL() time.Duration {
	return time.Duration(c.RoomTTLMs) * time.Millisecond
}

// FromYaml loads a Config from path, layering the file's values over
// Default(). Structured the same way as reinforcement.FromYaml: an outer
// viper unmarshal into a free-form `def` block, re-marshaled to YAML and
// unmarshaled into the typed Config.
func FromYaml(path string) (*Config, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.SetConfigType("yaml")
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, err
	}

	outer := &outerConfig{}
	if err := vp.Unmarshal(outer); err != nil {
		return nil, err
	}

	spec, err := yaml.Marshal(outer.Def)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(spec, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
