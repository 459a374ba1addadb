// Package config holds the engine configuration: a YAML file layered
// under environment overrides, with usable defaults when neither
// exists. Bad configuration never aborts the engine; it degrades to
// defaults and logs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full engine configuration.
type Config struct {
	// ConfigDir anchors all data files (personas, templates,
	// triggers, state, cache). Relative paths resolve against it.
	ConfigDir string `yaml:"config_dir"`

	// PersonaFile is the persona spec, relative to ConfigDir.
	PersonaFile string `yaml:"persona_file"`
	// StateFile is the cycle-state record, relative to ConfigDir.
	StateFile string `yaml:"state_file"`

	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Cycle     CycleConfig     `yaml:"cycle"`
	Defense   DefenseConfig   `yaml:"defense"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig configures the generative collaborator.
type LLMConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

// ExecutionConfig configures the execution engine.
type ExecutionConfig struct {
	// CommandTimeout is the hard per-command timeout.
	CommandTimeout string `yaml:"command_timeout"`
	// TypingCadence bounds the pause between commands.
	TypingCadence string `yaml:"typing_cadence"`
	// Sudo switches user context via sudo -u when running as root.
	Sudo bool `yaml:"sudo"`
	// DryRun logs commands instead of executing them.
	DryRun bool `yaml:"dry_run"`
	// Noise enables the humanizer (typos, status checks).
	Noise bool `yaml:"noise"`
}

// CycleConfig configures the controller loop.
type CycleConfig struct {
	// SleepMin/SleepMax bound the jittered inter-cycle interval.
	SleepMin string `yaml:"sleep_min"`
	SleepMax string `yaml:"sleep_max"`
}

// DefenseConfig configures the honeyport listeners.
type DefenseConfig struct {
	Enabled bool   `yaml:"enabled"`
	Ports   []int  `yaml:"ports"`
	Banner  string `yaml:"banner"`
}

// LoggingConfig configures the stealth log sink.
type LoggingConfig struct {
	// File receives all log output. Console output is deliberately
	// absent: an attacker tailing the journal must see nothing.
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		ConfigDir:   ".",
		PersonaFile: "personas.json",
		StateFile:   "state.json",
		LLM: LLMConfig{
			Model:   "gemini-2.0-flash",
			Timeout: "60s",
		},
		Execution: ExecutionConfig{
			CommandTimeout: "30s",
			TypingCadence:  "4s",
		},
		Cycle: CycleConfig{
			SleepMin: "10m",
			SleepMax: "25m",
		},
		Defense: DefenseConfig{
			Enabled: true,
			Ports:   []int{8080, 2222, 2121},
			Banner:  "Internal Service Error 500: Check Logs\n",
		},
		Logging: LoggingConfig{
			File:  "monitor_debug.log",
			Level: "info",
		},
	}
}

// Load reads configuration from a YAML file, tolerating a missing
// file, then applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("MIRAGE_CONFIG_DIR"); v != "" {
		c.ConfigDir = v
	} else if v := os.Getenv("CONFIG_DIR"); v != "" {
		c.ConfigDir = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("MIRAGE_DRY_RUN"); v == "1" || v == "true" {
		c.Execution.DryRun = true
	}
}

// Path resolves a data file name against the config directory.
func (c *Config) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.ConfigDir, name)
}

// PersonaPath returns the resolved persona spec path.
func (c *Config) PersonaPath() string { return c.Path(c.PersonaFile) }

// StatePath returns the resolved state file path.
func (c *Config) StatePath() string { return c.Path(c.StateFile) }

// LogPath returns the resolved log file path.
func (c *Config) LogPath() string { return c.Path(c.Logging.File) }

func (c *Config) duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// CommandTimeout returns the parsed per-command timeout.
func (c *Config) CommandTimeout() time.Duration {
	return c.duration(c.Execution.CommandTimeout, 30*time.Second)
}

// TypingCadence returns the parsed inter-command pause bound.
func (c *Config) TypingCadence() time.Duration {
	return c.duration(c.Execution.TypingCadence, 4*time.Second)
}

// LLMTimeout returns the parsed generation timeout.
func (c *Config) LLMTimeout() time.Duration {
	return c.duration(c.LLM.Timeout, 60*time.Second)
}

// SleepBounds returns the jittered inter-cycle sleep interval,
// normalized so min <= max.
func (c *Config) SleepBounds() (time.Duration, time.Duration) {
	lo := c.duration(c.Cycle.SleepMin, 10*time.Minute)
	hi := c.duration(c.Cycle.SleepMax, 25*time.Minute)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// Validate reports configuration that cannot work at all.
func (c *Config) Validate() error {
	if c.LLM.Enabled && c.LLM.APIKey == "" {
		return fmt.Errorf("llm enabled but no API key configured (set GEMINI_API_KEY)")
	}
	return nil
}
