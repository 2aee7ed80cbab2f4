// Package config loads the YAML configuration file and applies environment
// overrides. All knobs have documented defaults; a missing file is not an
// error.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("60s", "2m") or bare second counts.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("parse duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("duration must be a string like \"60s\" or a second count: %w", err)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Config is the whole runtime configuration.
type Config struct {
	// Model settings.
	GeminiAPIKey string `yaml:"gemini_api_key"`
	Model        string `yaml:"model"`
	// GitHubToken raises the API rate limit and unlocks private repos.
	GitHubToken string `yaml:"github_token"`

	// Manifest limits.
	MaxUnits     int `yaml:"max_units"`
	MaxUnitBytes int `yaml:"max_unit_bytes"`

	// Planner budgets.
	K             int `yaml:"k"`
	BPlan         int `yaml:"b_plan"`
	HistoryWindow int `yaml:"history_window"`

	// Assembler budgets.
	BContext     int `yaml:"b_context"`
	FetchWorkers int `yaml:"fetch_workers"`
	CacheSize    int `yaml:"cache_size"`

	// Document splitter.
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`

	// Model call timeouts, as Go duration strings in YAML ("60s").
	PlannerTimeout   Duration `yaml:"planner_timeout"`
	ResponderTimeout Duration `yaml:"responder_timeout"`

	// DBPath enables the SQLite history store; empty keeps history in
	// memory only.
	DBPath string `yaml:"db_path"`

	// StateDir holds debug logs. Debug gates the category log files.
	StateDir string `yaml:"state_dir"`
	Debug    bool   `yaml:"debug"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Model:            "gemini-2.5-flash",
		MaxUnits:         2000,
		MaxUnitBytes:     100_000,
		K:                12,
		BPlan:            60_000,
		HistoryWindow:    4,
		BContext:         48_000,
		FetchWorkers:     4,
		CacheSize:        256,
		ChunkSize:        4000,
		ChunkOverlap:     200,
		PlannerTimeout:   Duration(60 * time.Second),
		ResponderTimeout: Duration(120 * time.Second),
		StateDir:         ".spoon",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file silently yields defaults plus env;
// a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv lets the environment override secrets and the model; secrets in
// files are a hazard the env path avoids.
func (c *Config) applyEnv() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.GeminiAPIKey = v
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHubToken = v
	}
	if v := os.Getenv("SPOON_MODEL"); v != "" {
		c.Model = v
	}
}

func (c *Config) validate() error {
	if c.K <= 0 {
		return fmt.Errorf("k must be positive, got %d", c.K)
	}
	if c.BPlan <= 0 || c.BContext <= 0 {
		return fmt.Errorf("plan/context budgets must be positive")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}
