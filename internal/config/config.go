// Package config handles configuration loading and management for the
// attention scheduler. It supports XDG config paths, project-level
// overrides, .env files and ATTENTION_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/pkg/models"
)

// ProjectConfigName is the project-level override file searched upward from
// the working directory.
const ProjectConfigName = ".attention.yaml"

// EnvPrefix prefixes every environment override, e.g. ATTENTION_BUDGET_MAX_TURNS_PER_ITEM.
const EnvPrefix = "ATTENTION"

// ErrUnknownKey is returned by Get and Set for keys outside the schema.
var ErrUnknownKey = errors.New("unknown configuration key")

// Config holds all configuration for the scheduler and its collaborators.
type Config struct {
	Budget    models.Budget            `mapstructure:"budget"`
	Weights   models.PriorityWeights   `mapstructure:"weights"`
	Scheduler SchedulerConfig          `mapstructure:"scheduler"`
	Scan      scheduler.ScanThresholds `mapstructure:"scan"`
	Paths     PathsConfig              `mapstructure:"paths"`
}

// SchedulerConfig holds run loop settings.
type SchedulerConfig struct {
	// AllocateBatch is the default k for an allocation pass.
	AllocateBatch int `mapstructure:"allocate_batch"`
	// TickInterval is how often the daemon expires, scans and allocates.
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

// PathsConfig holds collaborator file locations. Empty values disable the
// collaborator.
type PathsConfig struct {
	Roster  string `mapstructure:"roster"`
	Signals string `mapstructure:"signals"`
	StateDB string `mapstructure:"state_db"`
	LogFile string `mapstructure:"log_file"`
}

// SchedulerOptions translates the loaded configuration into scheduler options.
func (c *Config) SchedulerOptions() []scheduler.Option {
	return []scheduler.Option{
		scheduler.WithBudget(c.Budget),
		scheduler.WithWeights(c.Weights),
		scheduler.WithScanThresholds(c.Scan),
		scheduler.WithAllocateBatch(c.Scheduler.AllocateBatch),
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Missing files are ignored and existing
// variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ATTENTION_*)
// 2. Project config (.attention.yaml in current directory or parent)
// 3. User config (~/.config/attention/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific file, still honoring
// environment overrides.
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Paths.Roster = expandPath(cfg.Paths.Roster)
	cfg.Paths.Signals = expandPath(cfg.Paths.Signals)
	cfg.Paths.StateDB = expandPath(cfg.Paths.StateDB)
	cfg.Paths.LogFile = expandPath(cfg.Paths.LogFile)
	return cfg, nil
}

// Save writes cfg to the user config file.
func Save(cfg *Config) error {
	return SaveTo(cfg, GetUserConfigPath())
}

// SaveTo writes cfg as YAML to path, creating parent directories.
func SaveTo(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for key, value := range flatten(cfg) {
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		v.Set(key, value)
	}
	return v.WriteConfigAs(path)
}

// Keys returns every recognized dotted key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(defaults()))
	for k := range defaults() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of a dotted key formatted for display.
func Get(cfg *Config, key string) (string, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	value, ok := flatten(cfg)[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return fmt.Sprint(value), nil
}

// Set parses value according to the key's type and stores it in cfg.
func Set(cfg *Config, key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	def, ok := defaults()[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}

	var parsed any
	var err error
	switch def.(type) {
	case int:
		parsed, err = strconv.Atoi(value)
	case float64:
		parsed, err = strconv.ParseFloat(value, 64)
	case time.Duration:
		parsed, err = time.ParseDuration(value)
	default:
		parsed = value
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}

	v := viper.New()
	for k, cur := range flatten(cfg) {
		v.Set(k, cur)
	}
	v.Set(key, parsed)
	next := &Config{}
	if err := v.Unmarshal(next); err != nil {
		return fmt.Errorf("applying %s: %w", key, err)
	}
	*cfg = *next
	return nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Budget:  models.DefaultBudget(),
		Weights: models.DefaultPriorityWeights(),
		Scheduler: SchedulerConfig{
			AllocateBatch: scheduler.DefaultAllocateBatch,
			TickInterval:  30 * time.Second,
		},
		Scan: scheduler.DefaultScanThresholds(),
	}
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
}

func defaults() map[string]any {
	return flatten(Default())
}

// flatten maps every dotted key to its current value.
func flatten(cfg *Config) map[string]any {
	return map[string]any{
		"budget.max_items_per_cycle":         cfg.Budget.MaxItemsPerCycle,
		"budget.max_turns_per_item":          cfg.Budget.MaxTurnsPerItem,
		"budget.max_parallel_sessions":       cfg.Budget.MaxParallelSessions,
		"budget.max_deep_synthesis_per_user": cfg.Budget.MaxDeepSynthesisPerUser,
		"budget.max_proposals_per_cycle":     cfg.Budget.MaxProposalsPerCycle,
		"budget.cycle_duration":              cfg.Budget.CycleDuration,

		"weights.impact":                 cfg.Weights.Impact,
		"weights.risk":                   cfg.Weights.Risk,
		"weights.uncertainty":            cfg.Weights.Uncertainty,
		"weights.novelty":                cfg.Weights.Novelty,
		"weights.contradiction_pressure": cfg.Weights.ContradictionPressure,
		"weights.governance_pressure":    cfg.Weights.GovernancePressure,
		"weights.effort":                 cfg.Weights.Effort,

		"scheduler.allocate_batch": cfg.Scheduler.AllocateBatch,
		"scheduler.tick_interval":  cfg.Scheduler.TickInterval,

		"scan.min_contradictions":     cfg.Scan.MinContradictions,
		"scan.max_low_confidence":     cfg.Scan.MaxLowConfidence,
		"scan.min_usage":              cfg.Scan.MinUsage,
		"scan.min_governance_backlog": cfg.Scan.MinGovernanceBacklog,
		"scan.min_isolated_nodes":     cfg.Scan.MinIsolatedNodes,
		"scan.min_hot_node_score":     cfg.Scan.MinHotNodeScore,

		"paths.roster":   cfg.Paths.Roster,
		"paths.signals":  cfg.Paths.Signals,
		"paths.state_db": cfg.Paths.StateDB,
		"paths.log_file": cfg.Paths.LogFile,
	}
}

// getUserConfigDir returns the XDG config directory for attention.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "attention")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "attention")
	}
	return filepath.Join(home, ".config", "attention")
}

// findProjectConfig searches for .attention.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ProjectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandPath expands ${VAR} references and a leading ~/.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}
