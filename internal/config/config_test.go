package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/attention/internal/scheduler"
	"github.com/ShayCichocki/attention/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, models.DefaultBudget(), cfg.Budget)
	assert.Equal(t, models.DefaultPriorityWeights(), cfg.Weights)
	assert.Equal(t, scheduler.DefaultScanThresholds(), cfg.Scan)
	assert.Equal(t, scheduler.DefaultAllocateBatch, cfg.Scheduler.AllocateBatch)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.TickInterval)
	assert.Empty(t, cfg.Paths.StateDB)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromPath(t *testing.T) {
	path := writeConfig(t, `
budget:
  max_items_per_cycle: 4
  cycle_duration: 15m
weights:
  effort: -0.3
scheduler:
  tick_interval: 5s
scan:
  min_hot_node_score: 0.6
paths:
  roster: /etc/attention/roster.yaml
`)

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Budget.MaxItemsPerCycle)
	assert.Equal(t, 15*time.Minute, cfg.Budget.CycleDuration)
	// Unset keys keep their defaults.
	assert.Equal(t, models.DefaultBudget().MaxTurnsPerItem, cfg.Budget.MaxTurnsPerItem)
	assert.InDelta(t, -0.3, cfg.Weights.Effort, 1e-9)
	assert.InDelta(t, models.DefaultPriorityWeights().Impact, cfg.Weights.Impact, 1e-9)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.TickInterval)
	assert.InDelta(t, 0.6, cfg.Scan.MinHotNodeScore, 1e-9)
	assert.Equal(t, "/etc/attention/roster.yaml", cfg.Paths.Roster)
}

func TestLoadFromPath_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "budget:\n  max_parallel_sessions: 2\n")
	t.Setenv("ATTENTION_BUDGET_MAX_PARALLEL_SESSIONS", "7")
	t.Setenv("ATTENTION_SCHEDULER_TICK_INTERVAL", "1m")
	t.Setenv("ATTENTION_DATA", "/srv/data")
	t.Setenv("ATTENTION_PATHS_SIGNALS", "${ATTENTION_DATA}/signals.yaml")

	cfg, err := LoadFromPath(path)
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Budget.MaxParallelSessions)
	assert.Equal(t, time.Minute, cfg.Scheduler.TickInterval)
	assert.Equal(t, "/srv/data/signals.yaml", cfg.Paths.Signals)
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	userDir := filepath.Join(xdg, "attention")
	require.NoError(t, os.MkdirAll(userDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"),
		[]byte("budget:\n  max_items_per_cycle: 3\n  max_turns_per_item: 5\n"), 0644))

	project := t.TempDir()
	nested := filepath.Join(project, "sub", "dir")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, ProjectConfigName),
		[]byte("budget:\n  max_items_per_cycle: 8\n"), 0644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(nested))
	t.Cleanup(func() { os.Chdir(wd) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Budget.MaxItemsPerCycle)
	assert.Equal(t, 5, cfg.Budget.MaxTurnsPerItem)
	assert.Equal(t, filepath.Join(userDir, "config.yaml"), GetUserConfigPath())
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	got, err := Get(cfg, "budget.max_turns_per_item")
	require.NoError(t, err)
	assert.Equal(t, "12", got)

	require.NoError(t, Set(cfg, "budget.max_turns_per_item", "6"))
	require.NoError(t, Set(cfg, "Budget.Cycle_Duration", "30m"))
	require.NoError(t, Set(cfg, "weights.risk", "0.5"))
	require.NoError(t, Set(cfg, "paths.state_db", "/tmp/archive.db"))

	assert.Equal(t, 6, cfg.Budget.MaxTurnsPerItem)
	assert.Equal(t, 30*time.Minute, cfg.Budget.CycleDuration)
	assert.InDelta(t, 0.5, cfg.Weights.Risk, 1e-9)
	assert.Equal(t, "/tmp/archive.db", cfg.Paths.StateDB)
	// Untouched keys survive a Set.
	assert.Equal(t, models.DefaultBudget().MaxItemsPerCycle, cfg.Budget.MaxItemsPerCycle)

	got, err = Get(cfg, "budget.cycle_duration")
	require.NoError(t, err)
	assert.Equal(t, "30m0s", got)
}

func TestGetSet_Errors(t *testing.T) {
	cfg := Default()

	_, err := Get(cfg, "model.api_key")
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.ErrorIs(t, Set(cfg, "nope", "1"), ErrUnknownKey)
	assert.Error(t, Set(cfg, "budget.max_turns_per_item", "many"))
	assert.Error(t, Set(cfg, "scheduler.tick_interval", "soon"))
	assert.Equal(t, models.DefaultBudget().MaxTurnsPerItem, cfg.Budget.MaxTurnsPerItem)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	cfg := Default()
	require.NoError(t, Set(cfg, "budget.max_items_per_cycle", "25"))
	require.NoError(t, Set(cfg, "scheduler.tick_interval", "90s"))

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, SaveTo(cfg, path))

	loaded, err := LoadFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Budget.MaxItemsPerCycle)
	assert.Equal(t, 90*time.Second, loaded.Scheduler.TickInterval)
	assert.Equal(t, cfg.Weights, loaded.Weights)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "budget.max_parallel_sessions")
	assert.Contains(t, keys, "paths.log_file")
	assert.IsIncreasing(t, keys)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ATTENTION_TEST_DOTENV=loaded\n"), 0644))
	t.Setenv("ATTENTION_TEST_DOTENV", "")
	os.Unsetenv("ATTENTION_TEST_DOTENV")

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), envFile))
	assert.Equal(t, "loaded", os.Getenv("ATTENTION_TEST_DOTENV"))
}

func TestSchedulerOptions(t *testing.T) {
	cfg := Default()
	cfg.Budget.MaxParallelSessions = 1

	s := scheduler.New(scheduler.NewWorkerRegistry(), cfg.SchedulerOptions()...)
	assert.Equal(t, 1, s.Budget().MaxParallelSessions)
	assert.Equal(t, cfg.Weights, s.Weights())
}
