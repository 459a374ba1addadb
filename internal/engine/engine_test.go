package engine

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mirage/internal/config"
	"mirage/internal/persona"
	"mirage/internal/scene"
	"mirage/internal/strategy"
	"mirage/internal/trigger"
)

func TestMain(m *testing.M) {
	// go.opencensus.io (via google.golang.org/genai) starts a worker
	// goroutine at package init that can never be stopped by tests.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// recordRunner captures executed commands per persona.
type recordRunner struct {
	calls map[string][]string
}

func newRecordRunner() *recordRunner {
	return &recordRunner{calls: map[string][]string{}}
}

func (r *recordRunner) Run(_ context.Context, username, cmd, _ string) (string, error) {
	r.calls[username] = append(r.calls[username], cmd)
	return "ok", nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.ConfigDir = t.TempDir()
	cfg.Defense.Enabled = false
	cfg.Execution.TypingCadence = "1ns"
	cfg.Cycle.SleepMin = "1s"
	cfg.Cycle.SleepMax = "1s"
	return cfg
}

func fixedClock(hour int) func() time.Time {
	at := time.Date(2025, 6, 2, hour, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func TestRunCycle_ActivePersonaPerformsScene(t *testing.T) {
	cfg := testConfig(t)
	runner := newRecordRunner()

	home := filepath.Join(cfg.ConfigDir, "home", "dev_alice")
	personas := persona.NewSet(map[string]persona.Persona{
		"dev_alice": {
			WorkHours:   [2]int{9, 17},
			Probability: 1.0,
			HomeDir:     home,
			Scenes: []scene.Scene{
				{Name: "Morning Routine", Category: scene.CategoryRoutine, Zone: home, Commands: []string{"echo hi"}},
			},
		},
	})

	eng := New(cfg, personas, nil, false, nil, Options{
		Now:    fixedClock(10),
		Rng:    rand.New(rand.NewSource(21)),
		Runner: runner,
	})

	require.NoError(t, eng.RunCycle(context.Background(), strategy.StrategyCatalog))

	assert.Equal(t, []string{"echo hi"}, runner.calls["dev_alice"])
	assert.Equal(t, "Morning Routine", eng.State().LastScene("dev_alice"))

	// History artifact written for a non-dry run.
	_, err := os.Stat(filepath.Join(home, ".bash_history"))
	assert.NoError(t, err)

	// Cycle state persisted.
	_, err = os.Stat(cfg.StatePath())
	assert.NoError(t, err)
}

func TestRunCycle_TriggerForcesOffHoursPersona(t *testing.T) {
	cfg := testConfig(t)
	runner := newRecordRunner()

	// Pending event and a rule targeting sys_bob, written before the
	// engine loads its library and state.
	rules := []trigger.Rule{
		{Source: "any", Pattern: "OOM", Event: "server_down", Target: "sys_bob", SceneKeyword: "Restart"},
	}
	writeJSON(t, filepath.Join(cfg.ConfigDir, "triggers.json"), rules)
	writeJSON(t, cfg.StatePath(), map[string]any{
		"global_events": []string{"server_down"},
		"users":         map[string]any{},
	})

	home := filepath.Join(cfg.ConfigDir, "home", "sys_bob")
	personas := persona.NewSet(map[string]persona.Persona{
		"sys_bob": {
			// Night shift: hour 10 is far outside the window.
			WorkHours:   [2]int{1, 2},
			Probability: 1.0,
			HomeDir:     home,
			Scenes: []scene.Scene{
				{Name: "Restart Service", Category: scene.CategoryResponsive, Zone: home, Commands: []string{"sudo systemctl restart app"}},
			},
		},
	})

	eng := New(cfg, personas, nil, false, nil, Options{
		Now:    fixedClock(10),
		Rng:    rand.New(rand.NewSource(21)),
		Runner: runner,
	})

	require.NoError(t, eng.RunCycle(context.Background(), ""))

	assert.Equal(t, []string{"sudo systemctl restart app"}, runner.calls["sys_bob"])
	assert.Empty(t, eng.State().GlobalEvents, "trigger event should be consumed")
}

func TestRunCycle_DryRunLeavesNoHistory(t *testing.T) {
	cfg := testConfig(t)

	home := filepath.Join(cfg.ConfigDir, "home", "dev_alice")
	personas := persona.NewSet(map[string]persona.Persona{
		"dev_alice": {
			WorkHours:   [2]int{9, 17},
			Probability: 1.0,
			HomeDir:     home,
			Scenes: []scene.Scene{
				{Name: "Morning Routine", Category: scene.CategoryRoutine, Zone: home, Commands: []string{"echo hi"}},
			},
		},
	})

	eng := New(cfg, personas, nil, true, nil, Options{
		Now: fixedClock(10),
		Rng: rand.New(rand.NewSource(21)),
	})

	require.NoError(t, eng.RunCycle(context.Background(), strategy.StrategyCatalog))

	_, err := os.Stat(filepath.Join(home, ".bash_history"))
	assert.True(t, os.IsNotExist(err), "dry run must not write history")
	assert.Equal(t, "Morning Routine", eng.State().LastScene("dev_alice"))
}

func TestRunCycle_AdvancesProjectDay(t *testing.T) {
	cfg := testConfig(t)
	personas := persona.NewSet(nil)

	eng := New(cfg, personas, nil, true, nil, Options{
		Now: fixedClock(10),
		Rng: rand.New(rand.NewSource(21)),
	})

	day := eng.Library().CurrentDay()
	require.NoError(t, eng.RunCycle(context.Background(), ""))
	assert.Equal(t, day+1, eng.Library().CurrentDay())
}

func TestLoop_StopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	personas := persona.NewSet(nil)

	eng := New(cfg, personas, nil, true, nil, Options{
		Rng: rand.New(rand.NewSource(21)),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- eng.Loop(ctx, "")
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
