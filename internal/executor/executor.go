// Package executor runs scenes against the host under a persona's
// identity, with bounded adaptive retry and living-filesystem side
// effects. A single command's unrecoverable failure never aborts the
// rest of its scene: deception realism outranks strict error
// propagation.
package executor

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mirage/internal/content"
	"mirage/internal/persona"
	"mirage/internal/scene"
	"mirage/internal/state"
	"mirage/internal/trigger"
)

// MaxAttempts bounds the adaptive retry loop per command, counting
// the first execution.
const MaxAttempts = 3

// maxFileContext caps how much of an implicated file is handed to the
// fix collaborator.
const maxFileContext = 2000

// Engine executes scenes.
type Engine struct {
	runner   Runner
	fixer    content.Generator // nil disables adaptive retry
	history  *History
	triggers *trigger.Registry
	lib      *content.Library // nil disables file-index tracking

	cadence time.Duration
	dry     bool

	rng *rand.Rand
	now func() time.Time
	log *zap.Logger
}

// Options configures an Engine beyond its collaborators.
type Options struct {
	// Cadence is the upper bound of the human-typing pause between
	// commands. Zero disables pausing (tests).
	Cadence time.Duration
	// DryRun skips directory preparation and history writes in
	// addition to using a log-only runner.
	DryRun bool
	// Now overrides the clock.
	Now func() time.Time
	// Rng overrides the random source.
	Rng *rand.Rand
}

// New creates an execution engine.
func New(runner Runner, fixer content.Generator, triggers *trigger.Registry, lib *content.Library, opts Options, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rng := opts.Rng
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{
		runner:   runner,
		fixer:    fixer,
		history:  NewHistory(now, log),
		triggers: triggers,
		lib:      lib,
		cadence:  opts.Cadence,
		dry:      opts.DryRun,
		rng:      rng,
		now:      now,
		log:      log.Named("executor"),
	}
}

// RunScene performs the scene as the persona: per command it prepares
// implied directories, records history, executes with bounded
// adaptive retry, then updates the cycle state and fires triggers
// from the executed command list. A scene with zero commands is a
// no-op.
func (e *Engine) RunScene(ctx context.Context, st *state.State, p persona.Persona, sc *scene.Scene) {
	if sc.Empty() {
		return
	}

	runID := uuid.NewString()
	log := e.log.With(
		zap.String("run_id", runID),
		zap.String("persona", p.Name),
		zap.String("scene", sc.Name))
	log.Info("executing scene", zap.Int("commands", len(sc.Commands)))

	zone := sc.Zone
	if zone == "" {
		zone = p.HomeDir
	}

	for i, cmd := range sc.Commands {
		if ctx.Err() != nil {
			log.Warn("scene interrupted", zap.Int("at", i))
			break
		}
		e.runCommand(ctx, log, p, cmd, zone)
		e.pause(ctx)
	}

	st.RecordRun(p.Name, sc.Name, e.now().Unix())
	e.trackCreatedFiles(sc.Commands, zone)
	if e.triggers != nil {
		e.triggers.Process(st, p.Name, sc.Commands)
	}
}

// runCommand executes one logical step with the adaptive retry loop.
// The step is abandoned (logged, not propagated) when the fix
// collaborator is absent, returns the unchanged command, or the
// attempt bound is reached.
func (e *Engine) runCommand(ctx context.Context, log *zap.Logger, p persona.Persona, cmd, zone string) {
	if !e.dry {
		e.prepareDirs(cmd, zone)
	}

	current := cmd
	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if !e.dry {
			e.history.Append(p.Name, p.HomeDir, current)
		}

		_, err := e.runner.Run(ctx, p.Name, current, zone)
		if err == nil {
			if attempt > 1 {
				log.Info("command recovered", zap.String("cmd", current), zap.Int("attempt", attempt))
			}
			return
		}

		log.Warn("command failed",
			zap.String("cmd", current),
			zap.Int("attempt", attempt),
			zap.Int("max", MaxAttempts),
			zap.Error(err))

		if e.fixer == nil || attempt == MaxAttempts {
			break
		}

		next, ok := e.applyFix(ctx, log, current, err.Error(), zone)
		if !ok {
			break
		}
		current = next
	}
	log.Warn("command abandoned", zap.String("cmd", current))
}

// applyFix consults the fix collaborator. It returns the command for
// the next attempt, or ok=false when the step should be abandoned. A
// file fix rewrites the implicated file and retries the same command;
// a command fix identical to the failing one means the collaborator
// is out of ideas.
func (e *Engine) applyFix(ctx context.Context, log *zap.Logger, cmd, errText, zone string) (string, bool) {
	fix, err := e.fixer.FixError(ctx, cmd, errText, e.fileContext(cmd, zone))
	if err != nil {
		log.Warn("fix request failed", zap.Error(err))
		return "", false
	}

	switch fix.Kind {
	case content.FixFile:
		log.Info("applying file fix", zap.String("path", fix.Path))
		if err := os.MkdirAll(filepath.Dir(fix.Path), 0o755); err != nil {
			log.Warn("file fix failed", zap.Error(err))
			return "", false
		}
		if err := os.WriteFile(fix.Path, []byte(fix.Content), 0o644); err != nil {
			log.Warn("file fix failed", zap.Error(err))
			return "", false
		}
		return cmd, true
	case content.FixCommand:
		if fix.Content == cmd {
			log.Info("fix unchanged, abandoning step")
			return "", false
		}
		log.Info("retrying with fixed command", zap.String("cmd", fix.Content))
		return fix.Content, true
	default:
		return "", false
	}
}

// fileContext reads a capped prefix of the last file-like argument of
// a failing command, to give the fix collaborator something to work
// with.
func (e *Engine) fileContext(cmd, zone string) string {
	var candidate string
	for _, part := range strings.Fields(cmd) {
		if strings.ContainsAny(part, "/.") && !strings.HasPrefix(part, "-") {
			candidate = part
		}
	}
	if candidate == "" {
		return ""
	}
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(zone, candidate)
	}
	data, err := os.ReadFile(candidate)
	if err != nil {
		return ""
	}
	if len(data) > maxFileContext {
		data = data[:maxFileContext]
	}
	return string(data)
}

// prepareDirs creates the directories a command implies before it
// runs, so the filesystem the intruder inspects looks lived-in.
// Failures are swallowed: preparation must never block execution.
func (e *Engine) prepareDirs(cmd, zone string) {
	if err := os.MkdirAll(zone, 0o755); err != nil {
		e.log.Debug("zone preparation failed", zap.String("zone", zone), zap.Error(err))
	}
	for _, arg := range impliedPaths(cmd, zone) {
		if err := os.MkdirAll(arg, 0o755); err != nil {
			e.log.Debug("dir preparation failed", zap.String("dir", arg), zap.Error(err))
		}
	}
}

// impliedPaths derives the parent directories of a command's
// file-like arguments. Heuristic, deliberately loose: an extra mkdir
// is harmless, a missing one fails a scene step.
func impliedPaths(cmd, zone string) []string {
	var dirs []string
	for _, part := range strings.Fields(cmd) {
		if strings.HasPrefix(part, "-") || !strings.Contains(part, "/") {
			continue
		}
		if strings.HasPrefix(part, "~") {
			continue
		}
		p := part
		if !filepath.IsAbs(p) {
			p = filepath.Join(zone, p)
		}
		dirs = append(dirs, filepath.Dir(p))
	}
	return dirs
}

// trackCreatedFiles records files the scene appears to have created
// (touch and shell redirection) into the project index.
func (e *Engine) trackCreatedFiles(commands []string, zone string) {
	if e.lib == nil {
		return
	}
	for _, cmd := range commands {
		parts := strings.Fields(cmd)
		var created string
		for i, part := range parts {
			if (part == "touch" || part == ">") && i+1 < len(parts) {
				created = parts[i+1]
				break
			}
		}
		if created == "" {
			continue
		}
		if !filepath.IsAbs(created) {
			created = filepath.Join(zone, created)
		}
		e.lib.UpdateFileIndex(created, "Auto-generated file")
	}
}

// pause sleeps a short random interval between commands to mimic
// human typing cadence, returning early on cancellation.
func (e *Engine) pause(ctx context.Context) {
	if e.cadence <= 0 {
		return
	}
	d := time.Duration(1+e.rng.Int63n(int64(e.cadence)/int64(time.Second)+1)) * time.Second
	if d > e.cadence {
		d = e.cadence
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
