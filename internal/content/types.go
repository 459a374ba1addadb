// Package content manages the deception assets the engine consumes:
// scene templates, cached command assets, trigger rules, the forecast
// queue, breadcrumbs, and the virtual project state. It also defines
// the Generator boundary behind which the LLM collaborator lives.
package content

import (
	"context"
	"strconv"

	"mirage/internal/scene"
)

// Context is the bundle handed to the generative collaborator so that
// generated scenes stay causally consistent with the running
// narrative.
type Context struct {
	NarrativeArc string `json:"narrative_arc"`
	CurrentDay   int    `json:"current_day"`
	DailyFocus   string `json:"daily_task"`
	RecentScene  string `json:"recent_history"`
	BuildStatus  string `json:"build_status"`
}

// FixKind discriminates the two repair shapes a Generator can return.
type FixKind string

const (
	// FixCommand replaces the failing command.
	FixCommand FixKind = "command"
	// FixFile rewrites an implicated file, then the original command
	// is retried.
	FixFile FixKind = "file"
)

// Fix is the Generator's answer to a failed command.
type Fix struct {
	Kind    FixKind `json:"type"`
	Path    string  `json:"path,omitempty"`
	Content string  `json:"content"`
}

// Generator is the LLM collaborator surface. Implementations must
// return well-formed scenes or fail gracefully; callers always have a
// deterministic fallback.
type Generator interface {
	// GenerateScene produces a fresh scene for the persona, or an
	// error when generation fails or the content is malformed.
	GenerateScene(ctx context.Context, personaName, homeDir string, c Context) (*scene.Scene, error)

	// FixError proposes a repair for a failing command.
	FixError(ctx context.Context, command, errText, fileContext string) (Fix, error)

	// GenerateAssets produces a fresh pool of commands for an asset
	// kind ("vuln" or "honeytoken").
	GenerateAssets(ctx context.Context, kind string) ([]string, error)

	// GenerateBatchScenes produces count future scenes for the
	// forecast queue.
	GenerateBatchScenes(ctx context.Context, count int) ([]ForecastScene, error)

	// GenerateBreadcrumbs produces leakable hint strings of the given
	// flavor ("logs" or "chat").
	GenerateBreadcrumbs(ctx context.Context, flavor string) ([]string, error)

	// GeneratePlan produces a new narrative arc with per-day focus
	// strings.
	GeneratePlan(ctx context.Context) (*Plan, error)
}

// ForecastScene is a queued future scene bound to the persona meant
// to perform it.
type ForecastScene struct {
	User string `json:"user"`
	scene.Scene
}

// Plan is the long-horizon narrative the engine performs against.
type Plan struct {
	NarrativeArc string         `json:"narrative_arc"`
	DailyTasks   map[string]string `json:"daily_tasks"`
}

// Focus returns the plan's focus string for a day, or a generic
// default.
func (p *Plan) Focus(day int) string {
	if p == nil {
		return "General Maintenance"
	}
	if task, ok := p.DailyTasks[strconv.Itoa(day)]; ok && task != "" {
		return task
	}
	return "General Maintenance"
}
