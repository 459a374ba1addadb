package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"mirage/internal/scene"
)

// DefaultModel is used when the config names no model.
const DefaultModel = "gemini-2.0-flash"

// Gemini implements Generator against the Google GenAI API. Every
// structured call requests JSON output and strips markdown fences
// before parsing; malformed content is an error, never a panic.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	log     *zap.Logger
}

// NewGemini creates the Gemini-backed generator.
func NewGemini(ctx context.Context, apiKey, model string, timeout time.Duration, log *zap.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model, timeout: timeout, log: log.Named("gemini")}, nil
}

// completeJSON runs one generation call expecting a JSON document.
func (g *Gemini) completeJSON(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.client.Models.GenerateContent(callCtx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("genai call: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if text == "" {
		return "", fmt.Errorf("genai returned empty response")
	}
	return strings.TrimSpace(text), nil
}

// GenerateScene asks for one scene for the persona, grounded in the
// running narrative.
func (g *Gemini) GenerateScene(ctx context.Context, personaName, homeDir string, c Context) (*scene.Scene, error) {
	prompt := fmt.Sprintf(`You are simulating the Linux shell activity of user %q (home: %s).
Narrative arc: %s. Day %d focus: %s. Build status: %s. Their previous session: %s.

Produce the next believable work session as JSON:
{"name": "...", "category": "Routine|Variant|Anomaly", "zone": "/absolute/working/dir", "commands": ["...", "..."]}
Commands must be plain POSIX shell, 3 to 8 of them, consistent with the focus. No destructive commands.`,
		personaName, homeDir, c.NarrativeArc, c.CurrentDay, c.DailyFocus, c.BuildStatus, c.RecentScene)

	raw, err := g.completeJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var s scene.Scene
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("malformed scene: %w", err)
	}
	if s.Name == "" || len(s.Commands) == 0 {
		return nil, fmt.Errorf("malformed scene: missing name or commands")
	}
	if s.Category == "" {
		s.Category = scene.CategoryRoutine
	}
	s.NormalizeZone()

	g.log.Debug("scene generated", zap.String("persona", personaName), zap.String("scene", s.Name))
	return &s, nil
}

// FixError asks for a repair for a failing command.
func (g *Gemini) FixError(ctx context.Context, command, errText, fileContext string) (Fix, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, `A simulated shell command failed.
Command: %s
Error: %s
`, command, errText)
	if fileContext != "" {
		fmt.Fprintf(&sb, "Relevant file content:\n%s\n", fileContext)
	}
	sb.WriteString(`Reply with JSON, one of:
{"type": "command", "content": "<replacement shell command>"}
{"type": "file", "path": "/abs/path", "content": "<full corrected file content>"}`)

	raw, err := g.completeJSON(ctx, sb.String())
	if err != nil {
		return Fix{}, err
	}

	var fix Fix
	if err := json.Unmarshal([]byte(raw), &fix); err != nil {
		return Fix{}, fmt.Errorf("malformed fix: %w", err)
	}
	switch fix.Kind {
	case FixCommand:
		if fix.Content == "" {
			return Fix{}, fmt.Errorf("malformed fix: empty command")
		}
	case FixFile:
		if fix.Path == "" {
			return Fix{}, fmt.Errorf("malformed fix: file fix without path")
		}
	default:
		return Fix{}, fmt.Errorf("malformed fix: unknown type %q", fix.Kind)
	}
	return fix, nil
}

// GenerateAssets produces a refreshed command pool for an asset kind.
func (g *Gemini) GenerateAssets(ctx context.Context, kind string) ([]string, error) {
	var desc string
	switch kind {
	case "vuln":
		desc = "shell commands that stage believable security misconfigurations (world-writable dirs, weak permissions, exposed config). Non-destructive."
	case "honeytoken":
		desc = "shell commands that plant enticing fake credentials (API keys, .aws/credentials, .env secrets). All values fake."
	default:
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}

	raw, err := g.completeJSON(ctx, fmt.Sprintf(
		`Produce a JSON array of 8 distinct single-line %s Example shape: ["cmd one", "cmd two"]`, desc))
	if err != nil {
		return nil, err
	}

	var cmds []string
	if err := json.Unmarshal([]byte(raw), &cmds); err != nil {
		return nil, fmt.Errorf("malformed asset list: %w", err)
	}
	return cmds, nil
}

// GenerateBatchScenes pre-generates future scenes for the forecast
// queue.
func (g *Gemini) GenerateBatchScenes(ctx context.Context, count int) ([]ForecastScene, error) {
	raw, err := g.completeJSON(ctx, fmt.Sprintf(
		`Produce a JSON array of %d future Linux work sessions for a small dev team
(users dev_alice, sys_bob, svc_ci). Each element:
{"user": "...", "name": "...", "category": "Routine|Variant|Anomaly", "zone": "/absolute/dir", "commands": ["..."]}`,
		count))
	if err != nil {
		return nil, err
	}

	var scenes []ForecastScene
	if err := json.Unmarshal([]byte(raw), &scenes); err != nil {
		return nil, fmt.Errorf("malformed forecast batch: %w", err)
	}
	for i := range scenes {
		scenes[i].NormalizeZone()
	}
	return scenes, nil
}

// GenerateBreadcrumbs produces leakable hint strings.
func (g *Gemini) GenerateBreadcrumbs(ctx context.Context, flavor string) ([]string, error) {
	raw, err := g.completeJSON(ctx, fmt.Sprintf(
		`Produce a JSON array of 5 short fake %s snippets a developer might
accidentally leak into a debug log (hostnames, internal URLs, ticket IDs). All values fictional.`, flavor))
	if err != nil {
		return nil, err
	}

	var crumbs []string
	if err := json.Unmarshal([]byte(raw), &crumbs); err != nil {
		return nil, fmt.Errorf("malformed breadcrumbs: %w", err)
	}
	return crumbs, nil
}

// GeneratePlan produces a month-long narrative arc.
func (g *Gemini) GeneratePlan(ctx context.Context) (*Plan, error) {
	raw, err := g.completeJSON(ctx,
		`Produce a JSON narrative plan for a month of simulated software work:
{"narrative_arc": "...", "daily_tasks": {"1": "...", "2": "...", ... "28": "..."}}`)
	if err != nil {
		return nil, err
	}

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("malformed plan: %w", err)
	}
	if plan.NarrativeArc == "" {
		return nil, fmt.Errorf("malformed plan: missing narrative arc")
	}
	return &plan, nil
}
