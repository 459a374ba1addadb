package content

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"mirage/internal/scene"
	"mirage/internal/trigger"
)

// File names under the config directory.
const (
	templatesFile = "templates.json"
	triggersFile  = "triggers.json"
	cacheFile     = "content_cache.json"
	projectFile   = "project_state.json"
	planFile      = "monthly_plan.json"
)

// SceneTemplate is a scene whose name and commands may carry
// {keyword} or {task} placeholders.
type SceneTemplate scene.Scene

// Render substitutes a placeholder in the template and returns a
// concrete scene.
func (t SceneTemplate) Render(placeholder, value string) *scene.Scene {
	s := scene.Scene(t)
	out := s.Clone()
	out.Name = strings.ReplaceAll(out.Name, placeholder, value)
	for i, cmd := range out.Commands {
		out.Commands[i] = strings.ReplaceAll(cmd, placeholder, value)
	}
	return out
}

// FuzzRules drives template randomization.
type FuzzRules struct {
	Files          []string `json:"files"`
	CommitMessages []string `json:"commit_messages"`
}

// templatesData is the on-disk shape of templates.json.
type templatesData struct {
	TriggeredResponse *SceneTemplate      `json:"triggered_response,omitempty"`
	Narrative         *SceneTemplate      `json:"narrative,omitempty"`
	Cache             *SceneTemplate      `json:"cache,omitempty"`
	Fuzzing           *FuzzRules          `json:"fuzzing,omitempty"`
	Typos             map[string][]string `json:"typos,omitempty"`
	Vuln              []string            `json:"vuln,omitempty"`
	Honeytoken        []string            `json:"honeytoken,omitempty"`
}

// cacheData is the on-disk shape of content_cache.json.
type cacheData struct {
	ForecastQueue []ForecastScene     `json:"forecast_queue"`
	Assets        map[string][]string `json:"assets"`
	Breadcrumbs   []string            `json:"breadcrumbs,omitempty"`
}

// projectState tracks the virtual codebase the personas pretend to
// build. It feeds the generation context and the file index.
type projectState struct {
	ProjectName  string            `json:"project_name"`
	CurrentDay   int               `json:"current_day"`
	CreatedFiles map[string]fileEntry `json:"created_files"`
	BuildStatus  string            `json:"build_status"`
}

type fileEntry struct {
	Summary      string `json:"summary"`
	LastModified int    `json:"last_modified"`
}

// Library is the central asset repository. All mutation happens on
// the controller goroutine; the mutex only guards against the
// fsnotify reload goroutine swapping templates and triggers.
type Library struct {
	dir string
	rng *rand.Rand
	log *zap.Logger

	mu        sync.RWMutex
	templates templatesData
	triggers  []trigger.Rule

	cache   cacheData
	project projectState
	plan    *Plan
}

// NewLibrary loads (or seeds) the asset files under dir.
func NewLibrary(dir string, rng *rand.Rand, log *zap.Logger) *Library {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = zap.NewNop()
	}
	l := &Library{dir: dir, rng: rng, log: log.Named("content")}
	l.loadAll()
	return l
}

func (l *Library) path(name string) string { return filepath.Join(l.dir, name) }

func (l *Library) loadAll() {
	l.loadTemplates()
	l.loadTriggers()
	l.loadCache()
	l.loadProject()
	l.loadPlan()
}

func (l *Library) readJSON(name string, v any) bool {
	data, err := os.ReadFile(l.path(name))
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.Error("asset unreadable", zap.String("file", name), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		l.log.Error("asset malformed", zap.String("file", name), zap.Error(err))
		return false
	}
	return true
}

func (l *Library) writeJSON(name string, v any) {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		l.log.Error("asset marshal failed", zap.String("file", name), zap.Error(err))
		return
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		l.log.Error("asset dir create failed", zap.Error(err))
		return
	}
	if err := os.WriteFile(l.path(name), data, 0o644); err != nil {
		l.log.Error("asset write failed", zap.String("file", name), zap.Error(err))
	}
}

func (l *Library) loadTemplates() {
	var t templatesData
	if !l.readJSON(templatesFile, &t) {
		t = defaultTemplates()
		l.writeJSON(templatesFile, t)
	}
	l.mu.Lock()
	l.templates = t
	l.mu.Unlock()
}

func (l *Library) loadTriggers() {
	var rules []trigger.Rule
	if !l.readJSON(triggersFile, &rules) {
		rules = defaultTriggers()
		l.writeJSON(triggersFile, rules)
	}
	l.mu.Lock()
	l.triggers = rules
	l.mu.Unlock()
}

func (l *Library) loadCache() {
	if !l.readJSON(cacheFile, &l.cache) {
		l.cache = cacheData{Assets: map[string][]string{}}
	}
	if l.cache.Assets == nil {
		l.cache.Assets = map[string][]string{}
	}
}

func (l *Library) loadProject() {
	if !l.readJSON(projectFile, &l.project) {
		l.project = projectState{
			ProjectName:  "Core_App_V1",
			CurrentDay:   1,
			CreatedFiles: map[string]fileEntry{},
			BuildStatus:  "passing",
		}
		l.writeJSON(projectFile, l.project)
	}
	if l.project.CreatedFiles == nil {
		l.project.CreatedFiles = map[string]fileEntry{}
	}
	if l.project.CurrentDay < 1 {
		l.project.CurrentDay = 1
	}
}

func (l *Library) loadPlan() {
	var p Plan
	if l.readJSON(planFile, &p) && p.NarrativeArc != "" {
		l.plan = &p
	}
}

// Reload re-reads templates and triggers from disk. Called by the
// fsnotify watcher between cycles.
func (l *Library) Reload() {
	l.loadTemplates()
	l.loadTriggers()
	l.log.Info("dynamic assets reloaded")
}

// Dir returns the asset directory, for the watcher.
func (l *Library) Dir() string { return l.dir }

// Triggers implements trigger.RuleSource.
func (l *Library) Triggers() []trigger.Rule {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]trigger.Rule(nil), l.triggers...)
}

// TriggeredResponse renders the triggered_response template for a
// scene keyword, or a hard fallback when the template is missing.
func (l *Library) TriggeredResponse(keyword string) *scene.Scene {
	l.mu.RLock()
	tpl := l.templates.TriggeredResponse
	l.mu.RUnlock()
	if tpl == nil {
		return &scene.Scene{
			Name:     "Response",
			Category: scene.CategoryResponsive,
			Zone:     "/tmp",
			Commands: []string{"echo ok"},
		}
	}
	return tpl.Render("{keyword}", keyword)
}

// NarrativeScene renders the narrative template for a daily focus, or
// nil when no template exists.
func (l *Library) NarrativeScene(task string) *scene.Scene {
	l.mu.RLock()
	tpl := l.templates.Narrative
	l.mu.RUnlock()
	if tpl == nil {
		return nil
	}
	return tpl.Render("{task}", task)
}

// CachedScene returns the canned maintenance scene, or nil.
func (l *Library) CachedScene() *scene.Scene {
	l.mu.RLock()
	tpl := l.templates.Cache
	l.mu.RUnlock()
	if tpl == nil {
		return nil
	}
	s := scene.Scene(*tpl)
	return s.Clone()
}

// Fuzzing returns the template-randomization rules with defaults
// filled in.
func (l *Library) Fuzzing() FuzzRules {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rules := FuzzRules{Files: []string{"utils.py"}, CommitMessages: []string{"Update"}}
	if l.templates.Fuzzing != nil {
		if len(l.templates.Fuzzing.Files) > 0 {
			rules.Files = l.templates.Fuzzing.Files
		}
		if len(l.templates.Fuzzing.CommitMessages) > 0 {
			rules.CommitMessages = l.templates.Fuzzing.CommitMessages
		}
	}
	return rules
}

// Typos returns the typo table for the noise injector.
func (l *Library) Typos() map[string][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates.Typos
}

// CachedAsset returns one random command list for an asset kind
// ("vuln" or "honeytoken"), preferring the refreshed cache over the
// static template pool.
func (l *Library) CachedAsset(kind string) (string, bool) {
	if pool := l.cache.Assets[kind+"_commands"]; len(pool) > 0 {
		return pool[l.rng.Intn(len(pool))], true
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	var pool []string
	switch kind {
	case "vuln":
		pool = l.templates.Vuln
	case "honeytoken":
		pool = l.templates.Honeytoken
	}
	if len(pool) == 0 {
		return "", false
	}
	return pool[l.rng.Intn(len(pool))], true
}

// NextForecast pops the next queued scene, persisting the shortened
// queue.
func (l *Library) NextForecast() (*ForecastScene, bool) {
	if len(l.cache.ForecastQueue) == 0 {
		return nil, false
	}
	fs := l.cache.ForecastQueue[0]
	l.cache.ForecastQueue = l.cache.ForecastQueue[1:]
	l.writeJSON(cacheFile, l.cache)
	return &fs, true
}

// ForecastLen reports the queue depth.
func (l *Library) ForecastLen() int { return len(l.cache.ForecastQueue) }

// Breadcrumb pops the next planted hint.
func (l *Library) Breadcrumb() (string, bool) {
	if len(l.cache.Breadcrumbs) == 0 {
		return "", false
	}
	crumb := l.cache.Breadcrumbs[0]
	l.cache.Breadcrumbs = l.cache.Breadcrumbs[1:]
	l.writeJSON(cacheFile, l.cache)
	return crumb, true
}

// GenerateForecast extends the forecast queue by count scenes.
func (l *Library) GenerateForecast(ctx context.Context, gen Generator, count int) error {
	if gen == nil {
		return fmt.Errorf("no generator configured")
	}
	scenes, err := gen.GenerateBatchScenes(ctx, count)
	if err != nil {
		return fmt.Errorf("generate forecast: %w", err)
	}
	l.cache.ForecastQueue = append(l.cache.ForecastQueue, scenes...)
	l.writeJSON(cacheFile, l.cache)
	l.log.Info("forecast extended", zap.Int("added", len(scenes)), zap.Int("queue", len(l.cache.ForecastQueue)))
	return nil
}

// RefreshAssets replaces the vuln and honeytoken pools with freshly
// generated content. Partial failure keeps the old pool for that kind.
func (l *Library) RefreshAssets(ctx context.Context, gen Generator) error {
	if gen == nil {
		return fmt.Errorf("no generator configured")
	}
	for _, kind := range []string{"vuln", "honeytoken"} {
		cmds, err := gen.GenerateAssets(ctx, kind)
		if err != nil {
			l.log.Warn("asset refresh failed", zap.String("kind", kind), zap.Error(err))
			continue
		}
		if len(cmds) > 0 {
			l.cache.Assets[kind+"_commands"] = cmds
		}
	}
	l.writeJSON(cacheFile, l.cache)
	l.log.Info("content assets refreshed")
	return nil
}

// GenerateBreadcrumbs replenishes the breadcrumb pool.
func (l *Library) GenerateBreadcrumbs(ctx context.Context, gen Generator) error {
	if gen == nil {
		return fmt.Errorf("no generator configured")
	}
	for _, flavor := range []string{"logs", "chat"} {
		crumbs, err := gen.GenerateBreadcrumbs(ctx, flavor)
		if err != nil {
			l.log.Warn("breadcrumb generation failed", zap.String("flavor", flavor), zap.Error(err))
			continue
		}
		l.cache.Breadcrumbs = append(l.cache.Breadcrumbs, crumbs...)
	}
	l.writeJSON(cacheFile, l.cache)
	return nil
}

// GeneratePlan replaces the narrative plan.
func (l *Library) GeneratePlan(ctx context.Context, gen Generator) error {
	if gen == nil {
		return fmt.Errorf("no generator configured")
	}
	plan, err := gen.GeneratePlan(ctx)
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}
	l.plan = plan
	l.writeJSON(planFile, plan)
	l.log.Info("narrative plan generated", zap.String("arc", plan.NarrativeArc))
	return nil
}

// Plan returns the current narrative plan, which may be nil.
func (l *Library) Plan() *Plan { return l.plan }

// GenContext assembles the generation context bundle for a persona.
func (l *Library) GenContext(recentScene string) Context {
	arc := "Routine Operations"
	if l.plan != nil && l.plan.NarrativeArc != "" {
		arc = l.plan.NarrativeArc
	}
	if recentScene == "" {
		recentScene = "None"
	}
	return Context{
		NarrativeArc: arc,
		CurrentDay:   l.project.CurrentDay,
		DailyFocus:   l.plan.Focus(l.project.CurrentDay),
		RecentScene:  recentScene,
		BuildStatus:  l.project.BuildStatus,
	}
}

// CurrentDay returns the simulated project day.
func (l *Library) CurrentDay() int { return l.project.CurrentDay }

// AdvanceDay moves the simulated project one day forward.
func (l *Library) AdvanceDay() {
	l.project.CurrentDay++
	l.writeJSON(projectFile, l.project)
}

// UpdateFileIndex records a file the simulation "created".
func (l *Library) UpdateFileIndex(path, summary string) {
	l.project.CreatedFiles[path] = fileEntry{Summary: summary, LastModified: l.project.CurrentDay}
	l.writeJSON(projectFile, l.project)
}

// defaultTemplates seeds templates.json on first run, mirroring the
// deployment defaults.
func defaultTemplates() templatesData {
	return templatesData{
		TriggeredResponse: &SceneTemplate{
			Name:     "Response to {keyword}",
			Category: scene.CategoryResponsive,
			Zone:     "/tmp",
			Commands: []string{"echo 'Handling trigger: {keyword}'", "date"},
		},
		Narrative: &SceneTemplate{
			Name:     "Narrative Task: {task}",
			Category: scene.CategoryRoutine,
			Zone:     "/home/dev_alice",
			Commands: []string{"echo 'Starting task: {task}'", "ls -la"},
		},
		Cache: &SceneTemplate{
			Name:     "Cached Maintenance",
			Category: scene.CategoryRoutine,
			Zone:     "/var/log",
			Commands: []string{"tail -n 50 syslog"},
		},
		Fuzzing: &FuzzRules{
			Files:          []string{"utils.py", "config.yaml", "main.go"},
			CommitMessages: []string{"Fix typo", "Update config", "Refactor"},
		},
		Typos: map[string][]string{
			"git":    {"gti", "got", "gut"},
			"docker": {"dockr", "docekr"},
		},
		Vuln:       []string{"chmod 777 -R /var/www"},
		Honeytoken: []string{"echo 'aws_key=AKIA...' > ~/.aws/credentials"},
	}
}

// defaultTriggers seeds triggers.json on first run.
func defaultTriggers() []trigger.Rule {
	return []trigger.Rule{
		{
			Source:       trigger.SourceAny,
			Pattern:      "500 Internal Server Error",
			Event:        "server_down",
			Target:       "sys_bob",
			SceneKeyword: "restart_service",
		},
		{
			Source:       trigger.SourceAny,
			Pattern:      "Unauthorized Access",
			Event:        "anomaly_alert",
			Target:       "dev_alice",
			SceneKeyword: "check_logs",
		},
	}
}
