package resolver

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"mirage/internal/content"
	"mirage/internal/persona"
	"mirage/internal/scene"
	"mirage/internal/skills"
	"mirage/internal/strategy"
)

// stubGen is a scriptable Generator for resolver tests.
type stubGen struct {
	scene    *scene.Scene
	sceneErr error
}

func (s *stubGen) GenerateScene(context.Context, string, string, content.Context) (*scene.Scene, error) {
	return s.scene, s.sceneErr
}
func (s *stubGen) FixError(context.Context, string, string, string) (content.Fix, error) {
	return content.Fix{}, errors.New("not scripted")
}
func (s *stubGen) GenerateAssets(context.Context, string) ([]string, error) {
	return nil, errors.New("not scripted")
}
func (s *stubGen) GenerateBatchScenes(context.Context, int) ([]content.ForecastScene, error) {
	return nil, errors.New("not scripted")
}
func (s *stubGen) GenerateBreadcrumbs(context.Context, string) ([]string, error) {
	return nil, errors.New("not scripted")
}
func (s *stubGen) GeneratePlan(context.Context) (*content.Plan, error) {
	return nil, errors.New("not scripted")
}

func testPersona() persona.Persona {
	return persona.Persona{
		Name:        "dev_alice",
		HomeDir:     "/home/dev_alice",
		Probability: 1.0,
		WorkHours:   [2]int{9, 17},
		Scenes: []scene.Scene{
			{Name: "Morning Routine", Category: scene.CategoryRoutine, Zone: "/home/dev_alice", Commands: []string{"ls -la", "git status"}},
			{Name: "Refactor Session", Category: scene.CategoryVariant, Zone: "/home/dev_alice/src", Commands: []string{"vim main.py"}},
			{Name: "Panic Debug", Category: scene.CategoryAnomaly, Zone: "/tmp", Commands: []string{"grep -r ERROR ."}},
		},
	}
}

func newResolver(t *testing.T, gen content.Generator, seed int64) *Resolver {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	lib := content.NewLibrary(t.TempDir(), rng, nil)
	return New(lib, gen, skills.Default(), rng, nil)
}

func TestPickCatalog_CategoryWeighting(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := testPersona()

	const draws = 10000
	counts := map[scene.Category]int{}
	for i := 0; i < draws; i++ {
		dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyCatalog}, p, "")
		counts[dec.Scene.Category]++
	}

	check := func(c scene.Category, want float64) {
		got := float64(counts[c]) / draws
		if got < want-0.03 || got > want+0.03 {
			t.Errorf("%s rate = %.4f, want %.2f", c, got, want)
		}
	}
	check(scene.CategoryRoutine, 0.70)
	check(scene.CategoryVariant, 0.20)
	check(scene.CategoryAnomaly, 0.10)
}

func TestPickCatalog_ExcludesLastScene(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := persona.Persona{
		Name:    "dev_alice",
		HomeDir: "/home/dev_alice",
		Scenes: []scene.Scene{
			{Name: "A", Category: scene.CategoryRoutine, Zone: "/tmp", Commands: []string{"ls"}},
			{Name: "B", Category: scene.CategoryRoutine, Zone: "/tmp", Commands: []string{"pwd"}},
		},
	}

	for i := 0; i < 200; i++ {
		dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyCatalog}, p, "A")
		if dec.Scene.Name == "A" {
			t.Fatal("previous scene repeated while an alternative existed")
		}
	}
}

func TestPickCatalog_SingleSceneStillRuns(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := persona.Persona{
		Name:    "dev_alice",
		HomeDir: "/home/dev_alice",
		Scenes: []scene.Scene{
			{Name: "Only", Category: scene.CategoryRoutine, Zone: "/tmp", Commands: []string{"ls"}},
		},
	}

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyCatalog}, p, "Only")
	if dec.Scene == nil || dec.Scene.Name != "Only" {
		t.Fatalf("exclusion emptied a single-scene pool: %+v", dec.Scene)
	}
}

func TestResolve_NormalizesRelativeZone(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := persona.Persona{
		Name:   "dev_alice",
		Scenes: []scene.Scene{{Name: "Rel", Category: scene.CategoryRoutine, Zone: "projects", Commands: []string{"ls"}}},
	}

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyCatalog}, p, "")
	if dec.Scene.Zone != scene.DefaultZone {
		t.Fatalf("zone = %q, want %q", dec.Scene.Zone, scene.DefaultZone)
	}
}

func TestResolveLive_FallsBackOnGenerationFailure(t *testing.T) {
	r := newResolver(t, &stubGen{sceneErr: errors.New("quota exhausted")}, 11)
	p := testPersona()

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyLive}, p, "")
	if dec.Scene == nil {
		t.Fatal("fallback produced no scene")
	}
	if !strings.HasSuffix(dec.Scene.Name, "(Randomized)") {
		t.Fatalf("expected randomized template fallback, got %q", dec.Scene.Name)
	}
}

func TestResolveLive_UsesGeneratedScene(t *testing.T) {
	want := &scene.Scene{Name: "Fresh", Category: scene.CategoryRoutine, Zone: "/home/dev_alice", Commands: []string{"make test"}}
	r := newResolver(t, &stubGen{scene: want}, 11)

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyLive}, testPersona(), "")
	if dec.Scene.Name != "Fresh" {
		t.Fatalf("scene = %q, want Fresh", dec.Scene.Name)
	}
}

func TestResolveTemplate_EmptyCatalogFloor(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := persona.Persona{Name: "svc_backup", HomeDir: "/home/svc_backup"}

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyTemplate}, p, "")
	if dec.Scene == nil || len(dec.Scene.Commands) == 0 {
		t.Fatal("floor scene missing for persona with no catalog")
	}
	if dec.Scene.Name != "Fallback Maintenance" {
		t.Fatalf("scene = %q, want Fallback Maintenance", dec.Scene.Name)
	}
}

func TestResolveSkill(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := testPersona()
	p.Skills = []string{"git"}

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategySkill}, p, "")
	if dec.Scene.Category != scene.CategorySkill {
		t.Fatalf("category = %s, want %s", dec.Scene.Category, scene.CategorySkill)
	}
	if len(dec.Scene.Commands) == 0 {
		t.Fatal("skill scene has no commands")
	}
}

func TestResolveSkill_UnknownSkillFallsBack(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := testPersona()
	p.Skills = []string{"kubernetes"}

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategySkill}, p, "")
	if dec.Scene == nil {
		t.Fatal("unknown skill produced no fallback scene")
	}
}

func TestResolveHoneytoken(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := testPersona()

	dec := r.Resolve(context.Background(), strategy.Choice{Strategy: strategy.StrategyHoneytoken}, p, "")
	if dec.Scene.Name != "Honeytoken Placement" {
		t.Fatalf("scene = %q", dec.Scene.Name)
	}
	if dec.Scene.Zone != p.HomeDir {
		t.Fatalf("zone = %q, want persona home", dec.Scene.Zone)
	}
}

func TestResolveTriggered_CatalogMatch(t *testing.T) {
	r := newResolver(t, nil, 11)
	p := testPersona()
	p.Scenes = append(p.Scenes, scene.Scene{
		Name: "Build Pipeline", Category: scene.CategoryResponsive, Zone: "/srv/ci", Commands: []string{"make build"},
	})

	s := r.ResolveTriggered(p, "Build")
	if s.Name != "Build Pipeline" {
		t.Fatalf("scene = %q, want Build Pipeline", s.Name)
	}
}

func TestResolveTriggered_TemplateFallback(t *testing.T) {
	r := newResolver(t, nil, 11)

	s := r.ResolveTriggered(testPersona(), "restart_service")
	if !strings.Contains(s.Name, "restart_service") {
		t.Fatalf("rendered scene name %q does not carry the keyword", s.Name)
	}
	if s.Category != scene.CategoryResponsive {
		t.Fatalf("category = %s, want %s", s.Category, scene.CategoryResponsive)
	}
}
