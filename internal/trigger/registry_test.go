package trigger

import (
	"testing"

	"mirage/internal/state"
)

func testRules() []Rule {
	return []Rule{
		{Source: "dev_alice", Pattern: "git push", Event: "code_pushed", Target: "ci_runner", SceneKeyword: "Build"},
		{Source: SourceAny, Pattern: "500 Internal Server Error", Event: "server_down", Target: "sys_bob", SceneKeyword: "restart_service"},
	}
}

func newState() *state.State {
	return &state.State{Users: map[string]state.UserRecord{}}
}

func TestProcess_FiresOnMatch(t *testing.T) {
	reg := NewRegistry(Static(testRules()), nil)
	st := newState()

	reg.Process(st, "dev_alice", []string{"cd /src", "git push origin main"})

	if !st.HasEvent("code_pushed") {
		t.Fatal("matching command did not fire event")
	}
}

func TestProcess_SourceFiltering(t *testing.T) {
	reg := NewRegistry(Static(testRules()), nil)
	st := newState()

	reg.Process(st, "sys_bob", []string{"git push origin main"})

	if st.HasEvent("code_pushed") {
		t.Fatal("rule sourced from dev_alice fired for sys_bob")
	}
}

func TestProcess_WildcardSourceAndIdempotence(t *testing.T) {
	reg := NewRegistry(Static(testRules()), nil)
	st := newState()

	cmds := []string{"curl localhost", "echo '500 Internal Server Error'"}
	reg.Process(st, "dev_alice", cmds)
	reg.Process(st, "sys_bob", cmds)

	count := 0
	for _, e := range st.GlobalEvents {
		if e == "server_down" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("server_down pending %d times, want 1", count)
	}
}

func TestCheck_ConsumesFirstMatch(t *testing.T) {
	reg := NewRegistry(Static(testRules()), nil)
	st := newState()
	st.FireEvent("code_pushed")

	keyword, ok := reg.Check(st, "ci_runner")
	if !ok || keyword != "Build" {
		t.Fatalf("Check = (%q, %v), want (Build, true)", keyword, ok)
	}
	if st.HasEvent("code_pushed") {
		t.Fatal("consumed event still pending")
	}

	if _, ok := reg.Check(st, "ci_runner"); ok {
		t.Fatal("second check matched with no pending event")
	}
}

func TestCheck_OnlyTargetPersona(t *testing.T) {
	reg := NewRegistry(Static(testRules()), nil)
	st := newState()
	st.FireEvent("code_pushed")

	if _, ok := reg.Check(st, "dev_alice"); ok {
		t.Fatal("event targeted at ci_runner matched dev_alice")
	}
	if !st.HasEvent("code_pushed") {
		t.Fatal("non-matching check consumed the event")
	}
}

func TestCheck_OneConsumptionPerTurn(t *testing.T) {
	rules := []Rule{
		{Source: SourceAny, Pattern: "x", Event: "e1", Target: "bob", SceneKeyword: "first"},
		{Source: SourceAny, Pattern: "y", Event: "e2", Target: "bob", SceneKeyword: "second"},
	}
	reg := NewRegistry(Static(rules), nil)
	st := newState()
	st.FireEvent("e1")
	st.FireEvent("e2")

	keyword, ok := reg.Check(st, "bob")
	if !ok || keyword != "first" {
		t.Fatalf("Check = (%q, %v), want (first, true)", keyword, ok)
	}
	if !st.HasEvent("e2") {
		t.Fatal("second pending event consumed in the same turn")
	}
}

// Full scenario: alice pushes code, the CI persona reacts next turn.
func TestCausalityChain(t *testing.T) {
	reg := NewRegistry(Static(testRules()), nil)
	st := newState()

	reg.Process(st, "dev_alice", []string{"git add .", "git push origin main"})

	keyword, forced := reg.Check(st, "ci_runner")
	if !forced {
		t.Fatal("push did not force the CI persona")
	}
	if keyword != "Build" {
		t.Fatalf("keyword = %q, want Build", keyword)
	}
	if len(st.GlobalEvents) != 0 {
		t.Fatalf("events remain after consumption: %v", st.GlobalEvents)
	}
}
