package skills

import (
	"math/rand"
	"strings"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	names := r.Names()
	want := []string{"docker", "git"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names() = %v, want %v", names, want)
		}
	}

	if _, ok := r.New("kubernetes", "dev_alice", "/home/dev_alice", nil); ok {
		t.Fatal("unknown skill resolved")
	}
}

func TestGitSkill_GeneratesCommands(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(13))

	sk, ok := r.New("git", "dev_alice", "/home/dev_alice", rng)
	if !ok {
		t.Fatal("git skill missing")
	}

	for i := 0; i < 50; i++ {
		cmds := sk.GenerateActivity()
		if len(cmds) == 0 {
			t.Fatal("git skill produced no commands")
		}
		for _, c := range cmds {
			if strings.TrimSpace(c) == "" {
				t.Fatalf("blank command in %v", cmds)
			}
		}
	}
}

func TestDockerSkill_GeneratesCommands(t *testing.T) {
	r := Default()
	rng := rand.New(rand.NewSource(13))

	sk, ok := r.New("docker", "sys_bob", "/home/sys_bob", rng)
	if !ok {
		t.Fatal("docker skill missing")
	}

	cmds := sk.GenerateActivity()
	if len(cmds) == 0 {
		t.Fatal("docker skill produced no commands")
	}
}

func TestRegister_Replaces(t *testing.T) {
	r := NewRegistry()
	r.Register("custom", func(username, homeDir string, rng *rand.Rand) Skill {
		return stubSkill{"echo one"}
	})
	r.Register("custom", func(username, homeDir string, rng *rand.Rand) Skill {
		return stubSkill{"echo two"}
	})

	sk, ok := r.New("custom", "u", "/home/u", nil)
	if !ok {
		t.Fatal("custom skill missing")
	}
	if got := sk.GenerateActivity(); got[0] != "echo two" {
		t.Fatalf("replacement not effective: %v", got)
	}
}

type stubSkill struct{ cmd string }

func (s stubSkill) GenerateActivity() []string { return []string{s.cmd} }
