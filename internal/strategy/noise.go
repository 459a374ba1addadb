package strategy

import (
	"math/rand"
	"strings"
)

// NoiseRules configures the humanizer: typo tables keyed by base
// command, loaded from the content library's templates.
type NoiseRules struct {
	Typos map[string][]string
}

// DefaultNoiseRules is the hard fallback when the library has no typo
// table.
func DefaultNoiseRules() NoiseRules {
	return NoiseRules{Typos: map[string][]string{
		"git":    {"gti", "got", "gut"},
		"docker": {"dockr", "docekr"},
	}}
}

// Noise injects realistic operator fluff into a command list: stray
// navigation, status-check anxiety, the occasional typo followed by
// the corrected command.
type Noise struct {
	rng   *rand.Rand
	rules NoiseRules
}

// NewNoise builds a noise injector over the given rules.
func NewNoise(rng *rand.Rand, rules NoiseRules) *Noise {
	if rules.Typos == nil {
		rules = DefaultNoiseRules()
	}
	return &Noise{rng: rng, rules: rules}
}

// Inject returns a new command list with noise woven in. The input is
// never mutated and every original command survives in order.
func (n *Noise) Inject(commands []string) []string {
	out := make([]string, 0, len(commands)+3)

	if n.rng.Float64() < 0.3 {
		out = append(out, "ls -la", "pwd")
	}

	for _, cmd := range commands {
		base := cmd
		if i := strings.IndexByte(cmd, ' '); i > 0 {
			base = cmd[:i]
		}

		switch base {
		case "git":
			if n.rng.Float64() < 0.2 {
				out = append(out, "git status")
			}
		case "docker":
			if n.rng.Float64() < 0.2 {
				out = append(out, "docker ps")
			}
		}

		if typos, ok := n.rules.Typos[base]; ok && len(typos) > 0 && n.rng.Float64() < 0.1 {
			out = append(out, strings.Replace(cmd, base, typos[n.rng.Intn(len(typos))], 1))
		}

		out = append(out, cmd)
	}
	return out
}
