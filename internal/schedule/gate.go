// Package schedule decides whether "now" is a plausible moment for a
// persona to act. The gate is a pure function of persona config, the
// clock, and a random draw; trigger-forced runs bypass it entirely.
package schedule

import (
	"math/rand"
	"time"

	"mirage/internal/persona"
)

// OffHoursChance is the small residual probability of activity outside
// the work window. Real people occasionally log in at 3am.
const OffHoursChance = 0.05

// Gate evaluates persona activity windows.
type Gate struct {
	rng *rand.Rand
}

// NewGate creates a gate drawing from rng. A nil rng gets a
// time-seeded source.
func NewGate(rng *rand.Rand) *Gate {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Gate{rng: rng}
}

// IsActive reports whether the persona should act at the given time.
// Inside the work window the persona acts with its configured
// probability; outside, with OffHoursChance. Windows wrapping past
// midnight (start > end) are handled.
func (g *Gate) IsActive(p persona.Persona, now time.Time) bool {
	if InWindow(p.WorkHours[0], p.WorkHours[1], now.Hour()) {
		return g.rng.Float64() < p.Probability
	}
	return g.rng.Float64() < OffHoursChance
}

// InWindow reports whether hour falls inside [start, end], inclusive,
// wrapping past midnight when start > end (e.g. a 22-02 night shift).
func InWindow(start, end, hour int) bool {
	if start > end {
		return hour >= start || hour <= end
	}
	return hour >= start && hour <= end
}
