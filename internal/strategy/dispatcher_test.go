package strategy

import (
	"math/rand"
	"testing"
)

func TestDecide_NonNormalObservations(t *testing.T) {
	d := NewDispatcher(rand.New(rand.NewSource(1)), DefaultObservationProbs(), true, nil)

	cases := []struct {
		obs  Observation
		want Strategy
	}{
		{ObservationAttack, StrategyHoneytoken},
		{ObservationProbing, StrategyVuln},
		{ObservationStale, StrategyMaintenance},
	}
	for _, tc := range cases {
		for i := 0; i < 50; i++ {
			if got := d.Decide(tc.obs); got.Strategy != tc.want {
				t.Fatalf("Decide(%s) = %s, want %s", tc.obs, got.Strategy, tc.want)
			}
		}
	}
}

func TestObserve_Frequencies(t *testing.T) {
	d := NewDispatcher(rand.New(rand.NewSource(7)), DefaultObservationProbs(), true, nil)

	const draws = 20000
	counts := map[Observation]int{}
	for i := 0; i < draws; i++ {
		counts[d.Observe()]++
	}

	check := func(obs Observation, want, tol float64) {
		got := float64(counts[obs]) / draws
		if got < want-tol || got > want+tol {
			t.Errorf("%s rate = %.4f, want %.2f±%.2f", obs, got, want, tol)
		}
	}
	check(ObservationAttack, 0.05, 0.01)
	check(ObservationProbing, 0.10, 0.015)
	check(ObservationStale, 0.02, 0.01)
	check(ObservationNormal, 0.83, 0.02)
}

func TestDecide_NormalWeights(t *testing.T) {
	d := NewDispatcher(rand.New(rand.NewSource(3)), DefaultObservationProbs(), true, nil)

	const draws = 20000
	counts := map[Strategy]int{}
	for i := 0; i < draws; i++ {
		counts[d.Decide(ObservationNormal).Strategy]++
	}

	check := func(s Strategy, want float64) {
		got := float64(counts[s]) / draws
		if got < want-0.02 || got > want+0.02 {
			t.Errorf("%s rate = %.4f, want %.2f", s, got, want)
		}
	}
	check(StrategyLive, 0.30)
	check(StrategySkill, 0.15)
	check(StrategyForecast, 0.15)
	check(StrategyTemplate, 0.10)
	check(StrategyCache, 0.15)
	check(StrategyBreadcrumb, 0.05)
	check(StrategyHoneytoken, 0.05)
	check(StrategyVuln, 0.05)
}

func TestDecide_LiveDisabledRemapsToTemplate(t *testing.T) {
	d := NewDispatcher(rand.New(rand.NewSource(3)), DefaultObservationProbs(), false, nil)

	const draws = 20000
	counts := map[Strategy]int{}
	for i := 0; i < draws; i++ {
		counts[d.Decide(ObservationNormal).Strategy]++
	}

	if counts[StrategyLive] != 0 {
		t.Fatalf("live strategy chosen %d times without a collaborator", counts[StrategyLive])
	}
	got := float64(counts[StrategyTemplate]) / draws
	if got < 0.37 || got > 0.43 {
		t.Fatalf("template rate with live disabled = %.4f, want near 0.40", got)
	}
}

func TestParse(t *testing.T) {
	if s, ok := Parse("honeytoken"); !ok || s != StrategyHoneytoken {
		t.Fatalf("Parse(honeytoken) = (%s, %v)", s, ok)
	}
	if _, ok := Parse("nonsense"); ok {
		t.Fatal("Parse accepted an unknown strategy")
	}
}
