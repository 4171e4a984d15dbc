package engine_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/expstack/expstack/internal/alloc"
	"github.com/expstack/expstack/internal/engine"
)

func TestGetOrAssign_Sticky(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := startedTest(t, eng, "sticky")

	first, ok := eng.GetOrAssign(id, "user-1")
	if !ok {
		t.Fatal("expected an assignment")
	}
	for i := 0; i < 50; i++ {
		got, ok := eng.GetOrAssign(id, "user-1")
		if !ok || got != first {
			t.Fatalf("call %d: got (%s, %v), want (%s, true)", i, got, ok, first)
		}
	}
}

func TestGetOrAssign_StickyUnderRandomStrategy(t *testing.T) {
	eng, _ := newTestEngine(t)

	def := fiftyFiftyDef("sticky-random")
	def.Allocation = engine.Allocation{Strategy: alloc.StrategyRandom}
	id, err := eng.CreateTest(def)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if err := eng.StartTest(id); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	first, ok := eng.GetOrAssign(id, "user-1")
	if !ok {
		t.Fatal("expected an assignment")
	}
	// Stickiness must come from the assignment store, not the allocator.
	for i := 0; i < 50; i++ {
		if got, _ := eng.GetOrAssign(id, "user-1"); got != first {
			t.Fatalf("random strategy produced a different variant on lookup %d", i)
		}
	}
}

func TestGetOrAssign_NotRunning(t *testing.T) {
	eng, _ := newTestEngine(t)

	id, err := eng.CreateTest(fiftyFiftyDef("draft-only"))
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}

	if _, ok := eng.GetOrAssign(id, "user-1"); ok {
		t.Error("draft test handed out an assignment")
	}
	if _, ok := eng.GetOrAssign("unknown", "user-1"); ok {
		t.Error("unknown test handed out an assignment")
	}

	if err := eng.StartTest(id); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	if err := eng.PauseTest(id); err != nil {
		t.Fatalf("failed to pause: %v", err)
	}
	if _, ok := eng.GetOrAssign(id, "user-1"); ok {
		t.Error("paused test handed out an assignment")
	}
}

func TestGetOrAssign_SurvivesCompletion(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := startedTest(t, eng, "outlives")

	variant, _ := eng.GetOrAssign(id, "user-1")
	if err := eng.StopTest(id); err != nil {
		t.Fatalf("failed to stop: %v", err)
	}

	// The assignment outlives the test even though no experiment applies
	// any longer.
	if _, ok := eng.GetOrAssign(id, "user-1"); ok {
		t.Error("completed test still hands out assignments")
	}
	assignments := eng.AssignmentsForUser("user-1")
	if len(assignments) != 1 || assignments[0].VariantID != variant {
		t.Errorf("assignment record lost after completion: %+v", assignments)
	}
}

func TestGetOrAssign_EmitsAssignmentEvent(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := startedTest(t, eng, "events")

	variant, _ := eng.GetOrAssign(id, "user-1")
	eng.GetOrAssign(id, "user-1") // sticky lookup, no second event

	events := eng.EventsForTest(id)
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Type != engine.EventVariantAssigned || events[0].VariantID != variant {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestGetOrAssign_MultipleTestsPerUser(t *testing.T) {
	eng, _ := newTestEngine(t)
	first := startedTest(t, eng, "first")
	second := startedTest(t, eng, "second")

	if _, ok := eng.GetOrAssign(first, "user-1"); !ok {
		t.Fatal("expected assignment in first test")
	}
	if _, ok := eng.GetOrAssign(second, "user-1"); !ok {
		t.Fatal("expected assignment in second test")
	}

	if got := len(eng.AssignmentsForUser("user-1")); got != 2 {
		t.Errorf("got %d assignments, want 2", got)
	}
}

func TestGetOrAssign_ConcurrentFirstLookup(t *testing.T) {
	eng, _ := newTestEngine(t)

	def := fiftyFiftyDef("race")
	def.Allocation = engine.Allocation{Strategy: alloc.StrategyRandom}
	id, err := eng.CreateTest(def)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if err := eng.StartTest(id); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	// Many goroutines race the first lookup for the same brand-new user;
	// exactly one allocation may happen.
	const n = 32
	variants := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			variants[i], _ = eng.GetOrAssign(id, "user-raced")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if variants[i] != variants[0] {
			t.Fatalf("double allocation: %s vs %s", variants[0], variants[i])
		}
	}
	if got := len(eng.AssignmentsForUser("user-raced")); got != 1 {
		t.Errorf("got %d assignments, want 1", got)
	}
}

func TestGetOrAssign_DeterministicAcrossUsers(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := startedTest(t, eng, "spread")

	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		variant, ok := eng.GetOrAssign(id, fmt.Sprintf("user-%d", i))
		if !ok {
			t.Fatalf("user-%d got no assignment", i)
		}
		counts[variant]++
	}

	// 50/50 hash-based split over 1000 users; generous tolerance.
	for variant, n := range counts {
		if n < 350 || n > 650 {
			t.Errorf("variant %s got %d of 1000 users", variant, n)
		}
	}
}

func TestConfigForUser(t *testing.T) {
	eng, _ := newTestEngine(t)

	def := fiftyFiftyDef("feature-filtering")
	def.Variants[0].Config = map[string]any{"maxFeatures": 6.0}
	def.Variants[1].Config = map[string]any{"maxFeatures": 4.0}
	id, err := eng.CreateTest(def)
	if err != nil {
		t.Fatalf("failed to create: %v", err)
	}
	if err := eng.StartTest(id); err != nil {
		t.Fatalf("failed to start: %v", err)
	}

	config, ok := eng.ConfigForUser("user-1", "feature")
	if !ok {
		t.Fatal("expected a config for a matching running test")
	}
	if _, present := config["maxFeatures"]; !present {
		t.Errorf("config missing maxFeatures: %v", config)
	}

	if _, ok := eng.ConfigForUser("user-1", "no-such-test"); ok {
		t.Error("expected no config when no test name matches")
	}
}
