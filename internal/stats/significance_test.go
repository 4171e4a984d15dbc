package stats_test

import (
	"testing"

	"github.com/expstack/expstack/internal/stats"
)

func TestTwoProportionZTest_ClearWinner(t *testing.T) {
	// Variant A: 10% conversion (100/1000)
	// Variant B: 5% conversion (50/1000)
	// Should be very confident A beats B
	confidence := stats.TwoProportionZTest(100, 1000, 50, 1000)

	if confidence < 0.95 {
		t.Errorf("expected high confidence (>0.95), got %f", confidence)
	}
}

func TestTwoProportionZTest_NoSignificance(t *testing.T) {
	// Both variants have same conversion rate
	// Should not be confident either wins
	confidence := stats.TwoProportionZTest(50, 1000, 50, 1000)

	if confidence > 0.60 {
		t.Errorf("expected low confidence (<0.60) for equal rates, got %f", confidence)
	}
}

func TestTwoProportionZTest_SmallSample(t *testing.T) {
	// Small samples should not show significance even with different rates
	confidence := stats.TwoProportionZTest(5, 20, 2, 20)

	if confidence > 0.95 {
		t.Errorf("expected lower confidence for small sample, got %f", confidence)
	}
}

func TestTwoProportionZTest_ZeroTrials(t *testing.T) {
	// Should handle zero trials gracefully
	confidence := stats.TwoProportionZTest(0, 0, 0, 0)

	if confidence != 0.5 {
		t.Errorf("expected 0.5 for zero trials, got %f", confidence)
	}
}

func TestTwoProportionZTest_OnlyOneSideHasData(t *testing.T) {
	confidence := stats.TwoProportionZTest(10, 100, 0, 0)

	// Can't determine significance with only one variant
	if confidence > 0.6 || confidence < 0.4 {
		t.Errorf("expected ~0.5 when only one variant has data, got %f", confidence)
	}
}

func TestTwoProportionZTest_LosingVariant(t *testing.T) {
	// A converts worse than B; confidence A beats B should be near 0
	confidence := stats.TwoProportionZTest(50, 1000, 100, 1000)

	if confidence > 0.05 {
		t.Errorf("expected near-zero confidence for losing variant, got %f", confidence)
	}
}

func TestTwoProportionZTest_Symmetry(t *testing.T) {
	ab := stats.TwoProportionZTest(120, 1000, 100, 1000)
	ba := stats.TwoProportionZTest(100, 1000, 120, 1000)

	if diff := ab + ba - 1; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected P(A>B) + P(B>A) == 1, got %f + %f", ab, ba)
	}
}
