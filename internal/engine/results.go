package engine

import (
	"fmt"

	"github.com/expstack/expstack/internal/stats"
)

// variantTally is the aggregator's working state for one variant.
type variantTally struct {
	results      *VariantResults
	participants map[string]bool
	converted    map[string]bool // users with at least one session_completed
	clicksByUser map[string]int  // feature_interaction counts per user
}

// ComputeResults builds an aggregate snapshot for a test from the event
// log. It may be called on a running test for interim reporting; only
// StopTest attaches the snapshot to the stored test.
func (e *Engine) ComputeResults(testID string) (*Results, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	test, ok := e.tests[testID]
	if !ok {
		return nil, fmt.Errorf("test %s: %w", testID, ErrNotFound)
	}
	return e.computeResultsLocked(test), nil
}

func (e *Engine) computeResultsLocked(test *Test) *Results {
	tallies := make(map[string]*variantTally, len(test.Variants))
	for _, v := range test.Variants {
		tallies[v.ID] = &variantTally{
			results:      &VariantResults{},
			participants: make(map[string]bool),
			converted:    make(map[string]bool),
			clicksByUser: make(map[string]int),
		}
	}

	for _, ev := range e.events {
		if ev.TestID != test.ID {
			continue
		}
		tally, ok := tallies[ev.VariantID]
		if !ok {
			continue
		}

		tally.participants[ev.UserID] = true

		switch ev.Type {
		case EventFeatureInteraction:
			tally.results.Counts.FeatureClicks++
			tally.clicksByUser[ev.UserID]++
		case EventContextOverride:
			tally.results.Counts.ContextOverrides++
		case EventSessionCompleted:
			tally.results.Counts.SessionCompletions++
			tally.converted[ev.UserID] = true
		case EventErrorOccurred:
			tally.results.Counts.Errors++
		}
	}

	total := 0
	results := &Results{
		Variants:    make(map[string]*VariantResults, len(test.Variants)),
		LastUpdated: e.now(),
	}
	for _, v := range test.Variants {
		tally := tallies[v.ID]
		r := tally.results
		r.Participants = len(tally.participants)
		total += r.Participants

		if r.Participants > 0 {
			n := float64(r.Participants)
			r.Metrics.FeatureEngagement = float64(r.Counts.FeatureClicks) / n
			r.Metrics.ConversionRate = float64(r.Counts.SessionCompletions) / n
		}
		if e.analytics != nil {
			if ext, ok := e.analytics.VariantMetrics(test.ID, v.ID); ok {
				r.Metrics.ContextAccuracy = ext.ContextAccuracy
				r.Metrics.UserSatisfaction = ext.UserSatisfaction
				r.Metrics.SessionDuration = ext.SessionDuration
			}
		}

		results.Variants[v.ID] = r
	}
	results.TotalParticipants = total

	// Winner: best score on the target metric. Walking variants in
	// insertion order with a strict comparison makes ties deterministic
	// in favor of the first-seen variant.
	winnerIdx := -1
	bestScore := -1.0
	for i, v := range test.Variants {
		score := metricScore(results.Variants[v.ID], test.TargetMetric)
		if score > bestScore {
			bestScore = score
			winnerIdx = i
		}
	}
	if winnerIdx >= 0 {
		results.Winner = test.Variants[winnerIdx].ID
	}

	results.StatisticalSignificance = e.significanceLocked(test, tallies, winnerIdx)
	results.ConfidenceInterval = confidenceInterval(test, tallies, winnerIdx, bestScore)

	return results
}

// significanceLocked estimates confidence that the winner beats its best
// challenger on the target metric. Declaring significance requires each
// side to clear the test's pre-registered minimum sample size; interim
// peeking below the gate reports 0.5 (inconclusive) rather than an
// inflated estimate.
func (e *Engine) significanceLocked(test *Test, tallies map[string]*variantTally, winnerIdx int) float64 {
	if winnerIdx < 0 || len(test.Variants) < 2 {
		return 0.5
	}

	winner := test.Variants[winnerIdx]

	challengerIdx := -1
	challengerScore := -1.0
	for i, v := range test.Variants {
		if i == winnerIdx {
			continue
		}
		score := metricScore(tallies[v.ID].results, test.TargetMetric)
		if score > challengerScore {
			challengerScore = score
			challengerIdx = i
		}
	}
	challenger := test.Variants[challengerIdx]

	a := tallies[winner.ID]
	b := tallies[challenger.ID]
	if len(a.participants) < test.MinSampleSize || len(b.participants) < test.MinSampleSize {
		return 0.5
	}

	if test.TargetMetric == MetricFeatureEngagement {
		// Per-user interaction counts are real samples, so a mean test
		// applies. Non-clicking participants contribute zeros.
		return stats.WelchTest(clickSample(a), clickSample(b))
	}

	// The external-collaborator metrics arrive as bare per-variant means
	// with no spread, so no honest test exists for them directly; fall
	// back to the conversion evidence the log does carry.
	return stats.TwoProportionZTest(
		len(a.converted), len(a.participants),
		len(b.converted), len(b.participants),
	)
}

func clickSample(t *variantTally) stats.Sample {
	values := make([]float64, 0, len(t.participants))
	for user := range t.participants {
		values = append(values, float64(t.clicksByUser[user]))
	}
	return stats.Summarize(values)
}

// confidenceInterval is the Wilson score interval on the winner's
// distinct-converter proportion. Without conversion evidence it degrades
// to a ±10% band around the winning score.
func confidenceInterval(test *Test, tallies map[string]*variantTally, winnerIdx int, bestScore float64) [2]float64 {
	if winnerIdx < 0 {
		return [2]float64{}
	}
	tally := tallies[test.Variants[winnerIdx].ID]
	if n := len(tally.participants); n > 0 {
		lower, upper := stats.WilsonInterval(len(tally.converted), n, 0.95)
		return [2]float64{lower, upper}
	}
	return [2]float64{bestScore * 0.9, bestScore * 1.1}
}

func metricScore(r *VariantResults, metric TargetMetric) float64 {
	switch metric {
	case MetricFeatureEngagement:
		return r.Metrics.FeatureEngagement
	case MetricContextAccuracy:
		return r.Metrics.ContextAccuracy
	case MetricUserSatisfaction:
		return r.Metrics.UserSatisfaction
	case MetricSessionDuration:
		return r.Metrics.SessionDuration
	default:
		return 0
	}
}
