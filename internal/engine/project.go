package engine

// The config projector sits at the integration boundary: it maps a
// resolved variant's opaque config payload onto an externally-owned
// analysis result, producing a new merged view. The external object is
// only ever touched through the Analysis shape.

// Analysis is the minimal shape of the external analysis collaborator.
type Analysis[T any] struct {
	Confidence        float64
	SuggestedFeatures []T
}

// AdjustmentKind enumerates the configuration axes the projector knows.
type AdjustmentKind string

const (
	AdjustConfidenceFloor AdjustmentKind = "confidence_floor"
	AdjustMaxFeatures     AdjustmentKind = "max_features"
)

// Adjustment is one projected configuration change. The set of kinds is
// closed; config keys outside it are dropped during parsing, so payloads
// from newer writers degrade to no-ops instead of errors.
type Adjustment struct {
	Kind  AdjustmentKind
	Value float64
}

// configKeys maps variant config payload keys to adjustment kinds.
var configKeys = map[string]AdjustmentKind{
	"confidenceThreshold": AdjustConfidenceFloor,
	"maxFeatures":         AdjustMaxFeatures,
}

// ParseAdjustments extracts the known adjustments from a variant config
// payload. Unknown keys and non-numeric values are ignored.
func ParseAdjustments(config map[string]any) []Adjustment {
	var out []Adjustment
	for key, kind := range configKeys {
		raw, ok := config[key]
		if !ok {
			continue
		}
		value, ok := asFloat(raw)
		if !ok {
			continue
		}
		out = append(out, Adjustment{Kind: kind, Value: value})
	}
	return out
}

// Project applies a variant's adjustments over an analysis result and
// returns the merged view. The input is never mutated: the features slice
// is copied before truncation.
func Project[T any](base Analysis[T], adjustments []Adjustment) Analysis[T] {
	merged := Analysis[T]{
		Confidence:        base.Confidence,
		SuggestedFeatures: append([]T(nil), base.SuggestedFeatures...),
	}

	for _, adj := range adjustments {
		switch adj.Kind {
		case AdjustConfidenceFloor:
			if merged.Confidence < adj.Value {
				merged.Confidence = adj.Value
			}
		case AdjustMaxFeatures:
			max := int(adj.Value)
			if max >= 0 && len(merged.SuggestedFeatures) > max {
				merged.SuggestedFeatures = merged.SuggestedFeatures[:max]
			}
		}
	}
	return merged
}

// ProjectConfig is the one-shot form: parse a variant's config payload
// and apply it.
func ProjectConfig[T any](base Analysis[T], config map[string]any) Analysis[T] {
	return Project(base, ParseAdjustments(config))
}

// asFloat accepts the numeric representations a JSON round-trip can
// produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
