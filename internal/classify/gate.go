package classify

// Source records the provenance of a final tier decision.
type Source string

const (
	SourceAlgorithmic Source = "algorithmic"
	SourceML          Source = "ml"
	SourceOverride    Source = "user_override"
)

// GateResult is the fused classification outcome for one query. Both stage
// outputs are retained for the decision log even when only one decides.
type GateResult struct {
	AlgorithmicLabel Tier // "" when the rules abstained
	MLLabel          Tier // "" when the learned model was unavailable
	MLConfidence     float64
	FinalLabel       Tier
	Source           Source
	LowConfidence    bool
}

// Gate fuses the rule-based and learned classifier outputs into one final
// tier. It is a pure decision function: no I/O, no failure mode.
type Gate struct {
	rules            *RuleClassifier
	learned          *LearnedClassifier
	defaultThreshold float64
	fallbackTier     Tier
}

// NewGate creates a confidence gate. fallbackTier is the tier used when both
// stages abstain; it should be the most expensive tier so an actually hard
// query is never under-served.
func NewGate(rules *RuleClassifier, learned *LearnedClassifier, defaultThreshold float64, fallbackTier Tier) *Gate {
	if fallbackTier == "" {
		fallbackTier = TierHard
	}
	return &Gate{
		rules:            rules,
		learned:          learned,
		defaultThreshold: defaultThreshold,
		fallbackTier:     fallbackTier,
	}
}

// Decide classifies the query. Precedence:
//  1. A rule-based label is authoritative.
//  2. Otherwise the learned label wins when its confidence clears the
//     active model's threshold.
//  3. Otherwise the conservative fallback tier applies, flagged
//     low-confidence.
//
// The learned model runs even when the rules decide, so the decision log
// always captures both labels for comparison.
func (g *Gate) Decide(f FeatureVector, query string) GateResult {
	result := GateResult{}

	if mlLabel, confidence, ok := g.learned.Predict(f, query); ok {
		result.MLLabel = mlLabel
		result.MLConfidence = confidence
	}

	if label, ok := g.rules.Classify(f); ok {
		result.AlgorithmicLabel = label
		result.FinalLabel = label
		result.Source = SourceAlgorithmic
		return result
	}

	threshold := g.learned.Threshold(g.defaultThreshold)
	if result.MLLabel != "" && result.MLConfidence >= threshold {
		result.FinalLabel = result.MLLabel
		result.Source = SourceML
		return result
	}

	result.FinalLabel = g.fallbackTier
	result.Source = SourceML
	result.LowConfidence = true
	return result
}
