package classify

// Rule scoring thresholds. A composite score below easyThreshold labels the
// query EASY, above hardThreshold labels it HARD; anything between is left
// to the learned classifier.
const (
	easyThreshold = 0.3
	hardThreshold = 0.7
)

// RuleClassifier is the deterministic first-stage classifier. It is a total
// function with no failure mode: when the score lands in the ambiguous band
// it abstains rather than guessing.
type RuleClassifier struct{}

// NewRuleClassifier creates a rule classifier.
func NewRuleClassifier() *RuleClassifier {
	return &RuleClassifier{}
}

// Classify scores the feature vector against the rule set. The second return
// value is false when the rules have no opinion.
func (c *RuleClassifier) Classify(f FeatureVector) (Tier, bool) {
	score := Score(f)
	switch {
	case score < easyThreshold:
		return TierEasy, true
	case score > hardThreshold:
		return TierHard, true
	default:
		return "", false
	}
}

// Score computes the composite difficulty score in [0, 1].
func Score(f FeatureVector) float64 {
	score := 0.0

	if f.WordCount > 50 {
		score += 0.15
	} else if f.WordCount < 10 {
		score -= 0.1
	}

	if f.SentenceCount > 3 {
		score += 0.15
	}

	score += f.ReasoningRatio * 0.2
	score += f.SystemDesignRatio * 0.2
	score += f.CodeRatio * 0.15
	score += f.ConnectiveRatio * 0.1

	if f.QuestionCount > 2 || f.HasMultipleQuestions == 1.0 {
		score += 0.15
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
