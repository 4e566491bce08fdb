package classify

import (
	"strings"
	"testing"
)

const hardQuery = "Why does my distributed microservice architecture fail to scale when the " +
	"database cache is under load? Explain and analyze the performance tradeoffs because I " +
	"need to evaluate each design pattern. How should I refactor the code and which algorithm " +
	"or function should the pipeline use? Compare the options, justify your conclusion, and " +
	"therefore propose a scalable api optimization plan. What about load balancing and when " +
	"would you use it?"

func TestRuleClassifier_EasyQuery(t *testing.T) {
	c := NewRuleClassifier()
	tier, ok := c.Classify(ExtractFeatures("What is 2+2?"))
	if !ok {
		t.Fatal("expected rules to decide a trivial query")
	}
	if tier != TierEasy {
		t.Errorf("expected EASY, got %s", tier)
	}
}

func TestRuleClassifier_HardQuery(t *testing.T) {
	c := NewRuleClassifier()
	f := ExtractFeatures(hardQuery)
	tier, ok := c.Classify(f)
	if !ok {
		t.Fatalf("expected rules to decide, score was %v", Score(f))
	}
	if tier != TierHard {
		t.Errorf("expected HARD, got %s (score %v)", tier, Score(f))
	}
}

func TestRuleClassifier_AmbiguousQueryAbstains(t *testing.T) {
	// Long and multi-sentence but without reasoning or design keywords, so
	// the score lands in the ambiguous band.
	query := strings.Repeat("I went to the store and bought some apples for the kids. ", 6)
	c := NewRuleClassifier()
	f := ExtractFeatures(query)
	if _, ok := c.Classify(f); ok {
		t.Errorf("expected abstention for ambiguous query, score was %v", Score(f))
	}
}

func TestScore_Bounds(t *testing.T) {
	queries := []string{
		"",
		"hi",
		hardQuery,
		strings.Repeat("explain why because therefore analyze evaluate ", 40),
	}
	for _, q := range queries {
		score := Score(ExtractFeatures(q))
		if score < 0 || score > 1 {
			t.Errorf("score for %q out of bounds: %v", q[:min(len(q), 40)], score)
		}
	}
}

func TestScore_ShortQueryPenalty(t *testing.T) {
	short := Score(ExtractFeatures("What is Go?"))
	long := Score(ExtractFeatures(hardQuery))
	if short >= long {
		t.Errorf("expected short query to score below hard query: %v >= %v", short, long)
	}
}
