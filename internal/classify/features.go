// Package classify implements the hybrid difficulty classification pipeline.
//
// Purpose:
//   This package turns raw query text into a fixed-size feature vector and
//   produces a difficulty tier for it. Classification runs in two stages: a
//   deterministic rule set that covers the unambiguous cases, and a learned
//   logistic-regression model consulted when the rules abstain. The
//   confidence gate fuses both outputs into a single decision.
//
// Key Responsibilities:
//   - Deterministic feature extraction (no I/O, no side channels)
//   - Rule-based tier scoring
//   - Learned model inference with atomic model replacement
//   - Decision fusion with a conservative low-confidence fallback
//
package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// Tier is the difficulty classification of a query. It determines which
// backend model answers the query.
type Tier string

const (
	TierEasy   Tier = "EASY"
	TierMedium Tier = "MEDIUM"
	TierHard   Tier = "HARD"
)

// ParseTier validates a caller-supplied tier string (case-insensitive).
func ParseTier(s string) (Tier, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(TierEasy):
		return TierEasy, true
	case string(TierMedium):
		return TierMedium, true
	case string(TierHard):
		return TierHard, true
	}
	return "", false
}

// Keyword groups used by both the rule scorer and the learned feature set.
var (
	reasoningKeywords = []string{
		"why", "explain", "compare", "analyze", "evaluate", "justify",
		"reason", "rationale", "because", "therefore", "conclusion",
	}
	systemDesignKeywords = []string{
		"architecture", "scalable", "api", "pipeline", "microservice",
		"distributed", "database", "cache", "load", "performance",
		"optimization", "design pattern", "system design",
	}
	codeIndicators = []string{
		"class", "def", "import", "function", "variable", "array",
		"object", "method", "syntax", "code", "programming", "algorithm",
	}
	questionWords = []string{"what", "why", "how", "when", "where", "which", "who"}

	// Connective words stand in for part-of-speech complexity: a high density
	// of conjunctions and subordinators correlates with multi-clause queries.
	connectiveWords = map[string]struct{}{
		"and": {}, "or": {}, "but": {}, "if": {}, "then": {}, "because": {},
		"while": {}, "since": {}, "although": {}, "unless": {}, "whereas": {},
		"however": {}, "therefore": {}, "so": {}, "when": {}, "after": {},
		"before": {}, "until": {}, "of": {}, "in": {}, "on": {}, "with": {},
		"for": {}, "to": {}, "from": {}, "by": {}, "as": {},
	}

	codePunctuationRe = regexp.MustCompile(`[{}();=]`)
	bracketsRe        = regexp.MustCompile(`[\[\](){}]`)
	sentenceSplitRe   = regexp.MustCompile(`[.!?]+`)
	tokenRe           = regexp.MustCompile(`[A-Za-z0-9']+`)
)

// FeatureVector is the fixed-size lexical feature set extracted from a query.
// It is a deterministic function of the query text only and is never
// persisted.
type FeatureVector struct {
	QueryLength          float64
	WordCount            float64
	SentenceCount        float64
	ConnectiveRatio      float64
	ReasoningRatio       float64
	SystemDesignRatio    float64
	CodeRatio            float64
	QuestionCount        float64
	HasMultipleQuestions float64
	HasCodePunctuation   float64
	HasBrackets          float64
	UppercaseRatio       float64
	DigitRatio           float64
}

// featureOrder fixes the position of each feature in the dense vector fed to
// the learned model. Training and inference must agree on this order; it is
// recorded in every model artifact and verified at load time.
var featureOrder = []string{
	"query_length", "word_count", "sentence_count", "connective_ratio",
	"reasoning_ratio", "system_design_ratio", "code_ratio", "question_count",
	"has_multiple_questions", "has_code_punctuation", "has_brackets",
	"uppercase_ratio", "digit_ratio",
}

// FeatureOrder returns the canonical feature ordering for model artifacts.
func FeatureOrder() []string {
	out := make([]string, len(featureOrder))
	copy(out, featureOrder)
	return out
}

// ExtractFeatures computes the feature vector for a query. Pure function.
func ExtractFeatures(query string) FeatureVector {
	lower := strings.ToLower(query)
	tokens := tokenize(query)

	sentences := 0
	for _, s := range sentenceSplitRe.Split(query, -1) {
		if strings.TrimSpace(s) != "" {
			sentences++
		}
	}
	if sentences == 0 && strings.TrimSpace(query) != "" {
		sentences = 1
	}

	connectives := 0
	for _, tok := range tokens {
		if _, ok := connectiveWords[strings.ToLower(tok)]; ok {
			connectives++
		}
	}

	upper, digits := 0, 0
	for _, r := range query {
		if unicode.IsUpper(r) {
			upper++
		}
		if unicode.IsDigit(r) {
			digits++
		}
	}

	questionCount := 0
	for _, w := range questionWords {
		if strings.Contains(lower, w) {
			questionCount++
		}
	}

	return FeatureVector{
		QueryLength:          float64(len(query)),
		WordCount:            float64(len(tokens)),
		SentenceCount:        float64(sentences),
		ConnectiveRatio:      float64(connectives) / float64(max(len(tokens), 1)),
		ReasoningRatio:       keywordRatio(lower, reasoningKeywords),
		SystemDesignRatio:    keywordRatio(lower, systemDesignKeywords),
		CodeRatio:            keywordRatio(lower, codeIndicators),
		QuestionCount:        float64(questionCount),
		HasMultipleQuestions: boolFeature(strings.Count(query, "?") > 1),
		HasCodePunctuation:   boolFeature(codePunctuationRe.MatchString(query)),
		HasBrackets:          boolFeature(bracketsRe.MatchString(query)),
		UppercaseRatio:       float64(upper) / float64(max(len(query), 1)),
		DigitRatio:           float64(digits) / float64(max(len(query), 1)),
	}
}

// Dense returns the feature values in canonical order, ready for the
// learned model.
func (f FeatureVector) Dense() []float64 {
	return []float64{
		f.QueryLength, f.WordCount, f.SentenceCount, f.ConnectiveRatio,
		f.ReasoningRatio, f.SystemDesignRatio, f.CodeRatio, f.QuestionCount,
		f.HasMultipleQuestions, f.HasCodePunctuation, f.HasBrackets,
		f.UppercaseRatio, f.DigitRatio,
	}
}

func tokenize(query string) []string {
	return tokenRe.FindAllString(query, -1)
}

func keywordRatio(lower string, keywords []string) float64 {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(max(len(keywords), 1))
}

func boolFeature(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
