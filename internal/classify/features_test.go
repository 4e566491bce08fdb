package classify

import (
	"strings"
	"testing"
)

func TestExtractFeatures_SimpleQuestion(t *testing.T) {
	f := ExtractFeatures("What is 2+2?")

	if f.WordCount < 3 || f.WordCount > 5 {
		t.Errorf("unexpected word count %v", f.WordCount)
	}
	if f.SentenceCount != 1 {
		t.Errorf("expected 1 sentence, got %v", f.SentenceCount)
	}
	if f.QuestionCount == 0 {
		t.Error("expected at least one question word")
	}
	if f.HasMultipleQuestions != 0 {
		t.Error("single question marked as multiple")
	}
	if f.CodeRatio != 0 {
		t.Errorf("no code indicators expected, got ratio %v", f.CodeRatio)
	}
}

func TestExtractFeatures_CodeHeavyQuery(t *testing.T) {
	query := "Refactor this class: def process(items): { return [x for x in items]; }"
	f := ExtractFeatures(query)

	if f.HasCodePunctuation != 1.0 {
		t.Error("expected code punctuation flag")
	}
	if f.HasBrackets != 1.0 {
		t.Error("expected brackets flag")
	}
	if f.CodeRatio == 0 {
		t.Error("expected nonzero code keyword ratio")
	}
}

func TestExtractFeatures_ReasoningSignals(t *testing.T) {
	query := "Explain why this happens and analyze the tradeoffs. Compare both approaches and justify your conclusion."
	f := ExtractFeatures(query)

	if f.ReasoningRatio == 0 {
		t.Error("expected nonzero reasoning ratio")
	}
	if f.ConnectiveRatio == 0 {
		t.Error("expected nonzero connective ratio")
	}
	if f.SentenceCount != 2 {
		t.Errorf("expected 2 sentences, got %v", f.SentenceCount)
	}
}

func TestExtractFeatures_Deterministic(t *testing.T) {
	query := "How do I design a scalable microservice architecture with a distributed cache?"
	a := ExtractFeatures(query)
	b := ExtractFeatures(query)
	if a != b {
		t.Error("feature extraction is not deterministic")
	}
}

func TestExtractFeatures_EmptyAndWhitespace(t *testing.T) {
	for _, query := range []string{"", "   ", "\n\t"} {
		f := ExtractFeatures(query)
		if f.WordCount != 0 {
			t.Errorf("query %q: expected zero word count, got %v", query, f.WordCount)
		}
	}
}

func TestDense_MatchesFeatureOrder(t *testing.T) {
	f := ExtractFeatures("Why does this fail?")
	dense := f.Dense()
	if len(dense) != len(FeatureOrder()) {
		t.Fatalf("dense vector has %d entries, feature order names %d", len(dense), len(FeatureOrder()))
	}
}

func TestExtractFeatures_MultipleQuestions(t *testing.T) {
	query := "What is a goroutine? How does it differ from a thread? When should I use channels?"
	f := ExtractFeatures(query)
	if f.HasMultipleQuestions != 1.0 {
		t.Error("expected multiple-questions flag")
	}
	if f.QuestionCount < 3 {
		t.Errorf("expected at least 3 question words, got %v", f.QuestionCount)
	}
}

func TestParseTier(t *testing.T) {
	cases := []struct {
		in   string
		want Tier
		ok   bool
	}{
		{"EASY", TierEasy, true},
		{"easy", TierEasy, true},
		{" Medium ", TierMedium, true},
		{"HARD", TierHard, true},
		{"EXTREME", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseTier(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("ParseTier(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestExtractFeatures_LongQuery(t *testing.T) {
	query := strings.Repeat("design a distributed system that scales and ", 20) + "explain why."
	f := ExtractFeatures(query)
	if f.WordCount <= 50 {
		t.Errorf("expected long query word count above 50, got %v", f.WordCount)
	}
	if f.SystemDesignRatio == 0 {
		t.Error("expected system design keywords to register")
	}
}
