package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"hi", 1},
		{"abcd", 1},
		{"abcdefgh", 2},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestEstimateUsage_SumInvariant(t *testing.T) {
	usage := EstimateUsage("what is the capital of france", "The capital of France is Paris.")
	if usage.TotalTokens != usage.TokensIn+usage.TokensOut {
		t.Errorf("total %d != in %d + out %d", usage.TotalTokens, usage.TokensIn, usage.TokensOut)
	}
	if usage.TokensIn == 0 || usage.TokensOut == 0 {
		t.Error("expected nonzero estimates for nonempty text")
	}
}
