package llm

// TokenUsage is the estimated token consumption of one completed query.
// TotalTokens is always TokensIn + TokensOut.
type TokenUsage struct {
	TokensIn    int `json:"tokens_in"`
	TokensOut   int `json:"tokens_out"`
	TotalTokens int `json:"total_tokens"`
}

// EstimateTokens counts tokens with the 4-characters-per-token heuristic.
// Backends do not report exact counts, and the daily budget is advisory, so
// a stable estimate beats a per-model tokenizer dependency.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// EstimateUsage computes the token usage for a query/answer pair.
func EstimateUsage(query, answer string) TokenUsage {
	in := EstimateTokens(query)
	out := EstimateTokens(answer)
	return TokenUsage{
		TokensIn:    in,
		TokensOut:   out,
		TotalTokens: in + out,
	}
}
