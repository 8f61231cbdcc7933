package models

// tokensPerPriceUnit is the denomination of catalog prices.
const tokensPerPriceUnit = 1_000_000

// Cost converts reported token usage and catalog pricing into a monetary
// figure. It returns nil when usage is absent: the upstream never reported
// counts, so no cost can be asserted. No rounding is applied here; display
// formatting belongs to the presentation layer.
func Cost(usage *Usage, m *ModelConfig) *float64 {
	if usage == nil {
		return nil
	}
	cost := float64(usage.PromptTokens)*m.PromptPrice/tokensPerPriceUnit +
		float64(usage.CompletionTokens)*m.CompletionPrice/tokensPerPriceUnit
	return &cost
}
