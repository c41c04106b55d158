package usecase

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// CostEstimator estimates the output-token count and price of a completed
// generation. Loading the encoding can fail (it is fetched lazily by the
// tokenizer library); the estimator then degrades to a character heuristic
// rather than erroring; cost numbers are telemetry, not billing.
type CostEstimator struct {
	enc      *tiktoken.Tiktoken
	usdPer1K float64
}

// NewCostEstimator builds an estimator for the named tiktoken encoding.
func NewCostEstimator(encoding string, usdPer1K float64, logger *slog.Logger) *CostEstimator {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("tiktoken encoding unavailable, using character heuristic",
			"encoding", encoding, "error", err)
		enc = nil
	}
	return &CostEstimator{enc: enc, usdPer1K: usdPer1K}
}

// Estimate returns the token count and estimated USD cost for content.
func (e *CostEstimator) Estimate(content string) (tokens int, usd float64) {
	if e == nil {
		return 0, 0
	}
	if e.enc != nil {
		tokens = len(e.enc.Encode(content, nil, nil))
	} else {
		// Rough average of four characters per token for English prose.
		tokens = len(content) / 4
	}
	return tokens, float64(tokens) / 1000 * e.usdPer1K
}
