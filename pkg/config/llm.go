package config

import (
	"time"

	"github.com/maestrohq/maestro/pkg/models"
)

// ModelRate is the price of one million tokens, in dollars.
type ModelRate struct {
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

// LLMConfig configures the Anthropic-backed LLM client and the executor's
// context budget.
type LLMConfig struct {
	// APIKeyEnv names the environment variable holding the API key
	APIKeyEnv string `yaml:"api_key_env"`

	// Models maps a tier to a concrete model identifier
	Models map[models.ModelTier]string `yaml:"models"`

	// Rates maps a tier to its token pricing
	Rates map[models.ModelTier]ModelRate `yaml:"rates"`

	// MaxTokens is the response token ceiling per request
	MaxTokens int `yaml:"max_tokens"`

	// RequestTimeout bounds a single LLM call, including retries' sleeps
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// MaxToolIterations bounds the executor's tool-use loop
	MaxToolIterations int `yaml:"max_tool_iterations"`

	// ContextTokenBudget caps the estimated prompt size; reference files
	// are dropped from the tail when the estimate exceeds it
	ContextTokenBudget int `yaml:"context_token_budget"`

	// LearningsLimit caps how many past learnings a prompt carries
	LearningsLimit int `yaml:"learnings_limit"`
}

// ModelID resolves the concrete model identifier for a tier. Falls back to
// the sonnet entry when the tier is unmapped.
func (c *LLMConfig) ModelID(tier models.ModelTier) string {
	if id, ok := c.Models[tier]; ok && id != "" {
		return id
	}
	return c.Models[models.ModelTierSonnet]
}

// Rate resolves the pricing for a tier. Unmapped tiers price at zero.
func (c *LLMConfig) Rate(tier models.ModelTier) ModelRate {
	return c.Rates[tier]
}

// DefaultLLMConfig returns the built-in LLM defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		APIKeyEnv: "ANTHROPIC_API_KEY",
		Models: map[models.ModelTier]string{
			models.ModelTierOpus:   "claude-opus-4-1",
			models.ModelTierSonnet: "claude-sonnet-4-5",
			models.ModelTierHaiku:  "claude-haiku-4-5",
		},
		Rates: map[models.ModelTier]ModelRate{
			models.ModelTierOpus:   {InputPerMTok: 15, OutputPerMTok: 75},
			models.ModelTierSonnet: {InputPerMTok: 3, OutputPerMTok: 15},
			models.ModelTierHaiku:  {InputPerMTok: 1, OutputPerMTok: 5},
		},
		MaxTokens:          8192,
		RequestTimeout:     2 * time.Minute,
		MaxToolIterations:  5,
		ContextTokenBudget: 150000,
		LearningsLimit:     10,
	}
}
