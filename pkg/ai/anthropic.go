package ai

import (
	"context"
	"fmt"
)

// AnthropicConfig placeholder for anthropic integration configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string
}

// AnthropicScreener is a stub implementation that can be expanded once the SDK is available.
type AnthropicScreener struct{}

// NewAnthropicScreener constructs a new stub screener.
func NewAnthropicScreener(cfg AnthropicConfig) (*AnthropicScreener, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	return &AnthropicScreener{}, nil
}

// Screen is not yet implemented for Anthropic models.
func (a *AnthropicScreener) Screen(ctx context.Context, input ScreenInput) (ScreenResult, error) {
	return ScreenResult{}, fmt.Errorf("anthropic screener not implemented")
}
