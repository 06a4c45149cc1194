package embedding

import (
	"fmt"
	"time"

	"github.com/hyperjump/kenkyu/internal/gemini"
)

// Provider names.
const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// Options selects and configures a provider.
type Options struct {
	Provider          string
	Model             string
	Dimensions        int
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

// NewEmbedder builds the configured provider, rate limited when RequestsPerSecond > 0.
func NewEmbedder(opts Options) (Embedder, error) {
	var e Embedder
	switch opts.Provider {
	case ProviderGemini, "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("gemini embedding requires an API key (set GOOGLE_API_KEY)")
		}
		client := gemini.NewClient(gemini.Config{BaseURL: opts.BaseURL, APIKey: opts.APIKey, Timeout: opts.Timeout})
		e = NewGeminiEmbedder(client, opts.Model, opts.Dimensions)
	case ProviderMock:
		e = NewMockEmbedder(opts.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: gemini, mock)", opts.Provider)
	}
	if opts.RequestsPerSecond > 0 {
		e = NewRateLimitedEmbedder(e, opts.RequestsPerSecond, opts.Burst)
	}
	return e, nil
}
