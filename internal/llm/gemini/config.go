package gemini

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/receipts-agent/internal/common"
)

// Config for the Gemini client.
type Config struct {
	APIKey  string        // required; no degraded fallback
	BaseURL string        // default https://generativelanguage.googleapis.com
	Model   string        // e.g., "gemini-2.5-flash"
	Timeout time.Duration // http client timeout
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds a Gemini client. A missing API key is a hard failure at
// construction time, not a silently-degraded null client.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "gemini api key is required", common.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}
