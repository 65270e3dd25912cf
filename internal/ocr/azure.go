package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-agent/internal/common"
)

// LayoutExtractor is the OCR collaborator interface the pipeline depends on.
// It turns a document image into a single markdown string.
type LayoutExtractor interface {
	GetLayoutAsMarkdown(ctx context.Context, path string) (string, error)
}

// Config for the Azure Document Intelligence client.
type Config struct {
	Endpoint     string // required
	Key          string // required
	APIVersion   string // default "2024-11-30"
	PollInterval time.Duration
	Timeout      time.Duration // ceiling for the analyze+poll cycle
}

// Client calls the prebuilt-layout model with markdown output. Analyze is
// asynchronous on the service side: submit returns 202 with an
// Operation-Location which we poll until a terminal status.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// NewClient builds the client. Missing credentials are a hard failure.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.Key == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "azure document intelligence endpoint and key are required", common.ErrInvalidInput)
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-11-30"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}, nil
}

// GetLayoutAsMarkdown analyzes a local document and returns its full content
// as one markdown string. Any transport, auth, or service fault comes back as
// a CollaboratorError; there is no retry here beyond what the service does.
func (c *Client) GetLayoutAsMarkdown(ctx context.Context, path string) (string, error) {
	reqID := uuid.New().String()
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", common.NewCollaboratorError("ocr", "read document", err)
	}

	c.logger.Info("ocr.analyze.start", "req_id", reqID, "path", path, "bytes", len(data))

	opLoc, err := c.submit(ctx, data)
	if err != nil {
		c.logger.Error("ocr.analyze.submit_error", "req_id", reqID, "error", err)
		return "", common.NewCollaboratorError("ocr", "submit analyze", err)
	}

	content, err := c.poll(ctx, opLoc)
	if err != nil {
		c.logger.Error("ocr.analyze.poll_error", "req_id", reqID, "error", err)
		return "", common.NewCollaboratorError("ocr", "poll analyze result", err)
	}

	c.logger.Info("ocr.analyze.ok",
		"req_id", reqID,
		"content_bytes", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if content == "" {
		return "No content extracted.", nil
	}
	return content, nil
}

func (c *Client) submit(ctx context.Context, data []byte) (string, error) {
	url := fmt.Sprintf("%s/documentintelligence/documentModels/prebuilt-layout:analyze?api-version=%s&outputContentFormat=markdown",
		strings.TrimRight(c.cfg.Endpoint, "/"), c.cfg.APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ocr.analyze.body_close_error", "error", err)
		}
	}()

	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("analyze status %d: %s", resp.StatusCode, string(raw))
	}
	opLoc := resp.Header.Get("Operation-Location")
	if opLoc == "" {
		return "", fmt.Errorf("missing Operation-Location header")
	}
	return opLoc, nil
}

func (c *Client) poll(ctx context.Context, opLoc string) (string, error) {
	deadline := time.Now().Add(c.cfg.Timeout)
	for {
		if time.Now().After(deadline) {
			return "", fmt.Errorf("analyze did not complete within %s", c.cfg.Timeout)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, opLoc, nil)
		if err != nil {
			return "", fmt.Errorf("build poll request: %w", err)
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.Key)

		resp, err := c.http.Do(req)
		if err != nil {
			return "", err
		}
		raw, _ := io.ReadAll(resp.Body)
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("ocr.analyze.body_close_error", "error", err)
		}
		if resp.StatusCode/100 != 2 {
			return "", fmt.Errorf("poll status %d: %s", resp.StatusCode, string(raw))
		}

		var out struct {
			Status        string `json:"status"`
			AnalyzeResult struct {
				Content string `json:"content"`
			} `json:"analyzeResult"`
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return "", fmt.Errorf("decode poll response: %w", err)
		}

		switch strings.ToLower(out.Status) {
		case "succeeded":
			return out.AnalyzeResult.Content, nil
		case "failed":
			return "", fmt.Errorf("analyze failed: %s: %s", out.Error.Code, out.Error.Message)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}
