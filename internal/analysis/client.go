package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/raaihank/chatpsy/internal/chatstats"
	"github.com/raaihank/chatpsy/internal/config"
	"github.com/raaihank/chatpsy/internal/logger"
	"go.uber.org/zap"
)

const maxResponseBytes = 10 << 20

// Client talks to the remote analysis service. It only ever sends
// anonymized text.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *logger.Logger
}

// NewClient creates a client for cfg.BaseURL.
func NewClient(cfg config.AnalysisConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: log.WithComponent("analysis"),
	}
}

// Analyze requests a relationship analysis of the chat.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}

	var resp AnalyzeResponse
	if err := c.post(ctx, "/analyze_chat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FetchMeta requests lightweight chat statistics without running an analysis.
func (c *Client) FetchMeta(ctx context.Context, chatText string) (*chatstats.ChatMeta, error) {
	req := metaRequest{ChatText: chatText}
	if err := Validate(req); err != nil {
		return nil, err
	}

	var meta chatstats.ChatMeta
	if err := c.post(ctx, "/chat_meta", req, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("Analysis request timed out", zap.String("path", path), zap.Duration("elapsed", time.Since(start)))
			return ErrTimeout
		}
		return fmt.Errorf("analysis request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Info("Analysis service responded",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		logger.Bytes("request_size", int64(len(body))),
		zap.Duration("elapsed", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusRequestTimeout:
		return ErrTimeout
	case resp.StatusCode == http.StatusTooManyRequests:
		detail := parseDetail(data)
		if detail == "" {
			detail = DefaultRateLimitDetail
		}
		return &RateLimitError{Detail: detail}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{StatusCode: resp.StatusCode, Detail: parseDetail(data)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseDetail extracts FastAPI's {"detail": ...}. Non-string details are
// returned as raw JSON.
func parseDetail(data []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(data, &body); err != nil || len(body.Detail) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(body.Detail, &s); err == nil {
		return s
	}
	if string(body.Detail) == "null" {
		return ""
	}
	return string(body.Detail)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
