package signer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"keycards/internal/config"
	"keycards/lib/sl"
)

// Client talks to the external fingerprint service. The service wraps
// the anti-abuse signing algorithm, which is opaque to us: the whole
// contract is activity URL in, signed token out.
type Client struct {
	hc      *http.Client
	baseURL string
	log     *slog.Logger
}

func NewClient(cfg config.SignerConfig, logger *slog.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if cfg.Timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		hc:      &http.Client{Timeout: timeout},
		baseURL: cfg.Url,
		log:     logger.With(sl.Module("signer")),
	}
}

// Sign requests a fingerprint token for the given activity URL.
func (c *Client) Sign(ctx context.Context, activityUrl string) (string, error) {
	log := c.log.With(slog.String("activity_url", activityUrl))

	status := "ERROR"
	t1 := time.Now()
	defer func() {
		log.Debug("signer request completed",
			slog.String("duration", fmt.Sprintf("%.3fms", float64(time.Since(t1))/float64(time.Millisecond))),
			slog.String("status", status))
	}()

	payload := map[string]interface{}{
		"url": activityUrl,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		log.Error("request failed", sl.Err(err))
		return "", fmt.Errorf("signer request: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	status = resp.Status
	if resp.StatusCode >= 300 {
		log.Error("signer returned error",
			slog.String("status", resp.Status),
			slog.String("body", string(body)))
		return "", fmt.Errorf("signer %s: %s", resp.Status, body)
	}

	var signResp struct {
		Token string `json:"token"`
	}
	if err = json.Unmarshal(body, &signResp); err != nil {
		log.Error("parse signer response", sl.Err(err))
		return "", fmt.Errorf("parse signer response: %w", err)
	}
	if signResp.Token == "" {
		return "", fmt.Errorf("signer returned empty token")
	}
	return signResp.Token, nil
}
