package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"keycards/lib/sl"
)

// Sink pushes a one-shot report to the configured webhook. The wire
// shape matches the push service the sweep reports to: title, content
// and three unused null fields.
type Sink struct {
	hc  *http.Client
	url string
	log *slog.Logger
}

func NewSink(url string, logger *slog.Logger) *Sink {
	if url == "" {
		return nil
	}
	return &Sink{
		hc:  &http.Client{Timeout: 10 * time.Second},
		url: url,
		log: logger.With(sl.Module("report")),
	}
}

func (s *Sink) Send(ctx context.Context, title, content string) error {
	payload := map[string]interface{}{
		"title":   title,
		"content": content,
		"date":    nil,
		"time":    nil,
		"type":    nil,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("send report: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("report sink status %s", resp.Status)
	}
	s.log.Debug("report delivered", slog.String("title", title))
	return nil
}
