package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

type FeishuConfig struct {
	WebhookURL string        `yaml:"webhook_url"`
	CardScript string        `yaml:"card_script"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WebhookResult mirrors the response of the Feishu bot endpoint.
type WebhookResult struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	OK         bool   `json:"ok"`
	Data       any    `json:"data"`
}

// Feishu posts interactive cards to a custom bot webhook.
type Feishu struct {
	url    string
	client *http.Client
	cards  CardBuilder
}

func NewFeishu(cfg FeishuConfig, cards CardBuilder) (*Feishu, error) {
	if cfg.WebhookURL == "" {
		return nil, errors.New("feishu webhook url is required")
	}

	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cards == nil {
		cards = DefaultCards{}
	}

	return &Feishu{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.Timeout},
		cards:  cards,
	}, nil
}

// SendNotice renders n and posts it. A non-2xx answer is not an error; it
// is reported through the result.
func (f *Feishu) SendNotice(ctx context.Context, n Notice) (WebhookResult, error) {
	card, err := f.cards.Build(n)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("cannot build card: %w", err)
	}

	body, err := json.Marshal(map[string]any{
		"msg_type": "interactive",
		"card":     card,
	})
	if err != nil {
		return WebhookResult{}, fmt.Errorf("cannot encode card: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return WebhookResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return WebhookResult{}, fmt.Errorf("cannot reach feishu webhook: %w", err)
	}
	defer resp.Body.Close()

	var data any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1_048_576)).Decode(&data); err != nil && !errors.Is(err, io.EOF) {
		return WebhookResult{}, fmt.Errorf("cannot decode feishu response: %w", err)
	}

	return WebhookResult{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		Data:       data,
	}, nil
}
