package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Config struct {
	APIBaseURL         string
	ChannelAccessToken string
}

// MessagingProvider talks to the LINE Messaging API push endpoint.
type MessagingProvider struct {
	cfg    Config
	client *http.Client
}

func NewMessaging(cfg Config) *MessagingProvider {
	return &MessagingProvider{
		cfg: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type pushRequest struct {
	To       string        `json:"to"`
	Messages []textMessage `json:"messages"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (p *MessagingProvider) PushMessage(ctx context.Context, lineUserID string, message string) error {
	payload, err := json.Marshal(pushRequest{
		To:       lineUserID,
		Messages: []textMessage{{Type: "text", Text: message}},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBaseURL+"/v2/bot/message/push", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.cfg.ChannelAccessToken)

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("line push failed: status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
