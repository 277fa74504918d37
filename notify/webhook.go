package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier posts each message as JSON to a delivery gateway that owns
// the actual SMS and email providers.
type WebhookNotifier struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

type WebhookOption func(*WebhookNotifier)

func WithTimeout(d time.Duration) WebhookOption {
	return func(n *WebhookNotifier) {
		if d > 0 {
			n.httpClient.Timeout = d
		}
	}
}

func NewWebhookNotifier(url, apiKey string, opts ...WebhookOption) *WebhookNotifier {
	n := &WebhookNotifier{
		url:        url,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultWebhookTimeout},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Message is the JSON body posted to the gateway.
type Message struct {
	Kind        string  `json:"kind"`
	Channel     Channel `json:"channel"`
	Destination string  `json:"destination"`
	Code        string  `json:"code,omitempty"`
	ResetToken  string  `json:"resetToken,omitempty"`
}

func (n *WebhookNotifier) SendMFACode(ctx context.Context, channel Channel, destination, code string) error {
	return n.post(ctx, Message{Kind: "mfa_code", Channel: channel, Destination: destination, Code: code})
}

func (n *WebhookNotifier) SendPasswordReset(ctx context.Context, email, resetToken string) error {
	return n.post(ctx, Message{Kind: "password_reset", Channel: ChannelEmail, Destination: email, ResetToken: resetToken})
}

func (n *WebhookNotifier) post(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "[WebhookNotifier.post] encode")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "[WebhookNotifier.post] request")
	}
	req.Header.Set("Content-Type", "application/json")
	if n.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+n.apiKey)
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[WebhookNotifier.post] send")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("[WebhookNotifier.post] %s: status=%d body=%s", msg.Kind, resp.StatusCode, body)
	}
	return nil
}
