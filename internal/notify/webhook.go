package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	webhookSignatureHeader = "X-Signature"
	webhookEventTypeHeader = "X-Event-Type"
)

// Webhook posts events as JSON to a single endpoint, signed with
// HMAC-SHA256 over the raw body so the receiver can verify origin.
type Webhook struct {
	Endpoint string
	Secret   string
	HTTP     *http.Client
}

func NewWebhook(endpoint, secret string) *Webhook {
	return &Webhook{
		Endpoint: endpoint,
		Secret:   secret,
		HTTP:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *Webhook) Notify(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set(webhookEventTypeHeader, ev.Type)
	if w.Secret != "" {
		mac := hmac.New(sha256.New, []byte(w.Secret))
		mac.Write(body)
		req.Header.Set(webhookSignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
	}
	return nil
}
