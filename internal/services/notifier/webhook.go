package notifier

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/NordCoder/Heartbeat/internal/domain/check"
	"github.com/NordCoder/Heartbeat/internal/domain/notification"
	"github.com/NordCoder/Heartbeat/internal/domain/subscriber"
	"github.com/NordCoder/Heartbeat/internal/obs/retry"
)

const (
	SignatureHeader = "X-Heartbeat-Signature"
	EventHeader     = "X-Heartbeat-Event"
)

var _ notification.Channel = (*Webhook)(nil)

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("webhook responded %d", e.Code) }

// WebhookPayload is the JSON body posted to webhook subscribers.
type WebhookPayload struct {
	Check        string     `json:"check"`
	CheckID      int64      `json:"check_id"`
	Kind         string     `json:"kind"`
	Tags         []string   `json:"tags"`
	LastSignalAt *time.Time `json:"last_signal_at"`
	Subject      string     `json:"subject"`
	Text         string     `json:"text"`
	SentAt       time.Time  `json:"sent_at"`
}

type Webhook struct {
	client *http.Client
	policy retry.Policy
	clock  notification.Clock
	log    *zap.Logger
}

func NewWebhook(timeout time.Duration, attempts int, clock notification.Clock, log *zap.Logger) *Webhook {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "notifier.webhook"))
	return &Webhook{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		policy: retry.Policy{
			Name:      "webhook",
			Attempts:  attempts,
			Backoff:   retry.ExpoJitter{Base: 250 * time.Millisecond, Max: 2 * time.Second, Jitter: 0.2},
			Retryable: retryableHTTP,
			OnAttempt: func(i int, err error) {
				log.Debug("webhook attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			},
		},
		clock: clock,
		log:   log,
	}
}

// retryableHTTP retries transport errors, 429 and 5xx.
func retryableHTTP(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Sign returns the signature header value for body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func (w *Webhook) Send(ctx context.Context, sub *subscriber.Subscriber, chk *check.Check, kind notification.Kind) error {
	msg := Compose(chk, kind)
	tags := []string(chk.Tags)
	if tags == nil {
		tags = []string{}
	}
	body, err := json.Marshal(WebhookPayload{
		Check:        chk.Name,
		CheckID:      chk.ID,
		Kind:         string(kind),
		Tags:         tags,
		LastSignalAt: chk.LastSignalAt,
		Subject:      msg.Subject,
		Text:         msg.Text,
		SentAt:       w.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}
	return retry.Do(ctx, func() error { return w.post(ctx, sub, kind, body) }, w.policy)
}

func (w *Webhook) post(ctx context.Context, sub *subscriber.Subscriber, kind notification.Kind, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Address, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "heartbeat-notifier")
	req.Header.Set(EventHeader, string(kind))
	if sub.Secret != "" {
		req.Header.Set(SignatureHeader, Sign(sub.Secret, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}
