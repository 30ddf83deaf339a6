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

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrWebhookStatus is returned for non-2xx webhook responses
var ErrWebhookStatus = errors.New("webhook returned non-success status")

// WebhookNotifier POSTs status changes as JSON. Calls go through a circuit
// breaker so an unreachable endpoint fails fast.
type WebhookNotifier struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[struct{}]
}

// NewWebhookNotifier creates a notifier posting to url
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "status-webhook",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("Webhook circuit breaker state changed",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: timeout},
		cb:     cb,
	}
}

func (n *WebhookNotifier) NotifyServerStatus(ctx context.Context, status models.ServerStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	_, err = n.cb.Execute(func() (struct{}, error) {
		return struct{}{}, n.post(ctx, body)
	})
	return err
}

func (n *WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}
	return nil
}
