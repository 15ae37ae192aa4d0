// Package notify delivers "estimate sent" notifications to an external
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"estimator/pkg/types"

	"github.com/sirupsen/logrus"
)

const EventEstimateSent = "estimate.sent"

type EstimateSentPayload struct {
	Event        string    `json:"event"`
	EstimateID   string    `json:"estimateId"`
	ProjectName  string    `json:"projectName"`
	CustomerID   string    `json:"customerId"`
	CustomerName string    `json:"customerName"`
	ContactEmail string    `json:"contactEmail,omitempty"`
	GrandTotal   float64   `json:"grandTotal"`
	SentAt       time.Time `json:"sentAt"`
}

// Webhook posts JSON payloads to a fixed URL. A Webhook with an empty URL
// is disabled and every call is a no-op.
type Webhook struct {
	url    string
	client *http.Client
	logger *logrus.Logger
	now    func() time.Time
}

func NewWebhook(url string, timeout time.Duration, logger *logrus.Logger) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
		now:    time.Now,
	}
}

func (w *Webhook) Enabled() bool {
	return w.url != ""
}

func (w *Webhook) EstimateSent(ctx context.Context, estimate *types.Estimate, customer *types.Customer) error {
	if !w.Enabled() {
		return nil
	}

	payload := EstimateSentPayload{
		Event:       EventEstimateSent,
		EstimateID:  estimate.ID,
		ProjectName: estimate.ProjectName,
		CustomerID:  estimate.CustomerID,
		GrandTotal:  estimate.EstimateAmount,
		SentAt:      w.now().UTC(),
	}
	if customer != nil {
		payload.CustomerName = customer.Name
		payload.ContactEmail = customer.ContactEmail
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook failed with status %d: %s", resp.StatusCode, string(msg))
	}

	w.logger.WithFields(logrus.Fields{
		"estimate_id": estimate.ID,
		"event":       EventEstimateSent,
	}).Debug("webhook delivered")

	return nil
}
