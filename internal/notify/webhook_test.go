package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"estimator/pkg/types"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	estimate = &types.Estimate{ID: "EST-000001", CustomerID: "CUS-000001", ProjectName: "Kitchen", EstimateAmount: 319}
	customer = &types.Customer{ID: "CUS-000001", Name: "Harbor Dental", ContactEmail: "office@example.com"}
)

func TestWebhook_PostsPayload(t *testing.T) {
	var got EstimateSentPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	logger, _ := logtest.NewNullLogger()
	hook := NewWebhook(srv.URL, time.Second, logger)
	hook.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, hook.EstimateSent(context.Background(), estimate, customer))

	assert.Equal(t, EventEstimateSent, got.Event)
	assert.Equal(t, "EST-000001", got.EstimateID)
	assert.Equal(t, "Harbor Dental", got.CustomerName)
	assert.Equal(t, "office@example.com", got.ContactEmail)
	assert.Equal(t, 319.0, got.GrandTotal)
	assert.True(t, got.SentAt.Equal(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestWebhook_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	logger, _ := logtest.NewNullLogger()
	err := NewWebhook(srv.URL, time.Second, logger).EstimateSent(context.Background(), estimate, customer)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestWebhook_DisabledWithoutURL(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	hook := NewWebhook("", time.Second, logger)

	assert.False(t, hook.Enabled())
	assert.NoError(t, hook.EstimateSent(context.Background(), estimate, customer))
}
