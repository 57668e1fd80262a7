package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendsur/caja-api/internal/config"
	"github.com/vendsur/caja-api/internal/domain/enum"
	domainGateway "github.com/vendsur/caja-api/internal/domain/gateway"
	"github.com/vendsur/caja-api/pkg/apperror"
)

func newTestWebpayClient(serverURL string, timeout time.Duration) *WebpayClient {
	return NewWebpayClient(&config.WebpayConfig{
		BaseURL:      serverURL,
		CommerceCode: "597055555532",
		APIKey:       "test-key",
		ReturnURL:    "http://localhost:8080/api/v1/checkout/return",
		Timeout:      timeout,
	})
}

func TestWebpayAuthorize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		assert.Equal(t, "597055555532", r.Header.Get("Tbk-Api-Key-Id"))
		assert.Equal(t, "test-key", r.Header.Get("Tbk-Api-Key-Secret"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token":"e9d555262db0f989e49d724b4db0b0af","url":"https://webpay.example/form"}`))
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 5*time.Second)
	session, err := client.Authorize(context.Background(), domainGateway.AuthorizeRequest{
		BuyOrder:  "OC-1",
		SessionID: "sess-1",
		Amount:    24395,
	})
	require.NoError(t, err)

	assert.Equal(t, "e9d555262db0f989e49d724b4db0b0af", session.Token)
	assert.Equal(t, "https://webpay.example/form", session.RedirectURL)
}

func TestWebpayCommit_Authorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		w.Write([]byte(`{
			"buy_order": "OC-1",
			"session_id": "sess-1",
			"amount": 24395,
			"status": "AUTHORIZED",
			"response_code": 0,
			"authorization_code": "1213",
			"card_detail": {"card_number": "6623"},
			"transaction_date": "2026-03-14T12:30:00Z"
		}`))
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 5*time.Second)
	payment, err := client.Commit(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, enum.PaymentStatusAuthorized, payment.Status)
	assert.True(t, payment.Authorized())
	assert.Equal(t, "OC-1", payment.BuyOrder)
	assert.Equal(t, int64(24395), payment.Amount)
	assert.Equal(t, "1213", payment.AuthorizationCode)
	assert.Equal(t, "6623", payment.CardNumber)
	assert.Equal(t, 2026, payment.TransactionDate.Year())
}

func TestWebpayCommit_Declined(t *testing.T) {
	// A non-zero response code is a decline even when status looks settled
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buy_order":"OC-1","amount":24395,"status":"FAILED","response_code":-1}`))
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 5*time.Second)
	payment, err := client.Commit(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, enum.PaymentStatusFailed, payment.Status)
	assert.False(t, payment.Authorized())
}

func TestWebpayCommit_MissingResponseCodeIsDecline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buy_order":"OC-1","amount":24395,"status":"AUTHORIZED"}`))
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 5*time.Second)
	payment, err := client.Commit(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.False(t, payment.Authorized())
}

func TestWebpayCommit_ReplayFallsBackToStatus(t *testing.T) {
	var statusCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			// Token already committed
			w.WriteHeader(http.StatusConflict)
			return
		}
		statusCalls++
		w.Write([]byte(`{"buy_order":"OC-1","amount":24395,"status":"AUTHORIZED","response_code":0}`))
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 5*time.Second)
	payment, err := client.Commit(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.True(t, payment.Authorized())
	assert.Equal(t, 1, statusCalls)
}

func TestWebpayCommit_TimeoutIsAmbiguous(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 20*time.Millisecond)
	_, err := client.Commit(context.Background(), "tok-1")
	require.Error(t, err)

	assert.True(t, errors.Is(err, apperror.ErrPaymentAmbiguous))
}

func TestWebpayStatus_NoSideEffects(t *testing.T) {
	var methods []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		w.Write([]byte(`{"buy_order":"OC-1","amount":24395,"status":"AUTHORIZED","response_code":0}`))
	}))
	defer server.Close()

	client := newTestWebpayClient(server.URL, 5*time.Second)
	_, err := client.Status(context.Background(), "tok-1")
	require.NoError(t, err)
	_, err = client.Status(context.Background(), "tok-1")
	require.NoError(t, err)

	assert.Equal(t, []string{http.MethodGet, http.MethodGet}, methods)
}
