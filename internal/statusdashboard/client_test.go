package statusdashboard

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPayload = `{"id":"inc-1","type":"incident","status":"investigating"}`

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{Endpoint: "abc123"})

	assert.Equal(t, defaultBaseURL, client.config.BaseURL)
	assert.Equal(t, defaultProduct, client.config.Product)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.NotNil(t, client.limiter)
	assert.False(t, client.SigningEnabled())
	assert.Equal(t, "https://www.statusdashboard.com/webhooks/integration/abc123/", client.WebhookURL())
	assert.Equal(t, "https://www.statusdashboard.com/webhooks/integration/abc123/signature", client.signatureURL())
}

func TestNewClient_CustomConfig(t *testing.T) {
	client := NewClient(Config{
		BaseURL:   "https://dash.example.com/",
		Endpoint:  "xyz",
		Secret:    "s3cret",
		Product:   "acme",
		Timeout:   3 * time.Second,
		RateLimit: 5,
	})

	assert.Equal(t, "https://dash.example.com/webhooks/integration/xyz/", client.WebhookURL())
	assert.Equal(t, "x-acme-secret", client.secretHeader())
	assert.Equal(t, "x-acme-signature", client.signatureHeader())
	assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	assert.InDelta(t, 5.0, float64(client.limiter.Limit()), 0.001)
	assert.True(t, client.SigningEnabled())
}

func TestClient_Sign_Disabled(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Endpoint: "abc123"})

	signature, err := client.Sign(context.Background(), []byte(testPayload))
	require.NoError(t, err)
	assert.Empty(t, signature)
	assert.Zero(t, calls.Load())
}

func TestClient_Sign_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhooks/integration/abc123/signature", r.URL.Path)
		assert.Equal(t, "s3cret", r.Header.Get("x-statusdashboard-secret"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, testPayload, string(body))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"signature":"sig-42"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Endpoint: "abc123", Secret: "s3cret"})

	signature, err := client.Sign(context.Background(), []byte(testPayload))
	require.NoError(t, err)
	assert.Equal(t, "sig-42", signature)
}

func TestClient_Sign_Failures(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantMsg  string
	}{
		{
			name:     "ok instead of created",
			status:   http.StatusOK,
			body:     `{"signature":"sig-42"}`,
			wantCode: http.StatusOK,
			wantMsg:  `{"signature":"sig-42"}`,
		},
		{
			name:     "unauthorized",
			status:   http.StatusUnauthorized,
			body:     "bad secret",
			wantCode: http.StatusUnauthorized,
			wantMsg:  "bad secret",
		},
		{
			name:     "invalid json",
			status:   http.StatusCreated,
			body:     "not json",
			wantCode: http.StatusCreated,
			wantMsg:  "decode response",
		},
		{
			name:     "empty signature",
			status:   http.StatusCreated,
			body:     `{"signature":""}`,
			wantCode: http.StatusCreated,
			wantMsg:  "empty signature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(Config{BaseURL: server.URL, Endpoint: "abc123", Secret: "s3cret"})

			signature, err := client.Sign(context.Background(), []byte(testPayload))
			require.Error(t, err)
			assert.Empty(t, signature)

			var sigErr *SignatureError
			require.True(t, errors.As(err, &sigErr))
			assert.Equal(t, tt.wantCode, sigErr.Code)
			assert.Contains(t, sigErr.Message, tt.wantMsg)
		})
	}
}

func TestClient_Sign_NetworkError(t *testing.T) {
	client := NewClient(Config{
		BaseURL:  "http://localhost:59997",
		Endpoint: "abc123",
		Secret:   "s3cret",
		Timeout:  100 * time.Millisecond,
	})

	_, err := client.Sign(context.Background(), []byte(testPayload))
	require.Error(t, err)

	var sigErr *SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Zero(t, sigErr.Code)
	assert.Contains(t, sigErr.Message, "send request")
}

func TestClient_Deliver_Signed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/webhooks/integration/abc123/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "sig-42", r.Header.Get("x-statusdashboard-signature"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, testPayload, string(body))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Endpoint: "abc123", Secret: "s3cret"})

	delivery, err := client.Deliver(context.Background(), []byte(testPayload), "sig-42")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, delivery.StatusCode)
	assert.Equal(t, `{"ok":true}`, delivery.Body)
}

func TestClient_Deliver_Unsigned(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header[http.CanonicalHeaderKey("x-statusdashboard-signature")]
		assert.False(t, present)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Endpoint: "abc123"})

	delivery, err := client.Deliver(context.Background(), []byte(testPayload), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusAccepted, delivery.StatusCode)
	assert.Empty(t, delivery.Body)
}

func TestClient_Deliver_ErrorStatusIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("invalid status"))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Endpoint: "abc123"})

	delivery, err := client.Deliver(context.Background(), []byte(testPayload), "")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, delivery.StatusCode)
	assert.Equal(t, "invalid status", delivery.Body)
}

func TestClient_Deliver_NetworkError(t *testing.T) {
	client := NewClient(Config{
		BaseURL:  "http://localhost:59997",
		Endpoint: "abc123",
		Timeout:  100 * time.Millisecond,
	})

	delivery, err := client.Deliver(context.Background(), []byte(testPayload), "")
	require.Error(t, err)
	assert.Nil(t, delivery)

	var deliveryErr *DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Contains(t, deliveryErr.Error(), "statusdashboard delivery error: send request")
}

func TestClient_Deliver_CancelledContext(t *testing.T) {
	client := NewClient(Config{Endpoint: "abc123", RateLimit: 0.001})

	// Drain the single burst token so the next call has to wait.
	require.True(t, client.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Deliver(ctx, []byte(testPayload), "")
	var deliveryErr *DeliveryError
	require.True(t, errors.As(err, &deliveryErr))
	assert.Contains(t, deliveryErr.Message, "rate limiter")
}

func TestWebhookOutcome(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{http.StatusOK, "success"},
		{http.StatusCreated, "success"},
		{http.StatusBadRequest, "client_error"},
		{http.StatusNotFound, "client_error"},
		{http.StatusBadGateway, "server_error"},
		{http.StatusMovedPermanently, "other"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, webhookOutcome(tt.code))
		})
	}
}

func TestMaskEndpoint(t *testing.T) {
	assert.Equal(t, "abc", maskEndpoint("abc"))
	assert.Equal(t, "abcd...mnop", maskEndpoint("abcdefghijklmnop"))
}

func TestErrors(t *testing.T) {
	assert.Equal(t, "statusdashboard signature error 401: bad secret",
		(&SignatureError{Code: 401, Message: "bad secret"}).Error())
	assert.Equal(t, "statusdashboard signature error: send request: refused",
		(&SignatureError{Message: "send request: refused"}).Error())
	assert.Equal(t, "statusdashboard delivery error: timeout",
		(&DeliveryError{Message: "timeout"}).Error())
}
