// Package statusdashboard delivers status events to the dashboard's
// integration webhook, signing them with the shared secret when configured.
package statusdashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bissquit/incident-relay/internal/pkg/ctxlog"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.statusdashboard.com"
	defaultProduct = "statusdashboard"
	defaultTimeout = 10 * time.Second

	// maxResponseBody caps how much of a dashboard response is kept for logging.
	maxResponseBody = 64 << 10
)

// Config holds dashboard client configuration.
type Config struct {
	BaseURL   string        // default https://www.statusdashboard.com
	Endpoint  string        // integration endpoint id
	Secret    string        // shared secret; empty disables signing
	Product   string        // header name prefix, default "statusdashboard"
	Timeout   time.Duration // per-request timeout
	RateLimit float64       // requests per second, 0 = unlimited
}

// Delivery is the dashboard's answer to a webhook. Any HTTP status counts.
type Delivery struct {
	StatusCode int
	Body       string
}

// Client talks to the dashboard integration API.
type Client struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new dashboard client.
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = defaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Product == "" {
		config.Product = defaultProduct
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(limit, 1),
	}
}

// SigningEnabled reports whether a secret is configured.
func (c *Client) SigningEnabled() bool {
	return c.config.Secret != ""
}

// WebhookURL returns the integration webhook address.
func (c *Client) WebhookURL() string {
	return fmt.Sprintf("%s/webhooks/integration/%s/", c.config.BaseURL, c.config.Endpoint)
}

func (c *Client) signatureURL() string {
	return fmt.Sprintf("%s/webhooks/integration/%s/signature", c.config.BaseURL, c.config.Endpoint)
}

func (c *Client) secretHeader() string {
	return "x-" + c.config.Product + "-secret"
}

func (c *Client) signatureHeader() string {
	return "x-" + c.config.Product + "-signature"
}

type signatureResponse struct {
	Signature string `json:"signature"`
}

// Sign asks the dashboard to sign body. With no secret configured it returns
// an empty signature without contacting the dashboard.
func (c *Client) Sign(ctx context.Context, body []byte) (string, error) {
	if !c.SigningEnabled() {
		return "", nil
	}

	start := time.Now()
	signature, err := c.sign(ctx, body)
	recordDuration(operationSign, time.Since(start))
	if err != nil {
		recordSignature("failure")
		return "", err
	}
	recordSignature("success")
	return signature, nil
}

func (c *Client) sign(ctx context.Context, body []byte) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &SignatureError{Message: fmt.Sprintf("rate limiter: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.signatureURL(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.secretHeader(), c.config.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &SignatureError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", &SignatureError{Code: resp.StatusCode, Message: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode != http.StatusCreated {
		return "", &SignatureError{Code: resp.StatusCode, Message: string(respBody)}
	}

	var result signatureResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", &SignatureError{Code: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if result.Signature == "" {
		return "", &SignatureError{Code: resp.StatusCode, Message: "empty signature"}
	}

	ctxlog.FromContext(ctx).Debug("payload signed", "endpoint", maskEndpoint(c.config.Endpoint))
	return result.Signature, nil
}

// Deliver posts body to the integration webhook, attaching signature when
// it is not empty. Only transport failures are returned as errors.
func (c *Client) Deliver(ctx context.Context, body []byte, signature string) (*Delivery, error) {
	start := time.Now()
	delivery, err := c.deliver(ctx, body, signature)
	recordDuration(operationDeliver, time.Since(start))
	if err != nil {
		recordWebhook("error")
		return nil, err
	}
	recordWebhook(webhookOutcome(delivery.StatusCode))
	return delivery, nil
}

func (c *Client) deliver(ctx context.Context, body []byte, signature string) (*Delivery, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &DeliveryError{Message: fmt.Sprintf("rate limiter: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set(c.signatureHeader(), signature)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Message: fmt.Sprintf("send request: %v", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		ctxlog.FromContext(ctx).Warn("failed to read webhook response", "status", resp.StatusCode, "error", err)
	}

	return &Delivery{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}, nil
}

// maskEndpoint hides most of the endpoint id for logging.
func maskEndpoint(endpoint string) string {
	if len(endpoint) > 8 {
		return endpoint[:4] + "..." + endpoint[len(endpoint)-4:]
	}
	return endpoint
}

// SignatureError indicates the dashboard did not return a usable signature.
type SignatureError struct {
	Code    int
	Message string
}

func (e *SignatureError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("statusdashboard signature error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("statusdashboard signature error: %s", e.Message)
}

// DeliveryError indicates the webhook request never got a response.
type DeliveryError struct {
	Message string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("statusdashboard delivery error: %s", e.Message)
}
