package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"

	"github.com/clubops/guardrail/guard"
)

const userAgent = "guardrail/1.0"

// ClientConfig configures the payment gateway client.
type ClientConfig struct {
	// BaseURL is the payment service root, e.g. https://api.payment-service.internal.
	BaseURL string

	// APIKey is sent as a bearer token on every request.
	APIKey string

	// HTTPClient is the HTTP client to use for requests.
	// If nil, a default client with 30s timeout is used.
	HTTPClient *http.Client

	// RequestsPerSecond caps the outbound request rate before the pool is
	// even consulted. Zero disables client-side limiting.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Default: 1 when limiting is on.
	Burst int

	// Tracer records a span per charge. If nil, spans are no-ops.
	Tracer trace.Tracer

	// Executor guards all calls to the payment service. Required.
	Executor *guard.Executor
}

// Client calls the payment service through a protected executor.
type Client struct {
	config  ClientConfig
	limiter *rate.Limiter
	tracer  trace.Tracer
}

// NewClient creates a payment gateway client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Executor == nil {
		return nil, errors.New("gateway: executor is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("gateway: base URL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("gateway: invalid base URL: %w", err)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if config.Tracer == nil {
		config.Tracer = tracenoop.NewTracerProvider().Tracer("gateway")
	}

	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Client{
		config:  config,
		limiter: limiter,
		tracer:  config.Tracer,
	}, nil
}

// ChargeRequest is the payload for one payment charge.
type ChargeRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"payment_method"`
	MemberID      string `json:"member_id,omitempty"`
	Description   string `json:"description,omitempty"`
}

// validate applies the provider's own input checks locally, so an
// obviously bad request never costs a pool slot or a network round trip.
func (r ChargeRequest) validate() error {
	switch {
	case r.AmountCents <= 0:
		return guard.Classify(guard.CategoryValidation, errors.New("gateway: amount must be positive"))
	case r.Currency == "":
		return guard.Classify(guard.CategoryValidation, errors.New("gateway: currency is required"))
	case r.PaymentMethod == "":
		return guard.Classify(guard.CategoryValidation, errors.New("gateway: payment method is required"))
	default:
		return nil
	}
}

// ChargeResponse is the payment service's view of a completed charge.
type ChargeResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// APIError is a non-2xx response from the payment service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway: payment service returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("gateway: payment service returned %d", e.StatusCode)
}

// Charge processes one payment through the protection chain.
func (c *Client) Charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	ctx, span := c.tracer.Start(ctx, "gateway.charge",
		trace.WithAttributes(
			attribute.Int64("payment.amount_cents", req.AmountCents),
			attribute.String("payment.currency", req.Currency),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	if err := req.validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.SetAttributes(attribute.String("payment.failure_category", guard.CategoryOf(err).String()))
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	resp, err := guard.Run(ctx, c.config.Executor, func(ctx context.Context) (*ChargeResponse, error) {
		return c.charge(ctx, req)
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		span.SetAttributes(attribute.String("payment.failure_category", guard.CategoryOf(err).String()))
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String("payment.charge_id", resp.ID))
	return resp, nil
}

// charge is one raw attempt against /v1/charges.
func (c *Client) charge(ctx context.Context, req ChargeRequest) (*ChargeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, guard.Classify(guard.CategoryValidation, fmt.Errorf("gateway: encoding charge: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/charges", bytes.NewReader(body))
	if err != nil {
		return nil, guard.Classify(guard.CategoryValidation, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	httpReq.Header.Set("User-Agent", userAgent)

	httpResp, err := c.config.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusCreated {
		return nil, classifyStatus(httpResp)
	}

	var resp ChargeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, guard.Classify(guard.CategoryInternal, fmt.Errorf("gateway: decoding charge response: %w", err))
	}
	return &resp, nil
}

// HealthStatus reports the payment service's own health endpoint.
type HealthStatus struct {
	Healthy        bool
	StatusCode     int
	ResponseTimeMS float64
}

// Health probes the payment service's /health endpoint. It bypasses the
// executor so a tripped circuit cannot hide a recovered dependency.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	httpReq.Header.Set("User-Agent", userAgent)

	start := time.Now()
	httpResp, err := c.config.HTTPClient.Do(httpReq)
	if err != nil {
		return HealthStatus{}, classifyTransport(err)
	}
	defer func() { _ = httpResp.Body.Close() }()
	_, _ = io.Copy(io.Discard, httpResp.Body)

	return HealthStatus{
		Healthy:        httpResp.StatusCode == http.StatusOK,
		StatusCode:     httpResp.StatusCode,
		ResponseTimeMS: float64(time.Since(start)) / float64(time.Millisecond),
	}, nil
}

// classifyStatus maps an HTTP error response to a failure category.
// Client mistakes are terminal; load shedding and server trouble are not.
func classifyStatus(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: readMessage(resp.Body)}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return guard.Classify(guard.CategoryMalformed, apiErr)
	case resp.StatusCode == http.StatusUnauthorized:
		return guard.Classify(guard.CategoryUnauthorized, apiErr)
	case resp.StatusCode == http.StatusNotFound:
		return guard.Classify(guard.CategoryNotFound, apiErr)
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return guard.Classify(guard.CategoryValidation, apiErr)
	case resp.StatusCode == http.StatusTooManyRequests:
		return guard.Classify(guard.CategoryRateLimited, apiErr)
	case resp.StatusCode >= 500:
		return guard.Classify(guard.CategoryUnavailable, apiErr)
	default:
		return guard.Classify(guard.CategoryInternal, apiErr)
	}
}

// classifyTransport maps connection-level failures. Timeouts and refused
// connections are both worth another attempt.
func classifyTransport(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return guard.Classify(guard.CategoryTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return guard.Classify(guard.CategoryTimeout, err)
	}
	return guard.Classify(guard.CategoryUnavailable, err)
}

// readMessage extracts the error message from a JSON error body, if any.
func readMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
