package delivery

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

	"capibridge/internal/config"
	"capibridge/internal/constants"
	"capibridge/internal/conversion"
	"capibridge/pkg/metrics"
	"capibridge/pkg/tracing"
)

// Sender forwards one conversion event to the ingestion endpoint.
type Sender interface {
	Deliver(ctx context.Context, event conversion.ConversionEvent) (*Response, error)
}

type Response struct {
	StatusCode     int      `json:"-"`
	EventsReceived int      `json:"events_received"`
	Messages       []string `json:"messages"`
	FBTraceID      string   `json:"fbtrace_id"`
}

type payload struct {
	Data          []conversion.ConversionEvent `json:"data"`
	TestEventCode string                       `json:"test_event_code,omitempty"`
}

// APIError is a non-2xx answer from the Graph API.
type APIError struct {
	StatusCode int
	Message    string
	Type       string
	Code       int
	FBTraceID  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("conversions api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("conversions api returned status %d: %s (type=%s code=%d)", e.StatusCode, e.Message, e.Type, e.Code)
}

type graphErrorBody struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

type Client struct {
	httpClient    *http.Client
	endpoint      string
	accessToken   string
	testEventCode string
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default instrumented client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func NewClient(cfg config.MetaConfig, opts ...ClientOption) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultHTTPTimeout
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: tracing.HTTPTransport(nil),
		},
		endpoint:      EndpointURL(cfg.BaseURL, cfg.APIVersion, cfg.PixelID),
		accessToken:   cfg.AccessToken,
		testEventCode: cfg.TestEventCode,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EndpointURL builds the events edge for a pixel, without credentials.
func EndpointURL(baseURL, apiVersion, pixelID string) string {
	if baseURL == "" {
		baseURL = constants.DefaultGraphBaseURL
	}
	if apiVersion == "" {
		apiVersion = constants.DefaultGraphAPIVersion
	}
	return fmt.Sprintf("%s/%s/%s/events", baseURL, apiVersion, url.PathEscape(pixelID))
}

func (c *Client) Deliver(ctx context.Context, event conversion.ConversionEvent) (*Response, error) {
	start := time.Now()
	resp, err := c.deliver(ctx, event)
	metrics.ObserveDelivery(deliveryStatus(err), time.Since(start))
	return resp, err
}

func (c *Client) deliver(ctx context.Context, event conversion.ConversionEvent) (*Response, error) {
	body, err := json.Marshal(payload{
		Data:          []conversion.ConversionEvent{event},
		TestEventCode: c.testEventCode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", constants.ServiceName)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("conversions api request to %s failed: %w", c.endpoint, stripURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		return nil, decodeAPIError(resp)
	}

	out := &Response{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return out, nil
}

func (c *Client) requestURL() string {
	q := url.Values{}
	q.Set("access_token", c.accessToken)
	return c.endpoint + "?" + q.Encode()
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, constants.MaxErrorBodyBytes))
	if err != nil {
		return apiErr
	}

	var body graphErrorBody
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Error.Message
		apiErr.Type = body.Error.Type
		apiErr.Code = body.Error.Code
		apiErr.FBTraceID = body.Error.FBTraceID
	}
	return apiErr
}

// stripURL drops the request URL from transport errors; it carries the
// access token in its query string.
func stripURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

func deliveryStatus(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return "delivered"
	case errors.As(err, &apiErr):
		return "api_error"
	default:
		return "transport_error"
	}
}
