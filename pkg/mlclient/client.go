// Package mlclient is a typed HTTP client for the external EcoLens ML
// service: label extraction from image URLs, eco-scoring, alternative
// products, product comparison and the URL/barcode lookups.
package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

const userAgent = "greenlight-backend/1.0"

// The GET lookups get one retry on transport failure.
const (
	lookupAttempts = 2
	lookupDelay    = 200 * time.Millisecond
)

// ErrNonJSON indicates the ML service answered with a non-JSON body.
var ErrNonJSON = errors.New("ml service returned non-JSON response")

// UpstreamError is a non-2xx answer from the ML service.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ml service responded with status %d: %s", e.Status, e.Body)
}

// Client calls the external ML API.
type Client struct {
	baseURL string
	hc      *http.Client
	logger  *slog.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the ML service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		hc:      &http.Client{Timeout: 30 * time.Second},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractLabels sends the front/back image URLs to the extraction endpoint
// and returns the parsed label fields. Either URL may be empty when the slot
// has only one image.
func (c *Client) ExtractLabels(ctx context.Context, frontURL, backURL string) (*ExtractedLabels, error) {
	raw, err := c.postJSON(ctx, "/extract-picture", extractRequest{
		ImagePath1: frontURL,
		ImagePath2: backURL,
	})
	if err != nil {
		return nil, err
	}

	var labels ExtractedLabels
	if err := json.Unmarshal(raw, &labels); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonJSON, err)
	}
	labels.Raw = raw
	return &labels, nil
}

// EcoScore computes the eco-score for a product. The upstream JSON is
// returned verbatim so proxy callers can forward it unchanged.
func (c *Client) EcoScore(ctx context.Context, product Product) (json.RawMessage, error) {
	return c.postJSON(ctx, "/api/get-eco-score", product)
}

// Alternatives asks for up to num alternative products.
func (c *Client) Alternatives(ctx context.Context, product Product, num int) (json.RawMessage, error) {
	if num <= 0 {
		num = 3
	}
	path := fmt.Sprintf("/api/get-alternatives?num_alternatives=%d", num)
	return c.postJSON(ctx, path, product)
}

// CompareProducts compares two products.
func (c *Client) CompareProducts(ctx context.Context, product1, product2 Product) (json.RawMessage, error) {
	return c.postJSON(ctx, "/api/compare-products", compareRequest{
		Product1: product1,
		Product2: product2,
	})
}

// LookupURL resolves product data for a product-page URL. Transport
// failures are retried once.
func (c *Client) LookupURL(ctx context.Context, inputURL string) (json.RawMessage, error) {
	return c.getWithRetry(ctx, "/get_url?url="+url.QueryEscape(inputURL))
}

// LookupBarcode resolves product data for a barcode.
func (c *Client) LookupBarcode(ctx context.Context, barcode string) (json.RawMessage, error) {
	return c.getWithRetry(ctx, "/get_barcode?barcode="+url.QueryEscape(barcode))
}

// Ping probes the ML service for reachability.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ml service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &UpstreamError{Status: resp.StatusCode}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	// Required to get past ngrok's browser interstitial when the ML
	// service is fronted by a tunnel.
	req.Header.Set("ngrok-skip-browser-warning", "true")
}

func (c *Client) postJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(req)

	start := time.Now()
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ml request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := c.readJSON(resp)
	c.logger.DebugContext(ctx, "ml request",
		"path", path, "status", resp.StatusCode, "duration", time.Since(start), "err", err)
	return raw, err
}

func (c *Client) getWithRetry(ctx context.Context, path string) (json.RawMessage, error) {
	var raw json.RawMessage

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
			if err != nil {
				return err
			}
			c.setHeaders(req)

			resp, err := c.hc.Do(req)
			if err != nil {
				return fmt.Errorf("ml request failed: %w", err)
			}
			defer resp.Body.Close()

			raw, err = c.readJSON(resp)
			return err
		},
		retry.Attempts(lookupAttempts),
		retry.Delay(lookupDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			// Retry transport failures only; an HTTP-level answer is final.
			var ue *UpstreamError
			return !errors.As(err, &ue) && !errors.Is(err, ErrNonJSON)
		}),
	)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// readJSON validates status and content type and returns the raw body.
func (c *Client) readJSON(resp *http.Response) (json.RawMessage, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read ml response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: snippet(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") || !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s", ErrNonJSON, snippet(body))
	}

	return body, nil
}

// snippet truncates an upstream body for error reporting.
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
