// Package readingapi fetches venue readings from a remote Reading Store over
// HTTP. Transient failures are retried a bounded number of times and then
// surfaced wrapped in ErrTransport so callers can decide to try again later.
// The client never substitutes data of its own.
package readingapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rewired-gh/venuepulse/internal/logger"
	"github.com/rewired-gh/venuepulse/internal/models"
)

// ErrTransport marks a retryable failure to reach the Reading Store.
var ErrTransport = errors.New("reading store unavailable")

// ErrResponseTooLarge is returned for bodies above the client's size limit.
var ErrResponseTooLarge = errors.New("response too large")

const defaultMaxBodyBytes = 64 << 20

// Client provides access to a remote Reading Store.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	maxBodyBytes   int64
}

// Response is the body returned by GET /venues/{id}/readings.
type Response struct {
	VenueID  string           `json:"venue_id"`
	Readings []models.Reading `json:"readings"`
}

// NewClient creates a new Reading Store client. maxRetries counts attempts,
// including the first; values below 1 mean one attempt.
func NewClient(baseURL string, timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxRetries:     max(maxRetries, 1),
		retryDelayBase: retryDelayBase,
		maxBodyBytes:   defaultMaxBodyBytes,
	}
}

// FetchReadings retrieves readings for a venue with timestamps in
// [start, end). A zero start or end leaves that side open; limit <= 0 lets
// the store choose. Readings for other venues or failing validation are
// dropped. Readings without a venue ID are attributed to venueID.
func (c *Client) FetchReadings(ctx context.Context, venueID string, start, end time.Time, limit int) ([]models.Reading, error) {
	if venueID == "" {
		return nil, errors.New("venue ID must not be empty")
	}

	q := url.Values{}
	if !start.IsZero() {
		q.Set("start", start.UTC().Format(time.RFC3339))
	}
	if !end.IsZero() {
		q.Set("end", end.UTC().Format(time.RFC3339))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u := fmt.Sprintf("%s/venues/%s/readings", c.baseURL, url.PathEscape(venueID))
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	body, err := c.doRequest(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings for %s: %w", venueID, err)
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode readings for %s: %w", venueID, err)
	}

	out := make([]models.Reading, 0, len(resp.Readings))
	dropped := 0
	for _, r := range resp.Readings {
		if r.VenueID == "" {
			r.VenueID = venueID
		}
		if r.VenueID != venueID || r.Validate() != nil {
			dropped++
			continue
		}
		out = append(out, r)
	}
	if dropped > 0 {
		logger.Warn("Dropped %d invalid readings from reading store for %s", dropped, venueID)
	}
	return out, nil
}

// doRequest performs a GET with retry logic and returns the response body.
// Network errors, 429 and 5xx are retried with exponential backoff.
func (c *Client) doRequest(ctx context.Context, u string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			if err := c.backoff(ctx, i); err != nil {
				return nil, err
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			logger.Debug("Reading store request failed (attempt %d/%d): %v", i+1, c.maxRetries, err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			logger.Debug("Reading store returned %d (attempt %d/%d)", resp.StatusCode, i+1, c.maxRetries)
			continue
		}

		body, err := readBody(resp, c.maxBodyBytes)
		if errors.Is(err, ErrResponseTooLarge) {
			return nil, err
		}
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return body, nil
	}

	return nil, fmt.Errorf("%w: max retries exceeded: %v", ErrTransport, lastErr)
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	delay := c.retryDelayBase * time.Duration(1<<(attempt-1))
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// readBody reads at most limit bytes. One extra byte is read so that an
// oversized body is reported instead of being truncated.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrResponseTooLarge, limit)
	}
	return body, nil
}
