package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/logging"
)

const extractPath = "/extract"

// ClientOptions parameterise the extractor sidecar client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client fetches lot snapshots from the headless extractor sidecar. The
// sidecar owns all site-specific DOM heuristics; this client only speaks
// its JSON contract.
type Client struct {
	opts    ClientOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewClient constructs an extractor client.
func NewClient(opts ClientOptions, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		opts:    opts,
		logger:  logging.Component(logger, "scrape_client"),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// Fetch asks the extractor for a snapshot of the given lot URL.
func (c *Client) Fetch(ctx context.Context, lotURL string) (*Result, error) {
	if c.baseURL == "" {
		return nil, errors.New("extractor base url required")
	}

	endpoint := c.baseURL + extractPath + "?url=" + url.QueryEscape(lotURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decode extractor response: %w", err)
	}

	c.logger.Debug().Str("url", lotURL).Int("rows", len(result.Bids)).Msg("snapshot fetched")
	return &result, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Error != "" {
			return fmt.Errorf("extractor error (%d): %s", status, apiErr.Error)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("extractor error (%d): %s", status, apiErr.Message)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("extractor error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("extractor error (%d)", status)
}

var _ Fetcher = (*Client)(nil)
