package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/harborline/storefront/internal/domain/currency"
)

var ErrBadResponse = errors.New("exchange: malformed provider response")

// Client fetches the latest rate table from the external exchange-rate
// provider. Every call is bounded by the configured timeout so a hung
// provider fails the sync run instead of stalling the schedule.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	timeout    time.Duration
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
		apiKey:     apiKey,
		timeout:    timeout,
	}
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// FetchRates returns the provider's rate table keyed by currency code. Any
// transport failure, non-200 status, or shape violation (missing rates map,
// non-finite or negative value) fails the whole call; callers must not apply
// partial data.
func (c *Client) FetchRates(ctx context.Context) (currency.Rates, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("exchange: provider url: %w", err)
	}
	q := reqURL.Query()
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange: provider returned status %d", resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if body.Rates == nil {
		return nil, fmt.Errorf("%w: missing rates", ErrBadResponse)
	}
	for code, rate := range body.Rates {
		if code == "" || !currency.ValidRate(rate) {
			return nil, fmt.Errorf("%w: rate for %q", ErrBadResponse, code)
		}
	}

	return currency.Rates(body.Rates), nil
}
