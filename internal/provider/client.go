package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tokenScope/internal/numeric"

	"github.com/tidwall/gjson"
)

const (
	dexScreenerBaseURL = "https://api.dexscreener.com"
	coinGeckoBaseURL   = "https://api.coingecko.com"
)

// Client fetches raw payloads from the two upstream providers. Payloads are
// returned as raw JSON; shape interpretation belongs to the normalizer.
type Client struct {
	httpClient      *http.Client
	dexScreenerBase string
	coinGeckoBase   string
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURLs overrides provider endpoints, mainly for tests.
func WithBaseURLs(dexScreener, coinGecko string) Option {
	return func(c *Client) {
		if dexScreener != "" {
			c.dexScreenerBase = dexScreener
		}
		if coinGecko != "" {
			c.coinGeckoBase = coinGecko
		}
	}
}

// NewClient builds a provider client with the given request timeout.
func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	c := &Client{
		httpClient:      &http.Client{Timeout: timeout},
		dexScreenerBase: dexScreenerBaseURL,
		coinGeckoBase:   coinGeckoBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPools returns the raw pool/pair payload for a token address, or nil
// when the address is empty.
func (c *Client) FetchPools(ctx context.Context, address string) ([]byte, error) {
	if address == "" {
		return nil, nil
	}
	endpoint := fmt.Sprintf("%s/latest/dex/tokens/%s", c.dexScreenerBase, url.PathEscape(address))
	return c.get(ctx, endpoint)
}

// FetchMarketSummary returns the raw token-level market payload. A 404 is a
// valid absence, reported as a nil payload with no error.
func (c *Client) FetchMarketSummary(ctx context.Context, address, platform string) ([]byte, error) {
	if address == "" {
		return nil, nil
	}
	if platform == "" {
		platform = "ethereum"
	}
	endpoint := fmt.Sprintf("%s/api/v3/coins/%s/contract/%s",
		c.coinGeckoBase, url.PathEscape(platform), url.PathEscape(address))

	body, err := c.get(ctx, endpoint)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return body, nil
}

// FetchRateUSD returns the USD price of the native conversion unit, or nil
// when the provider has no finite number for it.
func (c *Client) FetchRateUSD(ctx context.Context) (*float64, error) {
	endpoint := c.coinGeckoBase + "/api/v3/simple/price?ids=solana&vs_currencies=usd"
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return numeric.Num(gjson.GetBytes(body, "solana.usd").Value()), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			Code:       resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// parseRetryAfter interprets a Retry-After header as either delay seconds or
// an HTTP date, floored at zero. Unparseable values yield nil.
func parseRetryAfter(header string, now time.Time) *time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	if secs, err := strconv.ParseFloat(header, 64); err == nil {
		d := time.Duration(secs * float64(time.Second))
		if d < 0 {
			d = 0
		}
		return &d
	}

	if at, err := http.ParseTime(header); err == nil {
		d := at.Sub(now)
		if d < 0 {
			d = 0
		}
		return &d
	}

	return nil
}
