package pricer

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	defaultSteamBaseURL = "https://steamcommunity.com/market/priceoverview/"
	defaultCurrency     = 3   // EUR
	defaultAppID        = 730 // CS2

	steamRequestTimeout = 15 * time.Second

	// Steam answers with a browser check for generic clients.
	steamUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome Safari"
)

// bogusPrice is a sentinel Steam reports for delisted items.
var bogusPrice = decimal.RequireFromString("0.25")

// SteamPricer fetches prices from the Steam community market
// priceoverview endpoint.
type SteamPricer struct {
	client   *http.Client
	baseURL  string
	currency int
	appID    int
}

// SteamOption configures the SteamPricer.
type SteamOption func(*SteamPricer)

// WithBaseURL overrides the endpoint, used by tests.
func WithBaseURL(u string) SteamOption {
	return func(p *SteamPricer) { p.baseURL = u }
}

// WithCurrency sets the Steam currency code (3 is EUR).
func WithCurrency(c int) SteamOption {
	return func(p *SteamPricer) { p.currency = c }
}

// WithAppID sets the Steam app whose market is queried.
func WithAppID(id int) SteamOption {
	return func(p *SteamPricer) { p.appID = id }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) SteamOption {
	return func(p *SteamPricer) { p.client = c }
}

// NewSteamPricer returns a pricer against the Steam community market.
func NewSteamPricer(opts ...SteamOption) *SteamPricer {
	p := &SteamPricer{
		client:   &http.Client{Timeout: steamRequestTimeout},
		baseURL:  defaultSteamBaseURL,
		currency: defaultCurrency,
		appID:    defaultAppID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type priceOverview struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	MedianPrice string `json:"median_price"`
}

// Lookup queries the priceoverview endpoint for one market hash name.
// HTTP 429 maps to ErrRateLimited; any other failure maps to ErrUnavailable.
func (p *SteamPricer) Lookup(ctx context.Context, name string) (Quote, error) {
	query := url.Values{}
	query.Set("currency", strconv.Itoa(p.currency))
	query.Set("appid", strconv.Itoa(p.appID))
	query.Set("market_hash_name", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+query.Encode(), nil)
	if err != nil {
		return Quote{}, errors.Wrap(err, "build steam request")
	}
	req.Header.Set("User-Agent", steamUserAgent)
	req.Header.Set("Accept", "application/json,text/plain,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, errors.Wrapf(ErrUnavailable, "steam request failed: %s", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return Quote{}, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		return Quote{}, errors.Wrapf(ErrUnavailable, "steam returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Quote{}, errors.Wrapf(ErrUnavailable, "read steam response: %s", err)
	}

	var overview priceOverview
	if err := json.Unmarshal(body, &overview); err != nil {
		return Quote{}, errors.Wrapf(ErrUnavailable, "malformed steam payload: %s", err)
	}
	if !overview.Success {
		return Quote{}, errors.Wrap(ErrUnavailable, "steam reported success=false")
	}

	return Quote{
		Lowest: ParsePrice(overview.LowestPrice),
		Median: ParsePrice(overview.MedianPrice),
	}, nil
}

// ParsePrice converts a localized Steam price string ("0,73 €", "$2.50",
// "1.234,56€") into a decimal. It returns nil for empty, unparsable or
// known-bogus values.
func ParsePrice(s string) *decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' || r == '-' {
			return r
		}
		return -1
	}, s)
	if cleaned == "" {
		return nil
	}

	// European notation: the decimal separator is the comma, dots group
	// thousands. Detected when the last comma comes after the last dot.
	if strings.Contains(cleaned, ",") && strings.LastIndex(cleaned, ",") > strings.LastIndex(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ".", "")
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	if price.IsZero() || price.Equal(bogusPrice) {
		return nil
	}
	return &price
}
