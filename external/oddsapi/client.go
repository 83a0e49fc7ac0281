package oddsapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/oddsflow/odds-warehouse/internal/domain/odds"
	"github.com/oddsflow/odds-warehouse/internal/platform/logging"
	"github.com/oddsflow/odds-warehouse/internal/usecase"
)

const (
	defaultBaseURL = "https://api.the-odds-api.com/v4"
	defaultRegions = "us"
	defaultMarkets = "h2h,spreads,totals"

	// The provider returns one JSON array per sport; 16 MiB is far above
	// anything observed in practice.
	maxResponseBytes = 16 << 20
)

var apiKeyParamRegex = regexp.MustCompile(`apiKey=[^&\s"']+`)

type ClientConfig struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	Regions    string
	Markets    string
	Timeout    time.Duration
	MaxRetries int
	Logger     *logging.Logger
}

// Client talks to The Odds API v4. One call fetches the full current odds
// board for a single sport; there is no pagination on this endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	regions    string
	markets    string
	maxRetries int
	logger     *logging.Logger
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	regions := strings.TrimSpace(cfg.Regions)
	if regions == "" {
		regions = defaultRegions
	}
	markets := strings.TrimSpace(cfg.Markets)
	if markets == "" {
		markets = defaultMarkets
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(cfg.APIKey),
		regions:    regions,
		markets:    markets,
		maxRetries: maxInt(cfg.MaxRetries, 0),
		logger:     logger,
	}
}

// FetchOdds retrieves the current odds board for one sport key. The raw
// payload is returned alongside the decoded events so the caller can save it
// as a replay snapshot. Every failure wraps usecase.ErrTransport.
func (c *Client) FetchOdds(ctx context.Context, sportKey string) ([]odds.RawEvent, []byte, error) {
	sportKey = strings.TrimSpace(sportKey)
	if sportKey == "" {
		return nil, nil, fmt.Errorf("%w: sport key is required", usecase.ErrInvalidInput)
	}

	values := url.Values{}
	values.Set("apiKey", c.apiKey)
	values.Set("regions", c.regions)
	values.Set("markets", c.markets)
	values.Set("oddsFormat", "american")

	fullURL := c.baseURL + "/sports/" + sportKey + "/odds?" + values.Encode()

	raw, header, err := c.executeRequest(ctx, fullURL)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fetch odds sport=%s: %v", usecase.ErrTransport, sportKey, err)
	}

	if remaining := header.Get("x-requests-remaining"); remaining != "" {
		c.logger.InfoContext(ctx, "odds api quota",
			"sport", sportKey,
			"requests_remaining", remaining,
			"requests_used", header.Get("x-requests-used"),
		)
	}

	var events []odds.RawEvent
	if err := sonic.Unmarshal(raw, &events); err != nil {
		return nil, nil, fmt.Errorf("%w: decode provider payload sport=%s: %v", usecase.ErrTransport, sportKey, err)
	}

	return events, raw, nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, http.Header, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("send request: %s", c.sanitize(err.Error()))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
			header := resp.Header
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("read response body: %v", readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, header, nil
			default:
				lastErr = fmt.Errorf("provider status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
				if !isRetryableStatus(resp.StatusCode) {
					return nil, nil, lastErr
				}
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("provider request failed")
	}
	c.logger.WarnContext(ctx, "odds api request failed", "url", redactAPIURL(fullURL), "error", lastErr)
	return nil, nil, lastErr
}

func (c *Client) sanitize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	if c.apiKey != "" {
		value = strings.ReplaceAll(value, c.apiKey, "REDACTED")
	}
	return apiKeyParamRegex.ReplaceAllString(value, "apiKey=REDACTED")
}

func redactAPIURL(fullURL string) string {
	return apiKeyParamRegex.ReplaceAllString(fullURL, "apiKey=REDACTED")
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func abbreviateBody(raw []byte) string {
	const limit = 256
	body := strings.TrimSpace(string(raw))
	if len(body) <= limit {
		return body
	}
	return body[:limit] + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
