// Package watson implements the external log source against the Watson
// Assistant v2 HTTP API.
package watson

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/scality/log-warden/pkg/warden"
)

// cursorPattern extracts the opaque pagination cursor from the next_url the
// platform returns. Only the cursor is reused; the rest of the URL is rebuilt
// locally so the filter and version parameters stay under our control.
var cursorPattern = regexp.MustCompile(`cursor=([^&]+)`)

// Client calls the Watson Assistant v2 API. It implements warden.LogSource.
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	version    string
}

// Config holds Watson client configuration
type Config struct {
	Logger *slog.Logger

	// BaseURL is the service instance URL, without a trailing slash
	BaseURL string
	// APIKey authenticates via basic auth with the fixed "apikey" username
	APIKey string
	// Version is the YYYY-MM-DD API version date sent on every request
	Version string

	Timeout time.Duration
}

// NewClient creates a new Watson client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &warden.ConfigurationError{Msg: "watson base URL is required"}
	}
	if cfg.APIKey == "" {
		return nil, &warden.ConfigurationError{Msg: "watson API key is required"}
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		version:    cfg.Version,
		logger:     cfg.Logger,
	}, nil
}

// assistantsResponse is the wire shape of GET /v2/assistants
type assistantsResponse struct {
	Assistants []warden.Assistant `json:"assistants"`
}

// logsResponse is the wire shape of GET /v2/assistants/{env}/logs
type logsResponse struct {
	Logs       []warden.RawLogRecord `json:"logs"`
	Pagination struct {
		NextURL string `json:"next_url"`
	} `json:"pagination"`
}

// ListAssistants returns every assistant visible to the account
func (c *Client) ListAssistants(ctx context.Context) ([]warden.Assistant, error) {
	query := url.Values{}
	query.Set("version", c.version)

	var response assistantsResponse
	if _, err := c.get(ctx, "/v2/assistants", query, &response); err != nil {
		return nil, err
	}

	c.logger.Debug("listed assistants", "nAssistants", len(response.Assistants))
	return response.Assistants, nil
}

// ListLogs returns one page of log records for an assistant environment,
// server-side filtered on request_timestamp within the window. An empty
// cursor requests the first page; the returned page carries the cursor to
// the next one, or "" on the last page.
func (c *Client) ListLogs(ctx context.Context, environmentID string, window warden.TimeWindow,
	pageLimit int, cursor string) (warden.LogsPage, error) {
	query := url.Values{}
	query.Set("version", c.version)
	query.Set("page_limit", strconv.Itoa(pageLimit))
	query.Set("filter", fmt.Sprintf("request_timestamp>=%s,request_timestamp<=%s",
		window.Start.UTC().Format(timestampLayout),
		window.End.UTC().Format(timestampLayout)))
	if cursor != "" {
		query.Set("cursor", cursor)
	}

	var response logsResponse
	rateLimit, err := c.get(ctx, "/v2/assistants/"+environmentID+"/logs", query, &response)
	if err != nil {
		return warden.LogsPage{}, err
	}

	return warden.LogsPage{
		Records:    response.Logs,
		NextCursor: extractCursor(response.Pagination.NextURL),
		RateLimit:  rateLimit,
	}, nil
}

// timestampLayout is the millisecond-precision format the filter syntax expects
const timestampLayout = "2006-01-02T15:04:05.000Z"

// get performs one authenticated GET and decodes the JSON body into out.
// The rate-limit headers are returned for every response, success or not.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (warden.RateLimit, error) {
	requestURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return warden.RateLimit{}, &warden.ExternalAPIError{
			Err: fmt.Errorf("failed to build request for %s: %w", path, err)}
	}
	req.SetBasicAuth("apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return warden.RateLimit{}, &warden.ExternalAPIError{
			Err: fmt.Errorf("request to %s failed: %w", path, err)}
	}
	defer func() { _ = resp.Body.Close() }()

	rateLimit := parseRateLimit(resp.Header)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Bound the amount of error body kept; the platform returns short
		// JSON error documents but proxies in front of it may not.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return rateLimit, &warden.ExternalAPIError{
			StatusCode: resp.StatusCode,
			RateLimit:  rateLimit,
			Err:        fmt.Errorf("%s returned %s: %s", path, resp.Status, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return rateLimit, &warden.ExternalAPIError{
			StatusCode: resp.StatusCode,
			RateLimit:  rateLimit,
			Err:        fmt.Errorf("failed to decode %s response: %w", path, err),
		}
	}

	return rateLimit, nil
}

// parseRateLimit reads the X-RateLimit-* headers; absent or malformed
// headers yield zero values
func parseRateLimit(header http.Header) warden.RateLimit {
	rl := warden.RateLimit{}
	if v, err := strconv.Atoi(header.Get("X-RateLimit-Remaining")); err == nil {
		rl.Remaining = v
	}
	if v, err := strconv.Atoi(header.Get("X-RateLimit-Limit")); err == nil {
		rl.Limit = v
	}
	if v, err := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.Reset = time.Unix(v, 0).UTC()
	}
	return rl
}

// extractCursor pulls the cursor parameter out of a pagination next_url.
// An empty next_url (last page) yields "".
func extractCursor(nextURL string) string {
	if nextURL == "" {
		return ""
	}
	match := cursorPattern.FindStringSubmatch(nextURL)
	if len(match) < 2 {
		return ""
	}
	return match[1]
}
