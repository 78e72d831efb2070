package youtube

import (
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

	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://www.googleapis.com"
	defaultWebURL  = "https://www.youtube.com"

	// searchPageSize is the maximum page size accepted by the search endpoint.
	searchPageSize = 50

	maxBodyBytes = 8 * 1024 * 1024
)

// ErrMissingAPIKey is returned when the channel listing is requested without an API key.
var ErrMissingAPIKey = errors.New("missing YouTube API key: set SUBSEARCH_API_KEY or api_key in the config file")

// ListingError aborts a channel listing. No partial result accompanies it.
type ListingError struct {
	ChannelID string
	Page      int
	Err       error
}

func (e *ListingError) Error() string {
	return fmt.Sprintf("listing videos of channel %s failed on page %d: %v", e.ChannelID, e.Page, e.Err)
}

func (e *ListingError) Unwrap() error {
	return e.Err
}

// HTTPClient interface for making HTTP requests (allows injection for testing).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the Data API base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithWebURL sets the youtube.com base URL used for watch pages (useful for testing).
func WithWebURL(url string) ClientOption {
	return func(c *Client) {
		c.webURL = strings.TrimRight(url, "/")
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc RetryConfig) ClientOption {
	return func(c *Client) {
		c.retry = rc
	}
}

// WithTimeout bounds every single HTTP attempt. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRateLimit throttles transcript requests to perSecond. Zero or less disables throttling.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithLanguages sets the preferred caption languages, most preferred first.
func WithLanguages(langs ...string) ClientOption {
	return func(c *Client) {
		if len(langs) > 0 {
			c.languages = langs
		}
	}
}

// Client talks to the YouTube Data API and youtube.com.
type Client struct {
	apiKey     string
	baseURL    string
	webURL     string
	httpClient HTTPClient
	retry      RetryConfig
	timeout    time.Duration
	limiter    *rate.Limiter
	languages  []string
}

// NewClient creates a new YouTube client. The API key is only needed for listing.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		webURL:     defaultWebURL,
		httpClient: &http.Client{},
		retry:      DefaultRetryConfig,
		timeout:    30 * time.Second,
		languages:  []string{"en"},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ListChannelVideos pages through every video of a channel.
// Any failure aborts the whole listing.
func (c *Client) ListChannelVideos(ctx context.Context, channelID string) ([]VideoRef, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	videos := []VideoRef{}
	pageToken := ""
	for page := 1; ; page++ {
		resp, err := c.fetchSearchPage(ctx, channelID, pageToken)
		if err != nil {
			return nil, &ListingError{ChannelID: channelID, Page: page, Err: err}
		}

		for _, item := range resp.Items {
			if item.ID.VideoID == "" {
				continue
			}
			videos = append(videos, VideoRef{
				ID:    item.ID.VideoID,
				Title: item.Snippet.Title,
			})
		}
		slog.Debug("youtube: listed page",
			slog.String("channel", channelID), slog.Int("page", page), slog.Int("items", len(resp.Items)))

		if resp.NextPageToken == "" {
			return videos, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) fetchSearchPage(ctx context.Context, channelID, pageToken string) (*searchResponse, error) {
	params := url.Values{}
	params.Set("part", "id,snippet")
	params.Set("channelId", channelID)
	params.Set("maxResults", fmt.Sprintf("%d", searchPageSize))
	params.Set("type", "video")
	params.Set("key", c.apiKey)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}
	searchURL := fmt.Sprintf("%s/youtube/v3/search?%s", c.baseURL, params.Encode())

	resp, err := c.get(ctx, searchURL, http.Header{"Accept": []string{"application/json"}})
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			return nil, c.handleAPIError(statusErr.StatusCode)
		}
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, c.handleAPIError(resp.status)
	}

	var page searchResponse
	if err := json.Unmarshal(resp.body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	return &page, nil
}

type response struct {
	status int
	body   []byte
}

// get performs a GET with retries. Every attempt gets its own timeout and reads the full body.
func (c *Client) get(ctx context.Context, rawURL string, header http.Header) (*response, error) {
	return RetryDo(ctx, c.retry, func() (*response, error) {
		attemptCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		for k, v := range header {
			req.Header[k] = v
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer func() { _ = resp.Body.Close() }()

		if isRetryableStatus(resp.StatusCode) {
			return nil, &httpStatusError{StatusCode: resp.StatusCode}
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return &response{status: resp.StatusCode, body: body}, nil
	})
}

// API response types (private - implementation detail)

type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
}

func (c *Client) handleAPIError(statusCode int) error {
	switch statusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("YouTube API rejected the request - check the channel ID and API key")
	case http.StatusUnauthorized:
		return fmt.Errorf("YouTube API authentication failed - check your API key")
	case http.StatusForbidden:
		return fmt.Errorf("YouTube API access denied - the API key may be invalid or its quota exhausted")
	case http.StatusTooManyRequests:
		return fmt.Errorf("YouTube API rate limit exceeded - please try again later")
	case http.StatusServiceUnavailable:
		return fmt.Errorf("YouTube API temporarily unavailable - please try again in a few minutes")
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Errorf("YouTube API server error - please try again later")
	default:
		return fmt.Errorf("YouTube API error (status %d) - please try again", statusCode)
	}
}
