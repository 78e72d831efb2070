package youtube

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// ErrChannelNotFound is returned when a channel page answers with a non-200 status or carries no canonical channel link.
var ErrChannelNotFound = errors.New("channel not found")

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

var canonicalChannelRE = regexp.MustCompile(`^https://www\.youtube\.com/channel/(UC[a-zA-Z0-9_-]+)$`)

// ResolveChannelID fetches a channel page and extracts the channel ID from its canonical link.
func (c *Client) ResolveChannelID(ctx context.Context, channelURL string) (string, error) {
	resp, err := c.get(ctx, channelURL, browserHeaders())
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return "", fmt.Errorf("%w: %s returned HTTP %d", ErrChannelNotFound, channelURL, statusErr.StatusCode)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", channelURL, err)
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned HTTP %d", ErrChannelNotFound, channelURL, resp.status)
	}

	id, ok := parseCanonicalChannelID(resp.body)
	if !ok {
		return "", fmt.Errorf("%w: no canonical channel link on %s", ErrChannelNotFound, channelURL)
	}

	slog.Debug("youtube: resolved channel", slog.String("url", channelURL), slog.String("id", id))
	return id, nil
}

// parseCanonicalChannelID reads <link rel="canonical" href="https://www.youtube.com/channel/UC...">.
func parseCanonicalChannelID(page []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", false
	}

	var id string
	doc.Find(`link[rel="canonical"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if m := canonicalChannelRE.FindStringSubmatch(href); m != nil {
			id = m[1]
			return false
		}
		return true
	})
	return id, id != ""
}

func browserHeaders() http.Header {
	return http.Header{
		"User-Agent":      []string{userAgent},
		"Accept":          []string{"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": []string{"en-US,en;q=0.9"},
	}
}
