package youtube

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// Transcript fetching scrapes the watch page for ytInitialPlayerResponse,
// picks a caption track and downloads its timedtext XML.

const playerResponseMarker = "ytInitialPlayerResponse = "

var tagRE = regexp.MustCompile(`<[^>]*>`)

// errNoCaptions marks a player response without caption tracks.
var errNoCaptions = errors.New("captions are disabled for this video")

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript returns the caption text of a video.
// It never fails: a video without captions is Disabled, any other problem is Failed.
func (c *Client) FetchTranscript(ctx context.Context, videoID string) Transcript {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Failed(err)
		}
	}

	tracks, err := c.captionTracks(ctx, videoID)
	if errors.Is(err, errNoCaptions) {
		return Disabled(err.Error())
	}
	if err != nil {
		slog.Debug("youtube: transcript failed", slog.String("id", videoID), slog.Any("error", err))
		return Failed(err)
	}

	track, ok := pickBestTrack(tracks, c.languages)
	if !ok {
		return Failed(errors.New("all caption tracks require a PoToken"))
	}

	text, err := c.fetchTimedText(ctx, track.BaseURL)
	if err != nil {
		slog.Debug("youtube: timedtext failed", slog.String("id", videoID), slog.Any("error", err))
		return Failed(err)
	}
	return Available(text)
}

func (c *Client) captionTracks(ctx context.Context, videoID string) ([]captionTrack, error) {
	watchURL := fmt.Sprintf("%s/watch?v=%s", c.webURL, url.QueryEscape(videoID))

	resp, err := c.get(ctx, watchURL, browserHeaders())
	if err != nil {
		return nil, fmt.Errorf("watch page: %w", err)
	}
	if resp.status != http.StatusOK {
		return nil, fmt.Errorf("watch page returned HTTP %d", resp.status)
	}

	idx := strings.Index(string(resp.body), playerResponseMarker)
	if idx < 0 {
		return nil, errors.New("ytInitialPlayerResponse not found in watch page")
	}
	raw := extractJSON(resp.body[idx+len(playerResponseMarker):])
	if raw == nil {
		return nil, errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var player playerResponse
	if err := json.Unmarshal(raw, &player); err != nil {
		return nil, fmt.Errorf("decode ytInitialPlayerResponse: %w", err)
	}
	if player.Captions == nil || len(player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks) == 0 {
		if player.PlayabilityStatus != nil && player.PlayabilityStatus.Reason != "" {
			return nil, fmt.Errorf("%w: %s", errNoCaptions, player.PlayabilityStatus.Reason)
		}
		return nil, errNoCaptions
	}
	return player.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks, nil
}

func (c *Client) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	resp, err := c.get(ctx, baseURL, http.Header{"User-Agent": []string{userAgent}})
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("timedtext returned HTTP %d", resp.status)
	}

	var tt timedText
	if err := xml.Unmarshal(resp.body, &tt); err != nil {
		return "", fmt.Errorf("parse timedtext XML: %w", err)
	}

	parts := make([]string, 0, len(tt.Lines))
	for _, line := range tt.Lines {
		text := strings.TrimSpace(tagRE.ReplaceAllString(html.UnescapeString(line.Text), ""))
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// needsPoToken reports whether a caption track URL can only be fetched from a browser.
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickBestTrack selects the best usable caption track for the given language preferences:
// manual track, then auto-generated track, then any English track, then the first usable one.
func pickBestTrack(tracks []captionTrack, langs []string) (captionTrack, bool) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, false
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang && t.Kind != "asr" {
				return t, true
			}
		}
	}
	for _, lang := range langs {
		for _, t := range usable {
			if t.LanguageCode == lang {
				return t, true
			}
		}
	}
	for _, t := range usable {
		if strings.HasPrefix(t.LanguageCode, "en") {
			return t, true
		}
	}
	return usable[0], true
}

// extractJSON extracts a complete JSON object starting at b[0] == '{' by tracking brace depth.
func extractJSON(b []byte) []byte {
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	depth := 0
	inStr := false
	escaped := false
	for i, ch := range b {
		if inStr {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inStr = false
			}
			continue
		}
		switch ch {
		case '"':
			inStr = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return b[:i+1]
			}
		}
	}
	return nil
}
