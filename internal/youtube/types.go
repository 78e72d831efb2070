// Package youtube provides the YouTube collaborators used by subsearch.
//
// This package enables subsearch to:
// - Resolve a channel URL to its canonical channel ID
// - List every video of a channel through the YouTube Data API v3
// - Fetch the caption text of a single video
package youtube

import "fmt"

// VideoRef is a video as returned by the channel listing.
type VideoRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// TranscriptStatus tags the outcome of a transcript fetch.
type TranscriptStatus string

const (
	TranscriptAvailable TranscriptStatus = "available"
	TranscriptDisabled  TranscriptStatus = "disabled"
	TranscriptFailed    TranscriptStatus = "failed"
)

// Transcript is the caption text of a video, or the reason there is none.
type Transcript struct {
	Status TranscriptStatus `json:"status"`
	Text   string           `json:"text,omitempty"`
	Reason string           `json:"reason,omitempty"`
}

// Available wraps transcript text.
func Available(text string) Transcript {
	return Transcript{Status: TranscriptAvailable, Text: text}
}

// Disabled marks a video without caption tracks.
func Disabled(reason string) Transcript {
	return Transcript{Status: TranscriptDisabled, Reason: reason}
}

// Failed marks a transcript that could not be fetched.
func Failed(err error) Transcript {
	return Transcript{Status: TranscriptFailed, Reason: err.Error()}
}

// SearchText returns the text to match against. Only available transcripts are searchable.
func (t Transcript) SearchText() string {
	if t.Status != TranscriptAvailable {
		return ""
	}
	return t.Text
}

// Video is a listed video enriched with its transcript.
type Video struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Transcript Transcript `json:"transcript"`
}

// WatchURL returns the public watch URL for a video ID.
func WatchURL(videoID string) string {
	return fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
}
