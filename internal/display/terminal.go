// Package display provides terminal output formatting for subsearch.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/gauthierbraillon/subsearch/internal/search"
)

const separator = " • "

// NoMatches is printed when no video matched.
const NoMatches = "No matching videos found.\n"

// maxReasonLen bounds failure reasons in verbose summaries.
const maxReasonLen = 80

// TerminalFormatter formats search results for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// FormatMatch formats a single matching video.
func (f *TerminalFormatter) FormatMatch(m search.Match) string {
	return fmt.Sprintf("Title: %s\nURL: %s\n", m.Title, m.URL)
}

// FormatMatches formats every match in order, or the no-match message.
func (f *TerminalFormatter) FormatMatches(matches []search.Match) string {
	if len(matches) == 0 {
		return NoMatches
	}

	var b strings.Builder
	b.WriteString("\nMatching videos:\n")
	for _, m := range matches {
		b.WriteString(f.FormatMatch(m))
		b.WriteString("\n")
	}
	return b.String()
}

// FormatSummary describes where the videos came from and how many transcripts were usable.
// With verbose set, every failed transcript is listed.
func (f *TerminalFormatter) FormatSummary(s search.Summary, verbose bool) string {
	var parts []string

	parts = append(parts, pluralize(s.Total, "video"))
	parts = append(parts, fmt.Sprintf("%d with transcripts", s.Available))
	if s.Disabled > 0 {
		parts = append(parts, fmt.Sprintf("%d without captions", s.Disabled))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	if s.FromCache {
		parts = append(parts, "cached "+f.FormatTimestamp(s.FetchedAt))
	}

	lines := []string{"Searched " + strings.Join(parts, separator)}
	if verbose {
		for _, failure := range s.Failures {
			lines = append(lines, fmt.Sprintf("  %s (%s): %s",
				failure.Title, failure.VideoID, f.TruncateText(failure.Reason, maxReasonLen)))
		}
	} else if s.Failed > 0 {
		lines = append(lines, "  run with --verbose to list failed transcripts, or --refresh to retry them")
	}
	return strings.Join(lines, "\n") + "\n"
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "at an unknown time"
	}
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute") + " ago"
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour") + " ago"
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day") + " ago"
	default:
		return "on " + t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit" or "N units" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
