package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// watchPage embeds a player response the way youtube.com does.
func watchPage(t *testing.T, player interface{}) string {
	t.Helper()
	raw, err := json.Marshal(player)
	if err != nil {
		t.Fatalf("marshal player response: %v", err)
	}
	return fmt.Sprintf(`<html><head><script>var ytInitialPlayerResponse = %s;var meta = {};</script></head><body></body></html>`, raw)
}

func playerWithTracks(tracks ...map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"playabilityStatus": map[string]interface{}{"status": "OK"},
		"captions": map[string]interface{}{
			"playerCaptionsTracklistRenderer": map[string]interface{}{
				"captionTracks": tracks,
			},
		},
	}
}

const sampleTimedText = `<?xml version="1.0" encoding="utf-8" ?>
<transcript>
  <text start="0.0" dur="1.5">Hello world</text>
  <text start="1.5" dur="2.0">it&amp;#39;s a &amp;quot;test&amp;quot;</text>
  <text start="3.5" dur="1.0">   </text>
  <text start="4.5" dur="1.0">&lt;i&gt;music&lt;/i&gt; plays</text>
</transcript>`

func TestAC300_Transcript_JoinsSegmentsWithSingleSpaces(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/watch":
			if r.URL.Query().Get("v") != "vid1" {
				t.Errorf("expected v=vid1, got %q", r.URL.Query().Get("v"))
			}
			fmt.Fprint(w, watchPage(t, playerWithTracks(map[string]string{
				"baseUrl":      server.URL + "/api/timedtext?v=vid1&lang=en",
				"languageCode": "en",
			})))
		case "/api/timedtext":
			fmt.Fprint(w, sampleTimedText)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient("", WithWebURL(server.URL), WithRetryConfig(fastRetry))

	got := client.FetchTranscript(context.Background(), "vid1")

	if got.Status != TranscriptAvailable {
		t.Fatalf("expected available transcript, got %+v", got)
	}
	want := `Hello world it's a "test" music plays`
	if got.Text != want {
		t.Errorf("expected %q, got %q", want, got.Text)
	}
	if got.SearchText() != want {
		t.Errorf("available transcript should be searchable, got %q", got.SearchText())
	}
}

func TestAC301_Transcript_DisabledWhenNoCaptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, watchPage(t, map[string]interface{}{
			"playabilityStatus": map[string]interface{}{"status": "OK"},
		}))
	}))
	defer server.Close()

	client := NewClient("", WithWebURL(server.URL), WithRetryConfig(fastRetry))

	got := client.FetchTranscript(context.Background(), "vid1")

	if got.Status != TranscriptDisabled {
		t.Fatalf("expected disabled transcript, got %+v", got)
	}
	if got.SearchText() != "" {
		t.Errorf("disabled transcript should not be searchable, got %q", got.SearchText())
	}
}

func TestAC302_Transcript_FailedOnHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient("", WithWebURL(server.URL), WithRetryConfig(fastRetry))

	got := client.FetchTranscript(context.Background(), "vid1")

	if got.Status != TranscriptFailed {
		t.Fatalf("expected failed transcript, got %+v", got)
	}
	if !strings.Contains(got.Reason, "404") {
		t.Errorf("failure reason should carry the status, got %q", got.Reason)
	}
}

func TestAC303_Transcript_FailedWhenPlayerResponseMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>consent required</body></html>")
	}))
	defer server.Close()

	client := NewClient("", WithWebURL(server.URL), WithRetryConfig(fastRetry))

	got := client.FetchTranscript(context.Background(), "vid1")

	if got.Status != TranscriptFailed {
		t.Fatalf("expected failed transcript, got %+v", got)
	}
}

func TestAC304_Transcript_FailedWhenEveryTrackNeedsPoToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, watchPage(t, playerWithTracks(map[string]string{
			"baseUrl":      "https://www.youtube.com/api/timedtext?v=vid1&exp=xpe",
			"languageCode": "en",
		})))
	}))
	defer server.Close()

	client := NewClient("", WithWebURL(server.URL), WithRetryConfig(fastRetry))

	got := client.FetchTranscript(context.Background(), "vid1")

	if got.Status != TranscriptFailed {
		t.Fatalf("expected failed transcript, got %+v", got)
	}
}

func TestAC305_Transcript_RespectsCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be sent with a cancelled context")
	}))
	defer server.Close()

	client := NewClient("", WithWebURL(server.URL), WithRateLimit(10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := client.FetchTranscript(ctx, "vid1")

	if got.Status != TranscriptFailed {
		t.Fatalf("expected failed transcript, got %+v", got)
	}
}

func TestPickBestTrack(t *testing.T) {
	manualEN := captionTrack{BaseURL: "u1", LanguageCode: "en"}
	autoEN := captionTrack{BaseURL: "u2", LanguageCode: "en", Kind: "asr"}
	manualDE := captionTrack{BaseURL: "u3", LanguageCode: "de"}
	enGB := captionTrack{BaseURL: "u4", LanguageCode: "en-GB"}
	blocked := captionTrack{BaseURL: "u5&exp=xpe", LanguageCode: "en"}

	tests := []struct {
		name   string
		tracks []captionTrack
		langs  []string
		want   captionTrack
		wantOK bool
	}{
		{"manual before auto", []captionTrack{autoEN, manualEN}, []string{"en"}, manualEN, true},
		{"auto in preferred language", []captionTrack{manualDE, autoEN}, []string{"en"}, autoEN, true},
		{"language order wins", []captionTrack{manualEN, manualDE}, []string{"de", "en"}, manualDE, true},
		{"english variant fallback", []captionTrack{manualDE, enGB}, []string{"fr"}, enGB, true},
		{"first usable fallback", []captionTrack{blocked, manualDE}, []string{"fr"}, manualDE, true},
		{"all blocked", []captionTrack{blocked}, []string{"en"}, captionTrack{}, false},
		{"no tracks", nil, []string{"en"}, captionTrack{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pickBestTrack(tt.tracks, tt.langs)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("pickBestTrack() = %+v, %v; want %+v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", `{"a":1};var x`, `{"a":1}`},
		{"nested", `{"a":{"b":{}}} rest`, `{"a":{"b":{}}}`},
		{"braces in strings", `{"a":"}{"};`, `{"a":"}{"}`},
		{"escaped quote", `{"a":"say \"}\""} tail`, `{"a":"say \"}\""}`},
		{"not an object", `[1,2]`, ""},
		{"unterminated", `{"a":{`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(extractJSON([]byte(tt.input))); got != tt.want {
				t.Errorf("extractJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
