package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/subsearch/internal/youtube"
)

func sampleCache() *ChannelCache {
	return &ChannelCache{
		ChannelURL: "https://www.youtube.com/@gardening",
		ChannelID:  "UCabc",
		FetchedAt:  time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Videos: []youtube.Video{
			{ID: "vid1", Title: "Tomatoes", Transcript: youtube.Available("grow tomatoes in small spaces")},
			{ID: "vid2", Title: "Silent", Transcript: youtube.Disabled("captions are disabled for this video")},
			{ID: "vid3", Title: "Broken", Transcript: youtube.Transcript{Status: youtube.TranscriptFailed, Reason: "timeout"}},
		},
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/@gardening", "@gardening"},
		{"https://www.youtube.com/channel/UCabc", "UCabc"},
		{"https://www.youtube.com/c/Gardening/videos", "videos"},
		{"https://www.youtube.com/@gardening/", ""},
		{"gardening", "gardening"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, Key(tt.url))
		})
	}
}

func TestKey_SameTrailingSegmentSharesKey(t *testing.T) {
	urls := []string{
		"https://www.youtube.com/@name",
		"https://m.youtube.com/@name",
		"http://example.com/some/other/path/@name",
	}
	for _, u := range urls {
		assert.Equal(t, Key(urls[0]), Key(u), u)
	}
}

func TestStore_Path(t *testing.T) {
	store := NewStore("/tmp/subsearch")

	assert.Equal(t, filepath.Join("/tmp/subsearch", "cache_@gardening.json"), store.Path("@gardening"))
	assert.Equal(t, filepath.Join(".", "cache_x.json"), NewStore("").Path("x"))
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	want := sampleCache()

	require.NoError(t, store.Save("@gardening", want))
	got, err := store.Load("@gardening")
	require.NoError(t, err)

	assert.Equal(t, SchemaVersion, got.SchemaVersion)
	assert.Equal(t, want.ChannelURL, got.ChannelURL)
	assert.Equal(t, want.ChannelID, got.ChannelID)
	assert.True(t, want.FetchedAt.Equal(got.FetchedAt))
	assert.Equal(t, want.Videos, got.Videos)
}

func TestStore_SaveEmptyVideoList(t *testing.T) {
	store := NewStore(t.TempDir())

	require.NoError(t, store.Save("empty", &ChannelCache{ChannelURL: "https://www.youtube.com/empty"}))
	got, err := store.Load("empty")
	require.NoError(t, err)

	assert.NotNil(t, got.Videos)
	assert.Empty(t, got.Videos)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := NewStore(t.TempDir())
	first := sampleCache()
	second := &ChannelCache{Videos: []youtube.Video{{ID: "only", Title: "Only", Transcript: youtube.Available("x")}}}

	require.NoError(t, store.Save("k", first))
	require.NoError(t, store.Save("k", second))

	got, err := store.Load("k")
	require.NoError(t, err)
	assert.Equal(t, second.Videos, got.Videos)
}

func TestStore_SaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	require.NoError(t, store.Save("k", sampleCache()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cache_k.json", entries[0].Name())
}

func TestStore_SaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store := NewStore(dir)

	require.NoError(t, store.Save("k", sampleCache()))

	_, err := os.Stat(store.Path("k"))
	assert.NoError(t, err)
}

func TestStore_LoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Load("nothing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_LoadCorrupt(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, os.WriteFile(store.Path("bad"), []byte(`{"schema_version": 1, "videos": [`), 0600))

	_, err := store.Load("bad")

	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStore_LoadIncompatibleSchema(t *testing.T) {
	store := NewStore(t.TempDir())

	tests := map[string]string{
		"future version": `{"schema_version": 2, "videos": []}`,
		"no version":     `{"videos": []}`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(store.Path("old"), []byte(content), 0600))

			_, err := store.Load("old")

			assert.ErrorIs(t, err, ErrIncompatibleSchema)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save("k", sampleCache()))

	require.NoError(t, store.Delete("k"))

	_, err := store.Load("k")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("k"), ErrNotFound)
}
