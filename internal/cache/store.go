// Package cache persists the enriched video list of a channel as one JSON file per cache key.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gauthierbraillon/subsearch/internal/youtube"
)

// SchemaVersion is the layout version written into every cache file.
// Files carrying another version are rejected instead of being misread.
const SchemaVersion = 1

var (
	ErrNotFound           = errors.New("cache not found")
	ErrCorrupt            = errors.New("cache file is corrupt")
	ErrIncompatibleSchema = errors.New("cache file has an incompatible schema version")
)

// ChannelCache is everything fetched for one channel, in listing order.
type ChannelCache struct {
	SchemaVersion int             `json:"schema_version"`
	ChannelURL    string          `json:"channel_url"`
	ChannelID     string          `json:"channel_id"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Videos        []youtube.Video `json:"videos"`
}

// Key derives the cache key from the last path segment of a channel URL.
// The derivation is purely syntactic: "https://www.youtube.com/@name" and
// "https://example.com/@name" share a key, and a trailing slash yields the empty key.
func Key(channelURL string) string {
	parts := strings.Split(channelURL, "/")
	return parts[len(parts)-1]
}

// Store reads and writes cache files in a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	if dir == "" {
		dir = "."
	}
	return &Store{dir: dir}
}

// Path returns the file a key is stored in.
func (s *Store) Path(key string) string {
	clean := strings.ReplaceAll(key, string(filepath.Separator), "_")
	return filepath.Join(s.dir, "cache_"+clean+".json")
}

func (s *Store) Load(key string) (*ChannelCache, error) {
	data, err := os.ReadFile(s.Path(key)) // #nosec G304 -- key has no separators
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read cache: %w", err)
	}

	var version struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &version); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path(key), err)
	}
	if version.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: %s has version %d, want %d",
			ErrIncompatibleSchema, s.Path(key), version.SchemaVersion, SchemaVersion)
	}

	var cc ChannelCache
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.Path(key), err)
	}
	if cc.Videos == nil {
		cc.Videos = []youtube.Video{}
	}
	return &cc, nil
}

// Save overwrites the cache file for key. The write goes to a temporary file that is
// renamed into place, so an interrupted run never leaves a torn cache behind.
func (s *Store) Save(key string, cc *ChannelCache) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	out := *cc
	out.SchemaVersion = SchemaVersion
	if out.Videos == nil {
		out.Videos = []youtube.Video{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".cache-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("failed to replace cache: %w", err)
	}
	return nil
}

// Delete removes the cache file for key. A missing file is reported as ErrNotFound.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.Path(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}
