// Package search ties the YouTube collaborators, the cache and the fuzzy matcher together.
//
// A search loads the cached video list of a channel or builds it (resolve, list, fetch
// every transcript), then keeps the videos whose transcript matches any phrase.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gauthierbraillon/subsearch/internal/cache"
	"github.com/gauthierbraillon/subsearch/internal/fuzzy"
	"github.com/gauthierbraillon/subsearch/internal/youtube"
)

// DefaultWorkers is the transcript fetch parallelism when none is configured.
const DefaultWorkers = 4

// PhraseSeparator splits the user's search text into phrases.
const PhraseSeparator = "|"

type Resolver interface {
	ResolveChannelID(ctx context.Context, channelURL string) (string, error)
}

type Lister interface {
	ListChannelVideos(ctx context.Context, channelID string) ([]youtube.VideoRef, error)
}

type TranscriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID string) youtube.Transcript
}

type Store interface {
	Load(key string) (*cache.ChannelCache, error)
	Save(key string, cc *cache.ChannelCache) error
}

// Progress observes transcript fetching. Increment is called from several goroutines.
type Progress interface {
	Start(total int)
	Increment()
	Finish()
}

type noProgress struct{}

func (noProgress) Start(int)  {}
func (noProgress) Increment() {}
func (noProgress) Finish()    {}

// Request describes one search. Threshold is used as given; callers normally pass
// fuzzy.DefaultThreshold.
type Request struct {
	ChannelURL string
	Phrases    []string
	Threshold  int
	Refresh    bool
}

// Match is a video whose transcript matched.
type Match struct {
	Title string
	URL   string
}

// Failure is a video whose transcript could not be fetched.
type Failure struct {
	VideoID string
	Title   string
	Reason  string
}

// Summary counts transcript outcomes over the searched videos.
type Summary struct {
	Total     int
	Available int
	Disabled  int
	Failed    int
	Failures  []Failure
	FromCache bool
	FetchedAt time.Time
}

type Result struct {
	Matches []Match
	Summary Summary
}

// ParsePhrases splits text on "|". Empty phrases are kept.
func ParsePhrases(text string) []string {
	return strings.Split(text, PhraseSeparator)
}

type Option func(*Service)

// WithWorkers bounds the number of concurrent transcript fetches. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n >= 1 {
			s.workers = n
		}
	}
}

// WithMaxAge treats caches older than d as missing. Zero keeps caches forever.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) {
		s.maxAge = d
	}
}

func WithProgress(p Progress) Option {
	return func(s *Service) {
		if p != nil {
			s.progress = p
		}
	}
}

// WithClock replaces time.Now (useful for testing).
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

type Service struct {
	resolver Resolver
	lister   Lister
	fetcher  TranscriptFetcher
	store    Store
	workers  int
	maxAge   time.Duration
	progress Progress
	now      func() time.Time
}

func New(resolver Resolver, lister Lister, fetcher TranscriptFetcher, store Store, opts ...Option) *Service {
	s := &Service{
		resolver: resolver,
		lister:   lister,
		fetcher:  fetcher,
		store:    store,
		workers:  DefaultWorkers,
		progress: noProgress{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns the videos of a channel whose transcript matches any phrase, in listing order.
func (s *Service) Search(ctx context.Context, req Request) (*Result, error) {
	cc, fromCache, err := s.videos(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Matches: []Match{},
		Summary: summarize(cc.Videos),
	}
	result.Summary.FromCache = fromCache
	result.Summary.FetchedAt = cc.FetchedAt

	for _, v := range cc.Videos {
		// PartialRatio("", "") is 100, so a video without transcript text would match an empty phrase.
		if !searchable(v.Transcript) {
			continue
		}
		if fuzzy.Matches(v.Transcript.SearchText(), req.Phrases, req.Threshold) {
			result.Matches = append(result.Matches, Match{Title: v.Title, URL: youtube.WatchURL(v.ID)})
		}
	}
	return result, nil
}

// videos loads the channel cache or rebuilds it. The bool reports a cache hit.
func (s *Service) videos(ctx context.Context, req Request) (*cache.ChannelCache, bool, error) {
	key := cache.Key(req.ChannelURL)

	if !req.Refresh {
		cc, err := s.store.Load(key)
		switch {
		case err == nil && s.expired(cc):
			slog.Info("cache expired", slog.String("key", key), slog.Time("fetched_at", cc.FetchedAt))
		case err == nil:
			slog.Info("cache hit", slog.String("key", key), slog.Int("videos", len(cc.Videos)))
			return cc, true, nil
		case errors.Is(err, cache.ErrNotFound):
			slog.Info("cache miss", slog.String("key", key))
		case errors.Is(err, cache.ErrIncompatibleSchema):
			slog.Warn("rebuilding cache with an old schema", slog.String("key", key), slog.Any("error", err))
		default:
			return nil, false, fmt.Errorf("load cache: %w", err)
		}
	}

	cc, err := s.build(ctx, req.ChannelURL)
	if err != nil {
		return nil, false, err
	}
	if err := s.store.Save(key, cc); err != nil {
		return nil, false, fmt.Errorf("save cache: %w", err)
	}
	slog.Info("cache saved", slog.String("key", key), slog.Int("videos", len(cc.Videos)))
	return cc, false, nil
}

func (s *Service) expired(cc *cache.ChannelCache) bool {
	return s.maxAge > 0 && s.now().Sub(cc.FetchedAt) > s.maxAge
}

func (s *Service) build(ctx context.Context, channelURL string) (*cache.ChannelCache, error) {
	channelID, err := s.resolver.ResolveChannelID(ctx, channelURL)
	if err != nil {
		return nil, err
	}

	refs, err := s.lister.ListChannelVideos(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	slog.Info("listed channel", slog.String("channel", channelID), slog.Int("videos", len(refs)))

	videos, err := s.fetchTranscripts(ctx, refs)
	if err != nil {
		return nil, err
	}

	return &cache.ChannelCache{
		ChannelURL: channelURL,
		ChannelID:  channelID,
		FetchedAt:  s.now().UTC(),
		Videos:     videos,
	}, nil
}

// fetchTranscripts fetches every transcript with at most s.workers in flight.
// Each result is written at its listing index, so the output order matches refs.
func (s *Service) fetchTranscripts(ctx context.Context, refs []youtube.VideoRef) ([]youtube.Video, error) {
	videos := make([]youtube.Video, len(refs))

	s.progress.Start(len(refs))
	defer s.progress.Finish()

	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			videos[i] = youtube.Video{
				ID:         ref.ID,
				Title:      ref.Title,
				Transcript: s.fetcher.FetchTranscript(ctx, ref.ID),
			}
			s.progress.Increment()
			return nil
		})
	}
	_ = g.Wait()

	// An interrupted run would cache its cancelled fetches as failures.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return videos, nil
}

func searchable(t youtube.Transcript) bool {
	return t.Status == youtube.TranscriptAvailable && t.Text != ""
}

func summarize(videos []youtube.Video) Summary {
	sum := Summary{Total: len(videos)}
	for _, v := range videos {
		switch v.Transcript.Status {
		case youtube.TranscriptAvailable:
			sum.Available++
		case youtube.TranscriptDisabled:
			sum.Disabled++
		default:
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{VideoID: v.ID, Title: v.Title, Reason: v.Transcript.Reason})
		}
	}
	return sum
}
