// Package main provides the subsearch CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gauthierbraillon/subsearch/internal/cache"
	"github.com/gauthierbraillon/subsearch/internal/config"
	"github.com/gauthierbraillon/subsearch/internal/display"
	"github.com/gauthierbraillon/subsearch/internal/search"
	"github.com/gauthierbraillon/subsearch/internal/youtube"
)

var version = "dev"

const (
	channelPrompt = "Enter the YouTube channel URL: "
	textPrompt    = "Enter the search text (use '|' to separate multiple phrases): "
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// resolveVersion prefers the ldflags version and falls back to the module version from build info.
func resolveVersion(ldflagsVersion string, info *debug.BuildInfo) string {
	if ldflagsVersion != "" && ldflagsVersion != "dev" {
		return ldflagsVersion
	}
	if info == nil || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

func buildVersion() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(version, info)
}

// globalFlags are shared by the root command and its subcommands.
type globalFlags struct {
	configFile string
	verbose    bool
}

// newRootCmd creates the root command for subsearch CLI.
func newRootCmd() *cobra.Command {
	var (
		g         globalFlags
		channel   string
		text      string
		refresh   bool
		threshold int
		workers   int
	)

	rootCmd := &cobra.Command{
		Use:   "subsearch",
		Short: "Search a YouTube channel's transcripts for phrases",
		Long: "Subsearch fetches the transcripts of every video of a YouTube channel, caches them,\n" +
			"and lists the videos whose transcript fuzzily contains any of the given phrases.",
		Version:      buildVersion(),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}

			in := bufio.NewReader(cmd.InOrStdin())
			if channel == "" {
				if channel, err = prompt(cmd.OutOrStdout(), in, channelPrompt); err != nil {
					return err
				}
				if channel == "" {
					return errors.New("a channel URL is required")
				}
			}
			if !cmd.Flags().Changed("text") {
				if text, err = prompt(cmd.OutOrStdout(), in, textPrompt); err != nil {
					return err
				}
			}

			client := newYouTubeClient(cfg)
			svc := search.New(client, client, client, cache.NewStore(cfg.CacheDir),
				search.WithWorkers(cfg.Workers),
				search.WithMaxAge(cfg.CacheMaxAge),
				search.WithProgress(newProgress(cmd.ErrOrStderr())),
			)

			result, err := svc.Search(cmd.Context(), search.Request{
				ChannelURL: channel,
				Phrases:    search.ParsePhrases(text),
				Threshold:  cfg.Threshold,
				Refresh:    refresh,
			})
			if errors.Is(err, youtube.ErrChannelNotFound) {
				slog.Debug("channel resolution failed", slog.Any("error", err))
				fmt.Fprintf(cmd.OutOrStdout(), "Channel not found: %s\n", channel)
				return nil
			}
			if err != nil {
				return err
			}

			formatter := display.NewTerminalFormatter()
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatMatches(result.Matches))
			fmt.Fprint(cmd.ErrOrStderr(), formatter.FormatSummary(result.Summary, g.verbose))
			return nil
		},
	}

	rootCmd.SetVersionTemplate("subsearch version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&g.configFile, "config", "", "Config file (default: subsearch.{yaml,json,toml} in . or the user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Log progress details and list failed transcripts")
	rootCmd.PersistentFlags().String("cache-dir", ".", "Directory holding cache files")

	rootCmd.Flags().StringVarP(&channel, "channel", "c", "", "YouTube channel URL")
	rootCmd.Flags().StringVarP(&text, "text", "t", "", "Search text (use '|' to separate multiple phrases)")
	rootCmd.Flags().IntVar(&threshold, "threshold", 80, "Minimum fuzzy match score (0-100)")
	rootCmd.Flags().IntVar(&workers, "workers", search.DefaultWorkers, "Number of concurrent transcript fetches")
	rootCmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cache and fetch the channel again")

	rootCmd.AddCommand(newCacheCmd(&g))

	return rootCmd
}

// newCacheCmd creates the cache subcommand.
func newCacheCmd(g *globalFlags) *cobra.Command {
	var channel string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or remove a channel's cache file",
	}
	cmd.PersistentFlags().StringVarP(&channel, "channel", "c", "", "YouTube channel URL")
	_ = cmd.MarkPersistentFlagRequired("channel")

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the cache file path for a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *g)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cache.NewStore(cfg.CacheDir).Path(cache.Key(channel)))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete the cache file for a channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *g)
			if err != nil {
				return err
			}
			store := cache.NewStore(cfg.CacheDir)
			key := cache.Key(channel)
			if err := store.Delete(key); err != nil {
				if errors.Is(err, cache.ErrNotFound) {
					fmt.Fprintf(cmd.OutOrStdout(), "No cache for %s\n", channel)
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", store.Path(key))
			return nil
		},
	})

	return cmd
}

// loadConfig reads the configuration and installs the default logger.
func loadConfig(cmd *cobra.Command, g globalFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	if g.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

func newYouTubeClient(cfg *config.Config) *youtube.Client {
	retry := youtube.DefaultRetryConfig
	retry.MaxRetries = cfg.MaxRetries

	return youtube.NewClient(cfg.APIKey,
		youtube.WithBaseURL(cfg.APIURL),
		youtube.WithWebURL(cfg.WebURL),
		youtube.WithTimeout(cfg.FetchTimeout),
		youtube.WithRetryConfig(retry),
		youtube.WithRateLimit(cfg.RateLimit),
		youtube.WithLanguages(cfg.Languages...),
	)
}

// prompt asks for a single line on w and reads it from in. A final line without newline is accepted.
func prompt(w io.Writer, in *bufio.Reader, question string) (string, error) {
	fmt.Fprint(w, question)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
