package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/feed-collector/internal/agent/collector"
	"github.com/feed-collector/internal/app"
	"github.com/feed-collector/internal/config"
	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/pkg/logger"
)

const dateLayout = "2006-01-02"

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
	a       *app.App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "collector",
		Short: "Feed extraction and reconciliation",
		Long: `Collects entries from RSS/Atom, JSON and HTML feeds, normalizes them
and reconciles them into the article store.`,
		PersistentPreRunE:  initializeApp,
		PersistentPostRunE: closeApp,
		SilenceUsage:       true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./configs/config.yaml)")

	rootCmd.AddCommand(dispatchCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(previewCmd())
	rootCmd.AddCommand(feedsCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(workerCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initializeApp(cmd *cobra.Command, args []string) error {
	var err error

	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	a, err = app.New(cfg, log)
	return err
}

func closeApp(cmd *cobra.Command, args []string) error {
	if a == nil {
		return nil
	}
	// the memory driver discards everything on exit
	if dry, ok := a.Repo.(interface{ Writes() int }); ok {
		fmt.Printf("\nDry run: %d article write statements, nothing persisted\n", dry.Writes())
	}
	return a.Close()
}

// ============ PIPELINE COMMANDS ============

func dispatchCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch every due feed once and wait for local batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if batchSize == 0 {
				batchSize = cfg.Scheduler.BatchSize
			}

			dispatcher, drain := a.Dispatcher(ctx)
			summary, err := a.Scheduler(dispatcher).DispatchDueFeeds(ctx, batchSize)
			if err != nil {
				return err
			}
			if err := drain(); err != nil {
				return err
			}

			fmt.Printf("\n=== Dispatch Results ===\n")
			fmt.Printf("Due Feeds: %d\n", summary.DueFeeds)
			fmt.Printf("Batches:   %d\n", summary.Batches)
			fmt.Printf("Failed:    %d\n", summary.Failed)
			for _, id := range summary.JobIDs {
				fmt.Printf("  - %s\n", id)
			}

			if cfg.Queue.Mode == config.QueueLocal {
				printStats()
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Feeds per batch (default from config)")
	return cmd
}

func batchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch <feed-id>...",
		Short: "Process a batch of feeds directly",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			results := a.Batcher.ProcessBatch(cmd.Context(), ids)
			printResults(results)
			return nil
		},
	}
}

func fetchCmd() *cobra.Command {
	var urls []string
	var limit, maxEntries int
	var start, end string
	var mark bool

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch feeds now, ignoring their schedule",
		Long: `Runs the pipeline immediately for the given URLs, or for all stored feeds.
Unknown URLs are registered as generic feeds. The schedule is left untouched
unless --mark is given, which records the fetch and moves next_fetch on.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filters, err := parseFilters(start, end, maxEntries)
			if err != nil {
				return err
			}

			feeds, err := feedsForFetch(ctx, urls, limit)
			if err != nil {
				return err
			}

			var results []*models.FeedResult
			for _, feed := range feeds {
				f := filters
				if f.StartDate == nil {
					f.NotOlderThan = feed.LastFetched
				}
				res, err := a.Agent.RunFeed(ctx, feed, collector.RunOptions{Filters: &f, SkipBookkeeping: !mark})
				if err != nil {
					res.Error = err.Error()
				}
				results = append(results, res)
			}

			printResults(results)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&urls, "url", nil, "Feed URL (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of stored feeds to fetch")
	cmd.Flags().IntVar(&maxEntries, "max", 0, "Maximum entries per feed")
	cmd.Flags().StringVar(&start, "start", "", "Only entries published on or after YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "end", "", "Only entries published on or before YYYY-MM-DD")
	cmd.Flags().BoolVar(&mark, "mark", false, "Record the fetch in the feed's schedule")
	return cmd
}

func previewCmd() *cobra.Command {
	var maxEntries int
	var rawURL string

	cmd := &cobra.Command{
		Use:   "preview [feed-id]",
		Short: "Extract a feed without storing anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var feed *models.Feed
			switch {
			case len(args) == 1:
				ids, err := parseIDs(args)
				if err != nil {
					return err
				}
				found, err := a.Repo.GetFeedsByIDs(ctx, ids)
				if err != nil {
					return err
				}
				if len(found) == 0 {
					return fmt.Errorf("feed %d: %w", ids[0], storage.ErrNotFound)
				}
				feed = found[0]
			case rawURL != "":
				f, err := adHocFeed(rawURL)
				if err != nil {
					return err
				}
				feed = f
			default:
				return errors.New("pass a feed id or --url")
			}

			entries, err := a.Agent.Preview(ctx, feed, source.Filters{MaxEntries: maxEntries})
			if err != nil {
				return err
			}

			fmt.Printf("\n=== %s (%d entries) ===\n\n", feed.URL, len(entries))
			for _, e := range entries {
				fmt.Printf("%s\n", e.Title)
				fmt.Printf("    URL: %s\n", e.URL)
				if e.Published != nil {
					fmt.Printf("    Published: %s\n", e.Published.Format(time.RFC3339))
				}
				if len(e.Categories) > 0 {
					fmt.Printf("    Categories: %v\n", e.Categories)
				}
				fmt.Printf("    %s\n\n", truncateStr(e.Summary, 200))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxEntries, "max", 0, "Maximum entries to show")
	cmd.Flags().StringVar(&rawURL, "url", "", "Preview an unregistered generic feed")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume batch jobs from the kafka queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Queue.Mode != config.QueueKafka {
				return errors.New("worker requires queue.mode=kafka")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			consumer := a.Consumer()
			defer consumer.Close()
			return consumer.Run(ctx)
		},
	}
}

// ============ FEED COMMANDS ============

func feedsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feeds",
		Short: "Feed management commands",
	}

	cmd.AddCommand(feedsSyncCmd())
	cmd.AddCommand(feedsListCmd())
	cmd.AddCommand(feedsResetCmd())
	return cmd
}

func feedsSyncCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert feed definitions from the feeds file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = cfg.Feeds.File
			}
			n, err := a.SyncFeeds(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Printf("Synced %d feeds from %s\n", n, file)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Feeds YAML file (default from config)")
	return cmd
}

func feedsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			feeds, err := a.Repo.ListFeeds(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			fmt.Printf("\n=== Feeds (%d) ===\n\n", len(feeds))
			for _, f := range feeds {
				due := ""
				if f.IsDue(now) {
					due = " | due"
				}
				fmt.Printf("[%d] %s (%s)%s\n", f.ID, f.Name, f.Strategy, due)
				fmt.Printf("    URL: %s\n", f.URL)
				fmt.Printf("    Every: %s | Last: %s | Next: %s\n",
					formatDuration(f.Frequency()), formatTime(f.LastFetched), formatTime(f.NextFetch))
				fmt.Println()
			}
			return nil
		},
	}
}

func feedsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [feed-id]...",
		Short: "Clear fetch bookkeeping so feeds are due again",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			n, err := a.Repo.ResetLastFetched(cmd.Context(), ids...)
			if err != nil {
				return err
			}
			fmt.Printf("Reset %d feeds\n", n)
			return nil
		},
	}
}

// ============ ARTICLE COMMANDS ============

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "articles",
		Short: "Stored article commands",
	}

	cmd.AddCommand(articlesListCmd())
	return cmd
}

func articlesListCmd() *cobra.Command {
	var feedID uint
	var since string
	var limit, offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored articles, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := storage.DefaultArticleFilter()
			filter.Limit = limit
			filter.Offset = offset
			if feedID > 0 {
				filter.FeedID = &feedID
			}
			if since != "" {
				t, err := time.Parse(dateLayout, since)
				if err != nil {
					return fmt.Errorf("--since must be YYYY-MM-DD: %w", err)
				}
				filter.Since = &t
			}

			articles, err := a.Repo.ListArticles(ctx, filter)
			if err != nil {
				return err
			}
			total, err := a.Repo.CountArticles(ctx, filter.FeedID)
			if err != nil {
				return err
			}

			fmt.Printf("\n=== Articles (%d of %d) ===\n\n", len(articles), total)
			for _, art := range articles {
				fmt.Printf("[%d] %s\n", art.ID, art.Title)
				fmt.Printf("    URL: %s | Feed: %d | Published: %s\n", art.URL, art.FeedID, formatTime(art.PublishedAt))
				fmt.Printf("    %s\n\n", truncateStr(art.Content, 300))
			}
			return nil
		},
	}

	cmd.Flags().UintVar(&feedID, "feed", 0, "Only articles of this feed")
	cmd.Flags().StringVar(&since, "since", "", "Only articles published on or after YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum articles to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "Articles to skip")
	return cmd
}

// ============ HELPERS ============

func feedsForFetch(ctx context.Context, urls []string, limit int) ([]*models.Feed, error) {
	if len(urls) == 0 {
		feeds, err := a.Repo.ListFeeds(ctx)
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(feeds) > limit {
			feeds = feeds[:limit]
		}
		return feeds, nil
	}

	feeds := make([]*models.Feed, 0, len(urls))
	for _, u := range urls {
		feed, err := a.Repo.GetFeedByURL(ctx, u)
		if errors.Is(err, storage.ErrNotFound) {
			if feed, err = adHocFeed(u); err != nil {
				return nil, err
			}
			err = a.Repo.UpsertFeed(ctx, feed)
		}
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, feed)
	}
	return feeds, nil
}

func adHocFeed(rawURL string) (*models.Feed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	return models.NewFeed(u.Hostname(), rawURL, models.StrategyGeneric, nil)
}

func parseFilters(start, end string, maxEntries int) (source.Filters, error) {
	f := source.Filters{MaxEntries: maxEntries}
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return f, errors.New("dates must be in YYYY-MM-DD format")
		}
		f.StartDate = &t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return f, errors.New("dates must be in YYYY-MM-DD format")
		}
		// inclusive of the whole end day
		t = t.Add(24*time.Hour - time.Nanosecond)
		f.EndDate = &t
	}
	return f, nil
}

func parseIDs(args []string) ([]uint, error) {
	ids := make([]uint, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid feed id %q", arg)
		}
		ids = append(ids, uint(id))
	}
	return ids, nil
}

func printResults(results []*models.FeedResult) {
	var added, updated, failed int
	fmt.Printf("\n=== Feed Results ===\n")
	for _, r := range results {
		status := "ok"
		switch {
		case r.Skipped:
			status = "skipped: " + r.Reason
		case r.Failed():
			status = "error: " + r.Error
			failed++
		}
		fmt.Printf("[%d] %s | added %d | updated %d | seen %d | %s | %s\n",
			r.FeedID, r.FeedName, r.Added, r.Updated, r.TotalSeen, formatDuration(r.Duration), status)
		added += r.Added
		updated += r.Updated
	}
	fmt.Printf("\nAdded: %d  Updated: %d  Failed: %d\n", added, updated, failed)
}

func printStats() {
	s := a.Stats.Snapshot()
	fmt.Printf("\nFeeds run: %d  failed: %d  skipped: %d  articles added: %d  updated: %d\n",
		s.FeedsRun, s.FeedsFailed, s.FeedsSkipped, s.ArticlesAdded, s.ArticlesUpdated)
}

func truncateStr(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}
