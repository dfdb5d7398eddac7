package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"content_syncer/internal/scheduler"
	"content_syncer/internal/service"
)

func newRunCmd(configPath *string) *cobra.Command {
	var siteID int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync scheduler as a daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var pub service.Publisher
			rmq, err := a.newPublisher()
			if err != nil {
				return fmt.Errorf("connect to rabbitmq: %w", err)
			}
			if rmq != nil {
				pub = rmq
				defer rmq.Close()
			}

			cfg := a.syncConfig("", "", siteID)
			syncService := a.newSyncService(cfg, pub)

			opts := service.SyncOptions{
				Status:   a.cfg.Sync.Status,
				PerPage:  a.cfg.Sync.PerPage,
				Interval: a.cfg.Sync.Interval,
			}
			sched := scheduler.NewScheduler(syncService, opts, a.cfg.Sync.Interval, a.logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				sig := <-sigCh
				a.logger.Info("received shutdown signal", "signal", sig)
				cancel()
			}()

			a.logger.Info("starting syncer",
				"source_url", cfg.SourceURL,
				"interval", a.cfg.Sync.Interval,
			)

			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&siteID, "site-id", 0, "local site receiving synced articles")
	return cmd
}

func newSyncArticlesCmd(configPath *string) *cobra.Command {
	var (
		saasURL  string
		apiKey   string
		siteID   int64
		status   string
		perPage  int
		interval int
		dryRun   bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "sync-articles",
		Short: "Run one incremental article sync against the SaaS source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			cfg := a.syncConfig(saasURL, apiKey, siteID)
			syncService := a.newSyncService(cfg, nil)

			opts := service.SyncOptions{
				Status:   status,
				PerPage:  perPage,
				Interval: minutes(interval, a.cfg.Sync.Interval),
				DryRun:   dryRun,
				Force:    force,
			}
			if opts.PerPage == 0 {
				opts.PerPage = a.cfg.Sync.PerPage
			}

			stats, err := syncService.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			if stats.Skipped {
				fmt.Println("sync skipped: not due yet (use --force to override)")
				return nil
			}
			fmt.Printf("fetched=%d created=%d updated=%d failed=%d duration=%s\n",
				stats.Fetched, stats.Created, stats.Updated, stats.Failed, stats.Duration)
			return nil
		},
	}

	cmd.Flags().StringVar(&saasURL, "saas-url", "", "SaaS base URL (overrides config)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "SaaS API key (overrides config)")
	cmd.Flags().Int64Var(&siteID, "site-id", 0, "local site receiving synced articles")
	cmd.Flags().StringVar(&status, "status", "", "only fetch articles with this status")
	cmd.Flags().IntVar(&perPage, "per-page", 0, "page size (server clamps at 100)")
	cmd.Flags().IntVar(&interval, "interval", 0, "minimum minutes between runs")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "match and report without writing")
	cmd.Flags().BoolVar(&force, "force", false, "run even if not due")
	return cmd
}

func newCleanSyncedCmd(configPath *string) *cobra.Command {
	var (
		days       int
		keepRecent int
		dryRun     bool
		force      bool
	)

	cmd := &cobra.Command{
		Use:   "clean-synced",
		Short: "Delete synced articles older than the retention window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			cleanup := service.NewCleanupService(a.articles, a.categories, a.syncRuns, a.txManager, a.logger)

			opts := service.CleanupOptions{
				MinAgeDays:      valueOr(days, a.cfg.Cleanup.MinAgeDays),
				KeepRecentHours: valueOr(keepRecent, a.cfg.Cleanup.KeepRecentHours),
				DryRun:          dryRun,
				Force:           force,
			}

			result, err := cleanup.Sweep(cmd.Context(), opts)
			if errors.Is(err, service.ErrConfirmationRequired) {
				if !confirm(fmt.Sprintf("delete %d synced articles?", result.Candidates)) {
					fmt.Println("aborted")
					return nil
				}
				opts.Confirmed = true
				result, err = cleanup.Sweep(cmd.Context(), opts)
			}
			if err != nil {
				return err
			}

			if result.DryRun {
				fmt.Printf("dry run: %d candidates, nothing deleted\n", result.Candidates)
				for _, art := range result.Articles {
					fmt.Printf("  would delete #%d %q\n", art.ID, art.Title)
				}
				return nil
			}
			fmt.Printf("candidates=%d deleted=%d\n", result.Candidates, result.Deleted)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "minimum age in days (default from config)")
	cmd.Flags().IntVar(&keepRecent, "keep-recent", 0, "never delete articles touched within this many hours")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list candidates without deleting")
	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")
	return cmd
}

func newMarkSyncedCmd(configPath *string) *cobra.Command {
	var (
		ids       []int64
		all       bool
		published bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "mark-synced",
		Short: "Bulk-mark articles as synced",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			mark := service.NewMarkService(a.articles, a.logger)
			count, err := mark.Mark(cmd.Context(), service.MarkOptions{
				IDs:       ids,
				All:       all,
				Published: published,
				DryRun:    dryRun,
			})
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Printf("dry run: %d articles would be marked\n", count)
			} else {
				fmt.Printf("marked %d articles as synced\n", count)
			}
			return nil
		},
	}

	cmd.Flags().Int64SliceVar(&ids, "ids", nil, "explicit article ids")
	cmd.Flags().BoolVar(&all, "all", false, "mark every unsynced article")
	cmd.Flags().BoolVar(&published, "published", false, "mark unsynced published articles")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count without writing")
	return cmd
}

func newSyncStatusCmd(configPath *string) *cobra.Command {
	var (
		saasURL string
		apiKey  string
	)

	cmd := &cobra.Command{
		Use:   "sync-status",
		Short: "Report sync counters and recent cursor rows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			status := service.NewStatusService(a.articles, a.syncRuns, a.syncConfig(saasURL, apiKey, 0))
			report, err := status.Report(cmd.Context(), 10)
			if err != nil {
				return err
			}

			fmt.Printf("source: %s\n", report.SourceURL)
			fmt.Printf("synced articles: %d\n", report.SyncedCount)
			for source, n := range report.CountsBySource {
				fmt.Printf("  %-12s %d\n", source, n)
			}
			fmt.Println("recent runs:")
			for _, run := range report.RecentRuns {
				fmt.Printf("  %s fetched=%d created=%d updated=%d success=%t\n",
					run.LastSyncAt.Format("2006-01-02 15:04:05"),
					run.Fetched, run.Created, run.Updated, run.Success)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&saasURL, "saas-url", "", "SaaS base URL (overrides config)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "SaaS API key (overrides config)")
	return cmd
}

func newSubscribersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscribers",
		Short: "Manage webhook subscribers",
	}

	var (
		siteID      int64
		url         string
		events      []string
		description string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Register a webhook endpoint and print its signing secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var desc *string
			if description != "" {
				desc = &description
			}
			sub, err := a.newDispatcher().CreateSubscriber(cmd.Context(), siteID, url, events, desc)
			if err != nil {
				return err
			}

			fmt.Printf("subscriber: %s\n", sub.ID)
			fmt.Printf("secret:     %s (shown once, store it now)\n", sub.Secret)
			return nil
		},
	}
	add.Flags().Int64Var(&siteID, "site-id", 0, "site the endpoint belongs to")
	add.Flags().StringVar(&url, "url", "", "endpoint URL")
	add.Flags().StringSliceVar(&events, "events", nil, "events to deliver (e.g. article.created)")
	add.Flags().StringVar(&description, "description", "", "free-form note")
	_ = add.MarkFlagRequired("url")

	var listSiteID int64
	list := &cobra.Command{
		Use:   "list",
		Short: "List active subscribers for a site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			subs, err := a.subscribers.ListActiveForSite(cmd.Context(), listSiteID)
			if err != nil {
				return err
			}
			for _, sub := range subs {
				fmt.Printf("%s  %s  events=%s\n", sub.ID, sub.URL, strings.Join(sub.Events, ","))
			}
			return nil
		},
	}
	list.Flags().Int64Var(&listSiteID, "site-id", 0, "site to list")

	deactivate := &cobra.Command{
		Use:   "deactivate <id>",
		Short: "Stop deliveries to a subscriber, keeping its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.subscribers.Deactivate(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("deactivated %s\n", args[0])
			return nil
		},
	}

	var limit int
	deliveries := &cobra.Command{
		Use:   "deliveries <id>",
		Short: "Show recent delivery attempts for a subscriber",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.deliveries.ListBySubscriber(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				outcome := "no response"
				if rec.StatusCode != nil {
					outcome = fmt.Sprintf("status=%d", *rec.StatusCode)
				} else if rec.ErrorMessage != nil {
					outcome = "error=" + *rec.ErrorMessage
				}
				fmt.Printf("%s  %-20s %s/%s  %s\n",
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.Event, rec.EntityType, rec.EntityID, outcome)
			}
			return nil
		},
	}
	deliveries.Flags().IntVar(&limit, "limit", 20, "maximum records to show")

	cmd.AddCommand(add, list, deactivate, deliveries)
	return cmd
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func minutes(n int, fallback time.Duration) time.Duration {
	if n > 0 {
		return time.Duration(n) * time.Minute
	}
	return fallback
}

func valueOr(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}
