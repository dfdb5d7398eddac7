package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source/saas"
	"content_syncer/internal/webhook"
)

// Events emitted to webhook subscribers when reconciliation commits.
const (
	EventArticleCreated = "article.created"
	EventArticleUpdated = "article.updated"
)

// contentPlaceholder fills in when a remote item carries neither content nor
// excerpt. An empty body is never a reason to reject an item.
const contentPlaceholder = "Content pending synchronization."

// SyncConfig identifies the remote source a SyncService talks to. The raw
// API key lives only here and in the gateway; cursor rows see its hash.
type SyncConfig struct {
	SourceURL string
	APIKey    string
	SiteID    int64
}

// SyncOptions are the per-run knobs.
type SyncOptions struct {
	Status   string
	PerPage  int
	Interval time.Duration
	DryRun   bool
	Force    bool
}

// SyncService pulls changed articles from the remote source and reconciles
// them into local storage, keyed by external identifier, advancing the
// cursor once per run.
type SyncService struct {
	gateway    Gateway
	articles   ArticleStore
	categories CategoryStore
	syncRuns   SyncRunStore
	txManager  TransactionManager
	publisher  Publisher
	dispatcher Dispatcher
	logger     *slog.Logger
	cfg        SyncConfig
}

func NewSyncService(
	gateway Gateway,
	articles ArticleStore,
	categories CategoryStore,
	syncRuns SyncRunStore,
	txManager TransactionManager,
	publisher Publisher,
	dispatcher Dispatcher,
	logger *slog.Logger,
	cfg SyncConfig,
) *SyncService {
	return &SyncService{
		gateway:    gateway,
		articles:   articles,
		categories: categories,
		syncRuns:   syncRuns,
		txManager:  txManager,
		publisher:  publisher,
		dispatcher: dispatcher,
		logger:     logger.With("source_url", cfg.SourceURL),
		cfg:        cfg,
	}
}

// Run executes one sync pass. A run that the due check declines comes back
// with Skipped=true and zero counts, which callers must distinguish from a
// run that found nothing to change. The returned error is non-nil only for
// run-level failures (remote unreachable, auth rejected); per-item failures
// are counted in Failed and logged.
func (s *SyncService) Run(ctx context.Context, opts SyncOptions) (*domain.SyncStats, error) {
	startTime := time.Now()
	keyHash := domain.HashCredential(s.cfg.APIKey)

	stats := &domain.SyncStats{SourceURL: s.cfg.SourceURL}

	last, err := s.syncRuns.GetLast(ctx, s.cfg.SourceURL, keyHash)
	if err != nil {
		return nil, fmt.Errorf("load last cursor: %w", err)
	}

	if !opts.Force && !domain.SyncDue(last, opts.Interval, startTime) {
		s.logger.Info("sync not due, skipping",
			"last_sync_at", last.LastSyncAt,
			"interval", opts.Interval,
		)
		stats.Skipped = true
		return stats, nil
	}

	var runID int64
	if !opts.DryRun {
		params, _ := json.Marshal(map[string]any{
			"per_page": opts.PerPage,
			"status":   opts.Status,
			"force":    opts.Force,
		})
		run := &domain.SyncRun{
			SourceURL:  s.cfg.SourceURL,
			KeyHash:    keyHash,
			LastSyncAt: startTime,
			Params:     params,
		}
		if runID, err = s.syncRuns.Create(ctx, run); err != nil {
			return nil, fmt.Errorf("record cursor: %w", err)
		}
	}

	fetchParams := saas.Params{
		PerPage: opts.PerPage,
		Status:  opts.Status,
	}
	if last != nil {
		since := last.LastSyncAt
		fetchParams.Since = &since
	}

	result, err := s.gateway.FetchArticles(ctx, fetchParams)
	if err != nil {
		s.finalize(ctx, opts.DryRun, runID, stats, false, err.Error())
		return stats, fmt.Errorf("fetch articles: %w", err)
	}

	if !result.Success {
		msg := result.Message
		if result.StatusCode == http.StatusUnauthorized {
			msg = "authentication rejected, check the API key"
		}
		s.finalize(ctx, opts.DryRun, runID, stats, false, msg)
		return stats, fmt.Errorf("remote fetch failed (status %d): %s", result.StatusCode, msg)
	}

	stats.Fetched = len(result.Articles)
	s.logger.Info("fetched articles", "count", stats.Fetched, "dry_run", opts.DryRun)

	for i := range result.Articles {
		item := &result.Articles[i]

		isNew, article, err := s.reconcile(ctx, item, opts.DryRun)
		if err != nil {
			stats.Failed++
			s.logger.Warn("item reconciliation failed",
				"remote_id", item.ID,
				"external_id", item.ExternalID,
				"error", err,
			)
			continue
		}

		if isNew {
			stats.Created++
		} else {
			stats.Updated++
		}

		if opts.DryRun {
			continue
		}

		event := EventArticleUpdated
		if isNew {
			event = EventArticleCreated
		}
		if s.dispatcher != nil {
			s.dispatcher.Dispatch(ctx, event, webhook.ArticleEvent{Article: article})
		}
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, article, isNew); err != nil {
				s.logger.Warn("publish failed", "article_id", article.ID, "error", err)
			}
		}
	}

	var notes string
	if stats.Failed > 0 {
		notes = fmt.Sprintf("%d items failed", stats.Failed)
	}
	s.finalize(ctx, opts.DryRun, runID, stats, true, notes)

	stats.Duration = time.Since(startTime)
	s.logger.Info("sync completed",
		"fetched", stats.Fetched,
		"created", stats.Created,
		"updated", stats.Updated,
		"failed", stats.Failed,
		"duration", stats.Duration,
	)

	return stats, nil
}

// finalize completes the cursor row. Per-item failures leave success=true;
// the cursor advances regardless so failed items are not silently retried
// forever (their counts stay visible in the row).
func (s *SyncService) finalize(ctx context.Context, dryRun bool, runID int64, stats *domain.SyncStats, success bool, notes string) {
	if dryRun {
		return
	}
	var notesPtr *string
	if notes != "" {
		notesPtr = &notes
	}
	if err := s.syncRuns.Finalize(ctx, runID, stats.Fetched, stats.Created, stats.Updated, success, notesPtr); err != nil {
		s.logger.Error("finalize cursor failed", "run_id", runID, "error", err)
	}
}

// reconcile merges one remote item into local storage inside its own
// transaction, so one bad item costs nothing but itself. In dry-run mode
// only the match logic runs.
func (s *SyncService) reconcile(ctx context.Context, item *saas.RemoteArticle, dryRun bool) (bool, *domain.Article, error) {
	externalID := item.ExternalIdentifier()
	if externalID == "" {
		return false, nil, fmt.Errorf("missing external identifier")
	}

	existing, err := s.articles.GetBySourceAndExternalID(ctx, domain.SourceSaasSync, externalID)
	if err != nil {
		return false, nil, fmt.Errorf("lookup by external id: %w", err)
	}
	isNew := existing == nil

	if dryRun {
		return isNew, nil, nil
	}

	var article *domain.Article
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		article, err = s.applyItem(txCtx, item, externalID)
		return err
	})
	if err != nil {
		return isNew, nil, err
	}

	return isNew, article, nil
}

func (s *SyncService) applyItem(ctx context.Context, item *saas.RemoteArticle, externalID string) (*domain.Article, error) {
	// The remote payload is authoritative; lookup again inside the
	// transaction so the update targets the committed row.
	article, err := s.articles.GetBySourceAndExternalID(ctx, domain.SourceSaasSync, externalID)
	if err != nil {
		return nil, fmt.Errorf("lookup by external id: %w", err)
	}

	now := time.Now()
	rawPayload, _ := json.Marshal(item)

	if article == nil {
		article = &domain.Article{
			SiteID:     s.cfg.SiteID,
			ExternalID: &externalID,
		}
	}

	article.Title = item.Title
	article.Slug = item.Slug
	article.Content = resolveContent(item)
	article.Status = item.Status
	article.Source = domain.SourceSaasSync
	article.IsSynced = true
	article.WebhookReceivedAt = &now
	article.LastPayload = rawPayload

	if item.Excerpt != "" {
		excerpt := item.Excerpt
		article.Excerpt = &excerpt
	}
	if item.AuthorName != "" {
		author := item.AuthorName
		article.AuthorName = &author
	}
	if item.PublishedAt != "" {
		if published, perr := parseRemoteTime(item.PublishedAt); perr == nil {
			article.PublishedAt = &published
		} else {
			s.logger.Warn("unparseable published_at",
				"external_id", externalID,
				"value", item.PublishedAt,
			)
		}
	}

	if article.ID == 0 {
		if _, err := s.articles.Create(ctx, article); err != nil {
			return nil, fmt.Errorf("create article: %w", err)
		}
	} else {
		if err := s.articles.Update(ctx, article); err != nil {
			return nil, fmt.Errorf("update article: %w", err)
		}
	}

	if err := s.syncCategories(ctx, article, item.Categories); err != nil {
		return nil, fmt.Errorf("sync categories: %w", err)
	}

	return article, nil
}

// syncCategories replaces the article's category set with the incoming
// names, creating categories on first sight. Replace, never append.
func (s *SyncService) syncCategories(ctx context.Context, article *domain.Article, names []string) error {
	ids := make([]int64, 0, len(names))
	categories := make([]domain.Category, 0, len(names))

	for _, name := range names {
		if name == "" {
			continue
		}
		id, err := s.categories.FindOrCreateByName(ctx, article.SiteID, name)
		if err != nil {
			return fmt.Errorf("find or create category %q: %w", name, err)
		}
		ids = append(ids, id)
		categories = append(categories, domain.Category{ID: id, SiteID: article.SiteID, Name: name})
	}

	if err := s.categories.ReplaceArticleCategories(ctx, article.ID, ids); err != nil {
		return err
	}

	article.Categories = categories
	return nil
}

func resolveContent(item *saas.RemoteArticle) string {
	if item.Content != "" {
		return item.Content
	}
	if item.Excerpt != "" {
		return item.Excerpt
	}
	return contentPlaceholder
}

func parseRemoteTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
