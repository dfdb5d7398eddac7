package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"content_syncer/internal/domain"
)

// cleanupSourceURL tags the audit rows the sweep writes into the cursor
// table, keeping them apart from real sync runs.
const cleanupSourceURL = "local:cleanup"

// ErrConfirmationRequired is returned when a destructive sweep runs without
// force and without a prior confirmation signal. The CLI prompts on it.
var ErrConfirmationRequired = errors.New("cleanup requires confirmation or --force")

type CleanupOptions struct {
	MinAgeDays      int
	KeepRecentHours int
	DryRun          bool
	Force           bool
	Confirmed       bool
}

// CleanupService deletes synced-and-stale articles to bound storage growth.
// Unlike sync reconciliation, the sweep is all-or-nothing: the whole batch
// shares one transaction and any error rolls everything back.
type CleanupService struct {
	articles   ArticleStore
	categories CategoryStore
	syncRuns   SyncRunStore
	txManager  TransactionManager
	logger     *slog.Logger
}

func NewCleanupService(
	articles ArticleStore,
	categories CategoryStore,
	syncRuns SyncRunStore,
	txManager TransactionManager,
	logger *slog.Logger,
) *CleanupService {
	return &CleanupService{
		articles:   articles,
		categories: categories,
		syncRuns:   syncRuns,
		txManager:  txManager,
		logger:     logger.With("component", "cleanup"),
	}
}

// Sweep selects and deletes synced articles older than both bounds. An
// article touched within KeepRecentHours survives no matter how small
// MinAgeDays is; the recency bound is a hard safety floor.
func (s *CleanupService) Sweep(ctx context.Context, opts CleanupOptions) (*domain.CleanupResult, error) {
	now := time.Now()
	ageCutoff := now.AddDate(0, 0, -opts.MinAgeDays)
	keepRecentCutoff := now.Add(-time.Duration(opts.KeepRecentHours) * time.Hour)

	candidates, err := s.articles.ListCleanupCandidates(ctx, ageCutoff, keepRecentCutoff)
	if err != nil {
		return nil, fmt.Errorf("list cleanup candidates: %w", err)
	}

	result := &domain.CleanupResult{
		Candidates: len(candidates),
		DryRun:     opts.DryRun,
	}
	for _, a := range candidates {
		result.Articles = append(result.Articles, domain.DeletedArticle{
			ID:         a.ID,
			ExternalID: a.ExternalID,
			Title:      a.Title,
		})
	}

	s.logger.Info("cleanup candidates selected",
		"count", len(candidates),
		"min_age_days", opts.MinAgeDays,
		"keep_recent_hours", opts.KeepRecentHours,
		"dry_run", opts.DryRun,
	)

	if opts.DryRun || len(candidates) == 0 {
		return result, nil
	}

	if !opts.Force && !opts.Confirmed {
		return result, ErrConfirmationRequired
	}

	ids := make([]int64, len(candidates))
	for i, a := range candidates {
		ids[i] = a.ID
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, id := range ids {
			if err := s.categories.DetachArticle(txCtx, id); err != nil {
				return fmt.Errorf("detach categories for article %d: %w", id, err)
			}
		}

		deleted, err := s.articles.DeleteByIDs(txCtx, ids)
		if err != nil {
			return fmt.Errorf("delete articles: %w", err)
		}
		result.Deleted = int(deleted)

		return s.writeAuditEntry(txCtx, result, opts)
	})
	if err != nil {
		result.Deleted = 0
		return result, err
	}

	s.logger.Info("cleanup completed", "deleted", result.Deleted)
	return result, nil
}

// writeAuditEntry records the deleted ids and titles in the cursor table so
// the articles can be re-fetched from the remote source by title or
// external id if the sweep turns out to have been too aggressive.
func (s *CleanupService) writeAuditEntry(ctx context.Context, result *domain.CleanupResult, opts CleanupOptions) error {
	notesJSON, err := json.Marshal(result.Articles)
	if err != nil {
		return fmt.Errorf("marshal audit notes: %w", err)
	}
	notes := string(notesJSON)

	params, _ := json.Marshal(map[string]int{
		"min_age_days":      opts.MinAgeDays,
		"keep_recent_hours": opts.KeepRecentHours,
	})

	run := &domain.SyncRun{
		SourceURL:  cleanupSourceURL,
		KeyHash:    "cleanup",
		LastSyncAt: time.Now(),
		Fetched:    result.Candidates,
		Params:     params,
		Notes:      &notes,
		Success:    true,
	}
	if _, err := s.syncRuns.Create(ctx, run); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}
	return nil
}
