package service

import (
	"context"
	"fmt"

	"content_syncer/internal/domain"
)

// StatusReport is the read-only view sync-status prints.
type StatusReport struct {
	SourceURL      string
	CountsBySource map[domain.ArticleSource]int64
	SyncedCount    int64
	RecentRuns     []domain.SyncRun
}

type StatusService struct {
	articles ArticleStore
	syncRuns SyncRunStore
	cfg      SyncConfig
}

func NewStatusService(articles ArticleStore, syncRuns SyncRunStore, cfg SyncConfig) *StatusService {
	return &StatusService{
		articles: articles,
		syncRuns: syncRuns,
		cfg:      cfg,
	}
}

func (s *StatusService) Report(ctx context.Context, recentRuns int) (*StatusReport, error) {
	counts, err := s.articles.CountsBySource(ctx)
	if err != nil {
		return nil, fmt.Errorf("count articles: %w", err)
	}

	synced, err := s.articles.CountSynced(ctx)
	if err != nil {
		return nil, fmt.Errorf("count synced: %w", err)
	}

	runs, err := s.syncRuns.Recent(ctx, s.cfg.SourceURL, domain.HashCredential(s.cfg.APIKey), recentRuns)
	if err != nil {
		return nil, fmt.Errorf("load recent runs: %w", err)
	}

	return &StatusReport{
		SourceURL:      s.cfg.SourceURL,
		CountsBySource: counts,
		SyncedCount:    synced,
		RecentRuns:     runs,
	}, nil
}
