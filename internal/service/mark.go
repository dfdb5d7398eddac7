package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type MarkOptions struct {
	IDs       []int64
	All       bool
	Published bool
	DryRun    bool
}

// MarkService bulk-flags articles as synced, stamping webhook_sent_at. Used
// after a manual export or to seed the flag on a freshly migrated site.
type MarkService struct {
	articles ArticleStore
	logger   *slog.Logger
}

func NewMarkService(articles ArticleStore, logger *slog.Logger) *MarkService {
	return &MarkService{
		articles: articles,
		logger:   logger.With("component", "mark"),
	}
}

// Mark returns how many articles were (or, in dry-run, would be) marked.
func (s *MarkService) Mark(ctx context.Context, opts MarkOptions) (int64, error) {
	ids := opts.IDs
	if len(ids) == 0 {
		if !opts.All && !opts.Published {
			return 0, errors.New("no selection: pass ids, --all, or --published")
		}
		var err error
		ids, err = s.articles.SelectIDsForMark(ctx, opts.All, opts.Published)
		if err != nil {
			return 0, fmt.Errorf("select articles: %w", err)
		}
	}

	if opts.DryRun {
		s.logger.Info("mark dry run", "would_mark", len(ids))
		return int64(len(ids)), nil
	}

	marked, err := s.articles.MarkSynced(ctx, ids, time.Now())
	if err != nil {
		return 0, fmt.Errorf("mark synced: %w", err)
	}

	s.logger.Info("marked articles as synced", "count", marked)
	return marked, nil
}
