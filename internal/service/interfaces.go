package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"content_syncer/internal/domain"
	"content_syncer/internal/source/saas"
	"content_syncer/internal/webhook"
)

type ArticleStore interface {
	GetBySourceAndExternalID(ctx context.Context, source domain.ArticleSource, externalID string) (*domain.Article, error)
	Create(ctx context.Context, article *domain.Article) (int64, error)
	Update(ctx context.Context, article *domain.Article) error
	ListCleanupCandidates(ctx context.Context, ageCutoff, keepRecentCutoff time.Time) ([]domain.Article, error)
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
	SelectIDsForMark(ctx context.Context, all, publishedOnly bool) ([]int64, error)
	MarkSynced(ctx context.Context, ids []int64, sentAt time.Time) (int64, error)
	CountsBySource(ctx context.Context) (map[domain.ArticleSource]int64, error)
	CountSynced(ctx context.Context) (int64, error)
}

type CategoryStore interface {
	FindOrCreateByName(ctx context.Context, siteID int64, name string) (int64, error)
	ReplaceArticleCategories(ctx context.Context, articleID int64, categoryIDs []int64) error
	DetachArticle(ctx context.Context, articleID int64) error
}

type SyncRunStore interface {
	GetLast(ctx context.Context, sourceURL, keyHash string) (*domain.SyncRun, error)
	Create(ctx context.Context, run *domain.SyncRun) (int64, error)
	Finalize(ctx context.Context, id int64, fetched, created, updated int, success bool, notes *string) error
	Recent(ctx context.Context, sourceURL, keyHash string, limit int) ([]domain.SyncRun, error)
}

type Gateway interface {
	FetchArticles(ctx context.Context, params saas.Params) (*saas.FetchResult, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, article *domain.Article, isNew bool) error
	Close() error
}

// Dispatcher notifies webhook subscribers after a successful commit. The
// write path calls it explicitly; there are no persistence hooks.
type Dispatcher interface {
	Dispatch(ctx context.Context, event string, entity webhook.Deliverable)
}
