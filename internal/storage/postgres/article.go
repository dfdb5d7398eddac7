package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"content_syncer/internal/domain"
)

type ArticleStore struct {
	db *sqlx.DB
}

func NewArticleStore(db *sqlx.DB) *ArticleStore {
	return &ArticleStore{db: db}
}

const articleColumns = `
	id, site_id, external_id, title, slug, content, excerpt, status,
	author_name, source, is_synced, webhook_received_at, webhook_sent_at,
	last_payload, published_at, created_at, updated_at`

// GetBySourceAndExternalID looks up the local copy of a remote article.
// Returns nil without error when no copy exists, which is the create branch
// of reconciliation.
func (s *ArticleStore) GetBySourceAndExternalID(ctx context.Context, source domain.ArticleSource, externalID string) (*domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE source = $1 AND external_id = $2`

	var article domain.Article
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &article, query, source, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &article, nil
}

func (s *ArticleStore) Create(ctx context.Context, article *domain.Article) (int64, error) {
	query := `
		INSERT INTO articles (
			site_id, external_id, title, slug, content, excerpt, status,
			author_name, source, is_synced, webhook_received_at, last_payload,
			published_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id`

	var id int64
	err := executor(ctx, s.db).QueryRowxContext(ctx, query,
		article.SiteID,
		article.ExternalID,
		article.Title,
		article.Slug,
		article.Content,
		article.Excerpt,
		article.Status,
		article.AuthorName,
		article.Source,
		article.IsSynced,
		article.WebhookReceivedAt,
		article.LastPayload,
		article.PublishedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	article.ID = id
	return id, nil
}

// Update overwrites the mutable content fields from the incoming payload.
// The remote source is authoritative during reconciliation.
func (s *ArticleStore) Update(ctx context.Context, article *domain.Article) error {
	query := `
		UPDATE articles SET
			title = $1,
			slug = $2,
			content = $3,
			excerpt = $4,
			status = $5,
			author_name = $6,
			source = $7,
			is_synced = $8,
			webhook_received_at = $9,
			last_payload = $10,
			published_at = $11,
			updated_at = now()
		WHERE id = $12`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		article.Title,
		article.Slug,
		article.Content,
		article.Excerpt,
		article.Status,
		article.AuthorName,
		article.Source,
		article.IsSynced,
		article.WebhookReceivedAt,
		article.LastPayload,
		article.PublishedAt,
		article.ID,
	)
	return err
}

// ListCleanupCandidates selects synced articles whose updated_at is at or
// before both cutoffs. keepRecentCutoff is the safety floor; ageCutoff the
// retention window. Both bounds must hold.
func (s *ArticleStore) ListCleanupCandidates(ctx context.Context, ageCutoff, keepRecentCutoff time.Time) ([]domain.Article, error) {
	query := `SELECT` + articleColumns + `
		FROM articles
		WHERE is_synced = true
		  AND updated_at <= $1
		  AND updated_at <= $2
		ORDER BY updated_at ASC`

	var articles []domain.Article
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &articles, query, ageCutoff, keepRecentCutoff)
	return articles, err
}

func (s *ArticleStore) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM articles WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SelectIDsForMark resolves the article set for a bulk mark-as-synced pass.
func (s *ArticleStore) SelectIDsForMark(ctx context.Context, all, publishedOnly bool) ([]int64, error) {
	query := `SELECT id FROM articles WHERE is_synced = false`
	if publishedOnly && !all {
		query += ` AND status = 'published'`
	}
	query += ` ORDER BY id`

	var ids []int64
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &ids, query)
	return ids, err
}

func (s *ArticleStore) MarkSynced(ctx context.Context, ids []int64, sentAt time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := executor(ctx, s.db).ExecContext(ctx, `
		UPDATE articles
		SET is_synced = true, webhook_sent_at = $1, updated_at = now()
		WHERE id = ANY($2)`,
		sentAt, pq.Array(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountsBySource feeds the sync-status report.
func (s *ArticleStore) CountsBySource(ctx context.Context) (map[domain.ArticleSource]int64, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx,
		`SELECT source, COUNT(*) FROM articles GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ArticleSource]int64)
	for rows.Next() {
		var source domain.ArticleSource
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

func (s *ArticleStore) CountSynced(ctx context.Context) (int64, error) {
	var n int64
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &n,
		`SELECT COUNT(*) FROM articles WHERE is_synced = true`)
	return n, err
}
