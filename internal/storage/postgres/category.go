package postgres

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"content_syncer/internal/domain"
)

type CategoryStore struct {
	db *sqlx.DB
}

func NewCategoryStore(db *sqlx.DB) *CategoryStore {
	return &CategoryStore{db: db}
}

// FindOrCreateByName upserts a category by (site, name) and returns its id.
// The DO UPDATE on conflict is a no-op write that makes RETURNING yield the
// existing row's id.
func (s *CategoryStore) FindOrCreateByName(ctx context.Context, siteID int64, name string) (int64, error) {
	query := `
		INSERT INTO categories (site_id, name)
		VALUES ($1, $2)
		ON CONFLICT (site_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	var id int64
	err := executor(ctx, s.db).QueryRowxContext(ctx, query, siteID, name).Scan(&id)
	return id, err
}

// ReplaceArticleCategories fully replaces the article's category set.
// Reconciliation never appends; the incoming list wins.
func (s *CategoryStore) ReplaceArticleCategories(ctx context.Context, articleID int64, categoryIDs []int64) error {
	exec := executor(ctx, s.db)

	_, err := exec.ExecContext(ctx,
		`DELETE FROM article_categories WHERE article_id = $1`, articleID)
	if err != nil {
		return err
	}

	if len(categoryIDs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO article_categories (article_id, category_id) VALUES ")
	args := make([]interface{}, 0, len(categoryIDs)+1)
	args = append(args, articleID)

	for i, id := range categoryIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(strconv.Itoa(i + 2))
		sb.WriteString(")")
		args = append(args, id)
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")

	_, err = exec.ExecContext(ctx, sb.String(), args...)
	return err
}

// DetachArticle drops all category links for an article. Cleanup calls this
// before deleting the row.
func (s *CategoryStore) DetachArticle(ctx context.Context, articleID int64) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM article_categories WHERE article_id = $1`, articleID)
	return err
}

func (s *CategoryStore) GetByArticleID(ctx context.Context, articleID int64) ([]domain.Category, error) {
	query := `
		SELECT c.id, c.site_id, c.name
		FROM categories c
		INNER JOIN article_categories ac ON ac.category_id = c.id
		WHERE ac.article_id = $1
		ORDER BY c.name`

	var categories []domain.Category
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &categories, query, articleID)
	return categories, err
}
