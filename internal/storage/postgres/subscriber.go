package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"content_syncer/internal/domain"
)

type SubscriberStore struct {
	db *sqlx.DB
}

func NewSubscriberStore(db *sqlx.DB) *SubscriberStore {
	return &SubscriberStore{db: db}
}

type subscriberRow struct {
	ID          string         `db:"id"`
	SiteID      int64          `db:"site_id"`
	URL         string         `db:"url"`
	Secret      string         `db:"secret"`
	Events      pq.StringArray `db:"events"`
	Active      bool           `db:"active"`
	Description *string        `db:"description"`
	CreatedAt   sql.NullTime   `db:"created_at"`
	UpdatedAt   sql.NullTime   `db:"updated_at"`
}

func (r subscriberRow) toDomain() domain.Subscriber {
	sub := domain.Subscriber{
		ID:          r.ID,
		SiteID:      r.SiteID,
		URL:         r.URL,
		Secret:      r.Secret,
		Events:      []string(r.Events),
		Active:      r.Active,
		Description: r.Description,
	}
	if r.CreatedAt.Valid {
		sub.CreatedAt = r.CreatedAt.Time
	}
	if r.UpdatedAt.Valid {
		sub.UpdatedAt = r.UpdatedAt.Time
	}
	return sub
}

func (s *SubscriberStore) Create(ctx context.Context, sub *domain.Subscriber) error {
	query := `
		INSERT INTO subscribers (id, site_id, url, secret, events, active, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		sub.ID,
		sub.SiteID,
		sub.URL,
		sub.Secret,
		pq.StringArray(sub.Events),
		sub.Active,
		sub.Description,
	)
	return err
}

func (s *SubscriberStore) GetByID(ctx context.Context, id string) (*domain.Subscriber, error) {
	query := `
		SELECT id, site_id, url, secret, events, active, description, created_at, updated_at
		FROM subscribers
		WHERE id = $1`

	var row subscriberRow
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sub := row.toDomain()
	return &sub, nil
}

// ListActiveForSite returns the active subscribers of a site. Event-set
// matching happens in the dispatcher, not here.
func (s *SubscriberStore) ListActiveForSite(ctx context.Context, siteID int64) ([]domain.Subscriber, error) {
	query := `
		SELECT id, site_id, url, secret, events, active, description, created_at, updated_at
		FROM subscribers
		WHERE site_id = $1 AND active = true
		ORDER BY created_at`

	var rows []subscriberRow
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, query, siteID); err != nil {
		return nil, err
	}

	subs := make([]domain.Subscriber, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toDomain())
	}
	return subs, nil
}

// Deactivate is the preferred way to retire an endpoint; the delivery
// history stays intact.
func (s *SubscriberStore) Deactivate(ctx context.Context, id string) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`UPDATE subscribers SET active = false, updated_at = now() WHERE id = $1`, id)
	return err
}

// Delete removes the subscriber; delivery records cascade with it.
func (s *SubscriberStore) Delete(ctx context.Context, id string) error {
	_, err := executor(ctx, s.db).ExecContext(ctx,
		`DELETE FROM subscribers WHERE id = $1`, id)
	return err
}
