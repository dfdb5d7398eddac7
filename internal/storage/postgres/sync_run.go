package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"content_syncer/internal/domain"
)

// SyncRunStore persists the cursor history. One row per run, append-only
// except for Finalize, which completes the row it created.
type SyncRunStore struct {
	db *sqlx.DB
}

func NewSyncRunStore(db *sqlx.DB) *SyncRunStore {
	return &SyncRunStore{db: db}
}

const syncRunColumns = `
	id, source_url, key_hash, last_sync_at, fetched, created, updated,
	params, notes, success, created_at`

// GetLast returns the most recent cursor row for a (source URL, credential
// hash) pair, or nil when the pair has never been synced.
func (s *SyncRunStore) GetLast(ctx context.Context, sourceURL, keyHash string) (*domain.SyncRun, error) {
	query := `SELECT` + syncRunColumns + `
		FROM sync_runs
		WHERE source_url = $1 AND key_hash = $2
		ORDER BY last_sync_at DESC
		LIMIT 1`

	var run domain.SyncRun
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &run, query, sourceURL, keyHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *SyncRunStore) Create(ctx context.Context, run *domain.SyncRun) (int64, error) {
	query := `
		INSERT INTO sync_runs (
			source_url, key_hash, last_sync_at, fetched, created, updated,
			params, notes, success
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`

	var id int64
	err := executor(ctx, s.db).QueryRowxContext(ctx, query,
		run.SourceURL,
		run.KeyHash,
		run.LastSyncAt,
		run.Fetched,
		run.Created,
		run.Updated,
		run.Params,
		run.Notes,
		run.Success,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

// Finalize writes the run's outcome onto the row Create made. This is the
// only update the table ever sees; one logical run, one row.
func (s *SyncRunStore) Finalize(ctx context.Context, id int64, fetched, created, updated int, success bool, notes *string) error {
	query := `
		UPDATE sync_runs
		SET fetched = $1, created = $2, updated = $3, success = $4,
		    notes = COALESCE($5, notes)
		WHERE id = $6`

	_, err := executor(ctx, s.db).ExecContext(ctx, query,
		fetched, created, updated, success, notes, id)
	return err
}

// Recent lists the latest cursor rows for the status report.
func (s *SyncRunStore) Recent(ctx context.Context, sourceURL, keyHash string, limit int) ([]domain.SyncRun, error) {
	query := `SELECT` + syncRunColumns + `
		FROM sync_runs
		WHERE source_url = $1 AND key_hash = $2
		ORDER BY last_sync_at DESC
		LIMIT $3`

	var runs []domain.SyncRun
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &runs, query, sourceURL, keyHash, limit)
	return runs, err
}
