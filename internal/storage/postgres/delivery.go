package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"content_syncer/internal/domain"
)

// DeliveryStore is the append-only ledger of webhook delivery attempts.
type DeliveryStore struct {
	db *sqlx.DB
}

func NewDeliveryStore(db *sqlx.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

func (s *DeliveryStore) Record(ctx context.Context, rec *domain.DeliveryRecord) (int64, error) {
	query := `
		INSERT INTO delivery_records (
			subscriber_id, event, payload, response, status_code,
			error_message, entity_type, entity_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	var id int64
	err := executor(ctx, s.db).QueryRowxContext(ctx, query,
		rec.SubscriberID,
		rec.Event,
		rec.Payload,
		rec.Response,
		rec.StatusCode,
		rec.ErrorMessage,
		rec.EntityType,
		rec.EntityID,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// ListBySubscriber returns the newest delivery attempts first. A future
// re-delivery job consumes this together with the subscriber's URL and
// secret.
func (s *DeliveryStore) ListBySubscriber(ctx context.Context, subscriberID string, limit int) ([]domain.DeliveryRecord, error) {
	query := `
		SELECT id, subscriber_id, event, payload, response, status_code,
		       error_message, entity_type, entity_id, created_at
		FROM delivery_records
		WHERE subscriber_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	var records []domain.DeliveryRecord
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &records, query, subscriberID, limit)
	return records, err
}
