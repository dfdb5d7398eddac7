package domain

import (
	"encoding/json"
	"time"
)

// Subscriber is an external endpoint registered to receive webhook
// notifications for a site. The secret is issued once at creation and is
// only ever returned in the creation response.
type Subscriber struct {
	ID          string    `db:"id"`
	SiteID      int64     `db:"site_id"`
	URL         string    `db:"url"`
	Secret      string    `db:"secret"`
	Events      []string  `db:"-"`
	Active      bool      `db:"active"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Subscribed reports whether the subscriber wants the given event.
func (s *Subscriber) Subscribed(event string) bool {
	for _, e := range s.Events {
		if e == event {
			return true
		}
	}
	return false
}

// DeliveryRecord is one row of the delivery ledger. Exactly one record is
// written per dispatch attempt, success or failure, and rows are never
// updated afterwards.
type DeliveryRecord struct {
	ID           int64           `db:"id"`
	SubscriberID string          `db:"subscriber_id"`
	Event        string          `db:"event"`
	Payload      json.RawMessage `db:"payload"`
	Response     json.RawMessage `db:"response"`
	StatusCode   *int            `db:"status_code"`
	ErrorMessage *string         `db:"error_message"`
	EntityType   string          `db:"entity_type"`
	EntityID     string          `db:"entity_id"`
	CreatedAt    time.Time       `db:"created_at"`
}
