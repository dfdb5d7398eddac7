package domain

import (
	"encoding/json"
	"time"
)

// ArticleSource identifies how an article entered local storage.
type ArticleSource string

const (
	SourceAuthored  ArticleSource = "authored"
	SourceWebhook   ArticleSource = "webhook"
	SourceSaasSync  ArticleSource = "saas_sync"
	SourceAITopic   ArticleSource = "ai_topic"
	SourceRecovered ArticleSource = "recovered"
)

type Article struct {
	ID                int64           `db:"id"`
	SiteID            int64           `db:"site_id"`
	ExternalID        *string         `db:"external_id"` // nil means locally authored
	Title             string          `db:"title"`
	Slug              string          `db:"slug"`
	Content           string          `db:"content"`
	Excerpt           *string         `db:"excerpt"`
	Status            string          `db:"status"`
	AuthorName        *string         `db:"author_name"`
	Source            ArticleSource   `db:"source"`
	IsSynced          bool            `db:"is_synced"`
	WebhookReceivedAt *time.Time      `db:"webhook_received_at"`
	WebhookSentAt     *time.Time      `db:"webhook_sent_at"`
	LastPayload       json.RawMessage `db:"last_payload"`
	PublishedAt       *time.Time      `db:"published_at"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`

	Categories []Category `db:"-"`
}

type Category struct {
	ID     int64  `db:"id"`
	SiteID int64  `db:"site_id"`
	Name   string `db:"name"`
}
