package webhook

import (
	"strconv"

	"content_syncer/internal/domain"
)

// Deliverable is a domain object that can trigger webhook notifications.
// The (type, id) pair replaces a polymorphic relation: the ledger stores it
// as a tagged reference so a re-delivery job can look the object up again.
type Deliverable interface {
	WebhookEntityType() string
	WebhookEntityID() string
	WebhookSiteID() int64
	WebhookData() map[string]any
}

// ArticleEvent adapts an article for dispatch.
type ArticleEvent struct {
	Article *domain.Article
}

func (e ArticleEvent) WebhookEntityType() string { return "article" }

func (e ArticleEvent) WebhookEntityID() string {
	return strconv.FormatInt(e.Article.ID, 10)
}

func (e ArticleEvent) WebhookSiteID() int64 { return e.Article.SiteID }

func (e ArticleEvent) WebhookData() map[string]any {
	a := e.Article
	data := map[string]any{
		"id":        a.ID,
		"site_id":   a.SiteID,
		"title":     a.Title,
		"slug":      a.Slug,
		"content":   a.Content,
		"status":    a.Status,
		"source":    string(a.Source),
		"is_synced": a.IsSynced,
	}
	if a.ExternalID != nil {
		data["external_id"] = *a.ExternalID
	}
	if a.Excerpt != nil {
		data["excerpt"] = *a.Excerpt
	}
	if a.AuthorName != nil {
		data["author_name"] = *a.AuthorName
	}
	if a.PublishedAt != nil {
		data["published_at"] = a.PublishedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	if len(a.Categories) > 0 {
		names := make([]string, 0, len(a.Categories))
		for _, c := range a.Categories {
			names = append(names, c.Name)
		}
		data["categories"] = names
	}
	return data
}
