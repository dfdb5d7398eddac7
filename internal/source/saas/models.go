package saas

import "strconv"

// apiResponse mirrors the SaaS platform's article listing endpoint.
type apiResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Site       *Site           `json:"site"`
	Articles   []RemoteArticle `json:"articles"`
	Pagination *Pagination     `json:"pagination"`
}

type Site struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type RemoteArticle struct {
	ID          int64    `json:"id"`
	ExternalID  string   `json:"external_id"`
	Title       string   `json:"title"`
	Slug        string   `json:"slug"`
	Content     string   `json:"content"`
	Excerpt     string   `json:"excerpt"`
	Status      string   `json:"status"`
	AuthorName  string   `json:"author_name"`
	Categories  []string `json:"categories"`
	PublishedAt string   `json:"published_at"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// ExternalIdentifier is the reconciliation key: the explicit external_id
// when present, otherwise the remote row id. Empty means the item cannot be
// reconciled and is rejected per-item.
func (a RemoteArticle) ExternalIdentifier() string {
	if a.ExternalID != "" {
		return a.ExternalID
	}
	if a.ID > 0 {
		return strconv.FormatInt(a.ID, 10)
	}
	return ""
}

type Pagination struct {
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
}

// FetchResult is the structured outcome of one page fetch. Non-2xx and
// success:false responses land here rather than in an error; only transport
// failures error out.
type FetchResult struct {
	Success    bool
	StatusCode int
	Message    string
	Site       *Site
	Articles   []RemoteArticle
	Pagination *Pagination
}
