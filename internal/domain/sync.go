package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// SyncRun is one row of the sync cursor history. A row is inserted in pending
// state before a run starts and finalized with counters once it completes;
// the most recent row for a (source URL, credential hash) pair is the
// watermark for the next run.
type SyncRun struct {
	ID         int64           `db:"id"`
	SourceURL  string          `db:"source_url"`
	KeyHash    string          `db:"key_hash"`
	LastSyncAt time.Time       `db:"last_sync_at"`
	Fetched    int             `db:"fetched"`
	Created    int             `db:"created"`
	Updated    int             `db:"updated"`
	Params     json.RawMessage `db:"params"`
	Notes      *string         `db:"notes"`
	Success    bool            `db:"success"`
	CreatedAt  time.Time       `db:"created_at"`
}

// HashCredential returns the SHA-256 hex digest of an API key. Cursor rows
// store only this digest, never the raw key.
func HashCredential(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:])
}

// SyncDue reports whether a new sync run is due. A missing cursor always
// means due; a pending (unfinalized) cursor counts the same as a finished
// one, so a run killed mid-flight only delays the retry by the interval.
func SyncDue(last *SyncRun, interval time.Duration, now time.Time) bool {
	if last == nil {
		return true
	}
	return !now.Before(last.LastSyncAt.Add(interval))
}

// SyncStats holds the outcome of one sync run.
type SyncStats struct {
	SourceURL string
	Skipped   bool // due check declined the run; distinct from a zero-change run
	Fetched   int
	Created   int
	Updated   int
	Failed    int
	Duration  time.Duration
}

// CleanupResult holds the outcome of a retention sweep.
type CleanupResult struct {
	Candidates int
	Deleted    int
	DryRun     bool
	Articles   []DeletedArticle
}

// DeletedArticle is what the cleanup audit entry retains per deleted row,
// enough for a best-effort re-fetch from the remote source.
type DeletedArticle struct {
	ID         int64   `json:"id"`
	ExternalID *string `json:"external_id,omitempty"`
	Title      string  `json:"title"`
}
