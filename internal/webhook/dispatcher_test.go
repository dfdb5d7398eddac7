package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"content_syncer/internal/domain"
	"content_syncer/internal/signature"
)

type fakeSubscriberStore struct {
	subs    []domain.Subscriber
	created []*domain.Subscriber
}

func (f *fakeSubscriberStore) Create(_ context.Context, sub *domain.Subscriber) error {
	f.created = append(f.created, sub)
	return nil
}

func (f *fakeSubscriberStore) ListActiveForSite(_ context.Context, _ int64) ([]domain.Subscriber, error) {
	return f.subs, nil
}

type fakeDeliveryStore struct {
	mu      sync.Mutex
	records []*domain.DeliveryRecord
}

func (f *fakeDeliveryStore) Record(_ context.Context, rec *domain.DeliveryRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return int64(len(f.records)), nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testArticle() *domain.Article {
	extID := "ext-42"
	return &domain.Article{
		ID:         42,
		SiteID:     1,
		ExternalID: &extID,
		Title:      "hello",
		Slug:       "hello",
		Content:    "body",
		Status:     "published",
		Source:     domain.SourceSaasSync,
		IsSynced:   true,
	}
}

type receivedRequest struct {
	body      []byte
	signature string
	event     string
}

func captureServer(t *testing.T, status int, respBody string, got *receivedRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		got.body = body
		got.signature = r.Header.Get("X-Webhook-Signature")
		got.event = r.Header.Get("X-Webhook-Event")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
}

func TestDispatch_FanOutToMatchingSubscribers(t *testing.T) {
	var first, second receivedRequest
	srvA := captureServer(t, http.StatusOK, `{"received":true}`, &first)
	defer srvA.Close()
	srvB := captureServer(t, http.StatusOK, `{"received":true}`, &second)
	defer srvB.Close()

	subs := &fakeSubscriberStore{subs: []domain.Subscriber{
		{ID: "sub-a", SiteID: 1, URL: srvA.URL, Secret: "whsec_aaa", Events: []string{"article.created"}, Active: true},
		{ID: "sub-b", SiteID: 1, URL: srvB.URL, Secret: "whsec_bbb", Events: []string{"article.created", "article.updated"}, Active: true},
	}}
	ledger := &fakeDeliveryStore{}

	d := NewDispatcher(subs, ledger, Config{}, testLogger())
	d.Dispatch(context.Background(), "article.created", ArticleEvent{Article: testArticle()})

	require.NotEmpty(t, first.body)
	require.NotEmpty(t, second.body)
	require.Equal(t, "article.created", first.event)

	// The signature covers the exact payload on the wire, per subscriber
	// secret.
	var payload Payload
	require.NoError(t, json.Unmarshal(first.body, &payload))
	require.Equal(t, "article.created", payload.Event)
	require.Equal(t, "hello", payload.Data["title"])
	require.True(t, signature.Verify("whsec_aaa", payload, first.signature))
	require.False(t, signature.Verify("whsec_bbb", payload, first.signature))

	require.Len(t, ledger.records, 2)
	for _, rec := range ledger.records {
		require.Equal(t, "article.created", rec.Event)
		require.Equal(t, "article", rec.EntityType)
		require.Equal(t, "42", rec.EntityID)
		require.NotNil(t, rec.StatusCode)
		require.Equal(t, http.StatusOK, *rec.StatusCode)
		require.Nil(t, rec.ErrorMessage)
		require.JSONEq(t, `{"received":true}`, string(rec.Response))
	}
}

func TestDispatch_SkipsNonSubscribedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("endpoint must not be called")
	}))
	defer srv.Close()

	subs := &fakeSubscriberStore{subs: []domain.Subscriber{
		{ID: "sub-a", SiteID: 1, URL: srv.URL, Secret: "s", Events: []string{"article.deleted"}, Active: true},
	}}
	ledger := &fakeDeliveryStore{}

	d := NewDispatcher(subs, ledger, Config{}, testLogger())
	d.Dispatch(context.Background(), "article.created", ArticleEvent{Article: testArticle()})

	require.Empty(t, ledger.records)
}

func TestDispatch_RecordsFailureStatus(t *testing.T) {
	var got receivedRequest
	srv := captureServer(t, http.StatusInternalServerError, `{"error":"boom"}`, &got)
	defer srv.Close()

	subs := &fakeSubscriberStore{subs: []domain.Subscriber{
		{ID: "sub-a", SiteID: 1, URL: srv.URL, Secret: "s", Events: []string{"article.updated"}, Active: true},
	}}
	ledger := &fakeDeliveryStore{}

	d := NewDispatcher(subs, ledger, Config{}, testLogger())
	d.Dispatch(context.Background(), "article.updated", ArticleEvent{Article: testArticle()})

	require.Len(t, ledger.records, 1)
	rec := ledger.records[0]
	require.NotNil(t, rec.StatusCode)
	require.Equal(t, http.StatusInternalServerError, *rec.StatusCode)
	require.JSONEq(t, `{"error":"boom"}`, string(rec.Response))
	require.Nil(t, rec.ErrorMessage)
}

func TestDispatch_RecordsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // unreachable endpoint

	subs := &fakeSubscriberStore{subs: []domain.Subscriber{
		{ID: "sub-a", SiteID: 1, URL: srv.URL, Secret: "s", Events: []string{"article.created"}, Active: true},
	}}
	ledger := &fakeDeliveryStore{}

	d := NewDispatcher(subs, ledger, Config{}, testLogger())
	d.Dispatch(context.Background(), "article.created", ArticleEvent{Article: testArticle()})

	require.Len(t, ledger.records, 1)
	rec := ledger.records[0]
	require.Nil(t, rec.StatusCode)
	require.NotNil(t, rec.ErrorMessage)
	require.NotEmpty(t, rec.Payload)
}

func TestDispatch_WrapsNonJSONResponse(t *testing.T) {
	var got receivedRequest
	srv := captureServer(t, http.StatusOK, "ok", &got)
	defer srv.Close()

	subs := &fakeSubscriberStore{subs: []domain.Subscriber{
		{ID: "sub-a", SiteID: 1, URL: srv.URL, Secret: "s", Events: []string{"article.created"}, Active: true},
	}}
	ledger := &fakeDeliveryStore{}

	d := NewDispatcher(subs, ledger, Config{}, testLogger())
	d.Dispatch(context.Background(), "article.created", ArticleEvent{Article: testArticle()})

	require.Len(t, ledger.records, 1)
	require.JSONEq(t, `{"raw":"ok"}`, string(ledger.records[0].Response))
}

func TestCreateSubscriber_IssuesSecret(t *testing.T) {
	subs := &fakeSubscriberStore{}
	d := NewDispatcher(subs, &fakeDeliveryStore{}, Config{}, testLogger())

	desc := "staging endpoint"
	sub, err := d.CreateSubscriber(context.Background(), 1, "https://example.com/hook", []string{"article.created"}, &desc)

	require.NoError(t, err)
	require.Len(t, subs.created, 1)

	_, err = uuid.Parse(sub.ID)
	require.NoError(t, err)

	require.True(t, sub.Active)
	require.Regexp(t, `^whsec_[0-9a-f]{64}$`, sub.Secret)

	other, err := d.CreateSubscriber(context.Background(), 1, "https://example.com/hook2", nil, nil)
	require.NoError(t, err)
	require.NotEqual(t, sub.Secret, other.Secret)
}
