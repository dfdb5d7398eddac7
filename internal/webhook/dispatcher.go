package webhook

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"content_syncer/internal/domain"
	"content_syncer/internal/signature"
)

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks

const (
	headerSignature = "X-Webhook-Signature"
	headerEvent     = "X-Webhook-Event"

	maxResponseBytes = 64 * 1024
)

type SubscriberStore interface {
	Create(ctx context.Context, sub *domain.Subscriber) error
	ListActiveForSite(ctx context.Context, siteID int64) ([]domain.Subscriber, error)
}

type DeliveryStore interface {
	Record(ctx context.Context, rec *domain.DeliveryRecord) (int64, error)
}

type Config struct {
	Timeout time.Duration
}

// Dispatcher fans a domain event out to every matching subscriber and
// records each attempt in the delivery ledger. Delivery failures never
// propagate to the caller: webhook delivery must not block the write path
// that triggered it.
type Dispatcher struct {
	subscribers SubscriberStore
	deliveries  DeliveryStore
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewDispatcher(subscribers SubscriberStore, deliveries DeliveryStore, cfg Config, logger *slog.Logger) *Dispatcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		subscribers: subscribers,
		deliveries:  deliveries,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With("component", "webhook_dispatcher"),
	}
}

// Payload is the body subscribers receive. The same struct is signed and
// sent, so the signature always covers the exact bytes on the wire.
type Payload struct {
	Event     string         `json:"event"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// Dispatch notifies every active subscriber of the entity's site whose event
// set contains the event. Each delivery is independent; a failing endpoint
// does not affect the others, and exactly one ledger row is written per
// attempt regardless of outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, event string, entity Deliverable) {
	subs, err := d.subscribers.ListActiveForSite(ctx, entity.WebhookSiteID())
	if err != nil {
		d.logger.Error("resolve subscribers failed",
			"event", event,
			"site_id", entity.WebhookSiteID(),
			"error", err,
		)
		return
	}

	payload := Payload{
		Event:     event,
		Data:      entity.WebhookData(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for i := range subs {
		sub := &subs[i]
		if !sub.Subscribed(event) {
			continue
		}
		d.deliver(ctx, event, entity, sub, payload)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event string, entity Deliverable, sub *domain.Subscriber, payload Payload) {
	body, err := json.Marshal(payload)
	if err != nil {
		// Marshal of map[string]any with scalar values cannot realistically
		// fail; record it rather than drop the attempt silently.
		d.record(ctx, event, entity, sub, nil, nil, nil, err)
		return
	}

	sig := signature.Sign(sub.Secret, payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		d.record(ctx, event, entity, sub, body, nil, nil, err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerSignature, sig)
	req.Header.Set(headerEvent, event)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		d.logger.Warn("webhook delivery failed",
			"subscriber_id", sub.ID,
			"event", event,
			"error", err,
		)
		d.record(ctx, event, entity, sub, body, nil, nil, err)
		return
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	status := resp.StatusCode

	d.logger.Debug("webhook delivered",
		"subscriber_id", sub.ID,
		"event", event,
		"status", status,
	)
	d.record(ctx, event, entity, sub, body, respBody, &status, nil)
}

func (d *Dispatcher) record(ctx context.Context, event string, entity Deliverable, sub *domain.Subscriber, payload, respBody []byte, status *int, deliveryErr error) {
	rec := &domain.DeliveryRecord{
		SubscriberID: sub.ID,
		Event:        event,
		Payload:      payload,
		StatusCode:   status,
		EntityType:   entity.WebhookEntityType(),
		EntityID:     entity.WebhookEntityID(),
	}

	if len(respBody) > 0 {
		if json.Valid(respBody) {
			rec.Response = respBody
		} else {
			wrapped, _ := json.Marshal(map[string]string{"raw": string(respBody)})
			rec.Response = wrapped
		}
	}

	if deliveryErr != nil {
		msg := deliveryErr.Error()
		rec.ErrorMessage = &msg
	}

	if _, err := d.deliveries.Record(ctx, rec); err != nil {
		d.logger.Error("delivery ledger write failed",
			"subscriber_id", sub.ID,
			"event", event,
			"error", err,
		)
	}
}

// CreateSubscriber registers an endpoint and issues its signing secret. The
// plaintext secret appears only in the returned struct; callers show it once
// and must not log it.
func (d *Dispatcher) CreateSubscriber(ctx context.Context, siteID int64, url string, events []string, description *string) (*domain.Subscriber, error) {
	secret, err := generateSecret()
	if err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	sub := &domain.Subscriber{
		ID:          uuid.NewString(),
		SiteID:      siteID,
		URL:         url,
		Secret:      secret,
		Events:      events,
		Active:      true,
		Description: description,
	}

	if err := d.subscribers.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subscriber: %w", err)
	}
	return sub, nil
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "whsec_" + hex.EncodeToString(buf), nil
}
