package saas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const articlesEndpoint = "/api/articles"

// ErrUnreachable wraps transport-level failures (DNS, connection refused,
// timeout). Callers classify on it; every other failure mode comes back as a
// FetchResult.
var ErrUnreachable = errors.New("remote source not reachable")

// Config holds gateway configuration. The API key is passed in here; the
// gateway never reads ambient state.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Gateway is the authenticated HTTP client for the SaaS article API.
type Gateway struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Gateway {
	return &Gateway{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:        cfg.BaseURL,
		apiKey:         cfg.APIKey,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		logger:         logger.With("component", "saas_gateway"),
	}
}

// Params are the query parameters of one page fetch. The server clamps
// per_page at 100; the gateway passes whatever it is given and tolerates the
// clamped response.
type Params struct {
	PerPage int
	Status  string
	Search  string
	Since   *time.Time
}

func (p Params) encode() string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(p.PerPage))
	if p.Status != "" {
		q.Set("status", p.Status)
	}
	if p.Search != "" {
		q.Set("search", p.Search)
	}
	if p.Since != nil {
		q.Set("since", p.Since.UTC().Format(time.RFC3339))
	}
	return q.Encode()
}

// FetchArticles fetches one page of articles. Transport failures are retried
// with exponential backoff and returned wrapped in ErrUnreachable once
// attempts are exhausted; HTTP-level failures are returned as a result with
// Success=false.
func (g *Gateway) FetchArticles(ctx context.Context, params Params) (*FetchResult, error) {
	reqURL := fmt.Sprintf("%s%s?%s", g.baseURL, articlesEndpoint, params.encode())

	var result *FetchResult
	var err error

	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		result, err = g.doRequest(ctx, reqURL)
		if err == nil {
			return result, nil
		}

		if attempt == g.maxAttempts {
			break
		}

		backoff := g.calculateBackoff(attempt)
		g.logger.Warn("request failed, retrying",
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("%w: after %d attempts: %v", ErrUnreachable, g.maxAttempts, err)
}

func (g *Gateway) doRequest(ctx context.Context, reqURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var apiResp apiResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp)

	result := &FetchResult{
		StatusCode: resp.StatusCode,
		Message:    apiResp.Message,
		Site:       apiResp.Site,
		Articles:   apiResp.Articles,
		Pagination: apiResp.Pagination,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Success = false
		if result.Message == "" {
			result.Message = fmt.Sprintf("unexpected status: %d", resp.StatusCode)
		}
		return result, nil
	}

	if decodeErr != nil {
		result.Success = false
		result.Message = fmt.Sprintf("decode response: %v", decodeErr)
		return result, nil
	}

	result.Success = apiResp.Success
	return result, nil
}

func (g *Gateway) calculateBackoff(attempt int) time.Duration {
	backoff := g.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	if backoff > g.maxBackoff {
		backoff = g.maxBackoff
	}
	return backoff
}
