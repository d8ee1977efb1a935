package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ledgerkeep/ledger-sync/internal/config"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/models"
)

type httpRemoteAdapter struct {
	client *resty.Client
	wsURL  string
	logger *logger.Logger

	mu    sync.RWMutex
	token string
}

func NewHTTPRemoteAdapter(cfg config.ClientRemote, log *logger.Logger) RemoteAdapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8080"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	cli := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.RequestTimeout)

	return &httpRemoteAdapter{
		client: cli,
		wsURL:  websocketURL(baseURL),
		logger: log,
	}
}

// websocketURL derives the subscription endpoint from the HTTP base URL.
func websocketURL(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimPrefix(baseURL, "https://") + "/api/subscribe"
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimPrefix(baseURL, "http://") + "/api/subscribe"
	default:
		return baseURL + "/api/subscribe"
	}
}

func (h *httpRemoteAdapter) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

func (h *httpRemoteAdapter) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

func (h *httpRemoteAdapter) Query(ctx context.Context, collection models.Collection, filter Filter) ([]json.RawMessage, error) {
	if filter == nil {
		filter = Filter{}
	}

	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(filter).
		Post(fmt.Sprintf("/api/collections/%s/query", collection))
	if err != nil {
		return nil, fmt.Errorf("query %s request: %w", collection, err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	var records []json.RawMessage
	if err = json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, fmt.Errorf("decode query %s response: %w", collection, err)
	}

	return records, nil
}

func (h *httpRemoteAdapter) Insert(ctx context.Context, collection models.Collection, records []json.RawMessage) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(records).
		Post(fmt.Sprintf("/api/collections/%s", collection))
	if err != nil {
		return fmt.Errorf("insert %s request: %w", collection, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteAdapter) Update(ctx context.Context, collection models.Collection, id string, patch json.RawMessage) error {
	resp, err := h.authedRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(patch).
		Patch(fmt.Sprintf("/api/collections/%s/%s", collection, id))
	if err != nil {
		return fmt.Errorf("update %s/%s request: %w", collection, id, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteAdapter) Delete(ctx context.Context, collection models.Collection, id string) error {
	resp, err := h.authedRequest(ctx).
		Delete(fmt.Sprintf("/api/collections/%s/%s", collection, id))
	if err != nil {
		return fmt.Errorf("delete %s/%s request: %w", collection, id, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteAdapter) SignIn(ctx context.Context, login, password string) (*models.Identity, error) {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"login": login, "password": password}).
		Post("/api/session/signin")
	if err != nil {
		return nil, fmt.Errorf("sign-in request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	identity, err := decodeIdentity(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("sign-in decode identity: %w", err)
	}

	h.SetToken(identity.Token)
	return identity, nil
}

func (h *httpRemoteAdapter) GetSession(ctx context.Context) (*models.Identity, error) {
	resp, err := h.authedRequest(ctx).Get("/api/session")
	if err != nil {
		return nil, fmt.Errorf("get session request: %w", err)
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	return decodeIdentity(resp.Body())
}

func (h *httpRemoteAdapter) RefreshSession(ctx context.Context) (*models.Identity, error) {
	resp, err := h.authedRequest(ctx).Post("/api/session/refresh")
	if err != nil {
		return nil, fmt.Errorf("refresh session request: %w", err)
	}
	if err = mapHTTPError(resp); err != nil {
		return nil, err
	}

	identity, err := decodeIdentity(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("refresh decode identity: %w", err)
	}

	h.SetToken(identity.Token)
	return identity, nil
}

func (h *httpRemoteAdapter) SignOut(ctx context.Context) error {
	resp, err := h.authedRequest(ctx).Post("/api/session/signout")
	if err != nil {
		return fmt.Errorf("sign-out request: %w", err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteAdapter) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return mapHTTPError(resp)
}

func (h *httpRemoteAdapter) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}

func decodeIdentity(body []byte) (*models.Identity, error) {
	var identity models.Identity
	if err := json.Unmarshal(body, &identity); err != nil {
		return nil, fmt.Errorf("decode identity response: %w", err)
	}
	return &identity, nil
}

func mapHTTPError(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= http.StatusOK && code < http.StatusMultipleChoices {
		return nil
	}

	body := strings.TrimSpace(string(resp.Body()))
	if body == "" {
		body = http.StatusText(code)
	}

	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, body)
	case code == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, body)
	case code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, code, body)
	default:
		return fmt.Errorf("http %d: %s", code, body)
	}
}
