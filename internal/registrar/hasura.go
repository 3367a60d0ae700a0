package registrar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"gql2sql/internal/schema"
)

const hasuraQueryPath = "/v1/query"

// HasuraConfig configures the Hasura metadata client.
type HasuraConfig struct {
	Endpoint    string // base URL, e.g. http://localhost:8080
	AdminSecret string
	Schema      string
	Timeout     time.Duration // per request
	MaxRetries  int
	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration
	Client         *http.Client
}

// APIError is a non-retryable answer from Hasura.
type APIError struct {
	Status int
	Code   string `json:"code"`
	Msg    string `json:"error"`
	Path   string `json:"path"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("hasura: HTTP %d: %s", e.Status, e.Msg)
	}
	return fmt.Sprintf("hasura: HTTP %d %s at %s: %s", e.Status, e.Code, e.Path, e.Msg)
}

// AlreadyExists reports whether Hasura rejected the call because the
// object is already tracked or defined.
func (e *APIError) AlreadyExists() bool {
	return e.Code == "already-tracked" || e.Code == "already-exists"
}

// Hasura registers relationships through the Hasura metadata query API.
type Hasura struct {
	cfg    HasuraConfig
	client *http.Client
	logger *slog.Logger
}

// NewHasura validates cfg, fills in defaults and returns a metadata API client.
func NewHasura(cfg HasuraConfig, logger *slog.Logger) (*Hasura, error) {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if cfg.Endpoint == "" {
		return nil, schema.NewConfigError("hasura.endpoint", nil, "endpoint is required")
	}
	if cfg.Schema == "" {
		cfg.Schema = "public"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hasura{cfg: cfg, client: client, logger: logger.With("registrar", FlavorHasura)}, nil
}

func (h *Hasura) Name() string { return FlavorHasura }

type hasuraQuery struct {
	Type string `json:"type"`
	Args any    `json:"args"`
}

type tableRef struct {
	Name   string `json:"name"`
	Schema string `json:"schema"`
}

// Prepare clears the metadata and tracks every table in one bulk call.
func (h *Hasura) Prepare(ctx context.Context, tables []string) error {
	if err := h.post(ctx, hasuraQuery{Type: "clear_metadata", Args: struct{}{}}); err != nil {
		return fmt.Errorf("clear metadata: %w", err)
	}
	if len(tables) == 0 {
		return nil
	}
	bulk := make([]hasuraQuery, 0, len(tables))
	for _, t := range tables {
		bulk = append(bulk, hasuraQuery{Type: "track_table", Args: tableRef{Name: t, Schema: h.cfg.Schema}})
	}
	if err := h.post(ctx, hasuraQuery{Type: "bulk", Args: bulk}); err != nil {
		return fmt.Errorf("track tables: %w", err)
	}
	return nil
}

// Register creates one object or array relationship.
func (h *Hasura) Register(ctx context.Context, reg Registration) error {
	q, err := h.query(reg)
	if err != nil {
		return err
	}
	err = h.post(ctx, q)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.AlreadyExists() {
		h.logger.Debug("relationship already defined", "key", reg.Key())
		return nil
	}
	return err
}

func (h *Hasura) query(reg Registration) (hasuraQuery, error) {
	args := map[string]any{
		"table": tableRef{Name: reg.OwnerTable, Schema: h.cfg.Schema},
		"name":  reg.Name,
	}
	switch reg.Kind {
	case Object:
		args["using"] = map[string]any{"foreign_key_constraint_on": reg.Column}
		return hasuraQuery{Type: "create_object_relationship", Args: args}, nil
	case Array:
		args["using"] = map[string]any{"foreign_key_constraint_on": map[string]any{
			"table":  tableRef{Name: reg.RemoteTable, Schema: h.cfg.Schema},
			"column": reg.Column,
		}}
		return hasuraQuery{Type: "create_array_relationship", Args: args}, nil
	}
	return hasuraQuery{}, fmt.Errorf("unknown registration kind %q", reg.Kind)
}

// post sends one query, retrying transport failures and 5xx answers with
// exponential backoff.
func (h *Hasura) post(ctx context.Context, q hasuraQuery) error {
	body, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode %s: %w", q.Type, err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = h.cfg.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(h.cfg.MaxRetries)), ctx)

	attempt := 0
	op := func() error {
		attempt++
		err := h.do(ctx, body)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		h.logger.Warn("hasura call failed, retrying", "type", q.Type, "attempt", attempt, "wait", wait, "error", err)
	}
	return backoff.RetryNotify(op, policy, notify)
}

func (h *Hasura) do(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.Endpoint+hasuraQueryPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hasura-Role", "admin")
	if h.cfg.AdminSecret != "" {
		req.Header.Set("X-Hasura-Admin-Secret", h.cfg.AdminSecret)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Msg == "" {
		apiErr.Msg = strings.TrimSpace(string(data))
	}
	return apiErr
}
