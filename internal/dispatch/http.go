package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clawinfra/outclaw/internal/outbox"
)

const defaultTokenTTL = 5 * time.Minute

// HTTPConfig configures the HTTP dispatcher.
type HTTPConfig struct {
	BaseURL  string
	DeviceID string
	// JWTSecret enables signed device tokens on every request; nil disables
	// the Authorization header entirely.
	JWTSecret []byte
	TokenTTL  time.Duration
	Timeout   time.Duration
}

// HTTPDispatcher delivers one queued operation as an HTTP request using a
// per-type route table. It makes exactly one attempt per call: the queue owns
// the retry and backoff policy, so layering another retry loop here would
// multiply attempts behind the queue's back.
type HTTPDispatcher struct {
	baseURL    string
	deviceID   string
	secret     []byte
	tokenTTL   time.Duration
	routes     map[outbox.OpType]Route
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTP creates an HTTP dispatcher over the given route table.
func NewHTTP(cfg HTTPConfig, routes map[outbox.OpType]Route, logger *slog.Logger) *HTTPDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &HTTPDispatcher{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		deviceID:   cfg.DeviceID,
		secret:     cfg.JWTSecret,
		tokenTTL:   cfg.TokenTTL,
		routes:     routes,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.With("component", "dispatch"),
	}
}

// Dispatch performs the remote call for op. Any non-2xx response is a
// failure; the queue decides whether and when to retry.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, op outbox.Operation) error {
	route, ok := d.routes[op.Type]
	if !ok {
		return fmt.Errorf("no route for operation type %q", op.Type)
	}

	url := d.baseURL + route.Path
	req, err := http.NewRequestWithContext(ctx, route.Method, url, bytes.NewReader(op.Payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", d.deviceID)
	req.Header.Set("X-Operation-ID", op.ID)

	if d.secret != nil {
		token, err := deviceToken(d.deviceID, d.secret, d.tokenTTL)
		if err != nil {
			return fmt.Errorf("sign device token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	d.logger.Debug("dispatching operation",
		"type", op.Type,
		"method", route.Method,
		"url", url)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
