// internal/webhook/dispatch.go
//
// Downstream rebuild trigger.
//
// Context
// -------
// A content change in NocoDB reaches /api/webhook.  After the API drops the
// affected cache entries it calls Dispatcher.Dispatch, which POSTs a
// repository-dispatch style event so CI rebuilds the site:
//
//	POST <dispatch_url>
//	Authorization: Bearer <dispatch_token>
//	{"event_type": "content-update", "client_payload": {...}}
//
// Notes
// -----
//   • A Dispatcher with no URL is disabled; Dispatch is then a no-op.
//   • Shared-secret checks live here too so the API and tests agree on them.

package webhook

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultEventType is sent when the config leaves event_type empty.
const DefaultEventType = "content-update"

// SecretHeader carries the shared secret on incoming webhooks.
const SecretHeader = "X-Webhook-Secret"

// ErrUnauthorized marks a webhook whose secret does not match.
var ErrUnauthorized = errors.New("webhook: unauthorized")

// Payload is the client_payload forwarded downstream.
type Payload struct {
	Table     string `json:"table"`
	Directory string `json:"directory,omitempty"`
	Cleared   int    `json:"cleared"`
}

type event struct {
	EventType     string  `json:"event_type"`
	ClientPayload Payload `json:"client_payload"`
}

// Dispatcher posts rebuild events.
type Dispatcher struct {
	URL       string
	Token     string
	EventType string
	HTTP      *http.Client
}

// Enabled reports whether a dispatch URL is configured.
func (d *Dispatcher) Enabled() bool { return d != nil && d.URL != "" }

// Dispatch sends one event.  Non-2xx answers are errors.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) error {
	if !d.Enabled() {
		zap.S().Debugw("rebuild dispatch disabled", "table", p.Table)
		return nil
	}
	kind := d.EventType
	if kind == "" {
		kind = DefaultEventType
	}
	body, err := json.Marshal(event{EventType: kind, ClientPayload: p})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	hc := d.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dispatch: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	zap.S().Infow("rebuild dispatched", "event", kind, "table", p.Table, "directory", p.Directory)
	return nil
}

// CheckSecret compares got against want in constant time.  An empty want
// rejects everything.
func CheckSecret(want, got string) error {
	if want == "" || subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
