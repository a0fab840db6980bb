// internal/api/webhook.go
//
// POST /api/webhook – content-change notification from NocoDB.
//
// Workflow
// --------
//  1. Check X-Webhook-Secret against the configured secret (constant time).
//  2. Decode {"table": …, "directory": …}.  table may be a NocoDB table id
//     or a logical name (directories, listings, landing_pages).
//  3. Drop that table's cache entries, optionally scoped to one directory.
//  4. Fire the rebuild dispatch.  A dispatch failure is reported (502) but
//     the invalidation stands.

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/metrics"
	"github.com/yanizio/dirsite/internal/webhook"
)

const maxWebhookBody = 1 << 20

type webhookRequest struct {
	Table     string `json:"table"`
	Directory string `json:"directory"`
}

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := webhook.CheckSecret(a.secret, r.Header.Get(webhook.SecretHeader)); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("", "unauthorized").Inc()
		fail(w, http.StatusUnauthorized, "invalid webhook secret", err)
		return
	}

	var req webhookRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxWebhookBody))
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		metrics.WebhookEventsTotal.WithLabelValues("", "bad_request").Inc()
		fail(w, http.StatusBadRequest, "malformed webhook body", err)
		return
	}
	req.Table = strings.TrimSpace(req.Table)
	if req.Table == "" {
		metrics.WebhookEventsTotal.WithLabelValues("", "bad_request").Inc()
		fail(w, http.StatusBadRequest, "missing table", nil)
		return
	}

	table, known := a.store.Tables().Resolve(req.Table)
	if !known {
		zap.S().Warnw("webhook for unconfigured table", "table", req.Table)
		table = req.Table
	}
	cleared := a.store.InvalidateTable(table, req.Directory)

	payload := webhook.Payload{Table: table, Directory: req.Directory, Cleared: cleared}
	if a.hook != nil {
		if err := a.hook.Dispatch(r.Context(), payload); err != nil {
			zap.S().Errorw("rebuild dispatch failed", "table", table, "err", err)
			metrics.WebhookEventsTotal.WithLabelValues(table, "dispatch_error").Inc()
			writeJSON(w, http.StatusBadGateway, envelope{
				Data:    payload,
				Message: "cache invalidated, rebuild dispatch failed",
				Error:   err.Error(),
			})
			return
		}
	}

	metrics.WebhookEventsTotal.WithLabelValues(table, "ok").Inc()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: payload, Message: "cache invalidated"})
}
