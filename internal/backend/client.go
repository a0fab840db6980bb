// internal/backend/client.go
//
// Raw NocoDB REST client.
//
// Context
// -------
// NocoDB v2 exposes every table at
//
//	GET {base}/api/v2/tables/{tableID}/records?where=…&sort=…&limit=…&offset=…
//
// and answers `{"list": [...], "pageInfo": {"isLastPage": bool, …}}`.  The
// client pages through results until the last page and hands back the raw
// rows; decoding into typed records happens in service.go.
//
// Notes
// -----
//   - Auth is the static `xc-token` header.
//   - No retries and no backoff.  A failed call surfaces immediately, wrapped
//     with the table id, and callers decide on a fallback.
//   - Every request is counted in metrics.BackendRequestsTotal.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yanizio/dirsite/internal/metrics"
)

const (
	defaultPageSize = 100
	maxPages        = 1000
	maxBody         = 32 << 20
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("record not found")

// StatusError carries a non-2xx backend answer.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend status %d: %s", e.Code, e.Body)
}

// Query narrows a table read.  Limit > 0 fetches a single page of that size.
type Query struct {
	Where string
	Sort  string
	Limit int
}

// Client talks to one NocoDB base.  Safe for concurrent use.
type Client struct {
	base     string
	token    string
	http     *http.Client
	pageSize int
}

// ClientOption customises NewClient.
type ClientOption func(*Client)

// WithHTTPClient swaps the transport (tests, proxies).
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.http = h }
}

// WithPageSize overrides the page size used while paginating.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// NewClient returns a client for baseURL authenticated with token.
func NewClient(baseURL, token string, timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		token:    token,
		http:     &http.Client{Timeout: timeout},
		pageSize: defaultPageSize,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// RequestURL is the canonical first-page URL of a query.  It doubles as the
// request part of cache keys.
func (c *Client) RequestURL(table string, q Query) string {
	return c.pageURL(table, q, 0, c.limit(q))
}

func (c *Client) limit(q Query) int {
	if q.Limit > 0 {
		return q.Limit
	}
	return c.pageSize
}

func (c *Client) pageURL(table string, q Query, offset, limit int) string {
	v := url.Values{}
	if q.Where != "" {
		v.Set("where", q.Where)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	v.Set("limit", strconv.Itoa(limit))
	v.Set("offset", strconv.Itoa(offset))
	return c.base + "/api/v2/tables/" + url.PathEscape(table) + "/records?" + v.Encode()
}

type page struct {
	List     []json.RawMessage `json:"list"`
	PageInfo struct {
		IsLastPage bool `json:"isLastPage"`
		TotalRows  int  `json:"totalRows"`
	} `json:"pageInfo"`
}

// List returns every row matching q, following pagination.
func (c *Client) List(ctx context.Context, table string, q Query) ([]json.RawMessage, error) {
	limit := c.limit(q)
	var rows []json.RawMessage

	for offset, n := 0, 0; n < maxPages; n++ {
		p, err := c.fetch(ctx, table, c.pageURL(table, q, offset, limit))
		if err != nil {
			metrics.BackendRequestsTotal.WithLabelValues(table, "error").Inc()
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		metrics.BackendRequestsTotal.WithLabelValues(table, "ok").Inc()

		rows = append(rows, p.List...)
		if q.Limit > 0 || p.PageInfo.IsLastPage || len(p.List) < limit {
			break
		}
		offset += len(p.List)
	}

	zap.S().Debugw("backend list", "table", table, "rows", len(rows))
	return rows, nil
}

func (c *Client) fetch(ctx context.Context, table, u string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xc-token", c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	var p page
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode %s page: %w", table, err)
	}
	return &p, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
