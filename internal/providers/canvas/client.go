package canvas

import (
	"bytes"
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

	"canvas-load/internal/httpx"
)

const (
	contentTypeJSON = "application/json"
	acceptJSON      = contentTypeJSON
	defaultPerPage  = 100
)

// Client talks to the Canvas REST API on behalf of one user token.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Retry   httpx.RetryConfig
	PerPage int

	// resolved lazily by IsAccountAdmin
	adminChecked bool
	admin        bool
	accountID    int64
}

// New builds a client for a Canvas domain ("school.instructure.com" or a full URL).
func New(domain, token string) *Client {
	tr := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	retry := httpx.DefaultRetryConfig()
	retry.RetryIf = IsThrottled
	return &Client{
		BaseURL: normalizeBaseURL(domain),
		Token:   token,
		HTTP: &http.Client{
			Timeout:   2 * time.Minute,
			Transport: tr,
		},
		Retry:   retry,
		PerPage: defaultPerPage,
	}
}

func normalizeBaseURL(domain string) string {
	d := strings.TrimRight(strings.TrimSpace(domain), "/")
	if d == "" {
		return d
	}
	if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
		d = "https://" + d
	}
	return d
}

// Resource is a decoded Canvas JSON object. Only the fields needed for
// matching are read; the rest is passed through untouched.
type Resource map[string]any

func (r Resource) ID() int64 { return r.Int("id") }

func (r Resource) Int(key string) int64 {
	switch v := r[key].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return int64(f)
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func (r Resource) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Resources returns a nested array of objects (e.g. a course's enrollments).
func (r Resource) Resources(key string) []Resource {
	raw, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Resource, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Resource(m))
		}
	}
	return out
}

type pageFetcher func(ctx context.Context, pageURL string) ([]Resource, string, error)

// List is one or more loaded pages of a paginated listing.
type List struct {
	Items []Resource
	next  string
	fetch pageFetcher
}

// NewList builds an in-memory listing; every page after the first is only
// loaded by NextPage.
func NewList(pages ...[]Resource) *List {
	l := &List{}
	if len(pages) == 0 {
		return l
	}
	l.Items = append(l.Items, pages[0]...)
	if len(pages) == 1 {
		return l
	}
	l.next = "page:2"
	l.fetch = func(ctx context.Context, pageURL string) ([]Resource, string, error) {
		n, err := strconv.Atoi(strings.TrimPrefix(pageURL, "page:"))
		if err != nil || n < 1 || n > len(pages) {
			return nil, "", fmt.Errorf("canvas: unknown page %q", pageURL)
		}
		next := ""
		if n < len(pages) {
			next = fmt.Sprintf("page:%d", n+1)
		}
		return pages[n-1], next, nil
	}
	return l
}

func (l *List) Len() int { return len(l.Items) }

// More reports whether another page can be loaded.
func (l *List) More() bool { return l.next != "" && l.fetch != nil }

// NextPage loads the following page and appends it to Items.
func (l *List) NextPage(ctx context.Context) error {
	if !l.More() {
		return nil
	}
	items, next, err := l.fetch(ctx, l.next)
	if err != nil {
		return err
	}
	l.Items = append(l.Items, items...)
	l.next = next
	return nil
}

// Collect loads pages while more exist and fewer than limit items are held.
func (l *List) Collect(ctx context.Context, limit int) error {
	for l.More() && l.Len() < limit {
		if err := l.NextPage(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) Find(match func(Resource) bool) (Resource, bool) {
	for _, r := range l.Items {
		if match(r) {
			return r, true
		}
	}
	return nil, false
}

// Filter keeps only matching items. Pagination state is preserved.
func (l *List) Filter(keep func(Resource) bool) {
	out := l.Items[:0]
	for _, r := range l.Items {
		if keep(r) {
			out = append(out, r)
		}
	}
	l.Items = out
}

func (l *List) Append(r Resource) { l.Items = append(l.Items, r) }

func (c *Client) endpoint(path string, q url.Values) string {
	u := c.BaseURL + "/api/v1" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, payload any, out any) (*http.Response, error) {
	return c.doURL(ctx, method, c.endpoint(path, q), payload, out)
}

func (c *Client) doURL(ctx context.Context, method, rawURL string, payload any, out any) (*http.Response, error) {
	if c.Token == "" {
		return nil, errors.New("canvas: missing access token")
	}

	var b []byte
	if payload != nil {
		var err error
		b, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("canvas: encode payload: %w", err)
		}
	}

	resp, err := httpx.DoJSON(
		ctx,
		c.HTTP,
		func(ctx context.Context) (*http.Request, error) {
			var body io.Reader
			if b != nil {
				body = bytes.NewReader(b)
			}
			r, err := http.NewRequestWithContext(ctx, method, rawURL, body)
			if err != nil {
				return nil, err
			}
			if b != nil {
				r.Header.Set("Content-Type", contentTypeJSON)
			}
			r.Header.Set("Accept", acceptJSON)
			r.Header.Set("Authorization", "Bearer "+c.Token)
			return r, nil
		},
		out,
		c.Retry,
	)
	if err != nil {
		var herr *httpx.HTTPError
		if errors.As(err, &herr) {
			return resp, newAPIError(herr)
		}
		return resp, fmt.Errorf("canvas: %s %s: %w", method, rawURL, err)
	}
	return resp, nil
}

func (c *Client) getResource(ctx context.Context, path string, q url.Values) (Resource, error) {
	var out Resource
	if _, err := c.do(ctx, http.MethodGet, path, q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) send(ctx context.Context, method, path string, q url.Values, payload any) (Resource, error) {
	var out Resource
	if _, err := c.do(ctx, method, path, q, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getList(ctx context.Context, path string, q url.Values) (*List, error) {
	if q == nil {
		q = url.Values{}
	}
	perPage := c.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	q.Set("per_page", strconv.Itoa(perPage))

	items, next, err := c.fetchPage(ctx, c.endpoint(path, q))
	if err != nil {
		return nil, err
	}
	return &List{Items: items, next: next, fetch: c.fetchPage}, nil
}

func (c *Client) fetchPage(ctx context.Context, pageURL string) ([]Resource, string, error) {
	var items []Resource
	resp, err := c.doURL(ctx, http.MethodGet, pageURL, nil, &items)
	if err != nil {
		return nil, "", err
	}
	next := ""
	if resp != nil {
		next = httpx.NextLink(resp.Header)
	}
	return items, next, nil
}

func asUser(userID int64) url.Values {
	q := url.Values{}
	if userID > 0 {
		q.Set("as_user_id", strconv.FormatInt(userID, 10))
	}
	return q
}

func idPath(format string, ids ...int64) string {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return fmt.Sprintf(format, args...)
}
