// Package catalog provides a paginated client for the Jikan anime catalog API.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/catalog-watcher/internal/httpclient"
	"github.com/stacklok/catalog-watcher/internal/syncerr"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks -source=client.go Client

const (
	// DefaultBaseURL is the public Jikan v4 endpoint
	DefaultBaseURL = "https://api.jikan.moe/v4"

	// DefaultGenreID is the genre filter applied to every query
	DefaultGenreID = 26

	// DefaultPageSize is the default number of items requested per page
	DefaultPageSize = 10

	// MaxPageSize is the largest page size the API accepts
	MaxPageSize = 25

	// DefaultMaxAttempts is the number of attempts made for a page before a transient failure surfaces
	DefaultMaxAttempts = 3

	maxRetryAfter = 30 * time.Second
)

// Client fetches pages of catalog items
type Client interface {
	// FetchPage fetches a single page, starting at 1.
	// A page past the end of the catalog yields a KindNotFound error. A body that
	// cannot be decoded yields an empty page together with a KindMalformed error.
	FetchPage(ctx context.Context, page int) (*Page, error)

	// FetchAllPages fetches pages starting at 1 until there is no next page,
	// maxPages is reached or a fetch fails. Items of pages fetched before a
	// failure are always returned; the error is non-nil only for transient failures.
	FetchAllPages(ctx context.Context, maxPages int) ([]Item, error)

	// Search fetches a single page of items whose title matches query
	Search(ctx context.Context, query string, page int) (*Page, error)
}

// jikanClient is the Client implementation backed by the Jikan REST API
type jikanClient struct {
	httpClient  httpclient.Client
	baseURL     string
	genreID     int
	pageSize    int
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

// Option configures the catalog client
type Option func(*jikanClient)

// WithGenreID sets the genre filter
func WithGenreID(id int) Option {
	return func(c *jikanClient) {
		c.genreID = id
	}
}

// WithPageSize sets the page size. Values are clamped to 1..MaxPageSize.
func WithPageSize(size int) Option {
	return func(c *jikanClient) {
		c.pageSize = clampPageSize(size)
	}
}

// WithMaxAttempts sets how many times a page is attempted on transient failures
func WithMaxAttempts(n int) Option {
	return func(c *jikanClient) {
		if n < 1 {
			n = 1
		}
		c.maxAttempts = n
	}
}

// WithBackOff overrides the retry backoff policy
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(c *jikanClient) {
		c.newBackOff = fn
	}
}

// NewClient creates a catalog client for the API rooted at baseURL
func NewClient(httpClient httpclient.Client, baseURL string, opts ...Option) Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &jikanClient{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(baseURL, "/"),
		genreID:     DefaultGenreID,
		pageSize:    DefaultPageSize,
		maxAttempts: DefaultMaxAttempts,
		newBackOff:  defaultBackOff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	return b
}

func clampPageSize(size int) int {
	return min(max(1, size), MaxPageSize)
}

// FetchPage fetches one page of the genre listing
func (c *jikanClient) FetchPage(ctx context.Context, page int) (*Page, error) {
	page = max(1, page)
	return c.fetch(ctx, fmt.Sprintf("fetch page %d", page), c.buildURL(page, ""))
}

// Search fetches one page of the genre listing filtered by title
func (c *jikanClient) Search(ctx context.Context, query string, page int) (*Page, error) {
	page = max(1, page)
	return c.fetch(ctx, fmt.Sprintf("search %q page %d", query, page), c.buildURL(page, query))
}

// FetchAllPages accumulates items over consecutive pages
func (c *jikanClient) FetchAllPages(ctx context.Context, maxPages int) ([]Item, error) {
	maxPages = max(1, maxPages)
	var items []Item

	for page := 1; page <= maxPages; page++ {
		result, err := c.FetchPage(ctx, page)
		if err != nil {
			switch syncerr.KindOf(err) {
			case syncerr.KindNotFound:
				slog.Debug("Catalog exhausted", "page", page)
				return items, nil
			case syncerr.KindMalformed:
				slog.Warn("Discarding malformed catalog page", "page", page, "error", err)
				return items, nil
			default:
				slog.Error("Failed to fetch catalog page",
					"page", page,
					"items_kept", len(items),
					"error", err)
				return items, err
			}
		}

		items = append(items, result.Items...)
		if !result.HasNextPage {
			break
		}
	}

	return items, nil
}

func (c *jikanClient) buildURL(page int, query string) string {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	params.Set("genres", strconv.Itoa(c.genreID))
	params.Set("page", strconv.Itoa(page))
	params.Set("order_by", "score")
	params.Set("sort", "desc")
	params.Set("sfw", "false")
	params.Set("limit", strconv.Itoa(c.pageSize))
	return c.baseURL + "/anime?" + params.Encode()
}

// fetch performs the request with bounded retries on transient failures
func (c *jikanClient) fetch(ctx context.Context, op, reqURL string) (*Page, error) {
	var lastErr error
	page, err := backoff.Retry(ctx, func() (*Page, error) {
		p, err := c.fetchOnce(ctx, op, reqURL)
		if err == nil {
			return p, nil
		}
		lastErr = err

		var serr *syncerr.Error
		if !errors.As(err, &serr) || serr.Kind != syncerr.KindTransient {
			return p, backoff.Permanent(err)
		}
		if serr.RetryAfter > 0 {
			return nil, backoff.RetryAfter(int(serr.RetryAfter.Seconds()))
		}
		slog.Debug("Retrying catalog request", "op", op, "error", err)
		return nil, err
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(uint(c.maxAttempts)))

	if err == nil {
		return page, nil
	}
	// Prefer the classified error of the last attempt over backoff's own markers
	if lastErr != nil && ctx.Err() == nil {
		err = lastErr
	} else if syncerr.KindOf(err) == syncerr.KindUnknown {
		err = syncerr.Transient(op, 0, reqURL, "", err)
	}
	if syncerr.IsKind(err, syncerr.KindMalformed) {
		return &Page{}, err
	}
	return nil, err
}

// fetchOnce issues a single request and classifies the outcome
func (c *jikanClient) fetchOnce(ctx context.Context, op, reqURL string) (*Page, error) {
	resp, err := c.httpClient.Get(ctx, reqURL)
	if err != nil {
		return nil, syncerr.Transient(op, 0, reqURL, "", err)
	}

	if !resp.OK() {
		// The body of an error response usually carries a Jikan error envelope
		var errBody errorResponse
		if len(resp.Body) > 0 {
			if err := json.Unmarshal(resp.Body, &errBody); err != nil {
				slog.Debug("Failed to parse error response body", "op", op, "error", err)
			}
		}
		if resp.StatusCode == http.StatusNotFound {
			return nil, syncerr.NotFound(op, resp.StatusCode, reqURL, errBody.detail())
		}
		terr := syncerr.Transient(op, resp.StatusCode, reqURL, errBody.detail(), resp.Err())
		if resp.StatusCode == http.StatusTooManyRequests {
			terr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return nil, terr
	}

	if len(resp.Body) == 0 {
		return nil, syncerr.Malformed(op, reqURL, errors.New("empty response body"))
	}

	var body listResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, syncerr.Malformed(op, reqURL, err)
	}

	if len(body.Data) == 0 {
		return nil, syncerr.NotFound(op, resp.StatusCode, reqURL, "no data")
	}

	return &Page{
		Items:           body.Data,
		CurrentPage:     body.Pagination.CurrentPage,
		LastVisiblePage: body.Pagination.LastVisiblePage,
		HasNextPage:     body.Pagination.HasNextPage,
	}, nil
}

// parseRetryAfter reads a Retry-After header in seconds, capped at maxRetryAfter
func parseRetryAfter(value string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || secs <= 0 {
		return 0
	}
	return min(time.Duration(secs)*time.Second, maxRetryAfter)
}
