package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	DefaultFetchTimeout = 10 * time.Second
	defaultUserAgent    = "Mozilla/5.0 (compatible; vrstore-scraper/1.0)"
)

// FetchError is a transport failure fetching a storefront page: DNS, refused
// connection, timeout, or a non-2xx status.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Timeout reports whether the fetch gave up waiting.
func (e *FetchError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// PageFetcher downloads the HTML of a storefront page.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// PageCache stores raw HTML between fetches.
type PageCache interface {
	Get(ctx context.Context, url string) (string, bool)
	Put(ctx context.Context, url, html string) error
}

// HTTPFetcher fetches pages with a resty client, optionally through a PageCache.
type HTTPFetcher struct {
	client  *resty.Client
	timeout time.Duration
	cache   PageCache
	logger  *log.Logger
}

type FetcherOptions struct {
	Timeout   time.Duration
	UserAgent string
	Cache     PageCache
	Logger    *log.Logger
}

func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	// the per-request context carries the deadline
	client := resty.New()
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeader("Accept", "text/html,application/xhtml+xml")
	client.SetHeader("Accept-Language", "en-US,en;q=0.9")

	return &HTTPFetcher{
		client:  client,
		timeout: opts.Timeout,
		cache:   opts.Cache,
		logger:  opts.Logger,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	if f.cache != nil {
		if html, ok := f.cache.Get(ctx, url); ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return html, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	res, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ctx.Err(), err)
		}
		return "", &FetchError{URL: url, Err: err}
	}
	span.SetAttributes(attribute.Int("status", res.StatusCode()))
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, res.Status())
		return "", &FetchError{URL: url, Status: res.StatusCode()}
	}

	html := res.String()
	if f.cache != nil {
		if err := f.cache.Put(ctx, url, html); err != nil {
			f.logger.Warn("[scraper] cache put failed", "url", url, "err", err)
		}
	}
	return html, nil
}
