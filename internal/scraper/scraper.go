package scraper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const DefaultConcurrency = 4

// ErrBatchCancelled marks URLs a batch never got to because its context ended.
var ErrBatchCancelled = errors.New("batch cancelled")

// Outcome is the result of scraping one URL. On failure only URL, Error and,
// for unsupported URLs, SupportedStores are set.
type Outcome struct {
	URL             string         `json:"url"`
	Success         bool           `json:"success"`
	Data            *ScrapedApp    `json:"data,omitempty"`
	Source          string         `json:"source,omitempty"`
	ScrapedAt       *time.Time     `json:"scrapedAt,omitempty"`
	MergeStrategy   *MergeStrategy `json:"mergeStrategy,omitempty"`
	Error           string         `json:"error,omitempty"`
	SupportedStores []StoreInfo    `json:"supportedStores,omitempty"`

	Err error `json:"-"`
}

// BatchResult holds one Outcome per input URL, in input order.
type BatchResult struct {
	Success      bool      `json:"success"`
	Results      []Outcome `json:"results"`
	SuccessCount int       `json:"successCount"`
	ErrorCount   int       `json:"errorCount"`
}

type Options struct {
	// Concurrency bounds simultaneous fetches in a batch; 1 is sequential.
	Concurrency int
	// Interval is the minimum gap between two fetch starts. Zero disables it.
	Interval time.Duration
	Policy   *Policy
	Router   *Router
	Logger   *log.Logger
}

// Service routes, fetches, extracts and classifies storefront pages. It never
// merges into the catalog; that is the Applier's job.
type Service struct {
	router      *Router
	fetcher     PageFetcher
	policy      Policy
	concurrency int
	limiter     *rate.Limiter
	logger      *log.Logger
}

func NewService(fetcher PageFetcher, opts Options) *Service {
	s := &Service{
		router:      opts.Router,
		fetcher:     fetcher,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if s.router == nil {
		s.router = NewRouter()
	}
	if opts.Policy != nil {
		s.policy = *opts.Policy
	} else {
		s.policy = DefaultPolicy()
	}
	if s.concurrency <= 0 {
		s.concurrency = DefaultConcurrency
	}
	if opts.Interval > 0 {
		s.limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

func (s *Service) Router() *Router { return s.router }

func (s *Service) Policy() Policy { return s.policy }

// ScrapeURL scrapes a single URL. Failures come back as an Outcome, never as a
// panic.
func (s *Service) ScrapeURL(ctx context.Context, raw string) Outcome {
	return s.scrape(ctx, raw, nil)
}

// ScrapeHTML runs extraction over html the caller already has, skipping the
// fetch. raw still selects the extractor and is recorded as the source URL.
func (s *Service) ScrapeHTML(ctx context.Context, raw, html string) Outcome {
	return s.scrape(ctx, raw, &html)
}

// ScrapeBatch scrapes urls with bounded concurrency. It always returns one
// result per URL in input order; a failing URL never stops the others. When
// ctx ends, URLs not yet started are reported as cancelled.
func (s *Service) ScrapeBatch(ctx context.Context, urls []string) BatchResult {
	results := make([]Outcome, len(urls))

	workers := s.concurrency
	if workers > len(urls) {
		workers = len(urls)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.scrape(ctx, urls[i], nil)
			}
		}()
	}

dispatch:
	for i := range urls {
		select {
		case <-ctx.Done():
			for j := i; j < len(urls); j++ {
				results[j] = failure(urls[j], ErrBatchCancelled)
			}
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	out := BatchResult{Success: true, Results: results}
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.ErrorCount++
		}
	}
	s.logger.Info("[scraper] batch done", "urls", len(urls), "ok", out.SuccessCount, "failed", out.ErrorCount)
	return out
}

func (s *Service) scrape(ctx context.Context, raw string, html *string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("[scraper] extractor panic", "url", raw, "panic", r)
			out = failure(raw, fmt.Errorf("extract: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return failure(raw, ErrBatchCancelled)
	}

	url, ex, err := s.router.Route(raw)
	if err != nil {
		return failure(raw, err)
	}

	var page string
	if html != nil {
		page = *html
	} else {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return failure(raw, ErrBatchCancelled)
			}
		}
		page, err = s.fetcher.Fetch(ctx, url)
		if err != nil {
			s.logger.Warn("[scraper] fetch failed", "url", url, "err", err)
			// keep going: the caller decides what a failed URL means
			return failure(raw, err)
		}
	}

	rec := ex.ExtractContext(ctx, page, url)
	conf := s.policy.Classify(rec)
	strategy := Recommend(conf)
	at := rec.ScrapedAt

	s.logger.Debug("[scraper] extracted", "url", url, "store", ex.ID, "fields", len(conf))
	return Outcome{
		URL:           url,
		Success:       true,
		Data:          rec,
		Source:        ex.Name,
		ScrapedAt:     &at,
		MergeStrategy: &strategy,
	}
}

func failure(raw string, err error) Outcome {
	o := Outcome{URL: raw, Error: err.Error(), Err: err}
	var unsupported *UnsupportedURLError
	if errors.As(err, &unsupported) {
		o.Error = "Unsupported store URL"
		o.SupportedStores = unsupported.Stores
	}
	return o
}
