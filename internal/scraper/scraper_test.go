package scraper

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	errs  map[string]error
	delay time.Duration
	calls []string

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	if page, ok := f.pages[url]; ok {
		return page, nil
	}
	panic("unexpected url " + url)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard)
}

const (
	steamURL     = "https://store.steampowered.com/app/438100/VRChat/"
	sideQuestURL = "https://sidequestvr.com/app/1234/gorilla-tag-mods"
	metaURL      = "https://www.meta.com/experiences/beat-saber/2448060205267927/"
)

func TestScrapeURLSuccess(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{steamURL: steamPage}}
	svc := NewService(f, Options{Logger: quietLogger()})

	out := svc.ScrapeURL(context.Background(), "store.steampowered.com/app/438100/VRChat/")
	require.True(t, out.Success)
	require.Equal(t, "Steam", out.Source)
	require.Equal(t, steamURL, out.URL)
	require.NotNil(t, out.ScrapedAt)
	require.Equal(t, 4.6, out.Data.Rating.Value)
	require.Equal(t, TierHigh, out.MergeStrategy.Confidence[FieldTitle])
	require.Equal(t, DecisionOverwrite, out.MergeStrategy.Recommendations[FieldTitle])
	require.Equal(t, []string{steamURL}, f.calls)
}

func TestScrapeURLFailures(t *testing.T) {
	fetchErr := &FetchError{URL: sideQuestURL, Status: http.StatusNotFound}
	f := &fakeFetcher{errs: map[string]error{sideQuestURL: fetchErr}}
	svc := NewService(f, Options{Logger: quietLogger()})

	out := svc.ScrapeURL(context.Background(), "https://example.com/nothing")
	require.False(t, out.Success)
	require.Equal(t, "Unsupported store URL", out.Error)
	require.Len(t, out.SupportedStores, 3)
	require.Empty(t, f.calls)

	out = svc.ScrapeURL(context.Background(), sideQuestURL)
	require.False(t, out.Success)
	require.Nil(t, out.Data)
	var fe *FetchError
	require.True(t, errors.As(out.Err, &fe))
	require.Equal(t, http.StatusNotFound, fe.Status)
	require.Contains(t, out.Error, "404")
}

func TestScrapeURLRecoversFromPanic(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	svc := NewService(f, Options{Logger: quietLogger()})

	out := svc.ScrapeURL(context.Background(), metaURL)
	require.False(t, out.Success)
	require.Contains(t, out.Error, "unexpected url")
}

func TestScrapeBatchIsolatesFailuresAndKeepsOrder(t *testing.T) {
	f := &fakeFetcher{
		pages: map[string]string{
			steamURL: steamPage,
			metaURL:  `<html><body><h1>Beat Saber</h1></body></html>`,
		},
		errs: map[string]error{
			sideQuestURL: &FetchError{URL: sideQuestURL, Err: context.DeadlineExceeded},
		},
	}
	svc := NewService(f, Options{Concurrency: 3, Logger: quietLogger()})

	urls := []string{steamURL, "not a store", sideQuestURL, metaURL}
	res := svc.ScrapeBatch(context.Background(), urls)

	require.True(t, res.Success)
	require.Len(t, res.Results, len(urls))
	require.Equal(t, 2, res.SuccessCount)
	require.Equal(t, 2, res.ErrorCount)

	require.True(t, res.Results[0].Success)
	require.Equal(t, "VRChat", res.Results[0].Data.Title.Value)
	require.False(t, res.Results[1].Success)
	require.Equal(t, "not a store", res.Results[1].URL)
	require.Len(t, res.Results[1].SupportedStores, 3)
	require.False(t, res.Results[2].Success)
	require.True(t, res.Results[2].Err.(*FetchError).Timeout())
	require.True(t, res.Results[3].Success)
	require.Equal(t, "Beat Saber", res.Results[3].Data.Title.Value)
}

func TestScrapeBatchBoundsConcurrency(t *testing.T) {
	pages := map[string]string{}
	var urls []string
	for i := 0; i < 8; i++ {
		u := "https://store.steampowered.com/app/" + string(rune('1'+i)) + "/"
		pages[u] = steamPage
		urls = append(urls, u)
	}
	f := &fakeFetcher{pages: pages, delay: 20 * time.Millisecond}
	svc := NewService(f, Options{Concurrency: 2, Logger: quietLogger()})

	res := svc.ScrapeBatch(context.Background(), urls)
	require.Equal(t, 8, res.SuccessCount)
	require.LessOrEqual(t, f.maxSeen.Load(), int32(2))
	for i, r := range res.Results {
		require.Equal(t, urls[i], r.URL)
	}
}

func TestScrapeBatchCancelled(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{steamURL: steamPage}}
	svc := NewService(f, Options{Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	urls := []string{steamURL, steamURL, "https://example.com"}
	res := svc.ScrapeBatch(ctx, urls)
	require.Len(t, res.Results, 3)
	require.Equal(t, 0, res.SuccessCount)
	require.Equal(t, 3, res.ErrorCount)
	for _, r := range res.Results {
		require.ErrorIs(t, r.Err, ErrBatchCancelled)
	}
	require.Empty(t, f.calls)
}

func TestScrapeBatchEmpty(t *testing.T) {
	svc := NewService(&fakeFetcher{}, Options{Logger: quietLogger()})
	res := svc.ScrapeBatch(context.Background(), nil)
	require.True(t, res.Success)
	require.Empty(t, res.Results)
	require.Zero(t, res.SuccessCount+res.ErrorCount)
}

func TestScrapeHTMLSkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	svc := NewService(f, Options{Logger: quietLogger()})
	out := svc.ScrapeHTML(context.Background(), steamURL, steamPage)
	require.True(t, out.Success)
	require.Empty(t, f.calls)
}

func TestHTTPFetcher(t *testing.T) {
	var userAgent atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		userAgent.Store(r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html><h1>ok</h1></html>"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := NewHTTPFetcher(FetcherOptions{Timeout: 100 * time.Millisecond, Logger: quietLogger()})

	html, err := f.Fetch(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	require.Contains(t, html, "<h1>ok</h1>")
	require.Contains(t, userAgent.Load(), "vrstore")

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusNotFound, fe.Status)

	start := time.Now()
	_, err = f.Fetch(context.Background(), srv.URL+"/slow")
	require.True(t, errors.As(err, &fe))
	require.True(t, fe.Timeout())
	require.Less(t, time.Since(start), time.Second)

	_, err = f.Fetch(context.Background(), "http://127.0.0.1:1/refused")
	require.True(t, errors.As(err, &fe))
	require.Zero(t, fe.Status)
}
