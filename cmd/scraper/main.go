// Command scraper runs one scrape request without a server: a JSON request
// ({"url": ...}, {"urls": [...]} or {"url": ..., "html": ...}) is read from
// stdin, or built from -url, and the outcome is written to stdout as JSON.
// Function runtimes wrap it as their handler.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"vrstore/internal/scraper"
	"vrstore/pkg/utils"
)

type request struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
	HTML string   `json:"html"`
}

func main() {
	var (
		configPath = flag.String("config", "vrstore.json5", "config file (json5)")
		rawURL     = flag.String("url", "", "scrape this URL instead of reading a request from stdin")
		pretty     = flag.Bool("pretty", false, "indent the JSON output")
	)
	flag.Parse()

	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		log.Fatal("load config failed", "err", err)
	}
	// stdout carries the response; logs go to stderr
	logger := utils.NewLogger(cfg.LogLevel)

	req := request{URL: strings.TrimSpace(*rawURL)}
	if req.URL == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Fatal("read request failed", "err", err)
		}
		if err := json.Unmarshal(b, &req); err != nil {
			writeJSON(os.Stdout, map[string]any{"success": false, "error": "invalid json"}, *pretty)
			os.Exit(2)
		}
	}

	svc := scraper.NewService(scraper.NewHTTPFetcher(scraper.FetcherOptions{
		Timeout:   cfg.Scraper.Timeout(),
		UserAgent: cfg.Scraper.UserAgent,
		Logger:    logger,
	}), scraper.Options{
		Concurrency: cfg.Scraper.Concurrency,
		Interval:    cfg.Scraper.Interval(),
		Logger:      logger,
	})

	ctx := context.Background()
	switch {
	case len(req.URLs) > 0:
		writeJSON(os.Stdout, svc.ScrapeBatch(ctx, req.URLs), *pretty)
	case req.URL == "":
		writeJSON(os.Stdout, map[string]any{"success": false, "error": "url or urls is required"}, *pretty)
		os.Exit(2)
	case req.HTML != "":
		writeJSON(os.Stdout, svc.ScrapeHTML(ctx, req.URL, req.HTML), *pretty)
	default:
		out := svc.ScrapeURL(ctx, req.URL)
		writeJSON(os.Stdout, out, *pretty)
		if !out.Success {
			os.Exit(1)
		}
	}
}

func writeJSON(w io.Writer, v any, pretty bool) {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		log.Error("write response failed", "err", err)
	}
}
