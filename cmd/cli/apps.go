package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"vrstore/internal/catalog"
	"vrstore/internal/scraper"
	"vrstore/pkg/models"
)

var (
	listCategory string
	listQuery    string
	listLimit    int
	listOffset   int
	exportOut    string
	platform     string
)

type appPage struct {
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
	Items  []models.App `json:"items"`
}

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Browse the catalog",
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List catalog apps",
	RunE: func(cmd *cobra.Command, args []string) error {
		page, err := fetchPage(cmd.Context(), newClient(""), listCategory, listQuery, listLimit, listOffset)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(page)
		}
		t := newTable()
		t.AppendHeader(table.Row{"ID", "Title", "Developer", "Category", "Rating", "Size", "Downloads"})
		for _, a := range page.Items {
			t.AppendRow(table.Row{
				a.ID,
				text.Trim(a.Title, 40),
				a.Developer,
				a.Category,
				formatRating(a.Rating),
				formatSize(a.FileSize),
				a.Downloads,
			})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d-%d of %d", page.Offset+min(1, len(page.Items)), page.Offset+len(page.Items), page.Total)})
		t.Render()
		return nil
	},
}

var appsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one app",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var app models.App
		if err := newClient("").do(cmd.Context(), http.MethodGet, "/apps/"+url.PathEscape(args[0]), nil, nil, &app); err != nil {
			return err
		}
		if asJSON {
			return printJSON(app)
		}
		renderApp(app)
		return nil
	},
}

var appsDownloadCmd = &cobra.Command{
	Use:   "download <id>",
	Short: "Record a download and print the download URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var out struct {
			DownloadURL string `json:"downloadUrl"`
			Downloads   int64  `json:"downloads"`
		}
		body := map[string]string{"platform": platform}
		if err := newClient("").do(cmd.Context(), http.MethodPost, "/apps/"+url.PathEscape(args[0])+"/download", nil, body, &out); err != nil {
			return err
		}
		fmt.Printf("%s\n(downloads: %d)\n", out.DownloadURL, out.Downloads)
		return nil
	},
}

var appsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the catalog as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		apps, err := fetchAll(cmd.Context(), newClient(""), listCategory)
		if err != nil {
			return err
		}
		var w io.Writer = os.Stdout
		if exportOut != "" && exportOut != "-" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			w = f
		}
		if err := catalog.WriteCSV(w, apps); err != nil {
			return err
		}
		if w != os.Stdout {
			fmt.Fprintf(os.Stderr, "exported %d apps to %s\n", len(apps), exportOut)
		}
		return nil
	},
}

func fetchPage(ctx context.Context, c *apiClient, category, q string, limit, offset int) (appPage, error) {
	query := url.Values{}
	if category != "" {
		query.Set("category", category)
	}
	if q != "" {
		query.Set("q", q)
	}
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	var page appPage
	err := c.do(ctx, http.MethodGet, "/apps", query, nil, &page)
	return page, err
}

func fetchAll(ctx context.Context, c *apiClient, category string) ([]models.App, error) {
	var out []models.App
	for offset := 0; ; {
		page, err := fetchPage(ctx, c, category, "", catalog.MaxLimit, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			return out, nil
		}
	}
}

func renderApp(a models.App) {
	t := newTable()
	t.SetTitle(a.Title)
	t.AppendRows([]table.Row{
		{"ID", a.ID},
		{"Developer", a.Developer},
		{"Package", a.PackageName},
		{"Category", a.Category},
		{"Version", a.Version},
		{"Rating", formatRating(a.Rating)},
		{"Size", formatSize(a.FileSize)},
		{"Downloads", a.Downloads},
		{"Screenshots", len(a.Screenshots)},
		{"Source", a.SourceURL},
		{"Updated", a.UpdatedAt.Local().Format(time.DateTime)},
		{"Summary", text.WrapSoft(a.ShortDescription, 70)},
	})
	t.Render()
}

func formatRating(r float64) string {
	if r == 0 {
		return "-"
	}
	return strconv.FormatFloat(r, 'f', 1, 64)
}

func formatSize(n int64) string {
	if n == 0 {
		return "-"
	}
	return scraper.FormatFileSize(n)
}

func init() {
	for _, c := range []*cobra.Command{appsListCmd, appsExportCmd} {
		c.Flags().StringVarP(&listCategory, "category", "c", "", "filter by category")
	}
	appsListCmd.Flags().StringVarP(&listQuery, "query", "q", "", "search title and developer")
	appsListCmd.Flags().IntVar(&listLimit, "limit", catalog.DefaultLimit, "page size")
	appsListCmd.Flags().IntVar(&listOffset, "offset", 0, "page offset")
	appsDownloadCmd.Flags().StringVar(&platform, "platform", "cli", "client platform reported with the download")
	appsExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")

	appsCmd.AddCommand(appsListCmd, appsShowCmd, appsDownloadCmd, appsExportCmd)
	rootCmd.AddCommand(appsCmd)
}
