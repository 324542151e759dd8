package main

import (
	"bufio"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"vrstore/internal/scraper"
	"vrstore/pkg/models"
)

var (
	urlsFile    string
	choices     []string
	dryRun      bool
	downloadURL string
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url...]",
	Short: "Scrape store pages and show what would be merged",
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if urlsFile != "" {
			more, err := readLines(urlsFile)
			if err != nil {
				return err
			}
			urls = append(urls, more...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no urls given")
		}

		c, err := authedClient()
		if err != nil {
			return err
		}
		var res scraper.BatchResult
		if err := c.do(cmd.Context(), http.MethodPost, "/admin/scrape", nil, map[string]any{"urls": urls}, &res); err != nil {
			return err
		}
		if asJSON {
			return printJSON(res)
		}

		t := newTable()
		t.AppendHeader(table.Row{"URL", "Store", "Title", "Review", "Error"})
		for _, o := range res.Results {
			row := table.Row{text.Trim(o.URL, 60), o.Source, "", "", o.Error}
			if o.Data != nil {
				row[2] = o.Data.Title.Value
			}
			if o.MergeStrategy != nil {
				row[3] = joinFields(o.MergeStrategy.Review)
			}
			t.AppendRow(row)
		}
		t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ok", res.SuccessCount), "", fmt.Sprintf("%d failed", res.ErrorCount)})
		t.Render()

		if len(res.Results) == 1 && res.Results[0].Data != nil {
			renderScrape(res.Results[0])
		}
		return nil
	},
}

var matchCmd = &cobra.Command{
	Use:   "match <url>",
	Short: "Rank catalog apps that a scraped page could be merged into",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		var out struct {
			Data       *scraper.ScrapedApp `json:"data"`
			Candidates []scraper.Candidate `json:"candidates"`
		}
		if err := c.do(cmd.Context(), http.MethodPost, "/admin/scrape/match", nil, map[string]string{"url": args[0]}, &out); err != nil {
			return err
		}
		if asJSON {
			return printJSON(out)
		}
		if len(out.Candidates) == 0 {
			fmt.Println("no matching apps, use `vrstore import` to create one")
			return nil
		}
		t := newTable()
		t.AppendHeader(table.Row{"ID", "Title", "Package", "Score", "Reason"})
		for _, cand := range out.Candidates {
			t.AppendRow(table.Row{cand.App.ID, cand.App.Title, cand.App.PackageName, fmt.Sprintf("%.2f", cand.Score), cand.Reason})
		}
		t.Render()
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <id> <url>",
	Short: "Merge a scraped page into an existing app",
	Long: "Merge a scraped page into an existing app. Recommended decisions apply\n" +
		"unless overridden with --choice field=overwrite|merge|keep|suggest.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		decisions, err := parseChoices(choices)
		if err != nil {
			return err
		}
		c, err := authedClient()
		if err != nil {
			return err
		}
		var out struct {
			Result scraper.MergeResult `json:"result"`
		}
		body := map[string]any{"url": args[1], "choices": decisions, "dryRun": dryRun}
		if err := c.do(cmd.Context(), http.MethodPost, "/admin/apps/"+url.PathEscape(args[0])+"/merge", nil, body, &out); err != nil {
			return err
		}
		if asJSON {
			return printJSON(out.Result)
		}
		renderMerge(out.Result)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <url>",
	Short: "Create a new catalog app from a scraped page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := authedClient()
		if err != nil {
			return err
		}
		var out struct {
			App models.App `json:"app"`
		}
		body := map[string]string{"url": args[0], "downloadUrl": downloadURL}
		if err := c.do(cmd.Context(), http.MethodPost, "/admin/apps/import", nil, body, &out); err != nil {
			return err
		}
		if asJSON {
			return printJSON(out.App)
		}
		renderApp(out.App)
		return nil
	},
}

func renderScrape(o scraper.Outcome) {
	t := newTable()
	t.SetTitle(o.Source + " " + o.Data.SourceURL)
	t.AppendHeader(table.Row{"Field", "Value", "Confidence", "Default"})
	for _, f := range scraper.Fields {
		if !o.Data.Has(f) {
			continue
		}
		row := table.Row{f, text.Trim(fieldValue(o.Data, f), 60), "", ""}
		if ms := o.MergeStrategy; ms != nil {
			row[2] = ms.Confidence[f]
			row[3] = ms.Recommendations[f]
		}
		t.AppendRow(row)
	}
	t.Render()
}

func renderMerge(res scraper.MergeResult) {
	t := newTable()
	title := "merged " + res.App.ID
	if res.DryRun {
		title = "dry run for " + res.App.ID
	}
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Field", "Decision", "Before", "After"})
	changed := make(map[scraper.Field]bool, len(res.Changed))
	for _, f := range res.Changed {
		changed[f] = true
	}
	for _, f := range scraper.Fields {
		d, ok := res.Decisions[f]
		if !ok {
			continue
		}
		before, after := appValue(res.Before, f), appValue(res.App, f)
		if !changed[f] {
			after = "(unchanged)"
		}
		t.AppendRow(table.Row{f, d, text.Trim(before, 40), text.Trim(after, 40)})
	}
	t.Render()
}

func fieldValue(s *scraper.ScrapedApp, f scraper.Field) string {
	switch f {
	case scraper.FieldTitle:
		return s.Title.Value
	case scraper.FieldDeveloper:
		return s.Developer.Value
	case scraper.FieldPackageNameGuess:
		return s.PackageNameGuess.Value
	case scraper.FieldDescription:
		return oneLine(s.Description.Value)
	case scraper.FieldShortDescription:
		return oneLine(s.ShortDescription.Value)
	case scraper.FieldCategory:
		return s.Category.Value
	case scraper.FieldVersion:
		return s.Version.Value
	case scraper.FieldIconURL:
		return s.IconURL.Value
	case scraper.FieldScreenshots:
		return fmt.Sprintf("%d images", len(s.Screenshots.Value))
	case scraper.FieldRating:
		return formatRating(s.Rating.Value)
	case scraper.FieldFileSize:
		return formatSize(s.FileSize.Value)
	}
	return ""
}

func appValue(a models.App, f scraper.Field) string {
	switch f {
	case scraper.FieldTitle:
		return a.Title
	case scraper.FieldDeveloper:
		return a.Developer
	case scraper.FieldPackageNameGuess:
		return a.PackageName
	case scraper.FieldDescription:
		return oneLine(a.Description)
	case scraper.FieldShortDescription:
		return oneLine(a.ShortDescription)
	case scraper.FieldCategory:
		return a.Category
	case scraper.FieldVersion:
		return a.Version
	case scraper.FieldIconURL:
		return a.IconURL
	case scraper.FieldScreenshots:
		return fmt.Sprintf("%d images", len(a.Screenshots))
	case scraper.FieldRating:
		return formatRating(a.Rating)
	case scraper.FieldFileSize:
		return formatSize(a.FileSize)
	}
	return ""
}

// parseChoices turns field=decision pairs into the merge request's choices.
func parseChoices(pairs []string) (map[scraper.Field]scraper.Decision, error) {
	known := make(map[scraper.Field]bool, len(scraper.Fields))
	for _, f := range scraper.Fields {
		known[f] = true
	}
	out := make(map[scraper.Field]scraper.Decision, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		f := scraper.Field(strings.TrimSpace(k))
		if !ok || !known[f] {
			return nil, fmt.Errorf("bad --choice %q, want field=decision", p)
		}
		d := scraper.Decision(strings.ToLower(strings.TrimSpace(v)))
		if scraper.ParseDecision(string(d)) != d {
			return nil, fmt.Errorf("bad decision %q for %s", v, f)
		}
		out[f] = d
	}
	return out, nil
}

func joinFields(fields []scraper.Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = string(f)
	}
	return strings.Join(parts, ", ")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}

func init() {
	scrapeCmd.Flags().StringVarP(&urlsFile, "file", "f", "", "read URLs from a file, one per line")
	mergeCmd.Flags().StringArrayVar(&choices, "choice", nil, "override a field decision, e.g. --choice description=merge")
	mergeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show the merge without saving it")
	importCmd.Flags().StringVar(&downloadURL, "download-url", "", "download URL for the new app")

	rootCmd.AddCommand(scrapeCmd, matchCmd, mergeCmd, importCmd)
}
