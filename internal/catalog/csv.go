package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"vrstore/pkg/models"
)

// CSVColumns is the column order written by WriteCSV.
var CSVColumns = []string{
	"id", "title", "developer", "package_name", "category", "version",
	"description", "short_description", "icon_url", "download_url",
	"screenshots", "rating", "file_size", "downloads", "source_url", "source_store",
}

// headerAliases maps spreadsheet headers seen in the wild onto CSVColumns.
var headerAliases = map[string]string{
	"name":           "title",
	"app":            "title",
	"app_name":       "title",
	"publisher":      "developer",
	"studio":         "developer",
	"package":        "package_name",
	"packagename":    "package_name",
	"bundle_id":      "package_name",
	"genre":          "category",
	"genres":         "category",
	"summary":        "short_description",
	"icon":           "icon_url",
	"iconurl":        "icon_url",
	"download":       "download_url",
	"apk_url":        "download_url",
	"downloadurl":    "download_url",
	"images":         "screenshots",
	"stars":          "rating",
	"size":           "file_size",
	"filesize":       "file_size",
	"download_count": "downloads",
	"url":            "source_url",
	"store_url":      "source_url",
	"store":          "source_store",
}

// categoryLookup folds free-form genre labels onto the catalog's categories.
var categoryLookup = map[string]string{
	"game":          "Games",
	"games":         "Games",
	"action":        "Games",
	"adventure":     "Games",
	"shooter":       "Games",
	"rhythm":        "Games",
	"puzzle":        "Games",
	"simulation":    "Games",
	"sports":        "Sports",
	"fitness":       "Fitness",
	"health":        "Fitness",
	"social":        "Social",
	"communication": "Social",
	"education":     "Education",
	"educational":   "Education",
	"entertainment": "Entertainment",
	"media":         "Entertainment",
	"video":         "Entertainment",
	"productivity":  "Productivity",
	"utilities":     "Utilities",
	"utility":       "Utilities",
	"tools":         "Utilities",
	"art":           "Creativity",
	"creativity":    "Creativity",
	"music":         "Creativity",
}

// NormalizeCategory maps a label through the category table. Unknown labels
// are kept as written.
func NormalizeCategory(raw string) string {
	// multi-genre cells ("Action, Adventure") use the first genre
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' || r == '|' })
	if len(parts) == 0 {
		return ""
	}
	first := strings.TrimSpace(parts[0])
	if c, ok := categoryLookup[strings.ToLower(first)]; ok {
		return c
	}
	return first
}

// ReadCSV parses apps from r. Rows without a title are skipped.
func ReadCSV(r io.Reader) ([]models.App, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := readHeader(cr)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var apps []models.App
	line := 1
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		if len(row) == 0 {
			continue
		}

		app, err := appFromRow(header, row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if app.Title == "" {
			continue
		}
		apps = append(apps, app)
	}
	return apps, nil
}

func appFromRow(header map[string]int, row []string) (models.App, error) {
	get := func(key string) string { return valueAt(header, row, key) }

	app := models.App{
		ID:               get("id"),
		Title:            get("title"),
		Developer:        get("developer"),
		PackageName:      get("package_name"),
		Category:         NormalizeCategory(get("category")),
		Version:          get("version"),
		Description:      get("description"),
		ShortDescription: get("short_description"),
		IconURL:          get("icon_url"),
		DownloadURL:      get("download_url"),
		SourceURL:        get("source_url"),
		SourceStore:      get("source_store"),
		Screenshots:      []models.Screenshot{},
	}

	for _, u := range strings.Split(get("screenshots"), "|") {
		if u = strings.TrimSpace(u); u != "" {
			app.Screenshots = append(app.Screenshots, models.Screenshot{URL: u})
		}
	}

	if raw := get("rating"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return app, fmt.Errorf("parse rating: %w", err)
		}
		app.Rating = v
	}
	if raw := get("file_size"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return app, fmt.Errorf("parse file_size: %w", err)
		}
		app.FileSize = n
	}
	if raw := get("downloads"); raw != "" {
		n, err := strconv.ParseInt(strings.ReplaceAll(raw, ",", ""), 10, 64)
		if err != nil {
			return app, fmt.Errorf("parse downloads: %w", err)
		}
		app.Downloads = n
	}
	return app, nil
}

// WriteCSV writes apps with the CSVColumns header.
func WriteCSV(w io.Writer, apps []models.App) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVColumns); err != nil {
		return err
	}
	for _, a := range apps {
		shots := make([]string, 0, len(a.Screenshots))
		for _, s := range a.Screenshots {
			shots = append(shots, s.URL)
		}
		rating := ""
		if a.Rating != 0 {
			rating = strconv.FormatFloat(a.Rating, 'f', -1, 64)
		}
		size := ""
		if a.FileSize > 0 {
			size = strconv.FormatInt(a.FileSize, 10)
		}
		if err := cw.Write([]string{
			a.ID,
			a.Title,
			a.Developer,
			a.PackageName,
			a.Category,
			a.Version,
			a.Description,
			a.ShortDescription,
			a.IconURL,
			a.DownloadURL,
			strings.Join(shots, "|"),
			rating,
			size,
			strconv.FormatInt(a.Downloads, 10),
			a.SourceURL,
			a.SourceStore,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := headerAliases[key]; ok {
			key = canonical
		}
		if _, dup := header[key]; !dup {
			header[key] = idx
		}
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
