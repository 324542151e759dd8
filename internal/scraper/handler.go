package scraper

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"vrstore/internal/catalog"
)

const maxBatchURLs = 50

type Handler struct {
	Service *Service
	Applier *Applier
	Matcher *Matcher
}

func NewHandler(svc *Service, applier *Applier, matcher *Matcher) *Handler {
	return &Handler{Service: svc, Applier: applier, Matcher: matcher}
}

// RegisterRoutes mounts the scrape API on an admin group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/scrape", h.scrape)             // POST /admin/scrape
	rg.POST("/scrape/match", h.match)        // POST /admin/scrape/match
	rg.POST("/apps/:id/merge", h.merge)      // POST /admin/apps/:id/merge
	rg.POST("/apps/import", h.importFromURL) // POST /admin/apps/import
}

type scrapeRequest struct {
	URL  string   `json:"url"`
	URLs []string `json:"urls"`
	// HTML, when set, is extracted instead of fetching URL.
	HTML string `json:"html"`
}

func (h *Handler) scrape(c *gin.Context) {
	var req scrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}

	if len(req.URLs) > 0 {
		if len(req.URLs) > maxBatchURLs {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "too many urls"})
			return
		}
		c.JSON(http.StatusOK, h.Service.ScrapeBatch(c.Request.Context(), req.URLs))
		return
	}

	if strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "url or urls is required"})
		return
	}
	out := h.scrapeOne(c, req.URL, req.HTML)
	c.JSON(outcomeStatus(out), out)
}

func (h *Handler) scrapeOne(c *gin.Context, url, html string) Outcome {
	if html != "" {
		return h.Service.ScrapeHTML(c.Request.Context(), url, html)
	}
	return h.Service.ScrapeURL(c.Request.Context(), url)
}

// recordSource is the shared "scrape this URL or use this record" input.
type recordSource struct {
	URL  string      `json:"url"`
	HTML string      `json:"html"`
	Data *ScrapedApp `json:"data"`
}

// resolve returns the record to work with, writing the failure response
// itself when scraping fails.
func (h *Handler) resolve(c *gin.Context, src recordSource) (*ScrapedApp, bool) {
	if src.Data != nil {
		return src.Data, true
	}
	if strings.TrimSpace(src.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "url or data is required"})
		return nil, false
	}
	out := h.scrapeOne(c, src.URL, src.HTML)
	if !out.Success {
		c.JSON(outcomeStatus(out), out)
		return nil, false
	}
	return out.Data, true
}

func (h *Handler) match(c *gin.Context) {
	var req recordSource
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}
	rec, ok := h.resolve(c, req)
	if !ok {
		return
	}
	candidates, err := h.Matcher.Match(c.Request.Context(), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "match failed"})
		return
	}
	if candidates == nil {
		candidates = []Candidate{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": rec, "candidates": candidates})
}

type mergeRequest struct {
	recordSource
	Choices map[Field]Decision `json:"choices"`
	DryRun  bool               `json:"dryRun"`
}

func (h *Handler) merge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}
	rec, ok := h.resolve(c, req.recordSource)
	if !ok {
		return
	}

	res, err := h.Applier.MergeInto(c.Request.Context(), c.Param("id"), rec, req.Choices, req.DryRun)
	if err != nil {
		writePersistError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "result": res})
}

type importRequest struct {
	recordSource
	DownloadURL string `json:"downloadUrl"`
}

func (h *Handler) importFromURL(c *gin.Context) {
	var req importRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json"})
		return
	}
	rec, ok := h.resolve(c, req.recordSource)
	if !ok {
		return
	}
	if !rec.Title.Set {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": "scrape found no title", "data": rec})
		return
	}

	app, err := h.Applier.CreateFrom(c.Request.Context(), rec, req.DownloadURL)
	if err != nil {
		writePersistError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "app": app})
}

func outcomeStatus(o Outcome) int {
	if o.Success {
		return http.StatusOK
	}
	var unsupported *UnsupportedURLError
	var fetchErr *FetchError
	switch {
	case errors.As(o.Err, &unsupported):
		return http.StatusUnprocessableEntity
	case errors.As(o.Err, &fetchErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writePersistError(c *gin.Context, err error) {
	var pe *PersistError
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	case errors.As(err, &pe):
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "save failed", "stage": "persist"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	}
}
