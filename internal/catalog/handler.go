package catalog

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	appsync "vrstore/internal/sync"
	"vrstore/pkg/models"
)

type Handler struct {
	Store  Store
	Events appsync.Publisher
	Logger *log.Logger
}

func NewHandler(store Store, events appsync.Publisher, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{Store: store, Events: events, Logger: logger}
}

// RegisterRoutes mounts the public catalog API.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)                   // GET /apps
	rg.GET("/:id", h.getByID)            // GET /apps/:id
	rg.POST("/:id/download", h.download) // POST /apps/:id/download
}

// RegisterAdminRoutes mounts catalog writes; callers put auth in front.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.create)    // POST /admin/apps
	rg.PUT("/:id", h.update) // PUT /admin/apps/:id
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Category: c.Query("category"),
		Q:        c.Query("q"),
		Limit:    parseInt(c.Query("limit"), DefaultLimit),
		Offset:   parseInt(c.Query("offset"), 0),
	}.normalized()

	items, total, err := h.Store.ListApps(c.Request.Context(), q)
	if err != nil {
		h.Logger.Error("[catalog] list failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  total,
		"limit":  q.Limit,
		"offset": q.Offset,
		"items":  items,
	})
}

func (h *Handler) getByID(c *gin.Context) {
	app, err := h.Store.GetApp(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Logger.Error("[catalog] get failed", "id", c.Param("id"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if app == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, app)
}

type downloadRequest struct {
	Platform string `json:"platform"`
}

func (h *Handler) download(c *gin.Context) {
	id := c.Param("id")

	var req downloadRequest
	// the body is optional
	_ = c.ShouldBindJSON(&req)
	platform := strings.TrimSpace(c.Query("platform"))
	if platform == "" {
		platform = strings.TrimSpace(req.Platform)
	}

	client := models.ClientInfo{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		Platform:  platform,
	}
	ctx := c.Request.Context()
	if err := h.Store.RecordDownloadEvent(ctx, id, client); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.Logger.Error("[catalog] record download failed", "id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "record download failed"})
		return
	}

	app, err := h.Store.GetApp(ctx, id)
	if err != nil || app == nil {
		// counted already; the follow-up read is best effort
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	h.publish(appsync.EventAppDownloaded, *app)
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"downloadUrl": app.DownloadURL,
		"downloads":   app.Downloads,
	})
}

func (h *Handler) create(c *gin.Context) {
	var app models.App
	if err := c.ShouldBindJSON(&app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := validate(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	id, err := h.Store.CreateApp(ctx, app)
	if err != nil {
		h.Logger.Error("[catalog] create failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	created, err := h.Store.GetApp(ctx, id)
	if err != nil || created == nil {
		c.JSON(http.StatusCreated, gin.H{"id": id})
		return
	}
	h.publish(appsync.EventAppCreated, *created)
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("id")
	var app models.App
	if err := c.ShouldBindJSON(&app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := validate(app); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.UpdateApp(ctx, id, app); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		h.Logger.Error("[catalog] update failed", "id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	updated, err := h.Store.GetApp(ctx, id)
	if err != nil || updated == nil {
		c.JSON(http.StatusOK, gin.H{"id": id})
		return
	}
	h.publish(appsync.EventAppUpdated, *updated)
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) publish(kind string, app models.App) {
	if h.Events != nil {
		h.Events.Publish(appsync.NewAppEvent(kind, app))
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
