package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	"insightpilot/backend/internal/auth"
	"insightpilot/backend/internal/config"
	"insightpilot/backend/internal/customers"
	"insightpilot/backend/internal/demo"
	"insightpilot/backend/internal/ingest"
	"insightpilot/backend/internal/middleware"
	"insightpilot/backend/internal/report"
	"insightpilot/backend/internal/risk"
	"insightpilot/backend/internal/store"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	cfg       config.Config
	store     *store.Store
	importer  *ingest.Importer
	customers *customers.Service
	auth      *auth.Service
	demo      *demo.Loader
}

func New(cfg config.Config, s *store.Store, im *ingest.Importer, cs *customers.Service, as *auth.Service, dl *demo.Loader) *Handler {
	return &Handler{cfg: cfg, store: s, importer: im, customers: cs, auth: as, demo: dl}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authGroup := api.Group("/auth")
	authGroup.POST("/register", h.register)
	authGroup.POST("/login", h.login)
	authGroup.GET("/me", middleware.AuthMiddleware(h.auth), h.me)

	protected := api.Group("")
	if h.cfg.Auth.Enabled {
		protected.Use(middleware.AuthMiddleware(h.auth))
	}

	protected.POST("/customers/import", h.importCustomers)
	protected.GET("/customers", h.listCustomers)
	protected.GET("/customers/:id", h.getCustomer)
	protected.POST("/customers/:id/followup_suggestion", h.followupSuggestion)

	protected.GET("/imports", h.listImports)
	protected.GET("/imports/:id", h.getImport)

	protected.GET("/stats/customers", h.customerStats)
	protected.GET("/stats/customers/chart.png", h.customerChart)

	protected.POST("/demo/reload", h.reloadDemo)
}

func (h *Handler) listCustomers(c *gin.Context) {
	page, err := h.customers.List(c.Request.Context(), customers.ListParams{
		RiskLevel:      c.Query("risk_level"),
		MembershipType: c.Query("membership_type"),
		Limit:          queryInt(c, "limit", 0),
		Offset:         queryInt(c, "offset", 0),
	})
	if err != nil {
		if errors.Is(err, risk.ErrUnknownLevel) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler) getCustomer(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	v, err := h.customers.Get(c.Request.Context(), id)
	if err != nil {
		writeLookupError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Handler) followupSuggestion(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	s, err := h.customers.Suggest(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if errors.Is(err, customers.ErrGenerator) {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) customerStats(c *gin.Context) {
	st, err := h.customers.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) customerChart(c *gin.Context) {
	st, err := h.customers.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	var buf bytes.Buffer
	if err := report.RenderRiskChart(&buf, st.Risk); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

func (h *Handler) reloadDemo(c *gin.Context) {
	n, err := h.demo.Reload(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"loaded": n})
}

// queryInt ignores values that are not integers.
func queryInt(c *gin.Context, key string, def int) int {
	if s := c.Query(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return def
}

func paramID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func writeLookupError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
