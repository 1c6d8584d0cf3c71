package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"prospect-scraper/config"
	"prospect-scraper/storage"
)

func NewHandler(runner ScrapeRunner, insights InsightProvider, store storage.PropertyStore) *Handler {
	return &Handler{runner: runner, insights: insights, store: store}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	health := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"sources":   len(h.runner.Sources()),
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		health["status"] = "unhealthy"
		health["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}

	if count, err := h.store.Count(ctx); err == nil {
		health["properties"] = count
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) ListSources(c *gin.Context) {
	names := h.runner.Sources()
	c.JSON(http.StatusOK, gin.H{
		"sources": names,
		"total":   len(names),
	})
}

// TriggerScrape runs one source synchronously and returns its report.
func (h *Handler) TriggerScrape(c *gin.Context) {
	source := c.Param("source")

	var req ScrapeRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "invalid request body: " + err.Error()})
		return
	}
	if req.MaxPages < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "maxPages must not be negative"})
		return
	}

	report, err := h.runner.RunScrape(c.Request.Context(), source, req.SearchURL, req.MaxPages)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrUnknownSource) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"success": false, "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *Handler) GetInsights(c *gin.Context) {
	source := c.Param("source")

	report, err := h.insights.ForSource(c.Request.Context(), source)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}
