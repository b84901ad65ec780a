package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetObservations handles GET /scheduler/observations/:site. It previews the
// upstream schedule shaped like calendar events without importing anything.
func (h *Handler) GetObservations(c *gin.Context) {
	site := c.Param("site")
	start := c.Query("start")
	end := c.Query("end")

	observations := h.engine.FormattedObservations(c.Request.Context(), site, start, end)
	c.JSON(http.StatusOK, observations)
}

// ImportAll handles POST /scheduler/import: one reconciliation cycle for
// every configured site, reported per site.
func (h *Handler) ImportAll(c *gin.Context) {
	results := h.engine.SyncAll(c.Request.Context())
	c.JSON(http.StatusOK, results)
}

// ImportSite handles POST /scheduler/import/:site.
func (h *Handler) ImportSite(c *gin.Context) {
	result := h.engine.SyncSite(c.Request.Context(), c.Param("site"))
	c.JSON(http.StatusOK, result)
}
