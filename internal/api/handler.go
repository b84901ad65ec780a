package api

import (
	"context"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"observatory-calendar-backend/internal/importer"
	"observatory-calendar-backend/internal/observation"
	"observatory-calendar-backend/internal/store"
)

// ImportEngine is the slice of the reconciliation engine the API exposes.
type ImportEngine interface {
	SyncAll(ctx context.Context) map[string]importer.Result
	SyncSite(ctx context.Context, site string) importer.Result
	FormattedObservations(ctx context.Context, site, start, end string) []observation.Formatted
}

// ProjectReader resolves full project bodies for calendar events.
type ProjectReader interface {
	Get(ctx context.Context, projectName, createdAt string) (map[string]any, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	engine   ImportEngine
	projects ProjectReader
	webpush  *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, engine ImportEngine, projects ProjectReader, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:    s,
		engine:   engine,
		projects: projects,
		webpush:  webpushOptions,
	}
}

// requesterIdentity reads the caller's identity from the headers set by the
// upstream authorizer.
func requesterIdentity(c *gin.Context) (userID string, isAdmin bool) {
	userID = c.GetHeader("X-User-ID")
	for _, role := range strings.Split(c.GetHeader("X-User-Roles"), ",") {
		if strings.TrimSpace(role) == "admin" {
			isAdmin = true
		}
	}
	return userID, isAdmin
}
