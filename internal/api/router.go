package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"observatory-calendar-backend/config"
	"observatory-calendar-backend/internal/mw"
	"observatory-calendar-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.ServerConfig, s store.Store, engine ImportEngine, projects ProjectReader, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, engine, projects, webpushOptions)

	limit := rate.Limit(10)
	if cfg != nil && cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, 5)

	// Schedule previews change at most once per import cycle, so a short
	// cache keeps repeated preview requests off the site proxies.
	cacheTTL := time.Minute
	if cfg != nil && cfg.CacheTTLSeconds > 0 {
		cacheTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}
	cacheStore := cache.New(cacheTTL, 5*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	calendar := r.Group("/calendar")
	calendar.Use(rateLimiter)
	{
		calendar.POST("/events", handler.AddEvent)
		calendar.POST("/modify-event", handler.ModifyEvent)
		calendar.POST("/delete-event", handler.DeleteEvent)
		calendar.POST("/siteevents", handler.SiteEvents)
		calendar.POST("/event-at-time", handler.EventAtTime)
		calendar.POST("/user-events-ending-after-time", handler.UserEventsEndingAfter)
		calendar.POST("/is-user-scheduled", handler.IsUserScheduled)
		calendar.POST("/does-conflicting-event-exist", handler.DoesConflictingEventExist)
		calendar.POST("/add-projects-to-events", handler.AddProjectsToEvents)
		calendar.POST("/remove-project-from-events", handler.RemoveProjectFromEvents)
	}

	scheduler := r.Group("/scheduler")
	scheduler.Use(rateLimiter)
	{
		scheduler.GET("/observations/:site", caching, handler.GetObservations)
		scheduler.POST("/import", handler.ImportAll)
		scheduler.POST("/import/:site", handler.ImportSite)
	}

	r.GET("/subscriptions", rateLimiter, handler.GetSubscription)
	r.PUT("/subscriptions", rateLimiter, handler.PutSubscription)
	r.DELETE("/subscriptions", rateLimiter, handler.DeleteSubscription)
	r.GET("/vapid_public_key", rateLimiter, handler.GetVAPIDPublicKey)

	return r
}
