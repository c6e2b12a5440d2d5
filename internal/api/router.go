package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"workshop-scheduler/internal/metrics"
	"workshop-scheduler/internal/mw"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	RateLimit float64
	Burst     int
	CacheTTL  time.Duration
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
	// Limiter is shared with the caller so it can prune idle clients.
	Limiter *mw.IPRateLimiter
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(opts.Logger, opts.Metrics))

	limiter := opts.Limiter
	if limiter == nil {
		if opts.RateLimit <= 0 {
			opts.RateLimit = 10
		}
		if opts.Burst <= 0 {
			opts.Burst = 5
		}
		limiter = mw.NewIPRateLimiter(rate.Limit(opts.RateLimit), opts.Burst)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter), mw.Invalidate(cacheStore))
	{
		api.GET("/breaks/active", h.GetActiveBreaks)
		api.POST("/breaks/start", h.StartBreak)
		api.POST("/breaks/end", h.EndBreak)

		api.GET("/availability/loaners", caching, h.GetLoanerAvailability)
		api.GET("/availability/technician", caching, h.GetTechnicianConflict)
		api.GET("/availability/next-business-day", caching, h.GetNextBusinessDay)

		api.GET("/loaner-blocks", h.ListLoanerBlocks)
		api.POST("/loaner-blocks", h.CreateLoanerBlock)
		api.DELETE("/loaner-blocks/:id", h.DeleteLoanerBlock)

		api.POST("/windows/resolve", h.ResolveWindow)

		api.POST("/appointments", h.CreateAppointment)
		api.GET("/appointments/deleted", h.ListDeletedAppointments)
		api.GET("/appointments/:id", h.GetAppointment)
		api.PUT("/appointments/:id", h.UpdateAppointment)
		api.PATCH("/appointments/:id/status", h.UpdateStatus)
		api.POST("/appointments/:id/extensions", h.CreateExtension)
		api.DELETE("/appointments/:id", h.DeleteAppointment)
		api.POST("/appointments/:id/restore", h.RestoreAppointment)
		api.DELETE("/appointments/:id/purge", h.PurgeAppointment)

		api.POST("/recompute", h.Recompute)

		api.GET("/persons", h.ListPersons)
		api.POST("/persons", h.CreatePerson)
		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.PutSettings)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
