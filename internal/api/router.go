package api

import (
	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foyer-backend/config"
	"foyer-backend/internal/mw"
	"foyer-backend/internal/reservation"
	"foyer-backend/internal/store"
)

// Deps are the collaborators the router wires into its handlers.
type Deps struct {
	Config  config.ServerConfig
	DB      *gorm.DB
	Store   store.Store
	Engine  *reservation.Service
	Webpush *webpush.Options
	Log     *zap.Logger

	// Cache holds cached GET responses. Background writers that bypass
	// the router flush it too; a private one is created when nil.
	Cache *cache.Cache
}

// NewResponseCache builds the GET response cache for cfg.
func NewResponseCache(cfg config.ServerConfig) *cache.Cache {
	ttl := cfg.CacheTTL()
	return cache.New(ttl, 2*ttl)
}

// NewRouter creates and configures a new Gin router.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(d.Log))

	handler := NewHandler(d.DB, d.Store, d.Engine, d.Webpush, d.Log)

	r.GET("/healthz", handler.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	cacheStore := d.Cache
	if cacheStore == nil {
		cacheStore = NewResponseCache(d.Config)
	}

	// API group
	api := r.Group("/api")
	api.Use(mw.RateLimiter(d.Config.RateLimitPerSec, d.Config.RateLimitBurst), mw.Cache(cacheStore, d.Config.CacheTTL()))
	{
		universities(handler).register(api, "/universities", handler)
		foyers(handler).register(api, "/foyers", handler)
		blocs(handler).register(api, "/blocs", handler)
		rooms(handler).register(api, "/rooms", handler)
		students(handler).register(api, "/students", handler)

		api.GET("/foyers/:id/blocs", handler.GetFoyerBlocs)
		api.GET("/blocs/:id/rooms", handler.GetBlocRooms)

		// Reservations are created through allocation only.
		api.POST("/blocs/:id/reservations", handler.Allocate)
		api.DELETE("/students/:id/reservation", handler.Cancel)
		api.GET("/reservations", handler.ListReservations)
		api.GET("/reservations/search", handler.SearchReservations)
		api.GET("/reservations/:id", handler.GetReservation)
		api.PUT("/reservations/:id", handler.UpdateReservation)
		api.DELETE("/reservations/:id", handler.DeleteReservation)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
