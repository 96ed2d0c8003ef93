package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foyer-backend/internal/reservation"
	"foyer-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	db      *gorm.DB
	store   store.Store
	engine  *reservation.Service
	webpush *webpush.Options
	log     *zap.Logger
	now     func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(db *gorm.DB, s store.Store, engine *reservation.Service, webpushOptions *webpush.Options, log *zap.Logger) *Handler {
	return &Handler{
		db:      db,
		store:   s,
		engine:  engine,
		webpush: webpushOptions,
		log:     log,
		now:     time.Now,
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, reservation.ErrCapacityExceeded),
		errors.Is(err, reservation.ErrAlreadyReserved),
		errors.Is(err, reservation.ErrConcurrentModification),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error. Internal errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, err error) {
	c.Error(err)
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.AbortWithStatusJSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}

// asOf reads the optional RFC3339 "at" query parameter, defaulting to now.
func (h *Handler) asOf(c *gin.Context) (time.Time, bool) {
	at := c.Query("at")
	if at == "" {
		return h.now(), true
	}
	t, err := time.Parse(time.RFC3339, at)
	if err != nil {
		badRequest(c, "invalid at timestamp, expected RFC3339")
		return time.Time{}, false
	}
	return t, true
}

// Health reports whether the database answers.
func (h *Handler) Health(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
