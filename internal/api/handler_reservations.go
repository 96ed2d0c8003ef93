package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"foyer-backend/internal/model"
)

type allocateRequest struct {
	CIN string `json:"cin" binding:"required"`
}

// Allocate places a student in the open reservation of a bloc.
func (h *Handler) Allocate(c *gin.Context) {
	blocID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid bloc id")
		return
	}
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "cin is required")
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	res, err := h.engine.Allocate(c.Request.Context(), blocID, req.CIN, asOf)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// Cancel removes a student from their reservation of the academic year.
func (h *Handler) Cancel(c *gin.Context) {
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}
	res, err := h.engine.Cancel(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListReservations returns every reservation.
func (h *Handler) ListReservations(c *gin.Context) {
	list, err := h.store.ListReservations(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// GetReservation returns one reservation with its students.
func (h *Handler) GetReservation(c *gin.Context) {
	res, err := h.store.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type updateReservationRequest struct {
	RoomID       *int64     `json:"roomId"`
	AcademicYear *time.Time `json:"academicYear"`
	Valid        *bool      `json:"valid"`
	// Version, when sent, must match the stored one.
	Version *int64 `json:"version"`
}

// UpdateReservation changes the room, year or validity of a reservation.
// Membership only changes through allocation and cancellation.
func (h *Handler) UpdateReservation(c *gin.Context) {
	var req updateReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	ctx := c.Request.Context()
	res, err := h.store.GetReservation(ctx, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if req.Version != nil {
		res.Version = *req.Version
	}
	if req.RoomID != nil {
		res.RoomID = *req.RoomID
	}
	if req.AcademicYear != nil {
		res.SetAcademicYear(*req.AcademicYear)
	}
	if req.Valid != nil {
		res.Valid = *req.Valid
	}

	if err := h.store.SaveReservation(ctx, res); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeleteReservation removes a reservation and its memberships.
func (h *Handler) DeleteReservation(c *gin.Context) {
	if err := h.engine.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SearchReservations lists the reservations of an academic year in the
// foyer of the named university.
func (h *Handler) SearchReservations(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil || year <= 0 {
		badRequest(c, "year is required")
		return
	}
	university := c.Query("university")
	if university == "" {
		badRequest(c, "university is required")
		return
	}

	list, err := h.store.ListReservationsByYearAndUniversity(c.Request.Context(), year, university)
	if err != nil {
		h.fail(c, err)
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	c.JSON(http.StatusOK, list)
}
