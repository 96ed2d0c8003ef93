package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"foyer-backend/internal/model"
	"foyer-backend/internal/reservation"
)

// BlocSummary represents one bloc of a foyer with its room counts.
type BlocSummary struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	MaxFloor   int    `json:"maxFloor"`
	TotalRooms int64  `json:"totalRooms"`
	TotalBeds  int64  `json:"totalBeds"`
}

// GetFoyerBlocs handles GET /api/foyers/:id/blocs.
func (h *Handler) GetFoyerBlocs(c *gin.Context) {
	foyerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid foyer id")
		return
	}
	db := h.db.WithContext(c.Request.Context())

	var list []model.Bloc
	if err := db.Where("foyer_id = ?", foyerID).Order("name").Find(&list).Error; err != nil {
		h.fail(c, err)
		return
	}

	type aggRow struct {
		BlocID     int64
		Type       model.RoomType
		TotalRooms int64
		MaxFloor   int
	}
	var aggs []aggRow
	if err := db.
		Model(&model.Room{}).
		Select("rooms.bloc_id AS bloc_id, rooms.type AS type, COUNT(*) AS total_rooms, COALESCE(MAX(rooms.floor), 0) AS max_floor").
		Joins("JOIN blocs ON blocs.id = rooms.bloc_id").
		Where("blocs.foyer_id = ?", foyerID).
		Group("rooms.bloc_id, rooms.type").
		Scan(&aggs).Error; err != nil {
		h.fail(c, err)
		return
	}

	summaries := make(map[int64]*BlocSummary, len(list))
	responses := make([]BlocSummary, len(list))
	for i, b := range list {
		responses[i] = BlocSummary{ID: b.ID, Name: b.Name}
		summaries[b.ID] = &responses[i]
	}
	for _, a := range aggs {
		s, ok := summaries[a.BlocID]
		if !ok {
			continue
		}
		s.TotalRooms += a.TotalRooms
		if beds, ok := reservation.Capacity(a.Type); ok {
			s.TotalBeds += a.TotalRooms * int64(beds)
		}
		s.MaxFloor = max(s.MaxFloor, a.MaxFloor)
	}
	c.JSON(http.StatusOK, responses)
}

// roomStatusResponse is one room of a bloc with its booking for a year.
type roomStatusResponse struct {
	model.Room
	Capacity      int     `json:"capacity"`
	ReservationID *string `json:"reservationId"`
	Occupants     int     `json:"occupants"`
	IsAvailable   bool    `json:"isAvailable"`
}

// GetBlocRooms handles GET /api/blocs/:id/rooms. The academic year is the
// one of the optional "at" parameter.
func (h *Handler) GetBlocRooms(c *gin.Context) {
	blocID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid bloc id")
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if _, err := h.store.FindBlocByID(ctx, blocID); err != nil {
		h.fail(c, err)
		return
	}

	var roomList []model.Room
	if err := h.db.WithContext(ctx).Where("bloc_id = ?", blocID).Order("id").Find(&roomList).Error; err != nil {
		h.fail(c, err)
		return
	}

	roomIDs := make([]int64, len(roomList))
	for i, r := range roomList {
		roomIDs[i] = r.ID
	}
	var bookings []model.Reservation
	if len(roomIDs) > 0 {
		if err := h.db.WithContext(ctx).
			Preload("Students").
			Where("room_id IN ? AND booking_year = ?", roomIDs, asOf.Year()).
			Order("created_at").
			Find(&bookings).Error; err != nil {
			h.fail(c, err)
			return
		}
	}
	byRoom := make(map[int64]model.Reservation, len(bookings))
	for _, b := range bookings {
		if _, seen := byRoom[b.RoomID]; !seen {
			byRoom[b.RoomID] = b
		}
	}

	responses := make([]roomStatusResponse, 0, len(roomList))
	for _, r := range roomList {
		capacity, _ := reservation.Capacity(r.Type)
		resp := roomStatusResponse{Room: r, Capacity: capacity, IsAvailable: true}
		if b, ok := byRoom[r.ID]; ok {
			id := b.ID
			resp.ReservationID = &id
			resp.Occupants = b.Occupants()
			resp.IsAvailable = b.Valid
		}
		responses = append(responses, resp)
	}
	c.JSON(http.StatusOK, responses)
}
