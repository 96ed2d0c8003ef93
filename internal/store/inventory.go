package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foyer-backend/internal/model"
	"foyer-backend/internal/parse"
)

// InventoryItem represents a single room record from the housing registry.
type InventoryItem struct {
	ID        int64  `json:"id"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	FloorCode string `json:"floorCode"`
}

// UpsertBlocsAndRooms creates the blocs named by the items under the given
// foyer and upserts every room whose data changed.
func (s *gormStore) UpsertBlocsAndRooms(ctx context.Context, foyerID int64, items []InventoryItem) error {
	existingRooms, err := s.fetchAllRooms(ctx)
	if err != nil {
		s.log.Warn("could not pre-fetch rooms", zap.Error(err))
		existingRooms = make(map[int64]model.Room)
	}

	// Phase 1: Process and save blocs
	blocMap, err := s.processAndSaveBlocs(ctx, foyerID, items)
	if err != nil {
		return fmt.Errorf("failed to process blocs: %w", err)
	}

	// Phase 2: Build room slice for upserting
	var roomsToUpsert []model.Room
	for _, item := range items {
		label, err := parse.ParseRoomLabel(item.Label, item.FloorCode)
		if err != nil {
			s.log.Warn("skipping room with unparsable label", zap.Int64("room_id", item.ID), zap.String("label", item.Label), zap.Error(err))
			continue
		}
		roomType, err := model.ParseRoomType(item.Type)
		if err != nil {
			s.log.Warn("skipping room with unknown type", zap.Int64("room_id", item.ID), zap.String("type", item.Type))
			continue
		}

		bloc, ok := blocMap[label.Bloc]
		if !ok {
			s.log.Error("bloc missing after upsert", zap.String("bloc", label.Bloc), zap.Int64("room_id", item.ID))
			continue
		}

		room, needsUpsert := prepareRoom(item.ID, label, roomType, existingRooms, bloc.ID)
		if needsUpsert {
			roomsToUpsert = append(roomsToUpsert, room)
		}
	}

	if len(roomsToUpsert) > 0 {
		s.log.Info("batch upserting rooms", zap.Int("count", len(roomsToUpsert)))
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return batchUpsertRooms(tx, roomsToUpsert)
		})
	}
	return nil
}

func (s *gormStore) fetchAllRooms(ctx context.Context) (map[int64]model.Room, error) {
	var rooms []model.Room
	if err := s.db.WithContext(ctx).Find(&rooms).Error; err != nil {
		return nil, err
	}
	roomMap := make(map[int64]model.Room, len(rooms))
	for _, r := range rooms {
		roomMap[r.ID] = r
	}
	return roomMap, nil
}

func (s *gormStore) processAndSaveBlocs(ctx context.Context, foyerID int64, items []InventoryItem) (map[string]model.Bloc, error) {
	blocsToUpsert := make(map[string]model.Bloc)
	for _, item := range items {
		label, err := parse.ParseRoomLabel(item.Label, item.FloorCode)
		if err != nil {
			continue
		}
		if _, exists := blocsToUpsert[label.Bloc]; !exists {
			blocsToUpsert[label.Bloc] = model.Bloc{Name: label.Bloc, FoyerID: foyerID}
		}
	}

	if len(blocsToUpsert) == 0 {
		return make(map[string]model.Bloc), nil
	}

	blocList := make([]model.Bloc, 0, len(blocsToUpsert))
	for _, b := range blocsToUpsert {
		blocList = append(blocList, b)
	}

	s.log.Info("batch upserting blocs", zap.Int("count", len(blocList)), zap.Int64("foyer_id", foyerID))
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "foyer_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"updated_at"}),
	}).Create(&blocList).Error; err != nil {
		return nil, fmt.Errorf("batch upsert blocs failed: %w", err)
	}

	var allBlocs []model.Bloc
	if err := s.db.WithContext(ctx).Where("foyer_id = ?", foyerID).Find(&allBlocs).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve blocs after upsert: %w", err)
	}

	blocMap := make(map[string]model.Bloc, len(allBlocs))
	for _, b := range allBlocs {
		blocMap[b.Name] = b
	}
	return blocMap, nil
}

func prepareRoom(id int64, label parse.RoomLabel, roomType model.RoomType, existingRooms map[int64]model.Room, blocID int64) (model.Room, bool) {
	newRoom := model.Room{
		ID:     id,
		BlocID: blocID,
		Number: label.Number,
		Type:   roomType,
		Floor:  label.Floor,
	}

	if oldRoom, exists := existingRooms[newRoom.ID]; exists {
		if oldRoom.BlocID == newRoom.BlocID &&
			oldRoom.Number == newRoom.Number &&
			oldRoom.Type == newRoom.Type &&
			oldRoom.Floor == newRoom.Floor {
			return newRoom, false
		}
	}
	return newRoom, true
}

func batchUpsertRooms(tx *gorm.DB, rooms []model.Room) error {
	return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"bloc_id", "number", "type", "floor", "updated_at"}),
	}).Create(&rooms).Error
}
