package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"foyer-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	FindBlocByID(ctx context.Context, blocID int64) (*model.Bloc, error)
	FindStudentByCIN(ctx context.Context, cin string) (*model.Student, error)
	FindReservationForBloc(ctx context.Context, blocID int64, year int) (*model.Reservation, error)
	FindReservationForStudentAndYear(ctx context.Context, cin string, year int) (*model.Reservation, error)
	FindRoomForReservation(ctx context.Context, reservationID string) (*model.Room, error)
	FindAvailableRoomForBloc(ctx context.Context, blocID int64, year int) (*model.Room, error)
	SaveReservation(ctx context.Context, r *model.Reservation) error
	DeleteReservation(ctx context.Context, id string) error

	GetReservation(ctx context.Context, id string) (*model.Reservation, error)
	ListReservations(ctx context.Context) ([]model.Reservation, error)
	ListReservationsByYearAndUniversity(ctx context.Context, year int, university string) ([]model.Reservation, error)

	UpsertBlocsAndRooms(ctx context.Context, foyerID int64, items []InventoryItem) error

	SubscriptionsForBloc(ctx context.Context, blocID int64) ([]model.PushSubscription, error)
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	SaveSubscription(ctx context.Context, sub *model.PushSubscription, blocIDs []int64) error
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log *zap.Logger) Store {
	return &gormStore{db: db, log: log}
}

// FindBlocByID loads a bloc by its id.
func (s *gormStore) FindBlocByID(ctx context.Context, blocID int64) (*model.Bloc, error) {
	var bloc model.Bloc
	if err := s.db.WithContext(ctx).First(&bloc, blocID).Error; err != nil {
		return nil, fmt.Errorf("find bloc %d: %w", blocID, translate(err))
	}
	return &bloc, nil
}

// FindStudentByCIN loads a student by national identity number.
func (s *gormStore) FindStudentByCIN(ctx context.Context, cin string) (*model.Student, error) {
	var student model.Student
	if err := s.db.WithContext(ctx).Where("cin = ?", cin).First(&student).Error; err != nil {
		return nil, fmt.Errorf("find student %q: %w", cin, translate(err))
	}
	return &student, nil
}

// FindReservationForBloc returns the oldest open reservation of the given
// year whose room belongs to the bloc.
func (s *gormStore) FindReservationForBloc(ctx context.Context, blocID int64, year int) (*model.Reservation, error) {
	var res model.Reservation
	err := s.db.WithContext(ctx).
		Preload("Students").
		Joins("JOIN rooms ON rooms.id = reservations.room_id").
		Where("rooms.bloc_id = ? AND reservations.booking_year = ? AND reservations.valid = ?", blocID, year, true).
		Order("reservations.created_at").
		First(&res).Error
	if err != nil {
		return nil, fmt.Errorf("find open reservation for bloc %d in %d: %w", blocID, year, translate(err))
	}
	return &res, nil
}

// FindReservationForStudentAndYear returns the reservation holding the
// student for the given academic year.
func (s *gormStore) FindReservationForStudentAndYear(ctx context.Context, cin string, year int) (*model.Reservation, error) {
	var res model.Reservation
	err := s.db.WithContext(ctx).
		Preload("Students").
		Joins("JOIN reservation_students rs ON rs.reservation_id = reservations.id").
		Where("rs.student_cin = ? AND reservations.booking_year = ?", cin, year).
		First(&res).Error
	if err != nil {
		return nil, fmt.Errorf("find reservation of student %q in %d: %w", cin, year, translate(err))
	}
	return &res, nil
}

// FindRoomForReservation returns the room backing a reservation.
func (s *gormStore) FindRoomForReservation(ctx context.Context, reservationID string) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).
		Joins("JOIN reservations ON reservations.room_id = rooms.id").
		Where("reservations.id = ?", reservationID).
		First(&room).Error
	if err != nil {
		return nil, fmt.Errorf("find room of reservation %q: %w", reservationID, translate(err))
	}
	return &room, nil
}

// FindAvailableRoomForBloc returns the lowest-id room of the bloc that holds
// no reservation for the given year.
func (s *gormStore) FindAvailableRoomForBloc(ctx context.Context, blocID int64, year int) (*model.Room, error) {
	var room model.Room
	err := s.db.WithContext(ctx).
		Where("rooms.bloc_id = ?", blocID).
		Where("NOT EXISTS (SELECT 1 FROM reservations r WHERE r.room_id = rooms.id AND r.booking_year = ?)", year).
		First(&room).Error
	if err != nil {
		return nil, fmt.Errorf("find free room in bloc %d for %d: %w", blocID, year, translate(err))
	}
	return &room, nil
}

// SaveReservation inserts a reservation with Version 0, or updates an
// existing one guarded by its version. The student set is replaced in the
// same transaction. On success r.Version holds the stored version.
func (s *gormStore) SaveReservation(ctx context.Context, r *model.Reservation) error {
	r.Year = r.AcademicYear.Year()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.Version == 0 {
			return createReservation(tx, r)
		}
		return updateReservation(tx, r)
	})
}

func createReservation(tx *gorm.DB, r *model.Reservation) error {
	var count int64
	if err := tx.Model(&model.Reservation{}).Where("id = ?", r.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("check reservation %q: %w", r.ID, err)
	}
	if count > 0 {
		return fmt.Errorf("create reservation %q: %w", r.ID, ErrDuplicateKey)
	}

	r.Version = 1
	if err := tx.Omit("Students.*").Create(r).Error; err != nil {
		r.Version = 0
		return fmt.Errorf("create reservation %q: %w", r.ID, translate(err))
	}
	return nil
}

func updateReservation(tx *gorm.DB, r *model.Reservation) error {
	result := tx.Model(&model.Reservation{}).
		Where("id = ? AND version = ?", r.ID, r.Version).
		Updates(map[string]any{
			"room_id":       r.RoomID,
			"academic_year": r.AcademicYear,
			"booking_year":  r.Year,
			"valid":         r.Valid,
			"version":       r.Version + 1,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update reservation %q: %w", r.ID, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("update reservation %q at version %d: %w", r.ID, r.Version, ErrConflict)
	}
	r.Version++

	students := tx.Model(r).Association("Students")
	var err error
	if len(r.Students) == 0 {
		err = students.Clear()
	} else {
		err = students.Replace(r.Students)
	}
	if err != nil {
		return fmt.Errorf("replace students of reservation %q: %w", r.ID, err)
	}
	return nil
}

// DeleteReservation removes a reservation and its student memberships.
func (s *gormStore) DeleteReservation(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Select("Students").Delete(&model.Reservation{ID: id})
	if result.Error != nil {
		return fmt.Errorf("delete reservation %q: %w", id, translate(result.Error))
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("delete reservation %q: %w", id, ErrNotFound)
	}
	return nil
}

// GetReservation loads a reservation with its students.
func (s *gormStore) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	var res model.Reservation
	if err := s.db.WithContext(ctx).Preload("Students").Where("id = ?", id).First(&res).Error; err != nil {
		return nil, fmt.Errorf("get reservation %q: %w", id, translate(err))
	}
	return &res, nil
}

// ListReservations returns every reservation with its students.
func (s *gormStore) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	var list []model.Reservation
	if err := s.db.WithContext(ctx).Preload("Students").Order("id").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return list, nil
}

// ListReservationsByYearAndUniversity returns the reservations of an
// academic year made in rooms of the foyer owned by the named university.
func (s *gormStore) ListReservationsByYearAndUniversity(ctx context.Context, year int, university string) ([]model.Reservation, error) {
	var list []model.Reservation
	err := s.db.WithContext(ctx).
		Preload("Students").
		Joins("JOIN rooms ON rooms.id = reservations.room_id").
		Joins("JOIN blocs ON blocs.id = rooms.bloc_id").
		Joins("JOIN universities ON universities.foyer_id = blocs.foyer_id").
		Where("reservations.booking_year = ? AND universities.name = ?", year, university).
		Order("reservations.id").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("list reservations of %q in %d: %w", university, year, err)
	}
	return list, nil
}
