// Package testutil builds throwaway databases and fixtures for tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foyer-backend/internal/db"
	"foyer-backend/internal/model"
)

// NewSQLite opens a private in-memory database with every table migrated.
// It is closed when the test ends.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open in-memory database")
	require.NoError(t, db.Migrate(gormDB))

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	return gormDB
}

// Campus is the fixture created by SeedCampus.
type Campus struct {
	University model.University
	Foyer      model.Foyer
	Bloc       model.Bloc
	Triple     model.Room
	Double     model.Room
	Simple     model.Room
	Students   []model.Student
}

// SeedCampus creates university "ESPRIT" owning foyer "Foyer Nord" whose bloc
// "B1" holds Triple room 5, Double room 6 and Simple room 7, plus students
// S1 to S5. The bloc's rooms are created in that id order.
func SeedCampus(t *testing.T, gormDB *gorm.DB) Campus {
	t.Helper()

	var c Campus
	c.Foyer = model.Foyer{Name: "Foyer Nord", Capacity: 120}
	require.NoError(t, gormDB.Create(&c.Foyer).Error)

	c.University = model.University{Name: "ESPRIT", Address: "Ariana", FoyerID: &c.Foyer.ID}
	require.NoError(t, gormDB.Omit("Foyer").Create(&c.University).Error)

	c.Bloc = model.Bloc{Name: "B1", Capacity: 20, FoyerID: c.Foyer.ID}
	require.NoError(t, gormDB.Create(&c.Bloc).Error)

	c.Triple = model.Room{ID: 5, Number: 105, Type: model.RoomTriple, Floor: 1, BlocID: c.Bloc.ID}
	c.Double = model.Room{ID: 6, Number: 106, Type: model.RoomDouble, Floor: 1, BlocID: c.Bloc.ID}
	c.Simple = model.Room{ID: 7, Number: 107, Type: model.RoomSimple, Floor: 1, BlocID: c.Bloc.ID}
	for _, r := range []*model.Room{&c.Triple, &c.Double, &c.Simple} {
		require.NoError(t, gormDB.Create(r).Error)
	}

	birth := time.Date(2003, time.March, 14, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		s := model.Student{
			CIN:       fmt.Sprintf("S%d", i),
			FirstName: fmt.Sprintf("First%d", i),
			LastName:  fmt.Sprintf("Last%d", i),
			School:    "ESPRIT",
			BirthDate: &birth,
		}
		require.NoError(t, gormDB.Create(&s).Error)
		c.Students = append(c.Students, s)
	}

	return c
}

// AddRoom creates a room in the given bloc.
func AddRoom(t *testing.T, gormDB *gorm.DB, id, blocID int64, roomType model.RoomType) model.Room {
	t.Helper()
	r := model.Room{ID: id, Number: 100 + id, Type: roomType, BlocID: blocID}
	require.NoError(t, gormDB.Create(&r).Error)
	return r
}

// AddBloc creates an empty bloc in the given foyer.
func AddBloc(t *testing.T, gormDB *gorm.DB, name string, foyerID int64) model.Bloc {
	t.Helper()
	b := model.Bloc{Name: name, FoyerID: foyerID}
	require.NoError(t, gormDB.Create(&b).Error)
	return b
}
