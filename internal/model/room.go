package model

import (
	"fmt"
	"strings"
	"time"
)

// RoomType classifies a room by the number of students it can host.
type RoomType string

const (
	RoomSimple RoomType = "SIMPLE"
	RoomDouble RoomType = "DOUBLE"
	RoomTriple RoomType = "TRIPLE"
)

// ParseRoomType converts a case-insensitive room type name.
func ParseRoomType(s string) (RoomType, error) {
	t := RoomType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown room type %q", s)
	}
	return t, nil
}

// Valid reports whether t is one of the known room types.
func (t RoomType) Valid() bool {
	switch t {
	case RoomSimple, RoomDouble, RoomTriple:
		return true
	}
	return false
}

// Room represents a chambre inside a bloc.
type Room struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Number    int64     `gorm:"not null" json:"number"`
	Type      RoomType  `gorm:"size:16;not null" json:"type"`
	Floor     int       `json:"floor"`
	BlocID    int64     `gorm:"index;not null" json:"blocId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Associations
	Bloc         *Bloc         `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reservations []Reservation `gorm:"foreignKey:RoomID" json:"-"`
}
