package model

import "time"

// Foyer represents a dormitory building.
type Foyer struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Capacity  int64     `gorm:"not null" json:"capacity"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Blocs []Bloc `gorm:"foreignKey:FoyerID" json:"-"`
}
