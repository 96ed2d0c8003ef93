package model

import "time"

// Bloc is a section of a Foyer grouping its rooms.
type Bloc struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex:idx_blocs_foyer_name;size:64;not null" json:"name"`
	Capacity  int64     `json:"capacity"`
	FoyerID   int64     `gorm:"uniqueIndex:idx_blocs_foyer_name;not null" json:"foyerId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Foyer *Foyer `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Rooms []Room `gorm:"foreignKey:BlocID" json:"-"`
}
