package model

import "time"

// University owns at most one Foyer.
type University struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Address   string    `gorm:"size:256" json:"address"`
	FoyerID   *int64    `gorm:"uniqueIndex" json:"foyerId"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Foyer *Foyer `gorm:"constraint:OnDelete:SET NULL" json:"foyer,omitempty"`
}
