package model

import "time"

// Student is identified by its national identity number.
type Student struct {
	CIN       string     `gorm:"primaryKey;size:32" json:"cin"`
	FirstName string     `gorm:"size:128" json:"firstName"`
	LastName  string     `gorm:"size:128" json:"lastName"`
	School    string     `gorm:"size:128" json:"school"`
	BirthDate *time.Time `json:"birthDate,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"not null" json:"updatedAt"`
}
