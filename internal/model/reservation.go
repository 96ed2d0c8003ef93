package model

import "time"

// Reservation is one booking cycle of a room for an academic year.
// Only the year of AcademicYear is meaningful; Year mirrors it so that
// lookups stay portable across SQL dialects.
type Reservation struct {
	ID           string    `gorm:"primaryKey;size:128" json:"id"`
	RoomID       int64     `gorm:"index;not null" json:"roomId"`
	AcademicYear time.Time `gorm:"not null" json:"academicYear"`
	Year         int       `gorm:"column:booking_year;index;not null" json:"year"`
	Valid        bool      `gorm:"not null" json:"valid"`
	Version      int64     `gorm:"not null" json:"version"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	// Associations
	Room     *Room     `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Students []Student `gorm:"many2many:reservation_students;joinForeignKey:ReservationID;joinReferences:StudentCIN" json:"students"`
}

// HasStudent reports whether the student with the given cin is a member.
func (r *Reservation) HasStudent(cin string) bool {
	for _, s := range r.Students {
		if s.CIN == cin {
			return true
		}
	}
	return false
}

// AddStudent adds s unless a student with the same cin is already present.
// It reports whether the set changed.
func (r *Reservation) AddStudent(s Student) bool {
	if r.HasStudent(s.CIN) {
		return false
	}
	r.Students = append(r.Students, s)
	return true
}

// RemoveStudent drops the student with the given cin and reports whether it was present.
func (r *Reservation) RemoveStudent(cin string) bool {
	for i, s := range r.Students {
		if s.CIN == cin {
			r.Students = append(r.Students[:i], r.Students[i+1:]...)
			return true
		}
	}
	return false
}

// Occupants returns the number of students in the reservation.
func (r *Reservation) Occupants() int {
	return len(r.Students)
}

// SetAcademicYear sets the marker and keeps Year in sync.
func (r *Reservation) SetAcademicYear(t time.Time) {
	r.AcademicYear = t
	r.Year = t.Year()
}
