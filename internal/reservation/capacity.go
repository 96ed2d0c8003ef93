package reservation

import "foyer-backend/internal/model"

var capacities = map[model.RoomType]int{
	model.RoomSimple: 1,
	model.RoomDouble: 2,
	model.RoomTriple: 3,
}

// Capacity returns the number of students a room type hosts.
func Capacity(t model.RoomType) (int, bool) {
	c, ok := capacities[t]
	return c, ok
}

// IsStillOpen reports whether a reservation on a room of type t holding
// occupants students can take one more. Unknown room types are never open.
func IsStillOpen(t model.RoomType, occupants int) bool {
	c, ok := capacities[t]
	return ok && occupants < c
}

// Policy decides the validity flag after each membership change.
type Policy interface {
	// Opened returns the flag of a reservation just created with n students.
	Opened(t model.RoomType, n int) bool
	// Joined returns the flag after a student joined, leaving n students.
	Joined(t model.RoomType, n int, valid bool) bool
	// Left returns the flag after a student left, leaving n students.
	Left(t model.RoomType, n int) bool
}

var (
	// CapacityPolicy keeps a reservation open while it is below its room's capacity.
	CapacityPolicy Policy = capacityPolicy{}

	// LegacyPolicy reproduces the historical rules: a new Simple reservation
	// starts closed, Double closes on any join, Triple closes at three and
	// leaving always reopens.
	LegacyPolicy Policy = legacyPolicy{}
)

type capacityPolicy struct{}

func (capacityPolicy) Opened(t model.RoomType, n int) bool { return IsStillOpen(t, n) }
func (capacityPolicy) Joined(t model.RoomType, n int, _ bool) bool { return IsStillOpen(t, n) }
func (capacityPolicy) Left(t model.RoomType, n int) bool { return IsStillOpen(t, n) }

type legacyPolicy struct{}

func (legacyPolicy) Opened(t model.RoomType, _ int) bool { return t != model.RoomSimple }

func (legacyPolicy) Joined(t model.RoomType, n int, valid bool) bool {
	switch t {
	case model.RoomTriple:
		if n == 3 {
			return false
		}
	case model.RoomDouble:
		return false
	}
	return valid
}

func (legacyPolicy) Left(model.RoomType, int) bool { return true }
