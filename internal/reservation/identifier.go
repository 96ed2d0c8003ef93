package reservation

import "fmt"

// GenerateID builds the reservation identifier from the room id, the bloc
// name and the academic year, with no separators. It does not check for
// collisions.
func GenerateID(roomID int64, blocName string, year int) string {
	return fmt.Sprintf("%d%s%d", roomID, blocName, year)
}

// withSuffix disambiguates the n-th attempt at storing id. The first attempt
// keeps id unchanged.
func withSuffix(id string, attempt int) string {
	if attempt <= 1 {
		return id
	}
	return fmt.Sprintf("%s-%d", id, attempt)
}
