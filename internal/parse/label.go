package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	spaceRe  = regexp.MustCompile(`\s+`)
	numberRe = regexp.MustCompile(`(?:-\s*|\s)(\d+)\s*$`)
	floorRe  = regexp.MustCompile(`(?i)(?:^|[\s#])(\d+)\s*F?\s*$`)
	prefixRe = regexp.MustCompile(`(?i)^bloc\s+`)
)

// RoomLabel holds the structured data parsed from a registry room label.
type RoomLabel struct {
	Bloc   string
	Floor  int
	Number int64
}

// ParseRoomLabel extracts bloc, floor and room number from labels such as
// "B1-104", "A#2-05", "Bloc C 3-12" or "Bloc C 3". The room number is the
// trailing digits after a dash or a space. A three-digit room number without
// an explicit floor carries the floor in its hundreds. floorCode is used when
// the label itself holds no floor.
func ParseRoomLabel(raw string, floorCode string) (RoomLabel, error) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), "#", " ")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	s = prefixRe.ReplaceAllString(s, "")

	loc := numberRe.FindStringSubmatchIndex(s)
	if loc == nil {
		return RoomLabel{}, fmt.Errorf("unable to parse room number from label: %q", raw)
	}
	number, err := strconv.ParseInt(s[loc[2]:loc[3]], 10, 64)
	if err != nil {
		return RoomLabel{}, fmt.Errorf("invalid room number in label %q: %w", raw, err)
	}
	s = strings.TrimSpace(s[:loc[0]])

	floor := 0
	bloc := s
	if loc := floorRe.FindStringSubmatchIndex(s); loc != nil && loc[0] > 0 {
		if n, err := strconv.Atoi(s[loc[2]:loc[3]]); err == nil {
			floor = n
			bloc = strings.TrimSpace(s[:loc[0]])
		}
	}

	if floor == 0 && floorCode != "" {
		if f, err := strconv.Atoi(floorCode); err == nil {
			floor = f
		}
	}
	if floor == 0 && number >= 100 {
		floor = int(number / 100)
	}

	if bloc == "" {
		return RoomLabel{}, fmt.Errorf("unable to parse bloc from label: %q", raw)
	}

	return RoomLabel{Bloc: bloc, Floor: floor, Number: number}, nil
}
