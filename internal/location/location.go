// Package location holds the campus location registry: pillars, study areas
// and common areas, with their live occupant count and crowd level.
package location

import (
	"fmt"
	"time"

	"github.com/onnwee/campusconnect/internal/apperr"
)

// ErrLocationNotFound is returned for unknown or inactive locations.
var ErrLocationNotFound = fmt.Errorf("%w: location not found", apperr.ErrNotFound)

// Zone is the campus zone a location belongs to.
type Zone string

const (
	ZoneA         Zone = "A"
	ZoneB         Zone = "B"
	ZoneC         Zone = "C"
	ZoneFreeSpace Zone = "FS"
)

// Type classifies a location.
type Type string

const (
	TypePillar     Type = "pillar"
	TypeStudyArea  Type = "study_area"
	TypeCommonArea Type = "common_area"
)

// CrowdLevel is how busy a location is, as reported by recent reviews.
type CrowdLevel string

const (
	CrowdLight    CrowdLevel = "light"
	CrowdModerate CrowdLevel = "moderate"
	CrowdHeavy    CrowdLevel = "heavy"
)

// ErrInvalidCrowdLevel is returned by ParseCrowdLevel.
var ErrInvalidCrowdLevel = fmt.Errorf("%w: invalid crowd level", apperr.ErrInvalidInput)

// Valid reports whether c is one of the known levels.
func (c CrowdLevel) Valid() bool {
	switch c {
	case CrowdLight, CrowdModerate, CrowdHeavy:
		return true
	}
	return false
}

// ParseCrowdLevel converts a form value into a CrowdLevel.
func ParseCrowdLevel(s string) (CrowdLevel, error) {
	c := CrowdLevel(s)
	if !c.Valid() {
		return "", ErrInvalidCrowdLevel
	}
	return c, nil
}

// Location is a named place on campus.
type Location struct {
	ID              string     `json:"id"`
	Zone            Zone       `json:"zone"`
	Number          *int       `json:"number,omitempty"`
	Name            string     `json:"name"`
	Type            Type       `json:"type"`
	SeatingCapacity int        `json:"seating_capacity"`
	PowerOutlets    int        `json:"power_outlets"`
	WiFi            bool       `json:"wifi_available"`
	FreeSpace       bool       `json:"free_space_available"`
	Active          bool       `json:"is_active"`
	ActiveUsers     int        `json:"active_users_count"`
	CrowdLevel      CrowdLevel `json:"crowd_level"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
