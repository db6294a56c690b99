package location

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseStatic parses "lat,lon".
func ParseStatic(s string) (Coordinates, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return Coordinates{}, fmt.Errorf("%w: %q is not lat,lon", ErrNoCoordinates, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: latitude: %v", ErrNoCoordinates, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: longitude: %v", ErrNoCoordinates, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Coordinates{}, fmt.Errorf("%w: %q out of range", ErrNoCoordinates, s)
	}
	return Coordinates{Latitude: lat, Longitude: lon}, nil
}
