package location

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kelvins/geocoder"
)

// Geocoder resolves free-form addresses with the Google geocoding API.
// Results are cached for the life of the process.
type Geocoder struct {
	geocode func(geocoder.Address) (geocoder.Location, error)

	mu    sync.Mutex
	cache map[string]Coordinates
}

// NewGeocoder creates an address resolver. geocoder.ApiKey is process-wide.
func NewGeocoder(apiKey string) *Geocoder {
	geocoder.ApiKey = apiKey
	return &Geocoder{
		geocode: geocoder.Geocoding,
		cache:   make(map[string]Coordinates),
	}
}

// Resolve implements Resolver. The address is "street, city[, country]".
func (g *Geocoder) Resolve(_ context.Context, address string) (Coordinates, error) {
	key := strings.ToLower(strings.TrimSpace(address))
	if key == "" {
		return Coordinates{}, fmt.Errorf("%w: empty address", ErrNoCoordinates)
	}

	g.mu.Lock()
	c, ok := g.cache[key]
	g.mu.Unlock()
	if ok {
		return c, nil
	}

	loc, err := g.geocode(parseAddress(address))
	if err != nil {
		return Coordinates{}, fmt.Errorf("%w: geocode %q: %v", ErrNoCoordinates, address, err)
	}
	c = Coordinates{Latitude: loc.Latitude, Longitude: loc.Longitude}

	g.mu.Lock()
	g.cache[key] = c
	g.mu.Unlock()
	return c, nil
}

func parseAddress(s string) geocoder.Address {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	var a geocoder.Address
	switch len(parts) {
	case 1:
		a.Street = parts[0]
	case 2:
		a.Street, a.City = parts[0], parts[1]
	default:
		a.Street, a.City, a.Country = parts[0], strings.Join(parts[1:len(parts)-1], ", "), parts[len(parts)-1]
	}
	return a
}
