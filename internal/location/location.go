// Package location turns configured location references into coordinates.
//
// A reference is one of:
//
//	zone.home, person.anna, device_tracker.car   Home Assistant entity
//	48.137,11.575 or static:48.137,11.575        literal coordinates
//	address:Marienplatz 1, München, Germany      geocoded address
package location

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when the referenced entity does not exist.
	ErrNotFound = errors.New("location entity not found")
	// ErrNoCoordinates is returned when the entity exists but has no usable latitude/longitude.
	ErrNoCoordinates = errors.New("location entity has no coordinates")
	// ErrUnsupported is returned when no resolver is configured for a reference kind.
	ErrUnsupported = errors.New("location reference not supported")
)

// Coordinates is a latitude/longitude pair in degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Resolver resolves a location reference to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, ref string) (Coordinates, error)
}

const (
	staticPrefix  = "static:"
	addressPrefix = "address:"
)

// Router dispatches references to the resolver for their kind.
// Nil resolvers make that kind unsupported.
type Router struct {
	Entities  Resolver
	Addresses Resolver
}

// Resolve implements Resolver.
func (r *Router) Resolve(ctx context.Context, ref string) (Coordinates, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return Coordinates{}, ErrNotFound
	case strings.HasPrefix(ref, addressPrefix):
		if r.Addresses == nil {
			return Coordinates{}, ErrUnsupported
		}
		return r.Addresses.Resolve(ctx, strings.TrimPrefix(ref, addressPrefix))
	case strings.HasPrefix(ref, staticPrefix):
		return ParseStatic(strings.TrimPrefix(ref, staticPrefix))
	}
	if c, err := ParseStatic(ref); err == nil {
		return c, nil
	}
	if r.Entities == nil {
		return Coordinates{}, ErrUnsupported
	}
	return r.Entities.Resolve(ctx, ref)
}
