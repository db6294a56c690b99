// Package entity renders coordinator bundles as sensor and binary sensor states.
package entity

import (
	"sort"
	"time"
)

// Platform is the kind of entity.
type Platform string

const (
	PlatformSensor       Platform = "sensor"
	PlatformBinarySensor Platform = "binary_sensor"
)

const (
	Manufacturer = "isal"
	Model        = "Easy Homey API Integration"
	DeviceName   = "isal Easy Homey"
)

// Device groups all entities of one integration entry.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// NewDevice returns the device for entryID.
func NewDevice(entryID string) Device {
	return Device{
		Identifiers:  []string{entryID},
		Name:         DeviceName,
		Manufacturer: Manufacturer,
		Model:        Model,
	}
}

// State is a rendered entity.
type State struct {
	UniqueID    string         `json:"unique_id"`
	Key         string         `json:"key"`
	Name        string         `json:"name"`
	Platform    Platform       `json:"platform"`
	Coordinator string         `json:"coordinator"`
	DeviceClass string         `json:"device_class,omitempty"`
	Unit        string         `json:"unit_of_measurement,omitempty"`
	StateClass  string         `json:"state_class,omitempty"`
	Icon        string         `json:"icon,omitempty"`
	Value       any            `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	Available   bool           `json:"available"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Descriptor describes one entity over bundle type B. Every func must
// accept a zero B without panicking. Nil funcs fall back to the static fields.
type Descriptor[B any] struct {
	Key         string
	Name        string
	Platform    Platform
	DeviceClass string
	Unit        string
	StateClass  string
	Icon        string

	Value      func(B) any
	Attributes func(B) map[string]any
	IconFn     func(B) string
	NameFn     func(B) string
	Available  func(B) bool
}

// Source is the coordinator side an entity reads from.
type Source[B any] interface {
	Name() string
	Data() B
	LastUpdateSuccess() bool
}

// Entity is a descriptor bound to its coordinator.
type Entity interface {
	UniqueID() string
	Key() string
	Coordinator() string
	State() State
}

type bound[B any] struct {
	uniqueID string
	desc     Descriptor[B]
	src      Source[B]
}

// Bind binds descriptors to src. Unique ids are "{entryID}_{key}".
func Bind[B any](entryID string, src Source[B], descs []Descriptor[B]) []Entity {
	out := make([]Entity, 0, len(descs))
	for _, d := range descs {
		out = append(out, &bound[B]{
			uniqueID: entryID + "_" + d.Key,
			desc:     d,
			src:      src,
		})
	}
	return out
}

func (e *bound[B]) UniqueID() string    { return e.uniqueID }
func (e *bound[B]) Key() string         { return e.desc.Key }
func (e *bound[B]) Coordinator() string { return e.src.Name() }

// State renders the entity from the coordinator's current bundle. It is
// available only when the last refresh succeeded and the descriptor agrees.
func (e *bound[B]) State() State {
	return Render(e.uniqueID, e.src.Name(), e.desc, e.src.Data(), e.src.LastUpdateSuccess())
}

// Render applies d to data.
func Render[B any](uniqueID, coordinator string, d Descriptor[B], data B, lastUpdateSuccess bool) State {
	st := State{
		UniqueID:    uniqueID,
		Key:         d.Key,
		Name:        d.Name,
		Platform:    d.Platform,
		Coordinator: coordinator,
		DeviceClass: d.DeviceClass,
		Unit:        d.Unit,
		StateClass:  d.StateClass,
		Icon:        d.Icon,
		Available:   lastUpdateSuccess,
		UpdatedAt:   clock.Now(),
	}
	if st.Platform == "" {
		st.Platform = PlatformSensor
	}
	if d.NameFn != nil {
		st.Name = d.NameFn(data)
	}
	if d.Value != nil {
		st.Value = d.Value(data)
	}
	if d.Attributes != nil {
		st.Attributes = d.Attributes(data)
	}
	if d.IconFn != nil {
		st.Icon = d.IconFn(data)
	}
	if st.Available && d.Available != nil {
		st.Available = d.Available(data)
	}
	return st
}

// Hub is the fixed set of entities of one integration entry.
type Hub struct {
	entities []Entity
	byID     map[string]Entity
}

// NewHub creates a hub over entities.
func NewHub(entities ...[]Entity) *Hub {
	h := &Hub{byID: make(map[string]Entity)}
	for _, group := range entities {
		for _, e := range group {
			h.entities = append(h.entities, e)
			h.byID[e.UniqueID()] = e
		}
	}
	return h
}

// Get returns the entity with uniqueID.
func (h *Hub) Get(uniqueID string) (Entity, bool) {
	e, ok := h.byID[uniqueID]
	return e, ok
}

// Entities returns all entities in registration order.
func (h *Hub) Entities() []Entity {
	return append([]Entity(nil), h.entities...)
}

// ByCoordinator returns the entities fed by the named coordinator.
func (h *Hub) ByCoordinator(name string) []Entity {
	var out []Entity
	for _, e := range h.entities {
		if e.Coordinator() == name {
			out = append(out, e)
		}
	}
	return out
}

// States renders every entity, sorted by unique id.
func (h *Hub) States() []State {
	entities := h.Entities()
	out := make([]State, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.State())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UniqueID < out[j].UniqueID })
	return out
}
