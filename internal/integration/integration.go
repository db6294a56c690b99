// Package integration assembles the API client, coordinators, entities and
// scheduler for one configuration entry and rebuilds them on reload.
package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/entity"
	"github.com/i474232898/easy-homey/internal/homey"
	"github.com/i474232898/easy-homey/internal/location"
	"github.com/i474232898/easy-homey/internal/observability"
	"github.com/i474232898/easy-homey/internal/scheduler"
	"github.com/i474232898/easy-homey/internal/store"
)

var (
	// ErrNotLoaded is returned when the integration is not set up.
	ErrNotLoaded = errors.New("integration not loaded")
	// ErrUnknownCoordinator is returned for a coordinator name that does not exist.
	ErrUnknownCoordinator = errors.New("unknown coordinator")
)

const publishTimeout = 10 * time.Second

// Sink receives the rendered states of a coordinator's entities after every refresh.
type Sink interface {
	Name() string
	Publish(ctx context.Context, device entity.Device, states []entity.State) error
}

// Deps are the process-wide dependencies shared across reloads.
type Deps struct {
	EntryID    string
	APITimeout time.Duration
	Resolver   location.Resolver
	Store      *store.MemoryStore
	Sinks      []Sink
	Metrics    *observability.Metrics
	Logger     *slog.Logger
	Clock      clockwork.Clock
	HTTPClient *http.Client
}

// Integration is one configuration entry. It is safe for concurrent use.
type Integration struct {
	deps   Deps
	device entity.Device
	logger *slog.Logger

	mu   sync.RWMutex
	inst *instance
}

type instance struct {
	settings  config.Settings
	// client serves requests outside the coordinators.
	client    *homey.Client
	runners   []coordinator.Runner
	hub       *entity.Hub
	scheduler *scheduler.Scheduler
	unwatch   []func()
}

// New creates an unloaded integration.
func New(deps Deps) *Integration {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.Store == nil {
		deps.Store = store.NewMemoryStore(0, 0)
	}
	return &Integration{
		deps:   deps,
		device: entity.NewDevice(deps.EntryID),
		logger: deps.Logger.With("entry_id", deps.EntryID),
	}
}

// NewClient builds an API client for s with the integration's transport settings.
func (i *Integration) NewClient(s config.Settings) *homey.Client {
	opts := []homey.Option{homey.WithLogger(i.deps.Logger), homey.WithMetrics(i.deps.Metrics)}
	if i.deps.HTTPClient != nil {
		opts = append(opts, homey.WithHTTPClient(i.deps.HTTPClient))
	}
	return homey.NewClient(s.BaseURL, s.APIKey, i.deps.APITimeout, opts...)
}

// Setup builds the coordinators and entities for s, runs the first refresh of
// every coordinator and starts the scheduler. A failed first refresh leaves
// its entities unavailable until a later refresh succeeds.
func (i *Integration) Setup(ctx context.Context, s config.Settings) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.inst != nil {
		return errors.New("integration already loaded")
	}
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	inst := i.build(s)

	var wg sync.WaitGroup
	for _, r := range inst.runners {
		wg.Add(1)
		go func(r coordinator.Runner) {
			defer wg.Done()
			if err := r.Run(ctx); err != nil {
				i.logger.Warn("first refresh failed", "coordinator", r.Name(), "error", err)
			}
		}(r)
	}
	wg.Wait()

	if err := inst.scheduler.Start(); err != nil {
		inst.teardown()
		return fmt.Errorf("start scheduler: %w", err)
	}

	keep := make(map[string]bool)
	for _, e := range inst.hub.Entities() {
		keep[e.UniqueID()] = true
	}
	i.deps.Store.Forget(keep)

	i.inst = inst
	i.logger.Info("integration loaded", "entities", len(keep), "coordinators", len(inst.runners))
	return nil
}

func (i *Integration) build(s config.Settings) *instance {
	opts := coordinator.Options{Clock: i.deps.Clock, Logger: i.deps.Logger, Metrics: i.deps.Metrics}

	// Each coordinator gets its own client so one failing endpoint cannot
	// trip the breaker of another.
	fuelSrc := coordinator.NewFuelSource(i.NewClient(s), i.deps.Resolver, s, i.deps.Logger)
	fuel := coordinator.New(coordinator.NamePetrol, s.PetrolEvery(), fuelSrc.Fetch, opts)
	weather := coordinator.New(coordinator.NameWeather, s.WeatherEvery(), coordinator.WeatherFetch(i.NewClient(s), s.WarningCellID), opts)
	pollen := coordinator.New(coordinator.NamePollen, s.PollenEvery(), coordinator.PollenFetch(i.NewClient(s)), opts)
	waste := coordinator.New(coordinator.NameWaste, s.WasteEvery(), coordinator.WasteFetch(i.NewClient(s)), opts)

	entryID := i.deps.EntryID
	hub := entity.NewHub(
		entity.Bind(entryID, fuel, entity.FuelDescriptors(config.PetrolTypes, s.UserLocations, s.StationIDs)),
		entity.Bind(entryID, weather, entity.WeatherDescriptors()),
		entity.Bind(entryID, pollen, entity.PollenDescriptors()),
		entity.Bind(entryID, waste, entity.WasteDescriptors()),
	)

	inst := &instance{
		settings: s,
		client:   i.NewClient(s),
		runners:  []coordinator.Runner{fuel, weather, pollen, waste},
		hub:      hub,
	}
	inst.unwatch = []func(){
		watch(i, inst, fuel),
		watch(i, inst, weather),
		watch(i, inst, pollen),
		watch(i, inst, waste),
	}
	inst.scheduler = scheduler.New(inst.runners, i.deps.Logger)
	return inst
}

// watch publishes after every refresh. A failed one renders the entities
// unavailable, since the coordinator reports failure.
func watch[B any](i *Integration, inst *instance, c *coordinator.Coordinator[B]) func() {
	unsubscribe := c.Subscribe(func(coordinator.Result[B]) {
		i.publish(inst, c.Name())
	})
	unhook := c.OnFailure(func(error) {
		i.publish(inst, c.Name())
	})
	return func() {
		unsubscribe()
		unhook()
	}
}

// publish renders the coordinator's entities and hands them to the store,
// the entity metrics and every sink.
func (i *Integration) publish(inst *instance, name string) {
	entities := inst.hub.ByCoordinator(name)
	states := make([]entity.State, 0, len(entities))
	for _, e := range entities {
		st := e.State()
		states = append(states, st)
		i.deps.Store.SaveState(st)
		i.observe(st)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	for _, sink := range i.deps.Sinks {
		if err := sink.Publish(ctx, i.device, states); err != nil {
			i.logger.Warn("publish failed", "sink", sink.Name(), "coordinator", name, "error", err)
			if i.deps.Metrics != nil {
				i.deps.Metrics.PublishErrors.WithLabelValues(sink.Name()).Inc()
			}
		}
	}
}

func (i *Integration) observe(st entity.State) {
	m := i.deps.Metrics
	if m == nil {
		return
	}
	avail := 0.0
	if st.Available {
		avail = 1
	}
	m.EntityAvailable.WithLabelValues(st.UniqueID).Set(avail)

	switch v := st.Value.(type) {
	case float64:
		m.EntityValue.WithLabelValues(st.UniqueID).Set(v)
	case int:
		m.EntityValue.WithLabelValues(st.UniqueID).Set(float64(v))
	case bool:
		if v {
			m.EntityValue.WithLabelValues(st.UniqueID).Set(1)
		} else {
			m.EntityValue.WithLabelValues(st.UniqueID).Set(0)
		}
	}
}

// Unload stops the scheduler and detaches all observers. It is a no-op when not loaded.
func (i *Integration) Unload() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.inst == nil {
		return
	}
	i.inst.teardown()
	i.inst = nil
	i.logger.Info("integration unloaded")
}

func (inst *instance) teardown() {
	inst.scheduler.Stop()
	for _, fn := range inst.unwatch {
		fn()
	}
}

// Reload replaces the running entry with one built from s.
func (i *Integration) Reload(ctx context.Context, s config.Settings) error {
	i.Unload()
	return i.Setup(ctx, s)
}

// Device returns the device all entities belong to.
func (i *Integration) Device() entity.Device { return i.device }

// Store returns the entity state history.
func (i *Integration) Store() *store.MemoryStore { return i.deps.Store }

// Hub returns the current entities.
func (i *Integration) Hub() (*entity.Hub, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.inst == nil {
		return nil, ErrNotLoaded
	}
	return i.inst.hub, nil
}

// Client returns the current API client.
func (i *Integration) Client() (*homey.Client, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.inst == nil {
		return nil, ErrNotLoaded
	}
	return i.inst.client, nil
}

// Settings returns the settings the running entry was built from.
func (i *Integration) Settings() (config.Settings, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.inst == nil {
		return config.Settings{}, ErrNotLoaded
	}
	return i.inst.settings, nil
}

// Coordinators returns the status of every coordinator.
func (i *Integration) Coordinators() ([]coordinator.Status, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.inst == nil {
		return nil, ErrNotLoaded
	}
	out := make([]coordinator.Status, 0, len(i.inst.runners))
	for _, r := range i.inst.runners {
		out = append(out, r.Status())
	}
	return out, nil
}

// Refresh runs the named coordinator now and returns its status afterwards.
// A failed refresh is reported through the status, not the error.
func (i *Integration) Refresh(ctx context.Context, name string) (coordinator.Status, error) {
	i.mu.RLock()
	var runner coordinator.Runner
	if i.inst != nil {
		for _, r := range i.inst.runners {
			if r.Name() == name {
				runner = r
			}
		}
	}
	loaded := i.inst != nil
	i.mu.RUnlock()

	if !loaded {
		return coordinator.Status{}, ErrNotLoaded
	}
	if runner == nil {
		return coordinator.Status{}, fmt.Errorf("%w: %s", ErrUnknownCoordinator, name)
	}
	if err := runner.Run(ctx); err != nil {
		i.logger.Warn("manual refresh failed", "coordinator", name, "error", err)
	}
	return runner.Status(), nil
}
