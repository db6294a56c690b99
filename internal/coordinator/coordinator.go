// Package coordinator polls the Easy Homey API per domain and holds the
// latest bundle for entities to read.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/i474232898/easy-homey/internal/observability"
)

// Coordinator names.
const (
	NamePetrol  = "petrol_station"
	NameWeather = "weather_warning"
	NamePollen  = "pollen_flight"
	NameWaste   = "waste_collection"
)

// ErrUpdateFailed matches every refresh failure.
var ErrUpdateFailed = errors.New("update failed")

// UpdateFailedError wraps the client error that aborted a refresh.
type UpdateFailedError struct {
	Coordinator string
	Err         error
}

func (e *UpdateFailedError) Error() string {
	return fmt.Sprintf("%s: error communicating with API: %v", e.Coordinator, e.Err)
}

func (e *UpdateFailedError) Unwrap() error        { return e.Err }
func (e *UpdateFailedError) Is(target error) bool { return target == ErrUpdateFailed }

// Result is the outcome of one refresh: either Data or Err is meaningful.
type Result[B any] struct {
	Data B
	Err  error
	At   time.Time
}

// OK reports whether the refresh succeeded.
func (r Result[B]) OK() bool { return r.Err == nil }

// FetchFunc produces a fresh bundle.
type FetchFunc[B any] func(ctx context.Context) (B, error)

// Status is a point-in-time view of a coordinator.
type Status struct {
	Name              string        `json:"name"`
	Interval          time.Duration `json:"interval"`
	LastUpdateSuccess bool          `json:"last_update_success"`
	LastUpdated       time.Time     `json:"last_updated"`
	LastAttempt       time.Time     `json:"last_attempt"`
	LastError         string        `json:"last_error,omitempty"`
}

// Runner is the type-erased view used by the scheduler and the HTTP API.
type Runner interface {
	Name() string
	Interval() time.Duration
	Run(ctx context.Context) error
	Status() Status
}

// Options are the shared dependencies of a coordinator. Zero values are replaced by defaults.
type Options struct {
	Clock   clockwork.Clock
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Coordinator runs FetchFunc on demand, keeps the last good bundle and
// notifies observers after every successful refresh.
type Coordinator[B any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[B]
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	// refreshMu serialises refreshes; mu guards the fields below.
	refreshMu sync.Mutex
	mu        sync.RWMutex

	data        B
	success     bool
	lastUpdated time.Time
	lastAttempt time.Time
	lastErr     error
	observers   map[int]func(Result[B])
	onFailure   map[int]func(error)
	nextID      int
}

// New creates a coordinator. Until the first successful refresh it reports failure.
func New[B any](name string, interval time.Duration, fetch FetchFunc[B], opts Options) *Coordinator[B] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Coordinator[B]{
		name:      name,
		interval:  interval,
		fetch:     fetch,
		clock:     opts.Clock,
		logger:    opts.Logger.With("coordinator", name),
		metrics:   opts.Metrics,
		observers: make(map[int]func(Result[B])),
		onFailure: make(map[int]func(error)),
	}
}

func (c *Coordinator[B]) Name() string            { return c.name }
func (c *Coordinator[B]) Interval() time.Duration { return c.interval }

// Refresh fetches a new bundle. On failure the previous bundle is kept
// but LastUpdateSuccess turns false.
func (c *Coordinator[B]) Refresh(ctx context.Context) Result[B] {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	start := c.clock.Now()
	data, err := c.fetch(ctx)
	now := c.clock.Now()
	c.observe(now.Sub(start), err)

	if err != nil {
		err = &UpdateFailedError{Coordinator: c.name, Err: err}
		c.mu.Lock()
		c.success = false
		c.lastAttempt = now
		c.lastErr = err
		res := Result[B]{Data: c.data, Err: err, At: now}
		hooks := snapshot(c.onFailure)
		c.mu.Unlock()
		c.logger.Warn("refresh failed", "error", err)
		notify(hooks, err)
		return res
	}

	c.mu.Lock()
	c.data = data
	c.success = true
	c.lastUpdated = now
	c.lastAttempt = now
	c.lastErr = nil
	observers := snapshot(c.observers)
	c.mu.Unlock()

	c.logger.Debug("refresh succeeded", "duration", now.Sub(start))
	res := Result[B]{Data: data, At: now}
	notify(observers, res)
	return res
}

// snapshot must be called with mu held.
func snapshot[T any](fns map[int]func(T)) []func(T) {
	out := make([]func(T), 0, len(fns))
	for _, fn := range fns {
		out = append(out, fn)
	}
	return out
}

func notify[T any](fns []func(T), v T) {
	for _, fn := range fns {
		fn(v)
	}
}

// Run implements Runner.
func (c *Coordinator[B]) Run(ctx context.Context) error {
	return c.Refresh(ctx).Err
}

// Data returns the current bundle, which may be stale after a failed refresh.
func (c *Coordinator[B]) Data() B {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[B]) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.success
}

// Status implements Runner.
func (c *Coordinator[B]) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Status{
		Name:              c.name,
		Interval:          c.interval,
		LastUpdateSuccess: c.success,
		LastUpdated:       c.lastUpdated,
		LastAttempt:       c.lastAttempt,
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Subscribe registers fn to be called after each successful refresh.
// It returns an unsubscribe func.
func (c *Coordinator[B]) Subscribe(fn func(Result[B])) func() {
	return register(c, c.observers, fn)
}

// OnFailure registers fn to be called with the error of each failed refresh.
// It returns an unsubscribe func.
func (c *Coordinator[B]) OnFailure(fn func(error)) func() {
	return register(c, c.onFailure, fn)
}

func register[B, T any](c *Coordinator[B], fns map[int]func(T), fn func(T)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	fns[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(fns, id)
		c.mu.Unlock()
	}
}

func (c *Coordinator[B]) observe(d time.Duration, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.metrics.Refreshes.WithLabelValues(c.name, outcome).Inc()
	c.metrics.RefreshDuration.WithLabelValues(c.name).Observe(d.Seconds())
	if err == nil {
		c.metrics.LastSuccess.WithLabelValues(c.name).Set(float64(c.clock.Now().Unix()))
	}
}
