package homey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/easy-homey/internal/observability"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 30 * time.Second

// Warning types accepted by WeatherWarnings.
const (
	WarningTypeWarning = "WARNING"
	WarningTypeUpfront = "UPFRONT_INFORMATION"
)

// Client talks to the Easy Homey REST API. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *http.Client
	circuit *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *observability.Metrics
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records per-endpoint request outcomes.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for baseURL. A trailing slash on baseURL is ignored.
// A non-positive timeout selects DefaultTimeout.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		timeout: timeout,
		http:    &http.Client{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.circuit = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "easy-homey-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c
}

// BaseURL returns the normalised base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// PetrolStation fetches one station by id. Lookups bypass the circuit breaker:
// an unknown or broken station id must not take the other endpoints down.
func (c *Client) PetrolStation(ctx context.Context, stationID string) (*Station, error) {
	var out Station
	endpoint := "/patrol-stations/" + url.PathEscape(stationID)
	if err := c.request(ctx, false, "petrol_station", endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchPetrolStations lists stations within distance km of the coordinates.
func (c *Client) SearchPetrolStations(ctx context.Context, lat, lon, distance float64) ([]Station, error) {
	var out []Station
	if err := c.get(ctx, "petrol_stations_search", "/patrol-stations", coords(lat, lon, distance), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CheapestPetrolStation returns the cheapest station for petrolType within distance km.
func (c *Client) CheapestPetrolStation(ctx context.Context, lat, lon, distance float64, petrolType string) (*Station, error) {
	q := coords(lat, lon, distance)
	q.Set("petrolType", petrolType)
	var out Station
	if err := c.get(ctx, "petrol_stations_cheapest", "/patrol-stations/cheapest", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WeatherWarnings lists warnings for a warning cell. An empty warningType returns all types.
func (c *Client) WeatherWarnings(ctx context.Context, cellID, warningType string) (*WarningList, error) {
	q := url.Values{}
	q.Set("warningCellId", cellID)
	if warningType != "" {
		q.Set("weatherWarningType", warningType)
	}
	var out WarningList
	if err := c.get(ctx, "weather_warnings", "/weather/warnings", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PollenFlight returns the full pollen forecast.
func (c *Client) PollenFlight(ctx context.Context) (*PollenFlights, error) {
	var out PollenFlights
	if err := c.get(ctx, "pollen_flight", "/weather/pollen-flight", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HighestPollenFlight returns the most severe pollen flight.
func (c *Client) HighestPollenFlight(ctx context.Context) (*HighestPollen, error) {
	var out HighestPollen
	if err := c.get(ctx, "pollen_flight_highest", "/weather/pollen-flight/highest", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllWasteCollections returns every future collection, undecoded.
func (c *Client) AllWasteCollections(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	if err := c.get(ctx, "waste_collection", "/waste-collection", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpcomingWasteCollections returns the next collection per waste type.
func (c *Client) UpcomingWasteCollections(ctx context.Context) (*WasteSchedule, error) {
	var out WasteSchedule
	if err := c.get(ctx, "waste_collection_upcoming", "/waste-collection/upcoming-collections", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// NextWasteCollection returns the next collection day.
func (c *Client) NextWasteCollection(ctx context.Context) (*WasteSchedule, error) {
	var out WasteSchedule
	if err := c.get(ctx, "waste_collection_next", "/waste-collection/next-collection", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestConnection checks the API with a pollen forecast request.
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.PollenFlight(ctx); err != nil {
		c.logger.Error("connection test failed", "error", err)
		return err
	}
	return nil
}

func coords(lat, lon, distance float64) url.Values {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("distance", strconv.FormatFloat(distance, 'f', -1, 64))
	return q
}

// serverError marks 5xx responses inside the breaker so they count as failures.
type serverError struct {
	status int
	body   string
}

func (e *serverError) Error() string { return fmt.Sprintf("server error: %d", e.status) }

func (c *Client) get(ctx context.Context, name, endpoint string, query url.Values, out any) error {
	return c.request(ctx, true, name, endpoint, query, out)
}

func (c *Client) request(ctx context.Context, guarded bool, name, endpoint string, query url.Values, out any) (err error) {
	defer func() { c.observe(name, err) }()

	u := c.baseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	c.logger.Debug("api request", "endpoint", endpoint, "url", u)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &APIError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	send := func() (interface{}, error) {
		resp, doErr := c.http.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &serverError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
		}
		return resp, nil
	}

	var result interface{}
	if guarded {
		result, err = c.circuit.Execute(send)
	} else {
		result, err = send()
	}
	if err != nil {
		return classify(endpoint, err)
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return &APIError{Endpoint: endpoint, Message: "unexpected result type from circuit breaker"}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return &TimeoutError{Endpoint: endpoint, Err: err}
		}
		return &APIError{Endpoint: endpoint, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func classify(endpoint string, err error) error {
	var se *serverError
	switch {
	case errors.As(err, &se):
		return &APIError{Endpoint: endpoint, StatusCode: se.status, Message: se.body}
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return &ConnectionError{Endpoint: endpoint, Err: err}
	case isTimeout(err):
		return &TimeoutError{Endpoint: endpoint, Err: err}
	default:
		return &ConnectionError{Endpoint: endpoint, Err: err}
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) observe(name string, err error) {
	if c.metrics == nil {
		return
	}
	outcome := "success"
	var (
		ce *ConnectionError
		te *TimeoutError
	)
	switch {
	case err == nil:
	case errors.As(err, &te):
		outcome = "timeout"
	case errors.As(err, &ce):
		outcome = "connection"
	default:
		outcome = "api"
	}
	c.metrics.APIRequests.WithLabelValues(name, outcome).Inc()
}
