package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/entity"
	"github.com/i474232898/easy-homey/internal/location"
	"github.com/i474232898/easy-homey/internal/observability"
	"github.com/i474232898/easy-homey/internal/store"
)

type fakeAPI struct {
	failPollen atomic.Bool
	calls      atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	path := strings.TrimPrefix(r.URL.Path, "/v1")
	var body string
	switch {
	case path == "/weather/pollen-flight":
		if f.failPollen.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body = `{"regionName":"Brandenburg","flights":[{"pollenType":"BIRCH","today":{"severityType":"MEDIUM","severityLevel":2}}]}`
	case path == "/weather/pollen-flight/highest":
		body = `{"highestSeverity":{"pollenType":"BIRCH","today":{"severityType":"MEDIUM","severityLevel":2}}}`
	case path == "/weather/warnings":
		if r.URL.Query().Get("weatherWarningType") == "WARNING" {
			body = `{"count":1,"warnings":[{"warningId":"w1","details":{"severity":{"severity":"MODERATE","severityLevel":2}}}]}`
		} else {
			body = `{"count":0,"warnings":[]}`
		}
	case path == "/waste-collection/upcoming-collections":
		body = `{"scheduledCollections":[{"wasteType":"PAPER","scheduledOn":"2026-05-07"}]}`
	case path == "/waste-collection/next-collection":
		body = `{"scheduledOn":"2026-05-07","scheduledCollections":[{"wasteType":"PAPER"}]}`
	case path == "/patrol-stations/cheapest":
		body = `{"stationId":"c1","prices":[{"petrolType":"` + r.URL.Query().Get("petrolType") + `","price":1.5}]}`
	case path == "/patrol-stations":
		body = `[{"stationId":"n1","location":{"distance":2.5}},{"stationId":"n2","location":{"distance":0.8}}]`
	case strings.HasPrefix(path, "/patrol-stations/bad"):
		w.WriteHeader(http.StatusInternalServerError)
		return
	case strings.HasPrefix(path, "/patrol-stations/"):
		id := strings.TrimPrefix(path, "/patrol-stations/")
		body = `{"stationId":"` + id + `","name":"Station ` + id + `","status":"OPEN"}`
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}

type recordingSink struct {
	mu     sync.Mutex
	states map[string]entity.State
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(_ context.Context, _ entity.Device, states []entity.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range states {
		s.states[st.UniqueID] = st
	}
	return nil
}

func settings(baseURL string) config.Settings {
	return config.Settings{
		BaseURL:          baseURL + "/v1",
		LocationEntityID: "52.52,13.40",
		WarningCellID:    "809177119",
		SearchRadius:     10,
		PetrolType:       "E5",
		PetrolInterval:   5,
		WeatherInterval:  10,
		PollenInterval:   30,
		WasteInterval:    30,
		StationIDs:       []string{"s-1"},
	}
}

func newIntegration(t *testing.T) (*Integration, *fakeAPI, *httptest.Server, *recordingSink, *observability.Metrics) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	sink := &recordingSink{states: make(map[string]entity.State)}
	metrics := observability.NewMetricsForTesting()
	in := New(Deps{
		EntryID:  "entry1",
		Resolver: &location.Router{},
		Store:    store.NewMemoryStore(10, 0),
		Sinks:    []Sink{sink},
		Metrics:  metrics,
	})
	t.Cleanup(in.Unload)
	return in, api, srv, sink, metrics
}

func TestSetup_FirstRefreshPopulatesEntities(t *testing.T) {
	in, _, srv, sink, metrics := newIntegration(t)
	require.NoError(t, in.Setup(context.Background(), settings(srv.URL)))

	hub, err := in.Hub()
	require.NoError(t, err)

	e, ok := hub.Get("entry1_nearest_station")
	require.True(t, ok)
	st := e.State()
	assert.True(t, st.Available)
	assert.Equal(t, 0.8, st.Value)

	e, ok = hub.Get("entry1_station_s_1")
	require.True(t, ok)
	assert.Equal(t, "Station s-1", e.State().Name)

	e, ok = hub.Get("entry1_current_weather_warning")
	require.True(t, ok)
	assert.Equal(t, "MODERATE", e.State().Value)

	statuses, err := in.Coordinators()
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	for _, s := range statuses {
		assert.True(t, s.LastUpdateSuccess, s.Name)
	}

	latest, err := in.Store().GetLatest("entry1_pollen_birch")
	require.NoError(t, err)
	assert.Equal(t, "MEDIUM", latest.Value)

	sink.mu.Lock()
	assert.Len(t, sink.states, len(hub.Entities()))
	sink.mu.Unlock()

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EntityAvailable.WithLabelValues("entry1_pollen_birch")), 0)
	assert.InDelta(t, 1.5, testutil.ToFloat64(metrics.EntityValue.WithLabelValues("entry1_cheapest_station_e5")), 0)
}

func TestRefresh_FailureMarksEntitiesUnavailable(t *testing.T) {
	in, api, srv, sink, _ := newIntegration(t)
	require.NoError(t, in.Setup(context.Background(), settings(srv.URL)))

	api.failPollen.Store(true)
	status, err := in.Refresh(context.Background(), coordinator.NamePollen)
	require.NoError(t, err)
	assert.False(t, status.LastUpdateSuccess)
	assert.NotEmpty(t, status.LastError)

	sink.mu.Lock()
	assert.False(t, sink.states["entry1_pollen_birch"].Available)
	sink.mu.Unlock()

	_, err = in.Refresh(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownCoordinator)
}

func TestReload_RebuildsEntities(t *testing.T) {
	in, _, srv, _, _ := newIntegration(t)
	require.NoError(t, in.Setup(context.Background(), settings(srv.URL)))
	require.Error(t, in.Setup(context.Background(), settings(srv.URL)))

	s := settings(srv.URL)
	s.StationIDs = []string{"s-2"}
	s.UserLocations = []config.UserLocation{{Name: "Anna", EntityID: "52.40,13.30"}}
	require.NoError(t, in.Reload(context.Background(), s))

	hub, err := in.Hub()
	require.NoError(t, err)
	_, ok := hub.Get("entry1_station_s_1")
	assert.False(t, ok)
	_, ok = hub.Get("entry1_station_s_2")
	assert.True(t, ok)
	e, ok := hub.Get("entry1_nearest_station_anna")
	require.True(t, ok)
	assert.True(t, e.State().Available)

	_, err = in.Store().GetLatest("entry1_station_s_1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := in.Settings()
	require.NoError(t, err)
	assert.Equal(t, []string{"s-2"}, got.StationIDs)
}

func TestUnload(t *testing.T) {
	in, _, srv, _, _ := newIntegration(t)
	require.NoError(t, in.Setup(context.Background(), settings(srv.URL)))
	in.Unload()
	in.Unload()

	_, err := in.Hub()
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = in.Refresh(context.Background(), coordinator.NamePollen)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestSetup_UnreachableAPIStillLoads(t *testing.T) {
	in, _, srv, _, _ := newIntegration(t)
	s := settings(srv.URL)
	srv.Close()

	require.NoError(t, in.Setup(context.Background(), s))
	statuses, err := in.Coordinators()
	require.NoError(t, err)
	for _, st := range statuses {
		assert.False(t, st.LastUpdateSuccess, st.Name)
	}

	hub, err := in.Hub()
	require.NoError(t, err)
	for _, st := range hub.States() {
		assert.False(t, st.Available, st.UniqueID)
		_, err := json.Marshal(st)
		assert.NoError(t, err)
	}
}

func TestRefresh_BrokenStationsDoNotAffectOtherCoordinators(t *testing.T) {
	in, _, srv, _, _ := newIntegration(t)
	s := settings(srv.URL)
	s.StationIDs = []string{"s-1", "bad1", "bad2", "bad3", "bad4", "bad5", "bad6"}
	require.NoError(t, in.Setup(context.Background(), s))

	for n := 0; n < 2; n++ {
		status, err := in.Refresh(context.Background(), coordinator.NamePetrol)
		require.NoError(t, err)
		assert.True(t, status.LastUpdateSuccess, status.LastError)
	}

	for _, name := range []string{coordinator.NameWeather, coordinator.NamePollen, coordinator.NameWaste} {
		status, err := in.Refresh(context.Background(), name)
		require.NoError(t, err)
		assert.True(t, status.LastUpdateSuccess, "%s: %s", name, status.LastError)
	}

	hub, err := in.Hub()
	require.NoError(t, err)
	e, ok := hub.Get("entry1_station_s_1")
	require.True(t, ok)
	assert.True(t, e.State().Available)
	e, ok = hub.Get("entry1_station_bad1")
	require.True(t, ok)
	assert.False(t, e.State().Available)
	e, ok = hub.Get("entry1_cheapest_station_e5")
	require.True(t, ok)
	assert.True(t, e.State().Available)
}
