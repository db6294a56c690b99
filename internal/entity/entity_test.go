package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/homey"
)

type fakeSource[B any] struct {
	name string
	data B
	ok   bool
}

func (f *fakeSource[B]) Name() string            { return f.name }
func (f *fakeSource[B]) Data() B                 { return f.data }
func (f *fakeSource[B]) LastUpdateSuccess() bool { return f.ok }

func ptr[T any](v T) *T { return &v }

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { SetClock(clockwork.NewRealClock()) })
}

func stateByKey(t *testing.T, entities []Entity, key string) State {
	t.Helper()
	for _, e := range entities {
		if e.Key() == key {
			return e.State()
		}
	}
	require.Failf(t, "entity not found", "key %q", key)
	return State{}
}

func TestBind_UniqueIDsAndAvailability(t *testing.T) {
	src := &fakeSource[coordinator.FuelBundle]{name: coordinator.NamePetrol}
	entities := Bind("entry1", src, FuelDescriptors(config.PetrolTypes, nil, nil))

	require.Len(t, entities, 4)
	assert.Equal(t, "entry1_nearest_station", entities[0].UniqueID())
	assert.Equal(t, coordinator.NamePetrol, entities[0].Coordinator())

	st := entities[0].State()
	assert.False(t, st.Available)
	assert.Nil(t, st.Value)

	src.ok = true
	src.data = coordinator.FuelBundle{NearestStation: &homey.Station{
		StationID: "s1",
		Location:  &homey.StationLocation{Distance: ptr(1.2)},
	}}
	st = entities[0].State()
	assert.True(t, st.Available)
	assert.Equal(t, 1.2, st.Value)
	assert.Equal(t, "km", st.Unit)
}

func TestCheapestStation_MissingFuelPrice(t *testing.T) {
	src := &fakeSource[coordinator.FuelBundle]{name: coordinator.NamePetrol, ok: true, data: coordinator.FuelBundle{
		CheapestStations: map[string]*homey.Station{
			"E5": {
				StationID: "s1",
				Name:      "Aral",
				Address:   &homey.Address{Street: "Hauptstr.", HouseNumber: "5", PostalCode: "10115", City: "Berlin"},
				Prices: []homey.Price{
					{PetrolType: "E5", Price: ptr(1.659)},
					{PetrolType: "E10", Price: ptr(1.599)},
				},
			},
		},
	}}
	entities := Bind("e", src, FuelDescriptors(config.PetrolTypes, nil, nil))

	st := stateByKey(t, entities, "cheapest_station_e5")
	assert.True(t, st.Available)
	assert.Equal(t, 1.659, st.Value)
	assert.Equal(t, "monetary", st.DeviceClass)
	assert.Equal(t, "E5", st.Attributes["fuel_type"])
	assert.Equal(t, "Hauptstr. 5, 10115, Berlin", st.Attributes["address"])
	assert.Equal(t, "1.659 €", st.Attributes["e5_price_eur"])
	assert.Nil(t, st.Attributes["diesel_price"])
	assert.Equal(t, "-", st.Attributes["diesel_price_eur"])

	diesel := stateByKey(t, entities, "cheapest_station_diesel")
	assert.False(t, diesel.Available)
	assert.Empty(t, diesel.Attributes)
}

func TestUserAndTrackedStations(t *testing.T) {
	users := []config.UserLocation{{Name: "Max Mustermann", EntityID: "person.max"}, {Name: ""}}
	src := &fakeSource[coordinator.FuelBundle]{name: coordinator.NamePetrol, ok: true, data: coordinator.FuelBundle{
		StationsByID: map[string]*homey.Station{
			"ab-12": {StationID: "ab-12", Name: "Shell", Status: "CLOSED", StatusTranslation: "Geschlossen",
				OpeningHours: &homey.OpeningHours{AllDayOpened: ptr(false)}},
		},
	}}
	entities := Bind("e", src, FuelDescriptors(nil, users, []string{"ab-12", "cd-34"}))
	require.Len(t, entities, 4)

	user := stateByKey(t, entities, "nearest_station_max_mustermann")
	assert.Equal(t, "Nächste Tankstelle Max Mustermann", user.Name)
	assert.False(t, user.Available)
	assert.Equal(t, map[string]any{"user_name": "Max Mustermann"}, user.Attributes)

	tracked := stateByKey(t, entities, "station_ab_12")
	assert.True(t, tracked.Available)
	assert.Equal(t, "Shell", tracked.Name)
	assert.Equal(t, "Geschlossen", tracked.Value)
	assert.Equal(t, "mdi:gas-station-off", tracked.Icon)
	assert.Equal(t, false, tracked.Attributes["all_day_opened"])
	assert.NotContains(t, tracked.Attributes, "distance")

	missing := stateByKey(t, entities, "station_cd_34")
	assert.False(t, missing.Available)
	assert.Equal(t, "cd-34", missing.Name)
	assert.Equal(t, map[string]any{"station_id": "cd-34"}, missing.Attributes)
}

func warning(id string, level int, icon string) homey.Warning {
	w := homey.Warning{WarningID: id, AreaName: "Berlin", Details: &homey.WarningDetails{
		Title:    "Warning " + id,
		Severity: &homey.Severity{Severity: "LEVEL_" + id, SeverityLevel: ptr(level)},
	}}
	if icon != "" {
		w.Details.WeatherIcon = &homey.Icon{MdiIcon: icon}
	}
	return w
}

func TestWeather_MostSevereWarning(t *testing.T) {
	src := &fakeSource[coordinator.WeatherBundle]{name: coordinator.NameWeather, ok: true, data: coordinator.WeatherBundle{
		Warnings: &homey.WarningList{Count: 2, WarningCellID: "809177119", Warnings: []homey.Warning{
			warning("a", 1, ""),
			warning("b", 3, "mdi:weather-lightning"),
		}},
		Upfront: &homey.WarningList{Count: 0},
	}}
	entities := Bind("e", src, WeatherDescriptors())

	active := stateByKey(t, entities, "weather_warning_active")
	assert.Equal(t, PlatformBinarySensor, active.Platform)
	assert.Equal(t, true, active.Value)
	assert.Equal(t, "mdi:alert", active.Icon)
	assert.Equal(t, map[string]any{"count": 2, "cell_id": "809177119"}, active.Attributes)

	current := stateByKey(t, entities, "current_weather_warning")
	assert.True(t, current.Available)
	assert.Equal(t, "LEVEL_b", current.Value)
	assert.Equal(t, "mdi:weather-lightning", current.Icon)
	assert.Equal(t, "b", current.Attributes["warning_id"])
	assert.Equal(t, 3, current.Attributes["severity_level"])

	upfront := stateByKey(t, entities, "upfront_warning_active")
	assert.Equal(t, false, upfront.Value)
	assert.Nil(t, upfront.Attributes["cell_id"])
	assert.Equal(t, "mdi:check-circle", upfront.Icon)

	noUpfront := stateByKey(t, entities, "current_upfront_warning")
	assert.False(t, noUpfront.Available)
	assert.Nil(t, noUpfront.Value)
}

func TestMostSevere_TieKeepsFirst(t *testing.T) {
	w, ok := MostSevere([]homey.Warning{warning("a", 2, ""), warning("b", 2, ""), {WarningID: "c"}})
	require.True(t, ok)
	assert.Equal(t, "a", w.WarningID)

	_, ok = MostSevere(nil)
	assert.False(t, ok)
}

func TestWeather_AllWarningsJSONDefaults(t *testing.T) {
	src := &fakeSource[coordinator.WeatherBundle]{name: coordinator.NameWeather, ok: true}
	entities := Bind("e", src, WeatherDescriptors())

	st := stateByKey(t, entities, "all_upfront_warnings_json")
	assert.Equal(t, 0, st.Value)
	assert.Equal(t, []homey.Warning{}, st.Attributes["warnings"])
	assert.JSONEq(t, `{}`, string(st.Attributes["raw_data"].(json.RawMessage)))
}

func TestPollen(t *testing.T) {
	src := &fakeSource[coordinator.PollenBundle]{name: coordinator.NamePollen, ok: true, data: coordinator.PollenBundle{
		AllPollen: &homey.PollenFlights{RegionName: "Brandenburg", Flights: []homey.PollenFlight{
			{PollenType: "BIRCH", Today: &homey.PollenDay{SeverityType: "MEDIUM", SeverityLevel: ptr(2)}},
			{PollenType: "RYE", Today: &homey.PollenDay{SeverityType: "NONE", SeverityLevel: ptr(0)}},
		}},
		Highest: &homey.HighestPollen{HighestSeverity: &homey.PollenFlight{}},
	}}
	entities := Bind("e", src, PollenDescriptors())
	require.Len(t, entities, 2+len(PollenTypes))

	active := stateByKey(t, entities, "pollen_flight_active")
	assert.Equal(t, true, active.Value)
	assert.Equal(t, "mdi:flower-pollen", active.Icon)
	assert.Equal(t, "Brandenburg", active.Attributes["region"])

	birch := stateByKey(t, entities, "pollen_birch")
	assert.True(t, birch.Available)
	assert.Equal(t, "MEDIUM", birch.Value)
	assert.Equal(t, 2, birch.Attributes["severity_level_today"])
	assert.Nil(t, birch.Attributes["severity_tomorrow"])
	assert.Equal(t, "mdi:flower", birch.Icon)

	hazel := stateByKey(t, entities, "pollen_hazel")
	assert.False(t, hazel.Available)
	assert.Empty(t, hazel.Attributes)

	highest := stateByKey(t, entities, "highest_pollen_severity")
	assert.False(t, highest.Available)
}

func TestWaste_DaysUntilCollection(t *testing.T) {
	freezeClock(t, time.Date(2026, 5, 4, 21, 30, 0, 0, time.UTC))
	src := &fakeSource[coordinator.WasteBundle]{name: coordinator.NameWaste, ok: true, data: coordinator.WasteBundle{
		Upcoming: &homey.WasteSchedule{ScheduledCollections: []homey.Collection{
			{WasteType: "PAPER", ScheduledOn: "2026-05-07", Icon: &homey.Icon{MdiIcon: "mdi:newspaper"}},
		}},
		Next: &homey.WasteSchedule{ScheduledOn: "2026-05-06T00:00:00", ScheduledCollections: []homey.Collection{
			{WasteType: "BIO", WasteTypeTranslation: "Bio"},
		}},
	}}
	entities := Bind("e", src, WasteDescriptors())

	next := stateByKey(t, entities, "next_waste_collection")
	assert.Equal(t, "2026-05-06", next.Value)
	assert.Equal(t, 2, next.Attributes["days_until_collection"])
	assert.Equal(t, []string{"BIO"}, next.Attributes["waste_types"])

	paper := stateByKey(t, entities, "waste_paper")
	assert.True(t, paper.Available)
	assert.Equal(t, "2026-05-07", paper.Value)
	assert.Equal(t, 3, paper.Attributes["days_until_collection"])
	assert.Equal(t, "mdi:newspaper", paper.Icon)

	bio := stateByKey(t, entities, "waste_bio")
	assert.False(t, bio.Available)
	assert.Equal(t, "mdi:trash-can", bio.Icon)
}

func TestDescriptors_ZeroBundles(t *testing.T) {
	users := []config.UserLocation{{Name: "Anna", EntityID: "person.anna"}}
	var entities []Entity
	entities = append(entities, Bind("e", &fakeSource[coordinator.FuelBundle]{name: coordinator.NamePetrol, ok: true},
		FuelDescriptors(config.PetrolTypes, users, []string{"x"}))...)
	entities = append(entities, Bind("e", &fakeSource[coordinator.WeatherBundle]{name: coordinator.NameWeather, ok: true},
		WeatherDescriptors())...)
	entities = append(entities, Bind("e", &fakeSource[coordinator.PollenBundle]{name: coordinator.NamePollen, ok: true},
		PollenDescriptors())...)
	entities = append(entities, Bind("e", &fakeSource[coordinator.WasteBundle]{name: coordinator.NameWaste, ok: true},
		WasteDescriptors())...)

	for _, e := range entities {
		assert.NotPanics(t, func() { e.State() }, e.Key())
	}
}

func TestDescriptors_PartialBundles(t *testing.T) {
	users := []config.UserLocation{{Name: "Anna", EntityID: "person.anna"}}
	noDistance := &homey.Station{StationID: "s1", Location: &homey.StationLocation{Latitude: ptr(52.5)}}

	tests := []struct {
		name     string
		entities []Entity
	}{
		{
			name: "station without distance",
			entities: Bind("e", &fakeSource[coordinator.FuelBundle]{name: coordinator.NamePetrol, ok: true, data: coordinator.FuelBundle{
				NearestStation:      noDistance,
				CheapestStations:    map[string]*homey.Station{"E5": {Prices: []homey.Price{{PetrolType: "E5"}}}},
				UserNearestStations: map[string]*homey.Station{"Anna": noDistance},
				StationsByID:        map[string]*homey.Station{"x": {Address: &homey.Address{}}},
			}}, FuelDescriptors(config.PetrolTypes, users, []string{"x", "y"})),
		},
		{
			name: "warning without details",
			entities: Bind("e", &fakeSource[coordinator.WeatherBundle]{name: coordinator.NameWeather, ok: true, data: coordinator.WeatherBundle{
				Warnings: &homey.WarningList{Count: 1, Warnings: []homey.Warning{{WarningID: "w1"}}},
			}}, WeatherDescriptors()),
		},
		{
			name: "pollen flight without days",
			entities: Bind("e", &fakeSource[coordinator.PollenBundle]{name: coordinator.NamePollen, ok: true, data: coordinator.PollenBundle{
				AllPollen: &homey.PollenFlights{Flights: []homey.PollenFlight{{PollenType: "BIRCH"}}},
				Highest:   &homey.HighestPollen{HighestSeverity: &homey.PollenFlight{PollenType: "BIRCH"}},
			}}, PollenDescriptors()),
		},
		{
			name: "waste with unparsable date",
			entities: Bind("e", &fakeSource[coordinator.WasteBundle]{name: coordinator.NameWaste, ok: true, data: coordinator.WasteBundle{
				Upcoming: &homey.WasteSchedule{ScheduledCollections: []homey.Collection{{WasteType: "PAPER", ScheduledOn: "soon"}}},
				Next:     &homey.WasteSchedule{ScheduledOn: "not-a-date"},
			}}, WasteDescriptors()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, e := range tt.entities {
				var st State
				require.NotPanics(t, func() { st = e.State() }, e.Key())
				_, err := json.Marshal(st)
				assert.NoError(t, err, e.Key())
			}
		})
	}

	paper := stateByKey(t, tests[3].entities, "waste_paper")
	assert.Nil(t, paper.Value)
	assert.Nil(t, paper.Attributes["days_until_collection"])
	next := stateByKey(t, tests[3].entities, "next_waste_collection")
	assert.Nil(t, next.Value)
}

func TestPollen_HighestSeverityDays(t *testing.T) {
	src := &fakeSource[coordinator.PollenBundle]{name: coordinator.NamePollen, ok: true, data: coordinator.PollenBundle{
		Highest: &homey.HighestPollen{HighestSeverity: &homey.PollenFlight{
			PollenType: "GRASSES",
			Today:      &homey.PollenDay{SeverityType: "HIGH", SeverityLevel: ptr(3)},
			Tomorrow:   &homey.PollenDay{SeverityType: "MEDIUM", SeverityLevel: ptr(2)},
		}},
	}}
	entities := Bind("e", src, PollenDescriptors())

	highest := stateByKey(t, entities, "highest_pollen_severity")
	assert.Equal(t, "HIGH", highest.Attributes["today"])
	assert.Equal(t, "MEDIUM", highest.Attributes["tomorrow"])
	assert.Nil(t, highest.Attributes["day_after_tomorrow"])
	assert.Equal(t, 3, highest.Attributes["severity_level"])
}

func TestHub(t *testing.T) {
	fuel := Bind("e", &fakeSource[coordinator.FuelBundle]{name: coordinator.NamePetrol}, FuelDescriptors([]string{"E5"}, nil, nil))
	waste := Bind("e", &fakeSource[coordinator.WasteBundle]{name: coordinator.NameWaste}, WasteDescriptors())
	hub := NewHub(fuel, waste)

	assert.Len(t, hub.Entities(), len(fuel)+len(waste))
	assert.Len(t, hub.ByCoordinator(coordinator.NamePetrol), 2)

	e, ok := hub.Get("e_waste_bio")
	require.True(t, ok)
	assert.Equal(t, "waste_bio", e.Key())
	_, ok = hub.Get("missing")
	assert.False(t, ok)

	states := hub.States()
	for i := 1; i < len(states); i++ {
		assert.Less(t, states[i-1].UniqueID, states[i].UniqueID)
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", FormatEUR(nil))
	assert.Equal(t, "1.700 €", FormatEUR(ptr(1.7)))
	assert.Equal(t, "10115, Berlin", FormatAddress(&homey.Address{PostalCode: "10115", City: "Berlin"}))
	assert.Equal(t, "", FormatAddress(nil))
	assert.Equal(t, "yellow_bag", Slug("Yellow Bag"))
	assert.Nil(t, PriceFor(nil, "E5"))
}
