package homey

import "encoding/json"

// Color is a display color supplied by the API.
type Color struct {
	Hex string `json:"hex,omitempty"`
}

// Icon carries a Material Design icon name such as "mdi:weather-windy".
type Icon struct {
	MdiIcon string `json:"mdiIcon,omitempty"`
}

// Address of a petrol station.
type Address struct {
	Street      string `json:"street,omitempty"`
	HouseNumber string `json:"houseNumber,omitempty"`
	PostalCode  string `json:"postalCode,omitempty"`
	City        string `json:"city,omitempty"`
}

// StationLocation is a station's position. Distance is relative to the
// search coordinates and absent on by-id lookups.
type StationLocation struct {
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
}

// Price is the current price of one fuel type.
type Price struct {
	PetrolType string   `json:"petrolType"`
	Price      *float64 `json:"price"`
}

// OpeningHours of a station. The per-day schedule is passed through untouched.
type OpeningHours struct {
	AllDayOpened *bool          `json:"allDayOpened,omitempty"`
	OpeningHours json.RawMessage `json:"openingHours,omitempty"`
}

// Station is a petrol station as returned by the patrol-stations endpoints.
type Station struct {
	StationID         string           `json:"stationId,omitempty"`
	Name              string           `json:"name,omitempty"`
	Brand             string           `json:"brand,omitempty"`
	Address           *Address         `json:"address,omitempty"`
	Location          *StationLocation `json:"location,omitempty"`
	Status            string           `json:"status,omitempty"`
	StatusTranslation string           `json:"statusTranslation,omitempty"`
	Prices            []Price          `json:"prices,omitempty"`
	OpeningHours      *OpeningHours    `json:"openingHours,omitempty"`
}

// Distance returns the reported distance, or false when it is missing.
func (s *Station) Distance() (float64, bool) {
	if s == nil || s.Location == nil || s.Location.Distance == nil {
		return 0, false
	}
	return *s.Location.Distance, true
}

// Severity of a weather warning.
type Severity struct {
	Severity            string `json:"severity,omitempty"`
	SeverityLevel       *int   `json:"severityLevel,omitempty"`
	SeverityTranslation string `json:"severityTranslation,omitempty"`
	SeverityColor       *Color `json:"severityColor,omitempty"`
}

// WarningDetails is the descriptive part of a warning.
type WarningDetails struct {
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Instruction string    `json:"instruction,omitempty"`
	WeatherType string    `json:"weatherType,omitempty"`
	Severity    *Severity `json:"severity,omitempty"`
	WeatherIcon *Icon     `json:"weatherIcon,omitempty"`
}

// Warning is a single weather warning or upfront information.
type Warning struct {
	WarningID string          `json:"warningId,omitempty"`
	AreaName  string          `json:"areaName,omitempty"`
	From      string          `json:"from,omitempty"`
	Until     string          `json:"until,omitempty"`
	IssuedBy  string          `json:"issuedBy,omitempty"`
	CreatedOn string          `json:"createdOn,omitempty"`
	Details   *WarningDetails `json:"details,omitempty"`
}

// Level returns the warning's severity level, 0 when missing.
func (w Warning) Level() int {
	if w.Details == nil || w.Details.Severity == nil || w.Details.Severity.SeverityLevel == nil {
		return 0
	}
	return *w.Details.Severity.SeverityLevel
}

// WarningList is the weather warnings response for one cell and type.
// Raw keeps the body as received.
type WarningList struct {
	Count         int       `json:"count"`
	WarningCellID string    `json:"warningCellId,omitempty"`
	Warnings      []Warning `json:"warnings"`

	Raw json.RawMessage `json:"-"`
}

func (l *WarningList) UnmarshalJSON(data []byte) error {
	type plain WarningList
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*l = WarningList(p)
	l.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// PollenDay is the forecast for one pollen type on one day.
type PollenDay struct {
	SeverityType        string `json:"severityType,omitempty"`
	SeverityLevel       *int   `json:"severityLevel,omitempty"`
	SeverityTranslation string `json:"severityTranslation,omitempty"`
	SeverityColor       *Color `json:"severityColor,omitempty"`
}

// PollenFlight is the three-day forecast for one pollen type.
type PollenFlight struct {
	PollenType            string     `json:"pollenType,omitempty"`
	PollenTypeTranslation string     `json:"pollenTypeTranslation,omitempty"`
	PollenIcon            *Icon      `json:"pollenIcon,omitempty"`
	Today                 *PollenDay `json:"today,omitempty"`
	Tomorrow              *PollenDay `json:"tomorrow,omitempty"`
	DayAfterTomorrow      *PollenDay `json:"dayAfterTomorrow,omitempty"`
}

// PollenFlights is the full pollen forecast for the configured region.
type PollenFlights struct {
	RegionName     string         `json:"regionName,omitempty"`
	PartRegionName string         `json:"partRegionName,omitempty"`
	LastUpdatedOn  string         `json:"lastUpdatedOn,omitempty"`
	Flights        []PollenFlight `json:"flights,omitempty"`
}

// HighestPollen wraps the single most severe pollen flight.
type HighestPollen struct {
	HighestSeverity *PollenFlight `json:"highestSeverity,omitempty"`
}

// Collection is one scheduled waste pickup.
type Collection struct {
	WasteType            string `json:"wasteType,omitempty"`
	WasteTypeTranslation string `json:"wasteTypeTranslation,omitempty"`
	ScheduledOn          string `json:"scheduledOn,omitempty"`
	WasteColorPrimary    *Color `json:"wasteColorPrimary,omitempty"`
	WasteColorSecondary  *Color `json:"wasteColorSecondary,omitempty"`
	Icon                 *Icon  `json:"icon,omitempty"`
}

// WasteSchedule is returned by the upcoming and next collection endpoints.
type WasteSchedule struct {
	ScheduledOn          string       `json:"scheduledOn,omitempty"`
	ScheduledCollections []Collection `json:"scheduledCollections,omitempty"`
}
