package entity

import (
	"strings"

	"github.com/i474232898/easy-homey/internal/config"
	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/homey"
)

// FuelDescriptors returns the petrol entities: the nearest station, the cheapest
// station per fuel type, one per named user location and one per tracked station id.
func FuelDescriptors(fuelTypes []string, users []config.UserLocation, stationIDs []string) []Descriptor[coordinator.FuelBundle] {
	descs := []Descriptor[coordinator.FuelBundle]{
		{
			Key:        "nearest_station",
			Name:       "Nearest station",
			Icon:       "mdi:gas-station-outline",
			Unit:       "km",
			StateClass: "measurement",
			Value:      func(b coordinator.FuelBundle) any { return distance(b.NearestStation) },
			Attributes: func(b coordinator.FuelBundle) map[string]any {
				return stationAttributes(b.NearestStation, true)
			},
			Available: func(b coordinator.FuelBundle) bool { return present(b.NearestStation) },
		},
	}

	for _, fuel := range fuelTypes {
		descs = append(descs, cheapestStation(fuel))
	}
	for _, ul := range users {
		if ul.Name != "" {
			descs = append(descs, userNearestStation(ul.Name))
		}
	}
	for _, id := range stationIDs {
		descs = append(descs, trackedStation(id))
	}
	return descs
}

func cheapestStation(fuel string) Descriptor[coordinator.FuelBundle] {
	lookup := func(b coordinator.FuelBundle) *homey.Station { return b.CheapestStations[fuel] }
	return Descriptor[coordinator.FuelBundle]{
		Key:         "cheapest_station_" + strings.ToLower(fuel),
		Name:        "Cheapest station " + fuel,
		Icon:        "mdi:currency-eur",
		Unit:        "EUR",
		DeviceClass: "monetary",
		Value: func(b coordinator.FuelBundle) any {
			st := lookup(b)
			if !present(st) {
				return nil
			}
			return deref(PriceFor(st.Prices, fuel))
		},
		Attributes: func(b coordinator.FuelBundle) map[string]any {
			st := lookup(b)
			if !present(st) {
				return map[string]any{}
			}
			attrs := stationAttributes(st, true)
			attrs["fuel_type"] = fuel
			return attrs
		},
		Available: func(b coordinator.FuelBundle) bool { return present(lookup(b)) },
	}
}

func userNearestStation(user string) Descriptor[coordinator.FuelBundle] {
	lookup := func(b coordinator.FuelBundle) *homey.Station { return b.UserNearestStations[user] }
	return Descriptor[coordinator.FuelBundle]{
		Key:        "nearest_station_" + Slug(user),
		Name:       "Nächste Tankstelle " + user,
		Icon:       "mdi:gas-station-outline",
		Unit:       "km",
		StateClass: "measurement",
		Value:      func(b coordinator.FuelBundle) any { return distance(lookup(b)) },
		Attributes: func(b coordinator.FuelBundle) map[string]any {
			st := lookup(b)
			if !present(st) {
				return map[string]any{"user_name": user}
			}
			attrs := stationAttributes(st, true)
			attrs["user_name"] = user
			return attrs
		},
		Available: func(b coordinator.FuelBundle) bool { return present(lookup(b)) },
	}
}

func trackedStation(id string) Descriptor[coordinator.FuelBundle] {
	lookup := func(b coordinator.FuelBundle) *homey.Station { return b.StationsByID[id] }
	return Descriptor[coordinator.FuelBundle]{
		Key:  "station_" + strings.ReplaceAll(id, "-", "_"),
		Name: id,
		NameFn: func(b coordinator.FuelBundle) string {
			if st := lookup(b); st != nil && st.Name != "" {
				return st.Name
			}
			return id
		},
		Value: func(b coordinator.FuelBundle) any {
			st := lookup(b)
			if !present(st) {
				return nil
			}
			if st.StatusTranslation != "" {
				return st.StatusTranslation
			}
			return nonEmpty(st.Status)
		},
		Attributes: func(b coordinator.FuelBundle) map[string]any {
			st := lookup(b)
			if !present(st) {
				return map[string]any{"station_id": id}
			}
			attrs := stationAttributes(st, false)
			attrs["status_translation"] = nonEmpty(st.StatusTranslation)
			attrs["all_day_opened"] = nil
			attrs["opening_hours"] = nil
			if oh := st.OpeningHours; oh != nil {
				attrs["all_day_opened"] = deref(oh.AllDayOpened)
				if len(oh.OpeningHours) > 0 {
					attrs["opening_hours"] = oh.OpeningHours
				}
			}
			return attrs
		},
		IconFn: func(b coordinator.FuelBundle) string {
			if st := lookup(b); st != nil {
				switch st.Status {
				case "CLOSED":
					return "mdi:gas-station-off"
				case "NO_PRICES":
					return "mdi:gas-station-outline"
				}
			}
			return "mdi:gas-station"
		},
		Available: func(b coordinator.FuelBundle) bool { return present(lookup(b)) },
	}
}

// stationAttributes renders the shared station attributes, with the
// search distance when withDistance is set.
func stationAttributes(st *homey.Station, withDistance bool) map[string]any {
	if st == nil {
		st = &homey.Station{}
	}
	attrs := map[string]any{
		"station_id": nonEmpty(st.StationID),
		"name":       nonEmpty(st.Name),
		"brand":      nonEmpty(st.Brand),
		"address":    FormatAddress(st.Address),
		"location":   locationAttr(st.Location),
		"status":     nonEmpty(st.Status),
	}
	for _, fuel := range config.PetrolTypes {
		price := PriceFor(st.Prices, fuel)
		prefix := strings.ToLower(fuel)
		attrs[prefix+"_price"] = deref(price)
		attrs[prefix+"_price_eur"] = FormatEUR(price)
	}
	if withDistance {
		attrs["distance"] = distance(st)
	}
	return attrs
}

func locationAttr(l *homey.StationLocation) any {
	if l == nil {
		return nil
	}
	return l
}

func distance(st *homey.Station) any {
	if d, ok := st.Distance(); ok {
		return d
	}
	return nil
}

// present reports whether st carries any data; an empty object counts as absent.
func present(st *homey.Station) bool {
	return st != nil && (st.StationID != "" || st.Name != "" || st.Location != nil || len(st.Prices) > 0 || st.Status != "")
}
