package entity

import (
	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/homey"
)

// PollenTypes maps the API pollen type to its entity name.
var PollenTypes = []struct{ Type, Name string }{
	{"ALDER", "alder"},
	{"AMBROSIA", "ambrosia"},
	{"ASH_TREE", "ash_tree"},
	{"BIRCH", "birch"},
	{"GRASSES", "grasses"},
	{"HAZEL", "hazel"},
	{"MUGWORT", "mugwort"},
	{"RYE", "rye"},
}

// PollenDescriptors returns the pollen activity, highest severity and per-type entities.
func PollenDescriptors() []Descriptor[coordinator.PollenBundle] {
	descs := []Descriptor[coordinator.PollenBundle]{
		{
			Key:      "pollen_flight_active",
			Name:     "Pollen flight active",
			Platform: PlatformBinarySensor,
			Value:    func(b coordinator.PollenBundle) any { return pollenActive(b.AllPollen) },
			Attributes: func(b coordinator.PollenBundle) map[string]any {
				p := b.AllPollen
				if p == nil {
					p = &homey.PollenFlights{}
				}
				return map[string]any{
					"region":       nonEmpty(p.RegionName),
					"part_region":  nonEmpty(p.PartRegionName),
					"last_updated": nonEmpty(p.LastUpdatedOn),
				}
			},
			IconFn: func(b coordinator.PollenBundle) string {
				if pollenActive(b.AllPollen) {
					return "mdi:flower-pollen"
				}
				return "mdi:flower-pollen-outline"
			},
		},
		{
			Key:   "highest_pollen_severity",
			Name:  "Highest pollen severity",
			Value: func(b coordinator.PollenBundle) any { return todaySeverity(highest(b)) },
			Attributes: func(b coordinator.PollenBundle) map[string]any {
				f := highest(b)
				if f == nil {
					return map[string]any{}
				}
				today := day(f.Today)
				return map[string]any{
					"pollen_type":             nonEmpty(f.PollenType),
					"pollen_type_translation": nonEmpty(f.PollenTypeTranslation),
					"severity_level":          deref(today.SeverityLevel),
					"severity_translation":    nonEmpty(today.SeverityTranslation),
					"severity_color":          hex(today.SeverityColor),
					"today":                   nonEmpty(today.SeverityType),
					"tomorrow":                nonEmpty(day(f.Tomorrow).SeverityType),
					"day_after_tomorrow":      nonEmpty(day(f.DayAfterTomorrow).SeverityType),
				}
			},
			IconFn: func(b coordinator.PollenBundle) string {
				if f := highest(b); f != nil {
					return mdiIcon(f.PollenIcon, "mdi:flower-pollen")
				}
				return "mdi:flower-pollen"
			},
			Available: func(b coordinator.PollenBundle) bool { return highest(b) != nil },
		},
	}
	for _, pt := range PollenTypes {
		descs = append(descs, pollenType(pt.Type, pt.Name))
	}
	return descs
}

func pollenType(pollenType, name string) Descriptor[coordinator.PollenBundle] {
	find := func(b coordinator.PollenBundle) *homey.PollenFlight {
		if b.AllPollen == nil {
			return nil
		}
		for i := range b.AllPollen.Flights {
			if b.AllPollen.Flights[i].PollenType == pollenType {
				return &b.AllPollen.Flights[i]
			}
		}
		return nil
	}
	return Descriptor[coordinator.PollenBundle]{
		Key:   "pollen_" + name,
		Name:  "Pollen " + name,
		Value: func(b coordinator.PollenBundle) any { return todaySeverity(find(b)) },
		Attributes: func(b coordinator.PollenBundle) map[string]any {
			f := find(b)
			if f == nil {
				return map[string]any{}
			}
			attrs := map[string]any{
				"pollen_type":             nonEmpty(f.PollenType),
				"pollen_type_translation": nonEmpty(f.PollenTypeTranslation),
			}
			for suffix, d := range map[string]*homey.PollenDay{
				"today":              f.Today,
				"tomorrow":           f.Tomorrow,
				"day_after_tomorrow": f.DayAfterTomorrow,
			} {
				dd := day(d)
				attrs["severity_level_"+suffix] = deref(dd.SeverityLevel)
				attrs["severity_"+suffix] = nonEmpty(dd.SeverityType)
				attrs["severity_translation_"+suffix] = nonEmpty(dd.SeverityTranslation)
				attrs["severity_color_"+suffix] = hex(dd.SeverityColor)
			}
			return attrs
		},
		IconFn: func(b coordinator.PollenBundle) string {
			if f := find(b); f != nil {
				return mdiIcon(f.PollenIcon, "mdi:flower")
			}
			return "mdi:flower"
		},
		Available: func(b coordinator.PollenBundle) bool { return find(b) != nil },
	}
}

func pollenActive(p *homey.PollenFlights) bool {
	if p == nil {
		return false
	}
	for _, f := range p.Flights {
		if f.Today != nil && f.Today.SeverityLevel != nil && *f.Today.SeverityLevel > 0 {
			return true
		}
	}
	return false
}

// highest returns the most severe flight, or nil when absent or empty.
func highest(b coordinator.PollenBundle) *homey.PollenFlight {
	if b.Highest == nil || b.Highest.HighestSeverity == nil {
		return nil
	}
	f := b.Highest.HighestSeverity
	if f.PollenType == "" && f.PollenTypeTranslation == "" && f.Today == nil && f.Tomorrow == nil && f.DayAfterTomorrow == nil {
		return nil
	}
	return f
}

func todaySeverity(f *homey.PollenFlight) any {
	if f == nil || f.Today == nil {
		return nil
	}
	return nonEmpty(f.Today.SeverityType)
}

func day(d *homey.PollenDay) *homey.PollenDay {
	if d == nil {
		return &homey.PollenDay{}
	}
	return d
}
