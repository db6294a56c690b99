package entity

import (
	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/homey"
)

// WasteTypes maps the API waste type to its entity name.
var WasteTypes = []struct{ Type, Name string }{
	{"PAPER", "paper"},
	{"BIO", "bio"},
	{"GENERAL", "general"},
	{"YELLOW_BAG", "yellow_bag"},
	{"PROBLEM", "problem"},
}

// WasteDescriptors returns the next collection entity and one per waste type.
func WasteDescriptors() []Descriptor[coordinator.WasteBundle] {
	descs := []Descriptor[coordinator.WasteBundle]{
		{
			Key:         "next_waste_collection",
			Name:        "Next waste collection",
			DeviceClass: "date",
			Icon:        "mdi:trash-can-outline",
			Value: func(b coordinator.WasteBundle) any {
				if b.Next == nil {
					return nil
				}
				return dateValue(b.Next.ScheduledOn)
			},
			Attributes: func(b coordinator.WasteBundle) map[string]any {
				next := b.Next
				if next == nil {
					next = &homey.WasteSchedule{}
				}
				types := make([]string, 0, len(next.ScheduledCollections))
				translations := make([]string, 0, len(next.ScheduledCollections))
				for _, c := range next.ScheduledCollections {
					types = append(types, c.WasteType)
					translations = append(translations, c.WasteTypeTranslation)
				}
				collections := next.ScheduledCollections
				if collections == nil {
					collections = []homey.Collection{}
				}
				return map[string]any{
					"scheduled_on":             nonEmpty(next.ScheduledOn),
					"days_until_collection":    daysUntil(next.ScheduledOn),
					"waste_types":              types,
					"waste_types_translations": translations,
					"collections":              collections,
				}
			},
		},
	}
	for _, wt := range WasteTypes {
		descs = append(descs, wasteType(wt.Type, wt.Name))
	}
	return descs
}

func wasteType(wasteType, name string) Descriptor[coordinator.WasteBundle] {
	find := func(b coordinator.WasteBundle) *homey.Collection {
		if b.Upcoming == nil {
			return nil
		}
		for i := range b.Upcoming.ScheduledCollections {
			if b.Upcoming.ScheduledCollections[i].WasteType == wasteType {
				return &b.Upcoming.ScheduledCollections[i]
			}
		}
		return nil
	}
	return Descriptor[coordinator.WasteBundle]{
		Key:         "waste_" + name,
		Name:        "Waste " + name,
		DeviceClass: "date",
		Value: func(b coordinator.WasteBundle) any {
			if c := find(b); c != nil {
				return dateValue(c.ScheduledOn)
			}
			return nil
		},
		Attributes: func(b coordinator.WasteBundle) map[string]any {
			c := find(b)
			if c == nil {
				return map[string]any{}
			}
			return map[string]any{
				"waste_type":             nonEmpty(c.WasteType),
				"waste_type_translation": nonEmpty(c.WasteTypeTranslation),
				"scheduled_on":           nonEmpty(c.ScheduledOn),
				"days_until_collection":  daysUntil(c.ScheduledOn),
				"color_primary":          hex(c.WasteColorPrimary),
				"color_secondary":        hex(c.WasteColorSecondary),
			}
		},
		IconFn: func(b coordinator.WasteBundle) string {
			if c := find(b); c != nil {
				return mdiIcon(c.Icon, "mdi:trash-can")
			}
			return "mdi:trash-can"
		},
		Available: func(b coordinator.WasteBundle) bool { return find(b) != nil },
	}
}
