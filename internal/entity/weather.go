package entity

import (
	"encoding/json"

	"github.com/i474232898/easy-homey/internal/coordinator"
	"github.com/i474232898/easy-homey/internal/homey"
)

// MostSevere returns the warning with the highest severity level. Missing
// levels count as 0 and the first of equal levels wins.
func MostSevere(warnings []homey.Warning) (homey.Warning, bool) {
	if len(warnings) == 0 {
		return homey.Warning{}, false
	}
	best := warnings[0]
	for _, w := range warnings[1:] {
		if w.Level() > best.Level() {
			best = w
		}
	}
	return best, true
}

type warningKind struct {
	suffix string // "weather" or "upfront"
	label  string
	onIcon string
	list   func(coordinator.WeatherBundle) *homey.WarningList
}

// WeatherDescriptors returns the warning entities for both warning types.
func WeatherDescriptors() []Descriptor[coordinator.WeatherBundle] {
	kinds := []warningKind{
		{
			suffix: "weather", label: "Weather warning", onIcon: "mdi:alert",
			list: func(b coordinator.WeatherBundle) *homey.WarningList { return b.Warnings },
		},
		{
			suffix: "upfront", label: "Upfront warning", onIcon: "mdi:information",
			list: func(b coordinator.WeatherBundle) *homey.WarningList { return b.Upfront },
		},
	}

	var descs []Descriptor[coordinator.WeatherBundle]
	for _, k := range kinds {
		descs = append(descs, activeWarning(k))
	}
	for _, k := range kinds {
		descs = append(descs, currentWarning(k))
	}
	for _, k := range kinds {
		descs = append(descs, allWarningsJSON(k))
	}
	return descs
}

func count(l *homey.WarningList) int {
	if l == nil {
		return 0
	}
	return l.Count
}

// cellID is the warning cell the API answered for.
func cellID(l *homey.WarningList) any {
	if l == nil {
		return nil
	}
	return nonEmpty(l.WarningCellID)
}

func activeWarning(k warningKind) Descriptor[coordinator.WeatherBundle] {
	return Descriptor[coordinator.WeatherBundle]{
		Key:         k.suffix + "_warning_active",
		Name:        k.label + " active",
		Platform:    PlatformBinarySensor,
		DeviceClass: "safety",
		Value:       func(b coordinator.WeatherBundle) any { return count(k.list(b)) > 0 },
		Attributes: func(b coordinator.WeatherBundle) map[string]any {
			return map[string]any{"count": count(k.list(b)), "cell_id": cellID(k.list(b))}
		},
		IconFn: func(b coordinator.WeatherBundle) string {
			if count(k.list(b)) > 0 {
				return k.onIcon
			}
			return "mdi:check-circle"
		},
	}
}

func currentWarning(k warningKind) Descriptor[coordinator.WeatherBundle] {
	pick := func(b coordinator.WeatherBundle) (homey.Warning, bool) {
		l := k.list(b)
		if count(l) == 0 {
			return homey.Warning{}, false
		}
		return MostSevere(l.Warnings)
	}
	return Descriptor[coordinator.WeatherBundle]{
		Key:  "current_" + k.suffix + "_warning",
		Name: "Current " + lowerFirst(k.label),
		Value: func(b coordinator.WeatherBundle) any {
			w, ok := pick(b)
			if !ok || w.Details == nil || w.Details.Severity == nil {
				return nil
			}
			return nonEmpty(w.Details.Severity.Severity)
		},
		Attributes: func(b coordinator.WeatherBundle) map[string]any {
			w, ok := pick(b)
			if !ok {
				return map[string]any{}
			}
			return warningAttributes(w)
		},
		IconFn: func(b coordinator.WeatherBundle) string {
			w, ok := pick(b)
			if !ok || w.Details == nil {
				return k.onIcon
			}
			return mdiIcon(w.Details.WeatherIcon, k.onIcon)
		},
		Available: func(b coordinator.WeatherBundle) bool {
			_, ok := pick(b)
			return ok
		},
	}
}

func warningAttributes(w homey.Warning) map[string]any {
	d := w.Details
	if d == nil {
		d = &homey.WarningDetails{}
	}
	s := d.Severity
	if s == nil {
		s = &homey.Severity{}
	}
	return map[string]any{
		"area_name":            nonEmpty(w.AreaName),
		"warning_id":           nonEmpty(w.WarningID),
		"title":                nonEmpty(d.Title),
		"description":          nonEmpty(d.Description),
		"instruction":          nonEmpty(d.Instruction),
		"severity_level":       deref(s.SeverityLevel),
		"severity_translation": nonEmpty(s.SeverityTranslation),
		"severity_color":       hex(s.SeverityColor),
		"weather_type":         nonEmpty(d.WeatherType),
		"valid_from":           nonEmpty(w.From),
		"valid_until":          nonEmpty(w.Until),
		"issued_by":            nonEmpty(w.IssuedBy),
		"created_on":           nonEmpty(w.CreatedOn),
	}
}

func allWarningsJSON(k warningKind) Descriptor[coordinator.WeatherBundle] {
	return Descriptor[coordinator.WeatherBundle]{
		Key:   "all_" + k.suffix + "_warnings_json",
		Name:  "All " + k.suffix + " warnings JSON",
		Icon:  "mdi:code-json",
		Value: func(b coordinator.WeatherBundle) any { return count(k.list(b)) },
		Attributes: func(b coordinator.WeatherBundle) map[string]any {
			l := k.list(b)
			warnings := []homey.Warning{}
			raw := json.RawMessage("{}")
			if l != nil {
				if l.Warnings != nil {
					warnings = l.Warnings
				}
				if len(l.Raw) > 0 {
					raw = l.Raw
				}
			}
			return map[string]any{"warnings": warnings, "raw_data": raw}
		},
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
