// Package alerts maps free-text scene descriptions onto the fixed catalog of
// security alert kinds using keyword presence. The matcher is deliberately
// dumb; the output contract (kinds + boolean flags) is what callers rely on,
// so a smarter classifier can replace it without touching the pipeline.
package alerts

import "strings"

// Alert kind names. These match the seeded alert_types catalog rows.
const (
	KindPerson          = "PERSON_DETECTED"
	KindVehicle         = "VEHICLE_DETECTED"
	KindPackage         = "PACKAGE_DETECTED"
	KindUnusualActivity = "UNUSUAL_ACTIVITY"
	KindNightTime       = "NIGHT_TIME"

	// Extended kinds from the catalog. Derived from the same text but not
	// projected onto detection booleans.
	KindMultiplePeople = "MULTIPLE_PEOPLE"
	KindUnknownPerson  = "UNKNOWN_PERSON"
	KindDeliveryEvent  = "DELIVERY_EVENT"
)

// Keyword lists per kind, matched case-insensitively as substrings.
var keywords = map[string][]string{
	KindPerson:          {"person", "people", "individual", "man", "woman", "child", "adult", "human", "pedestrian", "figure"},
	KindVehicle:         {"vehicle", "car", "truck", "van", "suv", "motorcycle", "bike", "automobile"},
	KindPackage:         {"package", "delivery", "box", "bag", "container", "parcel"},
	KindUnusualActivity: {"suspicious", "unusual", "unexpected", "strange", "odd", "abnormal", "loitering", "unknown"},
	KindNightTime:       {"night", "dark", "darkness", "low light", "nighttime"},

	KindMultiplePeople: {"people", "crowd", "group of", "several individuals"},
	KindUnknownPerson:  {"unknown person", "unidentified person", "stranger"},
	KindDeliveryEvent:  {"delivering", "dropping off", "delivery driver", "courier"},
}

// Order in which kinds are evaluated and reported. Keeps alert lists stable
// across runs.
var kindOrder = []string{
	KindPerson, KindVehicle, KindPackage, KindUnusualActivity, KindNightTime,
	KindMultiplePeople, KindUnknownPerson, KindDeliveryEvent,
}

// Flags are the denormalized booleans stored on a detection row.
type Flags struct {
	HasPerson          bool
	HasVehicle         bool
	HasPackage         bool
	HasUnusualActivity bool
	IsNightTime        bool
}

// Derive scans the text and returns every alert kind that fired, in stable
// order. An empty result means no alerts.
func Derive(text string) []string {
	lower := strings.ToLower(text)
	var fired []string
	for _, kind := range kindOrder {
		for _, kw := range keywords[kind] {
			if strings.Contains(lower, kw) {
				fired = append(fired, kind)
				break
			}
		}
	}
	return fired
}

// FlagsFor projects a list of fired kinds onto the five boolean columns.
func FlagsFor(kinds []string) Flags {
	var f Flags
	for _, k := range kinds {
		switch k {
		case KindPerson:
			f.HasPerson = true
		case KindVehicle:
			f.HasVehicle = true
		case KindPackage:
			f.HasPackage = true
		case KindUnusualActivity:
			f.HasUnusualActivity = true
		case KindNightTime:
			f.IsNightTime = true
		}
	}
	return f
}
