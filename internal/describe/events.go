package describe

import "strings"

// Event type vocabulary for timeline classification.
var eventTypeKeywords = []struct {
	name     string
	keywords []string
}{
	{"person_enters", []string{"person enters", "person appears", "person arrives", "person comes"}},
	{"person_exits", []string{"person exits", "person leaves", "person disappears", "person goes"}},
	{"vehicle_arrives", []string{"vehicle arrives", "car arrives", "truck arrives", "vehicle appears"}},
	{"vehicle_leaves", []string{"vehicle leaves", "car leaves", "truck leaves", "vehicle disappears"}},
	{"activity_starts", []string{"starts", "begins", "activity begins", "movement starts"}},
	{"activity_stops", []string{"stops", "ends", "activity ends", "movement stops"}},
	{"scene_change", []string{"different", "changed", "new scene", "scene changes"}},
}

// classifyEvent maps a timeline description onto the event vocabulary,
// defaulting to general_activity.
func classifyEvent(description string) string {
	lower := strings.ToLower(description)
	for _, et := range eventTypeKeywords {
		for _, kw := range et.keywords {
			if strings.Contains(lower, kw) {
				return et.name
			}
		}
	}
	return "general_activity"
}

// tokenOverlap is the fraction of tokens in a that also occur in b.
func tokenOverlap(a, b string) float64 {
	tokensA := strings.Fields(strings.ToLower(a))
	if len(tokensA) == 0 {
		return 0
	}
	setB := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(b)) {
		setB[t] = true
	}
	shared := 0
	for _, t := range tokensA {
		if setB[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(tokensA))
}
