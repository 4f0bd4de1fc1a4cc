package describe

import (
	"fmt"
	"sort"
	"strings"
)

// ComposeImageDescription renders the pipe-joined composite the detection
// row stores: SCENE | SECURITY | OBJECTS | ACTIVITY | SETTING | ALERTS.
// Empty or error-valued aspects drop out rather than emit noise.
func ComposeImageDescription(aspects map[string]string, alertKinds []string) string {
	var parts []string

	if v := usable(aspects[AspectGeneral]); v != "" {
		parts = append(parts, "SCENE: "+v)
	}
	if v := usable(aspects[AspectSecurity]); v != "" {
		parts = append(parts, "SECURITY: "+v)
	}
	if v := usable(aspects[AspectObjects]); v != "" {
		parts = append(parts, "OBJECTS: "+v)
	}
	if v := usable(aspects[AspectActivities]); v != "" && !strings.Contains(strings.ToLower(v), "no activities") {
		parts = append(parts, "ACTIVITY: "+v)
	}
	if v := usable(aspects[AspectEnvironment]); v != "" {
		parts = append(parts, "SETTING: "+v)
	}
	if len(alertKinds) > 0 {
		parts = append(parts, "ALERTS: "+strings.Join(alertKinds, ", "))
	}

	return strings.Join(parts, " | ")
}

// ComposeVideoDescription renders the timeline composite:
// TIMELINE ANALYSIS | EVENTS | EVENT TYPES | ALERTS.
func ComposeVideoDescription(events []TimelineEvent, durationSeconds float64, alertKinds []string) string {
	if len(events) == 0 {
		return fmt.Sprintf("Video analysis complete (%.1fs) - No significant events detected", durationSeconds)
	}

	parts := []string{
		fmt.Sprintf("TIMELINE ANALYSIS (%.1fs, %d events)", durationSeconds, len(events)),
	}

	var entries []string
	eventTypes := make(map[string]bool)
	for _, ev := range events {
		if ev.Description != "" {
			entries = append(entries, fmt.Sprintf("%s: %s", ev.TimeFormatted, ev.Description))
		}
		if ev.EventType != "" && ev.EventType != "general_activity" {
			eventTypes[ev.EventType] = true
		}
	}
	if len(entries) > 0 {
		parts = append(parts, "EVENTS: "+strings.Join(entries, " | "))
	}
	if len(eventTypes) > 0 {
		var names []string
		for et := range eventTypes {
			names = append(names, titleCase(et))
		}
		sort.Strings(names)
		parts = append(parts, "EVENT TYPES: "+strings.Join(names, ", "))
	}
	if len(alertKinds) > 0 {
		sorted := append([]string(nil), alertKinds...)
		sort.Strings(sorted)
		parts = append(parts, "ALERTS: "+strings.Join(sorted, ", "))
	}

	return strings.Join(parts, " | ")
}

// FormatTimestamp renders a video offset as mm:ss for timeline entries.
func FormatTimestamp(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// Confidence scores a composite caption: word count as base, a bonus per
// usable aspect past the first, a bump when concrete detections are named.
func Confidence(caption string, aspects map[string]string) float64 {
	base := float64(len(strings.Fields(caption))) / 50.0
	if base > 1 {
		base = 1
	}

	successful := 0
	for _, v := range aspects {
		if usable(v) != "" {
			successful++
		}
	}
	bonus := 0.0
	if successful > 1 {
		bonus = float64(successful-1) * 0.1
	}

	detectionBonus := 0.0
	if strings.Contains(caption, "PERSON_DETECTED") || strings.Contains(caption, "VEHICLE_DETECTED") {
		detectionBonus = 0.1
	}

	score := base + bonus + detectionBonus
	if score > 1 {
		score = 1
	}
	return score
}

// AllAspectText concatenates every aspect value for keyword scanning.
func AllAspectText(aspects map[string]string) string {
	keys := make([]string, 0, len(aspects))
	for k := range aspects {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(aspects[k])
	}
	return b.String()
}

func usable(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.Contains(strings.ToLower(v), "error") {
		return ""
	}
	return v
}

func titleCase(eventType string) string {
	words := strings.Split(strings.ReplaceAll(eventType, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
