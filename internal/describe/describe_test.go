package describe

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposeImageDescription(t *testing.T) {
	aspects := map[string]string{
		AspectGeneral:     "driveway with parked sedan",
		AspectSecurity:    "PERSON_DETECTED near vehicle",
		AspectObjects:     "sedan, person, fence",
		AspectActivities:  "person walking toward house",
		AspectEnvironment: "overcast daytime",
	}

	got := ComposeImageDescription(aspects, []string{"PERSON_DETECTED", "VEHICLE_DETECTED"})

	assert.Equal(t,
		"SCENE: driveway with parked sedan | "+
			"SECURITY: PERSON_DETECTED near vehicle | "+
			"OBJECTS: sedan, person, fence | "+
			"ACTIVITY: person walking toward house | "+
			"SETTING: overcast daytime | "+
			"ALERTS: PERSON_DETECTED, VEHICLE_DETECTED",
		got)
}

func TestComposeImageDescriptionDropsUnusableAspects(t *testing.T) {
	aspects := map[string]string{
		AspectGeneral:     "empty street",
		AspectSecurity:    "Error: model unavailable",
		AspectObjects:     "",
		AspectActivities:  "no activities detected",
		AspectEnvironment: "night",
	}

	got := ComposeImageDescription(aspects, nil)

	assert.Equal(t, "SCENE: empty street | SETTING: night", got)
}

func TestComposeVideoDescription(t *testing.T) {
	events := []TimelineEvent{
		{TimeFormatted: "00:00", EventType: "general_activity", Description: "quiet driveway"},
		{TimeFormatted: "00:04", EventType: "person_enters", Description: "person enters from the left"},
		{TimeFormatted: "00:08", EventType: "vehicle_leaves", Description: "car leaves the frame"},
	}

	got := ComposeVideoDescription(events, 12.0, []string{"VEHICLE_DETECTED", "PERSON_DETECTED"})

	assert.True(t, strings.HasPrefix(got, "TIMELINE ANALYSIS (12.0s, 3 events)"), got)
	assert.Contains(t, got, "EVENTS: 00:00: quiet driveway | 00:04: person enters from the left | 00:08: car leaves the frame")
	assert.Contains(t, got, "EVENT TYPES: Person Enters, Vehicle Leaves")
	assert.Contains(t, got, "ALERTS: PERSON_DETECTED, VEHICLE_DETECTED")
}

func TestComposeVideoDescriptionEmpty(t *testing.T) {
	got := ComposeVideoDescription(nil, 7.5, nil)
	assert.Equal(t, "Video analysis complete (7.5s) - No significant events detected", got)
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "00:00", FormatTimestamp(0))
	assert.Equal(t, "00:59", FormatTimestamp(59.9))
	assert.Equal(t, "02:05", FormatTimestamp(125))
}

func TestConfidence(t *testing.T) {
	aspects := map[string]string{
		AspectGeneral:  "a b c d e",
		AspectSecurity: "nothing suspicious",
	}

	// 5 words / 50 = 0.1 base, one extra usable aspect = +0.1.
	got := Confidence("a b c d e", aspects)
	assert.InDelta(t, 0.2, got, 1e-9)

	// Detection keyword adds another 0.1.
	got = Confidence("a b c d PERSON_DETECTED", aspects)
	assert.InDelta(t, 0.3, got, 1e-9)
}

func TestConfidenceCapped(t *testing.T) {
	long := strings.Repeat("word ", 200)
	aspects := map[string]string{
		AspectGeneral:     "x",
		AspectSecurity:    "x",
		AspectObjects:     "x",
		AspectActivities:  "x",
		AspectEnvironment: "x",
	}
	assert.Equal(t, 1.0, Confidence(long+"PERSON_DETECTED", aspects))
}

func TestClassifyEvent(t *testing.T) {
	assert.Equal(t, "person_enters", classifyEvent("A person appears at the gate"))
	assert.Equal(t, "person_exits", classifyEvent("the person leaves the yard"))
	assert.Equal(t, "vehicle_arrives", classifyEvent("Car arrives in the driveway"))
	assert.Equal(t, "vehicle_leaves", classifyEvent("truck leaves slowly"))
	assert.Equal(t, "activity_starts", classifyEvent("movement starts near the door"))
	assert.Equal(t, "scene_change", classifyEvent("the view looks different now"))
	assert.Equal(t, "general_activity", classifyEvent("a dog sits on the lawn"))
}

func TestTokenOverlap(t *testing.T) {
	assert.Equal(t, 1.0, tokenOverlap("quiet empty driveway", "Quiet Empty Driveway"))
	assert.Equal(t, 0.0, tokenOverlap("person at door", "empty yard scene"))
	assert.InDelta(t, 2.0/3.0, tokenOverlap("person at door", "person near door"), 1e-9)
	assert.Equal(t, 0.0, tokenOverlap("", "anything"))
}

func TestSignificantChange(t *testing.T) {
	assert.True(t, significantChange("first scene", ""))
	assert.False(t, significantChange("", "prev"))
	assert.False(t, significantChange("quiet empty driveway", "quiet empty driveway"))
	assert.True(t, significantChange("person walks across lawn", "quiet empty driveway"))
}

func TestHeuristicDescribeImage(t *testing.T) {
	h := NewHeuristic()

	analysis, err := h.DescribeImage(context.Background(), testJPEG(t, 64, 48, color.RGBA{200, 200, 200, 255}))
	require.NoError(t, err)

	assert.Equal(t, 64, analysis.Width)
	assert.Equal(t, 48, analysis.Height)
	assert.Equal(t, "daytime scene", analysis.Aspects[AspectEnvironment])
	assert.NotEmpty(t, analysis.Caption)
	assert.Greater(t, analysis.Confidence, 0.0)

	dark, err := h.DescribeImage(context.Background(), testJPEG(t, 64, 48, color.RGBA{10, 10, 10, 255}))
	require.NoError(t, err)
	assert.Equal(t, "dark low light scene", dark.Aspects[AspectEnvironment])
}

func TestHeuristicDescribeImageRejectsGarbage(t *testing.T) {
	h := NewHeuristic()
	_, err := h.DescribeImage(context.Background(), []byte("not a jpeg"))
	assert.Error(t, err)
	assert.False(t, IsTransient(err))
}

func TestTransientClassification(t *testing.T) {
	assert.True(t, IsTransient(Transient(assert.AnError)))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(assert.AnError))
}

func testJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
