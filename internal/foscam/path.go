// Package foscam parses the directory and filename conventions produced by
// Foscam-family IP cameras: <root>/<location>/<device>/(snap|record)/<name>.
package foscam

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var ErrUnrecognizedPath = errors.New("path does not match foscam layout")

// Device types inferred from the device directory prefix.
const (
	DeviceStandard = "FoscamCamera"
	DeviceR2       = "R2"
	DeviceR2C      = "R2C"
	DeviceUnknown  = "Unknown"
)

// Artifact kinds by subdirectory.
const (
	KindSnap   = "snap"
	KindRecord = "record"
)

// Media types derived from the kind.
const (
	MediaImage = "image"
	MediaVideo = "video"
)

// Motion trigger types encoded in the filename prefix.
const (
	MotionMD  = "MD"
	MotionHMD = "HMD"
)

// Filename prefixes. Images are MDAlarm_/HMDAlarm_, videos MDalarm_
// (lowercase "alarm"; the firmware is inconsistent and we must be exact).
var (
	imagePrefixes = []string{"MDAlarm_", "HMDAlarm_"}
	videoPrefixes = []string{"MDalarm_"}
)

const (
	imageTimeLayout = "20060102-150405"
	videoTimeLayout = "20060102_150405"
)

// Info is the parse result for one artifact path.
type Info struct {
	Location   string
	DeviceName string
	DeviceType string
	Kind       string // snap | record
	MediaType  string // image | video
	MotionType string // MD | HMD
	Filename   string

	// Timestamp parsed from the filename's datetime group, local time.
	// Zero (and TimestampOK false) when the group is unparseable.
	Timestamp   time.Time
	TimestampOK bool
}

// FullName is the display identifier "<location>_<device_name>".
func (i *Info) FullName() string {
	return i.Location + "_" + i.DeviceName
}

// DeviceTypeFor infers the device type from a device directory name.
func DeviceTypeFor(deviceName string) string {
	switch {
	case strings.HasPrefix(deviceName, "FoscamCamera"):
		return DeviceStandard
	case strings.HasPrefix(deviceName, "R2C"):
		return DeviceR2C
	case strings.HasPrefix(deviceName, "R2"):
		return DeviceR2
	default:
		return DeviceUnknown
	}
}

// IsCameraDevice reports whether a directory name looks like a camera device.
func IsCameraDevice(deviceName string) bool {
	return DeviceTypeFor(deviceName) != DeviceUnknown
}

// ParsePath parses an absolute artifact path. The last four path elements
// must be <location>/<device>/(snap|record)/<filename> and the filename must
// match the alarm grammar for the kind. Anything else returns
// ErrUnrecognizedPath with no side effects.
func ParsePath(path string) (*Info, error) {
	clean := filepath.Clean(path)
	parts := strings.Split(clean, string(filepath.Separator))
	if len(parts) < 4 {
		return nil, ErrUnrecognizedPath
	}

	filename := parts[len(parts)-1]
	kind := parts[len(parts)-2]
	device := parts[len(parts)-3]
	location := parts[len(parts)-4]

	if kind != KindSnap && kind != KindRecord {
		return nil, ErrUnrecognizedPath
	}
	if location == "" || !IsCameraDevice(device) {
		return nil, ErrUnrecognizedPath
	}

	info, err := ParseFilename(filename, kind)
	if err != nil {
		return nil, err
	}
	info.Location = location
	info.DeviceName = device
	info.DeviceType = DeviceTypeFor(device)
	return info, nil
}

// ParseFilename validates a filename against the grammar for the given kind
// and extracts motion type and timestamp.
func ParseFilename(filename, kind string) (*Info, error) {
	info := &Info{Kind: kind, Filename: filename}

	switch kind {
	case KindSnap:
		if !strings.HasSuffix(filename, ".jpg") {
			return nil, ErrUnrecognizedPath
		}
		prefix := matchPrefix(filename, imagePrefixes)
		if prefix == "" {
			return nil, ErrUnrecognizedPath
		}
		info.MediaType = MediaImage
		info.MotionType = MotionMD
		if prefix == "HMDAlarm_" {
			info.MotionType = MotionHMD
		}
		stamp := strings.TrimSuffix(filename[len(prefix):], ".jpg")
		if ts, err := time.ParseInLocation(imageTimeLayout, stamp, time.Local); err == nil {
			info.Timestamp = ts
			info.TimestampOK = true
		}
	case KindRecord:
		if !strings.HasSuffix(filename, ".mkv") {
			return nil, ErrUnrecognizedPath
		}
		prefix := matchPrefix(filename, videoPrefixes)
		if prefix == "" {
			return nil, ErrUnrecognizedPath
		}
		info.MediaType = MediaVideo
		info.MotionType = MotionMD
		stamp := strings.TrimSuffix(filename[len(prefix):], ".mkv")
		if ts, err := time.ParseInLocation(videoTimeLayout, stamp, time.Local); err == nil {
			info.Timestamp = ts
			info.TimestampOK = true
		}
	default:
		return nil, ErrUnrecognizedPath
	}

	return info, nil
}

// Render reconstructs the filename from parsed fields. Inverse of
// ParseFilename for well-formed names.
func Render(info *Info) string {
	switch info.MediaType {
	case MediaImage:
		prefix := "MDAlarm_"
		if info.MotionType == MotionHMD {
			prefix = "HMDAlarm_"
		}
		return fmt.Sprintf("%s%s.jpg", prefix, info.Timestamp.Format(imageTimeLayout))
	case MediaVideo:
		return fmt.Sprintf("MDalarm_%s.mkv", info.Timestamp.Format(videoTimeLayout))
	}
	return ""
}

func matchPrefix(name string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return p
		}
	}
	return ""
}
