package costime

import (
	"fmt"
	"strings"
)

// Format controls the text of start and end lines. Step lines are the same
// in every format.
type Format struct {
	Name string

	// IncludeStartTimestamp puts the captured wall-clock millis on start
	// lines and the end millis on end lines.
	IncludeStartTimestamp bool
}

var (
	// FormatCore writes "<label> start : <ms>" and "<label> end : <ms>, cosTime: <elapsed>".
	FormatCore = Format{Name: "core", IncludeStartTimestamp: true}

	// FormatExtractor writes "<label> start " and "<label> end , cosTime: <elapsed>".
	FormatExtractor = Format{Name: "extractor", IncludeStartTimestamp: false}
)

// ParseFormat resolves a preset by name
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", FormatCore.Name:
		return FormatCore, nil
	case FormatExtractor.Name:
		return FormatExtractor, nil
	default:
		return Format{}, fmt.Errorf("unknown format %q (want %s or %s)", name, FormatCore.Name, FormatExtractor.Name)
	}
}

func (f Format) startMessage(label string, startMillis int64) string {
	if f.IncludeStartTimestamp {
		return fmt.Sprintf("%s start : %d", label, startMillis)
	}
	return label + " start "
}

func (f Format) endMessage(label string, endMillis, elapsedMillis int64) string {
	if f.IncludeStartTimestamp {
		return fmt.Sprintf("%s end : %d, cosTime: %d", label, endMillis, elapsedMillis)
	}
	return fmt.Sprintf("%s end , cosTime: %d", label, elapsedMillis)
}

func (f Format) stepMessage(label string, elapsedMillis int64) string {
	return fmt.Sprintf("%s step : %d", label, elapsedMillis)
}
