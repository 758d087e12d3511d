package logger

import (
	"fmt"

	"github.com/fatih/color"
)

// colorScheme defines consistent colors for summary output.
// Green: success/positive metrics
// Red: failure/error metrics
// Cyan: labels
type colorScheme struct {
	header  *color.Color
	success *color.Color
	fail    *color.Color
	label   *color.Color
	value   *color.Color
}

// newColorScheme creates the standard color scheme. When enabled is false
// every color prints plain text regardless of the terminal.
func newColorScheme(enabled bool) *colorScheme {
	scheme := &colorScheme{
		header:  color.New(color.Bold),
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
	for _, c := range []*color.Color{scheme.header, scheme.success, scheme.fail, scheme.label, scheme.value} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return scheme
}

// formatMetric formats "label: value" with a cyan label and the given value color.
func formatMetric(label string, value interface{}, valueColor *color.Color, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), valueColor.Sprintf("%v", value))
}

func levelColor(level string) *color.Color {
	var c *color.Color
	switch level {
	case "TRACE":
		c = color.New(color.FgHiBlack)
	case "DEBUG":
		c = color.New(color.FgCyan)
	case "INFO":
		c = color.New(color.FgBlue)
	case "WARN":
		c = color.New(color.FgYellow)
	case "ERROR":
		c = color.New(color.FgRed)
	default:
		c = color.New(color.Reset)
	}
	c.EnableColor()
	return c
}
