package output

import (
	"github.com/fatih/color"
)

// ColorScheme defines the colors used for different elements in the output
type ColorScheme struct {
	Title     *color.Color
	Rule      *color.Color
	Label     *color.Color
	Value     *color.Color
	Phase     *color.Color
	Good      *color.Color
	Warn      *color.Color
	Bad       *color.Color
	Dim       *color.Color
	Highlight *color.Color
}

// DefaultColorScheme returns the default color scheme
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Title:     color.New(color.Bold),
		Rule:      color.New(color.FgCyan),
		Label:     color.New(color.FgYellow),
		Value:     color.New(color.FgCyan),
		Phase:     color.New(color.FgMagenta),
		Good:      color.New(color.FgGreen, color.Bold),
		Warn:      color.New(color.FgYellow, color.Bold),
		Bad:       color.New(color.FgRed, color.Bold),
		Dim:       color.New(color.Faint),
		Highlight: color.New(color.FgMagenta, color.Bold),
	}
}

// NoColorScheme returns a color scheme with all colors disabled
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Title, s.Rule, s.Label, s.Value, s.Phase, s.Good, s.Warn, s.Bad, s.Dim, s.Highlight}
}

// Level picks Good, Warn or Bad for a value where higher is worse.
func (s *ColorScheme) Level(v, warn, bad float64) *color.Color {
	switch {
	case v > bad:
		return s.Bad
	case v > warn:
		return s.Warn
	default:
		return s.Good
	}
}

// ForGrade colors a letter grade.
func (s *ColorScheme) ForGrade(grade string) *color.Color {
	switch grade {
	case "A", "B":
		return s.Good
	case "C":
		return s.Warn
	default:
		return s.Bad
	}
}

// PassIcon returns a checkmark or cross in the matching color.
func (s *ColorScheme) PassIcon(passed bool) string {
	if passed {
		return s.Good.Sprint("✓")
	}
	return s.Bad.Sprint("✗")
}

// forcedColorScheme returns the default scheme with colors on regardless of
// what fatih/color detected for stdout.
func forcedColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}
