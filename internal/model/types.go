// Package model defines shared data structures.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Direction is the crossing direction of a countline sensor.
type Direction string

// Directions counted by the portal sensors.
const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// Mode is a counted vehicle or pedestrian category.
type Mode string

// Count columns published for every countline sensor.
const (
	ModeCar        Mode = "Car"
	ModePedestrian Mode = "Pedestrian"
	ModeCyclist    Mode = "Cyclist"
	ModeMotorbike  Mode = "Motorbike"
	ModeBus        Mode = "Bus"
	ModeOGV1       Mode = "OGV1"
	ModeOGV2       Mode = "OGV2"
	ModeLGV        Mode = "LGV"
)

// KnownModes lists the count columns in portal order.
var KnownModes = []Mode{
	ModeCar,
	ModePedestrian,
	ModeCyclist,
	ModeMotorbike,
	ModeBus,
	ModeOGV1,
	ModeOGV2,
	ModeLGV,
}

// DefaultModes groups all motor vehicles except buses.
var DefaultModes = []Mode{ModeCar, ModeMotorbike, ModeOGV1, ModeOGV2, ModeLGV}

// Row is one sensor reading.
type Row struct {
	Line      int
	Date      time.Time
	Direction Direction
	Counts    map[Mode]int64
}

// WeeklySeries holds index-aligned weekly sums. In, Out and Total hold one
// entry per week, each ordered like Modes.
type WeeklySeries struct {
	Modes []Mode
	Weeks []time.Time
	In    [][]int64
	Out   [][]int64
	Total [][]int64
}

// Len returns the number of emitted weeks.
func (s WeeklySeries) Len() int {
	return len(s.Weeks)
}

// Sum returns the sum over all modes of values[i].
func Sum(values []int64) int64 {
	var total int64
	for _, v := range values {
		total += v
	}
	return total
}

// Event marks a single notable date on a chart.
type Event struct {
	Date  time.Time
	Label string
}

// Band marks a closed period on a chart. A zero End extends the band to
// the last plotted week.
type Band struct {
	Start time.Time
	End   time.Time
	Label string
}

// OpenEnded reports whether the band has no end date.
func (b Band) OpenEnded() bool {
	return b.End.IsZero()
}

// Annotations groups the calendar markers drawn over a chart.
type Annotations struct {
	Events []Event
	Bands  []Band
}

// ParseModes parses a comma-separated mode list. Names are matched
// case-insensitively against KnownModes.
func ParseModes(input string) ([]Mode, error) {
	parts := strings.Split(input, ",")
	modes := make([]Mode, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mode, ok := LookupMode(part)
		if !ok {
			return nil, &ConfigurationError{Field: "modes", Value: part, Reason: fmt.Sprintf("unknown mode (known: %s)", ModeList(KnownModes))}
		}
		modes = append(modes, mode)
	}
	if len(modes) == 0 {
		return nil, &ConfigurationError{Field: "modes", Value: input, Reason: "no modes given"}
	}
	return modes, nil
}

// LookupMode resolves a mode name case-insensitively.
func LookupMode(name string) (Mode, bool) {
	for _, m := range KnownModes {
		if strings.EqualFold(string(m), name) {
			return m, true
		}
	}
	return "", false
}

// ModeList renders modes as a comma-separated list.
func ModeList(modes []Mode) string {
	names := make([]string, len(modes))
	for i, m := range modes {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
