// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/countline/internal/model"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Portal    PortalConfig      `toml:"portal"`
	Plot      PlotConfig        `toml:"plot"`
	Aggregate AggregateConfig   `toml:"aggregate"`
	Log       LogConfig         `toml:"log"`
	Locations map[string]string `toml:"locations"`
	Events    []EventConfig     `toml:"events"`
	Bands     []BandConfig      `toml:"bands"`
}

// PortalConfig maps data portal settings.
type PortalConfig struct {
	MetadataURL *string `toml:"metadata-url"`
	Timeout     *string `toml:"timeout"`
	Area        *string `toml:"area"`
}

// PlotConfig maps chart settings.
type PlotConfig struct {
	Sensors    []string `toml:"sensors"`
	Modes      []string `toml:"modes"`
	Directions []string `toml:"directions"`
	Width      *int     `toml:"width"`
	Height     *int     `toml:"height"`
	Color      *bool    `toml:"color"`
}

// AggregateConfig maps weekly aggregation switches.
type AggregateConfig struct {
	FlushIncomplete *bool `toml:"flush-incomplete"`
	LegacyWeekKey   *bool `toml:"legacy-week-key"`
}

// LogConfig maps diagnostic logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// EventConfig is a single dated marker.
type EventConfig struct {
	Date  string `toml:"date"`
	Label string `toml:"label"`
}

// BandConfig is a shaded period. An empty end runs to the last week.
type BandConfig struct {
	Start string `toml:"start"`
	End   string `toml:"end"`
	Label string `toml:"label"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}

// Timeout parses the portal timeout, or returns fallback when unset.
func (c FileConfig) Timeout(fallback time.Duration) (time.Duration, error) {
	if c.Portal.Timeout == nil {
		return fallback, nil
	}
	d, err := time.ParseDuration(*c.Portal.Timeout)
	if err != nil || d <= 0 {
		return 0, &model.ConfigurationError{Field: "portal.timeout", Value: *c.Portal.Timeout, Reason: "must be a positive duration"}
	}
	return d, nil
}

// LocationMap merges configured locations over the built-in table.
func (c FileConfig) LocationMap() map[string]string {
	out := DefaultLocations()
	for sensor, loc := range c.Locations {
		out[sensor] = loc
	}
	return out
}

// AnnotationSet returns the configured events and bands. When the file
// declares neither, the built-in key dates are used.
func (c FileConfig) AnnotationSet() (model.Annotations, error) {
	if c.Events == nil && c.Bands == nil {
		return DefaultAnnotations(), nil
	}
	var out model.Annotations
	for _, ev := range c.Events {
		date, err := parseDate("events.date", ev.Date)
		if err != nil {
			return model.Annotations{}, err
		}
		out.Events = append(out.Events, model.Event{Date: date, Label: ev.Label})
	}
	for _, b := range c.Bands {
		start, err := parseDate("bands.start", b.Start)
		if err != nil {
			return model.Annotations{}, err
		}
		band := model.Band{Start: start, Label: b.Label}
		if b.End != "" {
			end, err := parseDate("bands.end", b.End)
			if err != nil {
				return model.Annotations{}, err
			}
			if end.Before(start) {
				return model.Annotations{}, &model.ConfigurationError{Field: "bands.end", Value: b.End, Reason: "before start"}
			}
			band.End = end
		}
		out.Bands = append(out.Bands, band)
	}
	return out, nil
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, &model.ConfigurationError{Field: field, Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}
