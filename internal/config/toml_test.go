package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/countline/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	ann, err := cfg.AnnotationSet()
	if err != nil {
		t.Fatalf("AnnotationSet failed: %v", err)
	}
	if len(ann.Events) != 4 || len(ann.Bands) != 2 {
		t.Fatalf("expected default annotations, got %+v", ann)
	}
	if !ann.Bands[1].OpenEnded() {
		t.Fatalf("expected 2020 closure to be open ended")
	}
	if got := cfg.LocationMap()["Sensor 1: Mill Road"]; got != "362 Mill Rd" {
		t.Fatalf("unexpected default location: %q", got)
	}
}

func TestLoadConfigValues(t *testing.T) {
	path := writeConfig(t, `
[portal]
timeout = "5s"
area = "Oxford"

[plot]
sensors = ["Sensor 3: Coleridge Road"]
modes = ["Pedestrian", "Cyclist"]
directions = ["in", "out"]
width = 90

[aggregate]
flush-incomplete = true

[locations]
"Sensor 3: Coleridge Road" = "Coleridge Rd (north)"
"Sensor 99: Test" = "Nowhere"

[[events]]
date = "2022-02-01"
label = "Trial ends"

[[bands]]
start = "2022-03-01"
end = "2022-03-15"
label = "Roadworks"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Portal.Area == nil || *cfg.Portal.Area != "Oxford" {
		t.Fatalf("unexpected area: %v", cfg.Portal.Area)
	}
	if len(cfg.Plot.Modes) != 2 || cfg.Plot.Width == nil || *cfg.Plot.Width != 90 {
		t.Fatalf("unexpected plot config: %+v", cfg.Plot)
	}
	if cfg.Aggregate.FlushIncomplete == nil || !*cfg.Aggregate.FlushIncomplete {
		t.Fatalf("expected flush-incomplete to be set")
	}
	if cfg.Aggregate.LegacyWeekKey != nil {
		t.Fatalf("expected legacy-week-key to be unset")
	}
	timeout, err := cfg.Timeout(time.Minute)
	if err != nil || timeout != 5*time.Second {
		t.Fatalf("unexpected timeout %v (%v)", timeout, err)
	}

	locs := cfg.LocationMap()
	if locs["Sensor 3: Coleridge Road"] != "Coleridge Rd (north)" || locs["Sensor 99: Test"] != "Nowhere" {
		t.Fatalf("expected configured locations to win: %v", locs)
	}
	if locs["Sensor 1: Mill Road"] != "362 Mill Rd" {
		t.Fatalf("expected defaults to remain")
	}

	ann, err := cfg.AnnotationSet()
	if err != nil {
		t.Fatalf("AnnotationSet failed: %v", err)
	}
	if len(ann.Events) != 1 || ann.Events[0].Label != "Trial ends" {
		t.Fatalf("unexpected events: %+v", ann.Events)
	}
	if len(ann.Bands) != 1 || ann.Bands[0].End.Format("2006-01-02") != "2022-03-15" {
		t.Fatalf("unexpected bands: %+v", ann.Bands)
	}
}

func TestLoadConfigRejectsUnknownKey(t *testing.T) {
	path := writeConfig(t, "[plot]\nwidht = 3\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestAnnotationSetBadDate(t *testing.T) {
	cfg := FileConfig{Events: []EventConfig{{Date: "23/03/2020", Label: "x"}}}
	_, err := cfg.AnnotationSet()
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestTimeoutInvalid(t *testing.T) {
	bad := "soon"
	cfg := FileConfig{Portal: PortalConfig{Timeout: &bad}}
	if _, err := cfg.Timeout(time.Second); err == nil {
		t.Fatalf("expected error for invalid timeout")
	}
}
