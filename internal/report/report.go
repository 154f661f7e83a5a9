// Package report turns sensor exports into weekly series ready for charting.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/verte-zerg/countline/internal/logging"
	"github.com/verte-zerg/countline/internal/model"
	"github.com/verte-zerg/countline/internal/rowsource"
	"github.com/verte-zerg/countline/internal/weekly"
)

// Source opens the raw CSV export of a sensor.
type Source interface {
	Open(ctx context.Context, sensor string) (io.ReadCloser, error)
}

// Request selects what to aggregate.
type Request struct {
	Sensors   []string
	Modes     []model.Mode
	Locations map[string]string
	Options   weekly.Options
}

// SensorSeries is the weekly series of one sensor.
type SensorSeries struct {
	Name   string
	Label  string
	Series model.WeeklySeries
}

// Report contains the aggregated series in request order.
type Report struct {
	Modes   []model.Mode
	Sensors []SensorSeries
}

// Build fetches and aggregates each sensor in turn. The first failure
// aborts the build.
func Build(ctx context.Context, src Source, req Request, logger *slog.Logger) (Report, error) {
	if len(req.Sensors) == 0 {
		return Report{}, &model.ConfigurationError{Field: "sensors", Reason: "at least one sensor is required"}
	}
	if err := weekly.ValidateModes(req.Modes); err != nil {
		return Report{}, err
	}
	opts := req.Options
	if opts.Logger == nil {
		opts.Logger = logging.Component(logger, "weekly")
	}
	logger = logging.Component(logger, "report")

	out := Report{Modes: append([]model.Mode(nil), req.Modes...)}
	for _, sensor := range req.Sensors {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		sensorOpts := opts
		sensorOpts.Logger = opts.Logger.With("sensor", sensor)
		series, err := buildSensor(ctx, src, sensor, req.Modes, sensorOpts)
		if err != nil {
			return Report{}, fmt.Errorf("sensor %q: %w", sensor, err)
		}
		logger.Info("retrieved range",
			"sensor", sensor,
			"first", series.Weeks[0].Format("2006-01-02"),
			"last", series.Weeks[series.Len()-1].Format("2006-01-02"),
			"weeks", series.Len(),
		)
		out.Sensors = append(out.Sensors, SensorSeries{
			Name:   sensor,
			Label:  Label(req.Locations, sensor),
			Series: series,
		})
	}
	return out, nil
}

func buildSensor(ctx context.Context, src Source, sensor string, modes []model.Mode, opts weekly.Options) (model.WeeklySeries, error) {
	body, err := src.Open(ctx, sensor)
	if err != nil {
		return model.WeeklySeries{}, err
	}
	defer func() {
		_ = body.Close()
	}()
	rows, err := rowsource.Open(body, modes)
	if err != nil {
		return model.WeeklySeries{}, err
	}
	return weekly.Aggregate(rows, modes, opts)
}

// Label returns the configured location for a sensor, or the sensor name.
func Label(locations map[string]string, sensor string) string {
	if loc, ok := locations[sensor]; ok && loc != "" {
		return loc
	}
	return sensor
}
