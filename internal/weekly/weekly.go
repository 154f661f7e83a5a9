// Package weekly collapses per-direction sensor rows into weekly sums.
package weekly

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/verte-zerg/countline/internal/model"
)

// RowIterator yields rows in date order and returns io.EOF after the last one.
type RowIterator interface {
	Next() (model.Row, error)
}

// WeekKey selects how rows are assigned to weeks.
type WeekKey int

const (
	// KeyYearWeek compares (year, week of year).
	KeyYearWeek WeekKey = iota
	// KeyWeekOnly compares the bare week of year. Rows a whole number of
	// years apart with the same week number share a bucket.
	KeyWeekOnly
)

// Options controls aggregation.
type Options struct {
	// FlushIncomplete emits the bucket that is still open when the rows
	// run out. By default it is dropped.
	FlushIncomplete bool
	WeekKey         WeekKey
	Logger          *slog.Logger
}

type weekID struct {
	year int
	week int
}

type bucket struct {
	start time.Time
	key   weekID
	in    []int64
	out   []int64
	total []int64
}

// WeekOfYear returns the Monday-first week number of t. Days before the
// first Monday of the year are in week 0.
func WeekOfYear(t time.Time) int {
	yearDay := t.YearDay() - 1
	weekday := (int(t.Weekday()) + 6) % 7
	return (yearDay + 7 - weekday) / 7
}

func keyFor(t time.Time, key WeekKey) weekID {
	if key == KeyWeekOnly {
		return weekID{week: WeekOfYear(t)}
	}
	return weekID{year: t.Year(), week: WeekOfYear(t)}
}

// Aggregate consumes rows and returns the weekly in, out and total sums for
// modes. It fails without partial output on the first bad row.
func Aggregate(rows RowIterator, modes []model.Mode, opts Options) (model.WeeklySeries, error) {
	if err := ValidateModes(modes); err != nil {
		return model.WeeklySeries{}, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	series := model.WeeklySeries{Modes: append([]model.Mode(nil), modes...)}
	var cur *bucket
	seen := 0
	for {
		row, err := rows.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return model.WeeklySeries{}, err
		}
		seen++

		rowKey := keyFor(row.Date, opts.WeekKey)
		if cur != nil && cur.key != rowKey {
			logger.Debug("week closed", "week", cur.start.Format("2006-01-02"), "total", model.Sum(cur.total))
			closeBucket(&series, cur)
		}
		if cur == nil || cur.key != rowKey {
			if cur != nil && opts.WeekKey == KeyYearWeek && cur.key.week == rowKey.week {
				logger.Debug("week number repeats across years; starting a new week",
					"previous", cur.start.Format("2006-01-02"), "date", row.Date.Format("2006-01-02"))
			}
			cur = newBucket(row.Date, rowKey, len(modes))
		}
		if err := cur.add(row, modes); err != nil {
			return model.WeeklySeries{}, err
		}
	}

	if seen == 0 {
		return model.WeeklySeries{}, model.ErrEmptyInput
	}
	if opts.FlushIncomplete {
		closeBucket(&series, cur)
	} else {
		logger.Debug("dropping last week", "week", cur.start.Format("2006-01-02"), "total", model.Sum(cur.total))
	}
	if series.Len() == 0 {
		return model.WeeklySeries{}, fmt.Errorf("%w: all rows fall in the final week", model.ErrEmptyInput)
	}
	logger.Debug("aggregated", "rows", seen, "weeks", series.Len())
	return series, nil
}

// AggregateRows aggregates an in-memory slice of rows.
func AggregateRows(rows []model.Row, modes []model.Mode, opts Options) (model.WeeklySeries, error) {
	return Aggregate(&sliceIterator{rows: rows}, modes, opts)
}

// ValidateModes checks that modes is a non-empty set of known modes.
func ValidateModes(modes []model.Mode) error {
	if len(modes) == 0 {
		return &model.ConfigurationError{Field: "modes", Reason: "at least one mode is required"}
	}
	seen := make(map[model.Mode]struct{}, len(modes))
	for _, m := range modes {
		if !isKnown(m) {
			return &model.ConfigurationError{Field: "mode", Value: string(m), Reason: "unknown mode"}
		}
		if _, dup := seen[m]; dup {
			return &model.ConfigurationError{Field: "mode", Value: string(m), Reason: "listed twice"}
		}
		seen[m] = struct{}{}
	}
	return nil
}

func isKnown(m model.Mode) bool {
	for _, k := range model.KnownModes {
		if k == m {
			return true
		}
	}
	return false
}

func newBucket(start time.Time, key weekID, n int) *bucket {
	return &bucket{
		start: start,
		key:   key,
		in:    make([]int64, n),
		out:   make([]int64, n),
		total: make([]int64, n),
	}
}

func (b *bucket) add(row model.Row, modes []model.Mode) error {
	var target []int64
	switch row.Direction {
	case model.DirectionIn:
		target = b.in
	case model.DirectionOut:
		target = b.out
	default:
		return &model.InvalidDirectionError{Line: row.Line, Value: string(row.Direction)}
	}
	for i, m := range modes {
		v, ok := row.Counts[m]
		if !ok {
			return &model.RowParseError{Line: row.Line, Column: string(m), Err: errors.New("missing count")}
		}
		target[i] += v
		b.total[i] += v
	}
	return nil
}

func closeBucket(series *model.WeeklySeries, b *bucket) {
	series.Weeks = append(series.Weeks, b.start)
	series.In = append(series.In, append([]int64(nil), b.in...))
	series.Out = append(series.Out, append([]int64(nil), b.out...))
	series.Total = append(series.Total, append([]int64(nil), b.total...))
}

type sliceIterator struct {
	rows []model.Row
	pos  int
}

func (it *sliceIterator) Next() (model.Row, error) {
	if it.pos >= len(it.rows) {
		return model.Row{}, io.EOF
	}
	row := it.rows[it.pos]
	it.pos++
	return row, nil
}
