// Package rowsource decodes countline CSV exports into typed rows.
package rowsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/countline/internal/model"
)

// Column names in the portal CSV header.
const (
	ColumnDate      = "Date"
	ColumnDirection = "direction"
)

// DateLayout is the day/month/year format used by the portal. Day and
// month may be zero padded or not.
const DateLayout = "2/1/2006"

const (
	utf8BOM   = "\ufeff"
	// A UTF-8 byte order mark read as ISO-8859-1.
	latin1BOM = "\u00ef\u00bb\u00bf"
)

// Schema maps the fields a Row needs to CSV column positions.
type Schema struct {
	Date      int
	Direction int
	Modes     []model.Mode
	ModeIdx   []int
	width     int
}

// Reader yields rows from a CSV stream. It is single-use.
type Reader struct {
	csv    *csv.Reader
	schema Schema
	line   int
}

// Open reads the header from r and resolves the columns for modes.
func Open(r io.Reader, modes []model.Mode) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("csv header: %w", model.ErrEmptyInput)
		}
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	schema, err := ResolveSchema(header, modes)
	if err != nil {
		return nil, err
	}
	return &Reader{csv: cr, schema: schema, line: 1}, nil
}

// ResolveSchema locates the date, direction and mode columns in header.
func ResolveSchema(header []string, modes []model.Mode) (Schema, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(strings.TrimPrefix(name, utf8BOM), latin1BOM)
		}
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}

	schema := Schema{Modes: append([]model.Mode(nil), modes...)}
	var ok bool
	if schema.Date, ok = index[ColumnDate]; !ok {
		return Schema{}, &model.RowParseError{Line: 1, Column: ColumnDate, Err: errors.New("column missing from header")}
	}
	if schema.Direction, ok = index[ColumnDirection]; !ok {
		return Schema{}, &model.RowParseError{Line: 1, Column: ColumnDirection, Err: errors.New("column missing from header")}
	}
	schema.width = max(schema.Date, schema.Direction) + 1
	schema.ModeIdx = make([]int, len(modes))
	for i, m := range modes {
		idx, found := index[string(m)]
		if !found {
			return Schema{}, &model.ConfigurationError{Field: "mode", Value: string(m), Reason: "column not present in data"}
		}
		schema.ModeIdx[i] = idx
		schema.width = max(schema.width, idx+1)
	}
	return schema, nil
}

// Schema returns the resolved column layout.
func (r *Reader) Schema() Schema {
	return r.schema
}

// Next returns the next row, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (model.Row, error) {
	record, err := r.csv.Read()
	if errors.Is(err, io.EOF) {
		return model.Row{}, io.EOF
	}
	if err != nil {
		line := r.line + 1
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			line = perr.Line
		}
		return model.Row{}, &model.RowParseError{Line: line, Column: "*", Err: err}
	}
	r.line, _ = r.csv.FieldPos(0)
	return r.parse(record)
}

func (r *Reader) parse(record []string) (model.Row, error) {
	s := r.schema
	if len(record) < s.width {
		return model.Row{}, &model.RowParseError{
			Line:   r.line,
			Column: "*",
			Err:    fmt.Errorf("expected at least %d fields, got %d", s.width, len(record)),
		}
	}

	rawDate := strings.TrimSpace(record[s.Date])
	date, err := time.Parse(DateLayout, rawDate)
	if err != nil {
		return model.Row{}, &model.RowParseError{Line: r.line, Column: ColumnDate, Value: rawDate, Err: err}
	}

	row := model.Row{
		Line:      r.line,
		Date:      date,
		Direction: model.Direction(record[s.Direction]),
		Counts:    make(map[model.Mode]int64, len(s.Modes)),
	}
	for i, m := range s.Modes {
		raw := strings.TrimSpace(record[s.ModeIdx[i]])
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.Row{}, &model.RowParseError{Line: r.line, Column: string(m), Value: raw, Err: err}
		}
		if n < 0 {
			return model.Row{}, &model.RowParseError{Line: r.line, Column: string(m), Value: raw, Err: errors.New("negative count")}
		}
		row.Counts[m] = n
	}
	return row, nil
}
