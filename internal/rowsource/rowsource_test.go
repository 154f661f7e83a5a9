package rowsource

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/countline/internal/model"
	"github.com/verte-zerg/countline/internal/weekly"
)

const sampleCSV = "\ufeffLocal Time (Sensor),Date,Time,countlineName,direction,Car,Pedestrian,Cyclist,Motorbike,Bus,OGV1,OGV2,LGV\n" +
	"04/01/2021 00:00,04/01/2021,00:00,S1_MillRoad_CAM003,in,5,1,2,0,0,0,0,1\n" +
	"04/01/2021 00:00,04/01/2021,00:00,S1_MillRoad_CAM003,out,3,0,1,1,0,0,1,0\n" +
	"11/01/2021 00:15,11/01/2021,00:15,S1_MillRoad_CAM003,in, 7 ,0,0,0,1,0,0,0\n"

func readAll(t *testing.T, r *Reader) []model.Row {
	t.Helper()
	var rows []model.Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return rows
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		rows = append(rows, row)
	}
}

func TestReaderParsesRows(t *testing.T) {
	r, err := Open(strings.NewReader(sampleCSV), []model.Mode{model.ModeCar, model.ModeLGV})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	schema := r.Schema()
	if schema.Date != 1 || schema.Direction != 4 {
		t.Fatalf("unexpected schema: %+v", schema)
	}
	rows := readAll(t, r)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	first := rows[0]
	if first.Date.Format("2006-01-02") != "2021-01-04" {
		t.Fatalf("unexpected date: %s", first.Date)
	}
	if first.Direction != model.DirectionIn {
		t.Fatalf("unexpected direction: %q", first.Direction)
	}
	if first.Counts[model.ModeCar] != 5 || first.Counts[model.ModeLGV] != 1 {
		t.Fatalf("unexpected counts: %v", first.Counts)
	}
	if _, ok := first.Counts[model.ModeBus]; ok {
		t.Fatalf("expected only requested modes, got %v", first.Counts)
	}
	if rows[2].Counts[model.ModeCar] != 7 {
		t.Fatalf("expected trimmed count 7, got %d", rows[2].Counts[model.ModeCar])
	}
	if rows[2].Line != 4 {
		t.Fatalf("expected line 4, got %d", rows[2].Line)
	}
}

func TestReaderParsesDateLayouts(t *testing.T) {
	want := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		date string
	}{
		{name: "padded", date: "04/01/2021"},
		{name: "unpadded", date: "4/1/2021"},
		{name: "unpadded day", date: "4/01/2021"},
		{name: "unpadded month", date: "04/1/2021"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Open(strings.NewReader("Date,direction,Car\n"+tc.date+",in,5\n"), []model.Mode{model.ModeCar})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			row, err := r.Next()
			if err != nil {
				t.Fatalf("Next failed: %v", err)
			}
			if !row.Date.Equal(want) {
				t.Fatalf("expected %s, got %s", want, row.Date)
			}
		})
	}
}

func TestOpenMissingModeColumn(t *testing.T) {
	data := "Date,direction,Car\n04/01/2021,in,1\n"
	_, err := Open(strings.NewReader(data), []model.Mode{model.ModeCar, model.ModeCyclist})
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Value != "Cyclist" {
		t.Fatalf("unexpected mode in error: %q", cfgErr.Value)
	}
}

func TestOpenMissingRequiredColumn(t *testing.T) {
	data := "Date,Car\n04/01/2021,1\n"
	_, err := Open(strings.NewReader(data), []model.Mode{model.ModeCar})
	var parseErr *model.RowParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected RowParseError, got %v", err)
	}
	if parseErr.Column != ColumnDirection {
		t.Fatalf("unexpected column: %q", parseErr.Column)
	}
}

func TestOpenEmptyStream(t *testing.T) {
	_, err := Open(strings.NewReader(""), []model.Mode{model.ModeCar})
	if !errors.Is(err, model.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestNextParseErrors(t *testing.T) {
	cases := []struct {
		name   string
		row    string
		column string
	}{
		{"bad date", "2021-01-04,in,1", ColumnDate},
		{"non numeric", "04/01/2021,in,lots", "Car"},
		{"empty count", "04/01/2021,in,", "Car"},
		{"negative", "04/01/2021,in,-2", "Car"},
		{"short row", "04/01/2021,in", "*"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Open(strings.NewReader("Date,direction,Car\n"+tc.row+"\n"), []model.Mode{model.ModeCar})
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			_, err = r.Next()
			var parseErr *model.RowParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected RowParseError, got %v", err)
			}
			if parseErr.Column != tc.column || parseErr.Line != 2 {
				t.Fatalf("unexpected error details: %+v", parseErr)
			}
		})
	}
}

func TestDirectionPassesThrough(t *testing.T) {
	r, err := Open(strings.NewReader("Date,direction,Car\n04/01/2021,sideways,1\n"), []model.Mode{model.ModeCar})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	row, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if row.Direction != "sideways" {
		t.Fatalf("expected raw direction, got %q", row.Direction)
	}
}

func TestPaddedDirectionFailsAggregation(t *testing.T) {
	data := "Date,direction,Car\n04/01/2021, in ,5\n11/01/2021,in,1\n"
	r, err := Open(strings.NewReader(data), []model.Mode{model.ModeCar})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	series, err := weekly.Aggregate(r, []model.Mode{model.ModeCar}, weekly.Options{})
	var dirErr *model.InvalidDirectionError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected InvalidDirectionError, got series=%v err=%v", series.Total, err)
	}
	if dirErr.Value != " in " || dirErr.Line != 2 {
		t.Fatalf("unexpected error: %+v", dirErr)
	}
}

func TestOpenStripsByteOrderMarks(t *testing.T) {
	for _, bom := range []string{utf8BOM, latin1BOM} {
		r, err := Open(strings.NewReader(bom+"Date,direction,Car\n04/01/2021,in,2\n"), []model.Mode{model.ModeCar})
		if err != nil {
			t.Fatalf("Open with BOM %q failed: %v", bom, err)
		}
		if rows := readAll(t, r); len(rows) != 1 || rows[0].Counts[model.ModeCar] != 2 {
			t.Fatalf("unexpected rows: %+v", rows)
		}
	}
}
