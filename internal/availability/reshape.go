// Package availability turns the wide per-driver availability sheet into a
// long per-driver, per-date log and derives availability, shift and cluster
// membership for each entry.
package availability

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"driver-engagement-audit/internal/table"
)

// Identity columns carried onto every long-form row. Every other column of the
// wide sheet is read as a date label.
const (
	ColDriverID    = "driver_id"
	ColDriverName  = "driver_name"
	ColCluster     = "cluster"
	ColVehicleType = "vehicle_type"
	ColNoShowTime  = "no_show_time"
)

var identityColumns = []string{ColDriverID, ColDriverName, ColCluster, ColVehicleType, ColNoShowTime}

// Record is one driver on one calendar date.
type Record struct {
	DriverID      string    `json:"driver_id"`
	DriverName    string    `json:"driver_name"`
	Cluster       string    `json:"cluster"`
	VehicleType   string    `json:"vehicle_type"`
	NoShowTime    string    `json:"no_show_time"`
	Date          time.Time `json:"date"`
	Status        string    `json:"status"`
	Available     bool      `json:"available"`
	Shift         Shift     `json:"shift"`
	Rule          string    `json:"rule,omitempty"`
	ClusterMember *string   `json:"cluster_member"`
}

// DriverKey identifies a driver the way the summary joins do.
type DriverKey struct {
	DriverID   string
	DriverName string
}

// Key returns the (driver_id, driver_name) pair for r.
func (r Record) Key() DriverKey {
	return DriverKey{DriverID: r.DriverID, DriverName: r.DriverName}
}

// Log is the long-form availability table.
type Log struct {
	Records []Record `json:"records"`
	// Identity lists the identity columns that were present in the wide sheet.
	Identity []string `json:"identity"`
	// SkippedColumns lists wide-sheet columns whose label did not parse as a date.
	SkippedColumns []string `json:"skipped_columns,omitempty"`
}

// HasColumn reports whether the wide sheet carried the identity column.
func (l Log) HasColumn(column string) bool {
	for _, name := range l.Identity {
		if name == column {
			return true
		}
	}
	return false
}

// Reshape pivots a normalized wide table into the long form. Columns whose
// label is not a date are skipped column by column; the load goes on.
func Reshape(wide table.Table) Log {
	present := make(map[string]int, len(identityColumns))
	var identity []string
	for _, column := range identityColumns {
		if idx, ok := wide.Index(column); ok {
			present[column] = idx
			identity = append(identity, column)
		}
	}

	type dateColumn struct {
		idx  int
		date time.Time
	}
	var dates []dateColumn
	var skipped []string
	for idx, label := range wide.Header {
		if isIdentity(label) {
			continue
		}
		parsed, err := ParseDate(label)
		if err != nil {
			skipped = append(skipped, label)
			continue
		}
		dates = append(dates, dateColumn{idx: idx, date: parsed})
	}

	cell := func(row []string, column string) string {
		idx, ok := present[column]
		if !ok {
			return ""
		}
		return table.Value(row, idx)
	}

	records := make([]Record, 0, len(dates)*len(wide.Rows))
	for _, dc := range dates {
		for _, row := range wide.Rows {
			records = append(records, Record{
				DriverID:    cell(row, ColDriverID),
				DriverName:  cell(row, ColDriverName),
				Cluster:     cell(row, ColCluster),
				VehicleType: cell(row, ColVehicleType),
				NoShowTime:  cell(row, ColNoShowTime),
				Date:        dc.date,
				Status:      table.Value(row, dc.idx),
			})
		}
	}

	return Log{Records: records, Identity: identity, SkippedColumns: skipped}
}

func isIdentity(label string) bool {
	for _, column := range identityColumns {
		if column == label {
			return true
		}
	}
	return false
}

// Month-first layouts come before the day-first ones, so 03/05/2024 is
// March 5 and 15/01/2024 falls through to January 15.
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
	"01/02/2006",
	"01-02-2006",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006 15:04:05",
	"20060102_150405",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"02/01/2006",
	"02-01-2006",
	"02/01/2006 15:04",
	"02/01/2006 15:04:05",
}

// ParseDate parses a date label or a delivery timestamp into a UTC calendar
// date. Normalized sheet labels lose their separators, so the compact layouts
// are tried as well.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return DateOnly(parsed), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format: %s", value)
}

// DateOnly truncates value to midnight UTC of its calendar date.
func DateOnly(value time.Time) time.Time {
	if value.IsZero() {
		return value
	}
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}
