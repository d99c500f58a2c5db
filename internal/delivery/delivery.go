// Package delivery counts distinct delivery days per driver from a loosely
// named delivery-event sheet.
package delivery

import (
	"sort"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/table"
)

var (
	DateField = table.Field{
		Name:     "delivery_date",
		Aliases:  []string{"delivery_date", "date", "data_entrega", "task_date", "task_at_date"},
		Contains: [][]string{{"delivery", "date"}},
	}
	DriverIDField = table.Field{
		Name:     "driver_id",
		Aliases:  []string{"driver_id"},
		Contains: [][]string{{"driver_id"}, {"driver", "id"}},
	}
	DriverNameField = table.Field{
		Name:     "driver_name",
		Aliases:  []string{"driver_name", "driver_nome", "driver"},
		Contains: [][]string{{"driver_name"}, {"driver_nome"}, {"driver", "name"}, {"driver", "nome"}},
	}
)

// Resolution records which delivery columns were used.
type Resolution struct {
	Date       table.Resolution `json:"date"`
	DriverID   table.Resolution `json:"driver_id"`
	DriverName table.Resolution `json:"driver_name"`
}

// Usable reports whether there is a date column and at least one identity column.
func (r Resolution) Usable() bool {
	return r.Date.Found() && (r.DriverID.Found() || r.DriverName.Found())
}

// Count is the delivery-day total of one driver.
type Count struct {
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name"`
	Days       int    `json:"days_delivered"`
}

// Summary maps drivers to distinct delivery days. The zero value is a valid
// empty summary.
type Summary struct {
	Resolution  Resolution `json:"resolution"`
	Counts      []Count    `json:"counts"`
	DroppedRows int        `json:"dropped_rows"`

	byPair map[availability.DriverKey]int
	byID   map[string]int
	byName map[string]int
}

// Days returns the delivery days for a driver. The lookup key follows the
// identity columns the sheet actually had: both, id only, or name only.
func (s Summary) Days(driverID, driverName string) int {
	switch {
	case s.Resolution.DriverID.Found() && s.Resolution.DriverName.Found():
		return s.byPair[availability.DriverKey{DriverID: driverID, DriverName: driverName}]
	case s.Resolution.DriverID.Found():
		return s.byID[driverID]
	case s.Resolution.DriverName.Found():
		return s.byName[driverName]
	}
	return 0
}

// Aggregate counts distinct delivery dates per driver. When the sheet has no
// recognizable date or identity column the summary is empty; rows with an
// unparsable date are dropped.
func Aggregate(events table.Table) Summary {
	events = table.NormalizeColumns(events)
	res := Resolution{
		Date:       table.Resolve(events.Header, DateField),
		DriverID:   table.Resolve(events.Header, DriverIDField),
		DriverName: table.Resolve(events.Header, DriverNameField),
	}
	// A header such as driver_name_id satisfies both heuristics; it counts as the id.
	if res.DriverID.Found() && res.DriverName.Found() && res.DriverID.Index == res.DriverName.Index {
		res.DriverName = table.Resolution{Field: DriverNameField.Name, Index: -1}
	}
	summary := Summary{Resolution: res}
	if !res.Usable() {
		return summary
	}

	days := map[availability.DriverKey]map[int64]bool{}
	for _, row := range events.Rows {
		parsed, err := availability.ParseDate(table.Value(row, res.Date.Index))
		if err != nil {
			summary.DroppedRows++
			continue
		}
		key := availability.DriverKey{
			DriverID:   table.Value(row, res.DriverID.Index),
			DriverName: table.Value(row, res.DriverName.Index),
		}
		if days[key] == nil {
			days[key] = map[int64]bool{}
		}
		days[key][parsed.Unix()] = true
	}

	summary.byPair = make(map[availability.DriverKey]int, len(days))
	summary.byID = map[string]int{}
	summary.byName = map[string]int{}
	idDays := map[string]map[int64]bool{}
	nameDays := map[string]map[int64]bool{}
	for key, dates := range days {
		summary.byPair[key] = len(dates)
		summary.Counts = append(summary.Counts, Count{DriverID: key.DriverID, DriverName: key.DriverName, Days: len(dates)})
		if idDays[key.DriverID] == nil {
			idDays[key.DriverID] = map[int64]bool{}
		}
		if nameDays[key.DriverName] == nil {
			nameDays[key.DriverName] = map[int64]bool{}
		}
		for date := range dates {
			idDays[key.DriverID][date] = true
			nameDays[key.DriverName][date] = true
		}
	}
	for id, dates := range idDays {
		summary.byID[id] = len(dates)
	}
	for name, dates := range nameDays {
		summary.byName[name] = len(dates)
	}

	sort.Slice(summary.Counts, func(i, j int) bool {
		if summary.Counts[i].DriverID != summary.Counts[j].DriverID {
			return summary.Counts[i].DriverID < summary.Counts[j].DriverID
		}
		return summary.Counts[i].DriverName < summary.Counts[j].DriverName
	})
	return summary
}
