package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-engagement-audit/internal/table"
)

func TestAggregateCountsDistinctDays(t *testing.T) {
	events := table.Table{
		Header: []string{"Driver ID", "Driver Name", "Delivery Date", "Route"},
		Rows: [][]string{
			{"D1", "Ana", "2024-01-01", "r1"},
			{"D1", "Ana", "2024-01-01 18:30:00", "r2"},
			{"D1", "Ana", "2024-01-03", "r3"},
			{"D2", "Bia", "not a date", "r4"},
			{"D2", "Bia", "2024-01-02", "r5"},
		},
	}

	summary := Aggregate(events)

	require.True(t, summary.Resolution.Usable())
	assert.Equal(t, "delivery_date", summary.Resolution.Date.Column)
	assert.Equal(t, "alias:delivery_date", summary.Resolution.Date.Rule)
	assert.Equal(t, 1, summary.DroppedRows)
	assert.Equal(t, 2, summary.Days("D1", "Ana"))
	assert.Equal(t, 1, summary.Days("D2", "Bia"))
	assert.Equal(t, 0, summary.Days("D1", "Other"))
	assert.Equal(t, []Count{{"D1", "Ana", 2}, {"D2", "Bia", 1}}, summary.Counts)
}

func TestAggregateTimestampedDates(t *testing.T) {
	events := table.Table{
		Header: []string{"Driver ID", "Driver Name", "Delivery Date"},
		Rows: [][]string{
			{"D1", "Ana", "2024-01-15 10:30"},
			{"D1", "Ana", "2024-01-16 08:05:00.000"},
			{"D1", "Ana", "15/01/2024"},
			{"D1", "Ana", "2024-01-17"},
			{"D1", "Ana", "01/18/2024 07:45"},
		},
	}

	summary := Aggregate(events)

	assert.Equal(t, 0, summary.DroppedRows)
	assert.Equal(t, 4, summary.Days("D1", "Ana"))
}

func TestAggregateHeuristicColumns(t *testing.T) {
	events := table.Table{
		Header: []string{"Task At Date", "Motorista Driver Code ID", "Driver"},
		Rows: [][]string{
			{"2024-02-01", "X9", "Caio"},
			{"2024-02-02", "X9", "Caio"},
		},
	}

	summary := Aggregate(events)

	assert.Equal(t, "alias:task_at_date", summary.Resolution.Date.Rule)
	assert.Equal(t, "motorista_driver_code_id", summary.Resolution.DriverID.Column)
	assert.Equal(t, "contains:driver+id", summary.Resolution.DriverID.Rule)
	assert.Equal(t, "alias:driver", summary.Resolution.DriverName.Rule)
	assert.Equal(t, 2, summary.Days("X9", "Caio"))
}

func TestAggregateIDOnlyJoinsByID(t *testing.T) {
	events := table.Table{
		Header: []string{"driver_id", "date"},
		Rows:   [][]string{{"D1", "2024-01-01"}, {"D1", "2024-01-02"}},
	}
	summary := Aggregate(events)

	assert.False(t, summary.Resolution.DriverName.Found())
	assert.Equal(t, 2, summary.Days("D1", "any name"))
}

func TestAggregateMissingColumnsDegrades(t *testing.T) {
	noDate := Aggregate(table.Table{Header: []string{"driver_id", "route"}, Rows: [][]string{{"D1", "r"}}})
	assert.False(t, noDate.Resolution.Usable())
	assert.Empty(t, noDate.Counts)
	assert.Equal(t, 0, noDate.Days("D1", ""))

	noDriver := Aggregate(table.Table{Header: []string{"delivery_date", "route"}, Rows: [][]string{{"2024-01-01", "r"}}})
	assert.False(t, noDriver.Resolution.Usable())
	assert.Empty(t, noDriver.Counts)

	var zero Summary
	assert.Equal(t, 0, zero.Days("D1", "Ana"))
	assert.False(t, zero.Resolution.Usable())
}
