package engagement

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/delivery"
	"driver-engagement-audit/internal/registry"
	"driver-engagement-audit/internal/table"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// buildLog runs a wide sheet through reshape, classify and cluster expansion.
func buildLog(t *testing.T, header []string, rows ...[]string) availability.Log {
	t.Helper()
	wide := table.NormalizeColumns(table.Table{Header: header, Rows: rows})
	log := availability.Reshape(wide)
	log = availability.NewClassifier("", "").Apply(log)
	return availability.ExpandClusters(log)
}

func dateHeaders(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = start.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

func TestMaxConsecutiveMissed(t *testing.T) {
	assert.Equal(t, 3, MaxConsecutiveMissed([]bool{true, false, false, true, false, false, false}))
	assert.Equal(t, 0, MaxConsecutiveMissed([]bool{true, true}))
	assert.Equal(t, 0, MaxConsecutiveMissed(nil))
	assert.Equal(t, 2, MaxConsecutiveMissed([]bool{false, false}))
	assert.Equal(t, 1, MaxConsecutiveMissed([]bool{false, true, false}))
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 0.0, Ratio(5, 0))
	assert.Equal(t, 50.0, Ratio(5, 10))
	assert.Equal(t, 33.3, Ratio(1, 3))
	assert.Equal(t, 66.7, Ratio(2, 3))
	assert.Equal(t, 150.0, Ratio(3, 2))
}

func TestCategorize(t *testing.T) {
	policy := DefaultPolicy()

	assert.Equal(t, CategoryInactive, policy.Categorize(Row{DaysAvailable: 0, TotalDays: 3, DaysMissed: 99}))
	assert.Equal(t, CategoryEngaged, policy.Categorize(Row{DaysAvailable: 20, TotalDays: 20, DaysMissed: 0}))
	assert.Equal(t, CategoryChurnRisk, policy.Categorize(Row{DaysAvailable: 3, TotalDays: 20, DaysMissed: 17}))
	assert.Equal(t, CategoryIntermediate, policy.Categorize(Row{DaysAvailable: 5, TotalDays: 10, DaysMissed: 5}))
	assert.Equal(t, CategoryEngaged, policy.Categorize(Row{DaysAvailable: 6, TotalDays: 10, DaysMissed: 4}))
	assert.Equal(t, CategoryIntermediate, policy.Categorize(Row{DaysAvailable: 1, TotalDays: 14, DaysMissed: 13, WeeklyRate: 0.5}))
}

func TestCategorizeWeeklyRatePolicy(t *testing.T) {
	policy := Policy{Name: PolicyWeeklyRate}
	require.NoError(t, policy.Validate())

	row := Row{DaysAvailable: 1, TotalDays: 14, DaysMissed: 13}
	row.WeeklyRate = WeeklyRate(row.DaysAvailable, row.TotalDays)
	assert.Equal(t, CategoryChurnRisk, policy.Categorize(row))

	assert.Equal(t, CategoryInactive, policy.Categorize(Row{TotalDays: 14, DaysMissed: 14}))
	engaged := Row{DaysAvailable: 20, TotalDays: 20}
	engaged.WeeklyRate = WeeklyRate(20, 20)
	assert.Equal(t, CategoryEngaged, policy.Categorize(engaged))
}

func TestCategorizeWeeklyRateZeroFloor(t *testing.T) {
	policy := Policy{Name: PolicyWeeklyRate, WeeklyRateFloor: floatPtr(0)}
	require.NoError(t, policy.Validate())
	require.NotNil(t, policy.WeeklyRateFloor)
	assert.Equal(t, 0.0, *policy.WeeklyRateFloor)

	row := Row{DaysAvailable: 1, TotalDays: 14, DaysMissed: 13}
	row.WeeklyRate = WeeklyRate(row.DaysAvailable, row.TotalDays)
	assert.Equal(t, CategoryIntermediate, policy.Categorize(row))

	negative := Policy{WeeklyRateFloor: floatPtr(-1)}
	assert.Error(t, negative.Validate())
}

func TestPolicyValidate(t *testing.T) {
	var policy Policy
	require.NoError(t, policy.Validate())
	assert.Equal(t, DefaultPolicy(), policy)

	bad := Policy{Name: "vibes"}
	assert.Error(t, bad.Validate())

	share := Policy{EngagedShare: 1.5}
	assert.Error(t, share.Validate())
}

func TestSummarizeCountsDaysOnceAcrossClusters(t *testing.T) {
	header := append([]string{"Driver ID", "Driver Name", "Cluster", "Vehicle Type", "No Show Time"}, dateHeaders(7)...)
	log := buildLog(t, header,
		// available, missed, missed, available, missed x3
		[]string{"D1", "Ana", "01. North, 02. South", "Car", "0",
			"05:15-09:00", "--", "", "11:45-14:30", "Not Available", "--", "nope"},
		[]string{"D2", "Bia", "North", "Van", "1",
			"--", "--", "--", "--", "--", "--", "--"},
	)
	require.Len(t, log.Records, 7*3)

	deliveries := delivery.Aggregate(table.Table{
		Header: []string{"driver_id", "driver_name", "delivery_date"},
		Rows: [][]string{
			{"D1", "Ana", "2024-01-01"},
			{"D1", "Ana", "2024-01-04"},
			{"D1", "Ana", "2024-01-04"},
			{"D2", "Bia", "2024-01-02"},
		},
	})
	stable := registry.FromTable(table.Table{Header: []string{"driver_id", "driver_name", "phone"}, Rows: [][]string{{"D1", "Ana", "555"}}})
	reg := registry.Combine(stable, registry.Snapshot{})

	rows := Summarize(log, deliveries, reg, DefaultPolicy())
	require.Len(t, rows, 2)

	ana := rows[0]
	assert.Equal(t, "D1", ana.DriverID)
	assert.Equal(t, "Car", ana.VehicleType)
	assert.Equal(t, 7, ana.TotalDays)
	assert.Equal(t, 2, ana.DaysAvailable)
	assert.Equal(t, 5, ana.DaysMissed)
	assert.Equal(t, 3, ana.MaxConsecutiveMissed)
	assert.Equal(t, 2, ana.DaysDelivered)
	assert.Equal(t, 100.0, ana.Ratio)
	assert.Equal(t, CategoryIntermediate, ana.Category)
	assert.Equal(t, "555", ana.PhoneNumber)
	assert.Equal(t, registry.SourceExisting, ana.RegistryStatus)

	bia := rows[1]
	assert.Equal(t, 0, bia.DaysAvailable)
	assert.Equal(t, 7, bia.DaysMissed)
	assert.Equal(t, 7, bia.MaxConsecutiveMissed)
	assert.Equal(t, 1, bia.DaysDelivered)
	assert.Equal(t, 0.0, bia.Ratio)
	assert.Equal(t, CategoryInactive, bia.Category)
	assert.Equal(t, registry.NotAvailable, bia.PhoneNumber)
	assert.Equal(t, registry.NotAvailable, bia.RegistryStatus)
}

func TestSummarizeChurnRiskOverLongWindow(t *testing.T) {
	statuses := make([]string, 20)
	for i := range statuses {
		statuses[i] = "--"
	}
	statuses[0], statuses[10], statuses[19] = "05:15-09:00", "05:15-09:00", "05:15-09:00"

	header := append([]string{"driver_id", "driver_name"}, dateHeaders(20)...)
	log := buildLog(t, header, append([]string{"D1", "Ana"}, statuses...))

	rows := Summarize(log, delivery.Summary{}, registry.Combined{}, DefaultPolicy())
	require.Len(t, rows, 1)
	assert.Equal(t, 20, rows[0].TotalDays)
	assert.Equal(t, 3, rows[0].DaysAvailable)
	assert.Equal(t, 17, rows[0].DaysMissed)
	assert.Equal(t, 9, rows[0].MaxConsecutiveMissed)
	assert.Equal(t, CategoryChurnRisk, rows[0].Category)
}

func TestSummarizeStreakUsesTrackedDaysOnly(t *testing.T) {
	// Jan 1 and Jan 9 only: the calendar gap between them is not a streak.
	header := []string{"driver_id", "driver_name", "2024-01-01", "2024-01-09", "2024-01-10"}
	log := buildLog(t, header, []string{"D1", "Ana", "05:15-09:00", "--", "05:15-09:00"})

	rows := Summarize(log, delivery.Summary{}, registry.Combined{}, DefaultPolicy())
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].MaxConsecutiveMissed)
}

func TestSummarizeIsIdempotent(t *testing.T) {
	header := append([]string{"driver_id", "driver_name", "cluster", "vehicle_type"}, dateHeaders(5)...)
	rows := [][]string{
		{"D3", "Caio", "A, B", "Car", "05:15-09:00", "--", "10:00-12:00", "", "11:45-14:30"},
		{"D1", "Ana", "B", "Van", "--", "--", "--", "--", "--"},
		{"D2", "Bia", "A", "Car", "05:15-09:00 11:45-14:30", "", "", "", ""},
	}
	run := func() []Row {
		log := buildLog(t, header, rows...)
		return Summarize(log, delivery.Summary{}, registry.Combined{}, DefaultPolicy())
	}

	first, second := run(), run()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("summary changed between runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, []string{"D1", "D2", "D3"}, []string{first[0].DriverID, first[1].DriverID, first[2].DriverID})
}

func TestSummarizeSplitsVehicleGroups(t *testing.T) {
	header := []string{"driver_id", "driver_name", "vehicle_type", "2024-01-01", "2024-01-02"}
	log := buildLog(t, header,
		[]string{"D1", "Ana", "Car", "05:15-09:00", "--"},
		[]string{"D1", "Ana", "Van", "--", "--"},
	)

	rows := Summarize(log, delivery.Summary{}, registry.Combined{}, DefaultPolicy())
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, 2, row.TotalDays)
		assert.Equal(t, 1, row.DaysAvailable, "availability is counted per driver, not per vehicle group")
	}
}
