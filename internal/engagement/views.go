package engagement

import (
	"sort"
	"time"

	"driver-engagement-audit/internal/availability"
)

// AllClusters disables the cluster filter.
const AllClusters = "(All)"

// Filter narrows the summary and the availability log the way the dashboard
// filters do. Empty sets mean "everything".
type Filter struct {
	Categories   []Category
	Cluster      string
	Shifts       []availability.Shift
	VehicleTypes []string
	MinRatio     float64
}

func (f Filter) clusterActive() bool {
	return f.Cluster != "" && f.Cluster != AllClusters
}

// Apply returns the rows and log records that pass the filter. Rows are kept
// when their driver has any membership in the selected cluster; log records
// are restricted to that cluster and to the selected shifts.
func (f Filter) Apply(rows []Row, log availability.Log) ([]Row, availability.Log) {
	var inCluster map[string]bool
	if f.clusterActive() {
		inCluster = map[string]bool{}
		for _, record := range log.Records {
			if record.ClusterMember != nil && *record.ClusterMember == f.Cluster {
				inCluster[record.DriverID] = true
			}
		}
	}
	categories := setOf(f.Categories)
	vehicles := setOf(f.VehicleTypes)
	shifts := setOf(f.Shifts)

	filteredRows := make([]Row, 0, len(rows))
	for _, row := range rows {
		if inCluster != nil && !inCluster[row.DriverID] {
			continue
		}
		if len(categories) > 0 && !categories[row.Category] {
			continue
		}
		if len(vehicles) > 0 && !vehicles[row.VehicleType] {
			continue
		}
		if row.Ratio < f.MinRatio {
			continue
		}
		filteredRows = append(filteredRows, row)
	}

	filteredLog := log
	filteredLog.Records = make([]availability.Record, 0, len(log.Records))
	for _, record := range log.Records {
		if f.clusterActive() && (record.ClusterMember == nil || *record.ClusterMember != f.Cluster) {
			continue
		}
		if len(shifts) > 0 && !shifts[record.Shift] {
			continue
		}
		filteredLog.Records = append(filteredLog.Records, record)
	}
	return filteredRows, filteredLog
}

func setOf[T comparable](values []T) map[T]bool {
	out := make(map[T]bool, len(values))
	for _, value := range values {
		out[value] = true
	}
	return out
}

// KPIs are the headline numbers of the dashboard.
type KPIs struct {
	TotalDrivers int     `json:"total_drivers"`
	Engaged      int     `json:"engaged"`
	Intermediate int     `json:"intermediate"`
	ChurnRisk    int     `json:"churn_risk"`
	Inactive     int     `json:"inactive"`
	MeanRatio    float64 `json:"mean_ratio"`
}

// ComputeKPIs counts drivers by distinct name and by category.
func ComputeKPIs(rows []Row) KPIs {
	names := map[string]bool{}
	var kpis KPIs
	sum := 0.0
	for _, row := range rows {
		names[row.DriverName] = true
		sum += row.Ratio
		switch row.Category {
		case CategoryEngaged:
			kpis.Engaged++
		case CategoryIntermediate:
			kpis.Intermediate++
		case CategoryChurnRisk:
			kpis.ChurnRisk++
		case CategoryInactive:
			kpis.Inactive++
		}
	}
	kpis.TotalDrivers = len(names)
	if len(rows) > 0 {
		kpis.MeanRatio = round1(sum / float64(len(rows)))
	}
	return kpis
}

// CategoryStats summarizes missed days within one category.
type CategoryStats struct {
	Category     Category `json:"category"`
	Drivers      int      `json:"drivers"`
	AvgMissed    float64  `json:"avg_days_missed"`
	MedianMissed float64  `json:"median_days_missed"`
	MaxMissed    int      `json:"max_days_missed"`
}

// Distribution returns one entry per category, in display order, including
// empty categories.
func Distribution(rows []Row) []CategoryStats {
	buckets := map[Category][]int{}
	for _, row := range rows {
		buckets[row.Category] = append(buckets[row.Category], row.DaysMissed)
	}
	out := make([]CategoryStats, 0, len(Categories))
	for _, category := range Categories {
		missed := buckets[category]
		avg, median, maxMissed := summarizeMissed(missed)
		out = append(out, CategoryStats{
			Category:     category,
			Drivers:      len(missed),
			AvgMissed:    avg,
			MedianMissed: median,
			MaxMissed:    maxMissed,
		})
	}
	return out
}

func summarizeMissed(values []int) (float64, float64, int) {
	if len(values) == 0 {
		return 0, 0, 0
	}
	sorted := append([]int{}, values...)
	sort.Ints(sorted)
	sum := 0
	for _, value := range sorted {
		sum += value
	}
	avg := float64(sum) / float64(len(sorted))
	mid := len(sorted) / 2
	median := float64(sorted[mid])
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2
	}
	return round1(avg), round1(median), sorted[len(sorted)-1]
}

// Ranking orders rows by ratio, highest first, keeps rows at or above
// minRatio and returns at most topN of them (all when topN <= 0).
func Ranking(rows []Row, topN int, minRatio float64) []Row {
	ranked := make([]Row, 0, len(rows))
	for _, row := range rows {
		if row.Ratio >= minRatio {
			ranked = append(ranked, row)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Ratio != ranked[j].Ratio {
			return ranked[i].Ratio > ranked[j].Ratio
		}
		return ranked[i].DriverName < ranked[j].DriverName
	})
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked
}

// DailyPoint is the availability share of one date.
type DailyPoint struct {
	Date      time.Time `json:"date"`
	Drivers   int       `json:"drivers"`
	Available int       `json:"available"`
	Share     float64   `json:"share"`
}

// DailyAvailability returns, per date, the share of tracked drivers that
// offered. Each driver counts once per date however many cluster rows it has.
func DailyAvailability(log availability.Log) []DailyPoint {
	perDay := map[time.Time]map[availability.DriverKey]bool{}
	for _, record := range log.Records {
		if perDay[record.Date] == nil {
			perDay[record.Date] = map[availability.DriverKey]bool{}
		}
		key := record.Key()
		perDay[record.Date][key] = perDay[record.Date][key] || record.Available
	}

	points := make([]DailyPoint, 0, len(perDay))
	for date, drivers := range perDay {
		point := DailyPoint{Date: date, Drivers: len(drivers)}
		for _, available := range drivers {
			if available {
				point.Available++
			}
		}
		if point.Drivers > 0 {
			point.Share = float64(point.Available) / float64(point.Drivers)
		}
		points = append(points, point)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	return points
}
