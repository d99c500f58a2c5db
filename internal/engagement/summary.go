// Package engagement joins availability, delivery and registry data into one
// row per driver and classifies each driver's churn risk.
package engagement

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"driver-engagement-audit/internal/availability"
	"driver-engagement-audit/internal/delivery"
	"driver-engagement-audit/internal/registry"
)

// Category is the churn-risk bucket a driver falls into.
type Category string

const (
	CategoryEngaged      Category = "Engaged"
	CategoryIntermediate Category = "Intermediate"
	CategoryChurnRisk    Category = "Risk of Churn"
	CategoryInactive     Category = "Inactive"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryEngaged, CategoryIntermediate, CategoryChurnRisk, CategoryInactive}

// ParseCategory maps a filter value onto a Category, case-insensitively.
func ParseCategory(value string) (Category, bool) {
	for _, category := range Categories {
		if strings.EqualFold(string(category), strings.TrimSpace(value)) {
			return category, true
		}
	}
	return "", false
}

// PolicyName selects the churn-risk rule.
type PolicyName string

const (
	// PolicyMissedDays flags churn risk on missed days alone.
	PolicyMissedDays PolicyName = "missed_days"
	// PolicyWeeklyRate also flags drivers offering at most WeeklyRateFloor
	// days per 7 tracked days.
	PolicyWeeklyRate PolicyName = "weekly_rate"
)

const (
	defaultChurnMissedDays = 14
	defaultEngagedShare    = 0.5
	defaultWeeklyRateFloor = 1
)

// Policy holds the category thresholds. WeeklyRateFloor stays nil until
// Validate fills it, so an explicit floor of 0 is kept.
type Policy struct {
	Name            PolicyName `yaml:"name" json:"name"`
	ChurnMissedDays int        `yaml:"churn_missed_days" json:"churn_missed_days"`
	EngagedShare    float64    `yaml:"engaged_share" json:"engaged_share"`
	WeeklyRateFloor *float64   `yaml:"weekly_rate_floor" json:"weekly_rate_floor"`
}

// DefaultPolicy is the missed-days policy with a 14 day threshold.
func DefaultPolicy() Policy {
	return Policy{
		Name:            PolicyMissedDays,
		ChurnMissedDays: defaultChurnMissedDays,
		EngagedShare:    defaultEngagedShare,
		WeeklyRateFloor: floatPtr(defaultWeeklyRateFloor),
	}
}

func floatPtr(v float64) *float64 {
	return &v
}

// Validate fills zero values with defaults and rejects unknown policies.
func (p *Policy) Validate() error {
	if p.Name == "" {
		p.Name = PolicyMissedDays
	}
	if p.Name != PolicyMissedDays && p.Name != PolicyWeeklyRate {
		return fmt.Errorf("invalid churn policy: %s", p.Name)
	}
	if p.ChurnMissedDays == 0 {
		p.ChurnMissedDays = defaultChurnMissedDays
	}
	if p.ChurnMissedDays < 0 {
		return errors.New("churn missed days must be positive")
	}
	if p.EngagedShare == 0 {
		p.EngagedShare = defaultEngagedShare
	}
	if p.EngagedShare < 0 || p.EngagedShare > 1 {
		return fmt.Errorf("engaged share must be within [0,1], got %.2f", p.EngagedShare)
	}
	if p.WeeklyRateFloor == nil {
		p.WeeklyRateFloor = floatPtr(defaultWeeklyRateFloor)
	}
	if *p.WeeklyRateFloor < 0 {
		return fmt.Errorf("weekly rate floor must not be negative, got %.2f", *p.WeeklyRateFloor)
	}
	return nil
}

func (p Policy) floor() float64 {
	if p.WeeklyRateFloor == nil {
		return defaultWeeklyRateFloor
	}
	return *p.WeeklyRateFloor
}

// Categorize applies the rules in order: inactive, churn risk, engaged,
// intermediate.
func (p Policy) Categorize(row Row) Category {
	if row.DaysAvailable == 0 {
		return CategoryInactive
	}
	if row.DaysMissed > p.ChurnMissedDays {
		return CategoryChurnRisk
	}
	if p.Name == PolicyWeeklyRate && row.WeeklyRate <= p.floor() {
		return CategoryChurnRisk
	}
	if float64(row.DaysAvailable) > float64(row.TotalDays)*p.EngagedShare {
		return CategoryEngaged
	}
	return CategoryIntermediate
}

// Row is the engagement summary of one driver.
type Row struct {
	DriverID             string   `json:"driver_id"`
	DriverName           string   `json:"driver_name"`
	VehicleType          string   `json:"vehicle_type"`
	NoShowTime           string   `json:"no_show_time"`
	TotalDays            int      `json:"total_days"`
	DaysAvailable        int      `json:"days_available"`
	DaysMissed           int      `json:"days_missed"`
	MaxConsecutiveMissed int      `json:"max_consecutive_missed"`
	DaysDelivered        int      `json:"days_delivered"`
	Ratio                float64  `json:"availability_to_delivery_ratio"`
	WeeklyRate           float64  `json:"weekly_rate"`
	Category             Category `json:"category"`
	PhoneNumber          string   `json:"phone_number"`
	RegistryStatus       string   `json:"registry_status"`
}

type groupKey struct {
	DriverID    string
	DriverName  string
	VehicleType string
	NoShowTime  string
}

// Summarize computes one row per (driver_id, driver_name, vehicle_type,
// no_show_time) seen in the availability log. Every count dedupes by date, so
// cluster-expanded logs count each day once. Drivers without availability
// rows do not appear.
func Summarize(log availability.Log, deliveries delivery.Summary, reg registry.Combined, policy Policy) []Row {
	totalDates := map[groupKey]map[time.Time]bool{}
	availableDates := map[availability.DriverKey]map[time.Time]bool{}
	dayStatus := map[availability.DriverKey]map[time.Time]bool{}

	for _, record := range log.Records {
		group := groupKey{
			DriverID:    record.DriverID,
			DriverName:  record.DriverName,
			VehicleType: record.VehicleType,
			NoShowTime:  record.NoShowTime,
		}
		if totalDates[group] == nil {
			totalDates[group] = map[time.Time]bool{}
		}
		totalDates[group][record.Date] = true

		key := record.Key()
		if dayStatus[key] == nil {
			dayStatus[key] = map[time.Time]bool{}
		}
		dayStatus[key][record.Date] = dayStatus[key][record.Date] || record.Available

		if record.Available {
			if availableDates[key] == nil {
				availableDates[key] = map[time.Time]bool{}
			}
			availableDates[key][record.Date] = true
		}
	}

	streaks := make(map[availability.DriverKey]int, len(dayStatus))
	for key, days := range dayStatus {
		streaks[key] = MaxConsecutiveMissed(sequence(days))
	}

	rows := make([]Row, 0, len(totalDates))
	for group, dates := range totalDates {
		key := availability.DriverKey{DriverID: group.DriverID, DriverName: group.DriverName}
		row := Row{
			DriverID:             group.DriverID,
			DriverName:           group.DriverName,
			VehicleType:          group.VehicleType,
			NoShowTime:           group.NoShowTime,
			TotalDays:            len(dates),
			DaysAvailable:        len(availableDates[key]),
			MaxConsecutiveMissed: streaks[key],
			DaysDelivered:        deliveries.Days(group.DriverID, group.DriverName),
		}
		row.DaysMissed = row.TotalDays - row.DaysAvailable
		row.Ratio = Ratio(row.DaysDelivered, row.DaysAvailable)
		row.WeeklyRate = WeeklyRate(row.DaysAvailable, row.TotalDays)
		row.Category = policy.Categorize(row)
		row.PhoneNumber, row.RegistryStatus = reg.Contact(group.DriverID)
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.DriverID != b.DriverID {
			return a.DriverID < b.DriverID
		}
		if a.DriverName != b.DriverName {
			return a.DriverName < b.DriverName
		}
		if a.VehicleType != b.VehicleType {
			return a.VehicleType < b.VehicleType
		}
		return a.NoShowTime < b.NoShowTime
	})
	return rows
}

// sequence orders a driver's per-date availability by date.
func sequence(days map[time.Time]bool) []bool {
	dates := make([]time.Time, 0, len(days))
	for date := range days {
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	out := make([]bool, len(dates))
	for i, date := range dates {
		out[i] = days[date]
	}
	return out
}

// MaxConsecutiveMissed returns the longest run of false entries in a
// date-ordered availability sequence. Untracked days are not in the sequence
// and never extend a run.
func MaxConsecutiveMissed(available []bool) int {
	maxRun, run := 0, 0
	for _, ok := range available {
		if ok {
			run = 0
			continue
		}
		run++
		if run > maxRun {
			maxRun = run
		}
	}
	return maxRun
}

// Ratio is delivered days per available day as a percentage, rounded to one
// decimal, and 0 when the driver offered no days.
func Ratio(daysDelivered, daysAvailable int) float64 {
	if daysAvailable == 0 {
		return 0
	}
	return round1(float64(daysDelivered) / float64(daysAvailable) * 100)
}

// WeeklyRate is the number of offered days per 7 tracked days.
func WeeklyRate(daysAvailable, totalDays int) float64 {
	if totalDays == 0 {
		return 0
	}
	return float64(daysAvailable) / float64(totalDays) * 7
}

func round1(value float64) float64 {
	return math.Round(value*10) / 10
}
