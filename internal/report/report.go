// Package report renders a dashboard load for the console and exports it as
// JSON or CSV.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"driver-engagement-audit/internal/contact"
	"driver-engagement-audit/internal/dashboard"
	"driver-engagement-audit/internal/engagement"
	"driver-engagement-audit/internal/registry"
)

type Options struct {
	Filter   engagement.Filter
	TopN     int
	MinRatio float64
}

// View is the filtered slice of a load that the console report and the
// exports show.
type View struct {
	Rows         []engagement.Row           `json:"summary"`
	KPIs         engagement.KPIs            `json:"kpis"`
	Distribution []engagement.CategoryStats `json:"distribution"`
	Ranking      []engagement.Row           `json:"ranking"`
	Daily        []engagement.DailyPoint    `json:"daily"`
}

// Build applies opts to a load result.
func Build(result *dashboard.Result, opts Options) View {
	rows, log := opts.Filter.Apply(result.Summary, result.Availability)
	return View{
		Rows:         rows,
		KPIs:         engagement.ComputeKPIs(rows),
		Distribution: engagement.Distribution(rows),
		Ranking:      engagement.Ranking(rows, opts.TopN, opts.MinRatio),
		Daily:        engagement.DailyAvailability(log),
	}
}

// Print writes the console report.
func Print(w io.Writer, result *dashboard.Result, opts Options) {
	view := Build(result, opts)

	fmt.Fprintln(w, "Driver Engagement Audit")
	fmt.Fprintln(w, strings.Repeat("=", 38))
	fmt.Fprintf(w, "Loaded at: %s\n", result.LoadedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Churn policy: %s (missed days > %d)\n", result.Policy.Name, result.Policy.ChurnMissedDays)
	fmt.Fprintf(w, "Drivers: %d | Engaged: %d | Intermediate: %d | Risk of churn: %d | Inactive: %d\n",
		view.KPIs.TotalDrivers, view.KPIs.Engaged, view.KPIs.Intermediate, view.KPIs.ChurnRisk, view.KPIs.Inactive)
	fmt.Fprintf(w, "Mean availability-to-delivery ratio: %.1f%%\n", view.KPIs.MeanRatio)
	if skipped := len(result.Availability.SkippedColumns); skipped > 0 {
		fmt.Fprintf(w, "Non-date availability columns skipped: %d\n", skipped)
	}
	if !result.Deliveries.Resolution.Usable() {
		fmt.Fprintln(w, "Delivery columns not found; delivered days are 0.")
	} else if result.Deliveries.DroppedRows > 0 {
		fmt.Fprintf(w, "Delivery rows with unreadable dates skipped: %d\n", result.Deliveries.DroppedRows)
	}

	fmt.Fprintln(w, "\nRegistry comparison")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	fmt.Fprintf(w, "Stable: %d | Update: %d | New: %d | Removed: %d\n",
		result.Diff.StableSize, result.Diff.FeedSize, len(result.Diff.Added), len(result.Diff.Removed))

	fmt.Fprintln(w, "\nCategory distribution")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	printDistribution(w, view.Distribution)

	fmt.Fprintln(w, "\nTop drivers by ratio")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	if len(view.Ranking) == 0 {
		fmt.Fprintln(w, "No drivers found.")
	} else {
		printRanking(w, view.Ranking)
	}

	fmt.Fprintln(w, "\nContact queue")
	fmt.Fprintln(w, strings.Repeat("-", 38))
	if len(result.Queue) == 0 {
		fmt.Fprintln(w, "Nobody to contact.")
	} else {
		printQueue(w, result.Queue)
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_CENTER)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(true)
	table.SetHeader(header)
	return table
}

func printDistribution(w io.Writer, stats []engagement.CategoryStats) {
	table := newTable(w, []string{"Category", "Drivers", "Missed\navg", "Missed\nmedian", "Missed\nmax"})
	for _, s := range stats {
		table.Append([]string{
			string(s.Category),
			strconv.Itoa(s.Drivers),
			fmt.Sprintf("%.1f", s.AvgMissed),
			fmt.Sprintf("%.1f", s.MedianMissed),
			strconv.Itoa(s.MaxMissed),
		})
	}
	table.Render()
}

func printRanking(w io.Writer, rows []engagement.Row) {
	table := newTable(w, []string{"Driver", "Vehicle", "Available", "Delivered", "Ratio (%)", "Category"})
	for _, row := range rows {
		table.Append([]string{
			row.DriverName,
			orDefault(row.VehicleType, "Unknown"),
			strconv.Itoa(row.DaysAvailable),
			strconv.Itoa(row.DaysDelivered),
			fmt.Sprintf("%.1f", row.Ratio),
			string(row.Category),
		})
	}
	table.Render()
}

func printQueue(w io.Writer, queue []contact.Entry) {
	table := newTable(w, []string{"Driver ID", "Driver", "Phone", "Reason", "Status"})
	for _, entry := range queue {
		table.Append([]string{
			entry.DriverID,
			entry.DriverName,
			orDefault(entry.PhoneNumber, registry.NotAvailable),
			string(entry.Reason),
			orDefault(entry.ContactStatus, "Pending"),
		})
	}
	table.Render()
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// WriteJSON writes the full load plus the filtered view.
func WriteJSON(result *dashboard.Result, opts Options, path string) error {
	payload := struct {
		*dashboard.Result
		View View `json:"view"`
	}{Result: result, View: Build(result, opts)}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var summaryColumns = []string{
	"driver_id",
	"driver_name",
	"vehicle_type",
	"no_show_time",
	"total_days",
	"days_available",
	"days_missed",
	"max_consecutive_missed",
	"days_delivered",
	"availability_to_delivery_ratio",
	"category",
	"phone_number",
	"registry_status",
}

// WriteSummaryCSV writes summary rows with a header line.
func WriteSummaryCSV(w io.Writer, rows []engagement.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(summaryColumns); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.DriverID,
			row.DriverName,
			row.VehicleType,
			row.NoShowTime,
			strconv.Itoa(row.TotalDays),
			strconv.Itoa(row.DaysAvailable),
			strconv.Itoa(row.DaysMissed),
			strconv.Itoa(row.MaxConsecutiveMissed),
			strconv.Itoa(row.DaysDelivered),
			strconv.FormatFloat(row.Ratio, 'f', 1, 64),
			string(row.Category),
			row.PhoneNumber,
			row.RegistryStatus,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteSummaryCSVFile writes the filtered summary to path.
func WriteSummaryCSVFile(result *dashboard.Result, opts Options, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	rows, _ := opts.Filter.Apply(result.Summary, result.Availability)
	return writeAndClose(file, rows)
}

// writeAndClose reports the close error when the write itself succeeded.
func writeAndClose(w io.WriteCloser, rows []engagement.Row) error {
	if err := WriteSummaryCSV(w, rows); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
