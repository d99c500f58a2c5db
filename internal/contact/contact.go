// Package contact builds the outreach queue and writes contact outcomes back
// to the stable registry.
package contact

import (
	"errors"
	"fmt"
	"strings"

	"driver-engagement-audit/internal/engagement"
	"driver-engagement-audit/internal/registry"
	"driver-engagement-audit/internal/table"
)

var (
	ErrNotQueued     = errors.New("driver is not in the contact queue")
	ErrInvalidStatus = errors.New("invalid contact status")
)

type Status string

const (
	StatusContacted     Status = "Contacted"
	StatusNotInterested Status = "Not Interested"
)

var Statuses = []Status{StatusContacted, StatusNotInterested}

// ParseStatus matches value against the known statuses, ignoring case and
// surrounding space.
func ParseStatus(value string) (Status, error) {
	value = strings.TrimSpace(value)
	for _, status := range Statuses {
		if strings.EqualFold(value, string(status)) {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, value)
}

type Reason string

const (
	ReasonNewDriver Reason = "new_driver"
	ReasonInactive  Reason = "inactive"
)

// Entry is one driver awaiting outreach.
type Entry struct {
	DriverID      string `json:"driver_id"`
	DriverName    string `json:"driver_name"`
	PhoneNumber   string `json:"phone_number"`
	ContactStatus string `json:"contact_status"`
	Reason        Reason `json:"reason"`
}

// BuildQueue lists newly added drivers first, then inactive drivers, keeping
// the first entry per driver id.
func BuildQueue(added []registry.Entry, rows []engagement.Row) []Entry {
	seen := map[string]bool{}
	out := make([]Entry, 0, len(added))

	for _, entry := range added {
		if seen[entry.DriverID] {
			continue
		}
		seen[entry.DriverID] = true
		out = append(out, Entry{
			DriverID:      entry.DriverID,
			DriverName:    entry.DriverName,
			PhoneNumber:   entry.PhoneNumber,
			ContactStatus: entry.ContactStatus,
			Reason:        ReasonNewDriver,
		})
	}

	for _, row := range rows {
		if row.Category != engagement.CategoryInactive || seen[row.DriverID] {
			continue
		}
		seen[row.DriverID] = true
		phone := row.PhoneNumber
		if phone == registry.NotAvailable {
			phone = ""
		}
		out = append(out, Entry{
			DriverID:    row.DriverID,
			DriverName:  row.DriverName,
			PhoneNumber: phone,
			Reason:      ReasonInactive,
		})
	}
	return out
}

// WithStatuses fills the blank contact status of each queued driver from the
// stable registry, first matching row per id.
func WithStatuses(queue []Entry, stable registry.Snapshot) []Entry {
	statuses := map[string]string{}
	for _, entry := range stable.Entries() {
		if _, ok := statuses[entry.DriverID]; !ok {
			statuses[entry.DriverID] = entry.ContactStatus
		}
	}
	out := make([]Entry, len(queue))
	for i, entry := range queue {
		if entry.ContactStatus == "" {
			entry.ContactStatus = statuses[entry.DriverID]
		}
		out[i] = entry
	}
	return out
}

// Find returns the queue entry for driverID.
func Find(queue []Entry, driverID string) (Entry, bool) {
	driverID = strings.TrimSpace(driverID)
	for _, entry := range queue {
		if entry.DriverID == driverID {
			return entry, true
		}
	}
	return Entry{}, false
}

// ApplyStatus sets contact_status on every registry row whose trimmed
// driver_id matches entry, or appends a new row when none does. raw is the
// stable registry as stored; the result keeps all of its rows.
func ApplyStatus(raw table.Table, entry Entry, status Status) (table.Table, bool) {
	t, _ := registry.Prepare(raw)
	idIdx, _ := t.Index(registry.ColDriverID)
	statusIdx, _ := t.Index(registry.ColContactStatus)

	matched := false
	for _, row := range t.Rows {
		if table.Value(row, idIdx) == entry.DriverID {
			row[statusIdx] = string(status)
			matched = true
		}
	}
	if matched {
		return t, false
	}

	row := make([]string, len(t.Header))
	for idx, name := range t.Header {
		switch name {
		case registry.ColDriverID:
			row[idx] = entry.DriverID
		case registry.ColDriverName:
			row[idx] = entry.DriverName
		case registry.ColPhone:
			row[idx] = entry.PhoneNumber
		case registry.ColContactStatus:
			row[idx] = string(status)
		}
	}
	t.Rows = append(t.Rows, row)
	return t, true
}
