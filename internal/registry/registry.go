// Package registry loads driver registry snapshots and reconciles the stable
// roster against the incoming update feed.
package registry

import (
	"strings"

	"driver-engagement-audit/internal/table"
)

// Canonical registry columns.
const (
	ColDriverID      = "driver_id"
	ColDriverName    = "driver_name"
	ColPhone         = "phone_number"
	ColContactStatus = "contact_status"
)

// Registry source labels used when enriching summary rows.
const (
	SourceExisting = "Existing"
	SourceUpdate   = "Update"
	NotAvailable   = "N/A"
)

var (
	PhoneField = table.Field{
		Name:     ColPhone,
		Aliases:  []string{"phone_number", "phone", "telefone", "telefone_celular", "celular"},
		Contains: [][]string{{"phone"}, {"tel"}},
	}
	DriverIDField = table.Field{
		Name:     ColDriverID,
		Aliases:  []string{"driver_id"},
		Contains: [][]string{{"driver", "id"}},
	}
	DriverNameField = table.Field{
		Name:     ColDriverName,
		Aliases:  []string{"driver_name"},
		Contains: [][]string{{"driver", "name"}, {"driver", "nome"}},
	}
	ContactStatusField = table.Field{
		Name:     ColContactStatus,
		Aliases:  []string{"contact_status", "contato", "contact"},
		Contains: [][]string{{"contact", "status"}},
	}
)

// Entry is one registry row seen through the canonical columns.
type Entry struct {
	DriverID      string `json:"driver_id"`
	DriverName    string `json:"driver_name"`
	PhoneNumber   string `json:"phone_number"`
	ContactStatus string `json:"contact_status"`
	Source        string `json:"source,omitempty"`
}

// Resolutions records how the canonical columns were found.
type Resolutions struct {
	DriverID      table.Resolution `json:"driver_id"`
	DriverName    table.Resolution `json:"driver_name"`
	Phone         table.Resolution `json:"phone_number"`
	ContactStatus table.Resolution `json:"contact_status"`
}

// Snapshot is a registry sheet with canonical columns guaranteed.
type Snapshot struct {
	Table       table.Table `json:"table"`
	Resolutions Resolutions `json:"resolutions"`
}

// Prepare cleans and normalizes a raw registry sheet, renames loosely named
// identity, phone and status columns to their canonical names and guarantees
// the canonical columns exist. No rows are dropped.
func Prepare(raw table.Table) (table.Table, Resolutions) {
	t := raw.Clone()
	t.Header = table.CleanHeaders(t.Header)
	t = table.NormalizeColumns(t)

	var res Resolutions
	for _, step := range []struct {
		field table.Field
		out   *table.Resolution
	}{
		{DriverIDField, &res.DriverID},
		{DriverNameField, &res.DriverName},
		{PhoneField, &res.Phone},
		{ContactStatusField, &res.ContactStatus},
	} {
		*step.out = table.Resolve(t.Header, step.field)
		if step.out.Found() {
			t.Rename(step.out.Column, step.field.Name)
		}
	}

	t.Ensure(ColDriverID, ColDriverName, ColPhone, ColContactStatus)
	t.Pad()
	return t, res
}

// FromTable builds a snapshot from a raw sheet, deduplicated on
// (driver_id, driver_name). The first occurrence wins.
func FromTable(raw table.Table) Snapshot {
	t, res := Prepare(raw)
	idIdx, _ := t.Index(ColDriverID)
	nameIdx, _ := t.Index(ColDriverName)

	seen := map[[2]string]bool{}
	rows := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		key := [2]string{table.Value(row, idIdx), table.Value(row, nameIdx)}
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, row)
	}
	t.Rows = rows
	return Snapshot{Table: t, Resolutions: res}
}

// Len returns the number of drivers in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Table.Rows)
}

// Entries returns the snapshot rows as entries.
func (s Snapshot) Entries() []Entry {
	idIdx, _ := s.Table.Index(ColDriverID)
	nameIdx, _ := s.Table.Index(ColDriverName)
	phoneIdx, _ := s.Table.Index(ColPhone)
	statusIdx, _ := s.Table.Index(ColContactStatus)

	out := make([]Entry, 0, len(s.Table.Rows))
	for _, row := range s.Table.Rows {
		out = append(out, Entry{
			DriverID:      table.Value(row, idIdx),
			DriverName:    table.Value(row, nameIdx),
			PhoneNumber:   table.Value(row, phoneIdx),
			ContactStatus: table.Value(row, statusIdx),
		})
	}
	return out
}

// IDs returns the set of driver ids in the snapshot.
func (s Snapshot) IDs() map[string]bool {
	ids := map[string]bool{}
	for _, entry := range s.Entries() {
		ids[entry.DriverID] = true
	}
	return ids
}

// Diff is the outcome of reconciling the stable roster against the feed.
type Diff struct {
	Added      []Entry `json:"added"`
	Removed    []Entry `json:"removed"`
	StableSize int     `json:"stable_size"`
	FeedSize   int     `json:"feed_size"`
}

// Reconcile diffs the two snapshots on driver_id alone. A driver whose id
// changed shows up as both removed and added.
func Reconcile(stable, feed Snapshot) Diff {
	stableIDs := stable.IDs()
	feedIDs := feed.IDs()

	diff := Diff{
		Added:      []Entry{},
		Removed:    []Entry{},
		StableSize: stable.Len(),
		FeedSize:   feed.Len(),
	}
	for _, entry := range feed.Entries() {
		if !stableIDs[entry.DriverID] {
			diff.Added = append(diff.Added, entry)
		}
	}
	for _, entry := range stable.Entries() {
		if !feedIDs[entry.DriverID] {
			diff.Removed = append(diff.Removed, entry)
		}
	}
	return diff
}

// Combined is the stable roster followed by the feed, tagged by source and
// deduplicated on (driver_id, driver_name).
type Combined struct {
	Entries []Entry
	byID    map[string]Entry
}

// Combine concatenates stable and feed entries. Lookups by id return the first
// entry carrying that id, so the stable roster wins.
func Combine(stable, feed Snapshot) Combined {
	var combined Combined
	combined.byID = map[string]Entry{}
	seen := map[[2]string]bool{}

	add := func(entries []Entry, source string) {
		for _, entry := range entries {
			key := [2]string{entry.DriverID, entry.DriverName}
			if seen[key] {
				continue
			}
			seen[key] = true
			entry.Source = source
			combined.Entries = append(combined.Entries, entry)
			if _, exists := combined.byID[entry.DriverID]; !exists {
				combined.byID[entry.DriverID] = entry
			}
		}
	}
	add(stable.Entries(), SourceExisting)
	add(feed.Entries(), SourceUpdate)
	return combined
}

// Lookup returns the registry entry for a driver id.
func (c Combined) Lookup(driverID string) (Entry, bool) {
	entry, ok := c.byID[driverID]
	return entry, ok
}

// Contact returns the phone and registry source for a driver, with N/A for
// anything missing.
func (c Combined) Contact(driverID string) (phone, source string) {
	entry, ok := c.Lookup(driverID)
	if !ok {
		return NotAvailable, NotAvailable
	}
	phone = entry.PhoneNumber
	if strings.TrimSpace(phone) == "" {
		phone = NotAvailable
	}
	return phone, entry.Source
}
