package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-engagement-audit/internal/table"
)

func snapshot(header []string, rows ...[]string) Snapshot {
	return FromTable(table.Table{Header: header, Rows: rows})
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.DriverID)
	}
	return out
}

func TestFromTableCanonicalizesAndDedupes(t *testing.T) {
	snap := snapshot(
		[]string{"Driver Code ID", "Driver Nome", "Telefone", "Vehicle"},
		[]string{"D1", "Ana", "555-1", "Car"},
		[]string{"D1", "Ana", "555-9", "Car"},
		[]string{"D1", "Ana Maria", "555-2", "Van"},
		[]string{"D2", "Bia", "", "Moto"},
	)

	assert.Equal(t, "contains:driver+id", snap.Resolutions.DriverID.Rule)
	assert.Equal(t, "contains:driver+nome", snap.Resolutions.DriverName.Rule)
	assert.Equal(t, "alias:telefone", snap.Resolutions.Phone.Rule)
	assert.False(t, snap.Resolutions.ContactStatus.Found())

	assert.Equal(t, []string{"driver_id", "driver_name", "phone_number", "vehicle", "contact_status"}, snap.Table.Header)
	require.Equal(t, 3, snap.Len())

	entries := snap.Entries()
	assert.Equal(t, Entry{DriverID: "D1", DriverName: "Ana", PhoneNumber: "555-1"}, entries[0])
	assert.Equal(t, "Ana Maria", entries[1].DriverName)
}

func TestFromTableHandlesDirtyHeaders(t *testing.T) {
	snap := snapshot([]string{"driver_id", "", "Driver ID", "Contato"}, []string{"D1", "x", "dup", "Contacted"})

	assert.Equal(t, []string{"driver_id", "col_1", "driver_id_2", "contact_status", "driver_name", "phone_number"}, snap.Table.Header)
	assert.Equal(t, "Contacted", snap.Entries()[0].ContactStatus)
}

func TestReconcile(t *testing.T) {
	header := []string{"driver_id", "driver_name"}
	stable := snapshot(header, []string{"D1", "Ana"}, []string{"D2", "Bia"}, []string{"D3", "Caio"})
	feed := snapshot(header, []string{"D2", "Bia"}, []string{"D3", "Caio Renamed"}, []string{"D4", "Duda"}, []string{"D9", "Ana"})

	diff := Reconcile(stable, feed)

	assert.Equal(t, []string{"D4", "D9"}, ids(diff.Added))
	assert.Equal(t, []string{"D1"}, ids(diff.Removed))
	assert.Equal(t, 3, diff.StableSize)
	assert.Equal(t, 4, diff.FeedSize)

	stableIDs, feedIDs := stable.IDs(), feed.IDs()
	for _, entry := range diff.Added {
		assert.False(t, stableIDs[entry.DriverID])
	}
	for _, entry := range diff.Removed {
		assert.False(t, feedIDs[entry.DriverID])
	}
}

func TestReconcileIdenticalAndEmpty(t *testing.T) {
	header := []string{"driver_id", "driver_name"}
	stable := snapshot(header, []string{"D1", "Ana"}, []string{"D2", "Bia"})

	same := Reconcile(stable, stable)
	assert.Empty(t, same.Added)
	assert.Empty(t, same.Removed)

	empty := Reconcile(stable, snapshot(header))
	assert.Empty(t, empty.Added)
	assert.Equal(t, []string{"D1", "D2"}, ids(empty.Removed))
}

func TestCombineLookup(t *testing.T) {
	header := []string{"driver_id", "driver_name", "phone"}
	stable := snapshot(header, []string{"D1", "Ana", "111"}, []string{"D2", "Bia", ""})
	feed := snapshot(header, []string{"D1", "Ana", "999"}, []string{"D3", "Caio", "333"})

	combined := Combine(stable, feed)
	require.Len(t, combined.Entries, 3)

	phone, source := combined.Contact("D1")
	assert.Equal(t, "111", phone)
	assert.Equal(t, SourceExisting, source)

	phone, source = combined.Contact("D2")
	assert.Equal(t, NotAvailable, phone)
	assert.Equal(t, SourceExisting, source)

	phone, source = combined.Contact("D3")
	assert.Equal(t, "333", phone)
	assert.Equal(t, SourceUpdate, source)

	phone, source = combined.Contact("D404")
	assert.Equal(t, NotAvailable, phone)
	assert.Equal(t, NotAvailable, source)
}
