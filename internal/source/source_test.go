package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driver-engagement-audit/internal/table"
)

func writeFile(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestCSVDirReadWrite(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "availability.csv", "Driver ID,Driver Name,2024-01-01\nD1,Ana,05:15-09:00\nD2,Bia\n")

	src, err := NewCSVDir(dir)
	require.NoError(t, err)

	got, err := src.ReadTable(context.Background(), "availability")
	require.NoError(t, err)
	assert.Equal(t, []string{"Driver ID", "Driver Name", "2024-01-01"}, got.Header)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, []string{"D2", "Bia"}, got.Rows[1])

	header := []string{"driver_id", "driver_name", "phone_number", "contact_status"}
	rows := [][]string{{"D1", "Ana", "555, ext 2", "Contacted"}}
	require.NoError(t, src.WriteTable(context.Background(), "registry", header, rows))

	back, err := src.ReadTable(context.Background(), "registry")
	require.NoError(t, err)
	assert.Equal(t, header, back.Header)
	assert.Equal(t, rows, back.Rows)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, entry := range entries {
		assert.False(t, strings.HasPrefix(entry.Name(), "."), "temp file left behind: %s", entry.Name())
	}
}

func TestCSVDirMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "empty.csv", "")
	src, err := NewCSVDir(dir)
	require.NoError(t, err)

	_, err = src.ReadTable(context.Background(), "deliveries")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	got, err := src.ReadTable(context.Background(), "empty")
	require.NoError(t, err)
	assert.Empty(t, got.Header)
	assert.Empty(t, got.Rows)

	_, err = src.ReadTable(context.Background(), "../etc/passwd")
	assert.Error(t, err)

	_, err = NewCSVDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCachedReusesReadsUntilWrite(t *testing.T) {
	mem := NewMemory(map[string]table.Table{
		"registry": {Header: []string{"driver_id"}, Rows: [][]string{{"D1"}}},
	})
	cached := NewCached(mem, time.Minute)
	ctx := context.Background()

	first, err := cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	first.Rows[0][0] = "mutated"

	second, err := cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Equal(t, "D1", second.Rows[0][0], "cached copy must not alias caller data")
	assert.Equal(t, 1, mem.Reads("registry"))
	assert.Equal(t, 1, cached.Len())

	require.NoError(t, cached.WriteTable(ctx, "registry", []string{"driver_id"}, [][]string{{"D2"}}))
	third, err := cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Equal(t, "D2", third.Rows[0][0])
	assert.Equal(t, 2, mem.Reads("registry"))

	cached.Invalidate()
	assert.Equal(t, 0, cached.Len())
	_, err = cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Equal(t, 3, mem.Reads("registry"))
}

func TestCachedReadFreshBypassesCache(t *testing.T) {
	mem := NewMemory(map[string]table.Table{
		"registry": {Header: []string{"driver_id"}, Rows: [][]string{{"D1"}}},
	})
	cached := NewCached(mem, time.Minute)
	ctx := context.Background()

	_, err := cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	require.NoError(t, mem.WriteTable(ctx, "registry", []string{"driver_id"}, [][]string{{"D1"}, {"D2"}}))

	stale, err := cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Len(t, stale.Rows, 1)

	fresh, err := ReadFresh(ctx, cached, "registry")
	require.NoError(t, err)
	assert.Len(t, fresh.Rows, 2)
	assert.Equal(t, 2, mem.Reads("registry"))

	refreshed, err := cached.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Len(t, refreshed.Rows, 2, "fresh read replaces the cache entry")
	assert.Equal(t, 2, mem.Reads("registry"))

	plain, err := ReadFresh(ctx, mem, "registry")
	require.NoError(t, err)
	assert.Len(t, plain.Rows, 2)
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	mem := NewMemory(nil)
	cached := NewCached(mem, time.Minute)

	_, err := cached.ReadTable(context.Background(), "deliveries")
	assert.ErrorIs(t, err, ErrSheetNotFound)
	_, err = cached.ReadTable(context.Background(), "deliveries")
	assert.ErrorIs(t, err, ErrSheetNotFound)
	assert.Equal(t, 2, mem.Reads("deliveries"))
}

func TestCachedExpires(t *testing.T) {
	mem := NewMemory(map[string]table.Table{"s": {Header: []string{"a"}}})
	cached := NewCached(mem, 20*time.Millisecond)

	_, err := cached.ReadTable(context.Background(), "s")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	_, err = cached.ReadTable(context.Background(), "s")
	require.NoError(t, err)
	assert.Equal(t, 2, mem.Reads("s"))
}

func TestSanitize(t *testing.T) {
	_, err := sanitizeSchema("ok_schema")
	assert.NoError(t, err)
	_, err = sanitizeSchema("bad-schema; drop")
	assert.Error(t, err)
	_, err = sanitizeSchema(" ")
	assert.Error(t, err)

	name, err := sanitizeSheet(" Stable Registry ")
	require.NoError(t, err)
	assert.Equal(t, "Stable Registry", name)
	_, err = sanitizeSheet("a/b")
	assert.Error(t, err)
}

func TestPostgresConfigValidate(t *testing.T) {
	cfg := PostgresConfig{URL: "postgres://localhost/x"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultSchema, cfg.Schema)
	assert.Equal(t, DefaultDBTimeout, cfg.Timeout)
	assert.NotNil(t, cfg.Logger)

	assert.Error(t, (&PostgresConfig{}).Validate())
	assert.Error(t, (&PostgresConfig{URL: "x", Schema: "1bad"}).Validate())
}

func TestPostgresRoundTripAndSeed(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("DRIVER_ENGAGEMENT_TEST_DB_URL"))
	if url == "" {
		t.Skip("DRIVER_ENGAGEMENT_TEST_DB_URL not set")
	}
	ctx := context.Background()
	schema := "driver_engagement_test_" + strings.ReplaceAll(time.Now().Format("150405.000000"), ".", "_")

	pg, err := OpenPostgres(ctx, PostgresConfig{URL: url, Schema: schema})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pg.db.ExecContext(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		pg.Close()
	})

	_, err = pg.ReadTable(ctx, "registry")
	assert.ErrorIs(t, err, ErrSheetNotFound)

	mem := NewMemory(map[string]table.Table{
		"registry":     {Header: []string{"driver_id", "driver_name"}, Rows: [][]string{{"D1", "Ana"}, {"D2", "Bia"}}},
		"availability": {Header: []string{"driver_id", "2024-01-01"}, Rows: [][]string{{"D1", "--"}}},
	})
	seeded, err := pg.Seed(ctx, mem, []string{"registry", "availability", "deliveries"})
	require.NoError(t, err)
	assert.True(t, seeded)

	count, err := pg.SheetCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	got, err := pg.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Equal(t, []string{"driver_id", "driver_name"}, got.Header)
	assert.Equal(t, [][]string{{"D1", "Ana"}, {"D2", "Bia"}}, got.Rows)

	require.NoError(t, pg.WriteTable(ctx, "registry", []string{"driver_id"}, [][]string{{"D9"}}))
	got, err = pg.ReadTable(ctx, "registry")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"D9"}}, got.Rows)

	seeded, err = pg.Seed(ctx, mem, []string{"registry"})
	require.NoError(t, err)
	assert.False(t, seeded)
}
