package source

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"driver-engagement-audit/internal/table"
)

const (
	DefaultSchema    = "driver_engagement"
	DefaultDBTimeout = 12 * time.Second
)

type PostgresConfig struct {
	Logger  *slog.Logger
	URL     string
	Schema  string
	Timeout time.Duration
}

func (c *PostgresConfig) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return errors.New("db url is required")
	}
	if c.Schema == "" {
		c.Schema = DefaultSchema
	}
	schema, err := sanitizeSchema(c.Schema)
	if err != nil {
		return err
	}
	c.Schema = schema
	if c.Timeout <= 0 {
		c.Timeout = DefaultDBTimeout
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}

// Postgres keeps each sheet as a header row plus ordered cell rows, and
// records a revision per write.
type Postgres struct {
	log     *slog.Logger
	db      *sql.DB
	schema  string
	timeout time.Duration
}

// OpenPostgres connects, pings and creates the schema if needed.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*Postgres, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db, cfg.Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Postgres{log: cfg.Logger, db: db, schema: cfg.Schema, timeout: cfg.Timeout}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) ReadTable(ctx context.Context, sheet string) (table.Table, error) {
	sheet, err := sanitizeSheet(sheet)
	if err != nil {
		return table.Table{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var rawHeader []byte
	err = p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT header FROM %s.sheets WHERE name = $1`, p.schema), sheet).Scan(&rawHeader)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return table.Table{}, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
		}
		return table.Table{}, err
	}

	var out table.Table
	if err := json.Unmarshal(rawHeader, &out.Header); err != nil {
		return table.Table{}, fmt.Errorf("decode header of %s: %w", sheet, err)
	}

	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT cells FROM %s.sheet_rows WHERE sheet = $1 ORDER BY position`, p.schema), sheet)
	if err != nil {
		return table.Table{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var rawCells []byte
		if err := rows.Scan(&rawCells); err != nil {
			return table.Table{}, err
		}
		var cells []string
		if err := json.Unmarshal(rawCells, &cells); err != nil {
			return table.Table{}, fmt.Errorf("decode row of %s: %w", sheet, err)
		}
		out.Rows = append(out.Rows, cells)
	}
	if err := rows.Err(); err != nil {
		return table.Table{}, err
	}
	return out, nil
}

// WriteTable replaces a sheet in one transaction.
func (p *Postgres) WriteTable(ctx context.Context, sheet string, header []string, rows [][]string) error {
	sheet, err := sanitizeSheet(sheet)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	revision, err := writeSheetTx(ctx, p.db, p.schema, sheet, header, rows)
	if err != nil {
		return err
	}
	p.log.Debug("wrote sheet", "sheet", sheet, "rows", len(rows), "revision", revision)
	return nil
}

// SheetCount returns how many sheets are stored.
func (p *Postgres) SheetCount(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var count int
	if err := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.sheets`, p.schema)).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Seed copies the named sheets from src when the store is empty. It returns
// false without writing anything if any sheet already exists.
func (p *Postgres) Seed(ctx context.Context, src Provider, sheets []string) (bool, error) {
	count, err := p.SheetCount(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		p.log.Info("sheets already present; skipping seed", "sheets", count)
		return false, nil
	}

	for _, sheet := range sheets {
		t, err := src.ReadTable(ctx, sheet)
		if err != nil {
			if errors.Is(err, ErrSheetNotFound) {
				p.log.Warn("seed source has no sheet", "sheet", sheet)
				continue
			}
			return false, err
		}
		if err := p.WriteTable(ctx, sheet, t.Header, t.Rows); err != nil {
			return false, fmt.Errorf("seed %s: %w", sheet, err)
		}
		p.log.Info("seeded sheet", "sheet", sheet, "rows", len(t.Rows))
	}
	return true, nil
}

func writeSheetTx(ctx context.Context, db *sql.DB, schema, sheet string, header []string, rows [][]string) (string, error) {
	revision := uuid.New()

	rawHeader, err := json.Marshal(header)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.sheets (name, header, revision, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET header = EXCLUDED.header, revision = EXCLUDED.revision, updated_at = EXCLUDED.updated_at`, schema),
		sheet, string(rawHeader), revision,
	)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	if _, err = tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s.sheet_rows WHERE sheet = $1`, schema), sheet); err != nil {
		_ = tx.Rollback()
		return "", err
	}

	insertRowSQL := fmt.Sprintf(`INSERT INTO %s.sheet_rows (sheet, position, cells) VALUES ($1, $2, $3)`, schema)
	for position, row := range rows {
		rawCells, err := json.Marshal(row)
		if err != nil {
			_ = tx.Rollback()
			return "", err
		}
		if _, err = tx.ExecContext(ctx, insertRowSQL, sheet, position, string(rawCells)); err != nil {
			_ = tx.Rollback()
			return "", err
		}
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.sheet_revisions (id, sheet, row_count, written_at)
		VALUES ($1, $2, $3, now())`, schema),
		revision, sheet, len(rows),
	)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return revision.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.sheets (
			name text PRIMARY KEY,
			header jsonb NOT NULL,
			revision uuid NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.sheet_rows (
			sheet text NOT NULL REFERENCES %s.sheets(name) ON DELETE CASCADE,
			position integer NOT NULL,
			cells jsonb NOT NULL,
			PRIMARY KEY (sheet, position)
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.sheet_revisions (
			id uuid PRIMARY KEY,
			sheet text NOT NULL,
			row_count integer NOT NULL,
			written_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_sheet_revisions_sheet_idx ON %s.sheet_revisions (sheet, written_at)`, schema, schema))
	return err
}

var validSchema = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !validSchema.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

