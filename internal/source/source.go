// Package source provides the tabular data providers the dashboard reads its
// sheets from and writes the stable registry back to.
package source

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"driver-engagement-audit/internal/table"
)

// ErrSheetNotFound is returned when a provider has no sheet by that name.
var ErrSheetNotFound = errors.New("sheet not found")

// Provider reads and writes whole sheets.
type Provider interface {
	ReadTable(ctx context.Context, sheet string) (table.Table, error)
	WriteTable(ctx context.Context, sheet string, header []string, rows [][]string) error
}

// FreshReader is implemented by providers that can bypass a read cache.
type FreshReader interface {
	ReadFresh(ctx context.Context, sheet string) (table.Table, error)
}

// ReadFresh reads sheet from the backing store, skipping any cache in front
// of it.
func ReadFresh(ctx context.Context, p Provider, sheet string) (table.Table, error) {
	if fresh, ok := p.(FreshReader); ok {
		return fresh.ReadFresh(ctx, sheet)
	}
	return p.ReadTable(ctx, sheet)
}

var validSheet = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_\-. ]*$`)

func sanitizeSheet(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("sheet name is required")
	}
	if !validSheet.MatchString(value) || strings.Contains(value, "..") {
		return "", fmt.Errorf("invalid sheet name: %s", value)
	}
	return value, nil
}
