package source

import (
	"context"
	"fmt"
	"sync"

	"driver-engagement-audit/internal/table"
)

// Memory is an in-process provider. Reads and writes copy the data.
type Memory struct {
	mu     sync.RWMutex
	sheets map[string]table.Table
	reads  map[string]int
}

func NewMemory(sheets map[string]table.Table) *Memory {
	m := &Memory{sheets: make(map[string]table.Table, len(sheets)), reads: make(map[string]int)}
	for name, t := range sheets {
		m.sheets[name] = t.Clone()
	}
	return m
}

func (m *Memory) ReadTable(ctx context.Context, sheet string) (table.Table, error) {
	if err := ctx.Err(); err != nil {
		return table.Table{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads[sheet]++
	t, ok := m.sheets[sheet]
	if !ok {
		return table.Table{}, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	return t.Clone(), nil
}

func (m *Memory) WriteTable(ctx context.Context, sheet string, header []string, rows [][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := table.Table{Header: header, Rows: rows}.Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sheets[sheet] = t
	return nil
}

// Reads returns how many times sheet has been read.
func (m *Memory) Reads(sheet string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads[sheet]
}
