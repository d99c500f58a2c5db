package table

import (
	"fmt"
	"strings"
)

// Field describes how to locate one logical column in a loosely named sheet.
// Aliases are tried first, in order, as exact matches. Each entry of Contains
// is then tried in order; it matches the first header containing every
// substring of the entry.
type Field struct {
	Name     string
	Aliases  []string
	Contains [][]string
}

// Resolution records which header a Field resolved to and by which rule.
type Resolution struct {
	Field  string `json:"field"`
	Column string `json:"column,omitempty"`
	Index  int    `json:"index"`
	Rule   string `json:"rule,omitempty"`
}

// Found reports whether the field resolved to a column.
func (r Resolution) Found() bool {
	return r.Column != ""
}

// Resolve locates field among headers. Headers are compared as given, so
// callers normalize first.
func Resolve(headers []string, field Field) Resolution {
	for _, alias := range field.Aliases {
		for idx, header := range headers {
			if header == alias {
				return Resolution{Field: field.Name, Column: header, Index: idx, Rule: "alias:" + alias}
			}
		}
	}
	for _, parts := range field.Contains {
		for idx, header := range headers {
			if containsAll(header, parts) {
				return Resolution{Field: field.Name, Column: header, Index: idx, Rule: "contains:" + strings.Join(parts, "+")}
			}
		}
	}
	return Resolution{Field: field.Name, Index: -1}
}

func containsAll(header string, parts []string) bool {
	if len(parts) == 0 {
		return false
	}
	for _, part := range parts {
		if !strings.Contains(header, part) {
			return false
		}
	}
	return true
}

func (r Resolution) String() string {
	if !r.Found() {
		return fmt.Sprintf("%s: unresolved", r.Field)
	}
	return fmt.Sprintf("%s: %s (%s)", r.Field, r.Column, r.Rule)
}
