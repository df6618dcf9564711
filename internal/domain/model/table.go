// Package model contains domain models passed between layers.
package model

import "strings"

// Table is an immutable CSV snapshot: an ordered header and string rows.
// Every row has exactly len(Header) cells.
type Table struct {
	Source string
	Header []string
	Rows   [][]string

	index map[string]int
}

// NewTable builds a Table and indexes its header. Column names are trimmed;
// a duplicated name resolves to its first position.
func NewTable(source string, header []string, rows [][]string) *Table {
	t := &Table{
		Source: source,
		Header: make([]string, len(header)),
		Rows:   rows,
		index:  make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.Header[i] = h
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
	return t
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// IndexAny returns the position of the first of names present in the header.
func (t *Table) IndexAny(names ...string) int {
	for _, n := range names {
		if i := t.Index(n); i >= 0 {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }
