package workbook

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// table is a sheet read as a header row plus data rows.
type table struct {
	columns map[string]int
	rows    [][]string
	// first is the 1-based sheet row of rows[0].
	first int
}

func normalizeHeader(s string) string {
	s = norm.NFC.String(strings.TrimSpace(s))
	s = strings.ToLower(s)
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "")
}

func newTable(rows [][]string) *table {
	t := &table{columns: make(map[string]int), first: 2}
	if len(rows) == 0 {
		return t
	}
	for i, name := range rows[0] {
		key := normalizeHeader(name)
		if _, dup := t.columns[key]; key != "" && !dup {
			t.columns[key] = i
		}
	}
	t.rows = rows[1:]
	return t
}

func (t *table) has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.columns[normalizeHeader(n)]; ok {
			return true
		}
	}
	return false
}

// get returns the first non-missing column among names, trimmed of
// surrounding blank lines.
func (t *table) get(row []string, names ...string) string {
	for _, n := range names {
		idx, ok := t.columns[normalizeHeader(n)]
		if !ok {
			continue
		}
		if idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
