package analysis

import (
	"slices"
	"strings"
)

// Table is a set of records ordered by 1m volume descending, then 5m spread
// descending, then asset name.
type Table []Record

// NewTable returns a sorted copy of records.
func NewTable(records []Record) Table {
	t := slices.Clone(Table(records))
	t.Sort()
	return t
}

// Sort orders the table in place.
func (t Table) Sort() {
	slices.SortStableFunc(t, compareRecords)
}

func compareRecords(a, b Record) int {
	if c := cmpFloat(b.Volume1m, a.Volume1m); c != 0 {
		return c
	}
	if c := cmpFloat(b.Spread5m, a.Spread5m); c != 0 {
		return c
	}
	return strings.Compare(a.Asset, b.Asset)
}

// Assets lists the asset names in table order.
func (t Table) Assets() []string {
	out := make([]string, len(t))
	for i, r := range t {
		out[i] = r.Asset
	}
	return out
}

// View exposes every record and column of the table.
func (t Table) View() View {
	return View{Columns: Columns(), Records: slices.Clone([]Record(t))}
}
