package analysis

import (
	"fmt"
	"slices"
)

// Filter operators.
const (
	OpGreater = ">"
	OpLess    = "<"
	OpEqual   = "=="
)

// View is a selection of records and columns derived from a Table.
type View struct {
	Columns []Column
	Records []Record
}

// SortKey orders a view by one column.
type SortKey struct {
	Column string
	Desc   bool
}

// Filter keeps the records whose numeric column compares to value with op.
// An unknown column or operator yields an empty view and an error.
func Filter(t Table, column, op string, value float64) (View, error) {
	col, err := Lookup(column)
	if err != nil {
		return View{}, err
	}
	if col.Kind != KindNumber {
		return View{}, fmt.Errorf("%w: %q is not numeric", ErrUnknownColumn, column)
	}

	var match func(float64) bool
	switch op {
	case OpGreater:
		match = func(v float64) bool { return v > value }
	case OpLess:
		match = func(v float64) bool { return v < value }
	case OpEqual:
		match = func(v float64) bool { return v == value }
	default:
		return View{}, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}

	out := View{Columns: Columns(), Records: make([]Record, 0, len(t))}
	for _, r := range t {
		if v, _ := col.Number(r); match(v) {
			out.Records = append(out.Records, r)
		}
	}
	return out, nil
}

// Project restricts the view to the named columns, in the given order.
func (v View) Project(names ...string) (View, error) {
	cols := make([]Column, 0, len(names))
	for _, name := range names {
		c, err := Lookup(name)
		if err != nil {
			return View{}, err
		}
		cols = append(cols, c)
	}
	return View{Columns: cols, Records: v.Records}, nil
}

// SortBy returns a copy of the view ordered by keys, earlier keys first.
func (v View) SortBy(keys ...SortKey) (View, error) {
	cols := make([]Column, len(keys))
	for i, k := range keys {
		c, err := Lookup(k.Column)
		if err != nil {
			return View{}, err
		}
		cols[i] = c
	}
	records := slices.Clone(v.Records)
	slices.SortStableFunc(records, func(a, b Record) int {
		for i, c := range cols {
			cmp := c.compare(a, b)
			if keys[i].Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp
			}
		}
		return 0
	})
	return View{Columns: v.Columns, Records: records}, nil
}

// Len returns the number of records.
func (v View) Len() int { return len(v.Records) }

// Rows returns each record as column-ordered values.
func (v View) Rows() [][]any {
	rows := make([][]any, len(v.Records))
	for i, r := range v.Records {
		row := make([]any, len(v.Columns))
		for j, c := range v.Columns {
			row[j] = c.Value(r)
		}
		rows[i] = row
	}
	return rows
}

// ColumnNames lists the view's column names.
func (v View) ColumnNames() []string {
	out := make([]string, len(v.Columns))
	for i, c := range v.Columns {
		out[i] = c.Name
	}
	return out
}
