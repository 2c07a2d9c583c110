package etl

// ── Record ─────────────────────────────────────────────────
// Common intermediate data format.
// Sources emit a Table of Records, transforms reshape it and the
// destination turns each Record into one document.
//
// Values held in Record.Data are one of:
// string, int64, float64, bool, time.Time or nil.

// Record is a single row of data flowing through the pipeline.
type Record struct {
	Data map[string]any `json:"data"`
}

// Clone returns a shallow copy of the record; values are shared.
func (r Record) Clone() Record {
	data := make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		data[k] = v
	}
	return Record{Data: data}
}

// Table is an ordered set of rows sharing one column schema.
type Table struct {
	Columns []string `json:"columns"`
	Rows    []Record `json:"rows"`
}

// NewTable returns an empty table with the given columns.
func NewTable(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append adds a row built from values given in column order.
// Missing trailing values are nil.
func (t *Table) Append(values ...any) {
	data := make(map[string]any, len(t.Columns))
	for i, c := range t.Columns {
		if i < len(values) {
			data[c] = values[i]
		} else {
			data[c] = nil
		}
	}
	t.Rows = append(t.Rows, Record{Data: data})
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// HasColumn reports whether name is one of the table's columns.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) []any {
	out := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Data[name]
	}
	return out
}
