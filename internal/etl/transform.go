package etl

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ── Transformer ────────────────────────────────────────────
// Transformers reshape a whole table between source and destination.
// They are composable: each takes a table and returns a new one.
// None of them fails; malformed values degrade to nil or text.

// Transformer processes a table.
type Transformer interface {
	Transform(*Table) *Table
}

// TransformerFunc adapts a plain function to the Transformer interface.
type TransformerFunc func(*Table) *Table

func (f TransformerFunc) Transform(t *Table) *Table { return f(t) }

// Defaults for the row expander.
const (
	DefaultSplitColumn      = "Related cases"
	DefaultSplitDelimiter   = ","
	DefaultNullPlaceholder  = "None"
	forbiddenFieldCharacter = "."
)

// ── Built-in Transforms ────────────────────────────────────

// RenameColumnsTransform strips "." from every column name.
// MongoDB does not accept dotted field names on insert.
type RenameColumnsTransform struct{}

func (RenameColumnsTransform) Transform(t *Table) *Table {
	names := make([]string, len(t.Columns))
	position := make(map[string]int, len(t.Columns))
	var columns []string
	for i, c := range t.Columns {
		name := strings.ReplaceAll(c, forbiddenFieldCharacter, "")
		names[i] = name
		if _, ok := position[name]; !ok {
			position[name] = len(columns)
			columns = append(columns, name)
		}
	}

	out := &Table{Columns: columns, Rows: make([]Record, len(t.Rows))}
	for i, r := range t.Rows {
		data := make(map[string]any, len(columns))
		// Later columns overwrite earlier ones that collapse to the same name.
		for j, c := range t.Columns {
			data[names[j]] = r.Data[c]
		}
		out.Rows[i] = Record{Data: data}
	}
	return out
}

// SplitRowsTransform explodes a delimited field into one row per token.
type SplitRowsTransform struct {
	Column      string
	Delimiter   string
	Placeholder string // text used for nil values
}

// NewSplitRowsTransform returns a SplitRowsTransform with defaults applied
// for empty arguments.
func NewSplitRowsTransform(column, delimiter string) *SplitRowsTransform {
	if column == "" {
		column = DefaultSplitColumn
	}
	if delimiter == "" {
		delimiter = DefaultSplitDelimiter
	}
	return &SplitRowsTransform{Column: column, Delimiter: delimiter, Placeholder: DefaultNullPlaceholder}
}

// RequiredColumns reports the column the transform reads.
func (t *SplitRowsTransform) RequiredColumns() []string { return []string{t.Column} }

func (t *SplitRowsTransform) Transform(in *Table) *Table {
	out := &Table{Columns: append([]string(nil), in.Columns...)}
	if !out.HasColumn(t.Column) {
		out.Columns = append(out.Columns, t.Column)
	}

	out.Rows = make([]Record, 0, len(in.Rows))
	for _, r := range in.Rows {
		text := ToText(r.Data[t.Column], t.Placeholder)
		tokens := []string{text}
		if t.Delimiter != "" {
			tokens = strings.Split(text, t.Delimiter)
		}
		for _, tok := range tokens {
			row := r.Clone()
			row.Data[t.Column] = tok
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// DatetimeTransform parses the listed columns into time.Time values.
// Anything that does not parse becomes nil.
type DatetimeTransform struct {
	Columns  []string
	DayFirst bool
}

// RequiredColumns reports the columns the transform reads.
func (t *DatetimeTransform) RequiredColumns() []string { return t.Columns }

func (t *DatetimeTransform) Transform(in *Table) *Table {
	out := &Table{Columns: append([]string(nil), in.Columns...), Rows: make([]Record, len(in.Rows))}
	for i, r := range in.Rows {
		row := r.Clone()
		for _, c := range t.Columns {
			if _, ok := row.Data[c]; !ok {
				continue
			}
			if ts, ok := ParseDatetime(row.Data[c], t.DayFirst); ok {
				row.Data[c] = ts
			} else {
				row.Data[c] = nil
			}
		}
		out.Rows[i] = row
	}
	return out
}

// ── Value helpers ──────────────────────────────────────────

// ToText renders a cell value as text. nil renders as placeholder.
func ToText(v any, placeholder string) string {
	switch x := v.(type) {
	case nil:
		return placeholder
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

var (
	isoLayouts = []string{
		"2006-1-2",
		"2006-1-2 15:04",
		"2006-1-2 15:04:05",
		"2006-1-2T15:04:05",
		"2006-1-2 15:04:05Z07:00",
		"2006-1-2 15:04:05-0700",
		"2006-1-2 15:04Z07:00",
		"2006-1-2T15:04:05-0700",
		"2006/1/2",
		"2006/1/2 15:04",
		"2006/1/2 15:04:05",
		"20060102",
	}
	namedMonthLayouts = []string{
		"Jan 2 2006",
		"Jan 2, 2006",
		"January 2 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 2 2006 15:04:05",
		"2 Jan 2006 15:04:05",
	}
	dayFirstLayouts = []string{
		"2/1/2006",
		"2/1/2006 15:04",
		"2/1/2006 15:04:05",
		"2-1-2006",
		"2-1-2006 15:04",
		"2-1-2006 15:04:05",
	}
	monthFirstLayouts = []string{
		"1/2/2006",
		"1/2/2006 15:04",
		"1/2/2006 15:04:05",
		"1-2-2006",
		"1-2-2006 15:04",
		"1-2-2006 15:04:05",
	}
)

// ParseDatetime converts a cell value to a UTC time.
// ok is false for nil, empty, non-text and unparseable values.
func ParseDatetime(v any, dayFirst bool) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x.UTC(), true
	case string:
		return parseDatetimeText(strings.TrimSpace(x), dayFirst)
	default:
		return time.Time{}, false
	}
}

func parseDatetimeText(s string, dayFirst bool) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.UTC(), true
	}

	layouts := dayFirstLayouts
	if !dayFirst {
		layouts = monthFirstLayouts
	}
	for _, group := range [][]string{isoLayouts, namedMonthLayouts, layouts} {
		for _, layout := range group {
			if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return ts.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

// ── Helpers ────────────────────────────────────────────────

// ColumnReader is implemented by transformers that act on named columns.
type ColumnReader interface {
	RequiredColumns() []string
}

// MissingColumns returns the columns tr reads that t does not have.
func MissingColumns(tr Transformer, t *Table) []string {
	cr, ok := tr.(ColumnReader)
	if !ok {
		return nil
	}
	var missing []string
	for _, c := range cr.RequiredColumns() {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// ApplyTransformers runs a chain of transformers on a table.
func ApplyTransformers(t *Table, ts []Transformer) *Table {
	for _, tr := range ts {
		t = tr.Transform(t)
	}
	return t
}

// buildTransformers converts declarative TransformConfig into Transformer instances.
func buildTransformers(configs []TransformConfig) ([]Transformer, error) {
	var ts []Transformer

	for _, tc := range configs {
		switch tc.Type {
		case "rename_columns":
			ts = append(ts, RenameColumnsTransform{})

		case "split_rows":
			column, _ := tc.Config["column"].(string)
			delimiter, _ := tc.Config["delimiter"].(string)
			st := NewSplitRowsTransform(column, delimiter)
			if p, ok := tc.Config["placeholder"].(string); ok {
				st.Placeholder = p
			}
			ts = append(ts, st)

		case "convert_datetime":
			columns := stringList(tc.Config["columns"])
			if len(columns) == 0 {
				return nil, errors.Errorf("convert_datetime: no columns configured")
			}
			dayFirst := true
			if b, ok := tc.Config["dayFirst"].(bool); ok {
				dayFirst = b
			}
			ts = append(ts, &DatetimeTransform{Columns: columns, DayFirst: dayFirst})

		default:
			return nil, errors.Errorf("unknown transform type: %q", tc.Type)
		}
	}

	return ts, nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, s := range l {
			out = append(out, fmt.Sprint(s))
		}
		return out
	case string:
		return []string{l}
	default:
		return nil
	}
}
