package etl

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenameColumns_StripsDots(t *testing.T) {
	in := NewTable("Report.date", "Case no.", "Name")
	in.Append("2021-03-01", int64(1), "a")
	in.Append("2021-03-02", int64(2), "b")

	out := RenameColumnsTransform{}.Transform(in)

	assert.Equal(t, []string{"Reportdate", "Case no", "Name"}, out.Columns)
	require.Equal(t, in.Len(), out.Len())
	for i, r := range out.Rows {
		for _, c := range out.Columns {
			assert.NotContains(t, c, ".")
		}
		assert.Equal(t, in.Rows[i].Data["Report.date"], r.Data["Reportdate"])
		assert.Equal(t, in.Rows[i].Data["Name"], r.Data["Name"])
	}
}

func TestRenameColumns_Empty(t *testing.T) {
	out := RenameColumnsTransform{}.Transform(NewTable())
	assert.Empty(t, out.Columns)
	assert.Equal(t, 0, out.Len())

	out = RenameColumnsTransform{}.Transform(NewTable("a.b"))
	assert.Equal(t, []string{"ab"}, out.Columns)
	assert.Equal(t, 0, out.Len())
}

func TestRenameColumns_Collision(t *testing.T) {
	in := NewTable("ab", "x", "a.b")
	in.Append("first", "x", "second")

	out := RenameColumnsTransform{}.Transform(in)

	assert.Equal(t, []string{"ab", "x"}, out.Columns)
	assert.Equal(t, "second", out.Rows[0].Data["ab"])
}

func TestSplitRows_Scenario(t *testing.T) {
	in := NewTable("Related cases", "Building name")
	in.Append("001,002", "X")

	out := NewSplitRowsTransform("", "").Transform(in)

	want := []Record{
		{Data: map[string]any{"Related cases": "001", "Building name": "X"}},
		{Data: map[string]any{"Related cases": "002", "Building name": "X"}},
	}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitRows_RoundTrip(t *testing.T) {
	values := []any{"1,2,3", "only", " a, b ,", ",", "", int64(45), 2.5, nil}

	for _, v := range values {
		in := NewTable("Related cases", "District")
		in.Append(v, "Sha Tin")

		st := NewSplitRowsTransform("Related cases", ",")
		out := st.Transform(in)

		text := ToText(v, st.Placeholder)
		k := strings.Count(text, ",")
		require.Equal(t, k+1, out.Len(), "value %#v", v)

		tokens := make([]string, 0, out.Len())
		for _, r := range out.Rows {
			assert.Equal(t, "Sha Tin", r.Data["District"])
			tokens = append(tokens, r.Data["Related cases"].(string))
		}
		assert.Equal(t, text, strings.Join(tokens, ","), "value %#v", v)
	}
}

func TestSplitRows_NoDelimiter(t *testing.T) {
	in := NewTable("Related cases", "n")
	in.Append(int64(45), int64(1))

	out := NewSplitRowsTransform("", "").Transform(in)

	require.Equal(t, 1, out.Len())
	assert.Equal(t, "45", out.Rows[0].Data["Related cases"])
	assert.Equal(t, int64(1), out.Rows[0].Data["n"])
}

func TestSplitRows_NullPlaceholder(t *testing.T) {
	in := NewTable("Related cases")
	in.Append(nil)

	out := NewSplitRowsTransform("", "").Transform(in)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, DefaultNullPlaceholder, out.Rows[0].Data["Related cases"])

	custom := &SplitRowsTransform{Column: "Related cases", Delimiter: ",", Placeholder: "n/a"}
	out = custom.Transform(in)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, "n/a", out.Rows[0].Data["Related cases"])
}

func TestSplitRows_StableOrder(t *testing.T) {
	in := NewTable("Related cases", "id")
	in.Append("a;b", int64(1))
	in.Append("c", int64(2))
	in.Append("d;e;f", int64(3))

	out := NewSplitRowsTransform("Related cases", ";").Transform(in)

	var got []string
	for _, r := range out.Rows {
		got = append(got, ToText(r.Data["id"], "")+":"+r.Data["Related cases"].(string))
	}
	assert.Equal(t, []string{"1:a", "1:b", "2:c", "3:d", "3:e", "3:f"}, got)
	// source rows are not mutated
	assert.Equal(t, "a;b", in.Rows[0].Data["Related cases"])
}

func TestSplitRows_MissingColumn(t *testing.T) {
	in := NewTable("id")
	in.Append(int64(1))

	out := NewSplitRowsTransform("Related cases", ",").Transform(in)

	assert.Equal(t, []string{"id", "Related cases"}, out.Columns)
	require.Equal(t, 1, out.Len())
	assert.Equal(t, DefaultNullPlaceholder, out.Rows[0].Data["Related cases"])
}

func TestDatetime_Scenario(t *testing.T) {
	in := NewTable("Report.date", "Name")
	in.Append("2021-03-01", "x")

	out := ApplyTransformers(in, []Transformer{
		RenameColumnsTransform{},
		&DatetimeTransform{Columns: []string{"Reportdate"}, DayFirst: true},
	})

	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), out.Rows[0].Data["Reportdate"])
	assert.Equal(t, "x", out.Rows[0].Data["Name"])
}

func TestDatetime_NeverSentinel(t *testing.T) {
	values := []any{
		"", "   ", "not a date", "31/02/2021", "2021-13-01", nil,
		int64(20210301), 1.5, true,
		"2021-03-01", "01/03/2021", "1/3/2021 14:05", "2021-03-01T10:00:00+08:00", "20210301",
	}
	in := NewTable("d", "other")
	for _, v := range values {
		in.Append(v, int64(7))
	}

	out := (&DatetimeTransform{Columns: []string{"d"}, DayFirst: true}).Transform(in)

	require.Equal(t, len(values), out.Len())
	for i, r := range out.Rows {
		switch v := r.Data["d"].(type) {
		case nil:
		case time.Time:
			assert.Equal(t, time.UTC, v.Location(), "row %d", i)
		default:
			t.Fatalf("row %d: unexpected %T", i, v)
		}
		assert.Equal(t, int64(7), r.Data["other"])
	}
	for i := 0; i < 9; i++ {
		assert.Nil(t, out.Rows[i].Data["d"], "row %d (%#v)", i, values[i])
	}
	assert.Equal(t, time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), out.Rows[10].Data["d"])
	assert.Equal(t, time.Date(2021, 3, 1, 14, 5, 0, 0, time.UTC), out.Rows[11].Data["d"])
	assert.Equal(t, time.Date(2021, 3, 1, 2, 0, 0, 0, time.UTC), out.Rows[12].Data["d"])
}

func TestDatetime_MonthFirst(t *testing.T) {
	ts, ok := ParseDatetime("03/01/2021", false)
	require.True(t, ok)
	assert.Equal(t, time.March, ts.Month())

	ts, ok = ParseDatetime("03/01/2021", true)
	require.True(t, ok)
	assert.Equal(t, time.January, ts.Month())
}

func TestParseDatetime_OffsetsAndMonthNames(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2021-03-01 10:00:00+08:00", time.Date(2021, 3, 1, 2, 0, 0, 0, time.UTC)},
		{"2021-03-01 10:00:00+0800", time.Date(2021, 3, 1, 2, 0, 0, 0, time.UTC)},
		{"2021-03-01 10:00+08:00", time.Date(2021, 3, 1, 2, 0, 0, 0, time.UTC)},
		{"2021-03-01 10:00:00.5", time.Date(2021, 3, 1, 10, 0, 0, 500000000, time.UTC)},
		{"Mar 1 2021", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"March 1, 2021", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"1 Mar 2021", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		ts, ok := ParseDatetime(tt.in, true)
		require.True(t, ok, "input %q", tt.in)
		assert.True(t, tt.want.Equal(ts), "input %q: got %v", tt.in, ts)
		assert.Equal(t, time.UTC, ts.Location(), "input %q", tt.in)
	}
}

func TestDatetime_UnlistedColumnsUntouched(t *testing.T) {
	in := NewTable("a", "b")
	in.Append("2021-03-01", "2021-03-01")

	out := (&DatetimeTransform{Columns: []string{"a", "missing"}}).Transform(in)

	assert.IsType(t, time.Time{}, out.Rows[0].Data["a"])
	assert.Equal(t, "2021-03-01", out.Rows[0].Data["b"])
	_, ok := out.Rows[0].Data["missing"]
	assert.False(t, ok)
}

func TestBuildTransformers(t *testing.T) {
	ts, err := buildTransformers([]TransformConfig{
		{Type: "rename_columns"},
		{Type: "split_rows", Config: map[string]any{"column": "c", "delimiter": "|"}},
		{Type: "convert_datetime", Config: map[string]any{"columns": []any{"x", "y"}, "dayFirst": false}},
	})
	require.NoError(t, err)
	require.Len(t, ts, 3)

	st := ts[1].(*SplitRowsTransform)
	assert.Equal(t, "c", st.Column)
	assert.Equal(t, "|", st.Delimiter)
	assert.Equal(t, DefaultNullPlaceholder, st.Placeholder)

	dt := ts[2].(*DatetimeTransform)
	assert.Equal(t, []string{"x", "y"}, dt.Columns)
	assert.False(t, dt.DayFirst)

	_, err = buildTransformers([]TransformConfig{{Type: "pivot"}})
	assert.Error(t, err)
	_, err = buildTransformers([]TransformConfig{{Type: "convert_datetime"}})
	assert.Error(t, err)
}

func TestToText(t *testing.T) {
	assert.Equal(t, "None", ToText(nil, "None"))
	assert.Equal(t, "45", ToText(int64(45), ""))
	assert.Equal(t, "2.5", ToText(2.5, ""))
	assert.Equal(t, "True", ToText(true, ""))
	assert.Equal(t, "2021-03-01T00:00:00Z", ToText(time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC), ""))
}
