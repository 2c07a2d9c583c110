package sources

import (
	"encoding/csv"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"hkcovid/internal/etl"
)

// ── CSV decoding ────────────────────────────────────────────
// The first row is the header. Malformed lines are skipped and counted
// instead of failing the whole file. Each column gets a single type:
// a value that does not fit the column's type turns the column to text.

// ErrEmptyCSV is returned when the input has no header row.
var ErrEmptyCSV = errors.New("empty csv")

const utf8BOM = "\ufeff"

func decodeCSV(r io.Reader) (*etl.Table, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, 0, ErrEmptyCSV
	}
	if err != nil {
		return nil, 0, errors.Wrap(err, "parse csv header")
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	var rows [][]string
	skipped := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				skipped++
				continue
			}
			return nil, 0, errors.Wrap(err, "read csv")
		}
		if len(row) > len(header) {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	kinds := make([]columnKind, len(header))
	for i := range header {
		kinds[i] = inferColumnKind(rows, i)
	}

	table := etl.NewTable(uniqueHeaders(header)...)
	for _, row := range rows {
		values := make([]any, len(row))
		for i, cell := range row {
			values[i] = convertCell(cell, kinds[i])
		}
		table.Append(values...)
	}
	return table, skipped, nil
}

// uniqueHeaders suffixes repeated header names with ".1", ".2", ...
func uniqueHeaders(header []string) []string {
	used := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := h
		for n := 1; used[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindFloat
	kindBool
)

// inferColumnKind picks the narrowest type every non-empty cell of column
// col fits: integer, then float, then bool, else text. Numbers with leading
// zeros are text so identifiers like "007" survive. A column with no
// values stays text.
func inferColumnKind(rows [][]string, col int) columnKind {
	isInt, isFloat, isBool := true, true, true
	seen := false
	for _, row := range rows {
		if col >= len(row) {
			continue
		}
		t := strings.TrimSpace(row[col])
		if t == "" {
			continue
		}
		seen = true
		if isInt || isFloat {
			_, intErr := parseInt(t)
			_, floatErr := parseFloat(t)
			isInt = isInt && intErr == nil
			isFloat = isFloat && floatErr == nil
		}
		if isBool {
			_, ok := parseBool(t)
			isBool = ok
		}
		if !isInt && !isFloat && !isBool {
			return kindText
		}
	}

	switch {
	case !seen:
		return kindText
	case isInt:
		return kindInt
	case isFloat:
		return kindFloat
	case isBool:
		return kindBool
	}
	return kindText
}

// convertCell turns a cell into nil or a value of the column's kind.
func convertCell(s string, kind columnKind) any {
	t := strings.TrimSpace(s)
	if t == "" {
		return nil
	}
	switch kind {
	case kindInt:
		n, _ := parseInt(t)
		return n
	case kindFloat:
		f, _ := parseFloat(t)
		return f
	case kindBool:
		b, _ := parseBool(t)
		return b
	}
	return s
}

func parseInt(t string) (int64, error) {
	if hasLeadingZero(t) {
		return 0, errors.New("leading zero")
	}
	return strconv.ParseInt(t, 10, 64)
}

func parseFloat(t string) (float64, error) {
	if hasLeadingZero(t) {
		return 0, errors.New("leading zero")
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.New("not finite")
	}
	return f, nil
}

func parseBool(t string) (bool, bool) {
	switch strings.ToLower(t) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func hasLeadingZero(s string) bool {
	s = strings.TrimLeft(s, "+-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
