package sheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedRef is returned when a cell reference or mention cannot be parsed.
var ErrMalformedRef = errors.New("malformed reference")

// CellRef is a 0-indexed grid coordinate. Spreadsheet notation is 1-indexed
// with letter-encoded columns (A=1), so "A1" parses to {Row: 0, Col: 0}.
type CellRef struct {
	Row int
	Col int
}

// ParseCell converts spreadsheet notation like "A1" or "BC12" into a CellRef.
// The reference must be a run of uppercase letters followed by a run of digits.
func ParseCell(ref string) (CellRef, error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		i++
	}
	letters, digits := ref[:i], ref[i:]
	if letters == "" || digits == "" {
		return CellRef{}, fmt.Errorf("%w: %q", ErrMalformedRef, ref)
	}

	// Columns use bijective base-26: A..Z, AA..AZ, BA..
	col := 0
	for _, c := range letters {
		col = col*26 + int(c-'A') + 1
	}

	row, err := strconv.Atoi(digits)
	if err != nil || row < 1 {
		return CellRef{}, fmt.Errorf("%w: %q", ErrMalformedRef, ref)
	}

	return CellRef{Row: row - 1, Col: col - 1}, nil
}

// FormatColumn converts a 0-indexed column into its letter encoding
// (0 -> "A", 25 -> "Z", 26 -> "AA").
func FormatColumn(col int) string {
	var b []byte
	for col >= 0 {
		b = append([]byte{byte(col%26) + 'A'}, b...)
		col = col/26 - 1
	}
	return string(b)
}

// FormatCell is the inverse of ParseCell.
func FormatCell(ref CellRef) string {
	return FormatColumn(ref.Col) + strconv.Itoa(ref.Row+1)
}

// Mention is a parsed sheet-qualified reference such as "Sheet1!A1:B5" or
// "Sheet1!D4". A leading "@" sigil is stripped. Either Cell is set (single
// cell) or From/To are set (range).
type Mention struct {
	Sheet string
	Cell  string
	From  string
	To    string
}

// IsRange reports whether the mention addresses a range rather than a single cell.
func (m Mention) IsRange() bool {
	return m.To != ""
}

// ParseMention parses a mention string like "@Sheet1!A1:B5" or "Sheet1!D4".
func ParseMention(text string) (Mention, error) {
	cleaned := strings.TrimPrefix(text, "@")
	sheet, ref, ok := strings.Cut(cleaned, "!")
	if !ok || sheet == "" || ref == "" {
		return Mention{}, fmt.Errorf("%w: %q", ErrMalformedRef, text)
	}

	if from, to, isRange := strings.Cut(ref, ":"); isRange {
		if from == "" || to == "" {
			return Mention{}, fmt.Errorf("%w: %q", ErrMalformedRef, text)
		}
		return Mention{Sheet: sheet, From: from, To: to}, nil
	}

	return Mention{Sheet: sheet, Cell: ref}, nil
}
