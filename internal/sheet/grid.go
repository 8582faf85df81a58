package sheet

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrSheetNotFound is returned when a referenced sheet does not exist in the workbook.
var ErrSheetNotFound = errors.New("sheet not found")

// Cell is one stored grid cell. Type is "n" for numeric and "s" for string
// values; a cell holding only a formula result keeps both the formula and its
// last evaluated value.
type Cell struct {
	Value   any    `json:"value,omitempty"`
	Type    string `json:"type,omitempty"`
	Formula string `json:"formula,omitempty"`
}

// CellData is the result of reading a single cell. Value is nil for an
// address with no stored content.
type CellData struct {
	Address string `json:"address"`
	Value   any    `json:"value"`
	Formula string `json:"formula,omitempty"`
}

// TableData is the result of reading a rectangular range: the first row of
// the span becomes Headers, the remainder Rows.
type TableData struct {
	Headers []string `json:"headers"`
	Rows    [][]any  `json:"rows"`
	Range   string   `json:"range"`
}

type worksheet struct {
	Cells map[string]*Cell `json:"cells"`
	Ref   string           `json:"ref"` // used range, e.g. "A1:D7"
}

type workbook struct {
	Order  []string              `json:"order"`
	Sheets map[string]*worksheet `json:"sheets"`
}

// Store is the process-wide workbook service. All access is serialized by a
// single mutex; every write persists the whole workbook before returning.
type Store struct {
	mu   sync.Mutex
	path string
	wb   *workbook
}

// Open loads the workbook file at path, creating it with the sample workbook
// if it does not exist yet.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.wb = sampleWorkbook()
		if err := s.persistLocked(); err != nil {
			return nil, fmt.Errorf("seeding workbook: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}

	var wb workbook
	if err := json.Unmarshal(data, &wb); err != nil {
		return nil, fmt.Errorf("parsing workbook: %w", err)
	}
	if wb.Sheets == nil {
		wb.Sheets = make(map[string]*worksheet)
	}
	s.wb = &wb
	return s, nil
}

// persistLocked writes the whole workbook to disk atomically. Callers must
// hold mu (or be the only reference, as in Open).
func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating workbook directory: %w", err)
	}

	data, err := json.MarshalIndent(s.wb, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding workbook: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// SheetNames returns the workbook's sheet names in declaration order.
func (s *Store) SheetNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.wb.Order))
	copy(names, s.wb.Order)
	return names
}

// ReadCell returns the cell at the given reference. Reading an unpopulated
// address succeeds with a nil Value.
func (s *Store) ReadCell(sheetName, cellRef string) (CellData, error) {
	if _, err := ParseCell(cellRef); err != nil {
		return CellData{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.wb.Sheets[sheetName]
	if !ok {
		return CellData{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}

	data := CellData{Address: sheetName + "!" + cellRef}
	if c, ok := ws.Cells[cellRef]; ok {
		data.Value = c.Value
		data.Formula = c.Formula
	}
	return data, nil
}

// ReadRange reads the rectangular span from..to (inclusive). The first row of
// the span is returned as headers, the rest as data rows.
func (s *Store) ReadRange(sheetName, from, to string) (TableData, error) {
	fromRef, err := ParseCell(from)
	if err != nil {
		return TableData{}, err
	}
	toRef, err := ParseCell(to)
	if err != nil {
		return TableData{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.wb.Sheets[sheetName]
	if !ok {
		return TableData{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}

	headers := make([]string, 0, toRef.Col-fromRef.Col+1)
	for col := fromRef.Col; col <= toRef.Col; col++ {
		addr := FormatCell(CellRef{Row: fromRef.Row, Col: col})
		if c, ok := ws.Cells[addr]; ok && c.Value != nil {
			headers = append(headers, fmt.Sprintf("%v", c.Value))
		} else {
			headers = append(headers, "")
		}
	}

	rows := make([][]any, 0, toRef.Row-fromRef.Row)
	for row := fromRef.Row + 1; row <= toRef.Row; row++ {
		rowData := make([]any, 0, toRef.Col-fromRef.Col+1)
		for col := fromRef.Col; col <= toRef.Col; col++ {
			addr := FormatCell(CellRef{Row: row, Col: col})
			if c, ok := ws.Cells[addr]; ok {
				rowData = append(rowData, c.Value)
			} else {
				rowData = append(rowData, nil)
			}
		}
		rows = append(rows, rowData)
	}

	return TableData{
		Headers: headers,
		Rows:    rows,
		Range:   fmt.Sprintf("%s!%s:%s", sheetName, from, to),
	}, nil
}

// WriteCell upserts a cell value. A written value supersedes any formula on
// the cell. The sheet's used range widens to include the written address, and
// the whole workbook is persisted before returning.
func (s *Store) WriteCell(sheetName, cellRef string, value any) error {
	ref, err := ParseCell(cellRef)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ws, ok := s.wb.Sheets[sheetName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}

	if ws.Cells == nil {
		ws.Cells = make(map[string]*Cell)
	}
	c, ok := ws.Cells[cellRef]
	if !ok {
		c = &Cell{}
		ws.Cells[cellRef] = c
	}

	c.Value = value
	c.Type = cellType(value)
	c.Formula = ""

	ws.Ref = widenRef(ws.Ref, ref)

	return s.persistLocked()
}

// SheetData reads the whole used range of a sheet.
func (s *Store) SheetData(sheetName string) (TableData, error) {
	s.mu.Lock()
	ws, ok := s.wb.Sheets[sheetName]
	if !ok {
		s.mu.Unlock()
		return TableData{}, fmt.Errorf("%w: %q", ErrSheetNotFound, sheetName)
	}
	ref := ws.Ref
	s.mu.Unlock()

	if ref == "" {
		return TableData{Headers: []string{}, Rows: [][]any{}, Range: sheetName + "!A1:A1"}, nil
	}

	from, to, ok := splitRangeRef(ref)
	if !ok {
		return TableData{}, fmt.Errorf("%w: used range %q", ErrMalformedRef, ref)
	}
	return s.ReadRange(sheetName, from, to)
}

func cellType(value any) string {
	switch value.(type) {
	case float64, float32, int, int64:
		return "n"
	default:
		return "s"
	}
}

// widenRef grows the used range "A1:D7" to include ref, if needed.
func widenRef(used string, ref CellRef) string {
	from, to, ok := splitRangeRef(used)
	if !ok {
		return "A1:" + FormatCell(ref)
	}
	start, err1 := ParseCell(from)
	end, err2 := ParseCell(to)
	if err1 != nil || err2 != nil {
		return "A1:" + FormatCell(ref)
	}
	if ref.Row > end.Row {
		end.Row = ref.Row
	}
	if ref.Col > end.Col {
		end.Col = ref.Col
	}
	return FormatCell(start) + ":" + FormatCell(end)
}

func splitRangeRef(ref string) (from, to string, ok bool) {
	return strings.Cut(ref, ":")
}
