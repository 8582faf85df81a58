package sheet

import "strconv"

// sampleWorkbook builds the default workbook seeded on first open: a single
// sheet of names, emails, amounts, and bonus formulas. Formula cells carry
// their last evaluated value alongside the formula string.
func sampleWorkbook() *workbook {
	ws := &worksheet{
		Ref:   "A1:D7",
		Cells: make(map[string]*Cell),
	}

	put := func(addr string, value any) {
		ws.Cells[addr] = &Cell{Value: value, Type: cellType(value)}
	}
	putFormula := func(addr, formula string, value float64) {
		ws.Cells[addr] = &Cell{Value: value, Type: "n", Formula: formula}
	}

	put("A1", "Name")
	put("B1", "Email")
	put("C1", "Amount")
	put("D1", "Bonus")

	people := []struct {
		name   string
		email  string
		amount float64
	}{
		{"Alice Smith", "alice@example.com", 1500},
		{"Bob Johnson", "bob@example.com", 2200},
		{"Carol White", "carol@example.com", 1800},
		{"David Brown", "david@example.com", 3000},
		{"Eve Davis", "eve@example.com", 2500},
	}

	total := 0.0
	for i, p := range people {
		row := i + 2
		put(FormatCell(CellRef{Row: row - 1, Col: 0}), p.name)
		put(FormatCell(CellRef{Row: row - 1, Col: 1}), p.email)
		put(FormatCell(CellRef{Row: row - 1, Col: 2}), p.amount)
		putFormula(FormatCell(CellRef{Row: row - 1, Col: 3}),
			"C"+strconv.Itoa(row)+"*0.1", p.amount*0.1)
		total += p.amount
	}

	put("A7", "Total")
	put("B7", "")
	putFormula("C7", "SUM(C2:C6)", total)
	putFormula("D7", "SUM(D2:D6)", total*0.1)

	return &workbook{
		Order:  []string{"Sheet1"},
		Sheets: map[string]*worksheet{"Sheet1": ws},
	}
}
