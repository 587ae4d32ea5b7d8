package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type costCSVRow struct {
	Date      string `csv:"Date"`
	Employee  string `csv:"Employee"`
	Project   string `csv:"Project"`
	Hours     string `csv:"Hours"`
	Rate      string `csv:"Rate"`
	Burden    string `csv:"Burden %"`
	Labor     string `csv:"Labor Cost"`
	Total     string `csv:"Total Cost"`
	Notes     string `csv:"Notes"`
	Submitted string `csv:"Submitted"`
}

type hoursCSVRow struct {
	Date      string `csv:"Date"`
	Employee  string `csv:"Employee"`
	Project   string `csv:"Project"`
	Hours     string `csv:"Hours"`
	Notes     string `csv:"Notes"`
	Submitted string `csv:"Submitted"`
}

// Columns returns the export header for the report's visibility.
func (r *Report) Columns() []string {
	if r.ShowCosts {
		return []string{"Date", "Employee", "Project", "Hours", "Rate", "Burden %", "Labor Cost", "Total Cost", "Notes", "Submitted"}
	}
	return []string{"Date", "Employee", "Project", "Hours", "Notes", "Submitted"}
}

// Values returns one row's cells in Columns order.
func (r *Report) Values(row Row) []string {
	submitted := "No"
	if row.Entry.IsLocked() {
		submitted = "Yes"
	}
	base := []string{row.Entry.Day.String(), row.WorkerName, row.ProjectName, row.Entry.Hours.StringFixed(2)}
	if !r.ShowCosts {
		return append(base, row.Entry.Note, submitted)
	}
	c := row.Cost
	return append(base,
		c.Rate.StringFixed(2),
		c.OverheadPercent.StringFixed(2),
		c.Labor.StringFixed(2),
		c.Total.StringFixed(2),
		row.Entry.Note,
		submitted,
	)
}

// numbers returns the numeric cells of a row, starting at the Hours column.
func (r *Report) numbers(row Row) []decimal.Decimal {
	nums := []decimal.Decimal{row.Entry.Hours}
	if r.ShowCosts {
		c := row.Cost
		nums = append(nums, c.Rate, c.OverheadPercent, c.Labor, c.Total)
	}
	return nums
}

// ExportCSV writes the report as CSV. Cost columns appear only when the
// report shows costs.
func ExportCSV(w io.Writer, r *Report) error {
	if r.ShowCosts {
		rows := make([]costCSVRow, 0, len(r.Rows))
		for _, row := range r.Rows {
			v := r.Values(row)
			rows = append(rows, costCSVRow{v[0], v[1], v[2], v[3], v[4], v[5], v[6], v[7], v[8], v[9]})
		}
		return gocsv.Marshal(rows, w)
	}
	rows := make([]hoursCSVRow, 0, len(r.Rows))
	for _, row := range r.Rows {
		v := r.Values(row)
		rows = append(rows, hoursCSVRow{v[0], v[1], v[2], v[3], v[4], v[5]})
	}
	return gocsv.Marshal(rows, w)
}

const (
	sheetName = "Report"
	hoursCol  = 3

	// builtin excelize number format "0.00"
	fixedTwoFormat = 2
)

// ExportXLSX writes the report as a workbook with a trailing totals row.
// Hours and money columns are numeric cells so spreadsheet formulas work on
// them.
func ExportXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := r.Columns()
	if err := f.SetSheetRow(sheetName, "A1", toCells(header)); err != nil {
		return err
	}
	for i, row := range r.Rows {
		cells := toCells(r.Values(row))
		for j, d := range r.numbers(row) {
			(*cells)[hoursCol+j] = d.InexactFloat64()
		}
		if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", i+2), cells); err != nil {
			return err
		}
	}

	lastRow := len(r.Rows) + 2
	totals := *toCells(make([]string, len(header)))
	totals[0] = "Total"
	totals[hoursCol] = r.Totals.Hours.InexactFloat64()
	if r.ShowCosts {
		totals[6] = r.Totals.Labor.InexactFloat64()
		totals[7] = r.Totals.Total.InexactFloat64()
	}
	if err := f.SetSheetRow(sheetName, fmt.Sprintf("A%d", lastRow), &totals); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{NumFmt: fixedTwoFormat})
	if err != nil {
		return err
	}
	lastNumeric, err := excelize.ColumnNumberToName(hoursCol + len(r.numbers(Row{})))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "D2", fmt.Sprintf("%s%d", lastNumeric, lastRow), style); err != nil {
		return err
	}

	if err := f.SetColWidth(sheetName, "A", "A", 12); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetName, "B", "C", 20); err != nil {
		return err
	}

	return f.Write(w)
}

func toCells(values []string) *[]interface{} {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return &cells
}
