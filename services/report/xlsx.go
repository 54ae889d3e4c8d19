package reportsvc

import (
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/shuleapp/shule/core/fee"
)

const feeSheet = "Fees"

var feeHeader = []interface{}{"ID", "Student", "Fee type", "Academic year", "Amount", "Due date", "Status", "Paid date", "Remarks"}

// XLSXExporter renders reports as Excel workbooks.
type XLSXExporter struct{}

var _ fee.Exporter = XLSXExporter{}

func NewXLSXExporter() XLSXExporter { return XLSXExporter{} }

// ExportFees writes one row per record under a header row, followed by a totals block.
func (XLSXExporter) ExportFees(recs []fee.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", feeSheet); err != nil {
		return nil, errors.Wrap(err, "naming sheet")
	}
	if err := f.SetSheetRow(feeSheet, "A1", &feeHeader); err != nil {
		return nil, errors.Wrap(err, "writing header")
	}

	row := 2
	for _, r := range recs {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		values := []interface{}{r.ID, r.StudentID, r.FeeType, r.AcademicYear, r.Amount, r.DueDate, r.Status, r.PaidDate, r.Remarks}
		if err := f.SetSheetRow(feeSheet, cell, &values); err != nil {
			return nil, errors.Wrapf(err, "writing row %d", row)
		}
		row++
	}

	totals := fee.Sum(recs)
	row++
	for _, line := range []struct {
		label string
		value float64
	}{
		{"Total", totals.Total},
		{"Collected", totals.Collected},
		{"Pending", totals.Pending},
		{"Overdue", totals.Overdue},
	} {
		cell, _ := excelize.CoordinatesToCellName(4, row)
		values := []interface{}{line.label, line.value}
		if err := f.SetSheetRow(feeSheet, cell, &values); err != nil {
			return nil, errors.Wrap(err, "writing totals")
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf.Bytes(), nil
}
