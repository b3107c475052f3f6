// Package export renders a professional's schedule as an XLSX workbook.
package export

import (
	"fmt"
	"io"
	"time"

	"agendo/internal/availability"
	"agendo/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Schedule"

// WriteSchedule writes one row per appointment, grouped by date, to w.
func WriteSchedule(w io.Writer, pro *models.Professional, appointments []*models.Appointment, from, to time.Time) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	title := fmt.Sprintf("%s: %s - %s", pro.Name,
		from.Format("02/01/2006"), to.Format("02/01/2006"))
	_ = f.SetCellValue(sheetName, "A1", title)

	headers := []string{"Date", "Start", "End", "Service", "Client", "Phone", "Status", "Payment"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(sheetName, cell, h)
	}

	row := 3
	for _, appt := range appointments {
		values := []interface{}{
			appt.Date.Format(models.DateLayout),
			availability.Clock(appt.StartMin),
			availability.Clock(appt.StartMin + appt.DurationMin),
			appt.ServiceID,
			appt.Client.Name,
			appt.Client.Phone,
			appt.Status,
			appt.PaymentStatus,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheetName, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 12)
	_ = f.SetColWidth(sheetName, "D", "F", 22)

	_ = f.MergeCell(sheetName, "A1", "H1")
	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	_ = f.SetCellStyle(sheetName, "A2", "H2", headerStyle)

	_ = f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %v", err)
	}
	return nil
}
