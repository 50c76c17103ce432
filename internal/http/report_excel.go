package httpapi

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// DailySummaryHeader 每日汇总表头
var DailySummaryHeader = []string{"Date", "Booked In", "Erased", "QA"}

// EngineerTotalsHeader 工程师汇总表头
var EngineerTotalsHeader = []string{"Date", "Engineer", "Erased"}

// RawEventsHeader 原始事件表头
var RawEventsHeader = []string{
	"Date",
	"Time (UTC)",
	"Job ID",
	"Event",
	"Device Type",
	"Engineer",
	"Duration (s)",
	"Manufacturer",
	"Model",
	"System Serial",
	"Disk Serial",
	"Disk Capacity (bytes)",
	"Drive Count",
	"Drive Type",
	"Error",
}

// GenerateReportWorkbook 生成报表 Excel 文件
// 三个工作表：Daily Summary / Engineer Totals / Raw Events
func GenerateReportWorkbook(dataset *PowerBIDataset) ([]byte, error) {
	f := excelize.NewFile()
	// Note: Don't defer Close() here, because WriteTo needs the file to be open

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	writeSheet := func(name string, header []string, rows [][]any) error {
		index, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		f.SetActiveSheet(index)

		for col, title := range header {
			cell, err := excelize.CoordinatesToCellName(col+1, 1)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(name, cell, title); err != nil {
				return fmt.Errorf("failed to set header cell %s: %w", cell, err)
			}
			if err := f.SetCellStyle(name, cell, cell, headerStyle); err != nil {
				return fmt.Errorf("failed to style header cell %s: %w", cell, err)
			}
		}
		for i, row := range rows {
			for col, v := range row {
				cell, err := excelize.CoordinatesToCellName(col+1, i+2)
				if err != nil {
					return fmt.Errorf("failed to convert coordinates: %w", err)
				}
				if err := f.SetCellValue(name, cell, v); err != nil {
					return fmt.Errorf("failed to set cell %s: %w", cell, err)
				}
			}
		}
		return nil
	}

	dailyRows := make([][]any, 0, len(dataset.Daily))
	for _, d := range dataset.Daily {
		dailyRows = append(dailyRows, []any{d.Date, d.BookedIn, d.Erased, d.QA})
	}
	engineerRows := make([][]any, 0, len(dataset.Engineers))
	for _, e := range dataset.Engineers {
		engineerRows = append(engineerRows, []any{e.Date, e.EngineerInitials, e.Erased})
	}
	eventRows := make([][]any, 0, len(dataset.Events))
	for _, ev := range dataset.Events {
		eventRows = append(eventRows, []any{
			ev.Date,
			time.Unix(ev.OccurredAt, 0).UTC().Format("15:04:05"),
			ev.JobID,
			string(ev.Kind),
			ev.DeviceType,
			ev.EngineerInitials,
			ev.DurationSeconds,
			ev.Manufacturer,
			ev.Model,
			ev.SystemSerial,
			ev.DiskSerial,
			ev.DiskCapacityBytes,
			ev.DriveCount,
			ev.DriveType,
			ev.ErrorKind,
		})
	}

	if err := writeSheet("Daily Summary", DailySummaryHeader, dailyRows); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet("Engineer Totals", EngineerTotalsHeader, engineerRows); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet("Raw Events", RawEventsHeader, eventRows); err != nil {
		f.Close()
		return nil, err
	}

	f.DeleteSheet("Sheet1")

	var buf []byte
	w, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	buf = w.Bytes()
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}
	return buf, nil
}
