package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"iclock-gateway/internal/domain"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var attendanceExportHeader = []string{
	"Employee ID",
	"User ID",
	"Timestamp",
	"Direction",
	"Device Name",
	"Device Serial",
	"Code 2",
	"Code 3",
	"Code 4",
	"Code 5",
}

// AttendanceExport handles GET /admin/api/v1/attendance/export: the filtered
// punch list as an xlsx download.
func (a *AdminHandler) AttendanceExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	punches, err := a.attendance.List(r.Context(), attendanceFilterFromQuery(r))
	if err != nil {
		a.logger.Error("attendance export query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to export attendance"))
		return
	}

	data, err := generateAttendanceExcel(punches)
	if err != nil {
		a.logger.Error("attendance export render failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to render export"))
		return
	}

	filename := fmt.Sprintf("attendance-%s.xlsx", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func generateAttendanceExcel(punches []domain.Attendance) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open, so no defer Close before buffering.

	sheetName := "Attendance"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, title := range attendanceExportHeader {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(sheetName, cell, title); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx := range punches {
		p := &punches[rowIdx]
		direction := "clock_out"
		if p.IsClockIn() {
			direction = "clock_in"
		}
		var userID any
		if p.UserID.Valid {
			userID = p.UserID.Int64
		}
		values := []any{
			p.EmployeeID,
			userID,
			p.Timestamp,
			direction,
			p.DeviceName,
			p.DeviceSerialNumber,
			p.Status2,
			p.Status3,
			p.Status4,
			p.Status5,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to buffer workbook: %w", err)
	}
	_ = f.Close()
	return buf.Bytes(), nil
}
