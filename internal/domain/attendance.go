package domain

import (
	"database/sql"
	"time"
)

// Toggle states for a punch. Devices do not send the direction; it is
// inferred from punch ordering within a day.
const (
	ClockIn  = 0
	ClockOut = 1
)

// TimestampLayout is the naive wall-clock format punches are stored in after
// conversion to the configured timezone.
const TimestampLayout = "2006-01-02 15:04:05"

// Attendance is one accepted punch. The tuple (employee_id, timestamp,
// device_serial_number) is unique; identical resends are dropped. Rows are
// immutable after insert except for a later backfill of UserID once an
// enrollment link appears.
type Attendance struct {
	ID                 int64          `db:"id"`
	DeviceName         string         `db:"device_name"`
	DeviceSerialNumber string         `db:"device_serial_number"`
	UserID             sql.NullInt64  `db:"user_id"`
	Table              sql.NullString `db:"table"`
	Stamp              sql.NullString `db:"stamp"`
	EmployeeID         string         `db:"employee_id"`
	Timestamp          string         `db:"timestamp"` // naive wall-clock, TimestampLayout
	Status1            int            `db:"status1"`   // ClockIn or ClockOut
	Status2            int            `db:"status2"`   // optional device codes, -1 when absent
	Status3            int            `db:"status3"`
	Status4            int            `db:"status4"`
	Status5            int            `db:"status5"`
	CreatedAt          time.Time      `db:"created_at"`
}

// Day returns the calendar-day portion of the punch timestamp.
func (a *Attendance) Day() string {
	if len(a.Timestamp) < 10 {
		return a.Timestamp
	}
	return a.Timestamp[:10]
}

// IsClockIn reports whether the punch was classified as a clock-in.
func (a *Attendance) IsClockIn() bool {
	return a.Status1 == ClockIn
}

// ToJSON renders the punch for HTTP responses.
func (a *Attendance) ToJSON() map[string]any {
	m := map[string]any{
		"id":                   a.ID,
		"device_name":          a.DeviceName,
		"device_serial_number": a.DeviceSerialNumber,
		"employee_id":          a.EmployeeID,
		"timestamp":            a.Timestamp,
		"status1":              a.Status1,
		"status2":              a.Status2,
		"status3":              a.Status3,
		"status4":              a.Status4,
		"status5":              a.Status5,
	}
	if a.UserID.Valid {
		m["user_id"] = a.UserID.Int64
	}
	if a.Table.Valid {
		m["table"] = a.Table.String
	}
	if a.Stamp.Valid {
		m["stamp"] = a.Stamp.String
	}
	return m
}
