package repository

import (
	"context"
	"errors"
	"time"

	"iclock-gateway/internal/domain"
)

// ErrDuplicatePunch is returned by AttendanceRepo.Insert when the
// (employee_id, timestamp, device_serial_number) tuple already exists.
// Devices resend unacknowledged batches, so callers treat it as idempotent.
var ErrDuplicatePunch = errors.New("duplicate punch")

// DevicesRepo owns the Device lifecycle. Registration is an administrative
// action; the protocol flow only reads and marks online.
type DevicesRepo interface {
	FindBySerial(ctx context.Context, serial string) (*domain.Device, error)
	Create(ctx context.Context, d *domain.Device) error
	List(ctx context.Context) ([]domain.Device, error)
	// MarkOnline sets status online and refreshes last_online; ip only
	// overwrites the stored address when non-empty.
	MarkOnline(ctx context.Context, serial, ip string, at time.Time) error
	MarkOffline(ctx context.Context, serial string) error
}

// EmployeesRepo owns enrollment records, keyed by the device-side employee id.
type EmployeesRepo interface {
	FindByEmployeeID(ctx context.Context, employeeID string) (*domain.Employee, error)
	// Upsert merges only the fields present in patch; absent fields keep
	// their stored values.
	Upsert(ctx context.Context, employeeID string, patch domain.EmployeePatch) (*domain.Employee, error)
}

// AttendanceFilter narrows attendance queries; zero values mean "any".
type AttendanceFilter struct {
	DeviceSerial string
	EmployeeID   string
	From         string // inclusive, domain.TimestampLayout
	To           string // inclusive
}

// AttendanceRepo owns punch rows.
type AttendanceRepo interface {
	Exists(ctx context.Context, employeeID, timestamp, deviceSerial string) (bool, error)
	// LastForDay returns the most recent punch for the employee on the
	// given calendar day (YYYY-MM-DD), or nil when there is none.
	LastForDay(ctx context.Context, employeeID, day string) (*domain.Attendance, error)
	// Insert persists the punch and sets a.ID. Returns ErrDuplicatePunch
	// when the uniqueness constraint rejects it.
	Insert(ctx context.Context, a *domain.Attendance) error
	// UpdateUserID backfills the resolved host user onto an existing punch.
	UpdateUserID(ctx context.Context, id int64, userID int64) error
	List(ctx context.Context, filter AttendanceFilter) ([]domain.Attendance, error)
}

// CommandsRepo owns the command queue rows.
type CommandsRepo interface {
	Create(ctx context.Context, c *domain.Command) error
	// NextPending returns the oldest pending command for the device
	// (FIFO by creation time), or nil when the queue is empty.
	NextPending(ctx context.Context, deviceSerial string) (*domain.Command, error)
	FindByCommandID(ctx context.Context, commandID string) (*domain.Command, error)
	// SetStatus moves the command to status and stamps the matching
	// transition timestamp column.
	SetStatus(ctx context.Context, id int64, status string, at time.Time) error
	ListPending(ctx context.Context, deviceSerial string) ([]domain.Command, error)
}
