package service

import (
	"context"
	"database/sql"
	"time"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/protocol"
	"iclock-gateway/internal/repository"

	"go.uber.org/zap"
)

// ResolvedUser is a host-application user identity returned by a directory
// lookup.
type ResolvedUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// EmployeeResolver looks a host user up by an employee-identifying field.
// The gateway ships an HTTP implementation (DirectoryClient); hosts embed
// their own when the mapping lives elsewhere.
type EmployeeResolver interface {
	ResolveByField(ctx context.Context, field, value string) (*ResolvedUser, error)
}

// AttendanceSink receives one event per accepted punch. Delivery semantics
// (sync, queued, broadcast) belong to the host, not the ledger.
type AttendanceSink interface {
	PunchRecorded(ctx context.Context, punch domain.Attendance)
}

// RequestMeta is the raw device metadata a push request carries alongside
// its payload.
type RequestMeta struct {
	Table string
	Stamp string
}

// Ledger deduplicates and persists punches and infers the clock-in/out
// direction. The read-then-write in Ingest is deliberately unguarded; the
// storage uniqueness constraint closes the duplicate race and the rare
// toggle inversion under concurrent resends is accepted.
type Ledger struct {
	attendance repository.AttendanceRepo
	employees  repository.EmployeesRepo
	resolver   EmployeeResolver // optional
	sink       AttendanceSink   // optional
	location   *time.Location
	autoCreate bool
	field      string
	logger     *zap.Logger
}

type LedgerOptions struct {
	Timezone            string
	AutoCreateEmployees bool
	EmployeeField       string
	Resolver            EmployeeResolver
	Sink                AttendanceSink
}

func NewLedger(attendance repository.AttendanceRepo, employees repository.EmployeesRepo, opts LedgerOptions, logger *zap.Logger) *Ledger {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", zap.String("timezone", opts.Timezone), zap.Error(err))
		loc = time.UTC
	}
	field := opts.EmployeeField
	if field == "" {
		field = "employee_code"
	}
	return &Ledger{
		attendance: attendance,
		employees:  employees,
		resolver:   opts.Resolver,
		sink:       opts.Sink,
		location:   loc,
		autoCreate: opts.AutoCreateEmployees,
		field:      field,
		logger:     logger,
	}
}

// Ingest processes a batch of attendance lines from one device and returns
// the punches it accepted. Per-line failures drop that line only; the batch
// never aborts.
func (l *Ledger) Ingest(ctx context.Context, device *domain.Device, lines []string, meta RequestMeta) []domain.Attendance {
	accepted := []domain.Attendance{}
	for _, line := range lines {
		rec, ok := protocol.ParseAttendanceLine(line)
		if !ok {
			continue
		}
		punch, ok := l.ingestRecord(ctx, device, rec, meta)
		if !ok {
			continue
		}
		accepted = append(accepted, *punch)

		if l.sink != nil {
			l.sink.PunchRecorded(ctx, *punch)
		}
	}
	return accepted
}

func (l *Ledger) ingestRecord(ctx context.Context, device *domain.Device, rec protocol.AttendanceRecord, meta RequestMeta) (*domain.Attendance, bool) {
	ts, ok := l.normalizeTimestamp(rec.Timestamp)
	if !ok {
		return nil, false
	}

	exists, err := l.attendance.Exists(ctx, rec.EmployeeID, ts, device.SerialNumber)
	if err != nil {
		l.logger.Error("punch existence check failed",
			zap.String("employee_id", rec.EmployeeID),
			zap.Error(err),
		)
		return nil, false
	}
	if exists {
		return nil, false
	}

	status, err := l.inferToggle(ctx, rec.EmployeeID, ts)
	if err != nil {
		l.logger.Error("toggle inference failed",
			zap.String("employee_id", rec.EmployeeID),
			zap.Error(err),
		)
		return nil, false
	}

	enrollment, err := l.employees.FindByEmployeeID(ctx, rec.EmployeeID)
	if err != nil {
		l.logger.Error("enrollment lookup failed",
			zap.String("employee_id", rec.EmployeeID),
			zap.Error(err),
		)
		return nil, false
	}

	punch := &domain.Attendance{
		DeviceName:         device.DeviceName,
		DeviceSerialNumber: device.SerialNumber,
		EmployeeID:         rec.EmployeeID,
		Timestamp:          ts,
		Status1:            status,
		Status2:            codeOrDefault(rec.Status2),
		Status3:            codeOrDefault(rec.Status3),
		Status4:            codeOrDefault(rec.Status4),
		Status5:            codeOrDefault(rec.Status5),
	}
	if enrollment != nil && enrollment.UserID.Valid {
		punch.UserID = enrollment.UserID
	}
	if meta.Table != "" {
		punch.Table = sql.NullString{String: meta.Table, Valid: true}
	}
	if meta.Stamp != "" {
		punch.Stamp = sql.NullString{String: meta.Stamp, Valid: true}
	}

	if err := l.attendance.Insert(ctx, punch); err != nil {
		if err == repository.ErrDuplicatePunch {
			// concurrent resend lost the insert race; idempotent
			return nil, false
		}
		l.logger.Error("punch insert failed",
			zap.String("employee_id", rec.EmployeeID),
			zap.String("timestamp", ts),
			zap.Error(err),
		)
		return nil, false
	}

	if enrollment == nil && l.autoCreate {
		l.autoProvision(ctx, punch)
	}

	return punch, true
}

// normalizeTimestamp converts a device-local timestamp to the configured
// timezone and second precision, rendered as naive wall-clock text. Zero and
// unparsable timestamps are dropped; devices with unset clocks send both.
func (l *Ledger) normalizeTimestamp(raw string) (string, bool) {
	if raw == "" || raw == "0" {
		return "", false
	}
	t, err := time.ParseInLocation(domain.TimestampLayout, raw, l.location)
	if err != nil {
		return "", false
	}
	return t.Truncate(time.Second).Format(domain.TimestampLayout), true
}

// inferToggle alternates direction against the most recent punch of the same
// calendar day: none yet means clock-in, otherwise the complement of the last
// one. Pure alternation, not an in/out detector.
func (l *Ledger) inferToggle(ctx context.Context, employeeID, ts string) (int, error) {
	last, err := l.attendance.LastForDay(ctx, employeeID, ts[:10])
	if err != nil {
		return 0, err
	}
	if last == nil {
		return domain.ClockIn, nil
	}
	if last.Status1 == domain.ClockIn {
		return domain.ClockOut, nil
	}
	return domain.ClockIn, nil
}

// autoProvision links an unknown employee id to a host user via the
// directory, creating the enrollment record and backfilling the punch.
// Every failure here is logged and swallowed: provisioning is opportunistic.
func (l *Ledger) autoProvision(ctx context.Context, punch *domain.Attendance) {
	if l.resolver == nil {
		return
	}
	user, err := l.resolver.ResolveByField(ctx, l.field, punch.EmployeeID)
	if err != nil {
		l.logger.Warn("directory lookup failed",
			zap.String("employee_id", punch.EmployeeID),
			zap.Error(err),
		)
		return
	}
	if user == nil {
		return
	}

	userID := user.ID
	if _, err := l.employees.Upsert(ctx, punch.EmployeeID, domain.EmployeePatch{UserID: &userID}); err != nil {
		l.logger.Error("auto-provision enrollment failed",
			zap.String("employee_id", punch.EmployeeID),
			zap.Error(err),
		)
		return
	}
	if err := l.attendance.UpdateUserID(ctx, punch.ID, userID); err != nil {
		l.logger.Error("punch user backfill failed",
			zap.Int64("punch_id", punch.ID),
			zap.Error(err),
		)
		return
	}
	punch.UserID = sql.NullInt64{Int64: userID, Valid: true}
}

func codeOrDefault(v *int) int {
	if v == nil {
		return -1
	}
	return *v
}
