package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"iclock-gateway/internal/domain"

	"github.com/lib/pq"
)

type PostgresAttendanceRepo struct {
	db *sql.DB
}

func NewPostgresAttendanceRepo(db *sql.DB) *PostgresAttendanceRepo {
	return &PostgresAttendanceRepo{db: db}
}

const attendanceColumns = `
	id,
	device_name,
	device_serial_number,
	user_id,
	"table",
	stamp,
	employee_id,
	to_char(timestamp, 'YYYY-MM-DD HH24:MI:SS'),
	status1,
	status2,
	status3,
	status4,
	status5,
	created_at`

func scanAttendance(row interface{ Scan(...any) error }) (*domain.Attendance, error) {
	var a domain.Attendance
	err := row.Scan(
		&a.ID,
		&a.DeviceName,
		&a.DeviceSerialNumber,
		&a.UserID,
		&a.Table,
		&a.Stamp,
		&a.EmployeeID,
		&a.Timestamp,
		&a.Status1,
		&a.Status2,
		&a.Status3,
		&a.Status4,
		&a.Status5,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAttendanceRepo) Exists(ctx context.Context, employeeID, timestamp, deviceSerial string) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM biometric_device_attendances
			WHERE employee_id = $1 AND timestamp = $2::timestamp AND device_serial_number = $3
		)`
	var exists bool
	err := r.db.QueryRowContext(ctx, q, employeeID, timestamp, deviceSerial).Scan(&exists)
	return exists, err
}

func (r *PostgresAttendanceRepo) LastForDay(ctx context.Context, employeeID, day string) (*domain.Attendance, error) {
	q := `SELECT` + attendanceColumns + `
		FROM biometric_device_attendances
		WHERE employee_id = $1 AND timestamp::date = $2::date
		ORDER BY timestamp DESC
		LIMIT 1`
	a, err := scanAttendance(r.db.QueryRowContext(ctx, q, employeeID, day))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Insert persists the punch. The unique index on (employee_id, timestamp,
// device_serial_number) makes concurrent duplicate ingestion fail closed;
// that failure surfaces as ErrDuplicatePunch.
func (r *PostgresAttendanceRepo) Insert(ctx context.Context, a *domain.Attendance) error {
	q := `
		INSERT INTO biometric_device_attendances
			(device_name, device_serial_number, user_id, "table", stamp,
			 employee_id, timestamp, status1, status2, status3, status4, status5,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::timestamp, $8, $9, $10, $11, $12, NOW(), NOW())
		RETURNING id, created_at`
	err := r.db.QueryRowContext(ctx, q,
		a.DeviceName,
		a.DeviceSerialNumber,
		a.UserID,
		a.Table,
		a.Stamp,
		a.EmployeeID,
		a.Timestamp,
		a.Status1,
		a.Status2,
		a.Status3,
		a.Status4,
		a.Status5,
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicatePunch
		}
		return err
	}
	return nil
}

func (r *PostgresAttendanceRepo) UpdateUserID(ctx context.Context, id int64, userID int64) error {
	q := `UPDATE biometric_device_attendances SET user_id = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, q, id, userID)
	return err
}

func (r *PostgresAttendanceRepo) List(ctx context.Context, filter AttendanceFilter) ([]domain.Attendance, error) {
	q := `SELECT` + attendanceColumns + ` FROM biometric_device_attendances WHERE 1=1`
	args := []any{}

	if filter.DeviceSerial != "" {
		args = append(args, filter.DeviceSerial)
		q += fmt.Sprintf(" AND device_serial_number = $%d", len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		q += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.From != "" {
		args = append(args, filter.From)
		q += fmt.Sprintf(" AND timestamp >= $%d::timestamp", len(args))
	}
	if filter.To != "" {
		args = append(args, filter.To)
		q += fmt.Sprintf(" AND timestamp <= $%d::timestamp", len(args))
	}
	q += ` ORDER BY timestamp DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Attendance{}
	for rows.Next() {
		a, err := scanAttendance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
