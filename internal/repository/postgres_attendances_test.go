package repository

import (
	"context"
	"testing"
	"time"

	"iclock-gateway/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func attendanceRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "device_name", "device_serial_number", "user_id", "table", "stamp",
		"employee_id", "timestamp", "status1", "status2", "status3", "status4",
		"status5", "created_at",
	})
}

func TestPostgresAttendanceRepo_Exists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("001", "2024-01-15 09:00:00", "DEV123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "001", "2024-01-15 09:00:00", "DEV123")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAttendanceRepo_LastForDay(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	mock.ExpectQuery(`FROM biometric_device_attendances`).
		WithArgs("001", "2024-01-15").
		WillReturnRows(attendanceRows().AddRow(
			5, "Main Entrance", "DEV123", nil, nil, nil,
			"001", "2024-01-15 09:00:00", domain.ClockIn, -1, -1, -1, -1, time.Now(),
		))

	last, err := repo.LastForDay(context.Background(), "001", "2024-01-15")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, int64(5), last.ID)
	assert.Equal(t, domain.ClockIn, last.Status1)
	assert.False(t, last.UserID.Valid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAttendanceRepo_LastForDay_None(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	mock.ExpectQuery(`FROM biometric_device_attendances`).
		WithArgs("001", "2024-01-15").
		WillReturnRows(attendanceRows())

	last, err := repo.LastForDay(context.Background(), "001", "2024-01-15")
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAttendanceRepo_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	a := &domain.Attendance{
		DeviceName:         "Main Entrance",
		DeviceSerialNumber: "DEV123",
		EmployeeID:         "001",
		Timestamp:          "2024-01-15 09:00:00",
		Status1:            domain.ClockIn,
		Status2:            -1,
		Status3:            -1,
		Status4:            -1,
		Status5:            -1,
	}

	mock.ExpectQuery(`INSERT INTO biometric_device_attendances`).
		WithArgs(a.DeviceName, a.DeviceSerialNumber, a.UserID, a.Table, a.Stamp,
			a.EmployeeID, a.Timestamp, a.Status1, a.Status2, a.Status3, a.Status4, a.Status5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(9, time.Now()))

	require.NoError(t, repo.Insert(context.Background(), a))
	assert.Equal(t, int64(9), a.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAttendanceRepo_Insert_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	mock.ExpectQuery(`INSERT INTO biometric_device_attendances`).
		WillReturnError(&pq.Error{Code: "23505"})

	a := &domain.Attendance{
		DeviceSerialNumber: "DEV123",
		EmployeeID:         "001",
		Timestamp:          "2024-01-15 09:00:00",
	}
	err = repo.Insert(context.Background(), a)
	assert.ErrorIs(t, err, ErrDuplicatePunch)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAttendanceRepo_UpdateUserID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	mock.ExpectExec(`UPDATE biometric_device_attendances SET user_id`).
		WithArgs(int64(9), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateUserID(context.Background(), 9, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAttendanceRepo_List_Filtered(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresAttendanceRepo(db)

	mock.ExpectQuery(`FROM biometric_device_attendances WHERE 1=1`).
		WithArgs("DEV123", "001", "2024-01-01 00:00:00").
		WillReturnRows(attendanceRows().AddRow(
			5, "Main Entrance", "DEV123", nil, nil, nil,
			"001", "2024-01-15 09:00:00", domain.ClockIn, -1, -1, -1, -1, time.Now(),
		))

	out, err := repo.List(context.Background(), AttendanceFilter{
		DeviceSerial: "DEV123",
		EmployeeID:   "001",
		From:         "2024-01-01 00:00:00",
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "001", out[0].EmployeeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
