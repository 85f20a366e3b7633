package repository

import (
	"context"
	"testing"
	"time"

	"iclock-gateway/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commandRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "device_serial_number", "command_id", "command",
		"employee_id", "user_id", "status", "sent_at", "executed_at", "failed_at",
		"created_at", "updated_at",
	})
}

func TestPostgresCommandsRepo_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCommandsRepo(db)

	c := &domain.Command{
		Type:               domain.CommandTypeDeleteUser,
		DeviceSerialNumber: "DEV123",
		CommandID:          "DELETEUSER-tok",
		Command:            "C:DELETEUSER-tok:DATA DELETE USERINFO PIN=001\n",
	}

	mock.ExpectQuery(`INSERT INTO biometric_commands`).
		WithArgs(c.Type, c.DeviceSerialNumber, c.CommandID, c.Command,
			c.EmployeeID, c.UserID, domain.CommandStatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(3, time.Now(), time.Now()))

	require.NoError(t, repo.Create(context.Background(), c))
	assert.Equal(t, int64(3), c.ID)
	assert.Equal(t, domain.CommandStatusPending, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommandsRepo_NextPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCommandsRepo(db)

	mock.ExpectQuery(`FROM biometric_commands`).
		WithArgs("DEV123", domain.CommandStatusPending).
		WillReturnRows(commandRows().AddRow(
			3, domain.CommandTypeDeleteUser, "DEV123", "DELETEUSER-tok",
			"C:DELETEUSER-tok:DATA DELETE USERINFO PIN=001\n",
			nil, nil, domain.CommandStatusPending, nil, nil, nil,
			time.Now(), time.Now(),
		))

	c, err := repo.NextPending(context.Background(), "DEV123")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "DELETEUSER-tok", c.CommandID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommandsRepo_NextPending_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCommandsRepo(db)

	mock.ExpectQuery(`FROM biometric_commands`).
		WithArgs("DEV123", domain.CommandStatusPending).
		WillReturnRows(commandRows())

	c, err := repo.NextPending(context.Background(), "DEV123")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommandsRepo_FindByCommandID_Missing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCommandsRepo(db)

	mock.ExpectQuery(`WHERE command_id`).
		WithArgs("CREATEUSER-nope").
		WillReturnRows(commandRows())

	c, err := repo.FindByCommandID(context.Background(), "CREATEUSER-nope")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCommandsRepo_SetStatus_StampColumns(t *testing.T) {
	cases := []struct {
		status string
		stamp  string
	}{
		{domain.CommandStatusSent, "sent_at"},
		{domain.CommandStatusExecuted, "executed_at"},
		{domain.CommandStatusFailed, "failed_at"},
	}

	for _, tc := range cases {
		t.Run(tc.status, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewPostgresCommandsRepo(db)

			at := time.Now()
			mock.ExpectExec(`UPDATE biometric_commands SET status = \$2, updated_at = NOW\(\), ` + tc.stamp).
				WithArgs(int64(3), tc.status, at).
				WillReturnResult(sqlmock.NewResult(0, 1))

			require.NoError(t, repo.SetStatus(context.Background(), 3, tc.status, at))
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresCommandsRepo_ListPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresCommandsRepo(db)

	mock.ExpectQuery(`FROM biometric_commands`).
		WithArgs("DEV123", domain.CommandStatusPending).
		WillReturnRows(commandRows().
			AddRow(1, domain.CommandTypeCreateUser, "DEV123", "CREATEUSER-a",
				"C:CREATEUSER-a:DATA USER PIN=001\tName=Jane\n",
				"001", nil, domain.CommandStatusPending, nil, nil, nil, time.Now(), time.Now()).
			AddRow(2, domain.CommandTypeQueryUser, "DEV123", "QUERYUSER-b",
				"C:QUERYUSER-b:DATA QUERY USERINFO PIN=002\n",
				nil, nil, domain.CommandStatusPending, nil, nil, nil, time.Now(), time.Now()))

	out, err := repo.ListPending(context.Background(), "DEV123")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "CREATEUSER-a", out[0].CommandID)
	assert.Equal(t, "QUERYUSER-b", out[1].CommandID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
