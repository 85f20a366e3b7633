package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"iclock-gateway/internal/domain"
)

type PostgresCommandsRepo struct {
	db *sql.DB
}

func NewPostgresCommandsRepo(db *sql.DB) *PostgresCommandsRepo {
	return &PostgresCommandsRepo{db: db}
}

const commandColumns = `
	id,
	type,
	device_serial_number,
	command_id,
	command,
	employee_id,
	user_id,
	status,
	sent_at,
	executed_at,
	failed_at,
	created_at,
	updated_at`

func scanCommand(row interface{ Scan(...any) error }) (*domain.Command, error) {
	var c domain.Command
	err := row.Scan(
		&c.ID,
		&c.Type,
		&c.DeviceSerialNumber,
		&c.CommandID,
		&c.Command,
		&c.EmployeeID,
		&c.UserID,
		&c.Status,
		&c.SentAt,
		&c.ExecutedAt,
		&c.FailedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *PostgresCommandsRepo) Create(ctx context.Context, c *domain.Command) error {
	if c.Status == "" {
		c.Status = domain.CommandStatusPending
	}
	q := `
		INSERT INTO biometric_commands
			(type, device_serial_number, command_id, command, employee_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q,
		c.Type,
		c.DeviceSerialNumber,
		c.CommandID,
		c.Command,
		c.EmployeeID,
		c.UserID,
		c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *PostgresCommandsRepo) NextPending(ctx context.Context, deviceSerial string) (*domain.Command, error) {
	q := `SELECT` + commandColumns + `
		FROM biometric_commands
		WHERE device_serial_number = $1 AND status = $2
		ORDER BY created_at ASC, id ASC
		LIMIT 1`
	c, err := scanCommand(r.db.QueryRowContext(ctx, q, deviceSerial, domain.CommandStatusPending))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCommandsRepo) FindByCommandID(ctx context.Context, commandID string) (*domain.Command, error) {
	q := `SELECT` + commandColumns + ` FROM biometric_commands WHERE command_id = $1`
	c, err := scanCommand(r.db.QueryRowContext(ctx, q, commandID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresCommandsRepo) SetStatus(ctx context.Context, id int64, status string, at time.Time) error {
	var stampCol string
	switch status {
	case domain.CommandStatusSent:
		stampCol = "sent_at"
	case domain.CommandStatusExecuted:
		stampCol = "executed_at"
	case domain.CommandStatusFailed:
		stampCol = "failed_at"
	}

	q := `UPDATE biometric_commands SET status = $2, updated_at = NOW()`
	args := []any{id, status}
	if stampCol != "" {
		args = append(args, at)
		q += fmt.Sprintf(", %s = $%d", stampCol, len(args))
	}
	q += ` WHERE id = $1`

	_, err := r.db.ExecContext(ctx, q, args...)
	return err
}

func (r *PostgresCommandsRepo) ListPending(ctx context.Context, deviceSerial string) ([]domain.Command, error) {
	q := `SELECT` + commandColumns + `
		FROM biometric_commands
		WHERE device_serial_number = $1 AND status = $2
		ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, deviceSerial, domain.CommandStatusPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Command{}
	for rows.Next() {
		c, err := scanCommand(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
