package repository

import (
	"context"
	"database/sql"
	"time"

	"iclock-gateway/internal/domain"
)

type PostgresDevicesRepo struct {
	db *sql.DB
}

func NewPostgresDevicesRepo(db *sql.DB) *PostgresDevicesRepo {
	return &PostgresDevicesRepo{db: db}
}

const deviceColumns = `
	id,
	device_name,
	serial_number,
	device_ip,
	status,
	last_online,
	created_at,
	updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*domain.Device, error) {
	var d domain.Device
	err := row.Scan(
		&d.ID,
		&d.DeviceName,
		&d.SerialNumber,
		&d.DeviceIP,
		&d.Status,
		&d.LastOnline,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *PostgresDevicesRepo) FindBySerial(ctx context.Context, serial string) (*domain.Device, error) {
	q := `SELECT` + deviceColumns + ` FROM biometric_devices WHERE serial_number = $1`
	d, err := scanDevice(r.db.QueryRowContext(ctx, q, domain.NormalizeSerial(serial)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *PostgresDevicesRepo) Create(ctx context.Context, d *domain.Device) error {
	if d.Status == "" {
		d.Status = domain.DeviceStatusPending
	}
	d.SerialNumber = domain.NormalizeSerial(d.SerialNumber)
	q := `
		INSERT INTO biometric_devices (device_name, serial_number, device_ip, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, q, d.DeviceName, d.SerialNumber, d.DeviceIP, d.Status).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

func (r *PostgresDevicesRepo) List(ctx context.Context) ([]domain.Device, error) {
	q := `SELECT` + deviceColumns + ` FROM biometric_devices ORDER BY device_name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PostgresDevicesRepo) MarkOnline(ctx context.Context, serial, ip string, at time.Time) error {
	// COALESCE keeps the stored address when the request carried none.
	q := `
		UPDATE biometric_devices
		SET status = $2,
		    device_ip = COALESCE(NULLIF($3, ''), device_ip),
		    last_online = $4,
		    updated_at = NOW()
		WHERE serial_number = $1`
	_, err := r.db.ExecContext(ctx, q, domain.NormalizeSerial(serial), domain.DeviceStatusOnline, ip, at)
	return err
}

func (r *PostgresDevicesRepo) MarkOffline(ctx context.Context, serial string) error {
	q := `
		UPDATE biometric_devices
		SET status = $2, updated_at = NOW()
		WHERE serial_number = $1`
	_, err := r.db.ExecContext(ctx, q, domain.NormalizeSerial(serial), domain.DeviceStatusOffline)
	return err
}
