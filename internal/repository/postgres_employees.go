package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"iclock-gateway/internal/domain"
)

type PostgresEmployeesRepo struct {
	db *sql.DB
}

func NewPostgresEmployeesRepo(db *sql.DB) *PostgresEmployeesRepo {
	return &PostgresEmployeesRepo{db: db}
}

const employeeColumns = `
	id,
	employee_id,
	user_id,
	card_number,
	has_fingerprint,
	fingerprint_id,
	fingerprint_template,
	has_photo,
	photo,
	created_at,
	updated_at`

func scanEmployee(row interface{ Scan(...any) error }) (*domain.Employee, error) {
	var e domain.Employee
	err := row.Scan(
		&e.ID,
		&e.EmployeeID,
		&e.UserID,
		&e.CardNumber,
		&e.HasFingerprint,
		&e.FingerprintID,
		&e.FingerprintTemplate,
		&e.HasPhoto,
		&e.Photo,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *PostgresEmployeesRepo) FindByEmployeeID(ctx context.Context, employeeID string) (*domain.Employee, error) {
	q := `SELECT` + employeeColumns + ` FROM biometric_employees WHERE employee_id = $1`
	e, err := scanEmployee(r.db.QueryRowContext(ctx, q, employeeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Upsert inserts or merge-updates the enrollment row for employeeID. Only the
// columns present in patch appear in the statement, so a card fragment never
// clears fingerprint fields and vice versa.
func (r *PostgresEmployeesRepo) Upsert(ctx context.Context, employeeID string, patch domain.EmployeePatch) (*domain.Employee, error) {
	cols := []string{"employee_id"}
	args := []any{employeeID}

	add := func(col string, v any) {
		cols = append(cols, col)
		args = append(args, v)
	}
	if patch.UserID != nil {
		add("user_id", *patch.UserID)
	}
	if patch.CardNumber != nil {
		add("card_number", *patch.CardNumber)
	}
	if patch.HasFingerprint != nil {
		add("has_fingerprint", *patch.HasFingerprint)
	}
	if patch.FingerprintID != nil {
		add("fingerprint_id", *patch.FingerprintID)
	}
	if patch.FingerprintTemplate != nil {
		add("fingerprint_template", *patch.FingerprintTemplate)
	}
	if patch.HasPhoto != nil {
		add("has_photo", *patch.HasPhoto)
	}
	if patch.Photo != nil {
		add("photo", *patch.Photo)
	}

	placeholders := make([]string, len(cols))
	updates := []string{}
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "employee_id" {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}
	updates = append(updates, "updated_at = NOW()")

	q := fmt.Sprintf(`
		INSERT INTO biometric_employees (%s, created_at, updated_at)
		VALUES (%s, NOW(), NOW())
		ON CONFLICT (employee_id)
		DO UPDATE SET %s
		RETURNING`+employeeColumns,
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(updates, ", "),
	)

	return scanEmployee(r.db.QueryRowContext(ctx, q, args...))
}
