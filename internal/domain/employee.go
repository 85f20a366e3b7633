package domain

import (
	"database/sql"
	"time"
)

// Employee is the enrollment record for one device-side employee identifier.
// Identifiers are device-assigned; this design treats them as globally unique
// across devices. Protocol fragments merge into the record field by field and
// never overwrite fields they do not carry.
type Employee struct {
	ID                  int64          `db:"id"`
	EmployeeID          string         `db:"employee_id"`
	UserID              sql.NullInt64  `db:"user_id"`
	CardNumber          sql.NullString `db:"card_number"`
	HasFingerprint      bool           `db:"has_fingerprint"`
	FingerprintID       sql.NullString `db:"fingerprint_id"`
	FingerprintTemplate sql.NullString `db:"fingerprint_template"`
	HasPhoto            bool           `db:"has_photo"`
	Photo               sql.NullString `db:"photo"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

// EmployeePatch carries only the fields an enrollment fragment supplied.
// Nil pointers leave the stored value untouched.
type EmployeePatch struct {
	UserID              *int64
	CardNumber          *string
	HasFingerprint      *bool
	FingerprintID       *string
	FingerprintTemplate *string
	HasPhoto            *bool
	Photo               *string
}

// ToJSON renders the enrollment record for HTTP responses. Template and photo
// blobs are reduced to their presence flags.
func (e *Employee) ToJSON() map[string]any {
	m := map[string]any{
		"id":              e.ID,
		"employee_id":     e.EmployeeID,
		"has_fingerprint": e.HasFingerprint,
		"has_photo":       e.HasPhoto,
	}
	if e.UserID.Valid {
		m["user_id"] = e.UserID.Int64
	}
	if e.CardNumber.Valid {
		m["card_number"] = e.CardNumber.String
	}
	if e.FingerprintID.Valid {
		m["fingerprint_id"] = e.FingerprintID.String
	}
	return m
}
