package domain

import (
	"database/sql"
	"time"
)

// Command types understood by the terminals.
const (
	CommandTypeCreateUser = "CREATEUSER"
	CommandTypeDeleteUser = "DELETEUSER"
	CommandTypeQueryUser  = "QUERYUSER"
	CommandTypeSyncTime   = "SYNCTIME"
)

// Command lifecycle: pending -> sent -> executed | failed. A command reaches
// sent only by the device actually polling it; executed and failed are
// terminal but a late result report re-applies them (last-write-wins).
const (
	CommandStatusPending  = "pending"
	CommandStatusSent     = "sent"
	CommandStatusExecuted = "executed"
	CommandStatusFailed   = "failed"
)

// Command is one administrative instruction queued for a device.
type Command struct {
	ID                 int64          `db:"id"`
	Type               string         `db:"type"`
	DeviceSerialNumber string         `db:"device_serial_number"`
	CommandID          string         `db:"command_id"` // {TYPE}-{token}, protocol-unique
	Command            string         `db:"command"`    // literal text sent to the device
	EmployeeID         sql.NullString `db:"employee_id"`
	UserID             sql.NullInt64  `db:"user_id"`
	Status             string         `db:"status"`
	SentAt             sql.NullTime   `db:"sent_at"`
	ExecutedAt         sql.NullTime   `db:"executed_at"`
	FailedAt           sql.NullTime   `db:"failed_at"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

func (c *Command) IsPending() bool  { return c.Status == CommandStatusPending }
func (c *Command) IsExecuted() bool { return c.Status == CommandStatusExecuted }
func (c *Command) IsFailed() bool   { return c.Status == CommandStatusFailed }

// ToJSON renders the command for HTTP responses.
func (c *Command) ToJSON() map[string]any {
	m := map[string]any{
		"id":                   c.ID,
		"type":                 c.Type,
		"device_serial_number": c.DeviceSerialNumber,
		"command_id":           c.CommandID,
		"command":              c.Command,
		"status":               c.Status,
	}
	if c.EmployeeID.Valid {
		m["employee_id"] = c.EmployeeID.String
	}
	if c.UserID.Valid {
		m["user_id"] = c.UserID.Int64
	}
	if c.SentAt.Valid {
		m["sent_at"] = c.SentAt.Time.Format(time.RFC3339)
	}
	if c.ExecutedAt.Valid {
		m["executed_at"] = c.ExecutedAt.Time.Format(time.RFC3339)
	}
	if c.FailedAt.Valid {
		m["failed_at"] = c.FailedAt.Time.Format(time.RFC3339)
	}
	return m
}
