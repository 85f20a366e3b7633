package domain

import (
	"database/sql"
	"strings"
	"time"
)

// Device statuses. A device row is created by an administrator; the protocol
// flow only ever moves a device to online and refreshes its address.
const (
	DeviceStatusPending      = "pending"
	DeviceStatusOnline       = "online"
	DeviceStatusOffline      = "offline"
	DeviceStatusUnauthorized = "unauthorized"
	DeviceStatusCommunicated = "communicated"
)

// Device is one registered terminal, identified by its serial number.
type Device struct {
	ID           int64          `db:"id"`
	DeviceName   string         `db:"device_name"`
	SerialNumber string         `db:"serial_number"` // stored upper-case
	DeviceIP     sql.NullString `db:"device_ip"`
	Status       string         `db:"status"`
	LastOnline   sql.NullTime   `db:"last_online"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// NormalizeSerial upper-cases a device serial; lookups are case-insensitive.
func NormalizeSerial(sn string) string {
	return strings.ToUpper(strings.TrimSpace(sn))
}

// IsOnline reports whether the device last contacted us successfully.
func (d *Device) IsOnline() bool {
	return d.Status == DeviceStatusOnline
}

// ToJSON renders the device for HTTP responses.
func (d *Device) ToJSON() map[string]any {
	m := map[string]any{
		"id":            d.ID,
		"device_name":   d.DeviceName,
		"serial_number": d.SerialNumber,
		"status":        d.Status,
	}
	if d.DeviceIP.Valid {
		m["device_ip"] = d.DeviceIP.String
	}
	if d.LastOnline.Valid {
		m["last_online"] = d.LastOnline.Time.Format(time.RFC3339)
	}
	return m
}
