package repository

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"iclock-gateway/internal/domain"
)

// Memory repositories back the gateway when DB_ENABLED=false, so a plain
// `go run` still talks to real terminals. They hold the same contracts as the
// Postgres repos, including the duplicate-punch rejection.

type MemoryDevicesRepo struct {
	mu      sync.RWMutex
	nextID  int64
	devices map[string]*domain.Device // keyed by upper-cased serial
}

func NewMemoryDevicesRepo() *MemoryDevicesRepo {
	return &MemoryDevicesRepo{devices: map[string]*domain.Device{}}
}

func (r *MemoryDevicesRepo) FindBySerial(_ context.Context, serial string) (*domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.devices[domain.NormalizeSerial(serial)]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (r *MemoryDevicesRepo) Create(_ context.Context, d *domain.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	d.ID = r.nextID
	if d.Status == "" {
		d.Status = domain.DeviceStatusPending
	}
	d.SerialNumber = domain.NormalizeSerial(d.SerialNumber)
	now := time.Now()
	d.CreatedAt = now
	d.UpdatedAt = now
	cp := *d
	r.devices[d.SerialNumber] = &cp
	return nil
}

func (r *MemoryDevicesRepo) List(_ context.Context) ([]domain.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Device{}
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceName < out[j].DeviceName })
	return out, nil
}

func (r *MemoryDevicesRepo) MarkOnline(_ context.Context, serial, ip string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[domain.NormalizeSerial(serial)]
	if !ok {
		return nil
	}
	d.Status = domain.DeviceStatusOnline
	if ip != "" {
		d.DeviceIP = sql.NullString{String: ip, Valid: true}
	}
	d.LastOnline = sql.NullTime{Time: at, Valid: true}
	d.UpdatedAt = time.Now()
	return nil
}

func (r *MemoryDevicesRepo) MarkOffline(_ context.Context, serial string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[domain.NormalizeSerial(serial)]
	if !ok {
		return nil
	}
	d.Status = domain.DeviceStatusOffline
	d.UpdatedAt = time.Now()
	return nil
}

type MemoryEmployeesRepo struct {
	mu        sync.RWMutex
	nextID    int64
	employees map[string]*domain.Employee // keyed by employee id
}

func NewMemoryEmployeesRepo() *MemoryEmployeesRepo {
	return &MemoryEmployeesRepo{employees: map[string]*domain.Employee{}}
}

func (r *MemoryEmployeesRepo) FindByEmployeeID(_ context.Context, employeeID string) (*domain.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.employees[employeeID]
	if !ok {
		return nil, nil
	}
	cp := *e
	return &cp, nil
}

func (r *MemoryEmployeesRepo) Upsert(_ context.Context, employeeID string, patch domain.EmployeePatch) (*domain.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.employees[employeeID]
	if !ok {
		r.nextID++
		e = &domain.Employee{ID: r.nextID, EmployeeID: employeeID, CreatedAt: time.Now()}
		r.employees[employeeID] = e
	}
	if patch.UserID != nil {
		e.UserID = sql.NullInt64{Int64: *patch.UserID, Valid: true}
	}
	if patch.CardNumber != nil {
		e.CardNumber = sql.NullString{String: *patch.CardNumber, Valid: true}
	}
	if patch.HasFingerprint != nil {
		e.HasFingerprint = *patch.HasFingerprint
	}
	if patch.FingerprintID != nil {
		e.FingerprintID = sql.NullString{String: *patch.FingerprintID, Valid: true}
	}
	if patch.FingerprintTemplate != nil {
		e.FingerprintTemplate = sql.NullString{String: *patch.FingerprintTemplate, Valid: true}
	}
	if patch.HasPhoto != nil {
		e.HasPhoto = *patch.HasPhoto
	}
	if patch.Photo != nil {
		e.Photo = sql.NullString{String: *patch.Photo, Valid: true}
	}
	e.UpdatedAt = time.Now()
	cp := *e
	return &cp, nil
}

type MemoryAttendanceRepo struct {
	mu      sync.RWMutex
	nextID  int64
	punches []*domain.Attendance
	seen    map[string]bool // employee|timestamp|serial
}

func NewMemoryAttendanceRepo() *MemoryAttendanceRepo {
	return &MemoryAttendanceRepo{seen: map[string]bool{}}
}

func punchKey(employeeID, timestamp, serial string) string {
	return employeeID + "|" + timestamp + "|" + serial
}

func (r *MemoryAttendanceRepo) Exists(_ context.Context, employeeID, timestamp, deviceSerial string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.seen[punchKey(employeeID, timestamp, deviceSerial)], nil
}

func (r *MemoryAttendanceRepo) LastForDay(_ context.Context, employeeID, day string) (*domain.Attendance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *domain.Attendance
	for _, p := range r.punches {
		if p.EmployeeID != employeeID || p.Day() != day {
			continue
		}
		if last == nil || p.Timestamp > last.Timestamp {
			last = p
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (r *MemoryAttendanceRepo) Insert(_ context.Context, a *domain.Attendance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := punchKey(a.EmployeeID, a.Timestamp, a.DeviceSerialNumber)
	if r.seen[key] {
		return ErrDuplicatePunch
	}
	r.nextID++
	a.ID = r.nextID
	a.CreatedAt = time.Now()
	cp := *a
	r.punches = append(r.punches, &cp)
	r.seen[key] = true
	return nil
}

func (r *MemoryAttendanceRepo) UpdateUserID(_ context.Context, id int64, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.punches {
		if p.ID == id {
			p.UserID = sql.NullInt64{Int64: userID, Valid: true}
		}
	}
	return nil
}

func (r *MemoryAttendanceRepo) List(_ context.Context, filter AttendanceFilter) ([]domain.Attendance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Attendance{}
	for _, p := range r.punches {
		if filter.DeviceSerial != "" && p.DeviceSerialNumber != filter.DeviceSerial {
			continue
		}
		if filter.EmployeeID != "" && p.EmployeeID != filter.EmployeeID {
			continue
		}
		if filter.From != "" && p.Timestamp < filter.From {
			continue
		}
		if filter.To != "" && p.Timestamp > filter.To {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out, nil
}

type MemoryCommandsRepo struct {
	mu       sync.RWMutex
	nextID   int64
	commands []*domain.Command
}

func NewMemoryCommandsRepo() *MemoryCommandsRepo {
	return &MemoryCommandsRepo{}
}

func (r *MemoryCommandsRepo) Create(_ context.Context, c *domain.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	if c.Status == "" {
		c.Status = domain.CommandStatusPending
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	cp := *c
	r.commands = append(r.commands, &cp)
	return nil
}

func (r *MemoryCommandsRepo) NextPending(_ context.Context, deviceSerial string) (*domain.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	// commands is append-only, so slice order is creation order
	for _, c := range r.commands {
		if c.DeviceSerialNumber == deviceSerial && c.Status == domain.CommandStatusPending {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryCommandsRepo) FindByCommandID(_ context.Context, commandID string) (*domain.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.commands {
		if c.CommandID == commandID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *MemoryCommandsRepo) SetStatus(_ context.Context, id int64, status string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.commands {
		if c.ID != id {
			continue
		}
		c.Status = status
		c.UpdatedAt = time.Now()
		stamp := sql.NullTime{Time: at, Valid: true}
		switch status {
		case domain.CommandStatusSent:
			c.SentAt = stamp
		case domain.CommandStatusExecuted:
			c.ExecutedAt = stamp
		case domain.CommandStatusFailed:
			c.FailedAt = stamp
		}
	}
	return nil
}

func (r *MemoryCommandsRepo) ListPending(_ context.Context, deviceSerial string) ([]domain.Command, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []domain.Command{}
	for _, c := range r.commands {
		if c.DeviceSerialNumber == deviceSerial && c.Status == domain.CommandStatusPending {
			out = append(out, *c)
		}
	}
	return out, nil
}
