package service

import (
	"context"
	"testing"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeResolver struct {
	users map[string]*ResolvedUser
	calls int
}

func (f *fakeResolver) ResolveByField(_ context.Context, _, value string) (*ResolvedUser, error) {
	f.calls++
	return f.users[value], nil
}

type recordingSink struct {
	punches []domain.Attendance
}

func (s *recordingSink) PunchRecorded(_ context.Context, punch domain.Attendance) {
	s.punches = append(s.punches, punch)
}

func testDevice() *domain.Device {
	return &domain.Device{
		ID:           1,
		DeviceName:   "Main Entrance",
		SerialNumber: "DEV123",
		Status:       domain.DeviceStatusOnline,
	}
}

func newTestLedger(t *testing.T, opts LedgerOptions) (*Ledger, *repository.MemoryAttendanceRepo, *repository.MemoryEmployeesRepo) {
	t.Helper()
	attendance := repository.NewMemoryAttendanceRepo()
	employees := repository.NewMemoryEmployeesRepo()
	if opts.Timezone == "" {
		opts.Timezone = "UTC"
	}
	return NewLedger(attendance, employees, opts, zap.NewNop()), attendance, employees
}

func TestLedger_Ingest_ToggleAlternation(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})

	lines := []string{
		"001\t2024-01-15 09:00:00\t0",
		"001\t2024-01-15 17:30:00\t1",
	}
	accepted := ledger.Ingest(context.Background(), testDevice(), lines, RequestMeta{})

	require.Len(t, accepted, 2)
	assert.Equal(t, domain.ClockIn, accepted[0].Status1)
	assert.Equal(t, domain.ClockOut, accepted[1].Status1)
}

func TestLedger_Ingest_ToggleResetsPerDay(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})

	lines := []string{
		"001\t2024-01-15 09:00:00\t0",
		"001\t2024-01-15 17:30:00\t0",
		"001\t2024-01-16 08:45:00\t0",
	}
	accepted := ledger.Ingest(context.Background(), testDevice(), lines, RequestMeta{})

	require.Len(t, accepted, 3)
	assert.Equal(t, domain.ClockIn, accepted[0].Status1)
	assert.Equal(t, domain.ClockOut, accepted[1].Status1)
	// new calendar day starts over at clock-in
	assert.Equal(t, domain.ClockIn, accepted[2].Status1)
}

func TestLedger_Ingest_DeduplicatesResends(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})
	device := testDevice()

	first := ledger.Ingest(context.Background(), device, []string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})
	require.Len(t, first, 1)

	// device resends the same record after a flaky response
	second := ledger.Ingest(context.Background(), device, []string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})
	assert.Empty(t, second)
}

func TestLedger_Ingest_SamePunchDifferentDevice(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})

	other := testDevice()
	other.SerialNumber = "DEV456"

	first := ledger.Ingest(context.Background(), testDevice(), []string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})
	second := ledger.Ingest(context.Background(), other, []string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	// the second device's punch still alternates against the same day
	assert.Equal(t, domain.ClockOut, second[0].Status1)
}

func TestLedger_Ingest_DropsBadTimestamps(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})

	lines := []string{
		"001\t0\t0",
		"001\tgarbage\t0",
		"001\t2024-01-15 09:00:00\t0",
	}
	accepted := ledger.Ingest(context.Background(), testDevice(), lines, RequestMeta{})

	require.Len(t, accepted, 1)
	assert.Equal(t, "2024-01-15 09:00:00", accepted[0].Timestamp)
}

func TestLedger_Ingest_OptionalCodesDefault(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})

	accepted := ledger.Ingest(context.Background(), testDevice(),
		[]string{"001\t2024-01-15 09:00:00\t0\t5"}, RequestMeta{})

	require.Len(t, accepted, 1)
	assert.Equal(t, 5, accepted[0].Status2)
	assert.Equal(t, -1, accepted[0].Status3)
	assert.Equal(t, -1, accepted[0].Status4)
	assert.Equal(t, -1, accepted[0].Status5)
}

func TestLedger_Ingest_RequestMeta(t *testing.T) {
	ledger, _, _ := newTestLedger(t, LedgerOptions{})

	accepted := ledger.Ingest(context.Background(), testDevice(),
		[]string{"001\t2024-01-15 09:00:00\t0"},
		RequestMeta{Table: "ATTLOG", Stamp: "9999"})

	require.Len(t, accepted, 1)
	assert.Equal(t, "ATTLOG", accepted[0].Table.String)
	assert.Equal(t, "9999", accepted[0].Stamp.String)
}

func TestLedger_Ingest_KnownEnrollmentBindsUserID(t *testing.T) {
	ledger, _, employees := newTestLedger(t, LedgerOptions{})

	userID := int64(42)
	_, err := employees.Upsert(context.Background(), "001", domain.EmployeePatch{UserID: &userID})
	require.NoError(t, err)

	accepted := ledger.Ingest(context.Background(), testDevice(),
		[]string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})

	require.Len(t, accepted, 1)
	require.True(t, accepted[0].UserID.Valid)
	assert.Equal(t, int64(42), accepted[0].UserID.Int64)
}

func TestLedger_Ingest_AutoProvision(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*ResolvedUser{
		"001": {ID: 7, Name: "Jane"},
	}}
	ledger, attendance, employees := newTestLedger(t, LedgerOptions{
		AutoCreateEmployees: true,
		Resolver:            resolver,
	})

	accepted := ledger.Ingest(context.Background(), testDevice(),
		[]string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})

	require.Len(t, accepted, 1)
	require.True(t, accepted[0].UserID.Valid)
	assert.Equal(t, int64(7), accepted[0].UserID.Int64)

	enrollment, err := employees.FindByEmployeeID(context.Background(), "001")
	require.NoError(t, err)
	require.NotNil(t, enrollment)
	assert.Equal(t, int64(7), enrollment.UserID.Int64)

	stored, err := attendance.List(context.Background(), repository.AttendanceFilter{EmployeeID: "001"})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, int64(7), stored[0].UserID.Int64)
}

func TestLedger_Ingest_AutoProvisionUnresolved(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*ResolvedUser{}}
	ledger, _, employees := newTestLedger(t, LedgerOptions{
		AutoCreateEmployees: true,
		Resolver:            resolver,
	})

	accepted := ledger.Ingest(context.Background(), testDevice(),
		[]string{"999\t2024-01-15 09:00:00\t0"}, RequestMeta{})

	// punch is still recorded, just unlinked
	require.Len(t, accepted, 1)
	assert.False(t, accepted[0].UserID.Valid)

	enrollment, err := employees.FindByEmployeeID(context.Background(), "999")
	require.NoError(t, err)
	assert.Nil(t, enrollment)
}

func TestLedger_Ingest_AutoProvisionDisabled(t *testing.T) {
	resolver := &fakeResolver{users: map[string]*ResolvedUser{
		"001": {ID: 7, Name: "Jane"},
	}}
	ledger, _, _ := newTestLedger(t, LedgerOptions{
		AutoCreateEmployees: false,
		Resolver:            resolver,
	})

	ledger.Ingest(context.Background(), testDevice(),
		[]string{"001\t2024-01-15 09:00:00\t0"}, RequestMeta{})

	assert.Zero(t, resolver.calls)
}

func TestLedger_Ingest_NotifiesSink(t *testing.T) {
	sink := &recordingSink{}
	ledger, _, _ := newTestLedger(t, LedgerOptions{Sink: sink})
	device := testDevice()

	ledger.Ingest(context.Background(), device, []string{
		"001\t2024-01-15 09:00:00\t0",
		"001\t2024-01-15 09:00:00\t0",
		"002\t2024-01-15 09:05:00\t0",
	}, RequestMeta{})

	// duplicates never reach the sink
	require.Len(t, sink.punches, 2)
	assert.Equal(t, "001", sink.punches[0].EmployeeID)
	assert.Equal(t, "002", sink.punches[1].EmployeeID)
}
