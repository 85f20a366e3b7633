package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/protocol"
	"iclock-gateway/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// driftTolerance is how far a device clock may drift from server time before
// a SYNCTIME command is queued.
const driftTolerance = 5 * time.Minute

// CommandQueue owns the command lifecycle: pending -> sent -> executed or
// failed. Sent is only reachable by the device actually polling; executed
// and failed only by a result report.
type CommandQueue struct {
	commands   repository.CommandsRepo
	employees  repository.EmployeesRepo
	location   *time.Location
	autoCreate bool
	logger     *zap.Logger
}

type CommandQueueOptions struct {
	// Timezone the devices keep their clocks in; drift checks and SYNCTIME
	// payloads are wall-clock in this zone, like the ledger's timestamps.
	Timezone            string
	AutoCreateEmployees bool
}

func NewCommandQueue(commands repository.CommandsRepo, employees repository.EmployeesRepo, opts CommandQueueOptions, logger *zap.Logger) *CommandQueue {
	loc, err := time.LoadLocation(opts.Timezone)
	if err != nil {
		logger.Warn("invalid timezone, falling back to UTC", zap.String("timezone", opts.Timezone), zap.Error(err))
		loc = time.UTC
	}
	return &CommandQueue{
		commands:   commands,
		employees:  employees,
		location:   loc,
		autoCreate: opts.AutoCreateEmployees,
		logger:     logger,
	}
}

// Enqueue stores a literal command for a device, status pending.
func (q *CommandQueue) Enqueue(ctx context.Context, cmdType, deviceSerial, commandID, commandText string, employeeID string, userID *int64) (*domain.Command, error) {
	cmd := &domain.Command{
		Type:               cmdType,
		DeviceSerialNumber: domain.NormalizeSerial(deviceSerial),
		CommandID:          commandID,
		Command:            commandText,
		Status:             domain.CommandStatusPending,
	}
	if employeeID != "" {
		cmd.EmployeeID = sql.NullString{String: employeeID, Valid: true}
	}
	if userID != nil {
		cmd.UserID = sql.NullInt64{Int64: *userID, Valid: true}
	}
	if err := q.commands.Create(ctx, cmd); err != nil {
		return nil, fmt.Errorf("enqueue command: %w", err)
	}

	q.logger.Info("command queued",
		zap.String("serial_number", cmd.DeviceSerialNumber),
		zap.String("command_id", cmd.CommandID),
		zap.String("type", cmd.Type),
	)
	return cmd, nil
}

// QueueCreateUser queues provisioning of a user on the device.
func (q *CommandQueue) QueueCreateUser(ctx context.Context, deviceSerial, pin, name string, userID *int64) (*domain.Command, error) {
	commandID := protocol.BuildCommandID(domain.CommandTypeCreateUser, uuid.NewString())
	text := protocol.CreateUserCommand(commandID, pin, name)
	return q.Enqueue(ctx, domain.CommandTypeCreateUser, deviceSerial, commandID, text, pin, userID)
}

// QueueDeleteUser queues removal of a user from the device.
func (q *CommandQueue) QueueDeleteUser(ctx context.Context, deviceSerial, pin string) (*domain.Command, error) {
	commandID := protocol.BuildCommandID(domain.CommandTypeDeleteUser, uuid.NewString())
	text := protocol.DeleteUserCommand(commandID, pin)
	return q.Enqueue(ctx, domain.CommandTypeDeleteUser, deviceSerial, commandID, text, pin, nil)
}

// QueueQueryUser queues a user info query on the device.
func (q *CommandQueue) QueueQueryUser(ctx context.Context, deviceSerial, pin string) (*domain.Command, error) {
	commandID := protocol.BuildCommandID(domain.CommandTypeQueryUser, uuid.NewString())
	text := protocol.QueryUserCommand(commandID, pin)
	return q.Enqueue(ctx, domain.CommandTypeQueryUser, deviceSerial, commandID, text, "", nil)
}

// QueueTimeSync queues a clock correction for the device. The payload is
// wall-clock in the configured zone, which is what the device displays.
func (q *CommandQueue) QueueTimeSync(ctx context.Context, device *domain.Device) (*domain.Command, error) {
	now := time.Now()
	token := fmt.Sprintf("%s-%d", device.SerialNumber, now.Unix())
	commandID := protocol.BuildCommandID(domain.CommandTypeSyncTime, token)
	text := protocol.SyncTimeCommand(now.In(q.location))
	return q.Enqueue(ctx, domain.CommandTypeSyncTime, device.SerialNumber, commandID, text, "", nil)
}

// CheckTimeDrift compares a device-reported timestamp against server time and
// queues a SYNCTIME command when the drift exceeds the tolerance. An
// unparsable timestamp skips the check; drift correction is best-effort.
func (q *CommandQueue) CheckTimeDrift(ctx context.Context, device *domain.Device, deviceTimestamp string) {
	if deviceTimestamp == "" {
		return
	}
	// device timestamps are wall-clock in the configured zone
	deviceTime, err := time.ParseInLocation(domain.TimestampLayout, deviceTimestamp, q.location)
	if err != nil {
		q.logger.Debug("unparsable device timestamp, drift check skipped",
			zap.String("serial_number", device.SerialNumber),
			zap.String("timestamp", deviceTimestamp),
		)
		return
	}

	drift := time.Since(deviceTime)
	if drift < 0 {
		drift = -drift
	}
	if drift <= driftTolerance {
		return
	}

	if _, err := q.QueueTimeSync(ctx, device); err != nil {
		q.logger.Error("failed to queue time sync",
			zap.String("serial_number", device.SerialNumber),
			zap.Error(err),
		)
		return
	}
	q.logger.Info("time drift detected, sync command queued",
		zap.String("serial_number", device.SerialNumber),
		zap.Duration("drift", drift),
	)
}

// NextPending returns the oldest pending command for the device, or nil.
func (q *CommandQueue) NextPending(ctx context.Context, deviceSerial string) (*domain.Command, error) {
	return q.commands.NextPending(ctx, domain.NormalizeSerial(deviceSerial))
}

// MarkSent transitions pending -> sent and stamps sent_at. A second call
// simply re-stamps.
func (q *CommandQueue) MarkSent(ctx context.Context, cmd *domain.Command) error {
	if err := q.commands.SetStatus(ctx, cmd.ID, domain.CommandStatusSent, time.Now()); err != nil {
		return fmt.Errorf("mark command sent: %w", err)
	}
	cmd.Status = domain.CommandStatusSent
	return nil
}

// ReportResult applies a device result report. Unknown command ids are a
// no-op. Return code "0" means executed; anything else failed. A report for
// a command already terminal re-applies the terminal state (last-write-wins).
func (q *CommandQueue) ReportResult(ctx context.Context, commandID, returnCode string) error {
	cmd, err := q.commands.FindByCommandID(ctx, commandID)
	if err != nil {
		return fmt.Errorf("find command %q: %w", commandID, err)
	}
	if cmd == nil {
		return nil
	}

	now := time.Now()
	if returnCode != "0" {
		q.logger.Warn("command execution failed",
			zap.String("command_id", commandID),
			zap.String("return_code", returnCode),
		)
		return q.commands.SetStatus(ctx, cmd.ID, domain.CommandStatusFailed, now)
	}

	if cmd.Type == domain.CommandTypeCreateUser {
		q.provisionFromCreateUser(ctx, cmd)
	}
	return q.commands.SetStatus(ctx, cmd.ID, domain.CommandStatusExecuted, now)
}

// provisionFromCreateUser creates the enrollment record once the device has
// confirmed the user exists on it, binding the command's host user id.
func (q *CommandQueue) provisionFromCreateUser(ctx context.Context, cmd *domain.Command) {
	if !q.autoCreate || !cmd.EmployeeID.Valid {
		return
	}
	existing, err := q.employees.FindByEmployeeID(ctx, cmd.EmployeeID.String)
	if err != nil {
		q.logger.Error("enrollment lookup failed",
			zap.String("employee_id", cmd.EmployeeID.String),
			zap.Error(err),
		)
		return
	}
	if existing != nil {
		return
	}

	var patch domain.EmployeePatch
	if cmd.UserID.Valid {
		userID := cmd.UserID.Int64
		patch.UserID = &userID
	}
	if _, err := q.employees.Upsert(ctx, cmd.EmployeeID.String, patch); err != nil {
		q.logger.Error("enrollment create from command failed",
			zap.String("employee_id", cmd.EmployeeID.String),
			zap.Error(err),
		)
	}
}

// ListPending returns all pending commands for the device in queue order.
func (q *CommandQueue) ListPending(ctx context.Context, deviceSerial string) ([]domain.Command, error) {
	return q.commands.ListPending(ctx, domain.NormalizeSerial(deviceSerial))
}
