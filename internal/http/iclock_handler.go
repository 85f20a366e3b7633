package httpapi

import (
	"io"
	"net/http"
	"time"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/protocol"
	"iclock-gateway/internal/service"

	"go.uber.org/zap"
)

// Device-facing response strings. Terminals match these literally; the
// protocol never signals richer errors.
const (
	respOK             = "OK"
	respMissingSN      = "ERROR: Missing device SN"
	respDeviceNotFound = "Device not found"
)

// IClockHandler orchestrates the protocol entry points against the registry,
// ledger, enrollment recorder, and command queue. Every handler validates the
// device serial before touching any other component.
type IClockHandler struct {
	registry   *service.Registry
	ledger     *service.Ledger
	enrollment *service.Enrollment
	queue      *service.CommandQueue
	timezone   string
	logData    bool // attendance payload logging toggle
	logCmds    bool // device command logging toggle
	logger     *zap.Logger
}

type IClockOptions struct {
	Timezone          string
	LogAttendanceData bool
	LogDeviceCommands bool
}

func NewIClockHandler(
	registry *service.Registry,
	ledger *service.Ledger,
	enrollment *service.Enrollment,
	queue *service.CommandQueue,
	opts IClockOptions,
	logger *zap.Logger,
) *IClockHandler {
	return &IClockHandler{
		registry:   registry,
		ledger:     ledger,
		enrollment: enrollment,
		queue:      queue,
		timezone:   opts.Timezone,
		logData:    opts.LogAttendanceData,
		logCmds:    opts.LogDeviceCommands,
		logger:     logger,
	}
}

// lookupDevice validates the SN query parameter and resolves the device.
// Writes the protocol error response itself and returns nil when the request
// must not proceed.
func (h *IClockHandler) lookupDevice(w http.ResponseWriter, r *http.Request) *domain.Device {
	sn := domain.NormalizeSerial(r.URL.Query().Get("SN"))
	if sn == "" {
		h.logger.Warn("missing device SN", zap.String("path", r.URL.Path))
		writeDevice(w, http.StatusBadRequest, respMissingSN)
		return nil
	}

	device, err := h.registry.Lookup(r.Context(), sn)
	if err != nil {
		h.logger.Error("device lookup failed", zap.String("serial_number", sn), zap.Error(err))
		writeDevice(w, http.StatusNotFound, respDeviceNotFound)
		return nil
	}
	if device == nil {
		h.logger.Warn("device not found", zap.String("serial_number", sn))
		writeDevice(w, http.StatusNotFound, respDeviceNotFound)
		return nil
	}
	return device
}

// Handshake answers GET /iclock/cdata with the fixed option block,
// including the configured timezone as a minutes offset.
func (h *IClockHandler) Handshake(w http.ResponseWriter, r *http.Request) {
	device := h.lookupDevice(w, r)
	if device == nil {
		return
	}

	if err := h.registry.MarkOnline(r.Context(), device.SerialNumber, clientIP(r)); err != nil {
		h.logger.Error("mark online failed", zap.String("serial_number", device.SerialNumber), zap.Error(err))
	}

	now := time.Now()
	offset := protocol.TimezoneToMinutes(h.timezone, now)
	block := protocol.EncodeHandshake(device.SerialNumber, offset, now)

	h.logger.Info("handshake",
		zap.String("serial_number", device.SerialNumber),
		zap.Int("timezone_minutes", offset),
	)
	writeDevice(w, http.StatusOK, block)
}

// DataPush answers POST /iclock/cdata: classify the payload and hand it to
// the enrollment recorder or the attendance ledger. Always OK once the
// device is known; malformed lines drop silently.
func (h *IClockHandler) DataPush(w http.ResponseWriter, r *http.Request) {
	device := h.lookupDevice(w, r)
	if device == nil {
		return
	}
	ctx := r.Context()

	if err := h.registry.MarkOnline(ctx, device.SerialNumber, clientIP(r)); err != nil {
		h.logger.Error("mark online failed", zap.String("serial_number", device.SerialNumber), zap.Error(err))
	}

	h.queue.CheckTimeDrift(ctx, device, r.URL.Query().Get("timestamp"))

	raw, err := io.ReadAll(io.LimitReader(r.Body, 10<<20))
	if err != nil {
		h.logger.Error("failed to read push body", zap.String("serial_number", device.SerialNumber), zap.Error(err))
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	lines := protocol.SplitLines(string(raw))
	if h.logData {
		h.logger.Info("data push received",
			zap.String("serial_number", device.SerialNumber),
			zap.Int("line_count", len(lines)),
			zap.Strings("lines", lines),
		)
	}

	if protocol.IsEnrollmentPayload(lines) {
		h.enrollment.Apply(ctx, device, lines)
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	meta := service.RequestMeta{
		Table: r.URL.Query().Get("table"),
		Stamp: r.URL.Query().Get("Stamp"),
	}
	accepted := h.ledger.Ingest(ctx, device, lines, meta)
	if h.logData {
		h.logger.Info("attendance ingested",
			zap.String("serial_number", device.SerialNumber),
			zap.Int("accepted", len(accepted)),
		)
	}
	writeDevice(w, http.StatusOK, respOK)
}

// CommandPoll answers GET /iclock/getrequest with the oldest pending
// command's literal text, marking it sent, or OK when the queue is empty.
func (h *IClockHandler) CommandPoll(w http.ResponseWriter, r *http.Request) {
	sn := domain.NormalizeSerial(r.URL.Query().Get("SN"))
	if sn == "" {
		writeDevice(w, http.StatusOK, respOK)
		return
	}
	ctx := r.Context()

	cmd, err := h.queue.NextPending(ctx, sn)
	if err != nil {
		h.logger.Error("pending command lookup failed", zap.String("serial_number", sn), zap.Error(err))
		writeDevice(w, http.StatusOK, respOK)
		return
	}
	if cmd == nil {
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	if err := h.queue.MarkSent(ctx, cmd); err != nil {
		h.logger.Error("mark sent failed", zap.String("command_id", cmd.CommandID), zap.Error(err))
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	if h.logCmds {
		h.logger.Info("command sent to device",
			zap.String("serial_number", sn),
			zap.String("command_id", cmd.CommandID),
			zap.String("command", cmd.Command),
		)
	}
	writeDevice(w, http.StatusOK, cmd.Command)
}

// CommandResult answers POST /iclock/devicecmd. Always OK: devices cannot
// render errors, so every outcome acknowledges.
func (h *IClockHandler) CommandResult(w http.ResponseWriter, r *http.Request) {
	sn := domain.NormalizeSerial(r.URL.Query().Get("SN"))
	if sn == "" {
		h.logger.Warn("command result: missing device SN")
		writeDevice(w, http.StatusOK, respOK)
		return
	}
	ctx := r.Context()

	device, err := h.registry.Lookup(ctx, sn)
	if err != nil || device == nil {
		h.logger.Warn("command result: device not found", zap.String("serial_number", sn))
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	result, ok := protocol.DecodeCommandResult(string(raw))
	if !ok {
		writeDevice(w, http.StatusOK, respOK)
		return
	}

	if h.logCmds {
		h.logger.Info("command result received",
			zap.String("serial_number", sn),
			zap.String("command_id", result.CommandID),
			zap.String("cmd", result.CMD),
			zap.String("return_code", result.Return),
		)
	}

	if err := h.queue.ReportResult(ctx, result.CommandID, result.Return); err != nil {
		h.logger.Error("command result apply failed",
			zap.String("command_id", result.CommandID),
			zap.Error(err),
		)
	}
	writeDevice(w, http.StatusOK, respOK)
}

// Ping answers GET /iclock/ping: refresh presence for known devices, OK for
// everyone.
func (h *IClockHandler) Ping(w http.ResponseWriter, r *http.Request) {
	sn := domain.NormalizeSerial(r.URL.Query().Get("SN"))
	if sn != "" {
		device, err := h.registry.Lookup(r.Context(), sn)
		if err == nil && device != nil {
			if err := h.registry.MarkOnline(r.Context(), sn, clientIP(r)); err != nil {
				h.logger.Error("mark online failed", zap.String("serial_number", sn), zap.Error(err))
			}
			h.logger.Debug("device ping", zap.String("serial_number", sn))
		}
	}
	writeDevice(w, http.StatusOK, respOK)
}
