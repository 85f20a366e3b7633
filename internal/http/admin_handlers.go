package httpapi

import (
	"database/sql"
	"net/http"
	"strings"

	"iclock-gateway/internal/domain"
	"iclock-gateway/internal/repository"
	"iclock-gateway/internal/service"

	"go.uber.org/zap"
)

// AdminHandler is the operator-facing JSON API: device registration, punch
// queries, and command queueing. Devices never call these endpoints.
type AdminHandler struct {
	devices    repository.DevicesRepo
	employees  repository.EmployeesRepo
	attendance repository.AttendanceRepo
	queue      *service.CommandQueue
	registry   *service.Registry
	logger     *zap.Logger
}

func NewAdminHandler(devices repository.DevicesRepo, employees repository.EmployeesRepo, attendance repository.AttendanceRepo, queue *service.CommandQueue, registry *service.Registry, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		devices:    devices,
		employees:  employees,
		attendance: attendance,
		queue:      queue,
		registry:   registry,
		logger:     logger,
	}
}

type registerDeviceRequest struct {
	DeviceName   string `json:"device_name"`
	SerialNumber string `json:"serial_number"`
	DeviceIP     string `json:"device_ip"`
}

// Devices handles GET (list) and POST (register) on /admin/api/v1/devices.
func (a *AdminHandler) Devices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		devices, err := a.devices.List(r.Context())
		if err != nil {
			a.logger.Error("device list failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to list devices"))
			return
		}
		// one cache scan answers liveness for the whole list
		present := a.registry.PresentSerials(r.Context())
		out := make([]map[string]any, 0, len(devices))
		for i := range devices {
			m := devices[i].ToJSON()
			m["present"] = present[devices[i].SerialNumber]
			out = append(out, m)
		}
		writeJSON(w, http.StatusOK, Ok(out))

	case http.MethodPost:
		var req registerDeviceRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if req.DeviceName == "" || req.SerialNumber == "" {
			writeJSON(w, http.StatusBadRequest, Fail("device_name and serial_number are required"))
			return
		}

		d := &domain.Device{
			DeviceName:   req.DeviceName,
			SerialNumber: domain.NormalizeSerial(req.SerialNumber),
			Status:       domain.DeviceStatusPending,
		}
		if req.DeviceIP != "" {
			d.DeviceIP = sql.NullString{String: req.DeviceIP, Valid: true}
		}
		if err := a.devices.Create(r.Context(), d); err != nil {
			a.logger.Error("device create failed", zap.String("serial_number", d.SerialNumber), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to register device"))
			return
		}
		writeJSON(w, http.StatusCreated, Ok(d.ToJSON()))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// DeviceBySerial handles GET /admin/api/v1/devices/{serial}.
func (a *AdminHandler) DeviceBySerial(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	idx := strings.LastIndex(r.URL.Path, "/devices/")
	if idx < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	serial := r.URL.Path[idx+len("/devices/"):]
	if serial == "" || strings.Contains(serial, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	device, err := a.devices.FindBySerial(r.Context(), serial)
	if err != nil {
		a.logger.Error("device lookup failed", zap.String("serial_number", serial), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to look up device"))
		return
	}
	if device == nil {
		writeJSON(w, http.StatusNotFound, Fail("device not found"))
		return
	}
	m := device.ToJSON()
	m["present"] = a.registry.IsPresent(r.Context(), device.SerialNumber)
	writeJSON(w, http.StatusOK, Ok(m))
}

type upsertEmployeeRequest struct {
	EmployeeID string  `json:"employee_id"`
	UserID     *int64  `json:"user_id"`
	CardNumber *string `json:"card_number"`
}

// Employees handles POST /admin/api/v1/employees: create or update an
// enrollment record. The merge semantics match device enrollment pushes;
// absent fields keep their stored values.
func (a *AdminHandler) Employees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req upsertEmployeeRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}
	if req.EmployeeID == "" {
		writeJSON(w, http.StatusBadRequest, Fail("employee_id is required"))
		return
	}

	patch := domain.EmployeePatch{
		UserID:     req.UserID,
		CardNumber: req.CardNumber,
	}
	employee, err := a.employees.Upsert(r.Context(), req.EmployeeID, patch)
	if err != nil {
		a.logger.Error("employee upsert failed", zap.String("employee_id", req.EmployeeID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to save employee"))
		return
	}
	writeJSON(w, http.StatusCreated, Ok(employee.ToJSON()))
}

// EmployeeByID handles GET /admin/api/v1/employees/{employee_id}.
func (a *AdminHandler) EmployeeByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	idx := strings.LastIndex(r.URL.Path, "/employees/")
	if idx < 0 {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	employeeID := r.URL.Path[idx+len("/employees/"):]
	if employeeID == "" || strings.Contains(employeeID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	employee, err := a.employees.FindByEmployeeID(r.Context(), employeeID)
	if err != nil {
		a.logger.Error("employee lookup failed", zap.String("employee_id", employeeID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to look up employee"))
		return
	}
	if employee == nil {
		writeJSON(w, http.StatusNotFound, Fail("employee not found"))
		return
	}
	writeJSON(w, http.StatusOK, Ok(employee.ToJSON()))
}

func attendanceFilterFromQuery(r *http.Request) repository.AttendanceFilter {
	q := r.URL.Query()
	return repository.AttendanceFilter{
		DeviceSerial: domain.NormalizeSerial(q.Get("device")),
		EmployeeID:   q.Get("employee"),
		From:         q.Get("from"),
		To:           q.Get("to"),
	}
}

// Attendance handles GET /admin/api/v1/attendance with device/employee/from/to
// filters.
func (a *AdminHandler) Attendance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	punches, err := a.attendance.List(r.Context(), attendanceFilterFromQuery(r))
	if err != nil {
		a.logger.Error("attendance list failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, Fail("failed to list attendance"))
		return
	}
	out := make([]map[string]any, 0, len(punches))
	for i := range punches {
		out = append(out, punches[i].ToJSON())
	}
	writeJSON(w, http.StatusOK, Ok(out))
}

type enqueueCommandRequest struct {
	Type         string `json:"type"` // CREATEUSER, DELETEUSER, QUERYUSER
	SerialNumber string `json:"serial_number"`
	PIN          string `json:"pin"`
	Name         string `json:"name"`
	UserID       *int64 `json:"user_id"`
}

// Commands handles GET (pending list, ?sn=) and POST (enqueue) on
// /admin/api/v1/commands.
func (a *AdminHandler) Commands(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sn := domain.NormalizeSerial(r.URL.Query().Get("sn"))
		if sn == "" {
			writeJSON(w, http.StatusBadRequest, Fail("sn query parameter is required"))
			return
		}
		pending, err := a.queue.ListPending(r.Context(), sn)
		if err != nil {
			a.logger.Error("pending command list failed", zap.String("serial_number", sn), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to list commands"))
			return
		}
		out := make([]map[string]any, 0, len(pending))
		for i := range pending {
			out = append(out, pending[i].ToJSON())
		}
		writeJSON(w, http.StatusOK, Ok(out))

	case http.MethodPost:
		var req enqueueCommandRequest
		if err := readBodyJSON(r, 1<<20, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
			return
		}
		if req.SerialNumber == "" || req.PIN == "" {
			writeJSON(w, http.StatusBadRequest, Fail("serial_number and pin are required"))
			return
		}

		device, err := a.devices.FindBySerial(r.Context(), req.SerialNumber)
		if err != nil || device == nil {
			writeJSON(w, http.StatusNotFound, Fail("device not found"))
			return
		}

		var cmd *domain.Command
		switch req.Type {
		case domain.CommandTypeCreateUser:
			if req.Name == "" {
				writeJSON(w, http.StatusBadRequest, Fail("name is required for CREATEUSER"))
				return
			}
			cmd, err = a.queue.QueueCreateUser(r.Context(), device.SerialNumber, req.PIN, req.Name, req.UserID)
		case domain.CommandTypeDeleteUser:
			cmd, err = a.queue.QueueDeleteUser(r.Context(), device.SerialNumber, req.PIN)
		case domain.CommandTypeQueryUser:
			cmd, err = a.queue.QueueQueryUser(r.Context(), device.SerialNumber, req.PIN)
		default:
			writeJSON(w, http.StatusBadRequest, Fail("unsupported command type"))
			return
		}
		if err != nil {
			a.logger.Error("command enqueue failed", zap.String("serial_number", device.SerialNumber), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to queue command"))
			return
		}
		writeJSON(w, http.StatusCreated, Ok(cmd.ToJSON()))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

type syncTimeRequest struct {
	SerialNumber string `json:"serial_number"` // empty means all devices
}

type syncTimeResult struct {
	Device  string `json:"device"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// SyncTime handles POST /admin/api/v1/commands/sync-time: queue a clock
// correction for one device or for every registered device.
func (a *AdminHandler) SyncTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req syncTimeRequest
	if err := readBodyJSON(r, 1<<20, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, Fail("invalid request body"))
		return
	}

	var targets []domain.Device
	if req.SerialNumber != "" {
		device, err := a.devices.FindBySerial(r.Context(), req.SerialNumber)
		if err != nil || device == nil {
			writeJSON(w, http.StatusNotFound, Fail("device not found"))
			return
		}
		targets = []domain.Device{*device}
	} else {
		all, err := a.devices.List(r.Context())
		if err != nil {
			a.logger.Error("device list failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, Fail("failed to list devices"))
			return
		}
		targets = all
	}

	results := make([]syncTimeResult, 0, len(targets))
	for i := range targets {
		device := targets[i]
		if _, err := a.queue.QueueTimeSync(r.Context(), &device); err != nil {
			a.logger.Error("time sync enqueue failed", zap.String("serial_number", device.SerialNumber), zap.Error(err))
			results = append(results, syncTimeResult{Device: device.SerialNumber, Status: "error", Message: err.Error()})
			continue
		}
		results = append(results, syncTimeResult{Device: device.SerialNumber, Status: "success", Message: "time sync command queued"})
	}
	writeJSON(w, http.StatusOK, Ok(results))
}
