// Package httpapi exposes the device-facing iClock protocol endpoints and a
// small JSON admin API over the standard library ServeMux.
package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

type Router struct {
	mux    *http.ServeMux
	prefix string
	logger *zap.Logger
}

// NewRouter builds a router; prefix (optional, e.g. "/biometric") is
// prepended to every registered pattern.
func NewRouter(prefix string, logger *zap.Logger) *Router {
	prefix = strings.TrimSuffix(prefix, "/")
	return &Router{
		mux:    http.NewServeMux(),
		prefix: prefix,
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(r.prefix+pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterIClockRoutes wires the device protocol endpoints. GET and POST on
// /iclock/cdata are different operations (handshake vs data push), so the
// method split happens here.
func (r *Router) RegisterIClockRoutes(h *IClockHandler) {
	r.Handle("/iclock/cdata", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			h.Handshake(w, req)
		case http.MethodPost:
			h.DataPush(w, req)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})

	r.Handle("/iclock/getrequest", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CommandPoll(w, req)
	})

	r.Handle("/iclock/devicecmd", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.CommandResult(w, req)
	})

	r.Handle("/iclock/ping", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.Ping(w, req)
	})
}

// RegisterAdminRoutes wires the operator-facing JSON API.
func (r *Router) RegisterAdminRoutes(a *AdminHandler) {
	r.Handle("/admin/api/v1/devices", a.Devices)
	r.Handle("/admin/api/v1/devices/", a.DeviceBySerial)
	r.Handle("/admin/api/v1/employees", a.Employees)
	r.Handle("/admin/api/v1/employees/", a.EmployeeByID)
	r.Handle("/admin/api/v1/attendance", a.Attendance)
	r.Handle("/admin/api/v1/attendance/export", a.AttendanceExport)
	r.Handle("/admin/api/v1/commands", a.Commands)
	r.Handle("/admin/api/v1/commands/sync-time", a.SyncTime)
}
