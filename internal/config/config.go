package config

import (
	"os"
	"strconv"

	"iclock-gateway/pkg/database"
)

// Config holds the full configuration for the iclock-gateway service.
type Config struct {
	HTTP struct {
		Addr        string
		RoutePrefix string
	}

	DBEnabled bool
	Database  database.Config

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	Log struct {
		Level  string
		Format string
		// Per-category toggles for device traffic logging.
		AttendanceData bool
		DeviceCommands bool
		APIRequests    bool
		DBOperations   bool
		ResponseDetail bool
		RequestHeaders bool
		ProcessingTime bool
	}

	// Timezone the devices report local time in (IANA name).
	Timezone string

	Attendance struct {
		// AutoCreateEmployees provisions an enrollment record when an unknown
		// employee id punches and the host directory resolves a user for it.
		AutoCreateEmployees bool
		// EmployeeField is the host-side field matched against the device
		// employee id during directory lookups.
		EmployeeField string
	}

	Commands struct {
		// Advisory values surfaced to operators; the queue itself does not
		// time out or retry commands automatically.
		TimeoutSeconds int
		RetryAttempts  int
	}

	// Directory is the host application's user lookup API (optional).
	Directory struct {
		Enabled bool
		BaseURL string
		APIKey  string
	}

	// MQTT publishes "punch recorded" events when enabled (default off).
	MQTT struct {
		Enabled  bool
		Broker   string
		ClientID string
		Username string
		Password string
		Topic    string
	}
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")
	cfg.HTTP.RoutePrefix = getEnv("ROUTE_PREFIX", "")

	cfg.DBEnabled = getEnv("DB_ENABLED", "true") == "true"
	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "iclock")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	cfg.Log.AttendanceData = getEnv("LOG_ATTENDANCE_DATA", "true") == "true"
	cfg.Log.DeviceCommands = getEnv("LOG_DEVICE_COMMANDS", "true") == "true"
	cfg.Log.APIRequests = getEnv("LOG_API_REQUESTS", "true") == "true"
	cfg.Log.DBOperations = getEnv("LOG_DB_OPERATIONS", "false") == "true"
	cfg.Log.ResponseDetail = getEnv("LOG_RESPONSE_DETAILS", "true") == "true"
	cfg.Log.RequestHeaders = getEnv("LOG_REQUEST_HEADERS", "true") == "true"
	cfg.Log.ProcessingTime = getEnv("LOG_PROCESSING_TIME", "true") == "true"

	cfg.Timezone = getEnv("ICLOCK_TIMEZONE", "UTC")

	cfg.Attendance.AutoCreateEmployees = getEnv("ICLOCK_AUTO_CREATE_EMPLOYEES", "true") == "true"
	cfg.Attendance.EmployeeField = getEnv("ICLOCK_EMPLOYEE_FIELD", "employee_code")

	cfg.Commands.TimeoutSeconds = parseInt(getEnv("ICLOCK_COMMAND_TIMEOUT", "300"), 300)
	cfg.Commands.RetryAttempts = parseInt(getEnv("ICLOCK_COMMAND_RETRY_ATTEMPTS", "3"), 3)

	cfg.Directory.Enabled = getEnv("DIRECTORY_ENABLED", "false") == "true"
	cfg.Directory.BaseURL = getEnv("DIRECTORY_BASE_URL", "")
	cfg.Directory.APIKey = getEnv("DIRECTORY_API_KEY", "")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "iclock-gateway")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "iclock/attendance")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
