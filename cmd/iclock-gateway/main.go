package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"iclock-gateway/internal/config"
	httpapi "iclock-gateway/internal/http"
	"iclock-gateway/internal/mqtt"
	"iclock-gateway/internal/repository"
	"iclock-gateway/internal/service"
	"iclock-gateway/internal/store"
	"iclock-gateway/pkg/database"
	"iclock-gateway/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "iclock-gateway")
	if err != nil {
		log, _ = zap.NewProduction()
	}
	defer log.Sync()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	kv := store.NewRedisKV(redisClient)

	// Repos: Postgres when available, memory fallback so a plain `go run`
	// still answers real terminals.
	var db *sql.DB
	var devicesRepo repository.DevicesRepo
	var employeesRepo repository.EmployeesRepo
	var attendanceRepo repository.AttendanceRepo
	var commandsRepo repository.CommandsRepo

	if cfg.DBEnabled {
		if d, err := database.NewPostgresDB(&cfg.Database); err == nil {
			db = d
			log.Info("DB enabled for iclock-gateway")
		} else {
			log.Warn("DB enabled but connection failed, falling back to memory repos", zap.Error(err))
		}
	}
	if db != nil {
		devicesRepo = repository.NewPostgresDevicesRepo(db)
		employeesRepo = repository.NewPostgresEmployeesRepo(db)
		attendanceRepo = repository.NewPostgresAttendanceRepo(db)
		commandsRepo = repository.NewPostgresCommandsRepo(db)
	} else {
		devicesRepo = repository.NewMemoryDevicesRepo()
		employeesRepo = repository.NewMemoryEmployeesRepo()
		attendanceRepo = repository.NewMemoryAttendanceRepo()
		commandsRepo = repository.NewMemoryCommandsRepo()
	}

	var resolver service.EmployeeResolver
	if cfg.Directory.Enabled && cfg.Directory.BaseURL != "" {
		resolver = service.NewDirectoryClient(cfg.Directory.BaseURL, cfg.Directory.APIKey, log)
	}

	var sink service.AttendanceSink
	var publisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		publisher, err = mqtt.NewPublisher(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
		}, log)
		if err != nil {
			log.Warn("MQTT enabled but connection failed, punch events will not be published", zap.Error(err))
		} else {
			sink = publisher
		}
	}

	registry := service.NewRegistry(devicesRepo, kv, log)
	ledger := service.NewLedger(attendanceRepo, employeesRepo, service.LedgerOptions{
		Timezone:            cfg.Timezone,
		AutoCreateEmployees: cfg.Attendance.AutoCreateEmployees,
		EmployeeField:       cfg.Attendance.EmployeeField,
		Resolver:            resolver,
		Sink:                sink,
	}, log)
	enrollment := service.NewEnrollment(employeesRepo, log)
	queue := service.NewCommandQueue(commandsRepo, employeesRepo, service.CommandQueueOptions{
		Timezone:            cfg.Timezone,
		AutoCreateEmployees: cfg.Attendance.AutoCreateEmployees,
	}, log)

	iclock := httpapi.NewIClockHandler(registry, ledger, enrollment, queue, httpapi.IClockOptions{
		Timezone:          cfg.Timezone,
		LogAttendanceData: cfg.Log.AttendanceData,
		LogDeviceCommands: cfg.Log.DeviceCommands,
	}, log)
	admin := httpapi.NewAdminHandler(devicesRepo, employeesRepo, attendanceRepo, queue, registry, log)

	router := httpapi.NewRouter(cfg.HTTP.RoutePrefix, log)
	router.RegisterIClockRoutes(iclock)
	router.RegisterAdminRoutes(admin)

	handler := httpapi.RequestLogger(httpapi.LoggingOptions{
		APIRequests:    cfg.Log.APIRequests,
		RequestHeaders: cfg.Log.RequestHeaders,
		ResponseDetail: cfg.Log.ResponseDetail,
		ProcessingTime: cfg.Log.ProcessingTime,
	}, log)(router)

	srv := service.NewServer(cfg.HTTP.Addr, handler, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
	case <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	if publisher != nil {
		publisher.Close()
	}
	_ = redisClient.Close()
	_ = database.Close(db)
}
