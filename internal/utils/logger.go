// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"openbci-service/internal/config"
	"openbci-service/internal/model"
)

// NewLogger creates a logger from the logging configuration. Any output other
// than stdout or stderr is a file rotated by lumberjack.
func NewLogger(cfg *config.LoggingConfig) (*zap.Logger, error) {
	encoder := newEncoder(cfg.Format)

	writeSyncer, err := newWriteSyncer(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create write syncer: %w", err)
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	core := zapcore.NewCore(encoder, writeSyncer, level)
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	), nil
}

func newEncoder(format string) zapcore.Encoder {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339Nano)
	ec.LevelKey = "level"
	ec.EncodeLevel = zapcore.LowercaseLevelEncoder
	ec.CallerKey = "caller"
	ec.EncodeCaller = zapcore.ShortCallerEncoder
	ec.MessageKey = "message"
	ec.StacktraceKey = "stacktrace"

	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func newWriteSyncer(cfg *config.LoggingConfig) (zapcore.WriteSyncer, error) {
	switch cfg.Output {
	case "stdout", "":
		return zapcore.AddSync(os.Stdout), nil
	case "stderr":
		return zapcore.AddSync(os.Stderr), nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Output), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.Output,
		MaxSize:    cfg.MaxSize, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	}), nil
}

// ParseLevel maps a configured level name onto a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "fatal":
		return zapcore.FatalLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// BoardLogger wraps zap.Logger with board session fields
type BoardLogger struct {
	*zap.Logger
	boardType model.BoardType
	port      string
}

// NewBoardLogger creates a board-specific logger
func NewBoardLogger(baseLogger *zap.Logger, boardType model.BoardType, port string, simulate bool) *BoardLogger {
	if simulate && port == "" {
		port = model.SimulatorPortName
	}
	return &BoardLogger{
		Logger: baseLogger.With(
			zap.String("board_type", string(boardType)),
			zap.String("port", port),
			zap.Bool("simulate", simulate),
		),
		boardType: boardType,
		port:      port,
	}
}

// LogConnection logs connect and disconnect attempts
func (bl *BoardLogger) LogConnection(action string, duration time.Duration, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Duration("duration", duration),
		zap.Bool("success", err == nil),
	}

	if err != nil {
		fields = append(fields, zap.Error(err))
		bl.Error("Board connection event", fields...)
	} else {
		bl.Info("Board connection event", fields...)
	}
}

// LogCommand logs a board command issued through the API
func (bl *BoardLogger) LogCommand(name string, err error, fields ...zap.Field) {
	fields = append([]zap.Field{zap.String("command", name)}, fields...)
	if err != nil {
		bl.Warn("Board command rejected", append(fields, zap.Error(err))...)
		return
	}
	bl.Debug("Board command queued", fields...)
}

// ServiceLogger provides service-level logging functionality
type ServiceLogger struct {
	*zap.Logger
	serviceName string
}

// NewServiceLogger creates a service-specific logger
func NewServiceLogger(baseLogger *zap.Logger, serviceName string) *ServiceLogger {
	return &ServiceLogger{
		Logger: baseLogger.With(
			zap.String("service", serviceName),
			zap.String("component", "service"),
		),
		serviceName: serviceName,
	}
}

// LogServiceStart logs service startup
func (sl *ServiceLogger) LogServiceStart(version string, config interface{}) {
	sl.Info("Service starting",
		zap.String("version", version),
		zap.Any("config", config),
	)
}

// LogServiceStop logs service shutdown
func (sl *ServiceLogger) LogServiceStop(reason string) {
	sl.Info("Service stopping", zap.String("reason", reason))
}

// LogAPIRequest logs HTTP API requests
func (sl *ServiceLogger) LogAPIRequest(method, path, requestID, clientIP string, statusCode int, duration time.Duration) {
	level := zapcore.InfoLevel
	if statusCode >= 400 {
		level = zapcore.WarnLevel
	}
	if statusCode >= 500 {
		level = zapcore.ErrorLevel
	}

	if ce := sl.Check(level, "API request"); ce != nil {
		ce.Write(
			zap.String("method", method),
			zap.String("path", path),
			zap.String("request_id", requestID),
			zap.String("client_ip", clientIP),
			zap.Int("status_code", statusCode),
			zap.Duration("duration", duration),
		)
	}
}

// LoggerWithRequestID adds request ID to logger
func LoggerWithRequestID(logger *zap.Logger, requestID string) *zap.Logger {
	return logger.With(zap.String("request_id", requestID))
}

// CloseLogger flushes buffered entries
func CloseLogger(logger *zap.Logger) error {
	return logger.Sync()
}
