package logger

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// GormConfig controls how SQL statements reach the zap logger
type GormConfig struct {
	Level gormlogger.LogLevel
	// SlowThreshold of zero disables slow query warnings
	SlowThreshold time.Duration
	// LogNotFound logs gorm.ErrRecordNotFound as an error; lookups of
	// unknown invoices are routine so it is off by default
	LogNotFound bool
	// MaxSQLLength truncates logged statements; expense batch inserts
	// otherwise produce very long lines. Zero keeps the full text.
	MaxSQLLength int
}

// DefaultGormConfig maps the application log level onto GORM's
func DefaultGormConfig(appLevel string) GormConfig {
	return GormConfig{
		Level:         MapGormLogLevel(appLevel),
		SlowThreshold: 200 * time.Millisecond,
		MaxSQLLength:  2048,
	}
}

// GormLogger implements gormlogger.Interface on top of zap
type GormLogger struct {
	log *zap.Logger
	cfg GormConfig
}

// NewGormLogger creates a GORM logger writing to the "gorm" child of log
func NewGormLogger(log *zap.Logger, cfg GormConfig) *GormLogger {
	return &GormLogger{log: OrNop(log).Named("gorm"), cfg: cfg}
}

// LogMode returns a copy at the given level
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.cfg.Level = level
	return &c
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Info {
		l.log.Sugar().Infof(msg, data...)
	}
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Warn {
		l.log.Sugar().Warnf(msg, data...)
	}
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.cfg.Level >= gormlogger.Error {
		l.log.Sugar().Errorf(msg, data...)
	}
}

// Trace logs one executed statement: failures at error, slow statements at
// warn and everything else at debug when the level is Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	level := l.cfg.Level
	if level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !(errors.Is(err, gormlogger.ErrRecordNotFound) && !l.cfg.LogNotFound)
	slow := l.cfg.SlowThreshold > 0 && elapsed > l.cfg.SlowThreshold

	switch {
	case failed && level >= gormlogger.Error:
		l.log.Error("SQL Error", append(l.statementFields(ctx, elapsed, fc), zap.Error(err))...)
	case slow && level >= gormlogger.Warn:
		l.log.Warn("Slow SQL", append(l.statementFields(ctx, elapsed, fc), zap.Duration("threshold", l.cfg.SlowThreshold))...)
	case level >= gormlogger.Info && err == nil:
		l.log.Debug("SQL Query", l.statementFields(ctx, elapsed, fc)...)
	}
}

func (l *GormLogger) statementFields(ctx context.Context, elapsed time.Duration, fc func() (string, int64)) []zap.Field {
	sql, rows := fc()
	if n := l.cfg.MaxSQLLength; n > 0 && len(sql) > n {
		sql = sql[:n] + "...(" + strconv.Itoa(len(sql)-n) + " more bytes)"
	}
	fields := make([]zap.Field, 0, 5)
	fields = append(fields,
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetTraceID(ctx); id != "" {
		fields = append(fields, zap.String("trace_id", id))
	}
	return fields
}

// MapGormLogLevel converts an application log level; unknown values fall
// back to Warn.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info", "debug":
		return gormlogger.Info
	}
	return gormlogger.Warn
}
