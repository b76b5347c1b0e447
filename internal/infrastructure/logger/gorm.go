package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

// ErrorClassifier names the kind of a driver error, e.g. "duplicate_entry"
type ErrorClassifier func(error) string

// SQLLogger writes one zap entry per GORM statement, tagged with the
// statement verb and table and with the request_id, owner and trace ids
// found on the context.
type SQLLogger struct {
	base     *zap.Logger
	level    gormlogger.LogLevel
	slow     time.Duration
	classify ErrorClassifier
	rejected map[string]bool
}

// SQLOption configures an SQLLogger
type SQLOption func(*SQLLogger)

// SlowAfter sets the slow statement threshold; zero turns slow warnings off
func SlowAfter(d time.Duration) SQLOption {
	return func(l *SQLLogger) { l.slow = d }
}

// ClassifyWith tags failed statements with classify(err). Failures whose kind
// is listed in rejected are expected outcomes, such as a taken invoice number
// under a savepoint, and are logged at debug as "SQL Rejected".
func ClassifyWith(classify ErrorClassifier, rejected ...string) SQLOption {
	return func(l *SQLLogger) {
		l.classify = classify
		l.rejected = make(map[string]bool, len(rejected))
		for _, kind := range rejected {
			l.rejected[kind] = true
		}
	}
}

// NewSQLLogger creates an SQLLogger on top of base
func NewSQLLogger(base *zap.Logger, level gormlogger.LogLevel, opts ...SQLOption) *SQLLogger {
	l := &SQLLogger{
		base:  base.Named("sql"),
		level: level,
		slow:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogMode implements gormlogger.Interface
func (l *SQLLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	c := *l
	c.level = level
	return &c
}

// Info implements gormlogger.Interface
func (l *SQLLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

// Warn implements gormlogger.Interface
func (l *SQLLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

// Error implements gormlogger.Interface
func (l *SQLLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *SQLLogger) printf(ctx context.Context, need gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.level < need {
		return
	}
	if ce := WithLogger(ctx, l.base).Zap().Check(lvl, fmt.Sprintf(msg, data...)); ce != nil {
		ce.Write()
	}
}

// sqlOutcome is how one finished statement is reported
type sqlOutcome struct {
	need   gormlogger.LogLevel
	level  zapcore.Level
	msg    string
	fields []zap.Field
}

func (l *SQLLogger) outcome(elapsed time.Duration, err error) sqlOutcome {
	switch {
	case err == nil && l.slow > 0 && elapsed > l.slow:
		return sqlOutcome{gormlogger.Warn, zapcore.WarnLevel, "Slow SQL", []zap.Field{zap.Duration("threshold", l.slow)}}
	case err == nil, errors.Is(err, gormlogger.ErrRecordNotFound):
		return sqlOutcome{need: gormlogger.Info, level: zapcore.DebugLevel, msg: "SQL Query"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return sqlOutcome{gormlogger.Warn, zapcore.WarnLevel, "SQL Interrupted", []zap.Field{zap.Error(err)}}
	}

	fields := []zap.Field{zap.Error(err)}
	if l.classify != nil {
		kind := l.classify(err)
		fields = append(fields, zap.String("kind", kind))
		if l.rejected[kind] {
			return sqlOutcome{gormlogger.Info, zapcore.DebugLevel, "SQL Rejected", fields}
		}
	}
	return sqlOutcome{gormlogger.Error, zapcore.ErrorLevel, "SQL Error", fields}
}

// Trace implements gormlogger.Interface
func (l *SQLLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	out := l.outcome(elapsed, err)
	if l.level < out.need {
		return
	}

	ce := WithLogger(ctx, l.base).Zap().Check(out.level, out.msg)
	if ce == nil {
		return
	}
	sql, rows := fc()
	op, table := statementTarget(sql)
	ce.Write(append([]zap.Field{
		zap.String("op", op),
		zap.String("table", table),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		zap.String("sql", sql),
	}, out.fields...)...)
}

// statementTarget returns the verb and first table of a statement,
// e.g. ("DELETE", "cart_details"). The table is empty when it cannot be read.
func statementTarget(sql string) (op, table string) {
	words := strings.Fields(sql)
	if len(words) == 0 {
		return "", ""
	}
	op = strings.ToUpper(words[0])

	var marker string
	switch op {
	case "SELECT", "DELETE":
		marker = "FROM"
	case "INSERT":
		marker = "INTO"
	case "UPDATE":
		if len(words) > 1 {
			return op, tableName(words[1])
		}
		return op, ""
	default:
		return op, ""
	}
	for i := 1; i < len(words)-1; i++ {
		if strings.EqualFold(words[i], marker) {
			return op, tableName(words[i+1])
		}
	}
	return op, ""
}

func tableName(word string) string {
	if strings.HasPrefix(word, "(") {
		return ""
	}
	return strings.Trim(word, "`\"")
}

var sqlLevels = map[string]gormlogger.LogLevel{
	"silent": gormlogger.Silent,
	"error":  gormlogger.Error,
	"warn":   gormlogger.Warn,
	"info":   gormlogger.Info,
	"debug":  gormlogger.Info,
}

// SQLLogLevel maps a database.log_level value to a GORM log level.
// Unknown values log warnings and errors.
func SQLLogLevel(level string) gormlogger.LogLevel {
	if l, ok := sqlLevels[strings.ToLower(strings.TrimSpace(level))]; ok {
		return l
	}
	return gormlogger.Warn
}
