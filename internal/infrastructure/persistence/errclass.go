package persistence

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"gorm.io/gorm"
)

// ErrorKind returns the taxonomy kind of a storage error as a string.
// It plugs ClassifyError into the SQL logger.
func ErrorKind(err error) string {
	return string(shared.KindOf(ClassifyError(err)))
}

// ClassifiedSQL tags failed statements in the SQL log with their error kind.
// Duplicate keys and check violations are expected under contention and
// log at debug.
func ClassifiedSQL() logger.SQLOption {
	return logger.ClassifyWith(ErrorKind, string(shared.KindDuplicateEntry), string(shared.KindValidation))
}

// ClassifyError maps a storage error onto the closed error taxonomy.
// It is the only place that inspects driver error types; callers above the
// persistence layer switch on shared.Kind. Domain errors pass through unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPostgres(pgErr.Code, pgErr.Message, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifyPostgres(string(pqErr.Code), pqErr.Message, err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyMySQL(myErr, err)
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr, err)
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound), errors.Is(err, sql.ErrNoRows):
		return shared.WrapError(shared.KindNotFound, "record not found", err)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.WrapError(shared.KindDuplicateEntry, "duplicate entry", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return shared.WrapError(shared.KindForeignKey, "foreign key constraint violated", err)
	case errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone), errors.Is(err, mysql.ErrInvalidConn):
		return shared.WrapError(shared.KindConnectionLost, "database connection lost", err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError(shared.KindDatabaseException, "database operation interrupted", err)
	}
	return shared.WrapError(shared.KindDatabaseException, "unexpected database failure", err)
}

// classifyPostgres handles SQLSTATE codes from pgx and lib/pq
func classifyPostgres(code, msg string, err error) error {
	switch code {
	case "23505":
		return shared.WrapError(shared.KindDuplicateEntry, "duplicate entry", err)
	case "23503":
		return shared.WrapError(shared.KindForeignKey, "foreign key constraint violated", err)
	case "23514":
		return shared.WrapError(shared.KindValidation, "check constraint violated", err)
	case "42P01":
		return shared.WrapError(shared.KindTableNotFound, "table not found", err)
	case "42703":
		return shared.WrapError(shared.KindColumnNotFound, "column not found", err)
	case "55P03":
		return shared.WrapError(shared.KindLockTimeout, "lock wait timeout", err)
	case "40P01", "40001":
		return shared.WrapError(shared.KindDeadlock, "deadlock detected", err)
	case "53300":
		return shared.WrapError(shared.KindTooManyConnections, "too many connections", err)
	case "28P01", "28000", "42501":
		return shared.WrapError(shared.KindAccessDenied, "database access denied", err)
	case "57P01", "57P02", "57P03":
		return shared.WrapError(shared.KindConnectionLost, "database connection lost", err)
	}
	if strings.HasPrefix(code, "08") {
		return shared.WrapError(shared.KindConnectionLost, "database connection lost", err)
	}
	return shared.WrapError(shared.KindDatabaseError, "database error: "+msg, err)
}

func classifyMySQL(e *mysql.MySQLError, err error) error {
	switch e.Number {
	case 1062:
		return shared.WrapError(shared.KindDuplicateEntry, "duplicate entry", err)
	case 1451, 1452:
		return shared.WrapError(shared.KindForeignKey, "foreign key constraint violated", err)
	case 3819:
		return shared.WrapError(shared.KindValidation, "check constraint violated", err)
	case 1146:
		return shared.WrapError(shared.KindTableNotFound, "table not found", err)
	case 1054:
		return shared.WrapError(shared.KindColumnNotFound, "column not found", err)
	case 1205:
		return shared.WrapError(shared.KindLockTimeout, "lock wait timeout", err)
	case 1213:
		return shared.WrapError(shared.KindDeadlock, "deadlock detected", err)
	case 2006, 2013:
		return shared.WrapError(shared.KindConnectionLost, "database connection lost", err)
	case 1040:
		return shared.WrapError(shared.KindTooManyConnections, "too many connections", err)
	case 1044, 1045, 1142:
		return shared.WrapError(shared.KindAccessDenied, "database access denied", err)
	}
	return shared.WrapError(shared.KindDatabaseError, "database error: "+e.Message, err)
}

func classifySQLite(e sqlite3.Error, err error) error {
	switch e.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return shared.WrapError(shared.KindDuplicateEntry, "duplicate entry", err)
	case sqlite3.ErrConstraintForeignKey:
		return shared.WrapError(shared.KindForeignKey, "foreign key constraint violated", err)
	case sqlite3.ErrConstraintCheck:
		return shared.WrapError(shared.KindValidation, "check constraint violated", err)
	}
	switch e.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return shared.WrapError(shared.KindLockTimeout, "database is locked", err)
	case sqlite3.ErrAuth, sqlite3.ErrPerm:
		return shared.WrapError(shared.KindAccessDenied, "database access denied", err)
	case sqlite3.ErrCantOpen:
		return shared.WrapError(shared.KindConnectionLost, "database cannot be opened", err)
	}
	msg := e.Error()
	switch {
	case strings.Contains(msg, "no such table"):
		return shared.WrapError(shared.KindTableNotFound, "table not found", err)
	case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
		return shared.WrapError(shared.KindColumnNotFound, "column not found", err)
	}
	return shared.WrapError(shared.KindDatabaseError, "database error: "+msg, err)
}
