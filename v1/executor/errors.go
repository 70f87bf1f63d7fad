package executor

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/lumastudio/dataplane/v1/dataerr"
)

// MySQL server error numbers treated specially.
const (
	mysqlDuplicateEntry        = 1062
	mysqlDuplicateEntryWithKey = 1586
	mysqlTooManyConnections    = 1040
	mysqlServerGone            = 2006
	mysqlServerLost            = 2013
)

const pgUniqueViolation = "23505"

var transientMessages = []string{
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"bad connection",
	"server has gone away",
	"connection refused",
	"unexpected eof",
}

// IsTransient reports whether err is a transport failure worth retrying on
// a fresh connection. Cancellation of the caller's context never is, and
// neither is any error the server raised about the statement itself.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlTooManyConnections, mysqlServerGone, mysqlServerLost:
			return true
		}
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08 is connection exception, 57P0x is operator intervention
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, m := range transientMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// IsDuplicateKey reports a unique violation from any supported driver.
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlDuplicateEntry || myErr.Number == mysqlDuplicateEntryWithKey
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// TranslateError converts a driver or gorm error into a *dataerr.Error.
// Errors that already carry a kind are returned unchanged.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	var de *dataerr.Error
	if errors.As(err, &de) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dataerr.Wrap(dataerr.KindTransientStore, dataerr.CodeTransientStore, err, "statement cancelled")
	case IsDuplicateKey(err):
		return dataerr.Store(dataerr.CodeDuplicateKey, err)
	}

	return dataerr.Store(dataerr.CodeStore, err)
}
