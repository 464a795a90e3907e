package mysql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/dbmeta/internal/errs"
)

// MySQL server and client error numbers that map to a specific category.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errDBAccessDenied     = 1044
	errAccessDenied       = 1045
	errTableAccessDenied  = 1142
	errColumnAccessDenied = 1143
	errSpecificAccess     = 1227
	errTooManyConnections = 1040
	errUnknownDatabase    = 1049
	errNoSuchTable        = 1146
	errLockWaitTimeout    = 1205
	errQueryInterrupted   = 1317
	errExecutionTimeout   = 3024
	errIllegalMixCollate  = 1267
	errTruncatedValue     = 1292
	errConnRefused        = 2002
	errConnHost           = 2003
	errServerGone         = 2006
	errServerLost         = 2013
)

// mapError converts a go-sql-driver/mysql error into a *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	return errs.Wrap(categorize(err), msg, err)
}

func categorize(err error) errs.Category {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Timeout
	}

	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDBAccessDenied, errAccessDenied, errTableAccessDenied, errColumnAccessDenied, errSpecificAccess:
			return errs.Permission
		case errTooManyConnections, errConnRefused, errConnHost, errServerGone, errServerLost:
			return errs.Connection
		case errLockWaitTimeout, errQueryInterrupted, errExecutionTimeout:
			return errs.Timeout
		case errUnknownDatabase, errNoSuchTable:
			return errs.NotFound
		case errIllegalMixCollate, errTruncatedValue:
			return errs.InvalidData
		}
		return errs.Other
	}

	switch {
	case errors.Is(err, gomysql.ErrInvalidConn), errors.Is(err, driver.ErrBadConn), errors.Is(err, sql.ErrConnDone):
		return errs.Connection
	case errors.Is(err, gomysql.ErrMalformPkt):
		return errs.InvalidData
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.Timeout
		}
		return errs.Connection
	}
	return errs.Other
}
