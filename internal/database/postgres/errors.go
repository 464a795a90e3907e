package postgres

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/koustreak/dbmeta/internal/errs"
)

// PostgreSQL SQLSTATE codes that map to a specific category. Class-level
// rules (08, 22) are applied in mapError.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgInvalidAuthorization = "28000"
	pgInvalidPassword      = "28P01"
	pgInsufficientPriv     = "42501"
	pgTooManyConnections   = "53300"
	pgAdminShutdown        = "57P01"
	pgCrashShutdown        = "57P02"
	pgCannotConnectNow     = "57P03"
	pgQueryCanceled        = "57014"
	pgLockNotAvailable     = "55P03"
	pgDeadlockDetected     = "40P01"
	pgInvalidCatalogName   = "3D000"
	pgInvalidSchemaName    = "3F000"
	pgUndefinedTable       = "42P01"
	pgUndefinedFunction    = "42883"
)

// mapError converts a pgx error into a *errs.Error whose Kind drives the
// retry decision.
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

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgInvalidAuthorization, pgInvalidPassword, pgInsufficientPriv:
			return errs.Permission
		case pgTooManyConnections, pgAdminShutdown, pgCrashShutdown, pgCannotConnectNow:
			return errs.Connection
		case pgQueryCanceled, pgLockNotAvailable, pgDeadlockDetected:
			return errs.Timeout
		case pgInvalidCatalogName, pgInvalidSchemaName, pgUndefinedTable, pgUndefinedFunction:
			return errs.NotFound
		}
		switch {
		case strings.HasPrefix(pgErr.Code, "08"):
			return errs.Connection
		case strings.HasPrefix(pgErr.Code, "22"):
			return errs.InvalidData
		}
		return errs.Other
	}

	if pgconn.Timeout(err) {
		return errs.Timeout
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Connection
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
