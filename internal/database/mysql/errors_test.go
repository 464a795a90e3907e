package mysql

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/dbmeta/internal/errs"
)

func TestMapError(t *testing.T) {
	my := func(n uint16) error { return &gomysql.MySQLError{Number: n, Message: "server said no"} }

	tests := []struct {
		name string
		err  error
		want errs.Category
	}{
		{"db access denied", my(1044), errs.Permission},
		{"bad password", my(1045), errs.Permission},
		{"table access denied", my(1142), errs.Permission},
		{"too many connections", my(1040), errs.Connection},
		{"server gone", my(2006), errs.Connection},
		{"lock wait", my(1205), errs.Timeout},
		{"max execution time", my(3024), errs.Timeout},
		{"unknown database", my(1049), errs.NotFound},
		{"no such table", my(1146), errs.NotFound},
		{"bad value", my(1292), errs.InvalidData},
		{"syntax", my(1064), errs.Other},
		{"wrapped", fmt.Errorf("columns: %w", my(1142)), errs.Permission},
		{"invalid conn", gomysql.ErrInvalidConn, errs.Connection},
		{"bad conn", driver.ErrBadConn, errs.Connection},
		{"deadline", context.DeadlineExceeded, errs.Timeout},
		{"dial", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, errs.Connection},
		{"plain", errors.New("boom"), errs.Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, got.Kind)
		})
	}
	assert.Nil(t, mapError(nil, "op"))
}

func TestMapError_RedactsDSN(t *testing.T) {
	err := mapError(errors.New("dial root:hunter2@tcp(db:3306)/shop failed"), "connect")
	assert.NotContains(t, errs.Message(err), "hunter2")
}
