package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/koustreak/dbmeta/internal/errs"
)

func TestMapError(t *testing.T) {
	pg := func(code string) error { return &pgconn.PgError{Code: code, Message: "server said no"} }

	tests := []struct {
		name string
		err  error
		want errs.Category
	}{
		{"insufficient privilege", pg("42501"), errs.Permission},
		{"bad password", pg("28P01"), errs.Permission},
		{"connection exception class", pg("08006"), errs.Connection},
		{"connection does not exist", pg("08003"), errs.Connection},
		{"too many connections", pg("53300"), errs.Connection},
		{"statement timeout", pg("57014"), errs.Timeout},
		{"lock timeout", pg("55P03"), errs.Timeout},
		{"deadlock", pg("40P01"), errs.Timeout},
		{"database missing", pg("3D000"), errs.NotFound},
		{"table missing", pg("42P01"), errs.NotFound},
		{"bad encoding", pg("22021"), errs.InvalidData},
		{"syntax error", pg("42601"), errs.Other},
		{"wrapped pg error", fmt.Errorf("columns: %w", pg("42501")), errs.Permission},
		{"deadline", context.DeadlineExceeded, errs.Timeout},
		{"net op error", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, errs.Connection},
		{"plain", errors.New("boom"), errs.Other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapError(tt.err, "op")
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.want, errs.Classify(got))
		})
	}
	assert.Nil(t, mapError(nil, "op"))
}

func TestMapError_RedactsCause(t *testing.T) {
	err := mapError(errors.New("failed to connect to `postgres://app:s3cret@db:5432/app`"), "connect")
	assert.NotContains(t, err.Error(), "s3cret")
	assert.NotContains(t, errs.Message(err), "s3cret")
}
