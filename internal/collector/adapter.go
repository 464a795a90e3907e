// Package collector runs the per-database collection pipeline.
//
// An engine Adapter supplies catalog lookups; the Collector drives them
// stage by stage through a retry.Policy and absorbs object-level failures
// into the result instead of aborting the database.
package collector

import (
	"context"

	"github.com/koustreak/dbmeta/internal/model"
)

// Server describes the server an adapter talks to. Host must already be
// free of credentials.
type Server struct {
	Engine string `json:"engine"`
	Host   string `json:"host"`
}

// Adapter is the engine-specific collaborator. Every error it returns must
// be credential-free; engines wrap native errors into *errs.Error so that
// errs.Classify can categorise them.
type Adapter interface {
	// Server describes the target without touching the network.
	Server() Server

	// EnumerateDatabases lists databases in server order. System databases
	// are included only when includeSystem is true.
	EnumerateDatabases(ctx context.Context, includeSystem bool) ([]string, error)

	// Connect opens a session bound to one database.
	Connect(ctx context.Context, database string) (Session, error)
}

// Session performs catalog lookups against a single database. Each method
// backs one model.CollectionStage; table-level methods return the table
// without columns, constraints or indexes, which are fetched separately.
type Session interface {
	ServerVersion(ctx context.Context) (string, error)

	// Schemas backs StageEnumerateSchemas. Failure here fails the database.
	Schemas(ctx context.Context) ([]string, error)

	// Tables backs StageEnumerateTables.
	Tables(ctx context.Context, schema string) ([]model.Table, error)

	// Columns, Constraints and Indexes back the per-table stages.
	Columns(ctx context.Context, schema, table string) ([]model.Column, error)
	Constraints(ctx context.Context, schema, table string) ([]model.Constraint, error)
	Indexes(ctx context.Context, schema, table string) ([]model.Index, error)

	// Views, Routines and Triggers back the auxiliary stages.
	Views(ctx context.Context, schema string) ([]model.View, error)
	Routines(ctx context.Context, schema string) ([]model.Routine, error)
	Triggers(ctx context.Context, schema string) ([]model.Trigger, error)

	Close() error
}
