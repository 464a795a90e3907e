// Package collectortest provides an in-memory collector.Adapter for tests.
package collectortest

import (
	"context"
	"sync"
	"time"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/model"
)

// Key addresses one stage operation on one object. Object is "schema.table"
// for per-table stages, the schema name for schema-wide stages and empty for
// connect / schema enumeration.
type Key struct {
	Stage  model.CollectionStage
	Object string
}

// Database is the scripted content and behaviour of one fake database.
type Database struct {
	Version    string
	Schemas    []string
	Tables     map[string][]string // schema -> table names, in order
	ConnectErr error

	// Fail makes an operation return the error Times[key] times, or forever
	// when Times has no entry.
	Fail  map[Key]error
	Times map[Key]int
}

// Adapter is a thread-safe fake engine.
type Adapter struct {
	Engine       string
	Order        []string // enumeration order
	System       []string // returned only with includeSystem
	DBs          map[string]*Database
	EnumerateErr error
	ConnectDelay time.Duration

	mu        sync.Mutex
	calls     map[string]map[Key]int
	connected []string
	active    int
	maxActive int
}

func (a *Adapter) Server() collector.Server {
	return collector.Server{Engine: a.engine(), Host: "fake:0"}
}

func (a *Adapter) engine() string {
	if a.Engine == "" {
		return "fake"
	}
	return a.Engine
}

func (a *Adapter) EnumerateDatabases(_ context.Context, includeSystem bool) ([]string, error) {
	if a.EnumerateErr != nil {
		return nil, a.EnumerateErr
	}
	out := append([]string{}, a.Order...)
	if includeSystem {
		out = append(out, a.System...)
	}
	return out, nil
}

func (a *Adapter) Connect(ctx context.Context, name string) (collector.Session, error) {
	a.mu.Lock()
	a.connected = append(a.connected, name)
	a.mu.Unlock()

	db, ok := a.DBs[name]
	if !ok {
		return nil, errs.New(errs.NotFound, "database "+name+" does not exist")
	}
	if err := a.trip(name, db, Key{Stage: model.StageOther}); err != nil {
		return nil, err
	}
	if db.ConnectErr != nil {
		return nil, db.ConnectErr
	}

	a.mu.Lock()
	a.active++
	if a.active > a.maxActive {
		a.maxActive = a.active
	}
	a.mu.Unlock()

	if a.ConnectDelay > 0 {
		select {
		case <-time.After(a.ConnectDelay):
		case <-ctx.Done():
		}
	}
	return &session{a: a, name: name, db: db}, nil
}

// MaxActive reports the highest number of simultaneously open sessions.
func (a *Adapter) MaxActive() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxActive
}

// Connected returns the databases Connect was called for, in call order.
func (a *Adapter) Connected() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string{}, a.connected...)
}

// Calls reports how many times the operation at k ran for database name.
func (a *Adapter) Calls(name string, k Key) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls[name][k]
}

func (a *Adapter) trip(name string, db *Database, k Key) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.calls == nil {
		a.calls = map[string]map[Key]int{}
	}
	if a.calls[name] == nil {
		a.calls[name] = map[Key]int{}
	}
	a.calls[name][k]++
	n := a.calls[name][k]

	err, ok := db.Fail[k]
	if !ok {
		return nil
	}
	if limit, bounded := db.Times[k]; bounded && n > limit {
		return nil
	}
	return err
}

type session struct {
	a    *Adapter
	name string
	db   *Database
}

func (s *session) op(st model.CollectionStage, object string) error {
	return s.a.trip(s.name, s.db, Key{Stage: st, Object: object})
}

func (s *session) ServerVersion(context.Context) (string, error) {
	return s.db.Version, nil
}

func (s *session) Schemas(context.Context) ([]string, error) {
	if err := s.op(model.StageEnumerateSchemas, ""); err != nil {
		return nil, err
	}
	return append([]string{}, s.db.Schemas...), nil
}

func (s *session) Tables(_ context.Context, schema string) ([]model.Table, error) {
	if err := s.op(model.StageEnumerateTables, schema); err != nil {
		return nil, err
	}
	var out []model.Table
	for _, t := range s.db.Tables[schema] {
		out = append(out, model.Table{Name: t, Type: "BASE TABLE"})
	}
	return out, nil
}

func (s *session) Columns(_ context.Context, schema, table string) ([]model.Column, error) {
	if err := s.op(model.StageCollectColumns, schema+"."+table); err != nil {
		return nil, err
	}
	return []model.Column{
		{Name: "id", Position: 1, DataType: "integer"},
		{Name: "name", Position: 2, DataType: "text", Nullable: true},
	}, nil
}

func (s *session) Constraints(_ context.Context, schema, table string) ([]model.Constraint, error) {
	if err := s.op(model.StageCollectConstraints, schema+"."+table); err != nil {
		return nil, err
	}
	return []model.Constraint{{Name: table + "_pkey", Kind: model.ConstraintPrimaryKey, Columns: []string{"id"}}}, nil
}

func (s *session) Indexes(_ context.Context, schema, table string) ([]model.Index, error) {
	if err := s.op(model.StageCollectIndexes, schema+"."+table); err != nil {
		return nil, err
	}
	return []model.Index{{Name: table + "_pkey", Method: "btree", Columns: []string{"id"}, IsUnique: true, IsPrimary: true}}, nil
}

func (s *session) Views(_ context.Context, schema string) ([]model.View, error) {
	if err := s.op(model.StageCollectViews, schema); err != nil {
		return nil, err
	}
	return []model.View{{Schema: schema, Name: "v_" + schema}}, nil
}

func (s *session) Routines(_ context.Context, schema string) ([]model.Routine, error) {
	if err := s.op(model.StageCollectRoutines, schema); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *session) Triggers(_ context.Context, schema string) ([]model.Trigger, error) {
	if err := s.op(model.StageCollectTriggers, schema); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *session) Close() error {
	s.a.mu.Lock()
	s.a.active--
	s.a.mu.Unlock()
	return nil
}

// SimpleDatabase returns a database with one schema "public" holding tables.
func SimpleDatabase(tables ...string) *Database {
	return &Database{
		Version: "fake 1.0",
		Schemas: []string{"public"},
		Tables:  map[string][]string{"public": tables},
	}
}
