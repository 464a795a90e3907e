package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/retry"
)

// DatabaseError is returned by Collect when the database cannot be
// collected at all. It carries the failure record ready for aggregation.
type DatabaseError struct {
	Failure model.DatabaseFailure
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %q: %s", e.Failure.Database, e.Failure.Summary())
}

// Collector drives one database's stages through a retry policy. It holds
// no per-run state and may be shared by concurrent collections.
type Collector struct {
	policy retry.Policy
	log    *logger.Logger
	now    func() time.Time
}

// New returns a Collector using policy p. A nil log discards output.
func New(p retry.Policy, log *logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{policy: p, log: log, now: time.Now}
}

// run is one collection of one database. It owns the recorder.
type run struct {
	c        *Collector
	log      *logger.Logger
	sess     Session
	rec      *Recorder
	warnings []string
}

// Collect gathers the schema of database. Object-level problems never
// surface as errors: they are recorded in the result's metadata. Only a
// failure to connect or to list schemas returns a *DatabaseError.
func (c *Collector) Collect(ctx context.Context, a Adapter, database string) (model.DatabaseSchema, error) {
	started := c.now()
	log := c.log.ForDatabase(database)
	engine := a.Server().Engine

	sess, res := retry.Run(ctx, c.policy, c.hook(log, model.StageOther, database),
		func(ctx context.Context) (Session, error) { return a.Connect(ctx, database) })
	if !res.OK() {
		return model.DatabaseSchema{}, dbError(database, model.StageOther, res)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.WarnWith("closing session", err, nil)
		}
	}()

	r := &run{c: c, log: log, sess: sess, rec: NewRecorder(), warnings: []string{}}

	version, vres := retry.Run(ctx, c.policy, c.hook(log, model.StageOther, database), sess.ServerVersion)
	if !vres.OK() {
		r.warn("server version unavailable: %s", errs.Message(vres.Err))
	}

	schemas, sres := retry.Run(ctx, c.policy, c.hook(log, model.StageEnumerateSchemas, database), sess.Schemas)
	if !sres.OK() {
		return model.DatabaseSchema{}, dbError(database, model.StageEnumerateSchemas, sres)
	}

	out := model.DatabaseSchema{
		Name:          database,
		Engine:        engine,
		ServerVersion: version,
		Schemas:       nonNil(schemas),
		Tables:        []model.Table{},
		Views:         []model.View{},
		Routines:      []model.Routine{},
		Triggers:      []model.Trigger{},
	}

	for _, schema := range out.Schemas {
		out.Tables = append(out.Tables, r.tables(ctx, schema)...)
	}
	for _, schema := range out.Schemas {
		out.Views = append(out.Views, r.views(ctx, schema)...)
		out.Routines = append(out.Routines, r.routines(ctx, schema)...)
		out.Triggers = append(out.Triggers, r.triggers(ctx, schema)...)
	}

	out.Metadata = model.CollectionMetadata{
		Status:         model.StatusSuccess,
		StartedAt:      started,
		Duration:       c.now().Sub(started),
		ObjectFailures: r.rec.Drain(),
		Warnings:       r.warnings,
	}

	log.With().
		Int("tables", len(out.Tables)).
		Int("views", len(out.Views)).
		Int("object_failures", len(out.Metadata.ObjectFailures)).
		Dur("elapsed", out.Metadata.Duration).
		Logger().
		Info("database collected")
	return out, nil
}

func (r *run) tables(ctx context.Context, schema string) []model.Table {
	tables, res := retry.Run(ctx, r.c.policy, r.c.hook(r.log, model.StageEnumerateTables, schema),
		func(ctx context.Context) ([]model.Table, error) { return r.sess.Tables(ctx, schema) })
	if !res.OK() {
		r.fail(model.ObjectTable, schema, schema, model.StageEnumerateTables, res)
		return nil
	}

	for i := range tables {
		t := &tables[i]
		t.Schema = schema
		t.Columns = perTable(ctx, r, t, model.StageCollectColumns, r.sess.Columns)
		t.Constraints = perTable(ctx, r, t, model.StageCollectConstraints, r.sess.Constraints)
		t.Indexes = perTable(ctx, r, t, model.StageCollectIndexes, r.sess.Indexes)
	}
	return tables
}

// perTable runs one per-table stage. A failure is recorded against the
// table and an empty collection is returned so siblings keep going.
func perTable[T any](ctx context.Context, r *run, t *model.Table, st model.CollectionStage,
	op func(context.Context, string, string) ([]T, error)) []T {
	v, res := retry.Run(ctx, r.c.policy, r.c.hook(r.log, st, t.Name),
		func(ctx context.Context) ([]T, error) { return op(ctx, t.Schema, t.Name) })
	if !res.OK() {
		r.fail(model.ObjectTable, t.Schema, t.Name, st, res)
		return []T{}
	}
	return nonNil(v)
}

func (r *run) views(ctx context.Context, schema string) []model.View {
	return auxiliary(ctx, r, schema, model.StageCollectViews, model.ObjectView, r.sess.Views)
}

func (r *run) routines(ctx context.Context, schema string) []model.Routine {
	return auxiliary(ctx, r, schema, model.StageCollectRoutines, model.ObjectRoutine, r.sess.Routines)
}

func (r *run) triggers(ctx context.Context, schema string) []model.Trigger {
	return auxiliary(ctx, r, schema, model.StageCollectTriggers, model.ObjectTrigger, r.sess.Triggers)
}

// auxiliary runs a schema-wide stage for non-relational objects. Failures
// are recorded under the auxiliary object type and echoed as a warning.
func auxiliary[T any](ctx context.Context, r *run, schema string, st model.CollectionStage, ot model.ObjectType,
	op func(context.Context, string) ([]T, error)) []T {
	v, res := retry.Run(ctx, r.c.policy, r.c.hook(r.log, st, schema),
		func(ctx context.Context) ([]T, error) { return op(ctx, schema) })
	if !res.OK() {
		r.fail(ot, schema, schema, st, res)
		r.warn("%s skipped for schema %q: %s", st, schema, errs.Message(res.Err))
		return nil
	}
	return v
}

func (r *run) fail(ot model.ObjectType, schema, name string, st model.CollectionStage, res retry.Result) {
	s := schema
	f := model.ObjectFailure{
		ObjectType:     ot,
		ObjectName:     name,
		SchemaName:     &s,
		Stage:          st,
		ErrorCategory:  res.Category,
		ErrorMessage:   errs.Message(res.Err),
		RetryAttempts:  res.Retries,
		FinalBackoffMS: res.FinalBackoffMS(),
	}
	if r.rec.Record(f) {
		r.log.With().
			Str("stage", st.String()).
			Str("schema", schema).
			Str("object", name).
			Str("category", res.Category.String()).
			Uint("retries", res.Retries).
			Logger().
			Warn("object collection failed")
	}
}

func (r *run) warn(format string, args ...any) {
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

func (c *Collector) hook(log *logger.Logger, st model.CollectionStage, object string) retry.Hook {
	return func(attempt int, cat errs.Category, wait time.Duration, err error) {
		log.With().
			Str("stage", st.String()).
			Str("object", object).
			Int("attempt", attempt).
			Str("category", cat.String()).
			Dur("backoff", wait).
			Str("error", errs.Message(err)).
			Logger().
			Debug("retrying catalog operation")
	}
}

func dbError(database string, st model.CollectionStage, res retry.Result) *DatabaseError {
	return &DatabaseError{Failure: model.DatabaseFailure{
		Database:       database,
		Stage:          st,
		ErrorCategory:  res.Category,
		ErrorMessage:   errs.Message(res.Err),
		RetryAttempts:  res.Retries,
		FinalBackoffMS: res.FinalBackoffMS(),
	}}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
