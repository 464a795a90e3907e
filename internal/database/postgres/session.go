package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/dbmeta/internal/model"
)

// session implements collector.Session over one database's pool.
type session struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// query runs sql and collects every row with fn. It never returns a nil
// slice on success.
func query[T any](ctx context.Context, s *session, what, sql string, fn pgx.RowToFunc[T], args ...any) ([]T, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, what)
	}
	out, err := pgx.CollectRows(rows, fn)
	if err != nil {
		return nil, mapError(err, what)
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

func (s *session) ServerVersion(ctx context.Context) (string, error) {
	v, err := query(ctx, s, "failed to read server version", qServerVersion, pgx.RowTo[string])
	if err != nil || len(v) == 0 {
		return "", err
	}
	return v[0], nil
}

func (s *session) Schemas(ctx context.Context) ([]string, error) {
	return query(ctx, s, "failed to list schemas", qSchemas, pgx.RowTo[string])
}

func (s *session) Tables(ctx context.Context, schema string) ([]model.Table, error) {
	return query(ctx, s, "failed to list tables in "+schema, qTables, func(row pgx.CollectableRow) (model.Table, error) {
		t := model.Table{Schema: schema}
		err := row.Scan(&t.Name, &t.Type, &t.Comment, &t.RowEstimate)
		return t, err
	}, schema)
}

func (s *session) Columns(ctx context.Context, schema, table string) ([]model.Column, error) {
	return query(ctx, s, "failed to read columns of "+schema+"."+table, qColumns, func(row pgx.CollectableRow) (model.Column, error) {
		var c model.Column
		err := row.Scan(&c.Name, &c.Position, &c.DataType, &c.Nullable, &c.Default, &c.MaxLength, &c.Comment, &c.IsAutoIncrement)
		return c, err
	}, schema, table)
}

var constraintKinds = map[string]model.ConstraintKind{
	"p": model.ConstraintPrimaryKey,
	"u": model.ConstraintUnique,
	"f": model.ConstraintForeignKey,
	"c": model.ConstraintCheck,
}

func (s *session) Constraints(ctx context.Context, schema, table string) ([]model.Constraint, error) {
	return query(ctx, s, "failed to read constraints of "+schema+"."+table, qConstraints, func(row pgx.CollectableRow) (model.Constraint, error) {
		var (
			c    model.Constraint
			kind string
			def  string
		)
		err := row.Scan(&c.Name, &kind, &c.Columns, &c.ReferencedSchema, &c.ReferencedTable, &c.ReferencedColumns, &def)
		c.Kind = constraintKinds[kind]
		if c.Kind == model.ConstraintCheck {
			c.Definition = def
		}
		if len(c.ReferencedColumns) == 0 {
			c.ReferencedColumns = nil
		}
		return c, err
	}, schema, table)
}

func (s *session) Indexes(ctx context.Context, schema, table string) ([]model.Index, error) {
	return query(ctx, s, "failed to read indexes of "+schema+"."+table, qIndexes, func(row pgx.CollectableRow) (model.Index, error) {
		var i model.Index
		err := row.Scan(&i.Name, &i.Method, &i.Columns, &i.IsUnique, &i.IsPrimary)
		return i, err
	}, schema, table)
}

func (s *session) Views(ctx context.Context, schema string) ([]model.View, error) {
	return query(ctx, s, "failed to list views in "+schema, qViews, func(row pgx.CollectableRow) (model.View, error) {
		v := model.View{Schema: schema}
		err := row.Scan(&v.Name, &v.Materialized, &v.Comment)
		return v, err
	}, schema)
}

func (s *session) Routines(ctx context.Context, schema string) ([]model.Routine, error) {
	return query(ctx, s, "failed to list routines in "+schema, qRoutines, func(row pgx.CollectableRow) (model.Routine, error) {
		r := model.Routine{Schema: schema}
		err := row.Scan(&r.Name, &r.Kind, &r.Arguments, &r.ReturnType, &r.Language)
		return r, err
	}, schema)
}

func (s *session) Triggers(ctx context.Context, schema string) ([]model.Trigger, error) {
	return query(ctx, s, "failed to list triggers in "+schema, qTriggers, func(row pgx.CollectableRow) (model.Trigger, error) {
		t := model.Trigger{Schema: schema}
		err := row.Scan(&t.Name, &t.Table, &t.Timing, &t.Event)
		return t, err
	}, schema)
}

func (s *session) Close() error {
	s.pool.Close()
	return nil
}
