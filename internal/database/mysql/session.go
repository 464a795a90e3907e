package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/model"
)

type session struct {
	db      *sql.DB
	name    string
	timeout time.Duration
}

type scanner interface {
	Scan(dest ...any) error
}

func scanString(r scanner) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}

// query runs q and scans every row with fn. It never returns a nil slice on
// success.
func query[T any](ctx context.Context, s *session, what, q string, fn func(scanner) (T, error), args ...any) ([]T, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mapError(err, what)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := fn(rows)
		if err != nil {
			return nil, mapError(err, what)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, what)
	}
	return out, nil
}

func (s *session) ServerVersion(ctx context.Context) (string, error) {
	v, err := query(ctx, s, "failed to read server version", qServerVersion, scanString)
	if err != nil || len(v) == 0 {
		return "", err
	}
	return v[0], nil
}

// Schemas confirms the session's database is visible and returns it.
func (s *session) Schemas(ctx context.Context) ([]string, error) {
	names, err := query(ctx, s, "failed to read schema", qSchema, scanString, s.name)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, errs.New(errs.NotFound, "database "+s.name+" is not visible")
	}
	return names, nil
}

func (s *session) Tables(ctx context.Context, schema string) ([]model.Table, error) {
	return query(ctx, s, "failed to list tables in "+schema, qTables, func(r scanner) (model.Table, error) {
		t := model.Table{Schema: schema}
		err := r.Scan(&t.Name, &t.Type, &t.Comment, &t.RowEstimate)
		return t, err
	}, schema)
}

func (s *session) Columns(ctx context.Context, schema, table string) ([]model.Column, error) {
	return query(ctx, s, "failed to read columns of "+schema+"."+table, qColumns, func(r scanner) (model.Column, error) {
		var c model.Column
		err := r.Scan(&c.Name, &c.Position, &c.DataType, &c.Nullable, &c.Default, &c.MaxLength, &c.Comment, &c.IsAutoIncrement)
		return c, err
	}, schema, table)
}

type constraintRow struct {
	name, kind, column, refSchema, refTable, refColumn string
}

// Constraints folds one row per constraint column into one Constraint each,
// keeping the server's column order.
func (s *session) Constraints(ctx context.Context, schema, table string) ([]model.Constraint, error) {
	rows, err := query(ctx, s, "failed to read constraints of "+schema+"."+table, qConstraints, func(r scanner) (constraintRow, error) {
		var c constraintRow
		err := r.Scan(&c.name, &c.kind, &c.column, &c.refSchema, &c.refTable, &c.refColumn)
		return c, err
	}, schema, table)
	if err != nil {
		return nil, err
	}

	out := []model.Constraint{}
	for _, row := range rows {
		if n := len(out); n == 0 || out[n-1].Name != row.name {
			out = append(out, model.Constraint{
				Name:             row.name,
				Kind:             model.ConstraintKind(row.kind),
				Columns:          []string{},
				ReferencedSchema: row.refSchema,
				ReferencedTable:  row.refTable,
			})
		}
		c := &out[len(out)-1]
		if row.column != "" {
			c.Columns = append(c.Columns, row.column)
		}
		if row.refColumn != "" {
			c.ReferencedColumns = append(c.ReferencedColumns, row.refColumn)
		}
	}
	return out, nil
}

type indexRow struct {
	name, method, column string
	unique               bool
}

func (s *session) Indexes(ctx context.Context, schema, table string) ([]model.Index, error) {
	rows, err := query(ctx, s, "failed to read indexes of "+schema+"."+table, qIndexes, func(r scanner) (indexRow, error) {
		var i indexRow
		err := r.Scan(&i.name, &i.method, &i.column, &i.unique)
		return i, err
	}, schema, table)
	if err != nil {
		return nil, err
	}

	out := []model.Index{}
	for _, row := range rows {
		if n := len(out); n == 0 || out[n-1].Name != row.name {
			out = append(out, model.Index{
				Name:      row.name,
				Method:    row.method,
				Columns:   []string{},
				IsUnique:  row.unique,
				IsPrimary: row.name == "PRIMARY",
			})
		}
		if row.column != "" {
			ix := &out[len(out)-1]
			ix.Columns = append(ix.Columns, row.column)
		}
	}
	return out, nil
}

func (s *session) Views(ctx context.Context, schema string) ([]model.View, error) {
	return query(ctx, s, "failed to list views in "+schema, qViews, func(r scanner) (model.View, error) {
		v := model.View{Schema: schema}
		err := r.Scan(&v.Name)
		return v, err
	}, schema)
}

func (s *session) Routines(ctx context.Context, schema string) ([]model.Routine, error) {
	return query(ctx, s, "failed to list routines in "+schema, qRoutines, func(r scanner) (model.Routine, error) {
		rt := model.Routine{Schema: schema}
		err := r.Scan(&rt.Name, &rt.Kind, &rt.Arguments, &rt.ReturnType, &rt.Language)
		return rt, err
	}, schema)
}

func (s *session) Triggers(ctx context.Context, schema string) ([]model.Trigger, error) {
	return query(ctx, s, "failed to list triggers in "+schema, qTriggers, func(r scanner) (model.Trigger, error) {
		t := model.Trigger{Schema: schema}
		err := r.Scan(&t.Name, &t.Table, &t.Timing, &t.Event)
		return t, err
	}, schema)
}

func (s *session) Close() error {
	return s.db.Close()
}
