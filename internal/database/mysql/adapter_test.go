package mysql

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/database"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/retry"
)

func newMockAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock, *[]string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	var dsns []string
	a, err := New(database.DefaultConfig(database.EngineMySQL, "reader:s3cret@tcp(db:3306)/"), func(dsn string) (*sql.DB, error) {
		dsns = append(dsns, dsn)
		return db, nil
	})
	require.NoError(t, err)
	return a, mock, &dsns
}

func TestEnumerateDatabases(t *testing.T) {
	a, mock, _ := newMockAdapter(t)
	rows := sqlmock.NewRows([]string{"schema_name"}).
		AddRow("information_schema").AddRow("mysql").AddRow("performance_schema").AddRow("shop").AddRow("sys").AddRow("users")
	mock.ExpectQuery("FROM information_schema.schemata").WillReturnRows(rows)
	mock.ExpectClose()

	names, err := a.EnumerateDatabases(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "users"}, names)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnumerateDatabases_IncludeSystem(t *testing.T) {
	a, mock, _ := newMockAdapter(t)
	mock.ExpectQuery("FROM information_schema.schemata").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("mysql").AddRow("shop"))
	mock.ExpectClose()

	names, err := a.EnumerateDatabases(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"mysql", "shop"}, names)
}

func TestEnumerateDatabases_PermissionDenied(t *testing.T) {
	a, mock, _ := newMockAdapter(t)
	mock.ExpectQuery("FROM information_schema.schemata").
		WillReturnError(&gomysql.MySQLError{Number: 1227, Message: "Access denied; you need the SHOW DATABASES privilege"})
	mock.ExpectClose()

	_, err := a.EnumerateDatabases(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, errs.Permission, errs.Classify(err))
}

func TestConnect_BindsDatabase(t *testing.T) {
	a, _, dsns := newMockAdapter(t)
	_, err := a.Connect(context.Background(), "shop")
	require.NoError(t, err)
	require.Len(t, *dsns, 1)
	assert.Contains(t, (*dsns)[0], "@tcp(db:3306)/shop")
	assert.Equal(t, collector.Server{Engine: "mysql", Host: "db:3306"}, a.Server())
}

func TestSession_ConstraintsAndIndexes(t *testing.T) {
	a, mock, _ := newMockAdapter(t)
	sess, err := a.Connect(context.Background(), "shop")
	require.NoError(t, err)

	mock.ExpectQuery("FROM information_schema.table_constraints").WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "col", "rs", "rt", "rc"}).
			AddRow("PRIMARY", "PRIMARY KEY", "id", "", "", "").
			AddRow("chk_total", "CHECK", "", "", "", "").
			AddRow("fk_user", "FOREIGN KEY", "tenant_id", "shop", "users", "tenant_id").
			AddRow("fk_user", "FOREIGN KEY", "user_id", "shop", "users", "id"))
	mock.ExpectQuery("FROM information_schema.statistics").WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "col", "uniq"}).
			AddRow("PRIMARY", "BTREE", "id", true).
			AddRow("idx_user", "BTREE", "tenant_id", false).
			AddRow("idx_user", "BTREE", "user_id", false))

	cons, err := sess.Constraints(context.Background(), "shop", "orders")
	require.NoError(t, err)
	require.Len(t, cons, 3)
	assert.Equal(t, model.Constraint{Name: "PRIMARY", Kind: model.ConstraintPrimaryKey, Columns: []string{"id"}}, cons[0])
	assert.Equal(t, model.ConstraintCheck, cons[1].Kind)
	assert.Empty(t, cons[1].Columns)
	assert.Equal(t, []string{"tenant_id", "user_id"}, cons[2].Columns)
	assert.Equal(t, []string{"tenant_id", "id"}, cons[2].ReferencedColumns)
	assert.Equal(t, "users", cons[2].ReferencedTable)

	idx, err := sess.Indexes(context.Background(), "shop", "orders")
	require.NoError(t, err)
	require.Len(t, idx, 2)
	assert.True(t, idx[0].IsPrimary)
	assert.True(t, idx[0].IsUnique)
	assert.Equal(t, []string{"tenant_id", "user_id"}, idx[1].Columns)
	assert.False(t, idx[1].IsUnique)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSession_SchemaNotVisible(t *testing.T) {
	a, mock, _ := newMockAdapter(t)
	sess, err := a.Connect(context.Background(), "ghost")
	require.NoError(t, err)

	mock.ExpectQuery("FROM information_schema.schemata").WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}))

	_, err = sess.Schemas(context.Background())
	assert.Equal(t, errs.NotFound, errs.Classify(err))
}

// A full collection over sqlmock: the triggers stage is denied, which must
// degrade to a warning instead of failing the database.
func TestCollect_ThroughCollector(t *testing.T) {
	a, mock, _ := newMockAdapter(t)

	mock.ExpectQuery("SELECT VERSION").WillReturnRows(sqlmock.NewRows([]string{"v"}).AddRow("8.0.36"))
	mock.ExpectQuery("FROM information_schema.schemata").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("shop"))
	mock.ExpectQuery("FROM information_schema.tables").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "comment", "rows"}).AddRow("orders", "BASE TABLE", "", 42))
	mock.ExpectQuery("FROM information_schema.columns").WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "pos", "type", "nullable", "default", "maxlen", "comment", "ai"}).
			AddRow("id", 1, "bigint unsigned", false, nil, nil, "", true).
			AddRow("note", 2, "varchar(200)", true, "n/a", 200, "free text", false))
	mock.ExpectQuery("FROM information_schema.table_constraints").WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "col", "rs", "rt", "rc"}).AddRow("PRIMARY", "PRIMARY KEY", "id", "", "", ""))
	mock.ExpectQuery("FROM information_schema.statistics").WithArgs("shop", "orders").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "col", "uniq"}).AddRow("PRIMARY", "BTREE", "id", true))
	mock.ExpectQuery("FROM information_schema.views").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectQuery("FROM information_schema.routines").WithArgs("shop").
		WillReturnRows(sqlmock.NewRows([]string{"name", "type", "args", "ret", "body"}).AddRow("total", "FUNCTION", "IN o bigint", "decimal(10,2)", "SQL"))
	mock.ExpectQuery("FROM information_schema.triggers").WithArgs("shop").
		WillReturnError(&gomysql.MySQLError{Number: 1142, Message: "TRIGGER command denied"})
	mock.ExpectClose()

	p := retry.Policy{MaxAttempts: 3, Base: time.Millisecond, MaxBackoff: time.Millisecond}
	schema, err := collector.New(p, nil).Collect(context.Background(), a, "shop")
	require.NoError(t, err)

	assert.Equal(t, "8.0.36", schema.ServerVersion)
	assert.Equal(t, []string{"shop"}, schema.Schemas)
	require.Len(t, schema.Tables, 1)
	tbl := schema.Tables[0]
	assert.EqualValues(t, 42, tbl.RowEstimate)
	require.Len(t, tbl.Columns, 2)
	assert.True(t, tbl.Columns[0].IsAutoIncrement)
	assert.Nil(t, tbl.Columns[0].Default)
	require.NotNil(t, tbl.Columns[1].MaxLength)
	assert.EqualValues(t, 200, *tbl.Columns[1].MaxLength)
	assert.Len(t, schema.Routines, 1)

	require.Len(t, schema.Metadata.ObjectFailures, 1)
	f := schema.Metadata.ObjectFailures[0]
	assert.Equal(t, model.ObjectTrigger, f.ObjectType)
	assert.Equal(t, errs.Permission, f.ErrorCategory)
	assert.Zero(t, f.RetryAttempts)
	assert.Len(t, schema.Metadata.Warnings, 1)

	require.NoError(t, mock.ExpectationsWereMet())
}
