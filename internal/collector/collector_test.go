package collector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/collector/collectortest"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/retry"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, Base: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func adapterWith(db *collectortest.Database) *collectortest.Adapter {
	return &collectortest.Adapter{
		Order: []string{"app"},
		DBs:   map[string]*collectortest.Database{"app": db},
	}
}

func TestCollect_IndexFailureKeepsColumnsAndSiblings(t *testing.T) {
	db := collectortest.SimpleDatabase("T", "U")
	db.Fail = map[collectortest.Key]error{
		{Stage: model.StageCollectIndexes, Object: "public.T"}: errs.New(errs.Permission, "permission denied for relation T"),
	}
	a := adapterWith(db)

	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(), a, "app")
	require.NoError(t, err)

	require.Len(t, out.Tables, 2)
	tbl := out.Tables[0]
	assert.Equal(t, "T", tbl.Name)
	assert.Len(t, tbl.Columns, 2)
	assert.Len(t, tbl.Constraints, 1)
	assert.Empty(t, tbl.Indexes)
	assert.NotNil(t, tbl.Indexes)

	assert.Len(t, out.Tables[1].Indexes, 1, "next table must still be collected")

	require.Len(t, out.Metadata.ObjectFailures, 1)
	f := out.Metadata.ObjectFailures[0]
	assert.Equal(t, model.ObjectTable, f.ObjectType)
	assert.Equal(t, "T", f.ObjectName)
	assert.Equal(t, model.StageCollectIndexes, f.Stage)
	assert.Equal(t, errs.Permission, f.ErrorCategory)
	assert.Equal(t, uint(0), f.RetryAttempts)
	assert.Nil(t, f.FinalBackoffMS)
	require.NotNil(t, f.SchemaName)
	assert.Equal(t, "public", *f.SchemaName)

	assert.Equal(t, model.StatusSuccess, out.Metadata.Status)
	assert.Equal(t, 1, a.Calls("app", collectortest.Key{Stage: model.StageCollectIndexes, Object: "public.T"}))
}

func TestCollect_TransientFailureIsRetried(t *testing.T) {
	key := collectortest.Key{Stage: model.StageCollectColumns, Object: "public.orders"}
	db := collectortest.SimpleDatabase("orders")
	db.Fail = map[collectortest.Key]error{key: errs.New(errs.Timeout, "canceling statement due to lock timeout")}
	db.Times = map[collectortest.Key]int{key: 2}
	a := adapterWith(db)

	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(), a, "app")
	require.NoError(t, err)

	assert.Empty(t, out.Metadata.ObjectFailures)
	assert.Len(t, out.Tables[0].Columns, 2)
	assert.Equal(t, 3, a.Calls("app", key))
}

func TestCollect_ExhaustedRetriesRecordAuditTrail(t *testing.T) {
	key := collectortest.Key{Stage: model.StageCollectConstraints, Object: "public.orders"}
	db := collectortest.SimpleDatabase("orders")
	db.Fail = map[collectortest.Key]error{key: errs.New(errs.Connection, "server closed the connection")}
	a := adapterWith(db)

	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(), a, "app")
	require.NoError(t, err)

	require.Len(t, out.Metadata.ObjectFailures, 1)
	f := out.Metadata.ObjectFailures[0]
	assert.Equal(t, model.StageCollectConstraints, f.Stage)
	assert.Equal(t, uint(2), f.RetryAttempts)
	assert.NotNil(t, f.FinalBackoffMS)
	assert.Equal(t, 3, a.Calls("app", key))
	assert.Len(t, out.Tables[0].Columns, 2)
	assert.Len(t, out.Tables[0].Indexes, 1)
}

func TestCollect_ConnectFailureIsDatabaseError(t *testing.T) {
	db := collectortest.SimpleDatabase("orders")
	db.ConnectErr = errs.New(errs.Permission, "password authentication failed for user \"reader\"")
	a := adapterWith(db)

	_, err := collector.New(fastPolicy(), nil).Collect(context.Background(), a, "app")
	require.Error(t, err)

	var dbErr *collector.DatabaseError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, "app", dbErr.Failure.Database)
	assert.Equal(t, errs.Permission, dbErr.Failure.ErrorCategory)
	assert.Equal(t, model.StageOther, dbErr.Failure.Stage)
	assert.Equal(t, uint(0), dbErr.Failure.RetryAttempts)
}

func TestCollect_SchemaEnumerationFailureIsDatabaseError(t *testing.T) {
	key := collectortest.Key{Stage: model.StageEnumerateSchemas}
	db := collectortest.SimpleDatabase("orders")
	db.Fail = map[collectortest.Key]error{key: errs.New(errs.Timeout, "statement timeout")}
	a := adapterWith(db)

	_, err := collector.New(fastPolicy(), nil).Collect(context.Background(), a, "app")

	var dbErr *collector.DatabaseError
	require.True(t, errors.As(err, &dbErr))
	assert.Equal(t, model.StageEnumerateSchemas, dbErr.Failure.Stage)
	assert.Equal(t, uint(2), dbErr.Failure.RetryAttempts)
	assert.Equal(t, 3, a.Calls("app", key))
}

func TestCollect_TableEnumerationFailureSkipsOnlyThatSchema(t *testing.T) {
	db := &collectortest.Database{
		Schemas: []string{"broken", "public"},
		Tables:  map[string][]string{"broken": {"x"}, "public": {"orders"}},
		Fail: map[collectortest.Key]error{
			{Stage: model.StageEnumerateTables, Object: "broken"}: errs.New(errs.NotFound, "schema broken does not exist"),
		},
	}
	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(), adapterWith(db), "app")
	require.NoError(t, err)

	require.Len(t, out.Tables, 1)
	assert.Equal(t, "orders", out.Tables[0].Name)
	require.Len(t, out.Metadata.ObjectFailures, 1)
	assert.Equal(t, model.StageEnumerateTables, out.Metadata.ObjectFailures[0].Stage)
	assert.Equal(t, model.ObjectTable, out.Metadata.ObjectFailures[0].ObjectType)
}

func TestCollect_AuxiliaryFailureBecomesWarning(t *testing.T) {
	db := collectortest.SimpleDatabase("orders")
	db.Fail = map[collectortest.Key]error{
		{Stage: model.StageCollectViews, Object: "public"}:    errs.New(errs.Permission, "permission denied for pg_views"),
		{Stage: model.StageCollectTriggers, Object: "public"}: errs.New(errs.NotFound, "no trigger catalog"),
	}
	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(), adapterWith(db), "app")
	require.NoError(t, err)

	assert.Empty(t, out.Views)
	require.Len(t, out.Metadata.ObjectFailures, 2)
	assert.Equal(t, model.ObjectView, out.Metadata.ObjectFailures[0].ObjectType)
	assert.Equal(t, model.ObjectTrigger, out.Metadata.ObjectFailures[1].ObjectType)
	assert.Len(t, out.Metadata.Warnings, 2)
	assert.Contains(t, out.Metadata.Warnings[0], "collect_views")
}

func TestCollect_RoutineListingFailureIsRoutine(t *testing.T) {
	db := collectortest.SimpleDatabase("orders")
	db.Fail = map[collectortest.Key]error{
		{Stage: model.StageCollectRoutines, Object: "public"}: errs.New(errs.Permission, "SELECT command denied on routines"),
	}
	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(), adapterWith(db), "shop")
	require.NoError(t, err)

	require.Len(t, out.Metadata.ObjectFailures, 1)
	f := out.Metadata.ObjectFailures[0]
	assert.Equal(t, model.ObjectRoutine, f.ObjectType)
	assert.Equal(t, model.StageCollectRoutines, f.Stage)
	assert.Equal(t, "routine", f.ObjectType.String())
	assert.Len(t, out.Metadata.Warnings, 1)
	assert.Len(t, out.Tables, 1)
}

func TestCollect_FullSuccess(t *testing.T) {
	out, err := collector.New(fastPolicy(), nil).Collect(context.Background(),
		adapterWith(collectortest.SimpleDatabase("a", "b")), "app")
	require.NoError(t, err)

	assert.Equal(t, "app", out.Name)
	assert.Equal(t, "fake", out.Engine)
	assert.Equal(t, "fake 1.0", out.ServerVersion)
	assert.Equal(t, []string{"public"}, out.Schemas)
	assert.Len(t, out.Tables, 2)
	assert.Len(t, out.Views, 1)
	assert.NotNil(t, out.Metadata.ObjectFailures)
	assert.Empty(t, out.Metadata.ObjectFailures)
	assert.Empty(t, out.Metadata.Warnings)
}

func TestRecorder(t *testing.T) {
	r := collector.NewRecorder()
	schema := "public"
	f := model.ObjectFailure{ObjectType: model.ObjectTable, ObjectName: "t", SchemaName: &schema, Stage: model.StageCollectIndexes}

	assert.True(t, r.Record(f))
	assert.False(t, r.Record(f), "duplicate object+stage must be rejected")

	g := f
	g.Stage = model.StageCollectColumns
	assert.True(t, r.Record(g), "same object at a later stage is a separate record")
	assert.Equal(t, 2, r.Len())

	out := r.Drain()
	assert.Len(t, out, 2)
	assert.Panics(t, func() { r.Record(f) })

	assert.NotNil(t, collector.NewRecorder().Drain())
}
