package model

import (
	"fmt"

	"github.com/koustreak/dbmeta/internal/errs"
)

// CollectionStage identifies where in the per-database pipeline a failure
// occurred. Stages run in declaration order.
type CollectionStage int

const (
	StageEnumerateSchemas CollectionStage = iota
	StageEnumerateTables
	StageCollectColumns
	StageCollectConstraints
	StageCollectIndexes
	StageCollectViews
	StageCollectRoutines
	StageCollectTriggers
	StageOther
)

var stageNames = []string{
	"enumerate_schemas",
	"enumerate_tables",
	"collect_columns",
	"collect_constraints",
	"collect_indexes",
	"collect_views",
	"collect_routines",
	"collect_triggers",
	"other",
}

func (s CollectionStage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "other"
	}
	return stageNames[s]
}

func (s CollectionStage) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *CollectionStage) UnmarshalText(b []byte) error {
	for i, n := range stageNames {
		if n == string(b) {
			*s = CollectionStage(i)
			return nil
		}
	}
	return fmt.Errorf("unknown collection stage %q", string(b))
}

// ObjectType is the kind of schema object a failure refers to.
// ObjectRoutine is used when a schema's routine listing fails as a whole,
// since the listing mixes procedures and functions on every engine.
type ObjectType int

const (
	ObjectTable ObjectType = iota
	ObjectView
	ObjectIndex
	ObjectConstraint
	ObjectProcedure
	ObjectFunction
	ObjectTrigger
	ObjectCustomType
	ObjectRoutine
)

var objectTypeNames = []string{
	"table",
	"view",
	"index",
	"constraint",
	"procedure",
	"function",
	"trigger",
	"custom_type",
	"routine",
}

func (o ObjectType) String() string {
	if o < 0 || int(o) >= len(objectTypeNames) {
		return "unknown"
	}
	return objectTypeNames[o]
}

func (o ObjectType) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *ObjectType) UnmarshalText(b []byte) error {
	for i, n := range objectTypeNames {
		if n == string(b) {
			*o = ObjectType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown object type %q", string(b))
}

// ObjectFailure is one failed sub-object within an otherwise successful
// database collection. (SchemaName, ObjectName, Stage) is unique within a
// database's result.
type ObjectFailure struct {
	ObjectType     ObjectType      `json:"objectType"`
	ObjectName     string          `json:"objectName"`
	SchemaName     *string         `json:"schemaName,omitempty"`
	Stage          CollectionStage `json:"stage"`
	ErrorCategory  errs.Category   `json:"errorCategory"`
	ErrorMessage   string          `json:"errorMessage"`
	RetryAttempts  uint            `json:"retryAttempts"`
	FinalBackoffMS *uint64         `json:"finalBackoffMs,omitempty"`
}

// Key returns the identity used to enforce one record per object per stage.
func (f ObjectFailure) Key() string {
	schema := ""
	if f.SchemaName != nil {
		schema = *f.SchemaName
	}
	return fmt.Sprintf("%s\x00%s\x00%d", schema, f.ObjectName, f.Stage)
}

// DatabaseFailure is a whole-database failure: the database could not be
// connected to or its schemas could not be listed.
type DatabaseFailure struct {
	Database       string          `json:"database"`
	Stage          CollectionStage `json:"stage"`
	ErrorCategory  errs.Category   `json:"errorCategory"`
	ErrorMessage   string          `json:"errorMessage"`
	RetryAttempts  uint            `json:"retryAttempts"`
	FinalBackoffMS *uint64         `json:"finalBackoffMs,omitempty"`
}

// Summary renders the failure as a single warning line for stub schemas.
func (f DatabaseFailure) Summary() string {
	return fmt.Sprintf("collection failed at %s (%s) after %d retries: %s",
		f.Stage, f.ErrorCategory, f.RetryAttempts, f.ErrorMessage)
}
