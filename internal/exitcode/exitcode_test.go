package exitcode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/orchestrator"
)

func success(name string, failures ...model.ObjectType) model.DatabaseSchema {
	s := model.DatabaseSchema{Name: name, Metadata: model.CollectionMetadata{Status: model.StatusSuccess}}
	for _, ot := range failures {
		s.Metadata.ObjectFailures = append(s.Metadata.ObjectFailures, model.ObjectFailure{
			ObjectType: ot, ObjectName: name + "_obj", Stage: model.StageCollectColumns,
		})
	}
	return s
}

func dbFailure(name string) model.DatabaseFailure {
	return model.DatabaseFailure{Database: name, ErrorCategory: errs.Connection, ErrorMessage: "refused"}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		out       orchestrator.Output
		nonStrict int
		strict    int
	}{
		{
			name:      "one success one database failure",
			out:       &orchestrator.Bundle{Successes: []model.DatabaseSchema{success("a")}, Failures: []model.DatabaseFailure{dbFailure("b")}},
			nonStrict: OK,
			strict:    Failure,
		},
		{
			name:      "view-only object failures",
			out:       &orchestrator.Bundle{Successes: []model.DatabaseSchema{success("a", model.ObjectView, model.ObjectView)}},
			nonStrict: OK,
			strict:    OK,
		},
		{
			name: "auxiliary object failures",
			out: &orchestrator.Bundle{Successes: []model.DatabaseSchema{
				success("a", model.ObjectProcedure, model.ObjectFunction, model.ObjectRoutine, model.ObjectTrigger),
			}},
			nonStrict: OK,
			strict:    OK,
		},
		{
			name:      "table object failure",
			out:       &orchestrator.Bundle{Successes: []model.DatabaseSchema{success("a"), success("b", model.ObjectTable)}},
			nonStrict: OK,
			strict:    Failure,
		},
		{
			name:      "all databases failed",
			out:       &orchestrator.Bundle{Failures: []model.DatabaseFailure{dbFailure("a"), dbFailure("b")}},
			nonStrict: Failure,
			strict:    Failure,
		},
		{
			name:      "nothing selected",
			out:       &orchestrator.Bundle{},
			nonStrict: Failure,
			strict:    Failure,
		},
		{
			name:      "success with skipped siblings",
			out:       &orchestrator.Bundle{Successes: []model.DatabaseSchema{success("a")}, Skipped: []string{"b"}},
			nonStrict: OK,
			strict:    Failure,
		},
		{
			name: "per-database with a stub",
			out: &orchestrator.PerDatabase{Schemas: []orchestrator.NamedSchema{
				{Database: "a", Schema: success("a")},
				{Database: "b", Schema: model.NewStub("b", "fake", model.StatusFailed, "refused")},
			}},
			nonStrict: OK,
			strict:    Failure,
		},
		{
			name: "per-database all stubs",
			out: &orchestrator.PerDatabase{Schemas: []orchestrator.NamedSchema{
				{Database: "b", Schema: model.NewStub("b", "fake", model.StatusFailed, "refused")},
			}},
			nonStrict: Failure,
			strict:    Failure,
		},
		{
			name: "server enumeration failed",
			out: &orchestrator.Bundle{
				ServerError: &orchestrator.EntryError{Category: errs.Connection, Message: "refused"},
			},
			nonStrict: Failure,
			strict:    Failure,
		},
		{
			name: "per-database server enumeration failed",
			out: &orchestrator.PerDatabase{Manifest: orchestrator.Manifest{
				ServerError: &orchestrator.EntryError{Category: errs.Permission, Message: "denied"},
			}},
			nonStrict: Failure,
			strict:    Failure,
		},
		{
			name:      "clean per-database",
			out:       &orchestrator.PerDatabase{Schemas: []orchestrator.NamedSchema{{Database: "a", Schema: success("a", model.ObjectView)}}},
			nonStrict: OK,
			strict:    OK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.nonStrict, Compute(tt.out, false), "non-strict")
			assert.Equal(t, tt.strict, Compute(tt.out, true), "strict")
		})
	}
}
