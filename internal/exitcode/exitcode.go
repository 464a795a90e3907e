// Package exitcode derives the process exit status from a run's output.
package exitcode

import (
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/orchestrator"
)

const (
	OK      = 0
	Failure = 1
)

// Compute returns OK or Failure for out.
//
// Non-strict: OK when at least one database was collected, even partially.
// Strict: Failure when any database failed outright or any collected
// database lost table-level structure. View, routine and trigger
// degradation is tolerated in both modes. A server whose databases could
// not be listed always fails.
func Compute(out orchestrator.Output, strict bool) int {
	if serverFailed(out) {
		return Failure
	}
	schemas, dbFailures := flatten(out)

	succeeded := 0
	tableDegraded := false
	for _, s := range schemas {
		if s.Metadata.Status != model.StatusSuccess {
			continue
		}
		succeeded++
		for _, f := range s.Metadata.ObjectFailures {
			if f.ObjectType == model.ObjectTable {
				tableDegraded = true
			}
		}
	}

	if succeeded == 0 {
		return Failure
	}
	if strict && (dbFailures > 0 || tableDegraded) {
		return Failure
	}
	return OK
}

func serverFailed(out orchestrator.Output) bool {
	switch o := out.(type) {
	case *orchestrator.Bundle:
		return o.ServerError != nil
	case *orchestrator.PerDatabase:
		return o.Manifest.ServerError != nil
	default:
		return false
	}
}

// flatten returns every schema in out and the number of selected databases
// that were not collected.
func flatten(out orchestrator.Output) ([]model.DatabaseSchema, int) {
	switch o := out.(type) {
	case *orchestrator.Bundle:
		return o.Successes, len(o.Failures) + len(o.Skipped)
	case *orchestrator.PerDatabase:
		schemas := make([]model.DatabaseSchema, 0, len(o.Schemas))
		failed := 0
		for _, ns := range o.Schemas {
			schemas = append(schemas, ns.Schema)
			if ns.Schema.Metadata.Status != model.StatusSuccess {
				failed++
			}
		}
		return schemas, failed
	default:
		return nil, 0
	}
}
