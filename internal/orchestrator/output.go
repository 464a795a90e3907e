package orchestrator

import (
	"time"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/model"
)

// Output is the result of a run: either a *Bundle or a *PerDatabase.
// Consumers switch on the concrete type.
type Output interface {
	Mode() OutputMode
	isOutput()
}

// Bundle holds every database in one value. Order of each list follows
// the post-filter enumeration order. ServerError is set when the server's
// database list could not be read, in which case every list is empty.
type Bundle struct {
	Server      collector.Server        `json:"server"`
	ServerError *EntryError             `json:"serverError,omitempty"`
	Successes   []model.DatabaseSchema  `json:"successes"`
	Failures    []model.DatabaseFailure `json:"failures"`
	Skipped     []string                `json:"skipped"`
}

func (*Bundle) Mode() OutputMode { return ModeBundle }
func (*Bundle) isOutput()        {}

// NamedSchema pairs a schema with the file stem it is written under.
type NamedSchema struct {
	Database string
	File     string
	Schema   model.DatabaseSchema
}

// PerDatabase holds one schema per selected database, with stubs for the
// ones that failed or were skipped, plus a manifest describing them all.
type PerDatabase struct {
	Manifest Manifest
	Schemas  []NamedSchema
}

func (*PerDatabase) Mode() OutputMode { return ModePerDatabase }
func (*PerDatabase) isOutput()        {}

// ManifestFile is the fixed stem of the manifest in per-database output.
const ManifestFile = "manifest"

// FormatVersion is bumped whenever the manifest layout changes.
const FormatVersion = 1

// Manifest is the server-level summary of a per-database run. Entry files
// are stems; Extension, set when the output is written, completes them.
// RunID is a UUIDv7, so like the timestamps it differs on every run.
type Manifest struct {
	FormatVersion int              `json:"formatVersion"`
	RunID         string           `json:"runId"`
	Extension     string           `json:"extension,omitempty"`
	Server        collector.Server `json:"server"`
	ServerVersion string           `json:"serverVersion,omitempty"`
	ServerError   *EntryError      `json:"serverError,omitempty"`
	StartedAt     time.Time        `json:"startedAt"`
	CompletedAt   time.Time        `json:"completedAt"`
	Databases     []ManifestEntry  `json:"databases"`
	Totals        Totals           `json:"totals"`
}

// ManifestEntry describes one selected database.
type ManifestEntry struct {
	Name           string                 `json:"name"`
	File           string                 `json:"file"`
	Status         model.CollectionStatus `json:"status"`
	Duration       time.Duration          `json:"durationNs"`
	ObjectFailures int                    `json:"objectFailures"`
	Error          *EntryError            `json:"error,omitempty"`
}

// EntryError is a failure reported in the output: the database-level
// failure of a manifest entry, or the server-level enumeration failure.
type EntryError struct {
	Category errs.Category `json:"category"`
	Message  string        `json:"message"`
}

// Totals aggregates the manifest entries.
type Totals struct {
	Selected       int `json:"selected"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	ObjectFailures int `json:"objectFailures"`
}
