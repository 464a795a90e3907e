// Package model holds the portable metadata representation produced by a
// collection run. Everything here is plain data: it serializes to JSON and
// carries no behaviour beyond enum encoding.
package model

import "time"

// DatabaseSchema is the collected structure of one database.
type DatabaseSchema struct {
	Name          string             `json:"name"`
	Engine        string             `json:"engine"`
	ServerVersion string             `json:"serverVersion,omitempty"`
	Schemas       []string           `json:"schemas"`
	Tables        []Table            `json:"tables"`
	Views         []View             `json:"views"`
	Routines      []Routine          `json:"routines"`
	Triggers      []Trigger          `json:"triggers"`
	CustomTypes   []CustomType       `json:"customTypes,omitempty"`
	Metadata      CollectionMetadata `json:"metadata"`
}

// Table represents a table and everything collected about it. A table
// whose columns could not be collected is still listed, with an
// ObjectFailure recorded against it.
type Table struct {
	Schema      string       `json:"schema"`
	Name        string       `json:"name"`
	Type        string       `json:"type"` // BASE TABLE, PARTITIONED, …
	Comment     string       `json:"comment,omitempty"`
	RowEstimate int64        `json:"rowEstimate,omitempty"`
	Columns     []Column     `json:"columns"`
	Constraints []Constraint `json:"constraints"`
	Indexes     []Index      `json:"indexes"`
}

// Column describes a single table or view column.
type Column struct {
	Name            string  `json:"name"`
	Position        int     `json:"position"`
	DataType        string  `json:"dataType"`
	Nullable        bool    `json:"nullable"`
	Default         *string `json:"default,omitempty"`
	MaxLength       *int64  `json:"maxLength,omitempty"`
	Comment         string  `json:"comment,omitempty"`
	IsAutoIncrement bool    `json:"isAutoIncrement"`
}

// ConstraintKind identifies the kind of a table constraint.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "PRIMARY KEY"
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintForeignKey ConstraintKind = "FOREIGN KEY"
	ConstraintCheck      ConstraintKind = "CHECK"
)

// Constraint covers primary, unique, foreign key and check constraints.
// Referenced* fields are set for foreign keys only.
type Constraint struct {
	Name              string         `json:"name"`
	Kind              ConstraintKind `json:"kind"`
	Columns           []string       `json:"columns"`
	ReferencedSchema  string         `json:"referencedSchema,omitempty"`
	ReferencedTable   string         `json:"referencedTable,omitempty"`
	ReferencedColumns []string       `json:"referencedColumns,omitempty"`
	Definition        string         `json:"definition,omitempty"`
}

// Index describes a table index.
type Index struct {
	Name      string   `json:"name"`
	Method    string   `json:"method,omitempty"` // btree, hash, …
	Columns   []string `json:"columns"`
	IsUnique  bool     `json:"isUnique"`
	IsPrimary bool     `json:"isPrimary"`
}

// View describes a view or materialized view. Definitions are not collected.
type View struct {
	Schema       string   `json:"schema"`
	Name         string   `json:"name"`
	Materialized bool     `json:"materialized"`
	Comment      string   `json:"comment,omitempty"`
	Columns      []Column `json:"columns,omitempty"`
}

// Routine is a stored procedure or function, signature only.
type Routine struct {
	Schema     string `json:"schema"`
	Name       string `json:"name"`
	Kind       string `json:"kind"` // PROCEDURE or FUNCTION
	Arguments  string `json:"arguments,omitempty"`
	ReturnType string `json:"returnType,omitempty"`
	Language   string `json:"language,omitempty"`
}

// Trigger metadata, without the trigger body.
type Trigger struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Table  string `json:"table"`
	Timing string `json:"timing"` // BEFORE, AFTER, INSTEAD OF
	Event  string `json:"event"`  // INSERT, UPDATE, DELETE
}

// CustomType is a user-defined type (enum, domain, composite).
type CustomType struct {
	Schema string   `json:"schema"`
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Labels []string `json:"labels,omitempty"`
}

// CollectionStatus is the outcome of one database's collection.
type CollectionStatus string

const (
	StatusSuccess CollectionStatus = "success"
	StatusFailed  CollectionStatus = "failed"
	StatusSkipped CollectionStatus = "skipped"
)

// CollectionMetadata records how a DatabaseSchema was produced.
type CollectionMetadata struct {
	Status         CollectionStatus `json:"status"`
	StartedAt      time.Time        `json:"startedAt"`
	Duration       time.Duration    `json:"durationNs"`
	ObjectFailures []ObjectFailure  `json:"objectFailures"`
	Warnings       []string         `json:"warnings"`
}

// NewStub builds the placeholder schema emitted for a database that could
// not be collected: empty collections and a single warning.
func NewStub(name, engine string, status CollectionStatus, warning string) DatabaseSchema {
	return DatabaseSchema{
		Name:     name,
		Engine:   engine,
		Schemas:  []string{},
		Tables:   []Table{},
		Views:    []View{},
		Routines: []Routine{},
		Triggers: []Trigger{},
		Metadata: CollectionMetadata{
			Status:         status,
			ObjectFailures: []ObjectFailure{},
			Warnings:       []string{warning},
		},
	}
}
