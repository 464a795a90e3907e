// Package orchestrator collects many databases of one server concurrently
// and assembles the results into a single Output.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/filter"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/model"
	"github.com/koustreak/dbmeta/internal/retry"
)

const skippedWarning = "not collected: run aborted after an earlier database failure"

// Orchestrator fans out per-database collection over one adapter.
type Orchestrator struct {
	adapter   collector.Adapter
	policy    retry.Policy
	collector *collector.Collector
	log       *logger.Logger
	now       func() time.Time
}

// New returns an Orchestrator. The policy is shared read-only by every
// concurrent collection.
func New(a collector.Adapter, p retry.Policy, log *logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		adapter:   a,
		policy:    p,
		collector: collector.New(p, log),
		log:       log,
		now:       time.Now,
	}
}

// slot is the result of one selected database. Each slot is written by
// exactly one task, once, when that task completes.
type slot struct {
	name     string
	started  bool
	schema   *model.DatabaseSchema
	failure  *model.DatabaseFailure
	duration time.Duration
}

// CollectAll runs a full collection. It returns an error only for an
// invalid configuration. A server whose database list cannot be read yields
// an empty Output carrying ServerError; per-database failures are part of
// the Output too.
func (o *Orchestrator) CollectAll(ctx context.Context, cfg Config) (Output, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	started := o.now()

	var (
		slots     []slot
		serverErr *EntryError
	)
	discovered, res := retry.Run(ctx, o.policy, nil, func(ctx context.Context) ([]string, error) {
		return o.adapter.EnumerateDatabases(ctx, cfg.IncludeSystem)
	})
	if res.OK() {
		selected := filter.Apply(discovered, cfg.Include, cfg.Exclude)
		o.log.With().
			Int("discovered", len(discovered)).
			Int("selected", len(selected)).
			Int("max_concurrency", cfg.MaxConcurrency).
			Logger().
			Info("starting collection")
		slots = o.dispatch(ctx, cfg, selected)
	} else {
		err := errs.Wrap(res.Category, "enumerating databases", res.Err)
		serverErr = &EntryError{Category: res.Category, Message: errs.Message(err)}
		o.log.With().
			Str("category", res.Category.String()).
			Uint("retries", res.Retries).
			Logger().
			Error(serverErr.Message)
	}

	switch cfg.Mode {
	case ModePerDatabase:
		out := o.perDatabase(slots, started)
		out.Manifest.ServerError = serverErr
		return out, nil
	default:
		out := o.bundle(slots)
		out.ServerError = serverErr
		return out, nil
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, cfg Config, selected []string) []slot {
	slots := make([]slot, len(selected))
	for i, name := range selected {
		slots[i].name = name
	}

	var aborted atomic.Bool
	g := new(errgroup.Group)
	g.SetLimit(cfg.MaxConcurrency)

	for i := range slots {
		if aborted.Load() || ctx.Err() != nil {
			break
		}
		s := &slots[i]
		g.Go(func() error {
			// Waiting for a slot may outlast an abort.
			if aborted.Load() || ctx.Err() != nil {
				return nil
			}
			o.collectOne(ctx, s)
			if s.failure != nil && !cfg.ContinueOnError {
				if aborted.CompareAndSwap(false, true) {
					o.log.ForDatabase(s.name).Warn("database failed, not starting remaining databases")
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}

func (o *Orchestrator) collectOne(ctx context.Context, s *slot) {
	begin := o.now()
	schema, err := o.collector.Collect(ctx, o.adapter, s.name)

	s.started = true
	s.duration = o.now().Sub(begin)
	if err == nil {
		s.schema = &schema
		return
	}

	var dbErr *collector.DatabaseError
	if errors.As(err, &dbErr) {
		f := dbErr.Failure
		s.failure = &f
	} else {
		s.failure = &model.DatabaseFailure{
			Database:      s.name,
			Stage:         model.StageOther,
			ErrorCategory: errs.Classify(err),
			ErrorMessage:  errs.Message(err),
		}
	}
	o.log.ForDatabase(s.name).With().
		Str("category", s.failure.ErrorCategory.String()).
		Str("stage", s.failure.Stage.String()).
		Uint("retries", s.failure.RetryAttempts).
		Logger().
		Error(s.failure.ErrorMessage)
}

func (o *Orchestrator) bundle(slots []slot) *Bundle {
	b := &Bundle{
		Server:    o.adapter.Server(),
		Successes: []model.DatabaseSchema{},
		Failures:  []model.DatabaseFailure{},
		Skipped:   []string{},
	}
	for _, s := range slots {
		switch {
		case s.schema != nil:
			b.Successes = append(b.Successes, *s.schema)
		case s.failure != nil:
			b.Failures = append(b.Failures, *s.failure)
		default:
			b.Skipped = append(b.Skipped, s.name)
		}
	}
	return b
}

func (o *Orchestrator) perDatabase(slots []slot, started time.Time) *PerDatabase {
	server := o.adapter.Server()
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.name
	}
	stems := fileStems(names)

	m := Manifest{
		FormatVersion: FormatVersion,
		RunID:         runID(),
		Server:        server,
		StartedAt:     started,
		Databases:     make([]ManifestEntry, 0, len(slots)),
	}
	out := &PerDatabase{Schemas: make([]NamedSchema, 0, len(slots))}

	for i, s := range slots {
		entry := ManifestEntry{Name: s.name, File: stems[i], Duration: s.duration}
		var schema model.DatabaseSchema

		switch {
		case s.schema != nil:
			schema = *s.schema
			entry.Status = model.StatusSuccess
			entry.ObjectFailures = len(schema.Metadata.ObjectFailures)
			m.Totals.Succeeded++
			m.Totals.ObjectFailures += entry.ObjectFailures
			if m.ServerVersion == "" {
				m.ServerVersion = schema.ServerVersion
			}
		case s.failure != nil:
			schema = model.NewStub(s.name, server.Engine, model.StatusFailed, s.failure.Summary())
			schema.Metadata.Duration = s.duration
			entry.Status = model.StatusFailed
			entry.Error = &EntryError{Category: s.failure.ErrorCategory, Message: s.failure.ErrorMessage}
			m.Totals.Failed++
		default:
			schema = model.NewStub(s.name, server.Engine, model.StatusSkipped, skippedWarning)
			entry.Status = model.StatusSkipped
			m.Totals.Skipped++
		}

		m.Databases = append(m.Databases, entry)
		out.Schemas = append(out.Schemas, NamedSchema{Database: s.name, File: stems[i], Schema: schema})
	}

	m.Totals.Selected = len(slots)
	m.CompletedAt = o.now()
	out.Manifest = m
	return out
}

// runID is time-ordered, so it sorts with the run's timestamps.
func runID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
