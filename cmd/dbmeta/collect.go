package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koustreak/dbmeta/internal/codec"
	"github.com/koustreak/dbmeta/internal/config"
	"github.com/koustreak/dbmeta/internal/errs"
	"github.com/koustreak/dbmeta/internal/exitcode"
	"github.com/koustreak/dbmeta/internal/filestore/minio"
	"github.com/koustreak/dbmeta/internal/filter"
	"github.com/koustreak/dbmeta/internal/logger"
	"github.com/koustreak/dbmeta/internal/orchestrator"
	"github.com/koustreak/dbmeta/internal/output"
)

type collectFlags struct {
	engine          string
	dsn             string
	maxConcurrency  int
	includeSystem   bool
	include         string
	exclude         string
	continueOnError bool
	outputMode      string
	output          string
	strict          bool
	compress        bool
}

func newCollectCmd(exit *int) *cobra.Command {
	var f collectFlags
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect metadata from every selected database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			code, err := runCollect(ctx, cfg)
			if err != nil {
				return err
			}
			*exit = code
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.engine, "engine", "", "Database engine (postgres|mysql)")
	fl.StringVar(&f.dsn, "dsn", "", "Engine-native connection string")
	fl.IntVar(&f.maxConcurrency, "max-concurrency", 0, "Databases collected at once")
	fl.BoolVar(&f.includeSystem, "include-system", false, "Also consider system databases")
	fl.StringVar(&f.include, "include", "", "Comma-separated glob patterns of databases to collect")
	fl.StringVar(&f.exclude, "exclude", "", "Comma-separated glob patterns of databases to skip")
	fl.BoolVar(&f.continueOnError, "continue-on-error", true, "Keep going after a database fails")
	fl.StringVar(&f.outputMode, "output-mode", "", "Output layout (bundle|per-database)")
	fl.StringVar(&f.output, "output", "", "Output directory")
	fl.BoolVar(&f.strict, "strict", false, "Exit 1 on any database failure or lost table structure")
	fl.BoolVar(&f.compress, "compress", false, "Compress output files with zstd")
	return cmd
}

// apply overrides cfg with the flags given on the command line.
func (f *collectFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("engine") {
		cfg.Source.Engine = f.engine
	}
	if changed("dsn") {
		cfg.Source.DSN = f.dsn
	}
	if changed("max-concurrency") {
		cfg.Collect.MaxConcurrency = f.maxConcurrency
	}
	if changed("include-system") {
		cfg.Collect.IncludeSystem = f.includeSystem
	}
	if changed("include") {
		cfg.Collect.Include = filter.ParseList(f.include)
	}
	if changed("exclude") {
		cfg.Collect.Exclude = filter.ParseList(f.exclude)
	}
	if changed("continue-on-error") {
		cfg.Collect.ContinueOnError = f.continueOnError
	}
	if changed("output-mode") {
		cfg.Output.Mode = f.outputMode
	}
	if changed("output") {
		cfg.Output.Path = f.output
	}
	if changed("strict") {
		cfg.Collect.Strict = f.strict
	}
	if changed("compress") {
		cfg.Output.Compress = f.compress
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg := config.Default()
	if path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	return cfg, nil
}

// runCollect returns the process exit code. An error means nothing usable
// was produced.
func runCollect(ctx context.Context, cfg *config.Config) (int, error) {
	log := logger.New(cfg.Logger())
	dbCfg := cfg.Database()
	log = log.With().Str("engine", string(dbCfg.Engine)).Str("server", dbCfg.Address()).Logger()

	adapter, err := newAdapter(dbCfg)
	if err != nil {
		return exitcode.Failure, err
	}

	out, err := orchestrator.New(adapter, cfg.RetryPolicy(), log).CollectAll(ctx, cfg.Run())
	if err != nil {
		log.ErrorWith("collection not started", err, map[string]interface{}{"category": errs.Classify(err).String()})
		return exitcode.Failure, err
	}

	sink, err := buildSink(ctx, cfg)
	if err != nil {
		return exitcode.Failure, err
	}
	written, err := output.NewWriter(codec.New(cfg.Codec(os.Getenv)), sink, log).Write(ctx, out)
	if err != nil {
		return exitcode.Failure, err
	}

	code := exitcode.Compute(out, cfg.Collect.Strict)
	log.InfoWith("collection finished", map[string]interface{}{
		"files":     len(written),
		"path":      cfg.Output.Path,
		"strict":    cfg.Collect.Strict,
		"exit_code": code,
	})
	return code, nil
}

func buildSink(ctx context.Context, cfg *config.Config) (output.Sink, error) {
	dir := output.DirSink{Dir: cfg.Output.Path}
	if !cfg.Storage.Enabled {
		return dir, nil
	}
	fsCfg := cfg.FileStore()
	store, err := minio.New(ctx, fsCfg)
	if err != nil {
		return nil, err
	}
	obj, err := output.NewObjectSink(ctx, store, fsCfg)
	if err != nil {
		return nil, err
	}
	return output.Tee{dir, obj}, nil
}
