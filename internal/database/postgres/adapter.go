// Package postgres implements collector.Adapter for PostgreSQL using pgx.
//
// Every database gets its own short-lived pgxpool, derived from one parsed
// base configuration by swapping the target database name.
package postgres

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/database"
	"github.com/koustreak/dbmeta/internal/errs"
)

// maintenanceDB is used for database enumeration when the DSN names none.
const maintenanceDB = "postgres"

// Adapter is safe for concurrent use: Connect only reads the base config.
type Adapter struct {
	base *pgxpool.Config
	cfg  *database.Config
}

// New parses cfg without connecting.
func New(cfg *database.Config) (*Adapter, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = buildDSN(cfg)
	}
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidData, "invalid postgres connection settings", err)
	}

	cc := poolCfg.ConnConfig
	if cfg.User != "" && cc.User == "" {
		cc.User = cfg.User
	}
	if cfg.Password != "" && cc.Password == "" {
		cc.Password = cfg.Password
	}
	if cc.Database == "" {
		cc.Database = maintenanceDB
	}
	if cfg.ConnectTimeout > 0 {
		cc.ConnectTimeout = cfg.ConnectTimeout
	}
	// Catalog queries must never write.
	cc.RuntimeParams["default_transaction_read_only"] = "on"
	cc.RuntimeParams["application_name"] = "dbmeta"

	poolCfg.MaxConns = withDefault(cfg.MaxConns, 2)
	poolCfg.MinConns = 0

	return &Adapter{base: poolCfg, cfg: cfg}, nil
}

func (a *Adapter) Server() collector.Server {
	cc := a.base.ConnConfig
	return collector.Server{
		Engine: string(database.EnginePostgres),
		Host:   net.JoinHostPort(cc.Host, strconv.Itoa(int(cc.Port))),
	}
}

// poolConfig returns a copy of the base config bound to name.
func (a *Adapter) poolConfig(name string) *pgxpool.Config {
	c := a.base.Copy()
	c.ConnConfig.Database = name
	return c
}

func (a *Adapter) open(ctx context.Context, name string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, a.poolConfig(name))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to create pool for %q", name))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, mapError(err, fmt.Sprintf("failed to connect to %q", name))
	}
	return pool, nil
}

// EnumerateDatabases lists connectable databases. Templates are system
// databases; template0 never allows connections and is always omitted.
func (a *Adapter) EnumerateDatabases(ctx context.Context, includeSystem bool) ([]string, error) {
	pool, err := a.open(ctx, a.base.ConnConfig.Database)
	if err != nil {
		return nil, err
	}
	defer pool.Close()

	s := &session{pool: pool, timeout: a.cfg.QueryTimeout}
	return query(ctx, s, "failed to list databases", qDatabases, pgx.RowTo[string], includeSystem)
}

func (a *Adapter) Connect(ctx context.Context, name string) (collector.Session, error) {
	pool, err := a.open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &session{pool: pool, timeout: a.cfg.QueryTimeout}, nil
}

// buildDSN constructs a keyword/value connection string from discrete fields.
func buildDSN(cfg *database.Config) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	port := cfg.Port
	if port == 0 {
		port = database.EnginePostgres.DefaultPort()
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", cfg.Host, port, maintenanceDB, sslMode)
	if cfg.User != "" {
		dsn += " user=" + quote(cfg.User)
	}
	if cfg.Password != "" {
		dsn += " password=" + quote(cfg.Password)
	}
	return dsn
}

// quote escapes a keyword/value connection string value.
func quote(v string) string {
	out := []byte{'\''}
	for i := 0; i < len(v); i++ {
		if v[i] == '\'' || v[i] == '\\' {
			out = append(out, '\\')
		}
		out = append(out, v[i])
	}
	return string(append(out, '\''))
}

func withDefault(val, def int32) int32 {
	if val == 0 {
		return def
	}
	return val
}
