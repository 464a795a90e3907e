// Package mysql implements collector.Adapter for MySQL and MariaDB using
// database/sql and go-sql-driver/mysql. A MySQL database is a single
// schema, so every session reports exactly one schema named after it.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"time"

	gomysql "github.com/go-sql-driver/mysql"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/database"
	"github.com/koustreak/dbmeta/internal/errs"
)

var systemDatabases = map[string]bool{
	"information_schema": true,
	"mysql":              true,
	"performance_schema": true,
	"sys":                true,
}

// IsSystemDatabase reports whether name is one of the server's own schemas.
func IsSystemDatabase(name string) bool { return systemDatabases[name] }

// Opener opens a pool for a DSN. Tests replace it with sqlmock.
type Opener func(dsn string) (*sql.DB, error)

func openMySQL(dsn string) (*sql.DB, error) { return sql.Open("mysql", dsn) }

type Adapter struct {
	base    *gomysql.Config
	cfg     *database.Config
	opener  Opener
	maxOpen int
}

// New parses cfg without connecting. A nil opener uses the registered
// "mysql" driver.
func New(cfg *database.Config, opener Opener) (*Adapter, error) {
	var (
		base *gomysql.Config
		err  error
	)
	if cfg.DSN != "" {
		base, err = gomysql.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, errs.Wrap(errs.InvalidData, "invalid mysql DSN", err)
		}
	} else {
		base = gomysql.NewConfig()
		base.Net = "tcp"
		port := cfg.Port
		if port == 0 {
			port = database.EngineMySQL.DefaultPort()
		}
		base.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	}
	if cfg.User != "" && base.User == "" {
		base.User = cfg.User
	}
	if cfg.Password != "" && base.Passwd == "" {
		base.Passwd = cfg.Password
	}
	if cfg.ConnectTimeout > 0 {
		base.Timeout = cfg.ConnectTimeout
	}
	base.ParseTime = true

	if opener == nil {
		opener = openMySQL
	}
	maxOpen := int(cfg.MaxConns)
	if maxOpen == 0 {
		maxOpen = 2
	}
	return &Adapter{base: base, cfg: cfg, opener: opener, maxOpen: maxOpen}, nil
}

func (a *Adapter) Server() collector.Server {
	return collector.Server{Engine: string(database.EngineMySQL), Host: a.base.Addr}
}

// dsn returns the base DSN bound to name. An empty name connects without a
// default database.
func (a *Adapter) dsn(name string) string {
	c := a.base.Clone()
	c.DBName = name
	return c.FormatDSN()
}

func (a *Adapter) open(ctx context.Context, name string) (*sql.DB, error) {
	db, err := a.opener(a.dsn(name))
	if err != nil {
		return nil, mapError(err, fmt.Sprintf("failed to open %q", name))
	}
	db.SetMaxOpenConns(a.maxOpen)
	db.SetMaxIdleConns(a.maxOpen)
	db.SetConnMaxIdleTime(time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, mapError(err, fmt.Sprintf("failed to connect to %q", name))
	}
	return db, nil
}

func (a *Adapter) EnumerateDatabases(ctx context.Context, includeSystem bool) ([]string, error) {
	db, err := a.open(ctx, "")
	if err != nil {
		return nil, err
	}
	defer db.Close()

	s := &session{db: db, timeout: a.cfg.QueryTimeout}
	names, err := query(ctx, s, "failed to list databases", qDatabases, scanString)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if includeSystem || !systemDatabases[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

func (a *Adapter) Connect(ctx context.Context, name string) (collector.Session, error) {
	db, err := a.open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &session{db: db, name: name, timeout: a.cfg.QueryTimeout}, nil
}
