package main

import (
	"fmt"

	"github.com/koustreak/dbmeta/internal/collector"
	"github.com/koustreak/dbmeta/internal/database"
	"github.com/koustreak/dbmeta/internal/database/mysql"
	"github.com/koustreak/dbmeta/internal/database/postgres"
)

func newAdapter(cfg *database.Config) (collector.Adapter, error) {
	switch cfg.Engine {
	case database.EnginePostgres:
		return postgres.New(cfg)
	case database.EngineMySQL:
		return mysql.New(cfg, nil)
	default:
		return nil, fmt.Errorf("unsupported engine %q", cfg.Engine)
	}
}
