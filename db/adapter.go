package db

import (
	"fmt"
	"sync/atomic"

	"github.com/pulsewire/server/config"
	dbmysql "github.com/pulsewire/server/db/mysql"
	dbsqlite "github.com/pulsewire/server/db/sqlite"
	"gorm.io/gorm"
)

const (
	ModeSQLite       = "sqlite"
	ModeSQLiteMemory = "sqlite_memory"
	ModeMySQL        = "mysql"
)

var memDBCounter int64

// Open returns a *gorm.DB for the configured database mode.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Mode {
	case ModeSQLite:
		return dbsqlite.Open(cfg.SQLitePath)
	case ModeSQLiteMemory:
		// Each open gets its own named shared-cache memory DB so GORM's
		// connection pool sees one database while separate opens stay isolated.
		n := atomic.AddInt64(&memDBCounter, 1)
		dsn := fmt.Sprintf("file:pulsemem%d?mode=memory&cache=shared", n)
		gdb, err := dbsqlite.Open(dsn)
		if err != nil {
			return nil, err
		}
		// Single connection avoids SQLITE_LOCKED between pooled conns.
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
		return gdb, nil
	case ModeMySQL:
		return dbmysql.Open(cfg.MySQLDSN, cfg.MySQLMaxOpen, cfg.MySQLMaxIdle, cfg.MySQLMaxLife)
	default:
		return nil, fmt.Errorf("db: unknown mode %q", cfg.Mode)
	}
}
