// Package db opens the skimmer database and migrates its tables.
package db

import (
	"fmt"
	"os"
	"path/filepath"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/zulandar/skimmer/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds a MySQL DSN for the configured server.
func DSN(store config.StoreConfig) string {
	cfg := gomysql.NewConfig()
	cfg.User = store.User
	cfg.Passwd = store.Password
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", store.Host, store.Port)
	cfg.DBName = store.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// Connect opens a GORM connection for the configured driver. The sqlite
// file's directory is created when missing.
func Connect(store config.StoreConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch store.Driver {
	case "mysql":
		dialector = mysql.Open(DSN(store))
	case "sqlite", "":
		if store.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(store.Path), 0o755); err != nil {
				return nil, fmt.Errorf("db: create %s: %w", filepath.Dir(store.Path), err)
			}
		}
		dialector = sqlite.Open(store.Path)
	default:
		return nil, fmt.Errorf("db: unknown driver %q", store.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect %s: %w", describe(store), err)
	}
	return db, nil
}

// describe names the target without credentials.
func describe(store config.StoreConfig) string {
	if store.Driver == "mysql" {
		return fmt.Sprintf("mysql %s:%d/%s", store.Host, store.Port, store.Database)
	}
	return "sqlite " + store.Path
}
