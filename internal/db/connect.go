package db

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/kron12345/coreplanx/internal/config"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DSN builds the driver-specific connection string for cfg. An explicit
// cfg.DSN always wins.
func DSN(cfg config.StorageConfig) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}
	switch cfg.Driver {
	case config.DriverPostgres:
		parts := []string{
			"host=" + cfg.Host,
			"port=" + strconv.Itoa(cfg.Port),
			"user=" + cfg.User,
			"dbname=" + cfg.Database,
			"sslmode=disable",
		}
		if cfg.Password != "" {
			parts = append(parts, "password="+cfg.Password)
		}
		return strings.Join(parts, " ")
	case config.DriverSQLite:
		return "coreplanx.db"
	default:
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.Database
		mc.ParseTime = true
		return mc.FormatDSN()
	}
}

// LogLevel maps a config log level name to the GORM logger level.
func LogLevel(name string) logger.LogLevel {
	switch name {
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// Dialector returns the GORM dialector for cfg.
func Dialector(cfg config.StorageConfig) (gorm.Dialector, error) {
	dsn := DSN(cfg)
	switch cfg.Driver {
	case config.DriverMySQL:
		return gormmysql.Open(dsn), nil
	case config.DriverPostgres:
		return postgres.Open(dsn), nil
	case config.DriverSQLite:
		return sqlite.Open(dsn), nil
	}
	return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
}

// Connect opens a GORM connection for the configured driver.
func Connect(cfg config.StorageConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(LogLevel(cfg.LogLevel)),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s %s: %w", cfg.Driver, cfg.Database, err)
	}
	if cfg.Driver == config.DriverSQLite {
		// SQLite has a single writer; one pooled connection avoids SQLITE_BUSY
		// and keeps :memory: databases on one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("db: sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
