// Package store provides relational persistence for events and chat turns.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/capitalize-ai/scheduling-agent/internal/model"
)

// ErrStorage wraps every persistence failure surfaced by this package.
var ErrStorage = errors.New("storage error")

// DB wraps the gorm handle shared by the event and history stores.
type DB struct {
	gorm    *gorm.DB
	dialect string
}

// Open connects to databaseURL. postgres:// and postgresql:// URLs use the
// Postgres driver; anything else is treated as a SQLite DSN (file path or
// "file:...").
func Open(databaseURL string) (*DB, error) {
	dialector, dialect := dialectorFor(databaseURL)

	g, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if dialect == "sqlite" {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY
		// under concurrent chat turns.
		sqlDB, err := g.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := g.AutoMigrate(&model.Event{}, &model.ChatTurn{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &DB{gorm: g, dialect: dialect}, nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, string) {
	lower := strings.ToLower(databaseURL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return postgres.Open(databaseURL), "postgres"
	}
	return sqlite.Open(databaseURL), "sqlite"
}

// Dialect returns "postgres" or "sqlite".
func (d *DB) Dialect() string {
	return d.dialect
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
