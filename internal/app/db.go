package app

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/yungbote/sagacore/internal/platform/logger"
	"github.com/yungbote/sagacore/internal/sagatypes"
)

// openDB dials Postgres when dsn is set, otherwise falls back to an
// in-process sqlite database: a "production driver, dev/test fallback"
// split that gives sagacore a zero-config way to run.
func openDB(dsn, sqliteDSN string, baseLog *logger.Logger) (*gorm.DB, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var (
		db  *gorm.DB
		err error
	)
	if dsn != "" {
		baseLog.Info("Connecting to Postgres...")
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger: gormLog,
		})
	} else {
		baseLog.Info("SAGACORE_DATABASE_DSN unset; using sqlite", "dsn", sqliteDSN)
		db, err = gorm.Open(sqlite.Open(sqliteDSN), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger: gormLog,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("app: open db: %w", err)
	}

	if dsn != "" {
		if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			return nil, fmt.Errorf("app: enable uuid-ossp: %w", err)
		}
	}

	if err := db.AutoMigrate(&sagatypes.Job{}, &sagatypes.Step{}, &sagatypes.Chunk{}); err != nil {
		return nil, fmt.Errorf("app: automigrate: %w", err)
	}
	return db, nil
}
