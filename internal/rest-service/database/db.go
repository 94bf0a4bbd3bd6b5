package database

import (
	"database/sql"
	"fmt"
	"time"

	sqliteGo "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const CustomDriverName = "sqlite3_cabinet"

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

const DefaultFile = "cabinet.db"

func init() {
	sql.Register(CustomDriverName,
		&sqliteGo.SQLiteDriver{
			ConnectHook: func(conn *sqliteGo.SQLiteConn) error {
				// sqlite keeps foreign keys off unless asked per connection
				if _, err := conn.Exec("PRAGMA foreign_keys = ON", nil); err != nil {
					return err
				}
				_, err := conn.Exec("PRAGMA busy_timeout = 5000", nil)
				return err
			},
		},
	)
}

// NewDb opens the store and migrates the schema.
func NewDb(driver, dsn string, l *log.Entry) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite, "":
		conn, err := sql.Open(CustomDriverName, dsn)
		if err != nil {
			return nil, err
		}
		dialector = sqlite.Dialector{
			DriverName: CustomDriverName,
			DSN:        dsn,
			Conn:       conn,
		}
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(l.WithField("component", "gorm"), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		SkipDefaultTransaction:   true,
		DisableNestedTransaction: true,
	})
	if err != nil {
		return nil, err
	}
	return db, Migrate(db)
}

// Migrate creates the schema and loads the file type registry.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("can't migrate schema: %w", err)
	}
	return SeedFileTypes(db)
}
