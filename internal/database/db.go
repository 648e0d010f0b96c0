package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
)

// Supported values of DB_DRIVER.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Options describes how to reach the database.  Path is only used by the
// sqlite driver; the remaining fields only by mysql.
type Options struct {
	Driver string
	User   string
	Pass   string
	Host   string
	Port   string
	Name   string
	Path   string
}

// DSN builds the driver specific data source name.
func (o Options) DSN() (string, error) {
	switch o.Driver {
	case DriverMySQL, "":
		auth := o.User
		if o.Pass != "" {
			auth = fmt.Sprintf("%s:%s", o.User, o.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		// clientFoundRows=true: RowsAffected counts matched rows, as SQLite does
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC&clientFoundRows=true",
			auth, o.Host, o.Port, o.Name), nil
	case DriverSQLite:
		if o.Path == "" {
			return ":memory:", nil
		}
		return o.Path, nil
	}
	return "", fmt.Errorf("unsupported DB_DRIVER %q", o.Driver)
}

// Open connects to the configured database and verifies the connection.
func Open(o Options) (*sql.DB, error) {
	dsn, err := o.DSN()
	if err != nil {
		return nil, err
	}
	driver := o.Driver
	if driver == "" {
		driver = DriverMySQL
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	if driver == DriverSQLite {
		// sqlite serializes writers; an in-memory database also lives and
		// dies with its single connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
