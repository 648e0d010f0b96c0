package database

import (
	"context"
	"database/sql"
	"fmt"
)

// mysqlSchema is the production schema.  Statements are idempotent.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(64) NOT NULL,
		full_name VARCHAR(128) NOT NULL,
		email VARCHAR(255) NULL,
		password_hash VARCHAR(255) NOT NULL,
		role ENUM('ADMIN','SUPERVISOR','AUDITOR','CHOFER') NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_users_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS trucks (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		plate VARCHAR(20) NOT NULL,
		nickname VARCHAR(64) NOT NULL,
		brand VARCHAR(64) NULL,
		model VARCHAR(64) NULL,
		year INT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_trucks_plate (plate)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS clients (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(128) NOT NULL,
		address VARCHAR(255) NULL,
		special_price DECIMAL(10,2) NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS route_manifests (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		driver_id BIGINT UNSIGNED NOT NULL,
		truck_id BIGINT UNSIGNED NOT NULL,
		route_date DATE NOT NULL,
		initial_full_bottles INT NOT NULL,
		initial_empty_bottles INT NOT NULL DEFAULT 0,
		checkout_at DATETIME NOT NULL,
		checkout_by BIGINT UNSIGNED NOT NULL,
		returned_full_bottles INT NULL,
		returned_empty_bottles INT NULL,
		reported_damaged INT NULL,
		notes TEXT NULL,
		evidence_verified TINYINT(1) NOT NULL DEFAULT 0,
		checkin_at DATETIME NULL,
		checkin_by BIGINT UNSIGNED NULL,
		audit_status VARCHAR(32) NOT NULL,
		debt_amount DECIMAL(12,2) NOT NULL DEFAULT 0,
		reconcile_strategy VARCHAR(32) NULL,
		reconcile_delta INT NULL,
		reconcile_message TEXT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_route_manifests_date (route_date),
		CONSTRAINT fk_route_driver FOREIGN KEY (driver_id) REFERENCES users(id),
		CONSTRAINT fk_route_truck FOREIGN KEY (truck_id) REFERENCES trucks(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS sales_details (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		route_id BIGINT UNSIGNED NOT NULL,
		client_id BIGINT UNSIGNED NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(10,2) NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		UNIQUE KEY uq_sales_route_client (route_id, client_id),
		CONSTRAINT fk_sales_route FOREIGN KEY (route_id) REFERENCES route_manifests(id),
		CONSTRAINT fk_sales_client FOREIGN KEY (client_id) REFERENCES clients(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS debt_records (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		route_id BIGINT UNSIGNED NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'PENDING',
		notes TEXT NULL,
		resolution_notes TEXT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		resolved_at DATETIME NULL,
		resolved_by BIGINT UNSIGNED NULL,
		KEY idx_debt_records_status (status),
		CONSTRAINT fk_debt_route FOREIGN KEY (route_id) REFERENCES route_manifests(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		occurred_at DATETIME NOT NULL,
		actor_id BIGINT UNSIGNED NOT NULL,
		action VARCHAR(64) NOT NULL,
		entity_type VARCHAR(64) NOT NULL,
		entity_id BIGINT UNSIGNED NOT NULL,
		old_value JSON NULL,
		new_value JSON NULL,
		ip_address VARCHAR(64) NULL,
		user_agent VARCHAR(255) NULL,
		notes TEXT NULL,
		KEY idx_audit_entity (entity_type, entity_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// sqliteSchema mirrors mysqlSchema for local runs and tests.  Money columns
// are TEXT so decimal values round-trip without float conversion.
var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		full_name TEXT NOT NULL,
		email TEXT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('ADMIN','SUPERVISOR','AUDITOR','CHOFER')),
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS trucks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plate TEXT NOT NULL UNIQUE,
		nickname TEXT NOT NULL,
		brand TEXT NULL,
		model TEXT NULL,
		year INTEGER NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NULL,
		special_price TEXT NULL,
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS route_manifests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		driver_id INTEGER NOT NULL REFERENCES users(id),
		truck_id INTEGER NOT NULL REFERENCES trucks(id),
		route_date DATE NOT NULL,
		initial_full_bottles INTEGER NOT NULL,
		initial_empty_bottles INTEGER NOT NULL DEFAULT 0,
		checkout_at DATETIME NOT NULL,
		checkout_by INTEGER NOT NULL,
		returned_full_bottles INTEGER NULL,
		returned_empty_bottles INTEGER NULL,
		reported_damaged INTEGER NULL,
		notes TEXT NULL,
		evidence_verified INTEGER NOT NULL DEFAULT 0,
		checkin_at DATETIME NULL,
		checkin_by INTEGER NULL,
		audit_status TEXT NOT NULL,
		debt_amount TEXT NOT NULL DEFAULT '0',
		reconcile_strategy TEXT NULL,
		reconcile_delta INTEGER NULL,
		reconcile_message TEXT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_route_manifests_date ON route_manifests (route_date)`,
	`CREATE TABLE IF NOT EXISTS sales_details (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id INTEGER NOT NULL REFERENCES route_manifests(id),
		client_id INTEGER NOT NULL REFERENCES clients(id),
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		UNIQUE (route_id, client_id)
	)`,
	`CREATE TABLE IF NOT EXISTS debt_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		route_id INTEGER NOT NULL REFERENCES route_manifests(id),
		amount TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		notes TEXT NULL,
		resolution_notes TEXT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		resolved_at DATETIME NULL,
		resolved_by INTEGER NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_debt_records_status ON debt_records (status)`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		occurred_at DATETIME NOT NULL,
		actor_id INTEGER NOT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id INTEGER NOT NULL,
		old_value TEXT NULL,
		new_value TEXT NULL,
		ip_address TEXT NULL,
		user_agent TEXT NULL,
		notes TEXT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs (entity_type, entity_id)`,
}

// Migrate creates any missing tables for the given driver.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch driver {
	case DriverMySQL, "":
		stmts = mysqlSchema
	case DriverSQLite:
		stmts = sqliteSchema
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i, err)
		}
	}
	return nil
}
