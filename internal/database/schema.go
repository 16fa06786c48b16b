package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema holds the tables this service owns or needs to exist.  users is
// shared with the catalog service; CREATE TABLE IF NOT EXISTS leaves an
// existing table alone.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		name          VARCHAR(255)    NOT NULL,
		email         VARCHAR(255)    NOT NULL,
		password_hash VARCHAR(255)    NOT NULL,
		role_id       TINYINT UNSIGNED NOT NULL DEFAULT 2,
		status        ENUM('active','inactive') NOT NULL DEFAULT 'active',
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		UNIQUE KEY uq_users_email (email)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS token_blacklist (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		token_hash     CHAR(64) NOT NULL,
		blacklisted_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		expires_at     DATETIME NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_token_blacklist_hash (token_hash),
		KEY idx_token_blacklist_expires (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS unavailabilities (
		id             BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		reference_id   BIGINT UNSIGNED NOT NULL,
		reference_type ENUM('Driver','Hotel','Vehicle') NOT NULL,
		start_datetime DATETIME NOT NULL,
		end_datetime   DATETIME NOT NULL,
		reason         TEXT NULL,
		created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (id),
		KEY idx_unavailabilities_ref_start (reference_type, reference_id, start_datetime),
		KEY idx_unavailabilities_start (start_datetime),
		KEY idx_unavailabilities_end (end_datetime),
		CONSTRAINT chk_unavailabilities_range CHECK (start_datetime < end_datetime)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	// One row per reference ever written.  Writers X-lock their row for the
	// duration of the overlap check and write.
	`CREATE TABLE IF NOT EXISTS unavailability_locks (
		reference_type ENUM('Driver','Hotel','Vehicle') NOT NULL,
		reference_id   BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (reference_type, reference_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.  It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
