package database

import (
	"database/sql"
	"fmt"

	"github.com/apex/log"
)

const Schema = `
CREATE TABLE IF NOT EXISTS complaints (
    id VARCHAR(36) NOT NULL,
    product_id VARCHAR(255) NOT NULL,
    reporter VARCHAR(255) NOT NULL,
    content TEXT NOT NULL,
    country VARCHAR(128) NOT NULL,
    report_count INT NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    modified_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    PRIMARY KEY (id),
    UNIQUE KEY uniq_product_reporter (product_id, reporter),
    INDEX idx_created_at (created_at)
);
`

// InitializeSchema creates the necessary database tables. The unique key on
// (product_id, reporter) backs the at-most-one-record-per-pair invariant.
func InitializeSchema(db *sql.DB) error {
	log.Info("Initializing database schema...")

	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	log.Info("Database schema initialized successfully")
	return nil
}
