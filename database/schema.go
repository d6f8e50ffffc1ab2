package database

import (
	"context"
	"fmt"

	"github.com/apex/log"
)

// Table definitions. The complaint_votes primary key is the votedBy set:
// one row per (complaint, voter), so a duplicate vote is a no-op insert and
// |votedBy| == votes is maintained inside the vote transaction.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(256) NOT NULL,
		role ENUM('citizen', 'admin') NOT NULL DEFAULT 'citizen',
		reward_points INT NOT NULL DEFAULT 0,
		complaints_resolved INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS complaints (
		id VARCHAR(36) PRIMARY KEY,
		title VARCHAR(256) NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(64) NOT NULL,
		assigned_department VARCHAR(64),
		status ENUM('open', 'assigned', 'resolved') NOT NULL DEFAULT 'open',
		latitude DOUBLE NOT NULL,
		longitude DOUBLE NOT NULL,
		address VARCHAR(512),
		city VARCHAR(128),
		image VARCHAR(512),
		votes INT NOT NULL DEFAULT 0,
		escalated BOOLEAN NOT NULL DEFAULT FALSE,
		escalated_at TIMESTAMP NULL,
		user_id VARCHAR(36) NOT NULL,
		user_name VARCHAR(256) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		INDEX status_index (status),
		INDEX category_index (category),
		INDEX latitude_index (latitude),
		INDEX longitude_index (longitude),
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
	`CREATE TABLE IF NOT EXISTS complaint_votes (
		complaint_id VARCHAR(36) NOT NULL,
		user_id VARCHAR(36) NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (complaint_id, user_id),
		FOREIGN KEY (complaint_id) REFERENCES complaints(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id)
	)`,
}

// EnsureSchema creates the tables if they don't exist.
func (s *Service) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	log.Info("Database schema ensured")
	return nil
}
