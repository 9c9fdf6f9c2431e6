package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables owned by the booking service.  Tickets are
// unique per (journey, cargo, seat) and cascade with both their order
// and their journey.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS trains (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(60) NOT NULL,
		cargo_count INT UNSIGNED NOT NULL,
		seats_per_cargo INT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT chk_trains_cargo_count CHECK (cargo_count > 0),
		CONSTRAINT chk_trains_seats_per_cargo CHECK (seats_per_cargo > 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS journeys (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		train_id BIGINT UNSIGNED NOT NULL,
		departure_time DATETIME NOT NULL,
		arrival_time DATETIME NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_journeys_train FOREIGN KEY (train_id) REFERENCES trains (id) ON DELETE CASCADE,
		CONSTRAINT chk_journeys_window CHECK (arrival_time > departure_time)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT UNSIGNED NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_orders_owner_created (owner_id, created_at)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		order_id BIGINT UNSIGNED NOT NULL,
		journey_id BIGINT UNSIGNED NOT NULL,
		cargo INT UNSIGNED NOT NULL,
		seat INT UNSIGNED NOT NULL,
		CONSTRAINT uq_tickets_journey_cargo_seat UNIQUE (journey_id, cargo, seat),
		CONSTRAINT fk_tickets_order FOREIGN KEY (order_id) REFERENCES orders (id) ON DELETE CASCADE,
		CONSTRAINT fk_tickets_journey FOREIGN KEY (journey_id) REFERENCES journeys (id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
}

// Migrate creates any missing table.  It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
