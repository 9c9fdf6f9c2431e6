package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/train-station/internal/model"
)

// TrainRepo manages persistence for trains.
type TrainRepo struct {
	db *sql.DB
}

// NewTrainRepo constructs a TrainRepo with the given DB handle.
func NewTrainRepo(db *sql.DB) *TrainRepo {
	return &TrainRepo{db: db}
}

// Create inserts a new train and populates its ID and created_at.
func (r *TrainRepo) Create(ctx context.Context, t *model.Train) error {
	const q = `INSERT INTO trains (name, cargo_count, seats_per_cargo) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, t.Name, t.CargoCount, t.SeatsPerCargo)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT created_at FROM trains WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, t.ID).Scan(&t.CreatedAt)
}

// GetByID retrieves a train by its ID.  It returns ErrNotFound if there
// is no matching row.
func (r *TrainRepo) GetByID(ctx context.Context, id uint64) (*model.Train, error) {
	const q = `SELECT id, name, cargo_count, seats_per_cargo, created_at FROM trains WHERE id = ?`
	var t model.Train
	err := r.db.QueryRowContext(ctx, q, id).Scan(&t.ID, &t.Name, &t.CargoCount, &t.SeatsPerCargo, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// List returns all trains ordered by ID.
func (r *TrainRepo) List(ctx context.Context) ([]model.Train, error) {
	const q = `SELECT id, name, cargo_count, seats_per_cargo, created_at FROM trains ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	trains := make([]model.Train, 0)
	for rows.Next() {
		var t model.Train
		if err := rows.Scan(&t.ID, &t.Name, &t.CargoCount, &t.SeatsPerCargo, &t.CreatedAt); err != nil {
			return nil, err
		}
		trains = append(trains, t)
	}
	return trains, rows.Err()
}
