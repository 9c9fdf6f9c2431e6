package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/train-station/internal/model"
)

// JourneyRepo manages persistence for journeys.
type JourneyRepo struct {
	db *sql.DB
}

// NewJourneyRepo constructs a JourneyRepo with the given DB handle.
func NewJourneyRepo(db *sql.DB) *JourneyRepo {
	return &JourneyRepo{db: db}
}

// JourneySummary is a journey as listed to customers: its schedule, the
// train running it and how many tickets are still for sale.
type JourneySummary struct {
	ID               uint64    `json:"id"`
	TrainID          uint64    `json:"train_id"`
	TrainName        string    `json:"train_name"`
	TrainCargoCount  int       `json:"train_cargo_count"`
	DepartureTime    time.Time `json:"departure_time"`
	ArrivalTime      time.Time `json:"arrival_time"`
	TicketsAvailable int       `json:"tickets_available"`
}

// JourneyDetail is a journey together with the train that runs it.
type JourneyDetail struct {
	model.Journey
	Train model.Train `json:"train"`
}

// Create inserts a journey.  ErrTrainNotFound is returned when the
// referenced train does not exist.
func (r *JourneyRepo) Create(ctx context.Context, j *model.Journey) error {
	const q = `INSERT INTO journeys (train_id, departure_time, arrival_time) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, j.TrainID, j.DepartureTime.UTC(), j.ArrivalTime.UTC())
	if err != nil {
		if isMissingReference(err) {
			return ErrTrainNotFound
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	j.ID = uint64(id)
	const sel = `SELECT created_at FROM journeys WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, j.ID).Scan(&j.CreatedAt)
}

// GetDetail returns a journey and its train, or ErrNotFound.
func (r *JourneyRepo) GetDetail(ctx context.Context, id uint64) (*JourneyDetail, error) {
	const q = `SELECT j.id, j.train_id, j.departure_time, j.arrival_time, j.created_at,
                      t.id, t.name, t.cargo_count, t.seats_per_cargo, t.created_at
               FROM journeys j
               JOIN trains t ON t.id = j.train_id
               WHERE j.id = ?`
	var d JourneyDetail
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.TrainID, &d.DepartureTime, &d.ArrivalTime, &d.CreatedAt,
		&d.Train.ID, &d.Train.Name, &d.Train.CargoCount, &d.Train.SeatsPerCargo, &d.Train.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

// List returns journeys ordered by ID with their remaining ticket
// count, computed as seats_per_cargo * cargo_count minus the number of
// tickets sold.  When trainID is non-zero only that train's journeys
// are returned.
func (r *JourneyRepo) List(ctx context.Context, trainID uint64) ([]JourneySummary, error) {
	q := `SELECT j.id, j.train_id, t.name, t.cargo_count, j.departure_time, j.arrival_time,
                 t.seats_per_cargo * t.cargo_count - COUNT(tk.id)
          FROM journeys j
          JOIN trains t ON t.id = j.train_id
          LEFT JOIN tickets tk ON tk.journey_id = j.id`
	args := []interface{}{}
	if trainID != 0 {
		q += ` WHERE j.train_id = ?`
		args = append(args, trainID)
	}
	q += ` GROUP BY j.id, j.train_id, t.name, t.cargo_count, t.seats_per_cargo, j.departure_time, j.arrival_time
           ORDER BY j.id`
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]JourneySummary, 0)
	for rows.Next() {
		var s JourneySummary
		if err := rows.Scan(&s.ID, &s.TrainID, &s.TrainName, &s.TrainCargoCount,
			&s.DepartureTime, &s.ArrivalTime, &s.TicketsAvailable); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Delete removes a journey.  Its tickets are removed by the foreign key
// cascade.  ErrNotFound is returned when no row was deleted.
func (r *JourneyRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM journeys WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
