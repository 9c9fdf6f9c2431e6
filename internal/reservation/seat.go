// Package reservation holds the seat-reservation rules: capacity checks,
// availability projection and the all-or-nothing order commit.  Storage
// is reached only through the Store interface.
package reservation

import "github.com/iliyamo/train-station/internal/model"

// Capacity is the physical layout of the train running a journey.
type Capacity struct {
	CargoCount    int `json:"cargo_count"`
	SeatsPerCargo int `json:"seats_per_cargo"`
}

// CapacityOf returns the layout of t.
func CapacityOf(t model.Train) Capacity {
	return Capacity{CargoCount: t.CargoCount, SeatsPerCargo: t.SeatsPerCargo}
}

// Total is the number of sellable seats.
func (c Capacity) Total() int { return c.CargoCount * c.SeatsPerCargo }

// SeatRequest asks for one seat on one journey.
type SeatRequest struct {
	JourneyID uint64 `json:"journey"`
	Cargo     int    `json:"cargo"`
	Seat      int    `json:"seat"`
}

// ValidateSeat checks that cargo and seat fall inside the train layout.
// Cargo is checked first.
func ValidateSeat(cargo, seat int, c Capacity) error {
	if cargo < 1 || cargo > c.CargoCount {
		return &CargoRangeError{Cargo: cargo, Max: c.CargoCount}
	}
	if seat < 1 || seat > c.SeatsPerCargo {
		return &SeatRangeError{Seat: seat, Max: c.SeatsPerCargo}
	}
	return nil
}
