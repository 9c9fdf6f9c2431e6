package model

import "time"

// Train describes a physical train and its seating layout.  A train is
// made of CargoCount cargos (carriages), each offering SeatsPerCargo
// seats.  Both counts are positive and the product is the number of
// sellable seats on every journey the train runs.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – display name of the train.
//  CargoCount    – number of cargos, cargos are numbered from 1.
//  SeatsPerCargo – seats in each cargo, seats are numbered from 1.
//  CreatedAt     – creation timestamp.
type Train struct {
    ID            uint64    `json:"id"`              // trains.id
    Name          string    `json:"name"`            // trains.name
    CargoCount    int       `json:"cargo_count"`     // trains.cargo_count
    SeatsPerCargo int       `json:"seats_per_cargo"` // trains.seats_per_cargo
    CreatedAt     time.Time `json:"created_at"`      // trains.created_at
}

// Capacity returns the total number of seats on the train.
func (t Train) Capacity() int {
    return t.CargoCount * t.SeatsPerCargo
}
