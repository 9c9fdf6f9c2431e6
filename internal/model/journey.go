package model

import "time"

// Journey is a scheduled run of a train.  The journey sells exactly as
// many seats as its train offers.  ArrivalTime is always strictly after
// DepartureTime.
//
// Fields:
//  ID            – primary key identifier.
//  TrainID       – train running the journey.
//  DepartureTime – scheduled departure (UTC).
//  ArrivalTime   – scheduled arrival (UTC).
//  CreatedAt     – creation timestamp.
type Journey struct {
    ID            uint64    `json:"id"`             // journeys.id
    TrainID       uint64    `json:"train_id"`       // journeys.train_id
    DepartureTime time.Time `json:"departure_time"` // journeys.departure_time
    ArrivalTime   time.Time `json:"arrival_time"`   // journeys.arrival_time
    CreatedAt     time.Time `json:"created_at"`     // journeys.created_at
}
