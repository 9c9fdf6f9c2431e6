package reservation

import (
	"sort"

	"github.com/iliyamo/train-station/internal/model"
)

// Availability is the read-side projection of a journey's seats.
// TakenSeats maps a cargo number to the booked seats in that cargo in
// ascending order.  FreeCount is TotalSeats minus the number of tickets.
type Availability struct {
	JourneyID  uint64        `json:"journey_id"`
	TotalSeats int           `json:"total_seats"`
	TakenSeats map[int][]int `json:"taken_seats"`
	FreeCount  int           `json:"free_count"`
}

// ComputeAvailability builds the projection for a journey from its
// committed tickets.
func ComputeAvailability(journeyID uint64, c Capacity, tickets []model.Ticket) Availability {
	taken := make(map[int][]int)
	for _, t := range tickets {
		taken[t.Cargo] = append(taken[t.Cargo], t.Seat)
	}
	for cargo := range taken {
		sort.Ints(taken[cargo])
	}
	total := c.Total()
	return Availability{
		JourneyID:  journeyID,
		TotalSeats: total,
		TakenSeats: taken,
		FreeCount:  total - len(tickets),
	}
}

// IsTaken reports whether the seat appears in the projection.
func (a Availability) IsTaken(cargo, seat int) bool {
	seats := a.TakenSeats[cargo]
	i := sort.SearchInts(seats, seat)
	return i < len(seats) && seats[i] == seat
}
