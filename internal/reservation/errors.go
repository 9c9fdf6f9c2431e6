package reservation

import (
	"errors"
	"fmt"
)

// Sentinel errors classify every failure the reservation core can
// report.  Typed errors below carry the details and match these values
// through errors.Is.
var (
	ErrEmptyOrder         = errors.New("order must contain at least one ticket")
	ErrJourneyNotFound    = errors.New("journey not found")
	ErrOrderNotFound      = errors.New("order not found")
	ErrInvalidCargo       = errors.New("invalid cargo")
	ErrInvalidSeat        = errors.New("invalid seat")
	ErrDuplicateSeat      = errors.New("duplicate seat in request")
	ErrSeatTaken          = errors.New("seat already taken")
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// CargoRangeError reports a cargo number outside [1, Max].
type CargoRangeError struct {
	Cargo int
	Max   int
}

func (e *CargoRangeError) Error() string {
	return fmt.Sprintf("cargo number must be in range [1, %d], not %d", e.Max, e.Cargo)
}

func (e *CargoRangeError) Is(target error) bool { return target == ErrInvalidCargo }

// SeatRangeError reports a seat number outside [1, Max].
type SeatRangeError struct {
	Seat int
	Max  int
}

func (e *SeatRangeError) Error() string {
	return fmt.Sprintf("seat number must be in range [1, %d], not %d", e.Max, e.Seat)
}

func (e *SeatRangeError) Is(target error) bool { return target == ErrInvalidSeat }

// DuplicateSeatError is returned when one request asks for the same
// physical seat more than once.  Index and First are positions in the
// request's ticket list.
type DuplicateSeatError struct {
	Seat  SeatRequest
	Index int
	First int
}

func (e *DuplicateSeatError) Error() string {
	return fmt.Sprintf("ticket %d repeats ticket %d: journey %d cargo %d seat %d",
		e.Index, e.First, e.Seat.JourneyID, e.Seat.Cargo, e.Seat.Seat)
}

func (e *DuplicateSeatError) Is(target error) bool { return target == ErrDuplicateSeat }

// SeatTakenError is returned when a seat is already owned by a
// committed ticket.  Retrying with the same seat fails again.
type SeatTakenError struct {
	JourneyID uint64
	Cargo     int
	Seat      int
}

func (e *SeatTakenError) Error() string {
	return fmt.Sprintf("seat %d in cargo %d on journey %d is already taken", e.Seat, e.Cargo, e.JourneyID)
}

func (e *SeatTakenError) Is(target error) bool { return target == ErrSeatTaken }

// StorageError wraps an infrastructure failure.  Nothing was persisted
// and the whole operation may be retried by the caller.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

// TicketError attributes a failure to one ticket of a request so the
// caller can point at the offending entry.
type TicketError struct {
	Index int
	Field string
	Err   error
}

func (e *TicketError) Error() string {
	return fmt.Sprintf("tickets[%d].%s: %v", e.Index, e.Field, e.Err)
}

func (e *TicketError) Unwrap() error { return e.Err }

// Unavailable wraps err as a StorageError for operation op.  A nil err
// returns nil.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
