// Package repository implements MySQL persistence for trains, journeys,
// orders and tickets.  The sentinel values below let handlers tell the
// failure scenarios apart; for example ErrNotFound becomes an HTTP 404
// and ErrTrainNotFound rejects a journey that references no train.
// Order and ticket failures are reported with the reservation package
// errors instead, since the reservation core owns their meaning.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrTrainNotFound is returned when a journey references a missing train.
var ErrTrainNotFound = errors.New("train not found")

// MySQL server error numbers the repositories react to.
const (
	errDupEntry        = 1062 // ER_DUP_ENTRY
	errLockDeadlock    = 1213 // ER_LOCK_DEADLOCK
	errNoReferencedRow = 1452 // ER_NO_REFERENCED_ROW_2
)

func mysqlErrorNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// isSeatContention reports whether err means another transaction holds
// or just won the unique key of the inserted seat.  InnoDB resolves two
// inserts waiting on the same key, after its holder rolled back, by
// picking one as the deadlock victim; the survivor owns the seat.
func isSeatContention(err error) bool {
	n := mysqlErrorNumber(err)
	return n == errDupEntry || n == errLockDeadlock
}

// isMissingReference reports whether err is a foreign key violation on insert.
func isMissingReference(err error) bool { return mysqlErrorNumber(err) == errNoReferencedRow }
