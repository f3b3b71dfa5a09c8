package ports

import "time"

// Clock is the wall-clock source used for expiry decisions
type Clock interface {
	Now() time.Time
}
