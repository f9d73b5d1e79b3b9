package protocol

import "github.com/iliyamo/restaurant-reservation/internal/model"

// Decision is the outcome of Authorize.
type Decision struct {
	Allowed bool
	Reason  string
}

// staffOnly lists the operator commands. Everything else is open to any
// connection, identified or not.
var staffOnly = map[Verb]bool{
	VerbMarkLate:     true,
	VerbReleaseTable: true,
	VerbListTables:   true,
	VerbSweepExpired: true,
}

// Authorize is the single permission check, run once per command before it
// reaches the engine.
func Authorize(role string, cmd Command) Decision {
	if staffOnly[cmd.Verb()] && !model.IsStaff(role) {
		return Decision{Allowed: false, Reason: "STAFF_ONLY"}
	}
	return Decision{Allowed: true}
}
