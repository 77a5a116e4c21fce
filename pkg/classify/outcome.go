// Package classify maps a transport result, or the absence of one, onto the
// closed decision outcome set the gate routes on. Anything not explicitly
// recognized as an approval or a denial is Unavailable: the caller must treat
// it as "no authorization happened", never as either policy outcome.
package classify

import (
	"time"

	"github.com/ledgerline/spendgate/pkg/wire"
)

// Outcome is the closed variant set. Exactly one outcome is produced per
// request attempt. The unexported method keeps the set closed.
type Outcome interface {
	// Label names the routing channel for this outcome.
	Label() string
	sealed()
}

// Cause distinguishes why a decision could not be obtained.
type Cause int

const (
	CauseNetwork Cause = iota
	CauseServer
)

func (c Cause) String() string {
	switch c {
	case CauseNetwork:
		return "network"
	case CauseServer:
		return "server"
	default:
		return "unknown"
	}
}

// Approved is a rendered, sealed approval.
type Approved struct {
	DecisionID         string
	Seal               *wire.Seal
	PaymentInstruction *wire.PaymentInstruction
	RemainingLimits    *wire.Limits
	ExpiresAt          *time.Time
}

func (Approved) Label() string { return "approved" }
func (Approved) sealed()       {}

// Expired reports whether the approval's validity window has passed. An
// approval without an expiry never expires client-side.
func (a Approved) Expired(now time.Time) bool {
	return a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// Denied is a rendered denial: a legitimate policy outcome, not an error.
type Denied struct {
	ReasonCode     string
	Message        string
	Hint           string
	AvailableCents *int64
}

func (Denied) Label() string { return "denied" }
func (Denied) sealed()       {}

// InsufficientBudget is the pre-check short-circuit: the remote authorize
// call was never made.
type InsufficientBudget struct {
	RemainingCents int64
	RequiredCents  int64
}

func (InsufficientBudget) Label() string { return "insufficient_budget" }
func (InsufficientBudget) sealed()       {}

// Unavailable means no definitive decision exists. Status is the HTTP status
// when the cause is the server, zero otherwise. Violation carries the
// protocol violation sentinel when the response itself was the problem.
type Unavailable struct {
	Cause     Cause
	Detail    string
	Status    int
	Violation error
}

func (Unavailable) Label() string { return "unavailable" }
func (Unavailable) sealed()       {}
