package classify

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ledgerline/spendgate/pkg/transport"
	"github.com/ledgerline/spendgate/pkg/wire"
)

// Protocol violations surfaced through Unavailable.Violation.
var (
	ErrReplayMismatch = errors.New("service reported an intent replay mismatch")
	ErrMissingSeal    = errors.New("approval arrived without a seal")
	ErrUnexpectedSeal = errors.New("denial arrived with a seal")
)

// ClientRequestError reports a 4xx rejection: the request was malformed,
// unauthorized, or throttled. Distinct from Unavailable because it does not
// mean the spend might be unsafe; it means this request was never a
// candidate for a decision.
type ClientRequestError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *ClientRequestError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("service rejected request (%d %s): %s", e.Status, e.Code, msg)
	}
	return fmt.Sprintf("service rejected request (%d): %s", e.Status, msg)
}

// Classify turns one transport attempt into an outcome. sendErr is the
// transport-level failure, if any; res is the HTTP exchange otherwise.
//
// Priority order: transport failure, 5xx, 409 replay, other 4xx, then the
// 200 decision body. 4xx (except 409) returns a *ClientRequestError instead
// of an outcome; every unrecognized shape lands in Unavailable.
func Classify(res *transport.Result, sendErr error) (Outcome, error) {
	if sendErr != nil {
		return Unavailable{
			Cause:  CauseNetwork,
			Detail: sendErr.Error(),
		}, nil
	}
	if res == nil {
		return Unavailable{
			Cause:  CauseNetwork,
			Detail: "no response received",
		}, nil
	}

	switch {
	case res.Status >= 500:
		return Unavailable{
			Cause:  CauseServer,
			Detail: fmt.Sprintf("server error %d %s", res.Status, http.StatusText(res.Status)),
			Status: res.Status,
		}, nil

	case res.Status == http.StatusConflict:
		// Replay ambiguity: the intent may or may not have been decided.
		// Fail closed rather than report a client mistake.
		return Unavailable{
			Cause:     CauseServer,
			Detail:    ErrReplayMismatch.Error(),
			Status:    res.Status,
			Violation: ErrReplayMismatch,
		}, nil

	case res.Status >= 400:
		return nil, ClientError(res)

	case res.Status == http.StatusOK:
		return classifyDecision(res.Body)

	default:
		return Unavailable{
			Cause:  CauseServer,
			Detail: fmt.Sprintf("unexpected status %d", res.Status),
			Status: res.Status,
		}, nil
	}
}

// ClientError builds a ClientRequestError from a 4xx result, pulling code,
// request id, and message from an RFC 7807 problem body when one is present.
func ClientError(res *transport.Result) *ClientRequestError {
	out := &ClientRequestError{Status: res.Status}
	if p, ok := wire.DecodeProblem(res.Body); ok {
		out.Code = p.Code
		out.RequestID = p.RequestID
		out.Message = p.Detail
		if out.Message == "" {
			out.Message = p.Title
		}
	}
	return out
}

func classifyDecision(body []byte) (Outcome, error) {
	dec, err := wire.DecodeAuthorizeDecision(body)
	if err != nil {
		return Unavailable{
			Cause:  CauseServer,
			Detail: fmt.Sprintf("malformed decision body: %v", err),
			Status: http.StatusOK,
		}, nil
	}

	switch dec.Decision {
	case wire.DecisionApproved:
		if dec.Seal == nil {
			return Unavailable{
				Cause:     CauseServer,
				Detail:    ErrMissingSeal.Error(),
				Status:    http.StatusOK,
				Violation: ErrMissingSeal,
			}, nil
		}
		return Approved{
			DecisionID:         dec.DecisionID,
			Seal:               dec.Seal,
			PaymentInstruction: dec.PaymentInstruction,
			RemainingLimits:    dec.LimitsAfterApproval,
			ExpiresAt:          parseExpiry(dec.ExpiresAt),
		}, nil

	case wire.DecisionDenied:
		if dec.Seal != nil {
			return Unavailable{
				Cause:     CauseServer,
				Detail:    ErrUnexpectedSeal.Error(),
				Status:    http.StatusOK,
				Violation: ErrUnexpectedSeal,
			}, nil
		}
		out := Denied{ReasonCode: dec.ReasonCode}
		if dec.Denial != nil {
			out.Message = dec.Denial.Message
			out.Hint = dec.Denial.Hint
			if dec.Denial.Actionable != nil {
				cents := dec.Denial.Actionable.AvailableCents
				out.AvailableCents = &cents
			}
		}
		return out, nil

	default:
		return Unavailable{
			Cause:  CauseServer,
			Detail: fmt.Sprintf("unrecognized decision %q", dec.Decision),
			Status: http.StatusOK,
		}, nil
	}
}

// parseExpiry is lenient: an absent or unparseable expiry yields nil rather
// than failing an otherwise valid approval.
func parseExpiry(s string) *time.Time {
	if s == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &ts
}
