// Package budget models the read-only budget view the decision service
// reports for a mandate. A snapshot reflects server-side truth at query time
// only; nothing here is mutated or persisted locally.
package budget

import (
	"fmt"

	"github.com/ledgerline/spendgate/pkg/wire"
)

// StatusActive is the only mandate status under which spending can proceed.
const StatusActive = "active"

// Snapshot is the flattened budget query result.
type Snapshot struct {
	MandateID             string `json:"mandate_id"`
	Currency              string `json:"currency"`
	Status                string `json:"status"`
	DailyLimitCents       int64  `json:"daily_limit_cents"`
	DailySpentCents       int64  `json:"daily_spent_cents"`
	DailyRemainingCents   int64  `json:"daily_remaining_cents"`
	MonthlyLimitCents     int64  `json:"monthly_limit_cents"`
	MonthlySpentCents     int64  `json:"monthly_spent_cents"`
	MonthlyRemainingCents int64  `json:"monthly_remaining_cents"`
	SpendAllowed          bool   `json:"spend_allowed"`
}

// FromWire flattens a budget query response into a Snapshot.
func FromWire(w *wire.BudgetResponse) *Snapshot {
	return &Snapshot{
		MandateID:             w.MandateID,
		Currency:              w.Currency,
		Status:                w.Status,
		DailyLimitCents:       w.Daily.LimitCents,
		DailySpentCents:       w.Daily.SpentCents,
		DailyRemainingCents:   w.Daily.RemainingCents,
		MonthlyLimitCents:     w.Monthly.LimitCents,
		MonthlySpentCents:     w.Monthly.SpentCents,
		MonthlyRemainingCents: w.Monthly.RemainingCents,
		SpendAllowed:          w.SpendAllowed,
	}
}

// Check verifies the window arithmetic: spent + remaining must equal the
// limit in both windows. A snapshot that fails this is inconsistent and must
// not be used for a spend decision.
func (s *Snapshot) Check() error {
	if s.DailySpentCents+s.DailyRemainingCents != s.DailyLimitCents {
		return fmt.Errorf("budget: daily window inconsistent: %d spent + %d remaining != %d limit",
			s.DailySpentCents, s.DailyRemainingCents, s.DailyLimitCents)
	}
	if s.MonthlySpentCents+s.MonthlyRemainingCents != s.MonthlyLimitCents {
		return fmt.Errorf("budget: monthly window inconsistent: %d spent + %d remaining != %d limit",
			s.MonthlySpentCents, s.MonthlyRemainingCents, s.MonthlyLimitCents)
	}
	return nil
}

// SpendOpen reports whether the mandate permits spending at all.
func (s *Snapshot) SpendOpen() bool {
	return s.Status == StatusActive && s.SpendAllowed
}

// PercentUsed returns round(spent/limit*100), or 0 when the limit is 0.
// Integer arithmetic; no floats touch budget math.
func PercentUsed(spentCents, limitCents int64) int {
	if limitCents <= 0 {
		return 0
	}
	return int((spentCents*100 + limitCents/2) / limitCents)
}

// PercentUsedDaily is the display-ready daily utilization.
func (s *Snapshot) PercentUsedDaily() int {
	return PercentUsed(s.DailySpentCents, s.DailyLimitCents)
}

// PercentUsedMonthly is the display-ready monthly utilization.
func (s *Snapshot) PercentUsedMonthly() int {
	return PercentUsed(s.MonthlySpentCents, s.MonthlyLimitCents)
}
