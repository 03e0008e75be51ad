// internal/domain/movement.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// AmountScale is the number of fractional digits money is kept at.
const AmountScale = 2

// Movement is a record of money flowing out of an optional source account and
// into an optional destination account. At least one side is always set.
type Movement struct {
	ID                   int64           `db:"id" json:"id"`                                         // Primary key, BIGSERIAL in DB
	SourceAccountID      *int64          `db:"source_account_id" json:"source_account_id"`           // Debited account (nullable for income)
	DestinationAccountID *int64          `db:"destination_account_id" json:"destination_account_id"` // Credited account (nullable for spending)
	Amount               decimal.Decimal `db:"amount" json:"amount"`                                 // Non-negative, NUMERIC(20, 2) in DB
	Category             string          `db:"category" json:"category"`                             // Free-form tag, e.g. PAYROLL, RENT
	OccurredAt           time.Time       `db:"occurred_at" json:"occurred_at"`                       // When the money moved; drives week bucketing
	CreatedAt            time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time       `db:"updated_at" json:"updated_at"`
}

// NewMovement creates a new Movement instance. A zero occurredAt means "now".
func NewMovement(sourceID, destinationID *int64, amount decimal.Decimal, occurredAt time.Time, category string) *Movement {
	now := time.Now().UTC()
	if occurredAt.IsZero() {
		occurredAt = now
	}
	return &Movement{
		SourceAccountID:      sourceID,
		DestinationAccountID: destinationID,
		Amount:               amount,
		Category:             category,
		OccurredAt:           occurredAt.UTC(),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// AccountIDs returns the distinct accounts the movement touches, ascending.
func (m *Movement) AccountIDs() []int64 {
	ids := make([]int64, 0, 2)
	if m.SourceAccountID != nil {
		ids = append(ids, *m.SourceAccountID)
	}
	if m.DestinationAccountID != nil {
		d := *m.DestinationAccountID
		switch {
		case len(ids) == 0:
			ids = append(ids, d)
		case d < ids[0]:
			ids = []int64{d, ids[0]}
		case d > ids[0]:
			ids = append(ids, d)
		}
	}
	return ids
}

// EffectOn returns the signed change this movement of the given amount makes to accountID.
func (m *Movement) EffectOn(accountID int64, amount decimal.Decimal) decimal.Decimal {
	effect := decimal.Zero
	if m.SourceAccountID != nil && *m.SourceAccountID == accountID {
		effect = effect.Sub(amount)
	}
	if m.DestinationAccountID != nil && *m.DestinationAccountID == accountID {
		effect = effect.Add(amount)
	}
	return effect
}

// MovementEventType names a ledger mutation for published events.
type MovementEventType string

const (
	MovementRecorded MovementEventType = "ledger.movement.recorded"
	MovementAmended  MovementEventType = "ledger.movement.amended"
	MovementDeleted  MovementEventType = "ledger.movement.deleted"
)

// MovementEvent is published after a ledger mutation commits.
type MovementEvent struct {
	Type           MovementEventType `json:"type"`
	Movement       Movement          `json:"movement"`
	PreviousAmount *decimal.Decimal  `json:"previous_amount,omitempty"`
	Balances       []AccountBalance  `json:"balances"`
	Timestamp      time.Time         `json:"timestamp"`
}
