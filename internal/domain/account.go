// internal/domain/account.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// Account is a tracked account. Balance is owned by the ledger and always equals
// inflows minus outflows over the movement log.
type Account struct {
	ID          int64           `db:"id" json:"id"`                     // Primary key, BIGSERIAL in DB
	FirstName   string          `db:"first_name" json:"first_name"`     // Holder's first name
	LastName    string          `db:"last_name" json:"last_name"`       // Holder's last name
	Email       string          `db:"email" json:"email"`               // Unique contact email
	PhoneNumber string          `db:"phone_number" json:"phone_number"` // Contact phone number
	Balance     decimal.Decimal `db:"balance" json:"balance"`           // Running balance, NUMERIC(20, 2) in DB
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`     // Timestamp of creation
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`     // Timestamp of last update
}

// NewAccount creates a new Account instance with a zero balance.
func NewAccount(firstName, lastName, email, phoneNumber string) *Account {
	now := time.Now().UTC()
	return &Account{
		FirstName:   firstName,
		LastName:    lastName,
		Email:       email,
		PhoneNumber: phoneNumber,
		Balance:     decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AccountBalance is the balance of one account after a ledger mutation.
type AccountBalance struct {
	AccountID int64           `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
}

// BalanceReport compares the stored balance with one recomputed from the movement log.
type BalanceReport struct {
	AccountID  int64           `json:"account_id"`
	Stored     decimal.Decimal `json:"stored_balance"`
	Recomputed decimal.Decimal `json:"recomputed_balance"`
	Drift      decimal.Decimal `json:"drift"`
	Consistent bool            `json:"consistent"`
	CheckedAt  time.Time       `json:"checked_at"`
}
