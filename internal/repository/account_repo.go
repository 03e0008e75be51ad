// internal/repository/account_repo.go
package repository

import (
	"context"

	"goalflow/internal/domain"

	"github.com/shopspring/decimal"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// CreateAccount adds a new account using the provided DBExecutor.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccountByID retrieves an account by its ID.
	GetAccountByID(ctx context.Context, q DBExecutor, id int64) (*domain.Account, error)
	// ListAccounts returns every account ordered by ID.
	ListAccounts(ctx context.Context, q DBExecutor) ([]domain.Account, error)
	// LockAccounts row-locks the given accounts for the rest of the transaction, in ID order.
	// It fails with util.ErrAccountNotFound if any of them does not exist.
	LockAccounts(ctx context.Context, q DBExecutor, ids []int64) ([]domain.Account, error)
	// UpdateAccountBalance adds delta (which may be negative) to an account's balance.
	UpdateAccountBalance(ctx context.Context, q DBExecutor, accountID int64, delta decimal.Decimal) error
	// UpdateAccountDetails stores the holder fields of an account. The balance is never written.
	UpdateAccountDetails(ctx context.Context, q DBExecutor, account *domain.Account) error
	// DeleteAccount removes an account that no movement references.
	DeleteAccount(ctx context.Context, q DBExecutor, id int64) error
}
