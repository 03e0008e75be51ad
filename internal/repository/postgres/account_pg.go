// internal/repository/postgres/account_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"goalflow/internal/domain"
	"goalflow/internal/repository"
	"goalflow/internal/util"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, first_name, last_name, email, phone_number, balance, created_at, updated_at`

// AccountRepository implements repository.AccountRepository for PostgreSQL.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
// Methods receive their DBExecutor per call so they can join a ledger transaction.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account using the provided DBExecutor.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := `INSERT INTO accounts (first_name, last_name, email, phone_number, balance, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		account.FirstName,
		account.LastName,
		account.Email,
		account.PhoneNumber,
		account.Balance,
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: email %q already registered", util.ErrInvalidInput, account.Email)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID using the provided DBExecutor.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	var account domain.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	err := q.GetContext(ctx, &account, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID %d: %w", id, err)
	}
	return &account, nil
}

// ListAccounts returns all accounts ordered by ID.
func (r *AccountRepository) ListAccounts(ctx context.Context, q repository.DBExecutor) ([]domain.Account, error) {
	accounts := []domain.Account{}
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	if err := q.SelectContext(ctx, &accounts, query); err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// LockAccounts takes row locks on the given accounts in ascending ID order so that
// concurrent transactions touching overlapping accounts cannot deadlock.
func (r *AccountRepository) LockAccounts(ctx context.Context, q repository.DBExecutor, ids []int64) ([]domain.Account, error) {
	accounts := []domain.Account{}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`
	if err := q.SelectContext(ctx, &accounts, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to lock accounts %v: %w", ids, err)
	}
	if len(accounts) != len(ids) {
		return nil, fmt.Errorf("lock accounts %v: found %d: %w", ids, len(accounts), util.ErrAccountNotFound)
	}
	return accounts, nil
}

// UpdateAccountBalance applies a signed delta to the balance of a specific account.
func (r *AccountRepository) UpdateAccountBalance(ctx context.Context, q repository.DBExecutor, accountID int64, delta decimal.Decimal) error {
	query := `UPDATE accounts SET balance = balance + $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, delta, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("failed to update balance for account %d: %w", accountID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating balance for account %d: %w", accountID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("update balance for account %d: %w", accountID, util.ErrAccountNotFound)
	}
	return nil
}

// UpdateAccountDetails writes the holder fields of an account and refreshes account.UpdatedAt.
func (r *AccountRepository) UpdateAccountDetails(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	account.UpdatedAt = time.Now().UTC()
	query := `UPDATE accounts
              SET first_name = $1, last_name = $2, email = $3, phone_number = $4, updated_at = $5
              WHERE id = $6`
	result, err := q.ExecContext(ctx, query,
		account.FirstName,
		account.LastName,
		account.Email,
		account.PhoneNumber,
		account.UpdatedAt,
		account.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("%w: email %q already registered", util.ErrInvalidInput, account.Email)
		}
		return fmt.Errorf("failed to update account %d: %w", account.ID, err)
	}
	return expectRow(result, "update account", account.ID)
}

// DeleteAccount removes an account. The movements foreign key refuses accounts still in the log.
func (r *AccountRepository) DeleteAccount(ctx context.Context, q repository.DBExecutor, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("%w: account %d is referenced by movements", util.ErrInvalidInput, id)
		}
		return fmt.Errorf("failed to delete account %d: %w", id, err)
	}
	return expectRow(result, "delete account", id)
}

func expectRow(result sql.Result, op string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after %s %d: %w", op, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", op, id, util.ErrAccountNotFound)
	}
	return nil
}
