// internal/repository/movement_repo.go
package repository

import (
	"context"

	"goalflow/internal/domain"

	"github.com/shopspring/decimal"
)

// MovementRepository defines the interface for movement log operations.
type MovementRepository interface {
	// CreateMovement appends a movement and sets its ID.
	CreateMovement(ctx context.Context, q DBExecutor, movement *domain.Movement) error
	// GetMovementByID retrieves a movement by its ID.
	GetMovementByID(ctx context.Context, q DBExecutor, id int64) (*domain.Movement, error)
	// GetMovementForUpdate retrieves and row-locks a movement inside a transaction.
	GetMovementForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Movement, error)
	// UpdateMovementAmount replaces the stored amount of a movement.
	UpdateMovementAmount(ctx context.Context, q DBExecutor, id int64, amount decimal.Decimal) error
	// DeleteMovement removes a movement.
	DeleteMovement(ctx context.Context, q DBExecutor, id int64) error
	// GetMovementsByAccountID returns a page of an account's movements, newest first, and the total count.
	GetMovementsByAccountID(ctx context.Context, q DBExecutor, accountID int64, limit, offset int) ([]domain.Movement, int64, error)
	// CountMovementsByAccountID counts the movements touching an account.
	CountMovementsByAccountID(ctx context.Context, q DBExecutor, accountID int64) (int64, error)
	// ListMovements returns a page of the whole log, newest first, and the total count.
	ListMovements(ctx context.Context, q DBExecutor, limit, offset int) ([]domain.Movement, int64, error)
	// GetAllMovementsByAccountID returns every movement touching the account in occurrence order.
	GetAllMovementsByAccountID(ctx context.Context, q DBExecutor, accountID int64) ([]domain.Movement, error)
	// SumNetFlow recomputes an account's balance from the movement log.
	SumNetFlow(ctx context.Context, q DBExecutor, accountID int64) (decimal.Decimal, error)
}
