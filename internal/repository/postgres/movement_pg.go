// internal/repository/postgres/movement_pg.go
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

	"github.com/shopspring/decimal"
)

const movementColumns = `id, source_account_id, destination_account_id, amount, category, occurred_at, created_at, updated_at`

// MovementRepository implements repository.MovementRepository for PostgreSQL.
type MovementRepository struct{}

// NewMovementRepository creates a new MovementRepository.
func NewMovementRepository() repository.MovementRepository {
	return &MovementRepository{}
}

// CreateMovement inserts a new movement using the provided DBExecutor.
func (r *MovementRepository) CreateMovement(ctx context.Context, q repository.DBExecutor, movement *domain.Movement) error {
	query := `INSERT INTO movements (source_account_id, destination_account_id, amount, category, occurred_at, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	err := q.QueryRowContext(ctx, query,
		movement.SourceAccountID,
		movement.DestinationAccountID,
		movement.Amount,
		movement.Category,
		movement.OccurredAt,
		movement.CreatedAt,
		movement.UpdatedAt,
	).Scan(&movement.ID)
	if err != nil {
		return fmt.Errorf("failed to create movement: %w", err)
	}
	return nil
}

// GetMovementByID retrieves a movement by its ID.
func (r *MovementRepository) GetMovementByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Movement, error) {
	return r.getMovement(ctx, q, `SELECT `+movementColumns+` FROM movements WHERE id = $1`, id)
}

// GetMovementForUpdate retrieves a movement and holds its row lock until the transaction ends.
func (r *MovementRepository) GetMovementForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Movement, error) {
	return r.getMovement(ctx, q, `SELECT `+movementColumns+` FROM movements WHERE id = $1 FOR UPDATE`, id)
}

func (r *MovementRepository) getMovement(ctx context.Context, q repository.DBExecutor, query string, id int64) (*domain.Movement, error) {
	var movement domain.Movement
	if err := q.GetContext(ctx, &movement, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrMovementNotFound
		}
		return nil, fmt.Errorf("failed to get movement by ID %d: %w", id, err)
	}
	return &movement, nil
}

// UpdateMovementAmount replaces the amount of a movement.
func (r *MovementRepository) UpdateMovementAmount(ctx context.Context, q repository.DBExecutor, id int64, amount decimal.Decimal) error {
	query := `UPDATE movements SET amount = $1, updated_at = $2 WHERE id = $3`
	return r.execOne(ctx, q, "update amount of", id, query, amount, time.Now().UTC(), id)
}

// DeleteMovement removes a movement.
func (r *MovementRepository) DeleteMovement(ctx context.Context, q repository.DBExecutor, id int64) error {
	return r.execOne(ctx, q, "delete", id, `DELETE FROM movements WHERE id = $1`, id)
}

func (r *MovementRepository) execOne(ctx context.Context, q repository.DBExecutor, op string, id int64, query string, args ...interface{}) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s movement %d: %w", op, id, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after %s movement %d: %w", op, id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s movement %d: %w", op, id, util.ErrMovementNotFound)
	}
	return nil
}

// GetMovementsByAccountID retrieves a paginated list of movements for an account.
// It performs two queries: one for the data and one for the total count.
func (r *MovementRepository) GetMovementsByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64, limit, offset int) ([]domain.Movement, int64, error) {
	movements := []domain.Movement{}

	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY occurred_at DESC, id DESC
		LIMIT $2 OFFSET $3`
	if err := q.SelectContext(ctx, &movements, query, accountID, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to fetch movements for account %d: %w", accountID, err)
	}

	var totalCount int64
	countQuery := `
		SELECT COUNT(*)
		FROM movements
		WHERE source_account_id = $1 OR destination_account_id = $1`
	if err := q.GetContext(ctx, &totalCount, countQuery, accountID); err != nil {
		return nil, 0, fmt.Errorf("failed to get total movement count for account %d: %w", accountID, err)
	}

	return movements, totalCount, nil
}

// CountMovementsByAccountID counts the movements in which the account appears on either side.
func (r *MovementRepository) CountMovementsByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM movements WHERE source_account_id = $1 OR destination_account_id = $1`
	if err := q.GetContext(ctx, &count, query, accountID); err != nil {
		return 0, fmt.Errorf("failed to count movements for account %d: %w", accountID, err)
	}
	return count, nil
}

// ListMovements retrieves a page of the whole movement log, newest first.
func (r *MovementRepository) ListMovements(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.Movement, int64, error) {
	movements := []domain.Movement{}
	query := `
		SELECT ` + movementColumns + `
		FROM movements
		ORDER BY occurred_at DESC, id DESC
		LIMIT $1 OFFSET $2`
	if err := q.SelectContext(ctx, &movements, query, limit, offset); err != nil {
		return nil, 0, fmt.Errorf("failed to list movements: %w", err)
	}

	var totalCount int64
	if err := q.GetContext(ctx, &totalCount, `SELECT COUNT(*) FROM movements`); err != nil {
		return nil, 0, fmt.Errorf("failed to get total movement count: %w", err)
	}
	return movements, totalCount, nil
}

// GetAllMovementsByAccountID reads the full history of an account in one statement,
// so the caller works on a single consistent snapshot.
func (r *MovementRepository) GetAllMovementsByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64) ([]domain.Movement, error) {
	movements := []domain.Movement{}
	query := `
		SELECT ` + movementColumns + `
		FROM movements
		WHERE source_account_id = $1 OR destination_account_id = $1
		ORDER BY occurred_at, id`
	if err := q.SelectContext(ctx, &movements, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to fetch history for account %d: %w", accountID, err)
	}
	return movements, nil
}

// SumNetFlow returns inflows minus outflows over the whole movement log for an account.
func (r *MovementRepository) SumNetFlow(ctx context.Context, q repository.DBExecutor, accountID int64) (decimal.Decimal, error) {
	var sum decimal.Decimal
	query := `
		SELECT COALESCE(SUM(
			CASE WHEN destination_account_id = $1 THEN amount ELSE 0 END
		  - CASE WHEN source_account_id = $1 THEN amount ELSE 0 END
		), 0)
		FROM movements
		WHERE source_account_id = $1 OR destination_account_id = $1`
	if err := q.GetContext(ctx, &sum, query, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum movements for account %d: %w", accountID, err)
	}
	return sum, nil
}
