// internal/service/ledger_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"goalflow/internal/domain"
	"goalflow/internal/lock"
	"goalflow/internal/repository"
	"goalflow/internal/util"
	"goalflow/pkg/db"

	"github.com/shopspring/decimal"
)

// DriftTolerance is the largest stored-vs-recomputed difference still considered consistent.
var DriftTolerance = decimal.RequireFromString("0.005")

// MovementInput is a validated request to record a movement.
type MovementInput struct {
	SourceAccountID      *int64
	DestinationAccountID *int64
	Amount               decimal.Decimal
	OccurredAt           time.Time
	Category             string
}

// LedgerResult is the outcome of a ledger mutation: the movement as stored
// (or as it was, for a delete) and the new balances of every affected account.
type LedgerResult struct {
	Movement *domain.Movement       `json:"movement"`
	Balances []domain.AccountBalance `json:"balances"`
}

// EventPublisher publishes ledger events after they commit.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// LedgerService keeps account balances consistent with the movement log.
type LedgerService interface {
	RecordMovement(ctx context.Context, in MovementInput) (*LedgerResult, error)
	AmendAmount(ctx context.Context, movementID int64, newAmount decimal.Decimal) (*LedgerResult, error)
	DeleteMovement(ctx context.Context, movementID int64) (*LedgerResult, error)
	RecomputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	Reconcile(ctx context.Context, accountID int64) (*domain.BalanceReport, error)
	ReconcileAll(ctx context.Context) ([]domain.BalanceReport, error)

	CreateAccount(ctx context.Context, firstName, lastName, email, phoneNumber string) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID int64) (*domain.Account, error)
	ListAccounts(ctx context.Context) ([]domain.Account, error)
	UpdateAccount(ctx context.Context, accountID int64, update AccountUpdate) (*domain.Account, error)
	DeleteAccount(ctx context.Context, accountID int64) error
	GetMovement(ctx context.Context, movementID int64) (*domain.Movement, error)
	GetMovementHistory(ctx context.Context, accountID int64, limit, offset int) ([]domain.Movement, int64, error)
	ListMovements(ctx context.Context, limit, offset int) ([]domain.Movement, int64, error)
}

// AccountUpdate carries the holder fields to change. Nil fields are left as they are;
// the balance is not part of it.
type AccountUpdate struct {
	FirstName   *string
	LastName    *string
	Email       *string
	PhoneNumber *string
}

func (u AccountUpdate) empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Email == nil && u.PhoneNumber == nil
}

func (u AccountUpdate) applyTo(account *domain.Account) {
	if u.FirstName != nil {
		account.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		account.LastName = *u.LastName
	}
	if u.Email != nil {
		account.Email = *u.Email
	}
	if u.PhoneNumber != nil {
		account.PhoneNumber = *u.PhoneNumber
	}
}

// LedgerDeps are the collaborators of the ledger service. Nil Locker, Publisher,
// Logger and transaction funcs fall back to in-process locking, no events,
// the global logger and pkg/db respectively.
type LedgerDeps struct {
	DBBeginner   db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	DBExecutor   repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	AccountRepo  repository.AccountRepository
	MovementRepo repository.MovementRepository
	Locker       lock.AccountLocker
	Publisher    EventPublisher
	Logger       *slog.Logger
	BeginTx      db.BeginTxFunc
	CommitTx     db.CommitTxFunc
	RollbackTx   db.RollbackTxFunc
}

type ledgerService struct {
	dbBeginner   db.DBTxBeginner
	dbExecutor   repository.DBExecutor
	accountRepo  repository.AccountRepository
	movementRepo repository.MovementRepository
	locker       lock.AccountLocker
	publisher    EventPublisher
	logger       *slog.Logger
	beginTx      db.BeginTxFunc
	commitTx     db.CommitTxFunc
	rollbackTx   db.RollbackTxFunc
}

// NewLedgerService creates a new instance of LedgerService.
func NewLedgerService(deps LedgerDeps) LedgerService {
	s := &ledgerService{
		dbBeginner:   deps.DBBeginner,
		dbExecutor:   deps.DBExecutor,
		accountRepo:  deps.AccountRepo,
		movementRepo: deps.MovementRepo,
		locker:       deps.Locker,
		publisher:    deps.Publisher,
		logger:       deps.Logger,
		beginTx:      deps.BeginTx,
		commitTx:     deps.CommitTx,
		rollbackTx:   deps.RollbackTx,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedLocker()
	}
	if s.logger == nil {
		s.logger = util.GetLogger()
	}
	if s.beginTx == nil {
		s.beginTx = db.BeginTx
	}
	if s.commitTx == nil {
		s.commitTx = db.CommitTx
	}
	if s.rollbackTx == nil {
		s.rollbackTx = db.RollbackTx
	}
	return s
}

// validateAmount rejects negative amounts and sub-cent precision.
func validateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", util.ErrInvalidInput)
	}
	if !amount.Equal(amount.Round(domain.AmountScale)) {
		return fmt.Errorf("%w: amount must have at most %d decimal places", util.ErrInvalidInput, domain.AmountScale)
	}
	return nil
}

func validateMovementInput(in MovementInput) error {
	if in.SourceAccountID == nil && in.DestinationAccountID == nil {
		return fmt.Errorf("%w: movement needs a source or a destination account", util.ErrInvalidInput)
	}
	if in.SourceAccountID != nil && in.DestinationAccountID != nil && *in.SourceAccountID == *in.DestinationAccountID {
		return fmt.Errorf("%w: %w", util.ErrInvalidInput, util.ErrSameAccount)
	}
	return validateAmount(in.Amount)
}

// RecordMovement appends a movement and applies it to the referenced accounts in one transaction.
func (s *ledgerService) RecordMovement(ctx context.Context, in MovementInput) (*LedgerResult, error) {
	if err := validateMovementInput(in); err != nil {
		return nil, err
	}

	movement := domain.NewMovement(in.SourceAccountID, in.DestinationAccountID, in.Amount, in.OccurredAt, in.Category)
	ids := movement.AccountIDs()

	unlock, err := s.locker.Lock(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("record movement: failed to lock accounts: %w", err)
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("record movement: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("record movement: transaction controller does not implement DBExecutor")
	}

	if _, err := s.accountRepo.LockAccounts(ctx, txExecutor, ids); err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}
	if err := s.movementRepo.CreateMovement(ctx, txExecutor, movement); err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}
	if err := s.applyEffect(ctx, txExecutor, movement, movement.Amount); err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}
	balances, err := s.balancesOf(ctx, txExecutor, ids)
	if err != nil {
		return nil, fmt.Errorf("record movement: %w", err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("record movement: failed to commit transaction: %w", err)
	}

	s.logger.Info("Movement recorded", "movement_id", movement.ID, "amount", movement.Amount.StringFixed(domain.AmountScale), "accounts", ids)
	s.publish(ctx, domain.MovementRecorded, movement, nil, balances)
	return &LedgerResult{Movement: movement, Balances: balances}, nil
}

// AmendAmount changes the amount of a movement and moves the difference through its accounts.
func (s *ledgerService) AmendAmount(ctx context.Context, movementID int64, newAmount decimal.Decimal) (*LedgerResult, error) {
	if err := validateAmount(newAmount); err != nil {
		return nil, err
	}

	// Endpoints never change, so a plain read is enough to know what to lock.
	existing, err := s.movementRepo.GetMovementByID(ctx, s.dbExecutor, movementID)
	if err != nil {
		return nil, fmt.Errorf("amend movement %d: %w", movementID, err)
	}
	ids := existing.AccountIDs()

	unlock, err := s.locker.Lock(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("amend movement %d: failed to lock accounts: %w", movementID, err)
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("amend movement %d: failed to begin transaction: %w", movementID, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("amend movement %d: transaction controller does not implement DBExecutor", movementID)
	}

	if _, err := s.accountRepo.LockAccounts(ctx, txExecutor, ids); err != nil {
		return nil, fmt.Errorf("amend movement %d: %w", movementID, err)
	}
	current, err := s.movementRepo.GetMovementForUpdate(ctx, txExecutor, movementID)
	if err != nil {
		return nil, fmt.Errorf("amend movement %d: %w", movementID, err)
	}

	previous := current.Amount
	delta := newAmount.Sub(previous)
	if err := s.applyEffect(ctx, txExecutor, current, delta); err != nil {
		return nil, fmt.Errorf("amend movement %d: %w", movementID, err)
	}
	if err := s.movementRepo.UpdateMovementAmount(ctx, txExecutor, movementID, newAmount); err != nil {
		return nil, fmt.Errorf("amend movement %d: %w", movementID, err)
	}
	balances, err := s.balancesOf(ctx, txExecutor, ids)
	if err != nil {
		return nil, fmt.Errorf("amend movement %d: %w", movementID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("amend movement %d: failed to commit transaction: %w", movementID, err)
	}

	current.Amount = newAmount
	current.UpdatedAt = time.Now().UTC()
	s.logger.Info("Movement amended", "movement_id", movementID, "previous_amount", previous.StringFixed(domain.AmountScale), "amount", newAmount.StringFixed(domain.AmountScale))
	s.publish(ctx, domain.MovementAmended, current, &previous, balances)
	return &LedgerResult{Movement: current, Balances: balances}, nil
}

// DeleteMovement reverses a movement's effect on its accounts and removes it.
func (s *ledgerService) DeleteMovement(ctx context.Context, movementID int64) (*LedgerResult, error) {
	existing, err := s.movementRepo.GetMovementByID(ctx, s.dbExecutor, movementID)
	if err != nil {
		return nil, fmt.Errorf("delete movement %d: %w", movementID, err)
	}
	ids := existing.AccountIDs()

	unlock, err := s.locker.Lock(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("delete movement %d: failed to lock accounts: %w", movementID, err)
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("delete movement %d: failed to begin transaction: %w", movementID, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("delete movement %d: transaction controller does not implement DBExecutor", movementID)
	}

	if _, err := s.accountRepo.LockAccounts(ctx, txExecutor, ids); err != nil {
		return nil, fmt.Errorf("delete movement %d: %w", movementID, err)
	}
	current, err := s.movementRepo.GetMovementForUpdate(ctx, txExecutor, movementID)
	if err != nil {
		return nil, fmt.Errorf("delete movement %d: %w", movementID, err)
	}
	if err := s.applyEffect(ctx, txExecutor, current, current.Amount.Neg()); err != nil {
		return nil, fmt.Errorf("delete movement %d: %w", movementID, err)
	}
	if err := s.movementRepo.DeleteMovement(ctx, txExecutor, movementID); err != nil {
		return nil, fmt.Errorf("delete movement %d: %w", movementID, err)
	}
	balances, err := s.balancesOf(ctx, txExecutor, ids)
	if err != nil {
		return nil, fmt.Errorf("delete movement %d: %w", movementID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("delete movement %d: failed to commit transaction: %w", movementID, err)
	}

	s.logger.Info("Movement deleted", "movement_id", movementID, "amount", current.Amount.StringFixed(domain.AmountScale))
	s.publish(ctx, domain.MovementDeleted, current, nil, balances)
	return &LedgerResult{Movement: current, Balances: balances}, nil
}

// applyEffect applies amount, signed per side, to every account the movement references.
func (s *ledgerService) applyEffect(ctx context.Context, q repository.DBExecutor, m *domain.Movement, amount decimal.Decimal) error {
	for _, id := range m.AccountIDs() {
		delta := m.EffectOn(id, amount)
		if delta.IsZero() {
			continue
		}
		if err := s.accountRepo.UpdateAccountBalance(ctx, q, id, delta); err != nil {
			return err
		}
	}
	return nil
}

func (s *ledgerService) balancesOf(ctx context.Context, q repository.DBExecutor, ids []int64) ([]domain.AccountBalance, error) {
	balances := make([]domain.AccountBalance, 0, len(ids))
	for _, id := range ids {
		account, err := s.accountRepo.GetAccountByID(ctx, q, id)
		if err != nil {
			return nil, fmt.Errorf("failed to re-fetch account %d: %w", id, err)
		}
		balances = append(balances, domain.AccountBalance{AccountID: id, Balance: account.Balance})
	}
	return balances, nil
}

func (s *ledgerService) publish(ctx context.Context, eventType domain.MovementEventType, m *domain.Movement, previous *decimal.Decimal, balances []domain.AccountBalance) {
	if s.publisher == nil {
		return
	}
	event := domain.MovementEvent{
		Type:           eventType,
		Movement:       *m,
		PreviousAmount: previous,
		Balances:       balances,
		Timestamp:      time.Now().UTC(),
	}
	// The mutation is already committed; a lost event must not fail the request.
	if err := s.publisher.Publish(ctx, string(eventType), event); err != nil {
		s.logger.Warn("Failed to publish ledger event", "type", eventType, "movement_id", m.ID, "error", err)
	}
}

// RecomputeBalance derives an account's balance from the full movement log.
func (s *ledgerService) RecomputeBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	if _, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID); err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}
	sum, err := s.movementRepo.SumNetFlow(ctx, s.dbExecutor, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("recompute balance: %w", err)
	}
	return sum, nil
}

// Reconcile compares the stored balance with the movement log under the account lock.
// Drift is reported with ErrBalanceDrift and never corrected here.
func (s *ledgerService) Reconcile(ctx context.Context, accountID int64) (*domain.BalanceReport, error) {
	unlock, err := s.locker.Lock(ctx, []int64{accountID})
	if err != nil {
		return nil, fmt.Errorf("reconcile account %d: failed to lock account: %w", accountID, err)
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("reconcile account %d: failed to begin transaction: %w", accountID, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("reconcile account %d: transaction controller does not implement DBExecutor", accountID)
	}

	accounts, err := s.accountRepo.LockAccounts(ctx, txExecutor, []int64{accountID})
	if err != nil {
		return nil, fmt.Errorf("reconcile account %d: %w", accountID, err)
	}
	recomputed, err := s.movementRepo.SumNetFlow(ctx, txExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("reconcile account %d: %w", accountID, err)
	}
	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("reconcile account %d: failed to commit transaction: %w", accountID, err)
	}

	stored := accounts[0].Balance
	drift := stored.Sub(recomputed)
	report := &domain.BalanceReport{
		AccountID:  accountID,
		Stored:     stored,
		Recomputed: recomputed,
		Drift:      drift,
		Consistent: drift.Abs().LessThanOrEqual(DriftTolerance),
		CheckedAt:  time.Now().UTC(),
	}
	if !report.Consistent {
		s.logger.Error("Balance drift detected",
			"account_id", accountID,
			"stored", stored.StringFixed(domain.AmountScale),
			"recomputed", recomputed.StringFixed(domain.AmountScale),
			"drift", drift.String(),
		)
		return report, fmt.Errorf("reconcile account %d: drift %s: %w", accountID, drift.String(), util.ErrBalanceDrift)
	}
	return report, nil
}

// ReconcileAll reconciles every account. Drifted accounts do not stop the sweep;
// the returned error wraps ErrBalanceDrift when any account drifted.
func (s *ledgerService) ReconcileAll(ctx context.Context) ([]domain.BalanceReport, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx, s.dbExecutor)
	if err != nil {
		return nil, fmt.Errorf("reconcile all: %w", err)
	}

	reports := make([]domain.BalanceReport, 0, len(accounts))
	drifted := 0
	for _, account := range accounts {
		report, err := s.Reconcile(ctx, account.ID)
		switch {
		case err == nil:
		case errors.Is(err, util.ErrBalanceDrift):
			drifted++
		case errors.Is(err, util.ErrAccountNotFound):
			continue // deleted since listing
		default:
			return reports, fmt.Errorf("reconcile all: %w", err)
		}
		reports = append(reports, *report)
	}
	if drifted > 0 {
		return reports, fmt.Errorf("reconcile all: %d of %d accounts drifted: %w", drifted, len(reports), util.ErrBalanceDrift)
	}
	return reports, nil
}

// CreateAccount opens a new account with a zero balance.
func (s *ledgerService) CreateAccount(ctx context.Context, firstName, lastName, email, phoneNumber string) (*domain.Account, error) {
	account := domain.NewAccount(firstName, lastName, email, phoneNumber)
	if err := s.accountRepo.CreateAccount(ctx, s.dbExecutor, account); err != nil {
		return nil, fmt.Errorf("create account: %w", err)
	}
	return account, nil
}

func (s *ledgerService) GetAccount(ctx context.Context, accountID int64) (*domain.Account, error) {
	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", accountID, err)
	}
	return account, nil
}

func (s *ledgerService) ListAccounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accountRepo.ListAccounts(ctx, s.dbExecutor)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// UpdateAccount changes the holder fields of an account. Concurrent ledger
// mutations may move the balance meanwhile; the update never touches it.
func (s *ledgerService) UpdateAccount(ctx context.Context, accountID int64, update AccountUpdate) (*domain.Account, error) {
	if update.empty() {
		return nil, fmt.Errorf("%w: nothing to update", util.ErrInvalidInput)
	}

	account, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("update account %d: %w", accountID, err)
	}
	update.applyTo(account)
	if err := s.accountRepo.UpdateAccountDetails(ctx, s.dbExecutor, account); err != nil {
		return nil, fmt.Errorf("update account %d: %w", accountID, err)
	}

	// Return what is stored now, balance included.
	stored, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID)
	if err != nil {
		return nil, fmt.Errorf("update account %d: %w", accountID, err)
	}
	s.logger.Info("Account updated", "account_id", accountID)
	return stored, nil
}

// DeleteAccount removes an account that has no movements. Accounts still in the
// log are refused so that no movement ever points at a missing account.
func (s *ledgerService) DeleteAccount(ctx context.Context, accountID int64) error {
	unlock, err := s.locker.Lock(ctx, []int64{accountID})
	if err != nil {
		return fmt.Errorf("delete account %d: failed to lock account: %w", accountID, err)
	}
	defer unlock()

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("delete account %d: failed to begin transaction: %w", accountID, err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("delete account %d: transaction controller does not implement DBExecutor", accountID)
	}

	if _, err := s.accountRepo.LockAccounts(ctx, txExecutor, []int64{accountID}); err != nil {
		return fmt.Errorf("delete account %d: %w", accountID, err)
	}
	count, err := s.movementRepo.CountMovementsByAccountID(ctx, txExecutor, accountID)
	if err != nil {
		return fmt.Errorf("delete account %d: %w", accountID, err)
	}
	if count > 0 {
		return fmt.Errorf("%w: account %d has %d movements", util.ErrInvalidInput, accountID, count)
	}
	if err := s.accountRepo.DeleteAccount(ctx, txExecutor, accountID); err != nil {
		return fmt.Errorf("delete account %d: %w", accountID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("delete account %d: failed to commit transaction: %w", accountID, err)
	}
	s.logger.Info("Account deleted", "account_id", accountID)
	return nil
}

func (s *ledgerService) GetMovement(ctx context.Context, movementID int64) (*domain.Movement, error) {
	movement, err := s.movementRepo.GetMovementByID(ctx, s.dbExecutor, movementID)
	if err != nil {
		return nil, fmt.Errorf("get movement %d: %w", movementID, err)
	}
	return movement, nil
}

// GetMovementHistory retrieves a paginated list of movements for an account.
func (s *ledgerService) GetMovementHistory(ctx context.Context, accountID int64, limit, offset int) ([]domain.Movement, int64, error) {
	// First, check if the account exists
	if _, err := s.accountRepo.GetAccountByID(ctx, s.dbExecutor, accountID); err != nil {
		return nil, 0, fmt.Errorf("movement history: %w", err)
	}

	movements, totalCount, err := s.movementRepo.GetMovementsByAccountID(ctx, s.dbExecutor, accountID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("movement history: %w", err)
	}
	return movements, totalCount, nil
}

// ListMovements retrieves a page of the whole movement log, newest first.
func (s *ledgerService) ListMovements(ctx context.Context, limit, offset int) ([]domain.Movement, int64, error) {
	movements, totalCount, err := s.movementRepo.ListMovements(ctx, s.dbExecutor, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	return movements, totalCount, nil
}
