// internal/service/memstore_test.go
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"goalflow/internal/domain"
	"goalflow/internal/repository"
	"goalflow/internal/util"
	"goalflow/pkg/db"

	"github.com/shopspring/decimal"
)

var errUnsupported = errors.New("memstore: raw queries are not supported")

// memStore is an in-memory stand-in for Postgres. A transaction holds the store
// lock from begin to commit or rollback and undoes its writes on rollback, so
// readers never observe a half-applied mutation.
type memStore struct {
	mu            sync.Mutex
	accounts      map[int64]*domain.Account
	movements     map[int64]*domain.Movement
	nextAccountID int64
	nextMoveID    int64
}

func newMemStore() *memStore {
	return &memStore{accounts: map[int64]*domain.Account{}, movements: map[int64]*domain.Movement{}}
}

// memExec satisfies repository.DBExecutor; repos only use it to tell direct
// access from transactional access.
type memExec struct{}

func (memExec) GetContext(context.Context, interface{}, string, ...interface{}) error {
	return errUnsupported
}
func (memExec) SelectContext(context.Context, interface{}, string, ...interface{}) error {
	return errUnsupported
}
func (memExec) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errUnsupported
}
func (memExec) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return &sql.Row{}
}

type memDirect struct{ memExec }

type memTx struct {
	memExec
	store *memStore
	undo  []func()
	done  bool
}

func (s *memStore) begin() *memTx {
	s.mu.Lock()
	return &memTx{store: s}
}

func (tx *memTx) Commit() error {
	if tx.done {
		return sql.ErrTxDone
	}
	tx.done = true
	tx.undo = nil
	tx.store.mu.Unlock()
	return nil
}

func (tx *memTx) Rollback() error {
	if tx.done {
		return sql.ErrTxDone
	}
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.done = true
	tx.store.mu.Unlock()
	return nil
}

// with runs fn under the store lock unless q is a transaction that already holds it.
func (s *memStore) with(q repository.DBExecutor, fn func(tx *memTx)) {
	if tx, ok := q.(*memTx); ok {
		fn(tx)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(nil)
}

func (s *memStore) recordUndo(tx *memTx, undo func()) {
	if tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

// ledger builds a LedgerService backed by this store.
func (s *memStore) ledger(deps LedgerDeps) LedgerService {
	deps.DBExecutor = memDirect{}
	deps.AccountRepo = memAccounts{s}
	deps.MovementRepo = memMovements{s}
	deps.BeginTx = func(ctx context.Context, _ db.DBTxBeginner) (db.TxController, error) {
		return s.begin(), nil
	}
	deps.CommitTx = func(tx db.TxController) error { return tx.Commit() }
	deps.RollbackTx = func(tx db.TxController) { _ = tx.Rollback() }
	if deps.Logger == nil {
		deps.Logger = discardLogger()
	}
	return NewLedgerService(deps)
}

func (s *memStore) forecaster(defaults ForecastDefaults) ForecastService {
	return NewForecastService(memDirect{}, memAccounts{s}, memMovements{s}, defaults, discardLogger())
}

// tamper overwrites a stored balance behind the ledger's back.
func (s *memStore) tamper(accountID int64, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountID].Balance = balance
}

type memAccounts struct{ s *memStore }

func (r memAccounts) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	var err error
	r.s.with(q, func(tx *memTx) {
		if r.s.emailTaken(account.Email, 0) {
			err = fmt.Errorf("%w: email %q already registered", util.ErrInvalidInput, account.Email)
			return
		}
		r.s.nextAccountID++
		account.ID = r.s.nextAccountID
		cp := *account
		r.s.accounts[account.ID] = &cp
		r.s.recordUndo(tx, func() { delete(r.s.accounts, cp.ID) })
	})
	return err
}

// emailTaken mirrors the UNIQUE constraint on accounts.email.
func (s *memStore) emailTaken(email string, except int64) bool {
	for id, a := range s.accounts {
		if id != except && a.Email == email {
			return true
		}
	}
	return false
}

func (r memAccounts) GetAccountByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Account, error) {
	var out *domain.Account
	r.s.with(q, func(*memTx) {
		if a, ok := r.s.accounts[id]; ok {
			cp := *a
			out = &cp
		}
	})
	if out == nil {
		return nil, util.ErrAccountNotFound
	}
	return out, nil
}

func (r memAccounts) ListAccounts(ctx context.Context, q repository.DBExecutor) ([]domain.Account, error) {
	var out []domain.Account
	r.s.with(q, func(*memTx) {
		for _, a := range r.s.accounts {
			out = append(out, *a)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAccounts) LockAccounts(ctx context.Context, q repository.DBExecutor, ids []int64) ([]domain.Account, error) {
	out := make([]domain.Account, 0, len(ids))
	for _, id := range ids {
		a, err := r.GetAccountByID(ctx, q, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r memAccounts) UpdateAccountBalance(ctx context.Context, q repository.DBExecutor, accountID int64, delta decimal.Decimal) error {
	var err error
	r.s.with(q, func(tx *memTx) {
		a, ok := r.s.accounts[accountID]
		if !ok {
			err = util.ErrAccountNotFound
			return
		}
		prev := a.Balance
		a.Balance = a.Balance.Add(delta)
		r.s.recordUndo(tx, func() { a.Balance = prev })
	})
	return err
}

func (r memAccounts) UpdateAccountDetails(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	var err error
	r.s.with(q, func(tx *memTx) {
		a, ok := r.s.accounts[account.ID]
		if !ok {
			err = util.ErrAccountNotFound
			return
		}
		if r.s.emailTaken(account.Email, account.ID) {
			err = fmt.Errorf("%w: email %q already registered", util.ErrInvalidInput, account.Email)
			return
		}
		prev := *a
		a.FirstName, a.LastName, a.Email, a.PhoneNumber = account.FirstName, account.LastName, account.Email, account.PhoneNumber
		a.UpdatedAt = time.Now().UTC()
		r.s.recordUndo(tx, func() { *a = prev })
	})
	return err
}

func (r memAccounts) DeleteAccount(ctx context.Context, q repository.DBExecutor, id int64) error {
	var err error
	r.s.with(q, func(tx *memTx) {
		a, ok := r.s.accounts[id]
		if !ok {
			err = util.ErrAccountNotFound
			return
		}
		for _, m := range r.s.movements {
			if touches(m, id) {
				err = fmt.Errorf("%w: account %d is referenced by movements", util.ErrInvalidInput, id)
				return
			}
		}
		delete(r.s.accounts, id)
		r.s.recordUndo(tx, func() { r.s.accounts[id] = a })
	})
	return err
}

type memMovements struct{ s *memStore }

func (r memMovements) CreateMovement(ctx context.Context, q repository.DBExecutor, movement *domain.Movement) error {
	r.s.with(q, func(tx *memTx) {
		r.s.nextMoveID++
		movement.ID = r.s.nextMoveID
		cp := *movement
		r.s.movements[cp.ID] = &cp
		r.s.recordUndo(tx, func() { delete(r.s.movements, cp.ID) })
	})
	return nil
}

func (r memMovements) GetMovementByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Movement, error) {
	var out *domain.Movement
	r.s.with(q, func(*memTx) {
		if m, ok := r.s.movements[id]; ok {
			cp := *m
			out = &cp
		}
	})
	if out == nil {
		return nil, util.ErrMovementNotFound
	}
	return out, nil
}

func (r memMovements) GetMovementForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Movement, error) {
	return r.GetMovementByID(ctx, q, id)
}

func (r memMovements) UpdateMovementAmount(ctx context.Context, q repository.DBExecutor, id int64, amount decimal.Decimal) error {
	var err error
	r.s.with(q, func(tx *memTx) {
		m, ok := r.s.movements[id]
		if !ok {
			err = util.ErrMovementNotFound
			return
		}
		prev := m.Amount
		m.Amount = amount
		r.s.recordUndo(tx, func() { m.Amount = prev })
	})
	return err
}

func (r memMovements) DeleteMovement(ctx context.Context, q repository.DBExecutor, id int64) error {
	var err error
	r.s.with(q, func(tx *memTx) {
		m, ok := r.s.movements[id]
		if !ok {
			err = util.ErrMovementNotFound
			return
		}
		delete(r.s.movements, id)
		r.s.recordUndo(tx, func() { r.s.movements[id] = m })
	})
	return err
}

func (r memMovements) touching(accountID int64) []domain.Movement {
	var out []domain.Movement
	for _, m := range r.s.movements {
		if touches(m, accountID) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.Before(out[j].OccurredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func touches(m *domain.Movement, accountID int64) bool {
	for _, id := range m.AccountIDs() {
		if id == accountID {
			return true
		}
	}
	return false
}

func (r memMovements) GetMovementsByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64, limit, offset int) ([]domain.Movement, int64, error) {
	var all []domain.Movement
	r.s.with(q, func(*memTx) { all = r.touching(accountID) })
	return paginate(newestFirst(all), limit, offset)
}

func (r memMovements) CountMovementsByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64) (int64, error) {
	var n int64
	r.s.with(q, func(*memTx) { n = int64(len(r.touching(accountID))) })
	return n, nil
}

func (r memMovements) ListMovements(ctx context.Context, q repository.DBExecutor, limit, offset int) ([]domain.Movement, int64, error) {
	var all []domain.Movement
	r.s.with(q, func(*memTx) {
		for _, m := range r.s.movements {
			all = append(all, *m)
		}
	})
	return paginate(newestFirst(all), limit, offset)
}

// newestFirst orders like the SQL repository: occurred_at DESC, id DESC.
func newestFirst(ms []domain.Movement) []domain.Movement {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].OccurredAt.Equal(ms[j].OccurredAt) {
			return ms[i].OccurredAt.After(ms[j].OccurredAt)
		}
		return ms[i].ID > ms[j].ID
	})
	return ms
}

func paginate(all []domain.Movement, limit, offset int) ([]domain.Movement, int64, error) {
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Movement{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r memMovements) GetAllMovementsByAccountID(ctx context.Context, q repository.DBExecutor, accountID int64) ([]domain.Movement, error) {
	var all []domain.Movement
	r.s.with(q, func(*memTx) { all = r.touching(accountID) })
	return all, nil
}

func (r memMovements) SumNetFlow(ctx context.Context, q repository.DBExecutor, accountID int64) (decimal.Decimal, error) {
	sum := decimal.Zero
	r.s.with(q, func(*memTx) {
		for _, m := range r.s.movements {
			sum = sum.Add(m.EffectOn(accountID, m.Amount))
		}
	})
	return sum, nil
}
