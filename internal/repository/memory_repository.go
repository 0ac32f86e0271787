package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/rongwang/ledger-server/internal/models"
)

// MemoryRepository implements the Repository interface in process memory.
// A Tx holds the write lock until it ends, so store transactions are serial.
type MemoryRepository struct {
	mu    sync.RWMutex
	users map[string]*models.User
	txs   []*models.Transaction // insertion order
	byID  map[string]*models.Transaction
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users: make(map[string]*models.User),
		byID:  make(map[string]*models.Transaction),
	}
}

func (r *MemoryRepository) Close() error {
	return nil
}

func (r *MemoryRepository) BeginTx(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	return &memoryTx{repo: r}, nil
}

func (r *MemoryRepository) GetUser(_ context.Context, username string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getUser(username), nil
}

func (r *MemoryRepository) ListUsers(_ context.Context) ([]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r *MemoryRepository) GetTransaction(_ context.Context, txID string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.byID[txID]
	if !ok {
		return nil, nil
	}
	cp := copyTransaction(tx)
	return &cp, nil
}

func (r *MemoryRepository) QueryTransactions(
	_ context.Context,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	r.mu.RLock()
	out := make([]models.Transaction, 0, len(r.txs))
	for _, tx := range r.txs {
		if filter.Match(*tx) {
			out = append(out, copyTransaction(tx))
		}
	}
	r.mu.RUnlock()

	models.SortTransactions(out, filter.Order)
	return out, nil
}

func (r *MemoryRepository) getUser(username string) *models.User {
	u, ok := r.users[username]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func copyTransaction(tx *models.Transaction) models.Transaction {
	cp := *tx
	if tx.Username != nil {
		cp.Username = models.StringPtr(*tx.Username)
	}
	if tx.RecipientName != nil {
		cp.RecipientName = models.StringPtr(*tx.RecipientName)
	}
	return cp
}

// memoryTx applies changes directly and records how to revert each one
type memoryTx struct {
	repo *MemoryRepository
	undo []func()
	done bool
}

func (t *memoryTx) CreateUser(ctx context.Context, user *models.User) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.repo.users[user.Username]; ok {
		return ErrDuplicateUser
	}

	cp := *user
	t.repo.users[user.Username] = &cp
	t.undo = append(t.undo, func() { delete(t.repo.users, user.Username) })
	return nil
}

func (t *memoryTx) GetUser(ctx context.Context, username string) (*models.User, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	return t.repo.getUser(username), nil
}

func (t *memoryTx) LockUsers(ctx context.Context, usernames ...string) (map[string]*models.User, error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}

	out := make(map[string]*models.User, len(usernames))
	for _, name := range usernames {
		if u := t.repo.getUser(name); u != nil {
			out[name] = u
		}
	}
	return out, nil
}

func (t *memoryTx) UpdateBalance(ctx context.Context, username string, balance int64) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	u, ok := t.repo.users[username]
	if !ok {
		return ErrUserNotFound
	}

	prev := u.Balance
	u.Balance = balance
	t.undo = append(t.undo, func() { u.Balance = prev })
	return nil
}

func (t *memoryTx) UpdatePassword(ctx context.Context, username, password string) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	u, ok := t.repo.users[username]
	if !ok {
		return ErrUserNotFound
	}

	prev := u.Password
	u.Password = password
	t.undo = append(t.undo, func() { u.Password = prev })
	return nil
}

func (t *memoryTx) DeleteUser(ctx context.Context, username string) (int64, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	u, ok := t.repo.users[username]
	if !ok {
		return 0, ErrUserNotFound
	}

	delete(t.repo.users, username)
	t.undo = append(t.undo, func() { t.repo.users[username] = u })

	for _, tx := range t.repo.txs {
		tx := tx
		if tx.Username != nil && *tx.Username == username {
			prev := tx.Username
			tx.Username = nil
			t.undo = append(t.undo, func() { tx.Username = prev })
		}
		if tx.RecipientName != nil && *tx.RecipientName == username {
			prev := tx.RecipientName
			tx.RecipientName = nil
			t.undo = append(t.undo, func() { tx.RecipientName = prev })
		}
	}

	return t.purgeOrphans(), nil
}

// purgeOrphans drops every transaction that references no user
func (t *memoryTx) purgeOrphans() int64 {
	prevTxs := t.repo.txs
	kept := make([]*models.Transaction, 0, len(prevTxs))
	var purged []*models.Transaction
	for _, tx := range prevTxs {
		if tx.Orphaned() {
			purged = append(purged, tx)
			delete(t.repo.byID, tx.TxID)
			continue
		}
		kept = append(kept, tx)
	}
	if len(purged) == 0 {
		return 0
	}

	t.repo.txs = kept
	t.undo = append(t.undo, func() {
		t.repo.txs = prevTxs
		for _, tx := range purged {
			t.repo.byID[tx.TxID] = tx
		}
	})
	return int64(len(purged))
}

func (t *memoryTx) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, ok := t.repo.byID[tx.TxID]; ok {
		return ErrDuplicateTransaction
	}

	cp := copyTransaction(tx)
	t.repo.txs = append(t.repo.txs, &cp)
	t.repo.byID[cp.TxID] = &cp
	t.undo = append(t.undo, func() {
		t.repo.txs = t.repo.txs[:len(t.repo.txs)-1]
		delete(t.repo.byID, cp.TxID)
	})
	return nil
}

func (t *memoryTx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	t.undo = nil
	t.repo.mu.Unlock()
	return nil
}

func (t *memoryTx) Rollback() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.repo.mu.Unlock()
	return nil
}

func (t *memoryTx) check(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}
	return ctx.Err()
}
