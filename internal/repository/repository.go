package repository

import (
	"context"
	"errors"

	"github.com/rongwang/ledger-server/internal/models"
)

var (
	ErrDuplicateUser        = errors.New("user already exists")
	ErrDuplicateTransaction = errors.New("transaction already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrTxDone               = errors.New("store transaction already committed or rolled back")
)

// Repository is the entity store for users and transactions. Reads are served
// directly; every mutation is staged on a Tx and only becomes visible on Commit.
type Repository interface {
	BeginTx(ctx context.Context) (Tx, error)

	GetUser(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)
	QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)

	Close() error
}

// Tx is a unit of work against the store. The caller owns the boundary and
// must end it with exactly one of Commit or Rollback.
type Tx interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	// LockUsers returns the named users keyed by username, locking them against
	// concurrent writers in ascending username order. Missing users are omitted.
	LockUsers(ctx context.Context, usernames ...string) (map[string]*models.User, error)
	UpdateBalance(ctx context.Context, username string, balance int64) error
	UpdatePassword(ctx context.Context, username, password string) error
	// DeleteUser removes the user, nullifies every reference to it and then
	// purges transactions left with no participant. It returns the purge count.
	DeleteUser(ctx context.Context, username string) (int64, error)

	// Transaction operations
	InsertTransaction(ctx context.Context, tx *models.Transaction) error

	Commit() error
	Rollback() error
}
