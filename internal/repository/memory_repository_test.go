package repository

import (
	"context"
	"testing"
	"time"

	"github.com/rongwang/ledger-server/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseDate = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTx(id string, txType models.TxType, amount int64, user, recipient string, offset time.Duration) *models.Transaction {
	return &models.Transaction{
		TxID:          id,
		TxType:        txType,
		Amount:        amount,
		Username:      models.StringPtr(user),
		RecipientName: models.StringPtr(recipient),
		Date:          baseDate.Add(offset),
	}
}

// seed commits two users and the given transactions
func seed(t *testing.T, repo Repository, txs ...*models.Transaction) {
	t.Helper()
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateUser(ctx, &models.User{Username: "alice", Password: "x"}))
	require.NoError(t, tx.CreateUser(ctx, &models.User{Username: "bob", Password: "y"}))
	for _, t2 := range txs {
		require.NoError(t, tx.InsertTransaction(ctx, t2))
	}
	require.NoError(t, tx.Commit())
}

func TestMemoryCreateAndGetUser(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo)

	u, err := repo.GetUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, int64(0), u.Balance)

	u, err = repo.GetUser(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, u)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.CreateUser(ctx, &models.User{Username: "alice"}), ErrDuplicateUser)
	require.NoError(t, tx.Rollback())

	users, err := repo.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func TestMemoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo, newTx("t1", models.Transfer, 5, "alice", "bob", 0))

	u, _ := repo.GetUser(ctx, "alice")
	u.Balance = 1000
	again, _ := repo.GetUser(ctx, "alice")
	assert.Equal(t, int64(0), again.Balance)

	got, _ := repo.GetTransaction(ctx, "t1")
	*got.Username = "mallory"
	again2, _ := repo.GetTransaction(ctx, "t1")
	assert.Equal(t, "alice", *again2.Username)
}

func TestMemoryRollbackRestoresEverything(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo, newTx("t1", models.Deposit, 5, "alice", "", 0))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.UpdateBalance(ctx, "alice", 500))
	require.NoError(t, tx.UpdatePassword(ctx, "alice", "changed"))
	require.NoError(t, tx.CreateUser(ctx, &models.User{Username: "carol"}))
	require.NoError(t, tx.InsertTransaction(ctx, newTx("t2", models.Deposit, 7, "carol", "", time.Second)))
	purged, err := tx.DeleteUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
	require.NoError(t, tx.Rollback())

	alice, _ := repo.GetUser(ctx, "alice")
	require.NotNil(t, alice)
	assert.Equal(t, int64(0), alice.Balance)
	assert.Equal(t, "x", alice.Password)

	carol, _ := repo.GetUser(ctx, "carol")
	assert.Nil(t, carol)

	txs, err := repo.QueryTransactions(ctx, models.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "t1", txs[0].TxID)
	require.NotNil(t, txs[0].Username)
	assert.Equal(t, "alice", *txs[0].Username)

	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.ErrorIs(t, tx.UpdateBalance(ctx, "alice", 1), ErrTxDone)
}

func TestMemoryDeleteUserNullifiesThenPurges(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo,
		newTx("dep", models.Deposit, 5, "alice", "", 0),
		newTx("xfer", models.Transfer, 3, "alice", "bob", time.Second),
		newTx("wd", models.Withdrawal, 1, "bob", "", 2*time.Second),
	)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	purged, err := tx.DeleteUser(ctx, "alice")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	assert.Equal(t, int64(1), purged)

	dep, _ := repo.GetTransaction(ctx, "dep")
	assert.Nil(t, dep)

	xfer, _ := repo.GetTransaction(ctx, "xfer")
	require.NotNil(t, xfer)
	assert.Nil(t, xfer.Username)
	assert.Equal(t, "bob", *xfer.RecipientName)

	tx, err = repo.BeginTx(ctx)
	require.NoError(t, err)
	_, err = tx.DeleteUser(ctx, "alice")
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, tx.Rollback())
}

func TestMemoryLockUsersOmitsMissing(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo)

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	users, err := tx.LockUsers(ctx, "bob", "carol", "alice")
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Contains(t, users, "alice")
	assert.NotContains(t, users, "carol")

	assert.ErrorIs(t, tx.UpdateBalance(ctx, "carol", 1), ErrUserNotFound)
}

func TestMemoryInsertDuplicateTransaction(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo, newTx("t1", models.Deposit, 5, "alice", "", 0))

	tx, err := repo.BeginTx(ctx)
	require.NoError(t, err)
	assert.ErrorIs(t, tx.InsertTransaction(ctx, newTx("t1", models.Deposit, 5, "alice", "", 0)), ErrDuplicateTransaction)
	require.NoError(t, tx.Rollback())
}

func TestMemoryQueryTransactions(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo,
		newTx("a", models.Deposit, 10, "alice", "", 0),
		newTx("b", models.Withdrawal, 50, "bob", "", time.Hour),
		newTx("c", models.Transfer, 30, "alice", "bob", 2*time.Hour),
	)

	ids := func(txs []models.Transaction) []string {
		var out []string
		for _, tx := range txs {
			out = append(out, tx.TxID)
		}
		return out
	}
	query := func(f models.TransactionFilter) []string {
		txs, err := repo.QueryTransactions(ctx, f)
		require.NoError(t, err)
		return ids(txs)
	}

	assert.Equal(t, []string{"c", "b", "a"}, query(models.TransactionFilter{}))
	assert.Equal(t, []string{"c", "a"}, query(models.TransactionFilter{User: "alice"}))
	assert.Equal(t, []string{"b", "c", "a"}, query(models.TransactionFilter{Order: models.OrderByAmount}))
	assert.Equal(t, []string{"a", "c", "b"}, query(models.TransactionFilter{Order: models.OrderByType}))

	from := baseDate.Add(30 * time.Minute)
	to := baseDate.Add(time.Hour)
	assert.Equal(t, []string{"b"}, query(models.TransactionFilter{From: &from, To: &to}))
}

func TestMemoryBeginTxHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemoryRepository().BeginTx(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
