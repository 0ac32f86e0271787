package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rongwang/ledger-server/internal/models"
)

const uniqueViolation = "23505"

const transactionColumns = `tx_id, tx_type, amount, username, recipientname, date`

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &postgresTx{tx: tx}, nil
}

func (r *PostgresRepository) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getUser(ctx, r.db, username)
}

func (r *PostgresRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, `SELECT username, password, balance FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *PostgresRepository) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE tx_id = $1`

	var tx models.Transaction
	err := r.db.GetContext(ctx, &tx, query, txID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Transaction not found
		}
		return nil, err
	}

	return &tx, nil
}

func (r *PostgresRepository) QueryTransactions(
	ctx context.Context,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	query, args := buildTransactionQuery(filter)

	var txs []models.Transaction
	err := r.db.SelectContext(ctx, &txs, query, args...)
	if err != nil {
		return nil, err
	}

	return txs, nil
}

// buildTransactionQuery renders filter as a parameterised SELECT
func buildTransactionQuery(filter models.TransactionFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)

	if filter.User != "" {
		args = append(args, filter.User)
		conds = append(conds, fmt.Sprintf("(username = $%d OR recipientname = $%d)", len(args), len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		conds = append(conds, fmt.Sprintf("date <= $%d", len(args)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}

	switch filter.Order {
	case models.OrderByAmount:
		query += ` ORDER BY amount DESC, date DESC, seq`
	case models.OrderByType:
		query += ` ORDER BY tx_type ASC, date DESC, seq`
	default:
		query += ` ORDER BY date DESC, seq`
	}

	return query, args
}

func getUser(ctx context.Context, q sqlx.QueryerContext, username string) (*models.User, error) {
	query := `SELECT username, password, balance FROM users WHERE username = $1`

	var user models.User
	err := sqlx.GetContext(ctx, q, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// postgresTx stages changes on a database transaction
type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (username, password, balance)
		VALUES ($1, $2, $3)
	`

	_, err := t.tx.ExecContext(ctx, query, user.Username, user.Password, user.Balance)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateUser
		}
		return err
	}

	return nil
}

func (t *postgresTx) GetUser(ctx context.Context, username string) (*models.User, error) {
	return getUser(ctx, t.tx, username)
}

func (t *postgresTx) LockUsers(ctx context.Context, usernames ...string) (map[string]*models.User, error) {
	query := `
		SELECT username, password, balance FROM users
		WHERE username = ANY($1)
		ORDER BY username
		FOR UPDATE
	`

	var users []models.User
	err := t.tx.SelectContext(ctx, &users, query, pq.Array(usernames))
	if err != nil {
		return nil, fmt.Errorf("failed to lock users: %w", err)
	}

	out := make(map[string]*models.User, len(users))
	for i := range users {
		out[users[i].Username] = &users[i]
	}

	return out, nil
}

func (t *postgresTx) UpdateBalance(ctx context.Context, username string, balance int64) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET balance = $1 WHERE username = $2`, balance, username)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (t *postgresTx) UpdatePassword(ctx context.Context, username, password string) error {
	res, err := t.tx.ExecContext(ctx, `UPDATE users SET password = $1 WHERE username = $2`, password, username)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func (t *postgresTx) DeleteUser(ctx context.Context, username string) (int64, error) {
	// ON DELETE SET NULL nullifies username/recipientname as part of this statement
	res, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE username = $1`, username)
	if err != nil {
		return 0, err
	}
	if err := expectRow(res); err != nil {
		return 0, err
	}

	res, err = t.tx.ExecContext(ctx,
		`DELETE FROM transactions WHERE username IS NULL AND recipientname IS NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge orphaned transactions: %w", err)
	}

	return res.RowsAffected()
}

func (t *postgresTx) InsertTransaction(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (tx_id, tx_type, amount, username, recipientname, date)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := t.tx.ExecContext(ctx, query,
		tx.TxID, string(tx.TxType), tx.Amount, tx.Username, tx.RecipientName, tx.Date.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateTransaction
		}
		return err
	}

	return nil
}

func (t *postgresTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func (t *postgresTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return ErrTxDone
		}
		return err
	}
	return nil
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
