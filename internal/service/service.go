package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rongwang/ledger-server/internal/models"
	"github.com/rongwang/ledger-server/internal/repository"
	"github.com/rongwang/ledger-server/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service defines all the ledger operations
type Service interface {
	// Users
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	GetUser(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdatePassword(ctx context.Context, username, password string) error
	DeleteUser(ctx context.Context, username string) error
	Authenticate(ctx context.Context, username, password string) (*models.User, error)

	// Transactions
	CreateTransaction(ctx context.Context, req models.CreateTransactionRequest) (*models.Transaction, error)
	GetTransaction(ctx context.Context, txID string) (*models.Transaction, error)
	QueryTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.Transaction, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo       repository.Repository
	locks      *lockSet
	validate   *validator.Validate
	logger     *utils.Logger
	now        func() time.Time
	bcryptCost int
}

// Option configures a DefaultService
type Option func(*DefaultService)

// WithLogger sets the service logger
func WithLogger(logger *utils.Logger) Option {
	return func(s *DefaultService) { s.logger = logger }
}

// WithClock replaces time.Now as the source of transaction dates
func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) { s.now = now }
}

// WithBcryptCost sets the cost used to hash passwords
func WithBcryptCost(cost int) Option {
	return func(s *DefaultService) { s.bcryptCost = cost }
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, opts ...Option) Service {
	s := &DefaultService{
		repo:       repo,
		locks:      newLockSet(),
		validate:   validator.New(),
		logger:     utils.NopLogger(),
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// User methods
func (s *DefaultService) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	if err := s.checkIdentifier(username); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, ErrInvalidPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Username: username,
		Password: string(hashedPassword),
		Balance:  0,
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	err = s.withTx(ctx, func(tx repository.Tx) error {
		return tx.CreateUser(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("username", username))
	return user, nil
}

func (s *DefaultService) GetUser(ctx context.Context, username string) (*models.User, error) {
	if err := s.checkIdentifier(username); err != nil {
		return nil, err
	}

	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	return user, nil
}

func (s *DefaultService) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	return users, nil
}

func (s *DefaultService) UpdatePassword(ctx context.Context, username, password string) error {
	if err := s.checkIdentifier(username); err != nil {
		return err
	}
	if password == "" {
		return ErrInvalidPassword
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	return s.withTx(ctx, func(tx repository.Tx) error {
		return tx.UpdatePassword(ctx, username, string(hashedPassword))
	})
}

// DeleteUser removes the user. Its transactions survive with the reference
// cleared, except those left with no participant at all, which are purged.
func (s *DefaultService) DeleteUser(ctx context.Context, username string) error {
	if err := s.checkIdentifier(username); err != nil {
		return err
	}

	unlock := s.locks.Lock(username)
	defer unlock()

	var purged int64
	err := s.withTx(ctx, func(tx repository.Tx) error {
		var err error
		purged, err = tx.DeleteUser(ctx, username)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("user deleted",
		zap.String("username", username),
		zap.Int64("purged_transactions", purged))
	return nil
}

// Authenticate checks password against the stored secret of username
func (s *DefaultService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUnknownUser
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}

	return user, nil
}

// Transaction methods

// CreateTransaction validates req, checks that the source can cover it, moves
// the balances and records the transaction, all in one store transaction.
// The participants stay locked for the whole sequence.
func (s *DefaultService) CreateTransaction(
	ctx context.Context,
	req models.CreateTransactionRequest,
) (*models.Transaction, error) {
	if !req.Type.Valid() {
		return nil, ErrInvalidTransactionType
	}
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := s.checkIdentifier(req.Username); err != nil {
		return nil, err
	}

	participants := []string{req.Username}
	if req.Type == models.Transfer {
		if req.Recipient == "" || req.Recipient == req.Username {
			return nil, ErrInvalidRecipient
		}
		if err := s.checkIdentifier(req.Recipient); err != nil {
			return nil, err
		}
		participants = append(participants, req.Recipient)
	} else if req.Recipient != "" {
		return nil, ErrInvalidRecipient
	}

	unlock := s.locks.Lock(participants...)
	defer unlock()

	var created *models.Transaction
	err := s.withTx(ctx, func(tx repository.Tx) error {
		users, err := tx.LockUsers(ctx, participants...)
		if err != nil {
			return err
		}
		for _, name := range participants {
			if users[name] == nil {
				return fmt.Errorf("%w: %s", ErrUnknownUser, name)
			}
		}
		source := users[req.Username]

		if !isPossible(req.Type, source.Balance, req.Amount) {
			return ErrInsufficientFunds
		}

		switch req.Type {
		case models.Deposit:
			if source.Balance > math.MaxInt64-req.Amount {
				return ErrInvalidAmount
			}
			err = tx.UpdateBalance(ctx, source.Username, source.Balance+req.Amount)
		case models.Withdrawal:
			err = tx.UpdateBalance(ctx, source.Username, source.Balance-req.Amount)
		case models.Transfer:
			recipient := users[req.Recipient]
			if recipient.Balance > math.MaxInt64-req.Amount {
				return ErrInvalidAmount
			}
			if err = tx.UpdateBalance(ctx, source.Username, source.Balance-req.Amount); err != nil {
				return err
			}
			err = tx.UpdateBalance(ctx, recipient.Username, recipient.Balance+req.Amount)
		}
		if err != nil {
			return fmt.Errorf("error updating balance: %w", err)
		}

		t := &models.Transaction{
			TxType:        req.Type,
			Amount:        req.Amount,
			Username:      models.StringPtr(req.Username),
			RecipientName: models.StringPtr(req.Recipient),
			Date:          s.now().UTC().Truncate(time.Second),
		}
		if t.TxID, err = TransactionID(*t); err != nil {
			return err
		}

		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}

		created = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("transaction recorded",
		zap.String("tx_id", created.TxID),
		zap.String("tx_type", string(created.TxType)),
		zap.Int64("amount", created.Amount),
		zap.String("username", req.Username),
		zap.String("recipient", req.Recipient))
	return created, nil
}

func (s *DefaultService) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	tx, err := s.repo.GetTransaction(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("error getting transaction: %w", err)
	}
	return tx, nil
}

// QueryTransactions returns the history matching filter. A user filter
// matches either participant.
func (s *DefaultService) QueryTransactions(
	ctx context.Context,
	filter models.TransactionFilter,
) ([]models.Transaction, error) {
	if !filter.Order.Valid() {
		return nil, ErrInvalidOrder
	}
	if filter.Order == "" {
		filter.Order = models.OrderByDate
	}

	txs, err := s.repo.QueryTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error querying transactions: %w", err)
	}
	return txs, nil
}

// Helper methods

// withTx runs fn inside a store transaction, rolling back every staged change
// if fn or the commit fails, or if fn panics.
func (s *DefaultService) withTx(ctx context.Context, fn func(tx repository.Tx) error) (err error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, repository.ErrTxDone) {
			s.logger.Error("rollback failed", zap.Error(rbErr), zap.NamedError("cause", err))
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}
	committed = true

	return nil
}

func (s *DefaultService) checkIdentifier(id string) error {
	if err := s.validate.Var(id, "required,alphanum"); err != nil {
		return ErrInvalidIdentifier
	}
	return nil
}

// isPossible is the sufficiency check: only the source balance constrains
// withdrawals and transfers.
func isPossible(txType models.TxType, balance, amount int64) bool {
	if txType == models.Withdrawal || txType == models.Transfer {
		return balance >= amount
	}
	return true
}
