package service

import (
	"errors"

	"github.com/rongwang/ledger-server/internal/repository"
)

// Ledger error kinds. The request layer maps these onto its own status codes.
var (
	ErrDuplicateUser          = repository.ErrDuplicateUser
	ErrDuplicateTransaction   = repository.ErrDuplicateTransaction
	ErrUnknownUser            = repository.ErrUserNotFound
	ErrUnknownTransaction     = errors.New("transaction not found")
	ErrInvalidIdentifier      = errors.New("identifier must be non-empty and alphanumeric")
	ErrInvalidPassword        = errors.New("invalid password")
	ErrInvalidTransactionType = errors.New("transaction type must be one of Deposit, Withdrawal, Transfer")
	ErrInvalidAmount          = errors.New("amount must be a positive integer")
	ErrInvalidRecipient       = errors.New("a transfer needs a recipient other than the source; deposits and withdrawals take none")
	ErrInvalidOrder           = errors.New("order must be one of date, amount, type")
	ErrInsufficientFunds      = errors.New("insufficient funds")
)
