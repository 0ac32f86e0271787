package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateFormat is the layout used for transaction dates on the wire and in the
// canonical form hashed into transaction IDs.
const DateFormat = "2006-01-02 15:04:05"

// TxType is the kind of a transaction
type TxType string

const (
	Deposit    TxType = "Deposit"
	Withdrawal TxType = "Withdrawal"
	Transfer   TxType = "Transfer"
)

// Valid reports whether t is one of the known transaction types
func (t TxType) Valid() bool {
	switch t {
	case Deposit, Withdrawal, Transfer:
		return true
	}
	return false
}

// User represents an account holder in the ledger
type User struct {
	Username string `db:"username" json:"username"`
	Password string `db:"password" json:"-"` // Password hash, not returned in JSON
	Balance  int64  `db:"balance" json:"balance"`
}

// Transaction is an immutable ledger entry. Username and RecipientName are nil
// once the referenced user has been deleted.
type Transaction struct {
	TxID          string    `db:"tx_id"`
	TxType        TxType    `db:"tx_type"`
	Amount        int64     `db:"amount"`
	Username      *string   `db:"username"`
	RecipientName *string   `db:"recipientname"`
	Date          time.Time `db:"date"`
}

// transactionJSON fixes the field order of the external representation.
type transactionJSON struct {
	TxID          *string `json:"txId"`
	TxType        TxType  `json:"txType"`
	Amount        int64   `json:"amount"`
	Username      *string `json:"username"`
	RecipientName *string `json:"recipientname"`
	Date          string  `json:"date"`
}

func (t Transaction) toJSON(withID bool) transactionJSON {
	out := transactionJSON{
		TxType:        t.TxType,
		Amount:        t.Amount,
		Username:      t.Username,
		RecipientName: t.RecipientName,
		Date:          t.Date.UTC().Format(DateFormat),
	}
	if withID {
		id := t.TxID
		out.TxID = &id
	}
	return out
}

// MarshalJSON renders the external representation of the transaction
func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON(true))
}

// UnmarshalJSON parses the external representation of the transaction
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var in transactionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	date, err := ParseDate(in.Date)
	if err != nil {
		return err
	}
	*t = Transaction{
		TxType:        in.TxType,
		Amount:        in.Amount,
		Username:      in.Username,
		RecipientName: in.RecipientName,
		Date:          date,
	}
	if in.TxID != nil {
		t.TxID = *in.TxID
	}
	return nil
}

// CanonicalJSON returns the external representation with "txId" set to null.
// This is the exact byte sequence transaction IDs are hashed from.
func (t Transaction) CanonicalJSON() ([]byte, error) {
	return json.Marshal(t.toJSON(false))
}

// Involves reports whether username participates in the transaction on either side
func (t Transaction) Involves(username string) bool {
	return (t.Username != nil && *t.Username == username) ||
		(t.RecipientName != nil && *t.RecipientName == username)
}

// Orphaned reports whether no surviving user is referenced on either side
func (t Transaction) Orphaned() bool {
	return t.Username == nil && t.RecipientName == nil
}

func (t Transaction) String() string {
	name := func(p *string) string {
		if p == nil {
			return "<deleted>"
		}
		return *p
	}
	switch t.TxType {
	case Deposit:
		return fmt.Sprintf("<Tx %s: Deposit %d to %s>", t.TxID, t.Amount, name(t.Username))
	case Withdrawal:
		return fmt.Sprintf("<Tx %s: Withdraw %d from %s>", t.TxID, t.Amount, name(t.Username))
	default:
		return fmt.Sprintf("<Tx %s: Transfer %d from %s to %s>",
			t.TxID, t.Amount, name(t.Username), name(t.RecipientName))
	}
}

// ParseDate parses a timestamp in DateFormat as UTC
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateFormat, s, time.UTC)
}

// StringPtr returns a pointer to s, or nil if s is empty
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
