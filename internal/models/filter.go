package models

import (
	"sort"
	"time"
)

// SortOrder selects the ordering of a transaction history query
type SortOrder string

const (
	OrderByDate   SortOrder = "date"   // most recent first
	OrderByAmount SortOrder = "amount" // largest first
	OrderByType   SortOrder = "type"   // lexical type name
)

// Valid reports whether o is a known order. The empty order is valid and means date.
func (o SortOrder) Valid() bool {
	switch o {
	case "", OrderByDate, OrderByAmount, OrderByType:
		return true
	}
	return false
}

// TransactionFilter holds the parameters of a history query. Zero values
// mean "no constraint".
type TransactionFilter struct {
	User  string
	From  *time.Time
	To    *time.Time
	Order SortOrder
}

// Match reports whether t satisfies every constraint of the filter
func (f TransactionFilter) Match(t Transaction) bool {
	if f.User != "" && !t.Involves(f.User) {
		return false
	}
	if f.From != nil && t.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && t.Date.After(*f.To) {
		return false
	}
	return true
}

// SortTransactions orders txs in place for the given order. Ties fall back to
// date descending and then to the incoming order.
func SortTransactions(txs []Transaction, order SortOrder) {
	byDate := func(a, b Transaction) bool { return a.Date.After(b.Date) }

	var less func(a, b Transaction) bool
	switch order {
	case OrderByAmount:
		less = func(a, b Transaction) bool {
			if a.Amount != b.Amount {
				return a.Amount > b.Amount
			}
			return byDate(a, b)
		}
	case OrderByType:
		less = func(a, b Transaction) bool {
			if a.TxType != b.TxType {
				return a.TxType < b.TxType
			}
			return byDate(a, b)
		}
	default:
		less = byDate
	}

	sort.SliceStable(txs, func(i, j int) bool { return less(txs[i], txs[j]) })
}
