// Package model holds the ledger's entities and the rules shared by every mutator.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account.
type AccountType string

const (
	AccountBank       AccountType = "bank"
	AccountCash       AccountType = "cash"
	AccountEWallet    AccountType = "e-wallet"
	AccountInvestment AccountType = "investment"
	AccountCreditCard AccountType = "credit-card"
	AccountOther      AccountType = "other"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountBank, AccountCash, AccountEWallet, AccountInvestment, AccountCreditCard, AccountOther:
		return true
	}
	return false
}

// EntryType is the direction of a transaction or the kind of a category.
type EntryType string

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

// Valid reports whether t is income or expense.
func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

// Account is a named store of value with a running balance.
// CurrentBalance always equals InitialBalance plus the effects of every
// existing transaction and transfer that references the account.
type Account struct {
	ID             string
	OwnerID        string
	Name           string
	Type           AccountType
	Currency       string
	InitialBalance decimal.Decimal
	CurrentBalance decimal.Decimal
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Version is the store's concurrency token
	Version int64
}

// Transaction is an income or expense against exactly one account.
type Transaction struct {
	ID         string
	OwnerID    string
	AccountID  string
	CategoryID string
	Type       EntryType
	Amount     decimal.Decimal
	Currency   string
	Date       time.Time
	Notes      string
	Attachment string
	Tags       []string
	// Pending is set while a create or update is moving the balance
	Pending bool
	// Deleting is set while a delete is reverting the balance effect
	Deleting  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// Delta is the signed effect of the transaction on its account.
func (t *Transaction) Delta() decimal.Decimal {
	return SignedAmount(t.Type, t.Amount)
}

// HasTag reports whether tagID is attached.
func (t *Transaction) HasTag(tagID string) bool {
	for _, id := range t.Tags {
		if id == tagID {
			return true
		}
	}
	return false
}

// InFlight reports whether a mutation of the transaction has not settled yet.
func (t *Transaction) InFlight() bool {
	return t.Pending || t.Deleting
}

// Transfer moves Amount out of the source account and ConvertedAmount into
// the destination account. ConvertedAmount is stored so reversal never
// depends on a rate looked up later.
type Transfer struct {
	ID              string
	OwnerID         string
	FromAccountID   string
	ToAccountID     string
	Amount          decimal.Decimal
	Currency        string
	Date            time.Time
	ExchangeRate    decimal.NullDecimal
	ConvertedAmount decimal.Decimal
	Notes           string
	Pending         bool
	Deleting        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Version         int64
}

// InFlight reports whether a mutation of the transfer has not settled yet.
func (t *Transfer) InFlight() bool {
	return t.Pending || t.Deleting
}

// SourceDelta is the effect on the source account.
func (t *Transfer) SourceDelta() decimal.Decimal {
	return t.Amount.Neg()
}

// DestinationDelta is the effect on the destination account.
func (t *Transfer) DestinationDelta() decimal.Decimal {
	return t.ConvertedAmount
}

// Default display metadata for categories and tags.
const (
	DefaultColor = "#6366F1"
	DefaultIcon  = "tag"
)

// Category labels transactions of one type.
type Category struct {
	ID        string
	OwnerID   string
	Name      string
	Type      EntryType
	Color     string
	Icon      string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// Tag is a free-form label attached to transactions.
type Tag struct {
	ID        string
	OwnerID   string
	Name      string
	Color     string
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}
