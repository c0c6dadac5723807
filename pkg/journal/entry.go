// Package journal keeps an append-only audit trail of balance movements.
package journal

import (
	"fmt"
	"time"

	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

// Collection is where journal entries are stored.
const Collection = "ledger_journal"

// RecordKind names the kind of record that caused a balance movement.
type RecordKind string

const (
	KindAccount     RecordKind = "account"
	KindTransaction RecordKind = "transaction"
	KindTransfer    RecordKind = "transfer"
)

// Operation is why the balance moved.
type Operation string

const (
	OpCreate     Operation = "create"
	OpUpdate     Operation = "update"
	OpDelete     Operation = "delete"
	OpCompensate Operation = "compensate"
	OpCorrection Operation = "correction"
)

// Entry is one balance movement on one account.
type Entry struct {
	ID         string
	OwnerID    string
	AccountID  string
	RecordKind RecordKind
	RecordID   string
	Operation  Operation
	Delta      decimal.Decimal
	Balance    decimal.Decimal
	Time       time.Time
}

func (e Entry) document() *store.Document {
	return store.NewDocument(e.ID, map[string]interface{}{
		"ownerId":    e.OwnerID,
		"accountId":  e.AccountID,
		"recordKind": string(e.RecordKind),
		"recordId":   e.RecordID,
		"operation":  string(e.Operation),
		"delta":      e.Delta.String(),
		"balance":    e.Balance.String(),
		"time":       store.FormatTime(e.Time),
	})
}

func entryFromDocument(doc *store.Document) (Entry, error) {
	str := func(key string) string {
		s, _ := doc.Fields[key].(string)
		return s
	}

	delta, err := decimal.NewFromString(str("delta"))
	if err != nil {
		return Entry{}, fmt.Errorf("journal entry %s: delta: %w", doc.ID, err)
	}
	balance, err := decimal.NewFromString(str("balance"))
	if err != nil {
		return Entry{}, fmt.Errorf("journal entry %s: balance: %w", doc.ID, err)
	}
	at, err := store.ParseTime(str("time"))
	if err != nil {
		return Entry{}, fmt.Errorf("journal entry %s: time: %w", doc.ID, err)
	}

	return Entry{
		ID:         doc.ID,
		OwnerID:    str("ownerId"),
		AccountID:  str("accountId"),
		RecordKind: RecordKind(str("recordKind")),
		RecordID:   str("recordId"),
		Operation:  Operation(str("operation")),
		Delta:      delta,
		Balance:    balance,
		Time:       at,
	}, nil
}
