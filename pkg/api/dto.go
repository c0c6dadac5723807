package api

import (
	"time"

	"money-ledger/pkg/journal"
	"money-ledger/pkg/ledger"
	"money-ledger/pkg/model"

	"github.com/shopspring/decimal"
)

// Money fields travel as decimal strings; requests also accept JSON numbers.

type idResponse struct {
	ID string `json:"id"`
}

type accountJSON struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Type           model.AccountType `json:"type"`
	Currency       string            `json:"currency"`
	InitialBalance decimal.Decimal   `json:"initialBalance"`
	CurrentBalance decimal.Decimal   `json:"currentBalance"`
	Active         bool              `json:"active"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func toAccount(a *model.Account) accountJSON {
	return accountJSON{
		ID:             a.ID,
		Name:           a.Name,
		Type:           a.Type,
		Currency:       a.Currency,
		InitialBalance: a.InitialBalance,
		CurrentBalance: a.CurrentBalance,
		Active:         a.Active,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type createAccountRequest struct {
	Name           string            `json:"name"`
	Type           model.AccountType `json:"type"`
	Currency       string            `json:"currency"`
	InitialBalance decimal.Decimal   `json:"initialBalance"`
}

type updateAccountRequest struct {
	Name *string            `json:"name"`
	Type *model.AccountType `json:"type"`
}

type setBalanceRequest struct {
	Balance *decimal.Decimal `json:"balance"`
}

type reconciliationJSON struct {
	AccountID    string          `json:"accountId"`
	Stored       decimal.Decimal `json:"stored"`
	Expected     decimal.Decimal `json:"expected"`
	Drift        decimal.Decimal `json:"drift"`
	Transactions int             `json:"transactions"`
	Transfers    int             `json:"transfers"`
	InFlight     int             `json:"inFlight"`
	Consistent   bool            `json:"consistent"`
	Fixed        bool            `json:"fixed"`
}

func toReconciliation(r *ledger.Reconciliation) reconciliationJSON {
	return reconciliationJSON{
		AccountID:    r.AccountID,
		Stored:       r.Stored,
		Expected:     r.Expected,
		Drift:        r.Drift,
		Transactions: r.Transactions,
		Transfers:    r.Transfers,
		InFlight:     r.InFlight,
		Consistent:   r.Consistent(),
		Fixed:        r.Fixed,
	}
}

type journalEntryJSON struct {
	ID         string             `json:"id"`
	RecordKind journal.RecordKind `json:"recordKind"`
	RecordID   string             `json:"recordId"`
	Operation  journal.Operation  `json:"operation"`
	Delta      decimal.Decimal    `json:"delta"`
	Balance    decimal.Decimal    `json:"balance"`
	Time       time.Time          `json:"time"`
}

type transactionJSON struct {
	ID         string          `json:"id"`
	AccountID  string          `json:"accountId"`
	CategoryID string          `json:"categoryId"`
	Type       model.EntryType `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes,omitempty"`
	Attachment string          `json:"attachment,omitempty"`
	Tags       []string        `json:"tags"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func toTransaction(t *model.Transaction) transactionJSON {
	tags := t.Tags
	if tags == nil {
		tags = []string{}
	}
	return transactionJSON{
		ID:         t.ID,
		AccountID:  t.AccountID,
		CategoryID: t.CategoryID,
		Type:       t.Type,
		Amount:     t.Amount,
		Currency:   t.Currency,
		Date:       t.Date,
		Notes:      t.Notes,
		Attachment: t.Attachment,
		Tags:       tags,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

type createTransactionRequest struct {
	AccountID  string          `json:"accountId"`
	CategoryID string          `json:"categoryId"`
	Type       model.EntryType `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Date       time.Time       `json:"date"`
	Notes      string          `json:"notes"`
	Attachment string          `json:"attachment"`
	Tags       []string        `json:"tags"`
}

type updateTransactionRequest struct {
	AccountID  *string          `json:"accountId"`
	CategoryID *string          `json:"categoryId"`
	Type       *model.EntryType `json:"type"`
	Amount     *decimal.Decimal `json:"amount"`
	Currency   *string          `json:"currency"`
	Date       *time.Time       `json:"date"`
	Notes      *string          `json:"notes"`
	Attachment *string          `json:"attachment"`
	Tags       *[]string        `json:"tags"`
}

type transferJSON struct {
	ID              string           `json:"id"`
	FromAccountID   string           `json:"fromAccountId"`
	ToAccountID     string           `json:"toAccountId"`
	Amount          decimal.Decimal  `json:"amount"`
	Currency        string           `json:"currency"`
	Date            time.Time        `json:"date"`
	ExchangeRate    *decimal.Decimal `json:"exchangeRate,omitempty"`
	ConvertedAmount decimal.Decimal  `json:"convertedAmount"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func toTransfer(t *model.Transfer) transferJSON {
	out := transferJSON{
		ID:              t.ID,
		FromAccountID:   t.FromAccountID,
		ToAccountID:     t.ToAccountID,
		Amount:          t.Amount,
		Currency:        t.Currency,
		Date:            t.Date,
		ConvertedAmount: t.ConvertedAmount,
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
	if t.ExchangeRate.Valid {
		rate := t.ExchangeRate.Decimal
		out.ExchangeRate = &rate
	}
	return out
}

type createTransferRequest struct {
	FromAccountID string           `json:"fromAccountId"`
	ToAccountID   string           `json:"toAccountId"`
	Amount        decimal.Decimal  `json:"amount"`
	Date          time.Time        `json:"date"`
	ExchangeRate  *decimal.Decimal `json:"exchangeRate"`
	Notes         string           `json:"notes"`
}

type updateTransferRequest struct {
	FromAccountID *string          `json:"fromAccountId"`
	ToAccountID   *string          `json:"toAccountId"`
	Amount        *decimal.Decimal `json:"amount"`
	Date          *time.Time       `json:"date"`
	ExchangeRate  *decimal.Decimal `json:"exchangeRate"`
	Notes         *string          `json:"notes"`
}

type categoryJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      model.EntryType `json:"type"`
	Color     string          `json:"color"`
	Icon      string          `json:"icon"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toCategory(c *model.Category) categoryJSON {
	return categoryJSON{
		ID:        c.ID,
		Name:      c.Name,
		Type:      c.Type,
		Color:     c.Color,
		Icon:      c.Icon,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type createCategoryRequest struct {
	Name  string          `json:"name"`
	Type  model.EntryType `json:"type"`
	Color string          `json:"color"`
	Icon  string          `json:"icon"`
}

type updateCategoryRequest struct {
	Name  *string          `json:"name"`
	Type  *model.EntryType `json:"type"`
	Color *string          `json:"color"`
	Icon  *string          `json:"icon"`
}

type tagJSON struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toTag(t *model.Tag) tagJSON {
	return tagJSON{
		ID:        t.ID,
		Name:      t.Name,
		Color:     t.Color,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type updateTagRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// mapSlice converts every element with fn.
func mapSlice[T, U any](in []T, fn func(T) U) []U {
	out := make([]U, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
