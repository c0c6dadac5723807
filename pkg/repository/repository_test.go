package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"money-ledger/pkg/model"
	"money-ledger/pkg/store"
	"money-ledger/pkg/store/memory"
	"money-ledger/pkg/store/mock"

	"github.com/shopspring/decimal"
)

func newSet(t *testing.T) (*Set, *mock.MockStore) {
	t.Helper()
	m := mock.Wrap(memory.NewMemoryStore(memory.MemoryStoreConfig{Name: "test"}))
	return New(m, Config{MaxRetries: 3, RetryBackoff: time.Millisecond}), m
}

func TestConfig_Validate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
	if err := (Config{MaxRetries: -1}).Validate(); err == nil {
		t.Error("Expected error for negative retries")
	}
}

func TestAccounts_InsertGet(t *testing.T) {
	repos, _ := newSet(t)
	ctx := context.Background()

	acc := &model.Account{
		OwnerID:        "u1",
		Name:           "Wallet",
		Type:           model.AccountCash,
		Currency:       "IDR",
		InitialBalance: decimal.RequireFromString("1000.0001"),
		CurrentBalance: decimal.RequireFromString("1000.0001"),
		Active:         true,
	}
	if err := repos.Accounts.Insert(ctx, acc); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if acc.ID == "" || acc.Version != 1 {
		t.Fatalf("Expected generated id and version 1, got %q v%d", acc.ID, acc.Version)
	}

	got, err := repos.Accounts.GetOwned(ctx, "u1", acc.ID)
	if err != nil {
		t.Fatalf("GetOwned failed: %v", err)
	}
	if !got.CurrentBalance.Equal(acc.CurrentBalance) {
		t.Errorf("Expected balance %s, got %s", acc.CurrentBalance, got.CurrentBalance)
	}
	if got.Type != model.AccountCash || !got.Active || got.Currency != "IDR" {
		t.Errorf("Unexpected account %+v", got)
	}
}

func TestGetOwned_Errors(t *testing.T) {
	repos, _ := newSet(t)
	ctx := context.Background()

	tag := &model.Tag{OwnerID: "u1", Name: "trip"}
	if err := repos.Tags.Insert(ctx, tag); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	tests := []struct {
		name    string
		owner   string
		id      string
		wantErr error
	}{
		{"other owner", "u2", tag.ID, model.ErrForbidden},
		{"empty owner", "", tag.ID, model.ErrForbidden},
		{"missing", "u1", "nope", model.ErrNotFound},
		{"empty id", "u1", "", model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repos.Tags.GetOwned(ctx, tt.owner, tt.id)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTransfers_OptionalRate(t *testing.T) {
	repos, _ := newSet(t)
	ctx := context.Background()

	date := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	same := &model.Transfer{
		OwnerID: "u1", FromAccountID: "a", ToAccountID: "b",
		Amount: decimal.NewFromInt(5), ConvertedAmount: decimal.NewFromInt(5), Date: date,
	}
	fx := &model.Transfer{
		OwnerID: "u1", FromAccountID: "a", ToAccountID: "c",
		Amount: decimal.NewFromInt(300), Date: date,
		ExchangeRate:    decimal.NewNullDecimal(decimal.RequireFromString("0.0001")),
		ConvertedAmount: decimal.RequireFromString("0.03"),
	}
	for _, tr := range []*model.Transfer{same, fx} {
		if err := repos.Transfers.Insert(ctx, tr); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	got, err := repos.Transfers.Get(ctx, same.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ExchangeRate.Valid {
		t.Errorf("Expected no exchange rate, got %v", got.ExchangeRate)
	}
	if !got.Date.Equal(date) {
		t.Errorf("Expected date %v, got %v", date, got.Date)
	}

	got, err = repos.Transfers.Get(ctx, fx.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.ExchangeRate.Valid || !got.ExchangeRate.Decimal.Equal(decimal.RequireFromString("0.0001")) {
		t.Errorf("Expected rate 0.0001, got %v", got.ExchangeRate)
	}
	if got.ConvertedAmount.String() != "0.03" {
		t.Errorf("Expected converted 0.03, got %s", got.ConvertedAmount)
	}
}

func TestFind_ScopesToOwner(t *testing.T) {
	repos, _ := newSet(t)
	ctx := context.Background()

	for _, owner := range []string{"u1", "u1", "u2"} {
		repos.Tags.Insert(ctx, &model.Tag{OwnerID: owner, Name: "x"})
	}

	tags, err := repos.Tags.Find(ctx, "u1", store.Query{})
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("Expected 2 tags for u1, got %d", len(tags))
	}

	if _, err := repos.Tags.Find(ctx, "", store.Query{}); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("Expected ErrForbidden without owner, got %v", err)
	}
}

func TestModify_RetriesOnConflict(t *testing.T) {
	repos, m := newSet(t)
	ctx := context.Background()

	acc := &model.Account{OwnerID: "u1", Name: "A", CurrentBalance: decimal.NewFromInt(10)}
	if err := repos.Accounts.Insert(ctx, acc); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	var failures int32 = 2
	m.UpdateFunc = func(ctx context.Context, collection string, doc *store.Document) error {
		if atomic.AddInt32(&failures, -1) >= 0 {
			return store.ErrConflict
		}
		return m.Base.Update(ctx, collection, doc)
	}

	calls := 0
	got, err := repos.Accounts.Modify(ctx, "u1", acc.ID, func(a *model.Account) error {
		calls++
		a.CurrentBalance = a.CurrentBalance.Add(decimal.NewFromInt(5))
		return nil
	})
	if err != nil {
		t.Fatalf("Modify failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected fn to run 3 times, ran %d", calls)
	}
	if !got.CurrentBalance.Equal(decimal.NewFromInt(15)) {
		t.Errorf("Expected balance 15, got %s", got.CurrentBalance)
	}
}

func TestModify_GivesUp(t *testing.T) {
	repos, m := newSet(t)
	ctx := context.Background()

	acc := &model.Account{OwnerID: "u1", Name: "A"}
	repos.Accounts.Insert(ctx, acc)

	m.UpdateFunc = func(ctx context.Context, collection string, doc *store.Document) error {
		return store.ErrConflict
	}

	_, err := repos.Accounts.Modify(ctx, "u1", acc.ID, func(a *model.Account) error { return nil })
	if !errors.Is(err, ErrRetriesExhausted) || !store.IsConflict(err) {
		t.Errorf("Expected ErrRetriesExhausted wrapping ErrConflict, got %v", err)
	}
	if m.UpdateCalls() != 4 {
		t.Errorf("Expected 4 update attempts, got %d", m.UpdateCalls())
	}
}

func TestModify_FnErrorAborts(t *testing.T) {
	repos, m := newSet(t)
	ctx := context.Background()

	acc := &model.Account{OwnerID: "u1", Name: "A"}
	repos.Accounts.Insert(ctx, acc)

	boom := errors.New("rejected")
	_, err := repos.Accounts.Modify(ctx, "u1", acc.ID, func(a *model.Account) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Expected fn error, got %v", err)
	}
	if m.UpdateCalls() != 0 {
		t.Errorf("Expected no writes, got %d", m.UpdateCalls())
	}
}
