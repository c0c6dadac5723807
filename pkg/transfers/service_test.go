package transfers

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"money-ledger/pkg/ledger"
	metricsmemory "money-ledger/pkg/metrics/memory"
	"money-ledger/pkg/model"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/saga"
	"money-ledger/pkg/store"
	"money-ledger/pkg/store/memory"
	"money-ledger/pkg/store/mock"

	"github.com/shopspring/decimal"
)

const owner = "owner-1"

type fixture struct {
	store   *mock.MockStore
	ledger  *ledger.Ledger
	service *Service
	metrics *metricsmemory.MemoryCollector
}

func setup(t *testing.T) *fixture {
	t.Helper()
	base := memory.NewMemoryStore(memory.MemoryStoreConfig{})
	t.Cleanup(func() { base.Close() })

	s := mock.Wrap(base)
	repos := repository.New(s, repository.Config{MaxRetries: 1000, RetryBackoff: time.Microsecond})
	mc := metricsmemory.NewMemoryCollector()
	l := ledger.New(repos, ledger.Options{Metrics: mc})
	return &fixture{store: s, ledger: l, service: New(repos, l, Options{Metrics: mc}), metrics: mc}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func (f *fixture) account(t *testing.T, currency, initial string) string {
	t.Helper()
	id, err := f.ledger.CreateAccount(context.Background(), ledger.CreateAccountInput{
		OwnerID: owner, Name: "Account " + currency, Type: model.AccountBank,
		Currency: currency, InitialBalance: dec(initial),
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	return id
}

func (f *fixture) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	a, err := f.ledger.GetAccount(context.Background(), owner, id)
	if err != nil {
		t.Fatalf("GetAccount failed: %v", err)
	}
	return a.CurrentBalance
}

func (f *fixture) expectBalance(t *testing.T, id, want string) {
	t.Helper()
	if got := f.balance(t, id); !got.Equal(dec(want)) {
		t.Errorf("Account %s: expected %s, got %s", id, want, got)
	}
}

func (f *fixture) assertConsistent(t *testing.T, accountIDs ...string) {
	t.Helper()
	for _, id := range accountIDs {
		rec, err := f.ledger.Reconcile(context.Background(), owner, id, false)
		if err != nil {
			t.Fatalf("Reconcile failed: %v", err)
		}
		if !rec.Consistent() {
			t.Errorf("Account %s drifted by %s", id, rec.Drift)
		}
	}
}

func TestScenario_CrossCurrencyTransfer(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "IDR", "1000")
	b := f.account(t, "USD", "0")

	id, err := f.service.Create(ctx, CreateInput{
		OwnerID: owner, FromAccountID: a, ToAccountID: b,
		Amount: dec("300"), ExchangeRate: rate("0.0001"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.expectBalance(t, a, "700")
	f.expectBalance(t, b, "0.03")

	tr, err := f.service.Get(ctx, owner, id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if tr.Currency != "IDR" || !tr.ConvertedAmount.Equal(dec("0.03")) || !tr.ExchangeRate.Valid {
		t.Errorf("Unexpected transfer %+v", tr)
	}

	if err := f.service.Delete(ctx, owner, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	f.expectBalance(t, a, "1000")
	f.expectBalance(t, b, "0")
	if _, err := f.service.Get(ctx, owner, id); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestCreate_Symmetry(t *testing.T) {
	tests := []struct {
		name          string
		fromCurrency  string
		toCurrency    string
		amount        string
		rate          decimal.NullDecimal
		wantDebit     string
		wantCredit    string
		wantStoreRate bool
	}{
		{"same currency", "USD", "USD", "125.5", decimal.NullDecimal{}, "874.5", "125.5", false},
		{"same currency ignores rate", "USD", "USD", "10", rate("3"), "990", "10", false},
		{"converted", "EUR", "USD", "100", rate("1.0825"), "900", "108.25", true},
		{"tiny rate", "IDR", "USD", "1", rate("0.0000625"), "999", "0.0000625", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			from := f.account(t, tt.fromCurrency, "1000")
			to := f.account(t, tt.toCurrency, "0")

			id, err := f.service.Create(context.Background(), CreateInput{
				OwnerID: owner, FromAccountID: from, ToAccountID: to,
				Amount: dec(tt.amount), ExchangeRate: tt.rate,
			})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			f.expectBalance(t, from, tt.wantDebit)
			f.expectBalance(t, to, tt.wantCredit)

			tr, _ := f.service.Get(context.Background(), owner, id)
			if tr.ExchangeRate.Valid != tt.wantStoreRate {
				t.Errorf("Expected stored rate %v, got %+v", tt.wantStoreRate, tr.ExchangeRate)
			}
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usd := f.account(t, "USD", "100")
	usd2 := f.account(t, "USD", "0")
	eur := f.account(t, "EUR", "0")
	closed := f.account(t, "USD", "0")
	if err := f.ledger.SoftDelete(ctx, owner, closed); err != nil {
		t.Fatalf("SoftDelete failed: %v", err)
	}

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"missing ids", CreateInput{Amount: dec("1")}, model.ErrValidation},
		{"missing destination id", CreateInput{FromAccountID: usd, Amount: dec("1")}, model.ErrValidation},
		{"same account", CreateInput{FromAccountID: usd, ToAccountID: usd, Amount: dec("1")}, model.ErrSameAccount},
		{"zero amount", CreateInput{FromAccountID: usd, ToAccountID: usd2, Amount: decimal.Zero}, model.ErrInvalidAmount},
		{"missing source", CreateInput{FromAccountID: "nope", ToAccountID: usd2, Amount: dec("1")}, model.ErrNotFound},
		{"missing destination", CreateInput{FromAccountID: usd, ToAccountID: "nope", Amount: dec("1")}, model.ErrNotFound},
		{"insufficient", CreateInput{FromAccountID: usd, ToAccountID: usd2, Amount: dec("100.01")}, model.ErrInsufficientBalance},
		{"no rate", CreateInput{FromAccountID: usd, ToAccountID: eur, Amount: dec("1")}, model.ErrInvalidExchangeRate},
		{"zero rate", CreateInput{FromAccountID: usd, ToAccountID: eur, Amount: dec("1"), ExchangeRate: rate("0")}, model.ErrInvalidExchangeRate},
		{"negative rate", CreateInput{FromAccountID: usd, ToAccountID: eur, Amount: dec("1"), ExchangeRate: rate("-1")}, model.ErrInvalidExchangeRate},
		{"inactive destination", CreateInput{FromAccountID: usd, ToAccountID: closed, Amount: dec("1")}, model.ErrAccountInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tt.in
			in.OwnerID = owner
			if _, err := f.service.Create(ctx, in); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := f.service.Create(ctx, CreateInput{OwnerID: "owner-2", FromAccountID: usd, ToAccountID: usd2, Amount: dec("1")}); !errors.Is(err, model.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}

	f.expectBalance(t, usd, "100")
	transfers, err := f.service.List(ctx, owner, ListFilter{})
	if err != nil || len(transfers) != 0 {
		t.Errorf("Expected no records after rejected creates, got %d (%v)", len(transfers), err)
	}
}

func TestCreate_FullBalanceAllowed(t *testing.T) {
	f := setup(t)
	a := f.account(t, "USD", "50")
	b := f.account(t, "USD", "0")

	if _, err := f.service.Create(context.Background(), CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("50")}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	f.expectBalance(t, a, "0")
	f.expectBalance(t, b, "50")
}

func TestCreate_ConcurrentSpendNeverOverdraws(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	src := f.account(t, "USD", "100")
	dst := f.account(t, "USD", "0")

	var wg sync.WaitGroup
	var succeeded, insufficient int64
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: src, ToAccountID: dst, Amount: dec("20")})
			switch {
			case err == nil:
				atomic.AddInt64(&succeeded, 1)
			case errors.Is(err, model.ErrInsufficientBalance):
				atomic.AddInt64(&insufficient, 1)
			default:
				t.Errorf("Unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 5 || insufficient != 5 {
		t.Errorf("Expected 5 successes and 5 rejections, got %d and %d", succeeded, insufficient)
	}
	f.expectBalance(t, src, "0")
	f.expectBalance(t, dst, "100")
	f.assertConsistent(t, src, dst)
}

func TestCreate_CompensatesWhenCreditFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "100")
	b := f.account(t, "USD", "0")

	f.store.UpdateFunc = func(ctx context.Context, collection string, doc *store.Document) error {
		if collection == repository.AccountsCollection && doc.ID == b {
			return store.ErrCircuitOpen
		}
		return f.store.Base.Update(ctx, collection, doc)
	}

	_, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("30")})
	if !errors.Is(err, store.ErrCircuitOpen) || errors.Is(err, saga.ErrCompensationFailed) {
		t.Fatalf("Expected a compensated circuit open error, got %v", err)
	}
	var stepErr *saga.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "credit destination" {
		t.Errorf("Expected failure in credit destination, got %v", err)
	}

	f.store.UpdateFunc = nil
	f.expectBalance(t, a, "100")
	f.expectBalance(t, b, "0")
	transfers, err := f.service.List(ctx, owner, ListFilter{})
	if err != nil || len(transfers) != 0 {
		t.Errorf("Expected the record to be removed, got %d (%v)", len(transfers), err)
	}
	if got := f.metrics.Compensations("transfer_create"); got.Succeeded != 1 {
		t.Errorf("Expected one successful compensation, got %+v", got)
	}
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	idr := f.account(t, "IDR", "1000")
	usd := f.account(t, "USD", "0")
	usd2 := f.account(t, "USD", "5")

	id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: idr, ToAccountID: usd, Amount: dec("300"), ExchangeRate: rate("0.0001")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// the stored rate is kept when only the amount changes
	amount := dec("500")
	tr, err := f.service.Update(ctx, owner, id, UpdateInput{Amount: &amount})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !tr.ConvertedAmount.Equal(dec("0.05")) {
		t.Errorf("Expected converted 0.05, got %s", tr.ConvertedAmount)
	}
	f.expectBalance(t, idr, "500")
	f.expectBalance(t, usd, "0.05")

	newRate := dec("0.0002")
	if _, err := f.service.Update(ctx, owner, id, UpdateInput{ExchangeRate: &newRate}); err != nil {
		t.Fatalf("Update rate failed: %v", err)
	}
	f.expectBalance(t, usd, "0.1")

	// moving the destination reverts the stored converted amount from the old one
	if _, err := f.service.Update(ctx, owner, id, UpdateInput{ToAccountID: &usd2}); err != nil {
		t.Fatalf("Update destination failed: %v", err)
	}
	f.expectBalance(t, idr, "500")
	f.expectBalance(t, usd, "0")
	f.expectBalance(t, usd2, "5.1")
	f.assertConsistent(t, idr, usd, usd2)

	if _, err := f.service.Update(ctx, owner, id, UpdateInput{ToAccountID: &idr}); !errors.Is(err, model.ErrSameAccount) {
		t.Errorf("Expected ErrSameAccount, got %v", err)
	}
	bad := dec("0")
	if _, err := f.service.Update(ctx, owner, id, UpdateInput{ExchangeRate: &bad}); !errors.Is(err, model.ErrInvalidExchangeRate) {
		t.Errorf("Expected ErrInvalidExchangeRate, got %v", err)
	}
	if _, err := f.service.Update(ctx, owner, "missing", UpdateInput{Amount: &amount}); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	f.assertConsistent(t, idr, usd, usd2)
}

func TestUpdate_SameCurrencyDropsRate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	eur := f.account(t, "EUR", "100")
	usd := f.account(t, "USD", "0")
	usd2 := f.account(t, "USD", "100")

	id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: eur, ToAccountID: usd, Amount: dec("10"), ExchangeRate: rate("1.1")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	tr, err := f.service.Update(ctx, owner, id, UpdateInput{FromAccountID: &usd2})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if tr.ExchangeRate.Valid || !tr.ConvertedAmount.Equal(dec("10")) || tr.Currency != "USD" {
		t.Errorf("Unexpected transfer %+v", tr)
	}
	f.expectBalance(t, eur, "100")
	f.expectBalance(t, usd2, "90")
	f.expectBalance(t, usd, "10")
}

func TestUpdate_CompensatesWhenRecordWriteFails(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "100")
	b := f.account(t, "USD", "0")
	id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("40")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// the pending mark goes through, the final record write conflicts
	var recordWrites int64
	f.store.UpdateFunc = func(ctx context.Context, collection string, doc *store.Document) error {
		if collection == repository.TransfersCollection && atomic.AddInt64(&recordWrites, 1) == 2 {
			return store.ErrConflict
		}
		return f.store.Base.Update(ctx, collection, doc)
	}

	amount := dec("70")
	if _, err := f.service.Update(ctx, owner, id, UpdateInput{Amount: &amount}); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("Expected conflict, got %v", err)
	}

	f.store.UpdateFunc = nil
	f.expectBalance(t, a, "60")
	f.expectBalance(t, b, "40")
	f.assertConsistent(t, a, b)
	if got := f.metrics.Compensations("transfer_update"); got.Succeeded != 1 {
		t.Errorf("Expected one successful compensation, got %+v", got)
	}
	tr, err := f.service.Get(ctx, owner, id)
	if err != nil || tr.Pending || !tr.Amount.Equal(dec("40")) {
		t.Errorf("Expected the settled original record, got %+v (%v)", tr, err)
	}
}

func TestOtherOwnerCannotMutate(t *testing.T) {
	amount := dec("10")
	tests := []struct {
		name   string
		mutate func(f *fixture, ctx context.Context, id string) error
	}{
		{"update", func(f *fixture, ctx context.Context, id string) error {
			_, err := f.service.Update(ctx, "owner-2", id, UpdateInput{Amount: &amount})
			return err
		}},
		{"delete", func(f *fixture, ctx context.Context, id string) error {
			return f.service.Delete(ctx, "owner-2", id)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			ctx := context.Background()
			a := f.account(t, "USD", "100")
			b := f.account(t, "USD", "0")
			id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("40")})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}

			if err := tt.mutate(f, ctx, id); !errors.Is(err, model.ErrForbidden) {
				t.Errorf("Expected ErrForbidden, got %v", err)
			}
			f.expectBalance(t, a, "60")
			f.expectBalance(t, b, "40")
			tr, err := f.service.Get(ctx, owner, id)
			if err != nil || !tr.Amount.Equal(dec("40")) {
				t.Errorf("Expected the record unchanged, got %+v (%v)", tr, err)
			}
		})
	}
}

func TestUpdate_RequiresAccountIDs(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "100")
	b := f.account(t, "USD", "0")
	id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("40")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	empty := ""
	if _, err := f.service.Update(ctx, owner, id, UpdateInput{FromAccountID: &empty, ToAccountID: &empty}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
	f.expectBalance(t, a, "60")
}

func TestDelete_Reversal(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "EUR", "250.75")
	b := f.account(t, "USD", "13.37")

	for _, amount := range []string{"0.01", "100", "250.75"} {
		id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec(amount), ExchangeRate: rate("1.0833")})
		if err != nil {
			t.Fatalf("Create %s failed: %v", amount, err)
		}
		if err := f.service.Delete(ctx, owner, id); err != nil {
			t.Fatalf("Delete %s failed: %v", amount, err)
		}
		f.expectBalance(t, a, "250.75")
		f.expectBalance(t, b, "13.37")
	}

	if err := f.service.Delete(ctx, owner, "missing"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestDelete_ReconcileFixMidDeleteIsRefused(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "100")
	b := f.account(t, "USD", "0")
	id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("60")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// both effects are reverted, the record is still there
	var fixErrs []error
	f.store.DeleteFunc = func(ctx context.Context, collection, docID string) error {
		if collection == repository.TransfersCollection {
			for _, acc := range []string{a, b} {
				_, err := f.ledger.Reconcile(ctx, owner, acc, true)
				fixErrs = append(fixErrs, err)
			}
		}
		return f.store.Base.Delete(ctx, collection, docID)
	}

	if err := f.service.Delete(ctx, owner, id); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	f.store.DeleteFunc = nil

	if len(fixErrs) != 2 {
		t.Fatalf("Expected two mid-delete reconciles, got %d", len(fixErrs))
	}
	for _, err := range fixErrs {
		if !errors.Is(err, ledger.ErrUnsettled) {
			t.Errorf("Expected ErrUnsettled, got %v", err)
		}
	}
	f.expectBalance(t, a, "100")
	f.expectBalance(t, b, "0")
	f.assertConsistent(t, a, b)
}

func TestDelete_ConcurrentDeletesRevertOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "100")
	b := f.account(t, "USD", "0")
	id, err := f.service.Create(ctx, CreateInput{OwnerID: owner, FromAccountID: a, ToAccountID: b, Amount: dec("60")})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.service.Delete(ctx, owner, id)
		}()
	}
	wg.Wait()

	f.expectBalance(t, a, "100")
	f.expectBalance(t, b, "0")
}

func TestList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "1000")
	b := f.account(t, "USD", "1000")
	c := f.account(t, "USD", "1000")

	day := func(d int) time.Time { return time.Date(2026, 6, d, 8, 0, 0, 0, time.UTC) }
	seed := []CreateInput{
		{FromAccountID: a, ToAccountID: b, Amount: dec("1"), Date: day(1)},
		{FromAccountID: b, ToAccountID: a, Amount: dec("2"), Date: day(3)},
		{FromAccountID: b, ToAccountID: c, Amount: dec("3"), Date: day(5)},
		{FromAccountID: c, ToAccountID: a, Amount: dec("4"), Date: day(7)},
	}
	for _, in := range seed {
		in.OwnerID = owner
		if _, err := f.service.Create(ctx, in); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter ListFilter
		want   []string
	}{
		{"all", ListFilter{}, []string{"4", "3", "2", "1"}},
		{"either side of a", ListFilter{AccountID: a}, []string{"4", "2", "1"}},
		{"either side of c", ListFilter{AccountID: c}, []string{"4", "3"}},
		{"range", ListFilter{From: day(2), To: day(5)}, []string{"3", "2"}},
		{"account and limit", ListFilter{AccountID: a, Limit: 2}, []string{"4", "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transfers, err := f.service.List(ctx, owner, tt.filter)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(transfers) != len(tt.want) {
				t.Fatalf("Expected %d transfers, got %d", len(tt.want), len(transfers))
			}
			for i, tr := range transfers {
				if tr.Amount.String() != tt.want[i] {
					t.Errorf("Position %d: expected %s, got %s", i, tt.want[i], tr.Amount)
				}
			}
		})
	}

	if _, err := f.service.List(ctx, owner, ListFilter{From: day(5), To: day(1)}); !errors.Is(err, model.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

func TestList_LimitSkipsRecordsBeingDeleted(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.account(t, "USD", "1000")
	b := f.account(t, "USD", "1000")

	var newest string
	for d := 1; d <= 3; d++ {
		id, err := f.service.Create(ctx, CreateInput{
			OwnerID: owner, FromAccountID: a, ToAccountID: b,
			Amount: decimal.NewFromInt(int64(d)), Date: time.Date(2026, 6, d, 8, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		newest = id
	}
	if _, err := f.service.repos.Transfers.Modify(ctx, owner, newest, func(tr *model.Transfer) error {
		tr.Deleting = true
		return nil
	}); err != nil {
		t.Fatalf("Modify failed: %v", err)
	}

	for _, filter := range []ListFilter{{Limit: 2}, {AccountID: a, Limit: 2}} {
		transfers, err := f.service.List(ctx, owner, filter)
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(transfers) != 2 || !transfers[0].Amount.Equal(dec("2")) || !transfers[1].Amount.Equal(dec("1")) {
			t.Errorf("Filter %+v: expected the two live transfers, got %+v", filter, transfers)
		}
	}
}
