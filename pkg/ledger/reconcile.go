package ledger

import (
	"context"
	"fmt"
	"time"

	"money-ledger/pkg/journal"
	"money-ledger/pkg/logging"
	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

// Reconciliation compares a stored balance with the balance implied by the
// account's records.
type Reconciliation struct {
	AccountID    string
	Stored       decimal.Decimal
	Expected     decimal.Decimal
	Drift        decimal.Decimal
	Transactions int
	Transfers    int
	// InFlight counts matched records whose balance effect is still moving
	InFlight int
	Fixed    bool
}

// Consistent reports whether the stored balance matches the records.
func (r *Reconciliation) Consistent() bool {
	return r.Drift.IsZero()
}

// ErrUnsettled is returned by a reconcile fix while a create, update or
// delete on the account has not finished moving the balance.
var ErrUnsettled = fmt.Errorf("%w: account has unsettled records", store.ErrConflict)

// Reconcile recomputes initial balance plus every transaction and transfer
// effect on the account. With fix set, the stored balance is overwritten
// with the expected one, conditional on the account version read before the
// records. A fix is refused with ErrUnsettled while any record is in flight,
// and fails with store.ErrConflict when a delta landed during the check.
func (l *Ledger) Reconcile(ctx context.Context, ownerID, id string, fix bool) (rec *Reconciliation, err error) {
	defer func(start time.Time) { l.observe("reconcile", start, err) }(time.Now())

	// read first: any delta after this point moves the version
	account, err := l.repos.Accounts.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	expected := account.InitialBalance
	inFlight := 0

	txs, err := l.repos.Transactions.Find(ctx, ownerID, store.Query{}.Where("accountId", store.OpEqual, id))
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		expected = expected.Add(tx.Delta())
		if tx.InFlight() {
			inFlight++
		}
	}

	outgoing, err := l.repos.Transfers.Find(ctx, ownerID, store.Query{}.Where("fromAccountId", store.OpEqual, id))
	if err != nil {
		return nil, err
	}
	for _, tr := range outgoing {
		expected = expected.Add(tr.SourceDelta())
		if tr.InFlight() {
			inFlight++
		}
	}

	incoming, err := l.repos.Transfers.Find(ctx, ownerID, store.Query{}.Where("toAccountId", store.OpEqual, id))
	if err != nil {
		return nil, err
	}
	for _, tr := range incoming {
		expected = expected.Add(tr.DestinationDelta())
		if tr.InFlight() {
			inFlight++
		}
	}

	rec = &Reconciliation{
		AccountID:    id,
		Stored:       account.CurrentBalance,
		Expected:     expected,
		Drift:        account.CurrentBalance.Sub(expected),
		Transactions: len(txs),
		Transfers:    len(outgoing) + len(incoming),
		InFlight:     inFlight,
	}
	if rec.Consistent() || !fix {
		return rec, nil
	}
	if inFlight > 0 {
		return nil, fmt.Errorf("reconcile account %s: %d records in flight: %w", id, inFlight, ErrUnsettled)
	}

	account.CurrentBalance = expected
	if err := l.repos.Accounts.Save(ctx, account); err != nil {
		return nil, fmt.Errorf("reconcile account %s: %w", id, err)
	}
	rec.Fixed = true

	l.record(ctx, account, rec.Drift.Neg(), cause{kind: journal.KindAccount, recordID: id, op: journal.OpCorrection})
	l.logger.Warn("balance drift corrected",
		logging.Owner(ownerID),
		logging.Account(id),
		logging.Amount("drift", rec.Drift),
	)
	return rec, nil
}
