// Package ledger owns account balances. Every balance change goes through a
// compare-and-swap on the account document and is appended to the journal.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"money-ledger/pkg/journal"
	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/model"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options carries the optional collaborators of a Ledger.
type Options struct {
	Journal journal.Recorder
	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

// Ledger manages accounts and their balances.
type Ledger struct {
	repos   *repository.Set
	journal journal.Recorder
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// New creates a ledger on top of the repository set.
func New(repos *repository.Set, opts Options) *Ledger {
	if opts.Journal == nil {
		opts.Journal = journal.Discard{}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global().Named("ledger")
	}
	return &Ledger{
		repos:   repos,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func (l *Ledger) observe(op string, start time.Time, err error) {
	l.metrics.RecordMutation("account", op, model.Outcome(err), time.Since(start))
}

// CreateAccountInput is the input of CreateAccount.
type CreateAccountInput struct {
	OwnerID        string
	Name           string
	Type           model.AccountType
	Currency       string
	InitialBalance decimal.Decimal
}

// CreateAccount stores a new active account whose current balance equals its
// initial balance, and returns its id.
func (l *Ledger) CreateAccount(ctx context.Context, in CreateAccountInput) (id string, err error) {
	defer func(start time.Time) { l.observe("create", start, err) }(time.Now())

	if in.OwnerID == "" {
		return "", fmt.Errorf("%w: owner id is required", model.ErrForbidden)
	}
	if err := model.ValidateName("name", in.Name); err != nil {
		return "", err
	}
	if !in.Type.Valid() {
		return "", fmt.Errorf("%w: account type %q", model.ErrInvalidType, in.Type)
	}
	currency := model.NormalizeCurrency(in.Currency)
	if err := model.ValidateCurrency(currency); err != nil {
		return "", err
	}

	account := &model.Account{
		OwnerID:        in.OwnerID,
		Name:           strings.TrimSpace(in.Name),
		Type:           in.Type,
		Currency:       currency,
		InitialBalance: in.InitialBalance,
		CurrentBalance: in.InitialBalance,
		Active:         true,
	}
	if err := l.repos.Accounts.Insert(ctx, account); err != nil {
		return "", err
	}

	l.logger.Info("account created",
		logging.Owner(account.OwnerID),
		logging.Account(account.ID),
		logging.Amount("initial_balance", account.InitialBalance),
	)
	return account.ID, nil
}

// GetAccount returns an owned account.
func (l *Ledger) GetAccount(ctx context.Context, ownerID, id string) (*model.Account, error) {
	return l.repos.Accounts.GetOwned(ctx, ownerID, id)
}

// ListAccounts returns the owner's accounts ordered by name.
func (l *Ledger) ListAccounts(ctx context.Context, ownerID string, activeOnly bool) ([]*model.Account, error) {
	q := store.Query{OrderBy: "name"}
	if activeOnly {
		q = q.Where("active", store.OpEqual, true)
	}
	return l.repos.Accounts.Find(ctx, ownerID, q)
}

// AccountUpdate holds the mutable account attributes. Nil fields are kept.
// Currency and initial balance never change after creation.
type AccountUpdate struct {
	Name *string
	Type *model.AccountType
}

// UpdateAccount changes an account's name or type.
func (l *Ledger) UpdateAccount(ctx context.Context, ownerID, id string, in AccountUpdate) (account *model.Account, err error) {
	defer func(start time.Time) { l.observe("update", start, err) }(time.Now())

	if in.Name != nil {
		if err := model.ValidateName("name", *in.Name); err != nil {
			return nil, err
		}
	}
	if in.Type != nil && !in.Type.Valid() {
		return nil, fmt.Errorf("%w: account type %q", model.ErrInvalidType, *in.Type)
	}

	return l.repos.Accounts.Modify(ctx, ownerID, id, func(a *model.Account) error {
		if in.Name != nil {
			a.Name = strings.TrimSpace(*in.Name)
		}
		if in.Type != nil {
			a.Type = *in.Type
		}
		return nil
	})
}

// SoftDelete marks an account inactive. Its balance and history are kept.
func (l *Ledger) SoftDelete(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { l.observe("delete", start, err) }(time.Now())
	return l.setActive(ctx, ownerID, id, false)
}

// Restore reactivates a soft-deleted account.
func (l *Ledger) Restore(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { l.observe("restore", start, err) }(time.Now())
	return l.setActive(ctx, ownerID, id, true)
}

func (l *Ledger) setActive(ctx context.Context, ownerID, id string, active bool) error {
	_, err := l.repos.Accounts.Modify(ctx, ownerID, id, func(a *model.Account) error {
		a.Active = active
		return nil
	})
	if err == nil {
		l.logger.Info("account active flag changed",
			logging.Owner(ownerID), logging.Account(id), zap.Bool("active", active))
	}
	return err
}

// SetBalance overwrites an account's current balance. It is the direct
// balance-correction call and is journaled as a correction.
func (l *Ledger) SetBalance(ctx context.Context, ownerID, id string, balance decimal.Decimal) (err error) {
	defer func(start time.Time) { l.observe("set_balance", start, err) }(time.Now())

	var delta decimal.Decimal
	account, err := l.repos.Accounts.Modify(ctx, ownerID, id, func(a *model.Account) error {
		delta = balance.Sub(a.CurrentBalance)
		a.CurrentBalance = balance
		return nil
	})
	if err != nil {
		return err
	}

	l.record(ctx, account, delta, cause{kind: journal.KindAccount, recordID: id, op: journal.OpCorrection})
	l.logger.Warn("account balance overwritten",
		logging.Owner(ownerID),
		logging.Account(id),
		logging.Amount("balance", balance),
		logging.Amount("delta", delta),
	)
	return nil
}

type cause struct {
	kind     journal.RecordKind
	recordID string
	op       journal.Operation
}

type deltaOptions struct {
	requireFunds  bool
	requireActive bool
	cause         cause
}

// DeltaOption tunes ApplyDelta.
type DeltaOption func(*deltaOptions)

// RequireFunds rejects a delta that would leave the balance below zero.
// The check runs against the balance being swapped, so it holds under
// concurrent writers.
func RequireFunds() DeltaOption {
	return func(o *deltaOptions) { o.requireFunds = true }
}

// RequireActive rejects a delta on an inactive account.
func RequireActive() DeltaOption {
	return func(o *deltaOptions) { o.requireActive = true }
}

// Cause names the record and operation behind a delta for the journal.
func Cause(kind journal.RecordKind, recordID string, op journal.Operation) DeltaOption {
	return func(o *deltaOptions) { o.cause = cause{kind: kind, recordID: recordID, op: op} }
}

// ApplyDelta atomically adds delta to an account's current balance and
// returns the new balance. Concurrent deltas on the same account are never
// lost: a stale read fails the version check and is retried.
func (l *Ledger) ApplyDelta(ctx context.Context, ownerID, id string, delta decimal.Decimal, opts ...DeltaOption) (decimal.Decimal, error) {
	o := deltaOptions{cause: cause{kind: journal.KindAccount, recordID: id, op: journal.OpCorrection}}
	for _, opt := range opts {
		opt(&o)
	}

	account, err := l.repos.Accounts.Modify(ctx, ownerID, id, func(a *model.Account) error {
		if o.requireActive && !a.Active {
			return fmt.Errorf("%w: account %s", model.ErrAccountInactive, a.ID)
		}
		next := a.CurrentBalance.Add(delta)
		if o.requireFunds && next.IsNegative() {
			return fmt.Errorf("%w: account %s has %s, needs %s",
				model.ErrInsufficientBalance, a.ID, a.CurrentBalance, delta.Neg())
		}
		a.CurrentBalance = next
		return nil
	})
	if err != nil {
		return decimal.Decimal{}, err
	}

	l.record(ctx, account, delta, o.cause)
	return account.CurrentBalance, nil
}

func (l *Ledger) record(ctx context.Context, account *model.Account, delta decimal.Decimal, c cause) {
	err := l.journal.Record(ctx, journal.Entry{
		OwnerID:    account.OwnerID,
		AccountID:  account.ID,
		RecordKind: c.kind,
		RecordID:   c.recordID,
		Operation:  c.op,
		Delta:      delta,
		Balance:    account.CurrentBalance,
	})
	if err != nil {
		// the balance is already written; a missing journal line is only logged
		l.logger.Warn("journal entry not recorded",
			logging.Owner(account.OwnerID),
			logging.Account(account.ID),
			zap.String("record_id", c.recordID),
			zap.Error(err),
		)
	}
}
