// Package transfers moves money between two accounts of the same owner,
// converting between currencies at a caller-supplied rate.
package transfers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"money-ledger/pkg/journal"
	"money-ledger/pkg/ledger"
	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/model"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/saga"
	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Options carries the optional collaborators of a Service.
type Options struct {
	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
	Now     func() time.Time
}

// Service is the transfer mutator.
type Service struct {
	repos   *repository.Set
	ledger  *ledger.Ledger
	metrics metrics.MetricsCollector
	logger  *logging.Logger
	now     func() time.Time
}

// New creates a transfer service.
func New(repos *repository.Set, l *ledger.Ledger, opts Options) *Service {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global().Named("transfers")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repos:   repos,
		ledger:  l,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		now:     opts.Now,
	}
}

func (s *Service) observe(op string, start time.Time, err error) {
	s.metrics.RecordMutation("transfer", op, model.Outcome(err), time.Since(start))
}

// CreateInput is the input of Create.
type CreateInput struct {
	OwnerID       string
	FromAccountID string
	ToAccountID   string
	// Amount is in the source account's currency
	Amount decimal.Decimal
	// Date defaults to now
	Date time.Time
	// ExchangeRate is required when the two accounts' currencies differ
	// and ignored when they match
	ExchangeRate decimal.NullDecimal
	Notes        string
}

// Create validates and stores a pending transfer, debits the source, credits
// the destination and settles the record. The debit re-checks funds against
// the balance it swaps, so a concurrent spend can't drive the source
// negative; a failed step rolls the earlier ones back.
func (s *Service) Create(ctx context.Context, in CreateInput) (id string, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())

	if err := requireAccounts(in.FromAccountID, in.ToAccountID); err != nil {
		return "", err
	}
	if in.FromAccountID == in.ToAccountID {
		return "", fmt.Errorf("%w: %s", model.ErrSameAccount, in.FromAccountID)
	}
	if err := model.ValidateAmount(in.Amount); err != nil {
		return "", err
	}

	from, err := s.activeAccount(ctx, in.OwnerID, in.FromAccountID)
	if err != nil {
		return "", err
	}
	to, err := s.activeAccount(ctx, in.OwnerID, in.ToAccountID)
	if err != nil {
		return "", err
	}
	if from.CurrentBalance.LessThan(in.Amount) {
		return "", fmt.Errorf("%w: account %s has %s, transfer needs %s",
			model.ErrInsufficientBalance, from.ID, from.CurrentBalance, in.Amount)
	}

	rate, converted, err := convert(from, to, in.Amount, in.ExchangeRate)
	if err != nil {
		return "", err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	tr := &model.Transfer{
		OwnerID:         in.OwnerID,
		FromAccountID:   from.ID,
		ToAccountID:     to.ID,
		Amount:          in.Amount,
		Currency:        from.Currency,
		Date:            date,
		ExchangeRate:    rate,
		ConvertedAmount: converted,
		Notes:           strings.TrimSpace(in.Notes),
		Pending:         true,
	}

	err = saga.New("transfer_create", s.logger, s.metrics).
		Add("persist record",
			func(ctx context.Context) error { return s.repos.Transfers.Insert(ctx, tr) },
			func(ctx context.Context) error { return s.repos.Transfers.Delete(ctx, tr.ID) },
		).
		Add("debit source",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.FromAccountID, tr.SourceDelta(), journal.OpCreate,
					ledger.RequireFunds(), ledger.RequireActive())
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.FromAccountID, tr.SourceDelta().Neg(), journal.OpCompensate)
			},
		).
		Add("credit destination",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.ToAccountID, tr.DestinationDelta(), journal.OpCreate,
					ledger.RequireActive())
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.ToAccountID, tr.DestinationDelta().Neg(), journal.OpCompensate)
			},
		).
		Add("settle record",
			func(ctx context.Context) error { return s.settle(ctx, tr.OwnerID, tr.ID) },
			nil,
		).
		Run(ctx)
	if err != nil {
		return "", err
	}

	s.logger.Info("transfer created",
		logging.Owner(tr.OwnerID),
		logging.Transfer(tr.ID),
		zap.String("from_account_id", tr.FromAccountID),
		zap.String("to_account_id", tr.ToAccountID),
		logging.Amount("amount", tr.Amount),
		logging.Amount("converted_amount", tr.ConvertedAmount),
	)
	return tr.ID, nil
}

// UpdateInput holds optional changes. Nil fields keep their stored values.
type UpdateInput struct {
	FromAccountID *string
	ToAccountID   *string
	Amount        *decimal.Decimal
	Date          *time.Time
	ExchangeRate  *decimal.Decimal
	Notes         *string
}

func (in UpdateInput) touchesBalance() bool {
	return in.FromAccountID != nil || in.ToAccountID != nil || in.Amount != nil || in.ExchangeRate != nil
}

// Update changes a transfer. When balances are affected the record is marked
// pending, both old effects are reverted using the stored converted amount,
// both new effects are applied, then the record is saved settled and
// conditionally on the version of the mark. A stored rate is reused when the
// currencies still differ and no new rate is given.
func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (tr *model.Transfer, err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())

	old, err := s.mutable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	next := *old
	if in.FromAccountID != nil {
		next.FromAccountID = *in.FromAccountID
	}
	if in.ToAccountID != nil {
		next.ToAccountID = *in.ToAccountID
	}
	if err := requireAccounts(next.FromAccountID, next.ToAccountID); err != nil {
		return nil, err
	}
	if next.FromAccountID == next.ToAccountID {
		return nil, fmt.Errorf("%w: %s", model.ErrSameAccount, next.FromAccountID)
	}
	if in.Amount != nil {
		if err := model.ValidateAmount(*in.Amount); err != nil {
			return nil, err
		}
		next.Amount = *in.Amount
	}

	from, err := s.account(ctx, ownerID, next.FromAccountID, next.FromAccountID != old.FromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := s.account(ctx, ownerID, next.ToAccountID, next.ToAccountID != old.ToAccountID)
	if err != nil {
		return nil, err
	}

	rate := old.ExchangeRate
	if in.ExchangeRate != nil {
		rate = decimal.NewNullDecimal(*in.ExchangeRate)
	}
	if next.ExchangeRate, next.ConvertedAmount, err = convert(from, to, next.Amount, rate); err != nil {
		return nil, err
	}
	next.Currency = from.Currency

	if in.Date != nil {
		if in.Date.IsZero() {
			return nil, fmt.Errorf("%w: date is required", model.ErrValidation)
		}
		next.Date = *in.Date
	}
	if in.Notes != nil {
		next.Notes = strings.TrimSpace(*in.Notes)
	}

	sg := saga.New("transfer_update", s.logger, s.metrics)
	if in.touchesBalance() {
		sg.Add("mark pending",
			func(ctx context.Context) error {
				old.Pending = true
				return s.repos.Transfers.Save(ctx, old)
			},
			func(ctx context.Context) error { return s.settle(ctx, ownerID, id) },
		).Add("revert source",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, old, old.FromAccountID, old.SourceDelta().Neg(), journal.OpUpdate)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, old, old.FromAccountID, old.SourceDelta(), journal.OpCompensate)
			},
		).Add("revert destination",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, old, old.ToAccountID, old.DestinationDelta().Neg(), journal.OpUpdate)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, old, old.ToAccountID, old.DestinationDelta(), journal.OpCompensate)
			},
		).Add("apply source",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, &next, next.FromAccountID, next.SourceDelta(), journal.OpUpdate)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, &next, next.FromAccountID, next.SourceDelta().Neg(), journal.OpCompensate)
			},
		).Add("apply destination",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, &next, next.ToAccountID, next.DestinationDelta(), journal.OpUpdate)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, &next, next.ToAccountID, next.DestinationDelta().Neg(), journal.OpCompensate)
			},
		)
	}
	sg.Add("persist record",
		func(ctx context.Context) error {
			next.Pending = false
			next.Version = old.Version
			return s.repos.Transfers.Save(ctx, &next)
		},
		nil,
	)
	if err := sg.Run(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("transfer updated",
		logging.Owner(ownerID),
		logging.Transfer(id),
		logging.Amount("amount", next.Amount),
		logging.Amount("converted_amount", next.ConvertedAmount),
	)
	return &next, nil
}

// Delete reverts both effects of a transfer and removes the record. Like
// transaction deletes, the record is marked first so the revert runs once.
func (s *Service) Delete(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())

	tr, err := s.mutable(ctx, ownerID, id)
	if err != nil {
		return err
	}

	err = saga.New("transfer_delete", s.logger, s.metrics).
		Add("mark deleting",
			func(ctx context.Context) error {
				tr.Deleting = true
				return s.repos.Transfers.Save(ctx, tr)
			},
			func(ctx context.Context) error {
				tr.Deleting = false
				return s.repos.Transfers.Save(ctx, tr)
			},
		).
		Add("revert source",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.FromAccountID, tr.SourceDelta().Neg(), journal.OpDelete)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.FromAccountID, tr.SourceDelta(), journal.OpCompensate)
			},
		).
		Add("revert destination",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.ToAccountID, tr.DestinationDelta().Neg(), journal.OpDelete)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tr, tr.ToAccountID, tr.DestinationDelta(), journal.OpCompensate)
			},
		).
		Add("delete record",
			func(ctx context.Context) error { return s.repos.Transfers.Delete(ctx, id) },
			nil,
		).
		Run(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("transfer deleted", logging.Owner(ownerID), logging.Transfer(id))
	return nil
}

// Get returns an owned transfer.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Transfer, error) {
	tr, err := s.repos.Transfers.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if tr.Deleting {
		return nil, fmt.Errorf("%w: transfer %s is being deleted", model.ErrNotFound, id)
	}
	return tr, nil
}

// mutable returns an owned transfer that no other mutation is moving.
func (s *Service) mutable(ctx context.Context, ownerID, id string) (*model.Transfer, error) {
	tr, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if tr.Pending {
		return nil, fmt.Errorf("%w: transfer %s has a change in progress", store.ErrConflict, id)
	}
	return tr, nil
}

// settle clears the pending marker.
func (s *Service) settle(ctx context.Context, ownerID, id string) error {
	_, err := s.repos.Transfers.Modify(ctx, ownerID, id, func(tr *model.Transfer) error {
		tr.Pending = false
		return nil
	})
	return err
}

func requireAccounts(fromID, toID string) error {
	if fromID == "" || toID == "" {
		return fmt.Errorf("%w: source and destination account ids are required", model.ErrValidation)
	}
	return nil
}

func (s *Service) applyDelta(ctx context.Context, tr *model.Transfer, accountID string, delta decimal.Decimal, op journal.Operation, opts ...ledger.DeltaOption) error {
	opts = append(opts, ledger.Cause(journal.KindTransfer, tr.ID, op))
	_, err := s.ledger.ApplyDelta(ctx, tr.OwnerID, accountID, delta, opts...)
	if err != nil {
		s.logger.Warn("balance delta failed",
			logging.Owner(tr.OwnerID),
			logging.Account(accountID),
			logging.Transfer(tr.ID),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) activeAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error) {
	return s.account(ctx, ownerID, accountID, true)
}

func (s *Service) account(ctx context.Context, ownerID, accountID string, requireActive bool) (*model.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", model.ErrValidation)
	}
	account, err := s.repos.Accounts.GetOwned(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}
	if requireActive && !account.Active {
		return nil, fmt.Errorf("%w: account %s", model.ErrAccountInactive, accountID)
	}
	return account, nil
}

// convert returns the rate to store and the amount credited to the
// destination. Same-currency transfers store no rate and credit amount.
func convert(from, to *model.Account, amount decimal.Decimal, rate decimal.NullDecimal) (decimal.NullDecimal, decimal.Decimal, error) {
	if from.Currency == to.Currency {
		return decimal.NullDecimal{}, amount, nil
	}
	if !rate.Valid || !rate.Decimal.IsPositive() {
		return decimal.NullDecimal{}, decimal.Decimal{}, fmt.Errorf("%w: %s to %s needs a rate greater than zero",
			model.ErrInvalidExchangeRate, from.Currency, to.Currency)
	}
	return rate, model.ConvertAmount(amount, rate.Decimal), nil
}
