// Package transactions creates, updates and deletes income and expense
// records, keeping the referenced account's balance in step.
package transactions

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
	// Now is the clock used for default dates
	Now func() time.Time
}

// Service is the transaction mutator.
type Service struct {
	repos   *repository.Set
	ledger  *ledger.Ledger
	metrics metrics.MetricsCollector
	logger  *logging.Logger
	now     func() time.Time
}

// New creates a transaction service.
func New(repos *repository.Set, l *ledger.Ledger, opts Options) *Service {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoOpCollector{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Global().Named("transactions")
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
	s.metrics.RecordMutation("transaction", op, model.Outcome(err), time.Since(start))
}

func (s *Service) saga(name string) *saga.Saga {
	return saga.New("transaction_"+name, s.logger, s.metrics)
}

// CreateInput is the input of Create.
type CreateInput struct {
	OwnerID    string
	AccountID  string
	CategoryID string
	Type       model.EntryType
	Amount     decimal.Decimal
	// Currency defaults to the account's currency and must match it
	Currency string
	// Date defaults to now
	Date       time.Time
	Notes      string
	Attachment string
	Tags       []string
}

// Create validates and stores a pending transaction, applies its delta to
// the account and then settles the record. If a step fails the earlier ones
// are undone, so the record never outlives a delta that wasn't applied.
func (s *Service) Create(ctx context.Context, in CreateInput) (id string, err error) {
	defer func(start time.Time) { s.observe("create", start, err) }(time.Now())

	if err := model.ValidateAmount(in.Amount); err != nil {
		return "", err
	}
	if !in.Type.Valid() {
		return "", fmt.Errorf("%w: transaction type %q", model.ErrInvalidType, in.Type)
	}

	account, err := s.activeAccount(ctx, in.OwnerID, in.AccountID)
	if err != nil {
		return "", err
	}
	if err := s.checkCategory(ctx, in.OwnerID, in.CategoryID, in.Type); err != nil {
		return "", err
	}
	tags, err := s.checkTags(ctx, in.OwnerID, in.Tags)
	if err != nil {
		return "", err
	}
	currency, err := matchCurrency(account, in.Currency)
	if err != nil {
		return "", err
	}

	date := in.Date
	if date.IsZero() {
		date = s.now()
	}

	tx := &model.Transaction{
		OwnerID:    in.OwnerID,
		AccountID:  account.ID,
		CategoryID: in.CategoryID,
		Type:       in.Type,
		Amount:     in.Amount,
		Currency:   currency,
		Date:       date,
		Notes:      strings.TrimSpace(in.Notes),
		Attachment: strings.TrimSpace(in.Attachment),
		Tags:       tags,
		Pending:    true,
	}

	err = s.saga("create").
		Add("persist record",
			func(ctx context.Context) error { return s.repos.Transactions.Insert(ctx, tx) },
			func(ctx context.Context) error { return s.repos.Transactions.Delete(ctx, tx.ID) },
		).
		Add("apply delta",
			func(ctx context.Context) error {
				_, err := s.ledger.ApplyDelta(ctx, tx.OwnerID, tx.AccountID, tx.Delta(),
					ledger.RequireActive(),
					ledger.Cause(journal.KindTransaction, tx.ID, journal.OpCreate))
				return err
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, tx.OwnerID, tx.AccountID, tx.Delta().Neg(), tx.ID, journal.OpCompensate)
			},
		).
		Add("settle record",
			func(ctx context.Context) error { return s.settle(ctx, tx.OwnerID, tx.ID) },
			nil,
		).
		Run(ctx)
	if err != nil {
		return "", err
	}

	s.logger.Info("transaction created",
		logging.Owner(tx.OwnerID),
		logging.Transaction(tx.ID),
		logging.Account(tx.AccountID),
		logging.Amount("delta", tx.Delta()),
	)
	return tx.ID, nil
}

// UpdateInput holds optional changes. Nil fields keep their stored values.
type UpdateInput struct {
	AccountID  *string
	CategoryID *string
	Type       *model.EntryType
	Amount     *decimal.Decimal
	Currency   *string
	Date       *time.Time
	Notes      *string
	Attachment *string
	Tags       *[]string
}

func (in UpdateInput) touchesBalance() bool {
	return in.AccountID != nil || in.Type != nil || in.Amount != nil
}

// Update changes a transaction. When the balance is affected the record is
// marked pending, the old delta is reverted from the old account, the new
// delta is applied to the new account (which may be the same one) and the
// record is saved settled. Every record write is conditional on the version
// read before it, so a concurrent change to the same transaction rolls this
// update back instead of double-applying it.
func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (tx *model.Transaction, err error) {
	defer func(start time.Time) { s.observe("update", start, err) }(time.Now())

	old, err := s.mutable(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	next := *old
	next.Tags = append([]string(nil), old.Tags...)
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, fmt.Errorf("%w: transaction type %q", model.ErrInvalidType, *in.Type)
		}
		next.Type = *in.Type
	}
	if in.Amount != nil {
		if err := model.ValidateAmount(*in.Amount); err != nil {
			return nil, err
		}
		next.Amount = *in.Amount
	}

	var account *model.Account
	if in.AccountID != nil && *in.AccountID != old.AccountID {
		account, err = s.activeAccount(ctx, ownerID, *in.AccountID)
		next.AccountID = *in.AccountID
	} else {
		account, err = s.repos.Accounts.GetOwned(ctx, ownerID, old.AccountID)
	}
	if err != nil {
		return nil, err
	}

	if in.CategoryID != nil && *in.CategoryID != old.CategoryID {
		if err := s.checkCategory(ctx, ownerID, *in.CategoryID, next.Type); err != nil {
			return nil, err
		}
		next.CategoryID = *in.CategoryID
	} else if next.Type != old.Type {
		if err := s.checkCategoryType(ctx, ownerID, next.CategoryID, next.Type); err != nil {
			return nil, err
		}
	}

	currency := ""
	if in.Currency != nil {
		currency = *in.Currency
	} else if next.AccountID == old.AccountID {
		currency = old.Currency
	}
	if next.Currency, err = matchCurrency(account, currency); err != nil {
		return nil, err
	}

	if in.Date != nil {
		if in.Date.IsZero() {
			return nil, fmt.Errorf("%w: date is required", model.ErrValidation)
		}
		next.Date = *in.Date
	}
	if in.Notes != nil {
		next.Notes = strings.TrimSpace(*in.Notes)
	}
	if in.Attachment != nil {
		next.Attachment = strings.TrimSpace(*in.Attachment)
	}
	if in.Tags != nil {
		if next.Tags, err = s.checkTags(ctx, ownerID, *in.Tags); err != nil {
			return nil, err
		}
	}

	sg := s.saga("update")
	if in.touchesBalance() {
		sg.Add("mark pending",
			func(ctx context.Context) error {
				old.Pending = true
				return s.repos.Transactions.Save(ctx, old)
			},
			func(ctx context.Context) error { return s.settle(ctx, ownerID, id) },
		).Add("revert old delta",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, old.OwnerID, old.AccountID, old.Delta().Neg(), id, journal.OpUpdate)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, old.OwnerID, old.AccountID, old.Delta(), id, journal.OpCompensate)
			},
		).Add("apply new delta",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, next.OwnerID, next.AccountID, next.Delta(), id, journal.OpUpdate)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, next.OwnerID, next.AccountID, next.Delta().Neg(), id, journal.OpCompensate)
			},
		)
	}
	sg.Add("persist record",
		func(ctx context.Context) error {
			next.Pending = false
			next.Version = old.Version
			return s.repos.Transactions.Save(ctx, &next)
		},
		nil,
	)
	if err := sg.Run(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("transaction updated",
		logging.Owner(ownerID),
		logging.Transaction(id),
		logging.Amount("old_delta", old.Delta()),
		logging.Amount("new_delta", next.Delta()),
	)
	return &next, nil
}

// Delete reverts a transaction's delta and removes the record. The record is
// first marked as deleting with a versioned write, so concurrent deletes and
// updates of the same record fail instead of reverting the delta twice.
func (s *Service) Delete(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { s.observe("delete", start, err) }(time.Now())

	tx, err := s.mutable(ctx, ownerID, id)
	if err != nil {
		return err
	}

	err = s.saga("delete").
		Add("mark deleting",
			func(ctx context.Context) error {
				tx.Deleting = true
				return s.repos.Transactions.Save(ctx, tx)
			},
			func(ctx context.Context) error {
				tx.Deleting = false
				return s.repos.Transactions.Save(ctx, tx)
			},
		).
		Add("revert delta",
			func(ctx context.Context) error {
				return s.applyDelta(ctx, ownerID, tx.AccountID, tx.Delta().Neg(), id, journal.OpDelete)
			},
			func(ctx context.Context) error {
				return s.applyDelta(ctx, ownerID, tx.AccountID, tx.Delta(), id, journal.OpCompensate)
			},
		).
		Add("delete record",
			func(ctx context.Context) error { return s.repos.Transactions.Delete(ctx, id) },
			nil,
		).
		Run(ctx)
	if err != nil {
		return err
	}

	s.logger.Info("transaction deleted",
		logging.Owner(ownerID),
		logging.Transaction(id),
		logging.Account(tx.AccountID),
	)
	return nil
}

// Get returns an owned transaction.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Transaction, error) {
	tx, err := s.repos.Transactions.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if tx.Deleting {
		return nil, deletingErr(id)
	}
	return tx, nil
}

// mutable returns an owned transaction that no other mutation is moving.
func (s *Service) mutable(ctx context.Context, ownerID, id string) (*model.Transaction, error) {
	tx, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if tx.Pending {
		return nil, pendingErr(id)
	}
	return tx, nil
}

// settle clears the pending marker.
func (s *Service) settle(ctx context.Context, ownerID, id string) error {
	_, err := s.repos.Transactions.Modify(ctx, ownerID, id, func(tx *model.Transaction) error {
		tx.Pending = false
		return nil
	})
	return err
}

func deletingErr(id string) error {
	return fmt.Errorf("%w: transaction %s is being deleted", model.ErrNotFound, id)
}

func pendingErr(id string) error {
	return fmt.Errorf("%w: transaction %s has a change in progress", store.ErrConflict, id)
}

// AddTag attaches a tag. Adding a tag that is already attached is a no-op.
// The balance is never touched.
func (s *Service) AddTag(ctx context.Context, ownerID, id, tagID string) (err error) {
	defer func(start time.Time) { s.observe("add_tag", start, err) }(time.Now())

	if _, err := s.repos.Tags.GetOwned(ctx, ownerID, tagID); err != nil {
		return err
	}
	_, err = s.repos.Transactions.Modify(ctx, ownerID, id, func(tx *model.Transaction) error {
		if tx.Deleting {
			return deletingErr(id)
		}
		if tx.Pending {
			return pendingErr(id)
		}
		if !tx.HasTag(tagID) {
			tx.Tags = append(tx.Tags, tagID)
		}
		return nil
	})
	return err
}

// RemoveTag detaches a tag. Removing a tag that isn't attached is a no-op.
func (s *Service) RemoveTag(ctx context.Context, ownerID, id, tagID string) (err error) {
	defer func(start time.Time) { s.observe("remove_tag", start, err) }(time.Now())

	_, err = s.repos.Transactions.Modify(ctx, ownerID, id, func(tx *model.Transaction) error {
		if tx.Deleting {
			return deletingErr(id)
		}
		if tx.Pending {
			return pendingErr(id)
		}
		kept := tx.Tags[:0]
		for _, t := range tx.Tags {
			if t != tagID {
				kept = append(kept, t)
			}
		}
		tx.Tags = kept
		return nil
	})
	return err
}

func (s *Service) applyDelta(ctx context.Context, ownerID, accountID string, delta decimal.Decimal, id string, op journal.Operation) error {
	_, err := s.ledger.ApplyDelta(ctx, ownerID, accountID, delta,
		ledger.Cause(journal.KindTransaction, id, op))
	if err != nil {
		s.logger.Warn("balance delta failed",
			logging.Owner(ownerID),
			logging.Account(accountID),
			logging.Transaction(id),
			zap.String("operation", string(op)),
			zap.Error(err),
		)
	}
	return err
}

func (s *Service) activeAccount(ctx context.Context, ownerID, accountID string) (*model.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", model.ErrValidation)
	}
	account, err := s.repos.Accounts.GetOwned(ctx, ownerID, accountID)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: account %s", model.ErrAccountInactive, accountID)
	}
	return account, nil
}

func (s *Service) checkCategory(ctx context.Context, ownerID, categoryID string, typ model.EntryType) error {
	if categoryID == "" {
		return fmt.Errorf("%w: category id is required", model.ErrValidation)
	}
	category, err := s.repos.Categories.GetOwned(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	if !category.Active {
		return fmt.Errorf("%w: category %s", model.ErrCategoryInactive, categoryID)
	}
	if category.Type != typ {
		return fmt.Errorf("%w: %s category for %s transaction", model.ErrCategoryTypeMismatch, category.Type, typ)
	}
	return nil
}

// checkCategoryType re-checks a kept category after the type changed. The
// category may have been deactivated since; that doesn't block the update.
func (s *Service) checkCategoryType(ctx context.Context, ownerID, categoryID string, typ model.EntryType) error {
	category, err := s.repos.Categories.GetOwned(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	if category.Type != typ {
		return fmt.Errorf("%w: %s category for %s transaction", model.ErrCategoryTypeMismatch, category.Type, typ)
	}
	return nil
}

// checkTags resolves every tag id and drops duplicates, keeping order.
func (s *Service) checkTags(ctx context.Context, ownerID string, tagIDs []string) ([]string, error) {
	out := make([]string, 0, len(tagIDs))
	seen := make(map[string]bool, len(tagIDs))
	for _, id := range tagIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, err := s.repos.Tags.GetOwned(ctx, ownerID, id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func matchCurrency(account *model.Account, currency string) (string, error) {
	currency = model.NormalizeCurrency(currency)
	if currency == "" {
		return account.Currency, nil
	}
	if currency != account.Currency {
		return "", fmt.Errorf("%w: %s transaction on %s account", model.ErrCurrencyMismatch, currency, account.Currency)
	}
	return currency, nil
}
