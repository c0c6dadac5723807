package transactions

import (
	"context"
	"fmt"
	"time"

	"money-ledger/pkg/model"
	"money-ledger/pkg/store"
)

// ListFilter narrows List. Zero fields don't filter.
type ListFilter struct {
	AccountID  string
	CategoryID string
	Type       model.EntryType
	TagID      string
	// From and To bound the date, both inclusive
	From  time.Time
	To    time.Time
	Limit int
}

// List returns the owner's transactions, newest first.
func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]*model.Transaction, error) {
	q := store.Query{OrderBy: "date", Descending: true}
	if f.AccountID != "" {
		q = q.Where("accountId", store.OpEqual, f.AccountID)
	}
	if f.CategoryID != "" {
		q = q.Where("categoryId", store.OpEqual, f.CategoryID)
	}
	if f.Type != "" {
		if !f.Type.Valid() {
			return nil, fmt.Errorf("%w: transaction type %q", model.ErrInvalidType, f.Type)
		}
		q = q.Where("type", store.OpEqual, string(f.Type))
	}
	if !f.From.IsZero() {
		q = q.Where("date", store.OpGreaterEqual, f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date", store.OpLessEqual, f.To)
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: date range ends before it starts", model.ErrValidation)
	}
	// tags live in an array field and records being deleted are skipped,
	// so the limit runs here rather than in the store

	txs, err := s.repos.Transactions.Find(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}

	out := txs[:0]
	for _, tx := range txs {
		if tx.Deleting {
			continue
		}
		if f.TagID == "" || tx.HasTag(f.TagID) {
			out = append(out, tx)
			if f.Limit > 0 && len(out) == f.Limit {
				break
			}
		}
	}
	return out, nil
}
