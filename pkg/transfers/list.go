package transfers

import (
	"context"
	"fmt"
	"sort"
	"time"

	"money-ledger/pkg/model"
	"money-ledger/pkg/store"
)

// ListFilter narrows List. Zero fields don't filter.
type ListFilter struct {
	// AccountID matches transfers on either side
	AccountID string
	From      time.Time
	To        time.Time
	Limit     int
}

// List returns the owner's transfers, newest first.
func (s *Service) List(ctx context.Context, ownerID string, f ListFilter) ([]*model.Transfer, error) {
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return nil, fmt.Errorf("%w: date range ends before it starts", model.ErrValidation)
	}

	// records being deleted are skipped, so the limit runs after the query
	q := store.Query{OrderBy: "date", Descending: true}
	if !f.From.IsZero() {
		q = q.Where("date", store.OpGreaterEqual, f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("date", store.OpLessEqual, f.To)
	}

	var found []*model.Transfer
	if f.AccountID == "" {
		all, err := s.repos.Transfers.Find(ctx, ownerID, q)
		if err != nil {
			return nil, err
		}
		found = all
	} else {
		// the store can't OR two fields, so each side is a query of its own
		for _, field := range []string{"fromAccountId", "toAccountId"} {
			side, err := s.repos.Transfers.Find(ctx, ownerID, q.Where(field, store.OpEqual, f.AccountID))
			if err != nil {
				return nil, err
			}
			found = append(found, side...)
		}
		sort.SliceStable(found, func(i, j int) bool {
			if !found[i].Date.Equal(found[j].Date) {
				return found[i].Date.After(found[j].Date)
			}
			return found[i].ID > found[j].ID
		})
	}

	out := found[:0]
	for _, tr := range found {
		if tr.Deleting {
			continue
		}
		out = append(out, tr)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}
