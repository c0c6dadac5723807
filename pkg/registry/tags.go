package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/model"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/store"

	"go.uber.org/zap"
)

// Tags is the tag registry. Tags are hard-deleted; transactions that still
// carry a deleted tag id simply stop resolving it.
type Tags struct {
	repo    *repository.Repository[model.Tag]
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// NewTags creates the tag registry.
func NewTags(repos *repository.Set, opts Options) *Tags {
	opts = opts.withDefaults("tags")
	return &Tags{repo: repos.Tags, metrics: opts.Metrics, logger: opts.Logger}
}

func (t *Tags) observe(op string, start time.Time, err error) {
	t.metrics.RecordMutation("tag", op, model.Outcome(err), time.Since(start))
}

// CreateTagInput is the input of Tags.Create.
type CreateTagInput struct {
	OwnerID string
	Name    string
	Color   string
}

// Create stores a new tag; (owner, name) must be unique.
func (t *Tags) Create(ctx context.Context, in CreateTagInput) (id string, err error) {
	defer func(start time.Time) { t.observe("create", start, err) }(time.Now())

	if in.OwnerID == "" {
		return "", fmt.Errorf("%w: owner id is required", model.ErrForbidden)
	}
	if err := model.ValidateName("name", in.Name); err != nil {
		return "", err
	}
	if in.Color == "" {
		in.Color = model.DefaultColor
	}
	if err := validateColor(in.Color); err != nil {
		return "", err
	}
	if err := t.ensureUnique(ctx, in.OwnerID, in.Name, ""); err != nil {
		return "", err
	}

	tag := &model.Tag{
		OwnerID: in.OwnerID,
		Name:    strings.TrimSpace(in.Name),
		Color:   in.Color,
	}
	if err := t.repo.Insert(ctx, tag); err != nil {
		return "", err
	}
	return tag.ID, nil
}

// Get returns an owned tag.
func (t *Tags) Get(ctx context.Context, ownerID, id string) (*model.Tag, error) {
	return t.repo.GetOwned(ctx, ownerID, id)
}

// List returns the owner's tags ordered by name.
func (t *Tags) List(ctx context.Context, ownerID string) ([]*model.Tag, error) {
	return t.repo.Find(ctx, ownerID, store.Query{OrderBy: "name"})
}

// TagUpdate holds optional tag changes.
type TagUpdate struct {
	Name  *string
	Color *string
}

// Update renames or recolors a tag.
func (t *Tags) Update(ctx context.Context, ownerID, id string, in TagUpdate) (tag *model.Tag, err error) {
	defer func(start time.Time) { t.observe("update", start, err) }(time.Now())

	if in.Color != nil {
		if err := validateColor(*in.Color); err != nil {
			return nil, err
		}
	}
	if in.Name != nil {
		if err := model.ValidateName("name", *in.Name); err != nil {
			return nil, err
		}
		if _, err := t.repo.GetOwned(ctx, ownerID, id); err != nil {
			return nil, err
		}
		if err := t.ensureUnique(ctx, ownerID, *in.Name, id); err != nil {
			return nil, err
		}
	}

	return t.repo.Modify(ctx, ownerID, id, func(tag *model.Tag) error {
		if in.Name != nil {
			tag.Name = strings.TrimSpace(*in.Name)
		}
		if in.Color != nil {
			tag.Color = *in.Color
		}
		return nil
	})
}

// Delete removes a tag.
func (t *Tags) Delete(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { t.observe("delete", start, err) }(time.Now())

	if _, err := t.repo.GetOwned(ctx, ownerID, id); err != nil {
		return err
	}
	if err := t.repo.Delete(ctx, id); err != nil {
		return err
	}
	t.logger.Info("tag deleted", logging.Owner(ownerID), zap.String("tag_id", id))
	return nil
}

func (t *Tags) ensureUnique(ctx context.Context, ownerID, name, excludeID string) error {
	exists, err := t.NameExists(ctx, ownerID, name, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: tag %q", model.ErrDuplicateName, strings.TrimSpace(name))
	}
	return nil
}

// NameExists reports whether another tag of the owner has the same name,
// compared case-insensitively after trimming.
func (t *Tags) NameExists(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	tags, err := t.repo.Find(ctx, ownerID, store.Query{})
	if err != nil {
		return false, err
	}

	want := model.NormalizeName(name)
	for _, tag := range tags {
		if tag.ID != excludeID && model.NormalizeName(tag.Name) == want {
			return true, nil
		}
	}
	return false, nil
}
