// Package registry manages the owned reference data transactions point at:
// categories and tags.
package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"money-ledger/pkg/logging"
	"money-ledger/pkg/metrics"
	"money-ledger/pkg/model"
	"money-ledger/pkg/repository"
	"money-ledger/pkg/store"

	"go.uber.org/zap"
)

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

func validateColor(color string) error {
	if !colorPattern.MatchString(color) {
		return fmt.Errorf("%w: color must look like #RRGGBB, got %q", model.ErrValidation, color)
	}
	return nil
}

// Options carries the optional collaborators of the registries.
type Options struct {
	Metrics metrics.MetricsCollector
	Logger  *logging.Logger
}

func (o Options) withDefaults(name string) Options {
	if o.Metrics == nil {
		o.Metrics = metrics.NoOpCollector{}
	}
	if o.Logger == nil {
		o.Logger = logging.Global().Named(name)
	}
	return o
}

// Categories is the category registry. Categories are soft-deleted because
// historical transactions keep pointing at them.
type Categories struct {
	repo    *repository.Repository[model.Category]
	metrics metrics.MetricsCollector
	logger  *logging.Logger
}

// NewCategories creates the category registry.
func NewCategories(repos *repository.Set, opts Options) *Categories {
	opts = opts.withDefaults("categories")
	return &Categories{repo: repos.Categories, metrics: opts.Metrics, logger: opts.Logger}
}

func (c *Categories) observe(op string, start time.Time, err error) {
	c.metrics.RecordMutation("category", op, model.Outcome(err), time.Since(start))
}

// CreateCategoryInput is the input of Categories.Create.
type CreateCategoryInput struct {
	OwnerID string
	Name    string
	Type    model.EntryType
	Color   string
	Icon    string
}

// Create stores a new active category. (owner, name, type) must be unique
// among active categories.
func (c *Categories) Create(ctx context.Context, in CreateCategoryInput) (id string, err error) {
	defer func(start time.Time) { c.observe("create", start, err) }(time.Now())

	if in.OwnerID == "" {
		return "", fmt.Errorf("%w: owner id is required", model.ErrForbidden)
	}
	if err := model.ValidateName("name", in.Name); err != nil {
		return "", err
	}
	if !in.Type.Valid() {
		return "", fmt.Errorf("%w: category type %q", model.ErrInvalidType, in.Type)
	}
	if in.Color == "" {
		in.Color = model.DefaultColor
	}
	if err := validateColor(in.Color); err != nil {
		return "", err
	}
	if strings.TrimSpace(in.Icon) == "" {
		in.Icon = model.DefaultIcon
	}

	exists, err := c.NameExists(ctx, in.OwnerID, in.Name, in.Type, "")
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("%w: %s category %q", model.ErrDuplicateName, in.Type, strings.TrimSpace(in.Name))
	}

	category := &model.Category{
		OwnerID: in.OwnerID,
		Name:    strings.TrimSpace(in.Name),
		Type:    in.Type,
		Color:   in.Color,
		Icon:    strings.TrimSpace(in.Icon),
		Active:  true,
	}
	if err := c.repo.Insert(ctx, category); err != nil {
		return "", err
	}
	return category.ID, nil
}

// Get returns an owned category, active or not.
func (c *Categories) Get(ctx context.Context, ownerID, id string) (*model.Category, error) {
	return c.repo.GetOwned(ctx, ownerID, id)
}

// CategoryFilter narrows List. A zero filter returns every category.
type CategoryFilter struct {
	Type       model.EntryType
	ActiveOnly bool
}

// List returns the owner's categories ordered by name.
func (c *Categories) List(ctx context.Context, ownerID string, f CategoryFilter) ([]*model.Category, error) {
	q := store.Query{OrderBy: "name"}
	if f.Type != "" {
		if !f.Type.Valid() {
			return nil, fmt.Errorf("%w: category type %q", model.ErrInvalidType, f.Type)
		}
		q = q.Where("type", store.OpEqual, string(f.Type))
	}
	if f.ActiveOnly {
		q = q.Where("active", store.OpEqual, true)
	}
	return c.repo.Find(ctx, ownerID, q)
}

// CategoryUpdate holds optional category changes.
type CategoryUpdate struct {
	Name  *string
	Type  *model.EntryType
	Color *string
	Icon  *string
}

// Update changes a category, re-checking name uniqueness when the name or
// type changes.
func (c *Categories) Update(ctx context.Context, ownerID, id string, in CategoryUpdate) (category *model.Category, err error) {
	defer func(start time.Time) { c.observe("update", start, err) }(time.Now())

	if in.Name != nil {
		if err := model.ValidateName("name", *in.Name); err != nil {
			return nil, err
		}
	}
	if in.Type != nil && !in.Type.Valid() {
		return nil, fmt.Errorf("%w: category type %q", model.ErrInvalidType, *in.Type)
	}
	if in.Color != nil {
		if err := validateColor(*in.Color); err != nil {
			return nil, err
		}
	}

	current, err := c.repo.GetOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	name, typ := current.Name, current.Type
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Type != nil {
		typ = *in.Type
	}
	renamed := model.NormalizeName(name) != model.NormalizeName(current.Name) || typ != current.Type
	if current.Active && renamed {
		if err := c.ensureUnique(ctx, ownerID, name, typ, id); err != nil {
			return nil, err
		}
	}

	return c.repo.Modify(ctx, ownerID, id, func(cat *model.Category) error {
		cat.Name = name
		cat.Type = typ
		if in.Color != nil {
			cat.Color = *in.Color
		}
		if in.Icon != nil && strings.TrimSpace(*in.Icon) != "" {
			cat.Icon = strings.TrimSpace(*in.Icon)
		}
		return nil
	})
}

// SoftDelete marks a category inactive.
func (c *Categories) SoftDelete(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { c.observe("delete", start, err) }(time.Now())

	_, err = c.repo.Modify(ctx, ownerID, id, func(cat *model.Category) error {
		cat.Active = false
		return nil
	})
	return err
}

// Restore reactivates a category unless an active one already uses its name.
func (c *Categories) Restore(ctx context.Context, ownerID, id string) (err error) {
	defer func(start time.Time) { c.observe("restore", start, err) }(time.Now())

	current, err := c.repo.GetOwned(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if current.Active {
		return nil
	}
	if err := c.ensureUnique(ctx, ownerID, current.Name, current.Type, id); err != nil {
		return err
	}

	_, err = c.repo.Modify(ctx, ownerID, id, func(cat *model.Category) error {
		cat.Active = true
		return nil
	})
	return err
}

func (c *Categories) ensureUnique(ctx context.Context, ownerID, name string, typ model.EntryType, excludeID string) error {
	exists, err := c.NameExists(ctx, ownerID, name, typ, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s category %q", model.ErrDuplicateName, typ, name)
	}
	return nil
}

// NameExists reports whether another active category of the owner has the
// same type and the same name, compared case-insensitively after trimming.
// The check is query-then-compare, not an atomic constraint.
func (c *Categories) NameExists(ctx context.Context, ownerID, name string, typ model.EntryType, excludeID string) (bool, error) {
	q := store.Query{}.
		Where("type", store.OpEqual, string(typ)).
		Where("active", store.OpEqual, true)

	categories, err := c.repo.Find(ctx, ownerID, q)
	if err != nil {
		return false, err
	}

	want := model.NormalizeName(name)
	for _, cat := range categories {
		if cat.ID != excludeID && model.NormalizeName(cat.Name) == want {
			c.logger.Debug("category name taken",
				logging.Owner(ownerID), zap.String("category_id", cat.ID))
			return true, nil
		}
	}
	return false, nil
}
