package repository

import (
	"money-ledger/pkg/model"
	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

// Amounts are stored as decimal strings and dates as store.FormatTime strings.

var accountCodec = codec[model.Account]{
	entity: "account",
	encode: func(a *model.Account) *store.Document {
		doc := store.NewDocument(a.ID, map[string]interface{}{
			"ownerId":        a.OwnerID,
			"name":           a.Name,
			"type":           string(a.Type),
			"currency":       a.Currency,
			"initialBalance": a.InitialBalance.String(),
			"currentBalance": a.CurrentBalance.String(),
			"active":         a.Active,
		})
		doc.Version = a.Version
		return doc
	},
	decode: func(doc *store.Document) (*model.Account, error) {
		r := &fieldReader{fields: doc.Fields}
		a := &model.Account{
			ID:             doc.ID,
			OwnerID:        r.string("ownerId"),
			Name:           r.string("name"),
			Type:           model.AccountType(r.string("type")),
			Currency:       r.string("currency"),
			InitialBalance: r.decimal("initialBalance"),
			CurrentBalance: r.decimal("currentBalance"),
			Active:         r.bool("active"),
			CreatedAt:      doc.CreatedAt,
			UpdatedAt:      doc.UpdatedAt,
			Version:        doc.Version,
		}
		return a, r.err
	},
	stamp: func(a *model.Account, doc *store.Document) {
		a.ID, a.Version, a.CreatedAt, a.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	},
	owner: func(a *model.Account) string { return a.OwnerID },
}

var transactionCodec = codec[model.Transaction]{
	entity: "transaction",
	encode: func(t *model.Transaction) *store.Document {
		doc := store.NewDocument(t.ID, map[string]interface{}{
			"ownerId":    t.OwnerID,
			"accountId":  t.AccountID,
			"categoryId": t.CategoryID,
			"type":       string(t.Type),
			"amount":     t.Amount.String(),
			"currency":   t.Currency,
			"date":       store.FormatTime(t.Date),
			"notes":      t.Notes,
			"attachment": t.Attachment,
			"tags":       stringList(t.Tags),
			"pending":    t.Pending,
			"deleting":   t.Deleting,
		})
		doc.Version = t.Version
		return doc
	},
	decode: func(doc *store.Document) (*model.Transaction, error) {
		r := &fieldReader{fields: doc.Fields}
		t := &model.Transaction{
			ID:         doc.ID,
			OwnerID:    r.string("ownerId"),
			AccountID:  r.string("accountId"),
			CategoryID: r.string("categoryId"),
			Type:       model.EntryType(r.string("type")),
			Amount:     r.decimal("amount"),
			Currency:   r.string("currency"),
			Date:       r.time("date"),
			Notes:      r.string("notes"),
			Attachment: r.string("attachment"),
			Tags:       r.strings("tags"),
			Pending:    r.bool("pending"),
			Deleting:   r.bool("deleting"),
			CreatedAt:  doc.CreatedAt,
			UpdatedAt:  doc.UpdatedAt,
			Version:    doc.Version,
		}
		return t, r.err
	},
	stamp: func(t *model.Transaction, doc *store.Document) {
		t.ID, t.Version, t.CreatedAt, t.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	},
	owner: func(t *model.Transaction) string { return t.OwnerID },
}

var transferCodec = codec[model.Transfer]{
	entity: "transfer",
	encode: func(t *model.Transfer) *store.Document {
		doc := store.NewDocument(t.ID, map[string]interface{}{
			"ownerId":         t.OwnerID,
			"fromAccountId":   t.FromAccountID,
			"toAccountId":     t.ToAccountID,
			"amount":          t.Amount.String(),
			"currency":        t.Currency,
			"date":            store.FormatTime(t.Date),
			"exchangeRate":    nullDecimalValue(t.ExchangeRate),
			"convertedAmount": t.ConvertedAmount.String(),
			"notes":           t.Notes,
			"pending":         t.Pending,
			"deleting":        t.Deleting,
		})
		doc.Version = t.Version
		return doc
	},
	decode: func(doc *store.Document) (*model.Transfer, error) {
		r := &fieldReader{fields: doc.Fields}
		rate, hasRate := r.nullDecimal("exchangeRate")
		t := &model.Transfer{
			ID:              doc.ID,
			OwnerID:         r.string("ownerId"),
			FromAccountID:   r.string("fromAccountId"),
			ToAccountID:     r.string("toAccountId"),
			Amount:          r.decimal("amount"),
			Currency:        r.string("currency"),
			Date:            r.time("date"),
			ExchangeRate:    decimal.NullDecimal{Decimal: rate, Valid: hasRate},
			ConvertedAmount: r.decimal("convertedAmount"),
			Notes:           r.string("notes"),
			Pending:         r.bool("pending"),
			Deleting:        r.bool("deleting"),
			CreatedAt:       doc.CreatedAt,
			UpdatedAt:       doc.UpdatedAt,
			Version:         doc.Version,
		}
		return t, r.err
	},
	stamp: func(t *model.Transfer, doc *store.Document) {
		t.ID, t.Version, t.CreatedAt, t.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	},
	owner: func(t *model.Transfer) string { return t.OwnerID },
}

var categoryCodec = codec[model.Category]{
	entity: "category",
	encode: func(c *model.Category) *store.Document {
		doc := store.NewDocument(c.ID, map[string]interface{}{
			"ownerId": c.OwnerID,
			"name":    c.Name,
			"type":    string(c.Type),
			"color":   c.Color,
			"icon":    c.Icon,
			"active":  c.Active,
		})
		doc.Version = c.Version
		return doc
	},
	decode: func(doc *store.Document) (*model.Category, error) {
		r := &fieldReader{fields: doc.Fields}
		c := &model.Category{
			ID:        doc.ID,
			OwnerID:   r.string("ownerId"),
			Name:      r.string("name"),
			Type:      model.EntryType(r.string("type")),
			Color:     r.string("color"),
			Icon:      r.string("icon"),
			Active:    r.bool("active"),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
			Version:   doc.Version,
		}
		return c, r.err
	},
	stamp: func(c *model.Category, doc *store.Document) {
		c.ID, c.Version, c.CreatedAt, c.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	},
	owner: func(c *model.Category) string { return c.OwnerID },
}

var tagCodec = codec[model.Tag]{
	entity: "tag",
	encode: func(t *model.Tag) *store.Document {
		doc := store.NewDocument(t.ID, map[string]interface{}{
			"ownerId": t.OwnerID,
			"name":    t.Name,
			"color":   t.Color,
		})
		doc.Version = t.Version
		return doc
	},
	decode: func(doc *store.Document) (*model.Tag, error) {
		r := &fieldReader{fields: doc.Fields}
		t := &model.Tag{
			ID:        doc.ID,
			OwnerID:   r.string("ownerId"),
			Name:      r.string("name"),
			Color:     r.string("color"),
			CreatedAt: doc.CreatedAt,
			UpdatedAt: doc.UpdatedAt,
			Version:   doc.Version,
		}
		return t, r.err
	},
	stamp: func(t *model.Tag, doc *store.Document) {
		t.ID, t.Version, t.CreatedAt, t.UpdatedAt = doc.ID, doc.Version, doc.CreatedAt, doc.UpdatedAt
	},
	owner: func(t *model.Tag) string { return t.OwnerID },
}
