package repository

import (
	"fmt"
	"time"

	"money-ledger/pkg/store"

	"github.com/shopspring/decimal"
)

// fieldReader decodes typed values out of a document body, remembering the
// first error so codecs can read every field and check once.
type fieldReader struct {
	fields map[string]interface{}
	err    error
}

func (r *fieldReader) fail(field string, v interface{}, want string) {
	if r.err == nil {
		r.err = fmt.Errorf("field %s: expected %s, got %T", field, want, v)
	}
}

func (r *fieldReader) string(field string) string {
	v, ok := r.fields[field]
	if !ok || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(field, v, "string")
	}
	return s
}

func (r *fieldReader) bool(field string) bool {
	v, ok := r.fields[field]
	if !ok || v == nil {
		return false
	}
	b, ok := v.(bool)
	if !ok {
		r.fail(field, v, "bool")
	}
	return b
}

func (r *fieldReader) decimal(field string) decimal.Decimal {
	d, _ := r.nullDecimal(field)
	return d
}

func (r *fieldReader) nullDecimal(field string) (decimal.Decimal, bool) {
	v, ok := r.fields[field]
	if !ok || v == nil {
		return decimal.Zero, false
	}
	switch tv := v.(type) {
	case string:
		d, err := decimal.NewFromString(tv)
		if err != nil {
			r.fail(field, v, "decimal string")
			return decimal.Zero, false
		}
		return d, true
	case float64:
		return decimal.NewFromFloat(tv), true
	case int64:
		return decimal.NewFromInt(tv), true
	}
	r.fail(field, v, "decimal")
	return decimal.Zero, false
}

func (r *fieldReader) time(field string) time.Time {
	s := r.string(field)
	if s == "" {
		return time.Time{}
	}
	t, err := store.ParseTime(s)
	if err != nil {
		r.fail(field, s, "time")
	}
	return t
}

func (r *fieldReader) strings(field string) []string {
	v, ok := r.fields[field]
	if !ok || v == nil {
		return nil
	}
	switch tv := v.(type) {
	case []string:
		return append([]string(nil), tv...)
	case []interface{}:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			s, ok := item.(string)
			if !ok {
				r.fail(field, item, "string element")
				return nil
			}
			out = append(out, s)
		}
		return out
	}
	r.fail(field, v, "string list")
	return nil
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func nullDecimalValue(d decimal.NullDecimal) interface{} {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}
