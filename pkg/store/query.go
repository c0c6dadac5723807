package store

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Op is a filter comparison operator.
type Op string

const (
	OpEqual        Op = "=="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

// Valid reports whether o is a supported operator.
func (o Op) Valid() bool {
	switch o {
	case OpEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Filter restricts a query to documents whose field compares to Value.
type Filter struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq is shorthand for an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// Query describes a collection scan.
type Query struct {
	Filters []Filter

	// OrderBy is the field to sort by. Empty means by document id.
	OrderBy string

	// Descending reverses the sort order
	Descending bool

	// Limit caps the number of documents returned (0 = unlimited)
	Limit int
}

// Where returns a copy of q with the filter appended.
func (q Query) Where(field string, op Op, value interface{}) Query {
	filters := make([]Filter, len(q.Filters), len(q.Filters)+1)
	copy(filters, q.Filters)
	q.Filters = append(filters, Filter{Field: field, Op: op, Value: NormalizeValue(value)})
	return q
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

// ValidateField checks that a field name is safe to embed in backend queries.
func ValidateField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("%w: invalid field name %q", ErrInvalidQuery, field)
	}
	return nil
}

// Validate checks every filter and the ordering field.
func (q Query) Validate() error {
	for _, f := range q.Filters {
		if err := ValidateField(f.Field); err != nil {
			return err
		}
		if !f.Op.Valid() {
			return fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, f.Op)
		}
		switch NormalizeValue(f.Value).(type) {
		case string, bool, float64:
		default:
			return fmt.Errorf("%w: unsupported value type %T for field %s", ErrInvalidQuery, f.Value, f.Field)
		}
	}
	if q.OrderBy != "" {
		if err := ValidateField(q.OrderBy); err != nil {
			return err
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return nil
}

// NormalizeValue converts filter values to the scalar kinds stored in documents:
// numbers become float64 and times become FormatTime strings.
func NormalizeValue(v interface{}) interface{} {
	switch tv := v.(type) {
	case int:
		return float64(tv)
	case int32:
		return float64(tv)
	case int64:
		return float64(tv)
	case float32:
		return float64(tv)
	case time.Time:
		return FormatTime(tv)
	case string, bool, float64, nil:
		return v
	case fmt.Stringer:
		return tv.String()
	}

	// named string/bool kinds such as enum types
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	}
	return v
}

// Match reports whether the document satisfies every filter.
// Backends that can't push filters down to the server use it to filter in-process.
func Match(doc *Document, filters []Filter) bool {
	for _, f := range filters {
		fieldValue, ok := doc.Fields[f.Field]
		if !ok {
			return false
		}
		cmp, ok := compareValues(NormalizeValue(fieldValue), NormalizeValue(f.Value))
		if !ok {
			return false
		}
		switch f.Op {
		case OpEqual:
			if cmp != 0 {
				return false
			}
		case OpLess:
			if cmp >= 0 {
				return false
			}
		case OpLessEqual:
			if cmp > 0 {
				return false
			}
		case OpGreater:
			if cmp <= 0 {
				return false
			}
		case OpGreaterEqual:
			if cmp < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// compareValues compares two normalized scalars of the same kind.
// Booleans only support equality (false < true is used for ordering).
func compareValues(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		}
		return 1, true
	}
	return 0, false
}

// SortDocuments orders docs by the query's OrderBy field (or id), breaking ties by id.
func SortDocuments(docs []*Document, orderBy string, descending bool) {
	sort.SliceStable(docs, func(i, j int) bool {
		cmp := 0
		if orderBy != "" {
			cmp, _ = compareValues(NormalizeValue(docs[i].Fields[orderBy]), NormalizeValue(docs[j].Fields[orderBy]))
		}
		if cmp == 0 {
			cmp = strings.Compare(docs[i].ID, docs[j].ID)
		}
		if descending {
			return cmp > 0
		}
		return cmp < 0
	})
}

// Apply filters, sorts and limits docs in-process according to q.
func Apply(docs []*Document, q Query) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, doc := range docs {
		if Match(doc, q.Filters) {
			out = append(out, doc)
		}
	}
	SortDocuments(out, q.OrderBy, q.Descending)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}
