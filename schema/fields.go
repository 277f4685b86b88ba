// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"math/big"
	"reflect"
	"regexp"
	"strconv"
	"time"

	"github.com/absmach/modm/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind enumerates the supported field descriptor kinds.
type Kind int

const (
	KindAny Kind = iota
	KindString
	KindBool
	KindInt
	KindFloat
	KindDecimal
	KindDateTime
	KindObjectID
	KindList
	KindEmbedded
	KindRef
	kindSynonym
)

// Validation message templates. The constraint tag is substituted with the
// violated constraint when the message is rendered.
const (
	msgRequired     = "field is required"
	msgBlank        = "blank value is not allowed"
	msgChoices      = "value does not match any variant"
	msgPattern      = "value does not match pattern {constraint}"
	msgEmail        = "value is not a valid email address"
	msgMinLength    = "length is less than {constraint}"
	msgMaxLength    = "length is greater than {constraint}"
	msgListMin      = "list length is less than {constraint}"
	msgListMax      = "list length is greater than {constraint}"
	msgGTE          = "value is less than {constraint}"
	msgLTE          = "value is greater than {constraint}"
	msgGT           = "value should be greater than {constraint}"
	msgLT           = "value should be less than {constraint}"
	msgInvalidType  = "invalid value type"
	msgNotValidList = "value is not a list"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// Field is a declarative descriptor of a single model attribute: its kind,
// wire name, constraints, default provider and conversion rules. Fields are
// assembled into a Schema which binds them to the model struct.
type Field struct {
	name     string
	wire     string
	required bool
	nullable bool
	verbose  string

	hasDefault bool
	defaultFn  func() any

	choices []any

	pattern    *regexp.Regexp
	patternErr error
	patternMsg string
	allowBlank bool
	minLen     *int
	maxLen     *int
	gt, gte    *float64
	lt, lte    *float64

	kind    Kind
	item    *Field
	childFn func() *Schema
	synonym string

	// set when the field is bound to a model struct.
	index []int
	typ   reflect.Type
}

func build(kind Kind, name string, opts []Option) *Field {
	f := &Field{
		name:     name,
		required: true,
		kind:     kind,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.wire == "" {
		f.wire = snakeCase(name)
	}
	return f
}

// Any returns a descriptor for a field that stores any BSON-encodable value.
func Any(name string, opts ...Option) *Field {
	return build(KindAny, name, opts)
}

// String returns a string field descriptor.
func String(name string, opts ...Option) *Field {
	return build(KindString, name, opts)
}

// Email returns a string field descriptor constrained to email addresses.
func Email(name string, opts ...Option) *Field {
	f := build(KindString, name, opts)
	if f.pattern == nil {
		f.pattern = emailPattern
		f.patternMsg = msgEmail
	}
	return f
}

// Bool returns a boolean field descriptor.
func Bool(name string, opts ...Option) *Field {
	return build(KindBool, name, opts)
}

// Int returns an integer field descriptor.
func Int(name string, opts ...Option) *Field {
	return build(KindInt, name, opts)
}

// Float returns a float field descriptor.
func Float(name string, opts ...Option) *Field {
	return build(KindFloat, name, opts)
}

// Decimal returns a Decimal128 field descriptor.
func Decimal(name string, opts ...Option) *Field {
	return build(KindDecimal, name, opts)
}

// DateTime returns a time field descriptor.
func DateTime(name string, opts ...Option) *Field {
	return build(KindDateTime, name, opts)
}

// ObjectID returns an ObjectID field descriptor.
func ObjectID(name string, opts ...Option) *Field {
	return build(KindObjectID, name, opts)
}

// List returns a list field descriptor with the given item descriptor.
// The item descriptor's own name and wire name are ignored.
func List(name string, item *Field, opts ...Option) *Field {
	f := build(KindList, name, opts)
	f.item = item
	return f
}

// Embedded returns an embedded document field descriptor. Values are stored
// as nested wire documents shaped by the child schema.
func Embedded(name string, child *Schema, opts ...Option) *Field {
	f := build(KindEmbedded, name, opts)
	f.childFn = func() *Schema { return child }
	return f
}

// Ref returns a reference field descriptor. The stored value is the identity
// of a document from the target schema's collection.
func Ref(name string, target *Schema, opts ...Option) *Field {
	return RefFunc(name, func() *Schema { return target }, opts...)
}

// RefFunc is Ref with lazy target resolution, for mutually referencing
// schemas that cannot be declared in one initialization order.
func RefFunc(name string, target func() *Schema, opts ...Option) *Field {
	f := build(KindRef, name, opts)
	f.childFn = target
	return f
}

// Synonym declares an alias attribute for an existing field. It adds no wire
// attribute of its own: the alias resolves to the target field's storage.
func Synonym(name, target string) *Field {
	return &Field{
		name:    name,
		kind:    kindSynonym,
		synonym: target,
	}
}

// Name returns the model attribute name of the field.
func (f *Field) Name() string {
	return f.name
}

// Wire returns the name of the field inside the stored document.
func (f *Field) Wire() string {
	return f.wire
}

// Required indicates whether the field must carry a value.
func (f *Field) Required() bool {
	return f.required
}

// Kind returns the field kind.
func (f *Field) Kind() Kind {
	return f.kind
}

// Verbose returns the verbose field name used for meta information.
func (f *Field) Verbose() string {
	if f.verbose == "" {
		return f.name
	}
	return f.verbose
}

// Default returns the field default value and whether one is declared.
func (f *Field) Default() (any, bool) {
	if !f.hasDefault {
		return nil, false
	}
	return f.defaultFn(), true
}

// Item returns the item descriptor of a list field.
func (f *Field) Item() *Field {
	return f.item
}

// Child returns the child schema of an embedded or reference field.
func (f *Field) Child() *Schema {
	if f.childFn == nil {
		return nil
	}
	return f.childFn()
}

func (f *Field) clone() *Field {
	c := *f
	c.index = nil
	c.typ = nil
	return &c
}

// validate runs the constraint chain over a present native value. It returns
// a ValidationError leaf, or a ValidationErrors tree for composite fields.
func (f *Field) validate(value any) error {
	if len(f.choices) > 0 {
		if err := f.checkType(value); err != nil {
			return err
		}
		for _, c := range f.choices {
			if c == value {
				return nil
			}
		}
		return errors.Validation(msgChoices)
	}

	switch f.kind {
	case KindString:
		return f.validateString(value)
	case KindInt, KindFloat, KindDecimal:
		return f.validateNumber(value)
	case KindList:
		return f.validateList(value)
	case KindEmbedded:
		return f.Child().Validate(value)
	case KindRef:
		target := f.Child()
		if target != nil && target.identity != nil {
			return target.identity.validate(value)
		}
	}
	return nil
}

// checkType rejects values the field kind cannot hold before any
// constraint runs. It only matters for choices fields; the per-kind
// validators carry their own type checks.
func (f *Field) checkType(value any) error {
	switch f.kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return errors.Validation(msgInvalidType)
		}
	case KindInt, KindFloat, KindDecimal:
		if _, ok := toFloat(value); !ok {
			return errors.Validation(msgInvalidType)
		}
	}
	return nil
}

func (f *Field) validateString(value any) error {
	s, ok := value.(string)
	if !ok {
		return errors.Validation(msgInvalidType)
	}
	if f.pattern != nil && !f.pattern.MatchString(s) {
		if f.patternMsg != "" {
			return errors.Validation(f.patternMsg)
		}
		return errors.Validation(msgPattern, f.pattern.String())
	}
	if s == "" {
		if f.allowBlank {
			return nil
		}
		return errors.Validation(msgBlank)
	}
	if f.minLen != nil && len(s) < *f.minLen {
		return errors.Validation(msgMinLength, *f.minLen)
	}
	if f.maxLen != nil && len(s) > *f.maxLen {
		return errors.Validation(msgMaxLength, *f.maxLen)
	}
	return nil
}

func (f *Field) validateNumber(value any) error {
	n, ok := toFloat(value)
	if !ok {
		return errors.Validation(msgInvalidType)
	}
	if f.gte != nil && n < *f.gte {
		return errors.Validation(msgGTE, *f.gte)
	}
	if f.lte != nil && n > *f.lte {
		return errors.Validation(msgLTE, *f.lte)
	}
	if f.gt != nil && n <= *f.gt {
		return errors.Validation(msgGT, *f.gt)
	}
	if f.lt != nil && n >= *f.lt {
		return errors.Validation(msgLT, *f.lt)
	}
	return nil
}

func (f *Field) validateList(value any) error {
	v := reflect.ValueOf(value)
	if !v.IsValid() || v.Kind() != reflect.Slice {
		return errors.Validation(msgNotValidList)
	}
	if f.minLen != nil && v.Len() < *f.minLen {
		return errors.Validation(msgListMin, *f.minLen)
	}
	if f.maxLen != nil && v.Len() > *f.maxLen {
		return errors.Validation(msgListMax, *f.maxLen)
	}

	verrs := errors.NewValidationErrors()
	for i := 0; i < v.Len(); i++ {
		item, present := nativeValue(v.Index(i))
		if !present {
			verrs.Add(strconv.Itoa(i), errors.Validation(msgRequired))
			continue
		}
		if err := f.item.validate(item); err != nil {
			verrs.Add(strconv.Itoa(i), err)
		}
	}
	return verrs.OrNil()
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case primitive.Decimal128:
		bf, ok := new(big.Float).SetString(v.String())
		if !ok {
			return 0, false
		}
		n, _ := bf.Float64()
		return n, true
	default:
		return 0, false
	}
}

// compatible reports whether the bound struct field type can hold values of
// the descriptor kind. Pointer types are dereferenced by the caller.
func (f *Field) compatible(t reflect.Type) bool {
	switch f.kind {
	case KindAny:
		return true
	case KindString:
		return t.Kind() == reflect.String
	case KindBool:
		return t.Kind() == reflect.Bool
	case KindInt:
		switch t.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
		return false
	case KindFloat:
		return t.Kind() == reflect.Float32 || t.Kind() == reflect.Float64
	case KindDecimal:
		return t == reflect.TypeOf(primitive.Decimal128{})
	case KindDateTime:
		return t == reflect.TypeOf(time.Time{})
	case KindObjectID:
		return t == reflect.TypeOf(primitive.ObjectID{})
	case KindList:
		return t.Kind() == reflect.Slice
	case KindEmbedded:
		return t.Kind() == reflect.Struct
	case KindRef:
		// The target identity type may not be resolvable yet for lazily
		// referenced schemas, so reference bindings are not narrowed here.
		return true
	default:
		return false
	}
}
