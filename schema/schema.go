// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package schema implements declarative model schemas for MongoDB documents:
// ordered field descriptors bound to plain model structs, validation with a
// structured error tree, and two-way conversion between native values and
// wire documents.
package schema

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/absmach/modm/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const idWire = "_id"

var (
	// ErrNoIdentity indicates a schema without a usable identity field.
	ErrNoIdentity = errors.New("schema has no identity field")

	// ErrDuplicateWire indicates two fields sharing one wire name.
	ErrDuplicateWire = errors.New("duplicate wire name in schema")

	// ErrUnknownSynonym indicates a synonym referencing a missing field.
	ErrUnknownSynonym = errors.New("synonym references unknown field")

	// ErrFieldBinding indicates a field that cannot be bound to the model.
	ErrFieldBinding = errors.New("failed to bind field to model struct")

	// ErrUnknownField indicates a lookup of a field the schema does not hold.
	ErrUnknownField = errors.New("unknown schema field")
)

// DispatchFunc selects the leaf schema for a raw wire document.
type DispatchFunc func(raw bson.Raw) *Schema

// Schema is the ordered field set of a model struct together with its
// collection-level configuration. A schema is assembled once and never
// mutated afterwards.
type Schema struct {
	collection   string
	model        reflect.Type
	declared     []*Field
	fields       []*Field
	byName       map[string]*Field
	synonyms     map[string]string
	defaultQuery bson.D
	defaultSort  bson.D
	indexes      []mongo.IndexModel
	dispatch     DispatchFunc
	identity     *Field
}

// New assembles a schema for the given model struct. Fields are declared in
// order with the Fields option; a declaration with an attribute name already
// present replaces the earlier one. A model without a declared "_id" wire
// field gets a default ObjectID identity bound to its ID attribute.
func New(model any, opts ...SchemaOption) (*Schema, error) {
	return assemble(nil, model, opts)
}

// Must is like New but panics on assembly errors. It is meant for
// package-level schema declarations where a broken schema is a programming
// error.
func Must(model any, opts ...SchemaOption) *Schema {
	s, err := New(model, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

// Extend assembles a schema that inherits the base schema's fields, synonyms
// and collection configuration. Redeclared attribute names replace the base
// entries in place, keeping their position in the field order.
func Extend(base *Schema, model any, opts ...SchemaOption) (*Schema, error) {
	return assemble(base, model, opts)
}

// MustExtend is like Extend but panics on assembly errors.
func MustExtend(base *Schema, model any, opts ...SchemaOption) *Schema {
	s, err := Extend(base, model, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func assemble(base *Schema, model any, opts []SchemaOption) (*Schema, error) {
	t := reflect.TypeOf(model)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return nil, errors.Wrap(errors.ErrMalformedEntity, errors.New("model must be a struct"))
	}

	s := &Schema{
		model:    t,
		byName:   map[string]*Field{},
		synonyms: map[string]string{},
	}
	if base != nil {
		s.collection = base.collection
		s.defaultQuery = base.defaultQuery
		s.defaultSort = base.defaultSort
		s.indexes = append(s.indexes, base.indexes...)
		s.dispatch = base.dispatch
		for _, f := range base.fields {
			s.declared = append(s.declared, f.clone())
		}
		for name, target := range base.synonyms {
			s.synonyms[name] = target
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.collection == "" {
		s.collection = snakeCase(t.Name())
	}

	for _, f := range s.declared {
		if f.kind == kindSynonym {
			s.synonyms[f.name] = f.synonym
			continue
		}
		if prev, ok := s.byName[f.name]; ok {
			for i, existing := range s.fields {
				if existing == prev {
					s.fields[i] = f
					break
				}
			}
			s.byName[f.name] = f
			continue
		}
		s.fields = append(s.fields, f)
		s.byName[f.name] = f
	}

	if err := s.ensureIdentity(); err != nil {
		return nil, err
	}

	wires := map[string]string{}
	for _, f := range s.fields {
		if owner, ok := wires[f.wire]; ok {
			return nil, errors.Wrap(ErrDuplicateWire,
				errors.New(fmt.Sprintf("%q is used by both %s and %s", f.wire, owner, f.name)))
		}
		wires[f.wire] = f.name
		if f.patternErr != nil {
			return nil, errors.Wrap(errors.ErrMalformedEntity, f.patternErr)
		}
		if err := s.bind(f); err != nil {
			return nil, err
		}
	}

	for name, target := range s.synonyms {
		if _, ok := s.byName[target]; !ok {
			return nil, errors.Wrap(ErrUnknownSynonym,
				errors.New(fmt.Sprintf("%s -> %s", name, target)))
		}
	}

	return s, nil
}

func (s *Schema) ensureIdentity() error {
	for _, f := range s.fields {
		if f.wire == idWire {
			if !f.required {
				return errors.Wrap(ErrNoIdentity, errors.New("identity field must be required"))
			}
			s.identity = f
			return nil
		}
	}

	// No declared identity: bind a default ObjectID identity to the model's
	// ID attribute when one exists.
	if sf, ok := s.model.FieldByName("ID"); ok && sf.Type == reflect.TypeOf(primitive.ObjectID{}) {
		id := ObjectID("ID", Wire(idWire), DefaultFunc(func() any { return primitive.NewObjectID() }))
		s.fields = append([]*Field{id}, s.fields...)
		s.byName["ID"] = id
		s.identity = id
		return nil
	}

	return errors.Wrap(ErrNoIdentity, errors.New(s.model.Name()))
}

func (s *Schema) bind(f *Field) error {
	sf, ok := s.model.FieldByName(f.name)
	if !ok {
		return errors.Wrap(ErrFieldBinding,
			errors.New(fmt.Sprintf("%s has no field %s", s.model.Name(), f.name)))
	}
	t := sf.Type
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if !f.compatible(t) {
		return errors.Wrap(ErrFieldBinding,
			errors.New(fmt.Sprintf("%s.%s cannot hold a %v value", s.model.Name(), f.name, f.kind)))
	}
	if f.kind == KindList && f.item != nil {
		it := t.Elem()
		if it.Kind() == reflect.Ptr {
			it = it.Elem()
		}
		if !f.item.compatible(it) {
			return errors.Wrap(ErrFieldBinding,
				errors.New(fmt.Sprintf("%s.%s items cannot hold a %v value", s.model.Name(), f.name, f.item.kind)))
		}
	}
	f.index = sf.Index
	f.typ = sf.Type
	return nil
}

// CollectionName returns the name of the backing collection.
func (s *Schema) CollectionName() string {
	return s.collection
}

// Collection returns the backing driver collection.
func (s *Schema) Collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(s.collection)
}

// Model returns the bound model struct type.
func (s *Schema) Model() reflect.Type {
	return s.model
}

// NewInstance returns a fresh pointer to a zero value of the model struct.
func (s *Schema) NewInstance() any {
	return reflect.New(s.model).Interface()
}

// Fields returns the ordered schema fields.
func (s *Schema) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Identity returns the identity field of the schema.
func (s *Schema) Identity() *Field {
	return s.identity
}

// Indexes returns the declared index models.
func (s *Schema) Indexes() []mongo.IndexModel {
	out := make([]mongo.IndexModel, len(s.indexes))
	copy(out, s.indexes)
	return out
}

// DefaultQuery returns the filter merged into every query.
func (s *Schema) DefaultQuery() bson.D {
	return s.defaultQuery
}

// DefaultSort returns the sort applied when the caller gives none.
func (s *Schema) DefaultSort() bson.D {
	return s.defaultSort
}

// Field returns the descriptor for the given attribute or synonym name.
func (s *Schema) Field(name string) (*Field, bool) {
	if target, ok := s.synonyms[name]; ok {
		name = target
	}
	f, ok := s.byName[name]
	return f, ok
}

// Wire returns the wire name of the given attribute or synonym name. It
// panics on unknown names: filters built from mistyped attribute names would
// otherwise silently match nothing.
func (s *Schema) Wire(name string) string {
	f, ok := s.Field(name)
	if !ok {
		panic(errors.Wrap(ErrUnknownField, errors.New(name)))
	}
	return f.wire
}

// Path returns the dotted wire path through embedded and list fields, e.g.
// Path("Comments", "Author") for a list of embedded comments.
func (s *Schema) Path(names ...string) string {
	parts := make([]string, 0, len(names))
	cur := s
	for _, name := range names {
		if cur == nil {
			panic(errors.Wrap(ErrUnknownField, errors.New(name)))
		}
		f, ok := cur.Field(name)
		if !ok {
			panic(errors.Wrap(ErrUnknownField, errors.New(name)))
		}
		parts = append(parts, f.wire)
		cur = f.pathChild()
	}
	return strings.Join(parts, ".")
}

func (f *Field) pathChild() *Schema {
	switch f.kind {
	case KindEmbedded, KindRef:
		return f.Child()
	case KindList:
		if f.item != nil {
			return f.item.pathChild()
		}
	}
	return nil
}

// snakeCase converts a camel case type or attribute name to its default
// wire form, keeping acronym runs together: UserProfile -> user_profile,
// HTTPServer -> http_server, ID -> id.
func snakeCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
