// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Option configures a field descriptor.
type Option func(*Field)

// Wire sets the name used for the field inside the stored document. When not
// given, the wire name is the snake case of the attribute name.
func Wire(name string) Option {
	return func(f *Field) {
		f.wire = name
	}
}

// Optional marks the field as not required. Absent optional fields are
// omitted from the wire document and their defaults are never applied.
func Optional() Option {
	return func(f *Field) {
		f.required = false
	}
}

// Nullable allows a required pointer-bound field to hold an explicit null.
func Nullable() Option {
	return func(f *Field) {
		f.nullable = true
	}
}

// Default sets a constant default value for a required field.
func Default(v any) Option {
	return func(f *Field) {
		f.hasDefault = true
		f.defaultFn = func() any { return v }
	}
}

// DefaultFunc sets a default value provider for a required field.
func DefaultFunc(fn func() any) Option {
	return func(f *Field) {
		f.hasDefault = true
		f.defaultFn = fn
	}
}

// Choices restricts field values to the given set. When choices are set all
// other constraints are ignored.
func Choices(vals ...any) Option {
	return func(f *Field) {
		f.choices = vals
	}
}

// Verbose sets the verbose field name used for meta information.
func Verbose(name string) Option {
	return func(f *Field) {
		f.verbose = name
	}
}

// Pattern constrains string values to the given regular expression. The
// expression must compile; Schema assembly reports the failure otherwise.
func Pattern(expr string) Option {
	return func(f *Field) {
		re, err := regexp.Compile(expr)
		if err != nil {
			f.pattern = nil
			f.patternErr = err
			return
		}
		f.pattern = re
	}
}

// AllowBlank permits empty string values.
func AllowBlank() Option {
	return func(f *Field) {
		f.allowBlank = true
	}
}

// MinLen sets the minimum length of a string or list field.
func MinLen(n int) Option {
	return func(f *Field) {
		f.minLen = &n
	}
}

// MaxLen sets the maximum length of a string or list field.
func MaxLen(n int) Option {
	return func(f *Field) {
		f.maxLen = &n
	}
}

// GT sets an exclusive lower bound on a numeric field.
func GT(v float64) Option {
	return func(f *Field) {
		f.gt = &v
	}
}

// GTE sets an inclusive lower bound on a numeric field.
func GTE(v float64) Option {
	return func(f *Field) {
		f.gte = &v
	}
}

// LT sets an exclusive upper bound on a numeric field.
func LT(v float64) Option {
	return func(f *Field) {
		f.lt = &v
	}
}

// LTE sets an inclusive upper bound on a numeric field.
func LTE(v float64) Option {
	return func(f *Field) {
		f.lte = &v
	}
}

// SchemaOption configures schema assembly.
type SchemaOption func(*Schema)

// Fields declares the schema fields in order.
func Fields(fields ...*Field) SchemaOption {
	return func(s *Schema) {
		s.declared = append(s.declared, fields...)
	}
}

// Collection sets the collection name. When not given, the snake case of the
// model struct name is used.
func Collection(name string) SchemaOption {
	return func(s *Schema) {
		s.collection = name
	}
}

// DefaultQuery sets a filter merged into every query issued for the schema.
func DefaultQuery(q bson.D) SchemaOption {
	return func(s *Schema) {
		s.defaultQuery = q
	}
}

// DefaultSort sets the sort applied when a caller does not give one.
func DefaultSort(sort bson.D) SchemaOption {
	return func(s *Schema) {
		s.defaultSort = sort
	}
}

// Indexes declares the collection indexes for CreateIndexes.
func Indexes(indexes ...mongo.IndexModel) SchemaOption {
	return func(s *Schema) {
		s.indexes = append(s.indexes, indexes...)
	}
}

// Dispatch installs a hook that selects the leaf schema for a raw document
// by inspecting a discriminating field, so that one collection can store a
// class hierarchy. Returning nil keeps the schema the hook is set on.
func Dispatch(fn DispatchFunc) SchemaOption {
	return func(s *Schema) {
		s.dispatch = fn
	}
}
