// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// constraintTag is the placeholder substituted with the constraint value
// when a validation message is rendered.
const constraintTag = "{constraint}"

var _ error = (*ValidationError)(nil)

// ValidationError is a single field validation failure. The message is kept
// as a template so that it can be remapped through a translation table at
// reporting time, with the violated constraint substituted afterwards.
type ValidationError struct {
	template   string
	constraint any
}

// Validation returns a validation error for the given message template.
// At most one constraint value is substituted for the constraint tag.
func Validation(template string, constraint ...any) *ValidationError {
	ve := &ValidationError{template: template}
	if len(constraint) > 0 {
		ve.constraint = constraint[0]
	}
	return ve
}

func (ve *ValidationError) Error() string {
	return ve.render(ve.template)
}

// Template returns the raw message template.
func (ve *ValidationError) Template() string {
	return ve.template
}

// Constraint returns the violated constraint value, if any.
func (ve *ValidationError) Constraint() any {
	return ve.constraint
}

// Translate renders the message using the template found in translations,
// falling back to the original template.
func (ve *ValidationError) Translate(translations map[string]string) string {
	if t, ok := translations[ve.template]; ok {
		return ve.render(t)
	}
	return ve.Error()
}

func (ve *ValidationError) render(template string) string {
	if ve.constraint == nil {
		return template
	}
	return strings.ReplaceAll(template, constraintTag, fmt.Sprintf("%v", ve.constraint))
}

var _ error = (*ValidationErrors)(nil)

// ValidationErrors is an ordered error tree mirroring the schema shape.
// Values are either ValidationError leaves or nested ValidationErrors for
// embedded documents and list items.
type ValidationErrors struct {
	keys []string
	errs map[string]error
}

// NewValidationErrors returns an empty validation error tree.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		errs: map[string]error{},
	}
}

// Add records err under the given field path key. Adding under an existing
// key replaces the previous entry.
func (ve *ValidationErrors) Add(key string, err error) {
	if err == nil {
		return
	}
	if _, ok := ve.errs[key]; !ok {
		ve.keys = append(ve.keys, key)
	}
	ve.errs[key] = err
}

// Get returns the error recorded under key, or nil.
func (ve *ValidationErrors) Get(key string) error {
	return ve.errs[key]
}

// Empty indicates whether the tree holds any error.
func (ve *ValidationErrors) Empty() bool {
	return len(ve.errs) == 0
}

// OrNil returns the tree itself or nil if no error was recorded.
func (ve *ValidationErrors) OrNil() error {
	if ve.Empty() {
		return nil
	}
	return ve
}

// Leaves returns the total number of leaf messages in the tree.
func (ve *ValidationErrors) Leaves() int {
	var n int
	for _, err := range ve.errs {
		if nested, ok := err.(*ValidationErrors); ok {
			n += nested.Leaves()
			continue
		}
		n++
	}
	return n
}

// AsMap renders the tree as a plain map of field path to message or to a
// nested map of the same shape.
func (ve *ValidationErrors) AsMap() map[string]any {
	return ve.translate(nil)
}

// Translate renders the tree remapping every leaf message template through
// the given translation table.
func (ve *ValidationErrors) Translate(translations map[string]string) map[string]any {
	return ve.translate(translations)
}

func (ve *ValidationErrors) translate(translations map[string]string) map[string]any {
	out := make(map[string]any, len(ve.errs))
	for _, key := range ve.keys {
		switch err := ve.errs[key].(type) {
		case *ValidationErrors:
			out[key] = err.translate(translations)
		case *ValidationError:
			if translations != nil {
				out[key] = err.Translate(translations)
				continue
			}
			out[key] = err.Error()
		default:
			out[key] = err.Error()
		}
	}
	return out
}

func (ve *ValidationErrors) Error() string {
	b, err := json.Marshal(ve.AsMap())
	if err != nil {
		return ErrValidation.Error()
	}
	return string(b)
}
