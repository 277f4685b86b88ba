// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"reflect"

	"github.com/absmach/modm/pkg/errors"
)

// Validate walks the schema over a model instance and returns nil or a
// ValidationErrors tree with one leaf per invalid field, nested for embedded
// documents and list items. The instance may be of a different struct type
// than the schema's model, in which case fields are resolved by name; this
// allows validating a document against a sibling schema's rules.
func (s *Schema) Validate(doc any) error {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return errors.Wrap(errors.ErrMalformedEntity, errors.New("nil model instance"))
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return errors.Wrap(errors.ErrMalformedEntity, errors.New("model must be a struct"))
	}
	exact := v.Type() == s.model

	verrs := errors.NewValidationErrors()
	for _, f := range s.fields {
		var fv reflect.Value
		if exact {
			fv = v.FieldByIndex(f.index)
		} else {
			fv = v.FieldByName(f.name)
			if !fv.IsValid() {
				if f.required {
					verrs.Add(f.name, errors.Validation(msgRequired))
				}
				continue
			}
		}

		val, present := f.extract(fv)
		if !present {
			if f.required && !f.nullable {
				verrs.Add(f.name, errors.Validation(msgRequired))
			}
			continue
		}
		if err := f.validate(val); err != nil {
			verrs.Add(f.name, err)
		}
	}
	return verrs.OrNil()
}

// ApplyDefaults fills zero-valued required fields from their declared
// defaults, recursing into present embedded documents and list items.
func (s *Schema) ApplyDefaults(doc any) error {
	if reflect.ValueOf(doc).Kind() != reflect.Ptr {
		return errors.Wrap(errors.ErrMalformedEntity, errors.New("defaults require a pointer to the model"))
	}
	v, err := s.modelValue(doc)
	if err != nil {
		return err
	}

	for _, f := range s.fields {
		fv := v.FieldByIndex(f.index)
		if f.required && f.hasDefault && fv.IsZero() {
			if err := f.setValue(fv, f.defaultFn()); err != nil {
				return err
			}
			continue
		}

		switch f.kind {
		case KindEmbedded:
			target := fv
			if fv.Kind() == reflect.Ptr {
				if fv.IsNil() {
					continue
				}
				target = fv.Elem()
			}
			if err := f.Child().ApplyDefaults(target.Addr().Interface()); err != nil {
				return err
			}
		case KindList:
			if f.item == nil || f.item.kind != KindEmbedded || fv.IsNil() {
				continue
			}
			for i := 0; i < fv.Len(); i++ {
				item := fv.Index(i)
				if item.Kind() == reflect.Ptr {
					if item.IsNil() {
						continue
					}
					item = item.Elem()
				}
				if err := f.item.Child().ApplyDefaults(item.Addr().Interface()); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
