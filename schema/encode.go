// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"reflect"

	"github.com/absmach/modm/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrDecode indicates a wire document that cannot be mapped onto the model.
var ErrDecode = errors.New("failed to decode wire document")

// Encode converts a model instance to its ordered wire document. Absent
// optional fields are omitted; nullable fields holding nil are stored as
// explicit nulls.
func (s *Schema) Encode(doc any) (bson.D, error) {
	v, err := s.modelValue(doc)
	if err != nil {
		return nil, err
	}

	out := bson.D{}
	for _, f := range s.fields {
		fv := v.FieldByIndex(f.index)
		val, present := f.extract(fv)
		if !present {
			if f.nullable && f.isNil(fv) {
				out = append(out, bson.E{Key: f.wire, Value: nil})
			}
			continue
		}
		wv, err := f.encode(val)
		if err != nil {
			return nil, err
		}
		out = append(out, bson.E{Key: f.wire, Value: wv})
	}
	return out, nil
}

// Decode fills a model instance from a raw wire document, applying defaults
// for required fields missing from the document. The doc argument must be a
// pointer to the schema's model struct.
func (s *Schema) Decode(raw bson.Raw, doc any) error {
	v := reflect.ValueOf(doc)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Type() != s.model {
		return errors.Wrap(ErrDecode,
			errors.New(fmt.Sprintf("decode target must be a *%s", s.model.Name())))
	}
	ev := v.Elem()

	for _, f := range s.fields {
		fv := ev.FieldByIndex(f.index)
		rv, err := raw.LookupErr(f.wire)
		if err != nil {
			if f.required && f.hasDefault {
				if err := f.setValue(fv, f.defaultFn()); err != nil {
					return err
				}
			}
			continue
		}
		if err := f.decode(rv, fv); err != nil {
			return errors.Wrap(ErrDecode, err)
		}
	}
	return nil
}

// DecodeNew reconstructs a fresh model instance from a raw wire document.
// When a dispatch hook is installed it selects the leaf schema, and with it
// the concrete model type, before reconstruction.
func (s *Schema) DecodeNew(raw bson.Raw) (any, error) {
	target := s
	if s.dispatch != nil {
		if leaf := s.dispatch(raw); leaf != nil {
			target = leaf
		}
	}
	inst := reflect.New(target.model)
	if err := target.Decode(raw, inst.Interface()); err != nil {
		return nil, err
	}
	return inst.Interface(), nil
}

// extract returns the native value held by the bound struct field and
// whether the field is present. Nil pointers and nil slices are absent, as
// are zero values of optional non-pointer fields.
func (f *Field) extract(v reflect.Value) (any, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, false
		}
		return v.Elem().Interface(), true
	case reflect.Slice, reflect.Map:
		if v.IsNil() {
			return nil, false
		}
		return v.Interface(), true
	default:
		if !f.required && v.IsZero() {
			return nil, false
		}
		return v.Interface(), true
	}
}

func (f *Field) isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return v.IsNil()
	default:
		return false
	}
}

func (f *Field) encode(val any) (any, error) {
	switch f.kind {
	case KindEmbedded:
		return f.Child().Encode(val)
	case KindList:
		v := reflect.ValueOf(val)
		if v.Kind() != reflect.Slice {
			return nil, errors.Wrap(errors.ErrMalformedEntity,
				errors.New(fmt.Sprintf("%s is not a slice", f.name)))
		}
		out := make(bson.A, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, present := nativeValue(v.Index(i))
			if !present {
				out = append(out, nil)
				continue
			}
			wv, err := f.item.encode(item)
			if err != nil {
				return nil, err
			}
			out = append(out, wv)
		}
		return out, nil
	default:
		return val, nil
	}
}

func (f *Field) decode(rv bson.RawValue, fv reflect.Value) error {
	if rv.Type == bson.TypeNull {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	switch f.kind {
	case KindEmbedded:
		doc, ok := rv.DocumentOK()
		if !ok {
			return errors.New(fmt.Sprintf("%s: expected a document, got %s", f.name, rv.Type))
		}
		target := fv
		if fv.Kind() == reflect.Ptr {
			fv.Set(reflect.New(fv.Type().Elem()))
			target = fv.Elem()
		}
		return f.Child().Decode(doc, target.Addr().Interface())
	case KindList:
		arr, ok := rv.ArrayOK()
		if !ok {
			return errors.New(fmt.Sprintf("%s: expected an array, got %s", f.name, rv.Type))
		}
		values, err := arr.Values()
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(fv.Type(), len(values), len(values))
		for i, item := range values {
			if err := f.item.decode(item, slice.Index(i)); err != nil {
				return err
			}
		}
		fv.Set(slice)
		return nil
	default:
		target := fv
		if fv.Kind() == reflect.Ptr {
			fv.Set(reflect.New(fv.Type().Elem()))
			target = fv.Elem()
		}
		return rv.Unmarshal(target.Addr().Interface())
	}
}

// setValue assigns a default or loosely typed value to a bound struct field,
// converting when the types differ but are convertible.
func (f *Field) setValue(fv reflect.Value, val any) error {
	if val == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	target := fv
	if fv.Kind() == reflect.Ptr {
		fv.Set(reflect.New(fv.Type().Elem()))
		target = fv.Elem()
	}
	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(target.Type()):
		target.Set(rv)
	case rv.Type().ConvertibleTo(target.Type()):
		target.Set(rv.Convert(target.Type()))
	default:
		return errors.Wrap(errors.ErrMalformedEntity,
			errors.New(fmt.Sprintf("%s: cannot assign %T", f.name, val)))
	}
	return nil
}

func nativeValue(v reflect.Value) (any, bool) {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return nil, false
		}
		return v.Elem().Interface(), true
	default:
		return v.Interface(), true
	}
}

func (s *Schema) modelValue(doc any) (reflect.Value, error) {
	v := reflect.ValueOf(doc)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return v, errors.Wrap(errors.ErrMalformedEntity, errors.New("nil model instance"))
		}
		v = v.Elem()
	}
	if !v.IsValid() || v.Type() != s.model {
		return v, errors.Wrap(errors.ErrMalformedEntity,
			errors.New(fmt.Sprintf("expected a %s instance, got %T", s.model.Name(), doc)))
	}
	return v, nil
}
