// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"reflect"
	"time"

	"github.com/absmach/modm/pkg/errors"
	"github.com/mitchellh/mapstructure"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrFromMap indicates loosely typed data that cannot be mapped onto the model.
var ErrFromMap = errors.New("failed to build model from data")

// FromMap fills a model instance from loosely typed data keyed by attribute
// or synonym name, then applies defaults. String values are converted to
// ObjectID, Decimal128 and time values where the model expects them.
func (s *Schema) FromMap(data map[string]any, doc any) error {
	if reflect.ValueOf(doc).Kind() != reflect.Ptr {
		return errors.Wrap(ErrFromMap, errors.New("target must be a pointer to the model"))
	}

	resolved := make(map[string]any, len(data))
	for key, val := range data {
		if target, ok := s.synonyms[key]; ok {
			key = target
		}
		resolved[key] = val
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           doc,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			stringToObjectIDHook,
			stringToDecimalHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
	})
	if err != nil {
		return errors.Wrap(ErrFromMap, err)
	}
	if err := dec.Decode(resolved); err != nil {
		return errors.Wrap(ErrFromMap, err)
	}

	return s.ApplyDefaults(doc)
}

func stringToObjectIDHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(primitive.ObjectID{}) {
		return data, nil
	}
	// Named string types share the string kind but not the string type.
	return primitive.ObjectIDFromHex(reflect.ValueOf(data).String())
}

func stringToDecimalHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to != reflect.TypeOf(primitive.Decimal128{}) {
		return data, nil
	}
	return primitive.ParseDecimal128(reflect.ValueOf(data).String())
}
