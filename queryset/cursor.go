// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package queryset

import (
	"context"

	"github.com/absmach/modm/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Cursor iterates driver results rehydrating each wire document into a model
// instance through the schema, including dispatch for hierarchies.
type Cursor[T any] struct {
	cur    *mongo.Cursor
	decode func(bson.Raw) (T, error)
}

// Next advances the cursor. It returns false when the cursor is exhausted or
// an error occurred; Err tells which.
func (c *Cursor[T]) Next(ctx context.Context) bool {
	return c.cur.Next(ctx)
}

// Document rehydrates the wire document the cursor currently points at.
func (c *Cursor[T]) Document() (T, error) {
	return c.decode(c.cur.Current)
}

// All drains the cursor into a slice of model instances and closes it.
func (c *Cursor[T]) All(ctx context.Context) ([]T, error) {
	defer func() {
		_ = c.cur.Close(ctx)
	}()

	var out []T
	for c.cur.Next(ctx) {
		doc, err := c.decode(c.cur.Current)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := c.cur.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrViewEntity, err)
	}
	return out, nil
}

// Err returns the error the cursor stopped on, if any.
func (c *Cursor[T]) Err() error {
	return c.cur.Err()
}

// Close releases the cursor's server resources.
func (c *Cursor[T]) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}
