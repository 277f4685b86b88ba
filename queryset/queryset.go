// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package queryset provides the query facade binding a model schema to a
// MongoDB database handle. It translates model-level operations into driver
// calls and rehydrates returned wire documents into model instances.
//
// Sessions and transactions are passed through opaquely: the driver carries
// them in the context (see mongo.NewSessionContext), so every operation that
// receives such a context runs inside the caller's session.
package queryset

import (
	"context"
	"fmt"

	"github.com/absmach/modm/logger"
	"github.com/absmach/modm/pkg/errors"
	"github.com/absmach/modm/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// QuerySet issues driver operations for one schema, merging the schema's
// default query into every filter and applying its default sort when the
// caller gives none. The type parameter is the model handle returned by read
// operations: a pointer to the model struct, or an interface implemented by
// every model of a dispatched hierarchy.
type QuerySet[T any] struct {
	db     *mongo.Database
	sch    *schema.Schema
	coll   *mongo.Collection
	logger logger.Logger
}

// New returns a query set for the schema bound to the given database.
func New[T any](db *mongo.Database, sch *schema.Schema) *QuerySet[T] {
	return &QuerySet[T]{
		db:     db,
		sch:    sch,
		coll:   sch.Collection(db),
		logger: logger.NewMock(),
	}
}

// Schema returns the schema the query set is bound to.
func (qs *QuerySet[T]) Schema() *schema.Schema {
	return qs.sch
}

// Collection returns the underlying driver collection.
func (qs *QuerySet[T]) Collection() *mongo.Collection {
	return qs.coll
}

// WithLogger returns a copy of the query set that logs issued operations on
// debug level.
func (qs *QuerySet[T]) WithLogger(l logger.Logger) *QuerySet[T] {
	clone := *qs
	clone.logger = l
	return &clone
}

// WithOptions returns a copy of the query set talking to the collection with
// changed read/write options, e.g. another write concern.
func (qs *QuerySet[T]) WithOptions(opts *options.CollectionOptions) *QuerySet[T] {
	clone := *qs
	clone.coll = qs.db.Collection(qs.sch.CollectionName(), opts)
	return &clone
}

// filter merges the schema's default query into the caller's filter.
func (qs *QuerySet[T]) filter(query any) any {
	dq := qs.sch.DefaultQuery()
	if len(dq) == 0 {
		if query == nil {
			return bson.D{}
		}
		return query
	}
	if query == nil {
		return dq
	}
	return bson.D{{Key: "$and", Value: bson.A{dq, query}}}
}

func (qs *QuerySet[T]) decode(raw bson.Raw) (T, error) {
	var zero T
	inst, err := qs.sch.DecodeNew(raw)
	if err != nil {
		return zero, errors.Wrap(errors.ErrViewEntity, err)
	}
	doc, ok := inst.(T)
	if !ok {
		return zero, errors.Wrap(errors.ErrViewEntity,
			errors.New(fmt.Sprintf("decoded %T does not satisfy the query set type", inst)))
	}
	return doc, nil
}

// Get retrieves a single document by its identity value.
func (qs *QuerySet[T]) Get(ctx context.Context, id any) (T, error) {
	return qs.FindOne(ctx, bson.D{{Key: qs.sch.Identity().Wire(), Value: id}})
}

// FindOne retrieves the first document matching the filter.
func (qs *QuerySet[T]) FindOne(ctx context.Context, query any, opts ...*options.FindOneOptions) (T, error) {
	var zero T
	qs.logger.Debug(fmt.Sprintf("find_one %s %v", qs.coll.Name(), query))

	raw, err := qs.coll.FindOne(ctx, qs.filter(query), opts...).Raw()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return zero, errors.Wrap(errors.ErrNotFound, err)
		}
		return zero, errors.Wrap(errors.ErrViewEntity, err)
	}
	return qs.decode(raw)
}

// Find returns a cursor over documents matching the filter. The schema's
// default sort is applied unless the caller's options carry one.
func (qs *QuerySet[T]) Find(ctx context.Context, query any, opts ...*options.FindOptions) (*Cursor[T], error) {
	qs.logger.Debug(fmt.Sprintf("find %s %v", qs.coll.Name(), query))

	if ds := qs.sch.DefaultSort(); ds != nil && !hasSort(opts) {
		opts = append(opts, options.Find().SetSort(ds))
	}
	cur, err := qs.coll.Find(ctx, qs.filter(query), opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrViewEntity, err)
	}
	return &Cursor[T]{cur: cur, decode: qs.decode}, nil
}

// Count counts documents matching the filter.
func (qs *QuerySet[T]) Count(ctx context.Context, query any, opts ...*options.CountOptions) (int64, error) {
	total, err := qs.coll.CountDocuments(ctx, qs.filter(query), opts...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrViewEntity, err)
	}
	return total, nil
}

// Create applies defaults, validates the document and inserts it. The
// returned document is the stored instance; validation failures are returned
// as the structured error tree.
func (qs *QuerySet[T]) Create(ctx context.Context, doc T) (T, error) {
	var zero T
	if err := qs.sch.ApplyDefaults(doc); err != nil {
		return zero, err
	}
	if err := qs.sch.Validate(doc); err != nil {
		return zero, err
	}
	if _, err := qs.InsertOne(ctx, doc); err != nil {
		return zero, err
	}
	return doc, nil
}

// CreateFromMap builds a document from loosely typed data keyed by attribute
// or synonym name, then creates it.
func (qs *QuerySet[T]) CreateFromMap(ctx context.Context, data map[string]any) (T, error) {
	var zero T
	inst := qs.sch.NewInstance()
	if err := qs.sch.FromMap(data, inst); err != nil {
		return zero, err
	}
	doc, ok := inst.(T)
	if !ok {
		return zero, errors.Wrap(errors.ErrCreateEntity,
			errors.New(fmt.Sprintf("built %T does not satisfy the query set type", inst)))
	}
	return qs.Create(ctx, doc)
}

// InsertOne inserts a single document and returns its stored identity.
func (qs *QuerySet[T]) InsertOne(ctx context.Context, doc T) (any, error) {
	enc, err := qs.sch.Encode(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCreateEntity, err)
	}
	qs.logger.Debug(fmt.Sprintf("insert_one %s", qs.coll.Name()))

	res, err := qs.coll.InsertOne(ctx, enc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCreateEntity, err)
	}
	return res.InsertedID, nil
}

// InsertMany inserts the given documents and returns their stored identities.
func (qs *QuerySet[T]) InsertMany(ctx context.Context, docs []T) ([]any, error) {
	encoded := make([]any, 0, len(docs))
	for _, doc := range docs {
		enc, err := qs.sch.Encode(doc)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCreateEntity, err)
		}
		encoded = append(encoded, enc)
	}
	qs.logger.Debug(fmt.Sprintf("insert_many %s: %d documents", qs.coll.Name(), len(docs)))

	res, err := qs.coll.InsertMany(ctx, encoded)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCreateEntity, err)
	}
	return res.InsertedIDs, nil
}

// Save upserts the document under its identity value.
func (qs *QuerySet[T]) Save(ctx context.Context, doc T) error {
	enc, err := qs.sch.Encode(doc)
	if err != nil {
		return errors.Wrap(errors.ErrUpdateEntity, err)
	}
	id, ok := wireValue(enc, qs.sch.Identity().Wire())
	if !ok {
		return errors.Wrap(errors.ErrUpdateEntity, errors.New("document has no identity value"))
	}
	qs.logger.Debug(fmt.Sprintf("save %s %v", qs.coll.Name(), id))

	filter := qs.filter(bson.D{{Key: qs.sch.Identity().Wire(), Value: id}})
	if _, err := qs.coll.ReplaceOne(ctx, filter, enc, options.Replace().SetUpsert(true)); err != nil {
		return errors.Wrap(errors.ErrUpdateEntity, err)
	}
	return nil
}

// Reload refreshes the document in place from its stored wire form.
func (qs *QuerySet[T]) Reload(ctx context.Context, doc T) error {
	id, err := qs.identityOf(doc)
	if err != nil {
		return err
	}
	raw, err := qs.coll.FindOne(ctx, bson.D{{Key: qs.sch.Identity().Wire(), Value: id}}).Raw()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return errors.Wrap(errors.ErrNotFound, err)
		}
		return errors.Wrap(errors.ErrViewEntity, err)
	}
	return qs.sch.Decode(raw, doc)
}

// Delete removes the document by its identity value. The in-memory instance
// stays untouched.
func (qs *QuerySet[T]) Delete(ctx context.Context, doc T) error {
	id, err := qs.identityOf(doc)
	if err != nil {
		return err
	}
	count, err := qs.DeleteOne(ctx, bson.D{{Key: qs.sch.Identity().Wire(), Value: id}})
	if err != nil {
		return err
	}
	if count < 1 {
		return errors.ErrNotFound
	}
	return nil
}

// UpdateOne updates the first document matching the filter and returns the
// modified count.
func (qs *QuerySet[T]) UpdateOne(ctx context.Context, query, update any, opts ...*options.UpdateOptions) (int64, error) {
	qs.logger.Debug(fmt.Sprintf("update_one %s %v", qs.coll.Name(), query))

	res, err := qs.coll.UpdateOne(ctx, qs.filter(query), update, opts...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrUpdateEntity, err)
	}
	return res.ModifiedCount, nil
}

// UpdateMany updates all documents matching the filter and returns the
// modified count.
func (qs *QuerySet[T]) UpdateMany(ctx context.Context, query, update any, opts ...*options.UpdateOptions) (int64, error) {
	qs.logger.Debug(fmt.Sprintf("update_many %s %v", qs.coll.Name(), query))

	res, err := qs.coll.UpdateMany(ctx, qs.filter(query), update, opts...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrUpdateEntity, err)
	}
	return res.ModifiedCount, nil
}

// ReplaceOne replaces the first document matching the filter and returns the
// modified count.
func (qs *QuerySet[T]) ReplaceOne(ctx context.Context, query, replacement any, opts ...*options.ReplaceOptions) (int64, error) {
	qs.logger.Debug(fmt.Sprintf("replace_one %s %v", qs.coll.Name(), query))

	res, err := qs.coll.ReplaceOne(ctx, qs.filter(query), replacement, opts...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrUpdateEntity, err)
	}
	return res.ModifiedCount, nil
}

// DeleteOne deletes the first document matching the filter and returns the
// deleted count.
func (qs *QuerySet[T]) DeleteOne(ctx context.Context, query any, opts ...*options.DeleteOptions) (int64, error) {
	qs.logger.Debug(fmt.Sprintf("delete_one %s %v", qs.coll.Name(), query))

	res, err := qs.coll.DeleteOne(ctx, qs.filter(query), opts...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrRemoveEntity, err)
	}
	return res.DeletedCount, nil
}

// DeleteMany deletes all documents matching the filter and returns the
// deleted count.
func (qs *QuerySet[T]) DeleteMany(ctx context.Context, query any, opts ...*options.DeleteOptions) (int64, error) {
	qs.logger.Debug(fmt.Sprintf("delete_many %s %v", qs.coll.Name(), query))

	res, err := qs.coll.DeleteMany(ctx, qs.filter(query), opts...)
	if err != nil {
		return 0, errors.Wrap(errors.ErrRemoveEntity, err)
	}
	return res.DeletedCount, nil
}

// Aggregate runs the pipeline with the schema's default query merged into
// its leading $match stage, prepending one when the pipeline starts with a
// different stage.
func (qs *QuerySet[T]) Aggregate(ctx context.Context, pipeline mongo.Pipeline, opts ...*options.AggregateOptions) (*mongo.Cursor, error) {
	dq := qs.sch.DefaultQuery()
	if len(dq) > 0 {
		pipeline = mergePipeline(dq, pipeline)
	}
	qs.logger.Debug(fmt.Sprintf("aggregate %s: %d stages", qs.coll.Name(), len(pipeline)))

	cur, err := qs.coll.Aggregate(ctx, pipeline, opts...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrViewEntity, err)
	}
	return cur, nil
}

// CreateIndexes creates the schema's declared indexes.
func (qs *QuerySet[T]) CreateIndexes(ctx context.Context) error {
	indexes := qs.sch.Indexes()
	if len(indexes) == 0 {
		return nil
	}
	if _, err := qs.coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return errors.Wrap(errors.ErrFailedOpDB, err)
	}
	return nil
}

// CreateCollection explicitly creates the backing collection, which MongoDB
// requires before the first use inside a transaction.
func (qs *QuerySet[T]) CreateCollection(ctx context.Context) error {
	if err := qs.db.CreateCollection(ctx, qs.sch.CollectionName()); err != nil {
		return errors.Wrap(errors.ErrFailedOpDB, err)
	}
	return nil
}

func (qs *QuerySet[T]) identityOf(doc T) (any, error) {
	enc, err := qs.sch.Encode(doc)
	if err != nil {
		return nil, errors.Wrap(errors.ErrMalformedEntity, err)
	}
	id, ok := wireValue(enc, qs.sch.Identity().Wire())
	if !ok {
		return nil, errors.Wrap(errors.ErrMalformedEntity, errors.New("document has no identity value"))
	}
	return id, nil
}

func wireValue(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func hasSort(opts []*options.FindOptions) bool {
	for _, opt := range opts {
		if opt != nil && opt.Sort != nil {
			return true
		}
	}
	return false
}

func mergePipeline(dq bson.D, pipeline mongo.Pipeline) mongo.Pipeline {
	if len(pipeline) > 0 {
		if match, ok := wireValue(pipeline[0], "$match"); ok {
			merged := bson.D{{Key: "$match", Value: bson.D{{Key: "$and", Value: bson.A{dq, match}}}}}
			out := mongo.Pipeline{merged}
			return append(out, pipeline[1:]...)
		}
	}
	out := mongo.Pipeline{bson.D{{Key: "$match", Value: dq}}}
	return append(out, pipeline...)
}
