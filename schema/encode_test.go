// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package schema_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/absmach/modm/pkg/errors"
	"github.com/absmach/modm/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func marshal(t *testing.T, d bson.D) bson.Raw {
	t.Helper()
	raw, err := bson.Marshal(d)
	require.Nil(t, err, fmt.Sprintf("unexpected marshal error: %s", err))
	return bson.Raw(raw)
}

func TestEncode(t *testing.T) {
	postID := primitive.NewObjectID()
	user := User{
		ID:     "alice",
		Active: true,
		Posts:  []primitive.ObjectID{postID},
	}

	d, err := userSchema.Encode(user)
	require.Nil(t, err, fmt.Sprintf("unexpected encode error: %s", err))

	expected := bson.D{
		{Key: "_id", Value: "alice"},
		{Key: "active", Value: true},
		{Key: "posts", Value: bson.A{postID}},
	}
	assert.Equal(t, expected, d, "unexpected wire document")
}

func TestEncodeOmitsAbsentOptional(t *testing.T) {
	user := User{ID: "alice", Active: true, Posts: []primitive.ObjectID{}}

	d, err := userSchema.Encode(user)
	require.Nil(t, err, fmt.Sprintf("unexpected encode error: %s", err))

	for _, e := range d {
		assert.NotEqual(t, "data", e.Key, "absent optional field must be omitted")
	}

	user.Data = "payload"
	d, err = userSchema.Encode(user)
	require.Nil(t, err, fmt.Sprintf("unexpected encode error: %s", err))
	assert.Equal(t, bson.E{Key: "data", Value: "payload"}, d[len(d)-1], "present optional field must be encoded")
}

func TestEncodeNullable(t *testing.T) {
	type note struct {
		ID   primitive.ObjectID
		Text *string
	}
	s, err := schema.New(note{}, schema.Fields(schema.String("Text", schema.Nullable())))
	require.Nil(t, err, fmt.Sprintf("unexpected schema assembly error: %s", err))

	id := primitive.NewObjectID()
	d, err := s.Encode(note{ID: id})
	require.Nil(t, err, fmt.Sprintf("unexpected encode error: %s", err))
	assert.Equal(t, bson.D{{Key: "_id", Value: id}, {Key: "text", Value: nil}}, d, "nil nullable field must be stored as null")
}

func TestRoundTrip(t *testing.T) {
	post := Post{
		ID:      primitive.NewObjectID(),
		Title:   "on databases",
		Views:   42,
		Created: time.Now().UTC().Truncate(time.Millisecond),
		Rate:    4.5,
		Author:  "alice",
		Comments: []Comment{
			{ID: primitive.NewObjectID(), Body: "first", Author: "bob"},
			{ID: primitive.NewObjectID(), Body: "second", Author: "carol"},
		},
	}

	d, err := postSchema.Encode(post)
	require.Nil(t, err, fmt.Sprintf("unexpected encode error: %s", err))

	var got Post
	err = postSchema.Decode(marshal(t, d), &got)
	require.Nil(t, err, fmt.Sprintf("unexpected decode error: %s", err))
	assert.Equal(t, post, got, "document must survive the encode-decode round trip")
}

func TestDecodeAppliesDefaults(t *testing.T) {
	raw := marshal(t, bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "title", Value: "bare"},
		{Key: "author", Value: "alice"},
	})

	var got Post
	err := postSchema.Decode(raw, &got)
	require.Nil(t, err, fmt.Sprintf("unexpected decode error: %s", err))

	assert.Equal(t, int64(0), got.Views, "missing views must default to zero")
	assert.False(t, got.Created.IsZero(), "missing created must default to now")
	assert.NotNil(t, got.Comments, "missing comments must default to an empty list")
	assert.Empty(t, got.Comments, "defaulted comments must be empty")
}

func TestDecodeRejectsWrongModel(t *testing.T) {
	raw := marshal(t, bson.D{{Key: "_id", Value: "alice"}})

	var c Comment
	err := userSchema.Decode(raw, &c)
	assert.True(t, errors.Contains(err, schema.ErrDecode), fmt.Sprintf("expected %s got %s", schema.ErrDecode, err))

	var u User
	err = userSchema.Decode(raw, u)
	assert.True(t, errors.Contains(err, schema.ErrDecode), fmt.Sprintf("expected %s got %s", schema.ErrDecode, err))
}

func TestDecodeNewDispatch(t *testing.T) {
	managerRaw := marshal(t, bson.D{
		{Key: "_id", Value: "m1"},
		{Key: "role", Value: "manager"},
		{Key: "name", Value: "Alice"},
		{Key: "reports", Value: bson.A{"e1", "e2"}},
	})
	employeeRaw := marshal(t, bson.D{
		{Key: "_id", Value: "e1"},
		{Key: "role", Value: "employee"},
		{Key: "name", Value: "Bob"},
	})

	inst, err := employeeSchema.DecodeNew(managerRaw)
	require.Nil(t, err, fmt.Sprintf("unexpected decode error: %s", err))
	mgr, ok := inst.(*Manager)
	require.True(t, ok, fmt.Sprintf("expected *Manager got %T", inst))
	assert.Equal(t, "m1", mgr.ID, "unexpected manager identity")
	assert.Equal(t, []string{"e1", "e2"}, mgr.Reports, "unexpected manager reports")

	inst, err = employeeSchema.DecodeNew(employeeRaw)
	require.Nil(t, err, fmt.Sprintf("unexpected decode error: %s", err))
	emp, ok := inst.(*Employee)
	require.True(t, ok, fmt.Sprintf("expected *Employee got %T", inst))
	assert.Equal(t, "Bob", emp.Name, "unexpected employee name")
}

func TestValidateTree(t *testing.T) {
	post := Post{
		ID:      primitive.NewObjectID(),
		Title:   "",
		Views:   -1,
		Created: time.Now(),
		Author:  "",
		Comments: []Comment{
			{ID: primitive.NewObjectID(), Body: "fine", Author: "bob"},
			{ID: primitive.NewObjectID(), Body: "", Author: "carol"},
		},
	}

	err := postSchema.Validate(&post)
	require.NotNil(t, err, "expected validation errors")

	verrs, ok := err.(*errors.ValidationErrors)
	require.True(t, ok, fmt.Sprintf("expected a validation error tree, got %T", err))
	assert.Equal(t, 4, verrs.Leaves(), fmt.Sprintf("expected 4 leaves got %d", verrs.Leaves()))

	expected := map[string]any{
		"Title":  "blank value is not allowed",
		"Views":  "value is less than 0",
		"Author": "blank value is not allowed",
	}
	got := verrs.AsMap()
	nested, ok := got["Comments"].(map[string]any)
	require.True(t, ok, "expected nested comment errors")
	assert.Equal(t, map[string]any{"1": map[string]any{"Body": "blank value is not allowed"}}, nested, "unexpected nested tree")
	delete(got, "Comments")
	assert.Equal(t, expected, got, "unexpected top level tree")
}

func TestApplyDefaults(t *testing.T) {
	var user User
	user.ID = "alice"

	err := userSchema.ApplyDefaults(&user)
	require.Nil(t, err, fmt.Sprintf("unexpected defaults error: %s", err))

	assert.True(t, user.Active, "missing active must default to true")
	assert.NotNil(t, user.Posts, "missing posts must default to an empty list")

	err = userSchema.ApplyDefaults(user)
	assert.True(t, errors.Contains(err, errors.ErrMalformedEntity), fmt.Sprintf("expected %s got %s", errors.ErrMalformedEntity, err))
}

func TestFromMap(t *testing.T) {
	commentID := primitive.NewObjectID()
	data := map[string]any{
		"title":  "from a form",
		"views":  "42",
		"author": "alice",
		"comments": []map[string]any{
			{"id": commentID.Hex(), "body": "first", "author": "bob"},
		},
	}

	var post Post
	err := postSchema.FromMap(data, &post)
	require.Nil(t, err, fmt.Sprintf("unexpected error: %s", err))

	assert.Equal(t, "from a form", post.Title, "unexpected title")
	assert.Equal(t, int64(42), post.Views, "string count must be weakly converted")
	assert.Equal(t, commentID, post.Comments[0].ID, "hex string must be converted to an object id")
	assert.False(t, post.Created.IsZero(), "missing created must be defaulted")
}

func TestFromMapSynonym(t *testing.T) {
	var user User
	err := userSchema.FromMap(map[string]any{"Name": "alice"}, &user)
	require.Nil(t, err, fmt.Sprintf("unexpected error: %s", err))

	assert.Equal(t, "alice", user.ID, "synonym key must resolve to its target attribute")
	assert.True(t, user.Active, "defaults must be applied after mapping")
}

func TestFromMapNamedStringType(t *testing.T) {
	type hexID string

	commentID := primitive.NewObjectID()
	data := map[string]any{
		"id":     hexID(commentID.Hex()),
		"body":   "typed",
		"author": "alice",
	}

	var comment Comment
	err := commentSchema.FromMap(data, &comment)
	require.Nil(t, err, fmt.Sprintf("unexpected error: %s", err))
	assert.Equal(t, commentID, comment.ID, "named string type must be converted to an object id")
}

func TestFromMapBadValue(t *testing.T) {
	var comment Comment
	err := commentSchema.FromMap(map[string]any{"id": "not-a-hex"}, &comment)
	assert.True(t, errors.Contains(err, schema.ErrFromMap), fmt.Sprintf("expected %s got %s", schema.ErrFromMap, err))
}
