// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package errors

var (
	// ErrNotFound indicates a non-existent document request.
	ErrNotFound = New("document not found")

	// ErrMalformedEntity indicates a malformed model or schema definition.
	ErrMalformedEntity = New("malformed model definition")

	// ErrValidation indicates that a document failed schema validation.
	ErrValidation = New("document validation failed")

	// ErrCreateEntity indicates error in creating document or documents.
	ErrCreateEntity = New("failed to create document in the db")

	// ErrViewEntity indicates error in viewing document or documents.
	ErrViewEntity = New("view document failed")

	// ErrUpdateEntity indicates error in updating document or documents.
	ErrUpdateEntity = New("update document failed")

	// ErrRemoveEntity indicates error in removing document.
	ErrRemoveEntity = New("failed to remove document")

	// ErrFailedOpDB indicates a failure in a database operation.
	ErrFailedOpDB = New("operation on db element failed")
)
