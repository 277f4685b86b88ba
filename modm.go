// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package modm is an object-document mapper for MongoDB built on the
// official Go driver. Models are plain structs described by a declarative
// schema of field descriptors; the schema performs validation and two-way
// conversion between native values and wire documents, and a query set
// bound to the schema translates model-level operations into driver calls.
package modm

// IDProvider specifies an API for generating unique identifiers.
type IDProvider interface {
	// ID generates the unique identifier.
	ID() (string, error)
}

// Version of the library.
const Version = "0.1.0"
