// Package scalar defines the dynamically typed values that flow between the
// bridge protocol and the relational store.
//
// Rows have no compile-time shape: their shape is only known from the
// registry at runtime. Every cell is therefore modelled as a Value, a sealed
// interface implemented by exactly six types:
//
//	Null, String, Int, Float, Bool, Bytes
//
// A Record is an ordered list of (field name, Value) pairs. Column order is
// preserved when a Record is encoded to JSON.
//
// The package also provides canonical JSON encoding and domain-separated
// SHA-256 hashing, used to fingerprint search queries for cursor binding.
package scalar
