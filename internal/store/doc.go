// Package store is the relational executor: a pooled SQLite store holding a
// project's records, with positional-parameter queries and all-or-nothing
// mutation batches.
//
// # Records
//
// Every entity lives in the records table keyed by (pk, sk). A node row has
// pk = sk; edge rows share the node's pk. The document column holds the
// entity's fields as a JSON object.
//
// # Database Configuration
//
// Pragmas are applied per connection through the DSN so every pooled
// connection sees them:
//   - journal_mode=WAL: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout: wait for locks instead of failing fast
//   - foreign_keys=on: enforce referential integrity
//   - txlock=immediate: transactions take the write lock at BEGIN
//
// A lock file in the database directory keeps a second bridge from opening
// the same store.
package store
