// Package store holds the database plumbing shared by SQL-backed task
// stores: the DBTX abstraction over *sql.DB and *sql.Tx, transaction
// helpers, and store-level errors.
package store
