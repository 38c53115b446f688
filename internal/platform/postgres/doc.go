// Package postgres provides the PostgreSQL broker backend: a task result
// store and a durable queue sharing one tasks table, plus the embedded goose
// migrations that create it.
//
// Workers claim deliverable rows with SELECT ... FOR UPDATE SKIP LOCKED, so
// any number of worker processes can share the table without handing the
// same submission to two of them.
package postgres
