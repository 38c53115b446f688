// Package api handles incoming HTTP requests for the task gateway: task
// submission, non-blocking status polls, result retrieval and the
// synchronous text endpoints. It translates HTTP concerns to broker calls
// and maps internal errors to status codes without leaking their details.
package api
