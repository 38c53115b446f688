// Package events carries task state changes from the broker and workers to
// observers such as the metrics recorder.
//
// Emitters publish TaskStateEvent values without knowing which handlers will
// process them, so the task package stays free of observability concerns.
package events
