package api

import (
	"encoding/json"

	"github.com/google/uuid"
)

// SubmitRequest is the body of POST /submit.
type SubmitRequest struct {
	Handler string         `json:"handler" validate:"required,max=128"`
	Args    []any          `json:"args"`
	Kwargs  map[string]any `json:"kwargs,omitempty"`
}

// SubmitResponse returns the issued task id and where to poll it.
type SubmitResponse struct {
	TaskID    uuid.UUID `json:"task_id"`
	StatusURL string    `json:"status_url"`
}

// StatusResponse is a task snapshot. Result is set only in SUCCESS and
// Error only in FAILURE.
type StatusResponse struct {
	TaskID uuid.UUID       `json:"task_id"`
	State  string          `json:"state"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ResultResponse is the body of a successful result request.
type ResultResponse struct {
	TaskID uuid.UUID       `json:"task_id"`
	State  string          `json:"state"`
	Result json.RawMessage `json:"result"`
}

// InvalidStateResponse tells a caller asking for a result too early which
// state the task is in.
type InvalidStateResponse struct {
	Error   string `json:"error"`
	State   string `json:"state"`
	TraceID string `json:"trace_id,omitempty"`
}

// TestResponse is returned by GET /test/{x}.
type TestResponse struct {
	TaskID         uuid.UUID `json:"task_id"`
	CheckStatusURL string    `json:"check_status_url"`
}

// CheckResponse is returned by GET /check/{id}: only the state while
// PENDING, otherwise the state and the result (or error text on FAILURE).
type CheckResponse struct {
	State  string `json:"state"`
	Result any    `json:"result,omitempty"`
}

// HandlersResponse lists the accepted handler names.
type HandlersResponse struct {
	Handlers []string `json:"handlers"`
}

// TokenizeTextRequest is the body of POST /rest_api/tokenize_text.
type TokenizeTextRequest struct {
	Text      *string `json:"text"      validate:"required"`
	Lowercase bool    `json:"lowercase"`
	Deacc     bool    `json:"deacc"`
}

// TokenizeTextResponse holds the tokens of one text.
type TokenizeTextResponse struct {
	Tokens []string `json:"tokens"`
}

// TokenizeDocsRequest is the body of POST /rest_api/tokenize_docs.
type TokenizeDocsRequest struct {
	Texts     []string `json:"texts"     validate:"required"`
	Lowercase bool     `json:"lowercase"`
	Deacc     bool     `json:"deacc"`
}

// TokenizeDocsResponse holds the tokens of each text, in request order.
type TokenizeDocsResponse struct {
	TokenizedTexts [][]string `json:"tokenized_texts"`
}
