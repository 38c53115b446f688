package api

import (
	"net/http"

	"github.com/phrazzld/taskgate/internal/api/shared"
	"github.com/phrazzld/taskgate/internal/tokenizer"
)

// TokenizeText handles POST /rest_api/tokenize_text synchronously.
func TokenizeText(w http.ResponseWriter, r *http.Request) {
	var req TokenizeTextRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	opts := tokenizer.Options{Lowercase: req.Lowercase, Deacc: req.Deacc}
	shared.RespondWithJSON(w, r, http.StatusCreated, TokenizeTextResponse{
		Tokens: tokenizer.Tokenize(*req.Text, opts),
	})
}

// TokenizeDocs handles POST /rest_api/tokenize_docs synchronously.
func TokenizeDocs(w http.ResponseWriter, r *http.Request) {
	var req TokenizeDocsRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, SanitizeValidationError(err))
		return
	}

	opts := tokenizer.Options{Lowercase: req.Lowercase, Deacc: req.Deacc}
	shared.RespondWithJSON(w, r, http.StatusCreated, TokenizeDocsResponse{
		TokenizedTexts: tokenizer.TokenizeDocs(req.Texts, opts),
	})
}
