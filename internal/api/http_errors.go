package api

import (
	"errors"
	"net/http"

	"github.com/hugo-lorenzo-mato/evintel/internal/core"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondDomainError maps the domain taxonomy onto HTTP status codes.
func respondDomainError(w http.ResponseWriter, err error) {
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr == nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch domErr.Category {
	case core.ErrCatValidation:
		status = http.StatusUnprocessableEntity
	case core.ErrCatTimeout:
		status = http.StatusGatewayTimeout
	case core.ErrCatConfiguration:
		status = http.StatusBadRequest
	case core.ErrCatBudget, core.ErrCatGate:
		status = http.StatusConflict
	}
	respondError(w, status, domErr.Error())
}
