package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/models"
	"github.com/emadnahed/flakeid/internal/repository"
	"github.com/emadnahed/flakeid/internal/services"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}

// writeServiceError maps err onto a status code and writes it.
func writeServiceError(w http.ResponseWriter, err error) {
	status, resp := mapErrorToResponse(err)
	writeJSON(w, status, resp)
}

var validationCodes = []struct {
	err  error
	code string
}{
	{models.ErrNameRequired, "NAME_REQUIRED"},
	{models.ErrNameLength, "INVALID_NAME"},
	{models.ErrPriceRequired, "PRICE_REQUIRED"},
	{models.ErrInvalidPrice, "INVALID_PRICE"},
	{models.ErrStockRequired, "STOCK_REQUIRED"},
	{models.ErrNegativeStock, "INVALID_STOCK"},
}

// mapErrorToResponse maps service errors to HTTP status codes and error responses.
func mapErrorToResponse(err error) (int, ErrorResponse) {
	for _, v := range validationCodes {
		if errors.Is(err, v.err) {
			return http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: v.code}
		}
	}

	switch {
	case errors.Is(err, idgen.ErrInvalidIdentifier):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_ID",
		}
	case errors.Is(err, services.ErrInvalidCount):
		return http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_COUNT",
		}
	case errors.Is(err, models.ErrProductNotFound):
		return http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_FOUND",
		}
	case errors.Is(err, repository.ErrDuplicateID):
		return http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "DUPLICATE_ID",
		}
	case services.IsGenerationUnavailable(err):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "ID generation temporarily unavailable",
			Code:  "GENERATION_UNAVAILABLE",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrorResponse{
			Error: "request timed out",
			Code:  "TIMEOUT",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		}
	}
}
