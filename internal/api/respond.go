package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/krm/mini-commerce/internal/database"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondStoreError maps the store's error taxonomy onto HTTP statuses.
// Unknown errors become a 500 with the detail kept out of the response.
func respondStoreError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	switch {
	case errors.Is(err, database.ErrCategoryNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, database.ErrCategoryNameTaken),
		errors.Is(err, database.ErrCategoryInUse):
		respondError(w, http.StatusConflict, err.Error())

	case errors.Is(err, database.ErrInsufficientStock):
		var stockErr *database.InsufficientStockError
		if errors.As(err, &stockErr) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":      "insufficient_stock",
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			})
			return
		}
		respondError(w, http.StatusUnprocessableEntity, err.Error())

	case errors.Is(err, database.ErrInvalidQuantity),
		errors.Is(err, database.ErrInvalidStatus):
		respondError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, database.ErrLockTimeout):
		respondError(w, http.StatusServiceUnavailable, err.Error())

	default:
		logger.Error().Err(err).Msg("store error")
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
