package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/example/marketplace-engine/internal/fault"
)

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a fault onto a status code and a structured JSON body.
// Structured faults carry their detail fields; only external dependency
// failures stay generic.
func writeError(w http.ResponseWriter, err error) {
	var (
		outOfStock *fault.OutOfStock
		illegal    *fault.IllegalTransition
		notFound   *fault.NotFound
	)

	switch {
	case errors.As(err, &outOfStock):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":      "out_of_stock",
			"message":    outOfStock.Error(),
			"product_id": outOfStock.ProductID,
			"requested":  outOfStock.Requested,
			"remaining":  outOfStock.Remaining,
			"in_cart":    outOfStock.InCart,
		})
	case errors.As(err, &illegal):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":   "illegal_transition",
			"message": illegal.Error(),
			"entity":  illegal.Entity,
			"from":    illegal.From,
			"to":      illegal.To,
			"actor":   illegal.Actor,
		})
	case errors.As(err, &notFound):
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error":    "not_found",
			"message":  notFound.Error(),
			"resource": notFound.Resource,
			"id":       notFound.ID,
		})
	case errors.Is(err, fault.ErrValidation):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation",
			"message": err.Error(),
		})
	case errors.Is(err, fault.ErrUnauthorized):
		// Missing/invalid credentials are rejected with 401 by the auth
		// middleware before the handler runs; here the actor is known but
		// not permitted.
		respondJSON(w, http.StatusForbidden, map[string]any{
			"error":   "unauthorized",
			"message": err.Error(),
		})
	case errors.Is(err, fault.ErrNotFound):
		respondJSON(w, http.StatusNotFound, map[string]any{
			"error":   "not_found",
			"message": err.Error(),
		})
	case errors.Is(err, fault.ErrConflict):
		respondJSON(w, http.StatusConflict, map[string]any{
			"error":   "conflict",
			"message": err.Error(),
		})
	case errors.Is(err, fault.ErrExternalDependency):
		log.Printf("[API] external dependency failure: %v", err)
		respondJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "external_dependency",
			"message": "an upstream service is unavailable",
		})
	default:
		log.Printf("[API] internal error: %v", err)
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "internal",
			"message": "internal server error",
		})
	}
}
