package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/example/marketplace-engine/internal/fault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteError_OutOfStockCarriesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &fault.OutOfStock{ProductID: "p1", Requested: 3, Remaining: 2, InCart: 1})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "out_of_stock", body["error"])
	assert.Equal(t, "p1", body["product_id"])
	assert.Equal(t, float64(2), body["remaining"])
	assert.Equal(t, float64(1), body["in_cart"])
}

func TestWriteError_IllegalTransitionCarriesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &fault.IllegalTransition{Entity: "order", From: "shipped", To: "cancelled", Actor: "buyer"})

	assert.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "illegal_transition", body["error"])
	assert.Equal(t, "shipped", body["from"])
	assert.Equal(t, "cancelled", body["to"])
	assert.Equal(t, "buyer", body["actor"])
}

func TestWriteError_Validation(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fault.Validationf("quantity must be at least 1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeBody(t, rec)["error"])
}

func TestWriteError_NotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &fault.NotFound{Resource: "order", ID: "o-1"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "order", body["resource"])
	assert.Equal(t, "o-1", body["id"])
}

func TestWriteError_Unauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fault.Unauthorizedf("not your order"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWriteError_Conflict(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, fault.Conflictf("version mismatch on cart-1"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict", decodeBody(t, rec)["error"])
}

func TestWriteError_ExternalDependencyStaysGeneric(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, &fault.External{Dependency: "catalog", Err: errors.New("connection refused")})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "external_dependency", body["error"])
	assert.NotContains(t, body["message"], "connection refused")
}

func TestWriteError_UnknownErrorIs500(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestActorRoleMapping(t *testing.T) {
	assert.Equal(t, "buyer", string(actorRole("customer")))
	assert.Equal(t, "seller", string(actorRole("artisan")))
	assert.Equal(t, "staff", string(actorRole("staff")))
	assert.Equal(t, "admin", string(actorRole("admin")))
	assert.Equal(t, "buyer", string(actorRole("")))
}
