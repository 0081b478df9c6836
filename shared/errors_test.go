package shared

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    *APIError
		status int
	}{
		{Validation("bad"), fiber.StatusBadRequest},
		{NotFound("missing"), fiber.StatusNotFound},
		{InvalidState("nope"), fiber.StatusBadRequest},
		{Duplicate("again"), fiber.StatusBadRequest},
		{Unauthenticated("who"), fiber.StatusUnauthorized},
		{Forbidden("no"), fiber.StatusForbidden},
		{Internal("boom", nil), fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, tc.err.Status(), string(tc.err.Code))
	}
}

func TestClassifyPassesThroughAPIError(t *testing.T) {
	original := InvalidState("IPO is not open for applications")
	wrapped := fmt.Errorf("handler: %w", original)

	classified := Classify(wrapped)
	assert.Equal(t, CodeInvalidState, classified.Code)
	assert.Equal(t, original.Message, classified.Message)
}

func TestClassifyStoreErrors(t *testing.T) {
	assert.Equal(t, CodeNotFound, Classify(sql.ErrNoRows).Code)
	assert.Equal(t, CodeDuplicate, Classify(&pq.Error{Code: "23505"}).Code)
	assert.Equal(t, CodeValidation, Classify(&pq.Error{Code: "22P02"}).Code)
	assert.Equal(t, CodeValidation, Classify(&pq.Error{Code: "23503"}).Code)
	assert.Equal(t, CodeInternal, Classify(errors.New("disk on fire")).Code)
}

func TestErrorHandlerRendersTaxonomy(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(true)})
	app.Get("/missing", func(c *fiber.Ctx) error {
		return NotFound("IPO not found")
	})
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("unexpected")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, string(CodeNotFound), body["code"])
	assert.Equal(t, "IPO not found", body["error"])

	resp, err = app.Test(httptest.NewRequest("GET", "/boom", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}

func TestErrorHandlerHidesDetailInProduction(t *testing.T) {
	boom := func(c *fiber.Ctx) error {
		return Internal("unexpected error", errors.New("secret stack detail"))
	}

	prod := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(true)})
	prod.Get("/", boom)
	resp, err := prod.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(raw), "secret stack detail")

	dev := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(false)})
	dev.Get("/", boom)
	resp, err = dev.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	raw, _ = io.ReadAll(resp.Body)
	assert.Contains(t, string(raw), "secret stack detail")
}
