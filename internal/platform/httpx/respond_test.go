package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/bookhaven/internal/shared"
)

var errThing = shared.NewError(4242, http.StatusConflict, "thing conflicted")

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRespondErrorCategorised(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, fmt.Errorf("save thing 7: %w", errThing))

	require.Equal(t, http.StatusConflict, rec.Code)
	env := decodeEnvelope(t, rec)
	require.False(t, env.Success)
	require.Equal(t, 4242, env.Code)
	require.Equal(t, "thing conflicted", env.Message)
	require.Equal(t, "save thing 7: thing conflicted", env.Error)
}

func TestRespondErrorUnexpectedHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, nil, errors.New("pq: connection reset by peer"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeEnvelope(t, rec)
	require.Equal(t, 9999, env.Code)
	require.Nil(t, env.Error)
	require.NotContains(t, rec.Body.String(), "connection reset")
}

type sampleRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeValidation(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","quantity":0}`))
	var body sampleRequest
	err := Decode(req, validator.New(), &body)
	require.ErrorIs(t, err, shared.ErrValidation)

	rec := httptest.NewRecorder()
	RespondError(rec, nil, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	fields, ok := env.Error.(map[string]any)
	require.True(t, ok)
	require.Contains(t, fields, "Email")
	require.Contains(t, fields, "Quantity")
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","quantity":1,"extra":true}`))
	var body sampleRequest
	require.ErrorIs(t, Decode(req, validator.New(), &body), shared.ErrValidation)
}
