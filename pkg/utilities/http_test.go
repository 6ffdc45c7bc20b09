package utilities

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/pkg/apperror"
)

func TestWriteErrorMapsKinds(t *testing.T) {
	logger := zap.NewNop().Sugar()

	w := httptest.NewRecorder()
	WriteError(w, logger, apperror.Validation("op", "invalid input", map[string]string{"name": "is required"}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, "invalid input", body.Error)
	require.Equal(t, "is required", body.Fields["name"])

	w = httptest.NewRecorder()
	WriteError(w, logger, apperror.Store("op", errors.New("pq: password authentication failed")))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.JSONEq(t, `{"error":"internal error"}`, w.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"x"}`))
	require.NoError(t, DecodeJSON(req, &v))
	require.Equal(t, "x", v.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := DecodeJSON(req, &v)
	require.ErrorIs(t, err, apperror.ErrValidation)
	require.Equal(t, "request body is required", apperror.PublicMessage(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	require.ErrorIs(t, DecodeJSON(req, &v), apperror.ErrValidation)
}

type sample struct {
	Name  string  `json:"name" validate:"notblank,max=5"`
	Email string  `json:"email" validate:"required,email"`
	Nick  *string `json:"nick" validate:"omitnil,notblank"`
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	blank := " "
	err := v.Struct("sample", sample{Name: "toolong", Email: "nope", Nick: &blank})
	require.ErrorIs(t, err, apperror.ErrValidation)
	fields := apperror.FieldsOf(err)
	require.Equal(t, "must be at most 5 characters", fields["name"])
	require.Equal(t, "must be a valid email", fields["email"])
	require.Equal(t, "is required", fields["nick"])

	require.NoError(t, v.Struct("sample", sample{Name: "ok", Email: "a@b.co"}))
}
