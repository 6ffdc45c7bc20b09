package apperror

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorMatchesSentinelByKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("event.Get", "event"))

	require.ErrorIs(t, err, ErrNotFound)
	require.NotErrorIs(t, err, ErrConflict)
	require.Equal(t, KindNotFound, KindOf(err))
	require.Equal(t, "event.Get: event not found", errors.Unwrap(err).Error())
}

func TestStoreKeepsCauseAndDoesNotRewrapDomainErrors(t *testing.T) {
	err := Store("event.Get", sql.ErrConnDone)
	require.ErrorIs(t, err, ErrStore)
	require.ErrorIs(t, err, sql.ErrConnDone)

	conflict := Conflict("registration.Register", "already registered")
	require.Same(t, conflict, Store("x", conflict).(*Error))

	require.NoError(t, Store("noop", nil))
}

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("op", "bad", nil), http.StatusBadRequest},
		{NotFound("op", "event"), http.StatusNotFound},
		{Forbidden("op", "event"), http.StatusForbidden},
		{Conflict("op", "dup"), http.StatusConflict},
		{Store("op", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestPublicMessageMasksStoreFaults(t *testing.T) {
	require.Equal(t, "internal error", PublicMessage(Store("op", errors.New("password=hunter2"))))
	require.Equal(t, "event not found", PublicMessage(NotFound("op", "event")))
	require.Equal(t, "already registered", PublicMessage(Conflict("op", "already registered")))
}

func TestValidationFields(t *testing.T) {
	err := Validation("event.Create", "invalid event", map[string]string{"name": "is required", "date": "is malformed"})
	require.Equal(t, "event.Create: invalid event (date: is malformed; name: is required)", err.Error())
	require.Equal(t, "is required", FieldsOf(err)["name"])
	require.Nil(t, FieldsOf(errors.New("x")))
}
