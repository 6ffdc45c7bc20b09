package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "0123456789abcdef0123"

func newIssuer(t *testing.T) *Issuer {
	t.Helper()
	iss, err := NewIssuer(secret, "events", "events-api", time.Hour)
	require.NoError(t, err)
	return iss
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	iss := newIssuer(t)
	tok, exp, err := iss.Issue("u1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	sub, err := iss.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "u1", sub)
}

func TestVerifyRejects(t *testing.T) {
	iss := newIssuer(t)
	tok, _, err := iss.Issue("u1")
	require.NoError(t, err)

	other, err := NewIssuer("another-secret-value", "events", "events-api", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	wrongAud, err := NewIssuer(secret, "events", "someone-else", time.Hour)
	require.NoError(t, err)
	_, err = wrongAud.Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	iss.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = iss.Verify(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u1", "iss": "events", "aud": "events-api", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = newIssuer(t).Verify(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuerRequiresLongSecret(t *testing.T) {
	_, err := NewIssuer("short", "events", "events-api", time.Hour)
	require.Error(t, err)
}

func TestRequire(t *testing.T) {
	iss := newIssuer(t)
	var seen string
	h := Require(iss, zap.NewNop().Sugar())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), ErrMissingToken.Error())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	tok, _, err := iss.Issue("u42")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "u42", seen)
}
