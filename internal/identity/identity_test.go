package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromRequestReadsForwardedEmail(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/path/a.jpg", nil)
	r.Header.Set("X-Forwarded-Email", "user@example.com")

	id, err := FromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "user@example.com", id.Email)
	require.False(t, id.Forced)
}

func TestFromRequestRejectsMissingHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/path/a.jpg", nil)
	_, err := FromRequest(r)
	require.ErrorIs(t, err, ErrMissingIdentity)
}

func TestFromRequestRejectsRepeatedHeader(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/path/a.jpg", nil)
	r.Header.Add("X-Forwarded-Email", "a@example.com")
	r.Header.Add("X-Forwarded-Email", "b@example.com")
	_, err := FromRequest(r)
	require.ErrorIs(t, err, ErrMissingIdentity)
}

func TestFromRequestForcedOverrideWinsOverHeader(t *testing.T) {
	t.Setenv(ForcedUserEnv, "forced@example.com")
	r := httptest.NewRequest(http.MethodGet, "/path/a.jpg", nil)
	r.Header.Set("X-Forwarded-Email", "user@example.com")

	id, err := FromRequest(r)
	require.NoError(t, err)
	require.Equal(t, "forced@example.com", id.Email)
	require.True(t, id.Forced)
}
