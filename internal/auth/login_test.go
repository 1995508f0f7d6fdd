package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleyorama2/gabsload/internal/actor"
	"github.com/wesleyorama2/gabsload/internal/failure"
	lhttp "github.com/wesleyorama2/gabsload/internal/http"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestAuthenticator_Login(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := signedToken(t, exp)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/vendor/login":
			var creds Credentials
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			if creds.Password != "VendorPass123!" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"token": raw,
				"user":  map[string]string{"id": "v-1"},
			})
		case "/auth/rider/login":
			w.Write([]byte(`{"user":{}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	a := NewAuthenticator(lhttp.NewClient(lhttp.WithBaseURL(server.URL)))

	t.Run("success", func(t *testing.T) {
		res, err := a.Login(context.Background(), actor.Vendor, Credentials{Email: "v@x.com", Password: "VendorPass123!"})
		require.NoError(t, err)
		assert.Equal(t, raw, res.Token.Value)
		assert.Equal(t, actor.Vendor, res.Token.Kind)
		assert.Equal(t, "v-1", res.UserID)
		assert.True(t, res.Token.ExpiresAt.Equal(exp))
		assert.Equal(t, 200, res.Status)
	})

	t.Run("rejected", func(t *testing.T) {
		res, err := a.Login(context.Background(), actor.Vendor, Credentials{Email: "v@x.com", Password: "nope"})
		var step *failure.Step
		require.True(t, errors.As(err, &step))
		assert.Equal(t, "login", step.Step)
		assert.Equal(t, http.StatusUnauthorized, res.Status)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := a.Login(context.Background(), actor.Rider, Credentials{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no token")
	})
}

func TestAuthenticator_Refresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer old" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"token":"new"}`))
	}))
	defer server.Close()

	a := NewAuthenticator(lhttp.NewClient(lhttp.WithBaseURL(server.URL)))

	fresh, err := a.Refresh(context.Background(), Token{Kind: actor.Customer, Value: "old"})
	require.NoError(t, err)
	assert.Equal(t, "new", fresh.Value)
	assert.Equal(t, actor.Customer, fresh.Kind)
	assert.True(t, fresh.ExpiresAt.IsZero(), "opaque tokens carry no expiry hint")

	_, err = a.Refresh(context.Background(), Token{Kind: actor.Customer, Value: "stale"})
	assert.Error(t, err)
}

func TestDecodeExpiry(t *testing.T) {
	assert.True(t, DecodeExpiry("not-a-jwt").IsZero())
	assert.True(t, DecodeExpiry("").IsZero())

	exp := time.Now().Add(10 * time.Minute).Truncate(time.Second)
	assert.True(t, DecodeExpiry(signedToken(t, exp)).Equal(exp))
}
