package auth

import (
	"net/http"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
)

func newService(t *testing.T) *JWTService {
	t.Helper()
	svc := NewJWTService(DefaultJWTConfig("test-secret", "voltstock"))
	svc.now = func() time.Time { return time.Date(2025, 5, 4, 10, 0, 0, 0, time.UTC) }
	return svc
}

func TestJWTService_RoundTrip(t *testing.T) {
	svc := newService(t)
	actor := appctx.Actor{ID: "ada", Name: "Ada Okafor", Role: appctx.RoleAdmin}

	token, expiresAt, err := svc.IssueToken(actor)
	require.NoError(t, err)
	assert.Equal(t, svc.now().Add(12*time.Hour), expiresAt)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, *got)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := newService(t)
	good, _, err := svc.IssueToken(appctx.Actor{ID: "ada", Role: appctx.RoleAdmin})
	require.NoError(t, err)

	sign := func(claims Claims, secret string, method jwt.SigningMethod) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	valid := func(role string) Claims {
		return Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "voltstock",
				Subject:   "ada",
				ExpiresAt: jwt.NewNumericDate(svc.now().Add(time.Hour)),
			},
			Role: role,
		}
	}

	expired := valid("admin")
	expired.ExpiresAt = jwt.NewNumericDate(svc.now().Add(-time.Minute))
	foreign := valid("admin")
	foreign.Issuer = "someone-else"
	noSubject := valid("admin")
	noSubject.Subject = ""
	noExpiry := valid("admin")
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(valid("admin"), "other-secret", jwt.SigningMethodHS256)},
		{"wrong algorithm", sign(valid("admin"), "test-secret", jwt.SigningMethodHS512)},
		{"expired", sign(expired, "test-secret", jwt.SigningMethodHS256)},
		{"foreign issuer", sign(foreign, "test-secret", jwt.SigningMethodHS256)},
		{"no subject", sign(noSubject, "test-secret", jwt.SigningMethodHS256)},
		{"no expiry", sign(noExpiry, "test-secret", jwt.SigningMethodHS256)},
		{"unknown role", sign(valid("owner"), "test-secret", jwt.SigningMethodHS256)},
		{"truncated", good[:len(good)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor, err := svc.ValidateToken(tt.token)
			require.Error(t, err)
			assert.Nil(t, actor)
			assert.Equal(t, http.StatusUnauthorized, apperror.GetHTTPStatus(err))
		})
	}
}
