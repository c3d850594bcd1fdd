package main

import (
	"path/filepath"
	"testing"
	"time"

	"estate-graphql/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildClaims(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	claims := buildClaims(tokenOptions{
		issuer:   "https://issuer.example",
		audience: "estate-graphql, other",
		subject:  "alice",
		plan:     "premium",
		roles:    "analyst,,admin",
		expires:  time.Hour,
	}, now)

	assert.Equal(t, []string{"estate-graphql", "other"}, claims["aud"])
	assert.Equal(t, now.Add(time.Hour).Unix(), claims["exp"])

	// The server must read back the same principal.
	principal := auth.FromClaims(map[string]interface{}(claims))
	assert.True(t, principal.Has(auth.CapabilityPremium))
	assert.Equal(t, "alice", principal.Subject)
}

func TestBuildClaims_OmitsEmptyOptionalClaims(t *testing.T) {
	claims := buildClaims(tokenOptions{audience: "estate-graphql", expires: time.Minute}, time.Now())
	assert.NotContains(t, claims, auth.PlanClaim)
	assert.NotContains(t, claims, auth.RolesClaim)
}

func TestEnsureKeyPair(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "jwt_private.pem")
	require.NoError(t, ensureKeyPair(path))

	key, err := loadPrivateKey(path)
	require.NoError(t, err)

	// A second call keeps the existing key.
	require.NoError(t, ensureKeyPair(path))
	again, err := loadPrivateKey(path)
	require.NoError(t, err)
	assert.True(t, key.Equal(again))
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "jwt_public.pem"))
}
