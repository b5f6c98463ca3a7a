package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"skillmap/pkg/ontology"
)

func testUser() *ontology.User {
	return &ontology.User{
		ID:             "user-1",
		Email:          "manager@techpartner.com",
		Role:           ontology.RolePartnerAdmin,
		OrganizationID: "org-1",
	}
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("manager123")
	require.NoError(t, err)
	assert.NotEqual(t, "manager123", hash)
	assert.True(t, CheckPasswordHash("manager123", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
}

func TestDummyHash(t *testing.T) {
	h := DummyHash()
	assert.Equal(t, h, DummyHash())

	cost, err := bcrypt.Cost([]byte(h))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
	assert.False(t, CheckPasswordHash("", h))
	assert.False(t, CheckPasswordHash("password123", h))
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, "skillmap")

	token, expiresAt, err := m.Generate(testUser())
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, ontology.RolePartnerAdmin, claims.Role)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, "manager@techpartner.com", claims.Email)
}

func TestValidate_Rejects(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour, "skillmap")
	token, _, err := m.Generate(testUser())
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour, "skillmap")
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenManager("test-secret", time.Hour, "someone-else")
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager("test-secret", time.Hour, "skillmap")
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
