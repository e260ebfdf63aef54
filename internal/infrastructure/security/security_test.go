package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("s3cret", "edutok")
	token, err := issuer.Issue(Identity{UID: "u1", Email: "a@escola.br", Name: "Ana"}, KindAccess, time.Hour)
	require.NoError(t, err)

	identity, err := issuer.Validate(token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UID)
	assert.Equal(t, "Ana", identity.Name)
}

func TestTokenRejections(t *testing.T) {
	issuer := NewTokenIssuer("s3cret", "edutok")
	token, err := issuer.Issue(Identity{UID: "u1"}, KindQR, time.Hour)
	require.NoError(t, err)

	_, err = issuer.Validate(token, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong kind")

	_, err = NewTokenIssuer("other", "edutok").Validate(token, KindQR)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong secret")

	_, err = NewTokenIssuer("s3cret", "someone-else").Validate(token, KindQR)
	assert.ErrorIs(t, err, ErrInvalidToken, "wrong issuer")

	past := NewTokenIssuer("s3cret", "edutok").WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	expired, err := past.Issue(Identity{UID: "u1"}, KindAccess, time.Hour)
	require.NoError(t, err)
	_, err = issuer.Validate(expired, KindAccess)
	assert.ErrorIs(t, err, ErrInvalidToken, "expired")

	_, err = issuer.Issue(Identity{}, KindAccess, time.Hour)
	assert.Error(t, err)
}

func TestSealerRoundTrip(t *testing.T) {
	sealer, err := NewSealer("s3cret")
	require.NoError(t, err)

	sealed, err := sealer.Seal("custom-token")
	require.NoError(t, err)
	assert.NotContains(t, sealed, "custom-token")

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "custom-token", opened)

	other, err := NewSealer("different")
	require.NoError(t, err)
	_, err = other.Open(sealed)
	assert.ErrorIs(t, err, ErrCiphertext)

	_, err = NewSealer("")
	assert.Error(t, err)
}

func TestSecretHashing(t *testing.T) {
	hash, err := HashSecret("qr-secret")
	require.NoError(t, err)
	assert.True(t, CompareSecret(hash, "qr-secret"))
	assert.False(t, CompareSecret(hash, "guess"))
}

func TestGenerators(t *testing.T) {
	a, b := GenerateULID(), GenerateULID()
	assert.Len(t, a, 26)
	assert.NotEqual(t, a, b)

	token, err := GenerateSecureToken(24)
	require.NoError(t, err)
	assert.Len(t, token, 32)
}
