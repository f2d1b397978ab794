package cryptoprovider

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshcore/trustengine/internal/identity"
)

func TestGenerateSignVerify(t *testing.T) {
	p := New()
	key, err := p.GenerateKeyPair()
	require.NoError(t, err)
	require.NotEmpty(t, key.Fingerprint)

	msg := []byte("groupCreate envelope payload")
	sig, err := p.Sign(key.Fingerprint, msg)
	require.NoError(t, err)

	ok, err := p.Verify(key.Fingerprint, msg, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = p.Verify(key.Fingerprint, []byte("tampered"), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	p := New()
	recipient, err := p.GenerateKeyPair()
	require.NoError(t, err)

	plaintext := []byte("the group private key material")
	ciphertext, err := p.Encrypt(recipient.Fingerprint, plaintext)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	opened, err := p.Decrypt(recipient.Fingerprint, ciphertext)
	require.NoError(t, err)
	require.Equal(t, plaintext, opened)
}

func TestExportImportRoundtrip(t *testing.T) {
	src := New()
	key, err := src.GenerateKeyPair()
	require.NoError(t, err)

	pub, priv, err := src.Export(key.Fingerprint)
	require.NoError(t, err)
	require.NotEmpty(t, priv)

	dst := New()
	fpr, err := dst.Import(pub, priv)
	require.NoError(t, err)
	require.Equal(t, key.Fingerprint, fpr)
	require.True(t, dst.HasPrivate(fpr))

	// Public-only import (peer key) carries no private half.
	peer := New()
	pubFpr, err := peer.Import(pub, nil)
	require.NoError(t, err)
	require.False(t, peer.HasPrivate(pubFpr))
}

func TestRevokeAndMistrust(t *testing.T) {
	p := New()
	key, err := p.GenerateKeyPair()
	require.NoError(t, err)

	require.False(t, p.IsRevoked(key.Fingerprint))
	require.NoError(t, p.Revoke(key.Fingerprint))
	require.True(t, p.IsRevoked(key.Fingerprint))

	require.False(t, p.IsMistrusted(key.Fingerprint))
	require.NoError(t, p.Mistrust(key.Fingerprint))
	require.True(t, p.IsMistrusted(key.Fingerprint))

	rating, err := p.RawRating(key.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, identity.RatingMistrust, rating)
}

func TestUnknownFingerprint(t *testing.T) {
	p := New()
	_, err := p.Sign("deadbeef", []byte("x"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}
