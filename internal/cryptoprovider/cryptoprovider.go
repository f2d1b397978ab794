// Package cryptoprovider implements the Cryppto Provider contract: the
// narrow external-collaborator boundary the engine uses for key
// generation, signing, sealing and fingerprint-keyed trust bookkeeping.
// The wire-level semantics above this boundary never reach into a
// keypair directly — everything is addressed by fingerprint.
package cryptoprovider

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/nacl/box"
	"golang.org/x/crypto/nacl/sign"

	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/logging"
)

var log = logging.Logger("cryptoprovider")

var (
	ErrKeyNotFound     = errors.New("cryptoprovider: key not found")
	ErrBadKeyMaterial  = errors.New("cryptoprovider: malformed key material")
	ErrNoPrivateKey    = errors.New("cryptoprovider: no private key held for fingerprint")
	ErrDecryptFailed   = errors.New("cryptoprovider: decryption failed")
	ErrVerifyFailed    = errors.New("cryptoprovider: signature verification failed")
)

const (
	boxKeySize    = 32
	signPubSize   = 32
	signPrivSize  = 64
	pubBlobSize   = boxKeySize + signPubSize
	privBlobSize  = boxKeySize + signPrivSize
	nonceSize     = 24
	fingerprintSize = 20
)

// keyEntry is the keyring's private bookkeeping per fingerprint. Own
// entries carry both halves of both keypairs; imported peer entries carry
// only the public halves.
type keyEntry struct {
	boxPub  [boxKeySize]byte
	boxPriv [boxKeySize]byte
	signPub [signPubSize]byte
	signPriv [signPrivSize]byte

	hasPrivate bool
	revoked    bool
	mistrusted bool
}

// Provider is the default Crypto Provider: curve25519 sealed boxes for
// encrypt/decrypt (golang.org/x/crypto/nacl/box), ed25519-backed
// sign/verify (golang.org/x/crypto/nacl/sign), fingerprints derived from
// blake2b-256 of the concatenated public halves, generalized to a keyring
// of many fingerprinted keys rather than a single node identity key.
type Provider struct {
	mu      sync.Mutex
	keyring map[string]*keyEntry
}

// New returns an empty keyring-backed Provider.
func New() *Provider {
	return &Provider{keyring: make(map[string]*keyEntry)}
}

func fingerprintOf(pub []byte) string {
	sum := blake2b.Sum256(pub)
	return hex.EncodeToString(sum[:fingerprintSize])
}

// GenerateKeyPair creates a fresh box+sign keypair, stores it under its
// fingerprint and returns the resulting key descriptor.
func (p *Provider) GenerateKeyPair() (identity.Key, error) {
	boxPub, boxPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return identity.Key{}, fmt.Errorf("generate box keypair: %w", err)
	}
	signPub, signPriv, err := sign.GenerateKey(rand.Reader)
	if err != nil {
		return identity.Key{}, fmt.Errorf("generate sign keypair: %w", err)
	}

	pub := append(append([]byte{}, boxPub[:]...), signPub[:]...)
	fpr := fingerprintOf(pub)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.keyring[fpr] = &keyEntry{
		boxPub: *boxPub, boxPriv: *boxPriv,
		signPub: *signPub, signPriv: *signPriv,
		hasPrivate: true,
	}
	log.Debugf("generated key %s", fpr)
	return identity.Key{Fingerprint: fpr}, nil
}

// Sign produces a detached 64-byte ed25519 signature over data using the
// signing half of fpr's keypair.
func (p *Provider) Sign(fpr string, data []byte) ([]byte, error) {
	entry, err := p.entry(fpr)
	if err != nil {
		return nil, err
	}
	if !entry.hasPrivate {
		return nil, ErrNoPrivateKey
	}
	signed := sign.Sign(nil, data, &entry.signPriv)
	return signed[:len(signed)-len(data)], nil
}

// Verify checks a detached signature produced by Sign against fpr's
// public signing key.
func (p *Provider) Verify(fpr string, data, sig []byte) (bool, error) {
	entry, err := p.entry(fpr)
	if err != nil {
		return false, err
	}
	signed := append(append([]byte{}, sig...), data...)
	opened, ok := sign.Open(nil, signed, &entry.signPub)
	if !ok || string(opened) != string(data) {
		return false, nil
	}
	return true, nil
}

// Encrypt seals plaintext to recipientFpr's box public key using an
// ephemeral sender keypair — an anonymous sealed box, so Encrypt needs no
// sender fingerprint of its own. The ephemeral public key and nonce are
// prefixed to the returned ciphertext for Decrypt to recover.
func (p *Provider) Encrypt(recipientFpr string, plaintext []byte) ([]byte, error) {
	entry, err := p.entry(recipientFpr)
	if err != nil {
		return nil, err
	}

	ephPub, ephPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ephemeral keypair: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}

	sealed := box.Seal(nil, plaintext, &nonce, &entry.boxPub, ephPriv)
	out := make([]byte, 0, boxKeySize+nonceSize+len(sealed))
	out = append(out, ephPub[:]...)
	out = append(out, nonce[:]...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt opens a ciphertext produced by Encrypt using ownFpr's box
// private key.
func (p *Provider) Decrypt(ownFpr string, ciphertext []byte) ([]byte, error) {
	entry, err := p.entry(ownFpr)
	if err != nil {
		return nil, err
	}
	if !entry.hasPrivate {
		return nil, ErrNoPrivateKey
	}
	if len(ciphertext) < boxKeySize+nonceSize {
		return nil, ErrBadKeyMaterial
	}

	var ephPub [boxKeySize]byte
	copy(ephPub[:], ciphertext[:boxKeySize])
	var nonce [nonceSize]byte
	copy(nonce[:], ciphertext[boxKeySize:boxKeySize+nonceSize])
	sealed := ciphertext[boxKeySize+nonceSize:]

	plaintext, ok := box.Open(nil, sealed, &nonce, &ephPub, &entry.boxPriv)
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}

// Export returns the public and (if held) private key material for fpr,
// in the same concatenated box||sign layout Import expects.
func (p *Provider) Export(fpr string) (pub, priv []byte, err error) {
	entry, err := p.entry(fpr)
	if err != nil {
		return nil, nil, err
	}
	pub = make([]byte, 0, pubBlobSize)
	pub = append(pub, entry.boxPub[:]...)
	pub = append(pub, entry.signPub[:]...)

	if entry.hasPrivate {
		priv = make([]byte, 0, privBlobSize)
		priv = append(priv, entry.boxPriv[:]...)
		priv = append(priv, entry.signPriv[:]...)
	}
	return pub, priv, nil
}

// Import installs key material exported by Export (or received as a
// distribution attachment) into the keyring and returns its fingerprint.
// A nil/empty priv imports a public-only (peer) key.
func (p *Provider) Import(pub, priv []byte) (string, error) {
	if len(pub) != pubBlobSize {
		return "", ErrBadKeyMaterial
	}
	fpr := fingerprintOf(pub)

	entry := &keyEntry{}
	copy(entry.boxPub[:], pub[:boxKeySize])
	copy(entry.signPub[:], pub[boxKeySize:])

	if len(priv) > 0 {
		if len(priv) != privBlobSize {
			return "", ErrBadKeyMaterial
		}
		copy(entry.boxPriv[:], priv[:boxKeySize])
		copy(entry.signPriv[:], priv[boxKeySize:])
		entry.hasPrivate = true
	}

	p.mu.Lock()
	p.keyring[fpr] = entry
	p.mu.Unlock()
	log.Debugf("imported key %s (private=%v)", fpr, entry.hasPrivate)
	return fpr, nil
}

// Revoke marks fpr as revoked; it remains in the keyring so past
// ciphertext can still be decrypted (own keys) or the revocation
// remembered (peer keys).
func (p *Provider) Revoke(fpr string) error {
	entry, err := p.entry(fpr)
	if err != nil {
		return err
	}
	p.mu.Lock()
	entry.revoked = true
	p.mu.Unlock()
	return nil
}

func (p *Provider) IsRevoked(fpr string) bool {
	entry, err := p.entry(fpr)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return entry.revoked
}

// Mistrust marks fpr as explicitly not to be trusted as a default for any
// identity, independent of revocation.
func (p *Provider) Mistrust(fpr string) error {
	entry, err := p.entry(fpr)
	if err != nil {
		return err
	}
	p.mu.Lock()
	entry.mistrusted = true
	p.mu.Unlock()
	return nil
}

func (p *Provider) IsMistrusted(fpr string) bool {
	entry, err := p.entry(fpr)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return entry.mistrusted
}

// ClearMistrust lifts a prior Mistrust call — used when a peer key is
// reset and the mistrust flag no longer applies to anything.
func (p *Provider) ClearMistrust(fpr string) error {
	entry, err := p.entry(fpr)
	if err != nil {
		return err
	}
	p.mu.Lock()
	entry.mistrusted = false
	p.mu.Unlock()
	return nil
}

// Delete removes fpr from the keyring entirely. It is idempotent: deleting
// an unknown fingerprint is not an error, matching the "best-effort
// cleanup" the peer-key reset path needs.
func (p *Provider) Delete(fpr string) error {
	p.mu.Lock()
	delete(p.keyring, fpr)
	p.mu.Unlock()
	return nil
}

func (p *Provider) HasPrivate(fpr string) bool {
	entry, err := p.entry(fpr)
	if err != nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return entry.hasPrivate
}

// RawRating is the Crypto Provider's own rough trust signal for a key —
// independent of the Store's trust table — used to seed a comm-type when
// a key is installed fresh (e.g. after a reset) with no prior trust
// history. It never returns a confirmed rating: confirmation is a human
// action per spec.
func (p *Provider) RawRating(fpr string) (identity.Rating, error) {
	entry, err := p.entry(fpr)
	if err != nil {
		return identity.RatingUndefined, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case entry.mistrusted:
		return identity.RatingMistrust, nil
	case entry.revoked:
		return identity.RatingHaveNoKey, nil
	case entry.hasPrivate:
		return identity.RatingTrusted, nil
	default:
		return identity.RatingReliable, nil
	}
}

func (p *Provider) entry(fpr string) (*keyEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.keyring[fpr]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return entry, nil
}
