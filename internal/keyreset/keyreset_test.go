package keyreset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshcore/trustengine/internal/codec"
	"github.com/meshcore/trustengine/internal/cryptoprovider"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/outbound"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
)

type fixture struct {
	crypto *cryptoprovider.Provider
	store  store.Store
	tr     *transport.MemTransport
	mgr    *Manager
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	crypto := cryptoprovider.New()
	st := store.NewMemStore()
	tr := transport.NewMem()
	builder := outbound.New(crypto, st, tr)
	return fixture{crypto: crypto, store: st, tr: tr, mgr: New(st, crypto, builder)}
}

func ownIdentity(t *testing.T, f fixture, userID, address string, flags identity.Flag) identity.Identity {
	t.Helper()
	key, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	id := identity.Identity{UserID: userID, Address: address, KeyFingerprint: key.Fingerprint, Flags: identity.FlagOwn | flags, CommType: identity.CommPEP, Confirmed: true}
	require.NoError(t, f.store.SetIdentity(context.Background(), id))
	require.NoError(t, f.store.SetDefaultKey(context.Background(), userID, address, key.Fingerprint))
	require.NoError(t, f.store.SetTrust(context.Background(), identity.TrustEntry{UserID: userID, KeyFingerprint: key.Fingerprint, CommType: identity.CommPEP, Confirmed: true}))
	return id
}

func TestSingleResetOwnRevokesAndReplacesKey(t *testing.T) {
	f := newFixture(t)
	alice := ownIdentity(t, f, "alice", "alice@example.org", 0)

	err := f.mgr.KeyReset(context.Background(), alice.KeyFingerprint, &alice)
	require.NoError(t, err)
	require.True(t, f.crypto.IsRevoked(alice.KeyFingerprint))
	require.True(t, f.crypto.IsMistrusted(alice.KeyFingerprint))

	updated, err := f.store.GetIdentityByUserID(context.Background(), "alice")
	require.NoError(t, err)
	require.NotEqual(t, alice.KeyFingerprint, updated.KeyFingerprint)

	rep, ok, err := f.store.GetReplacement(context.Background(), alice.KeyFingerprint)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, updated.KeyFingerprint, rep.ReplacementFpr)
}

func TestKeyResetRejectsOwnIdentityWithoutPrivateKey(t *testing.T) {
	f := newFixture(t)
	other := cryptoprovider.New()
	foreignKey, err := other.GenerateKeyPair()
	require.NoError(t, err)

	id := identity.Identity{UserID: "alice", Address: "alice@example.org", KeyFingerprint: foreignKey.Fingerprint, Flags: identity.FlagOwn}
	err = f.mgr.KeyReset(context.Background(), foreignKey.Fingerprint, &id)
	require.Error(t, err)
}

func TestSingleResetPeerClearsTrustAndDeletesKey(t *testing.T) {
	f := newFixture(t)
	key, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	peer := identity.Identity{UserID: "bob", Address: "bob@example.org", KeyFingerprint: key.Fingerprint}
	require.NoError(t, f.store.SetIdentity(context.Background(), peer))
	require.NoError(t, f.store.SetTrust(context.Background(), identity.TrustEntry{UserID: "bob", KeyFingerprint: key.Fingerprint, CommType: identity.CommPEP}))
	require.NoError(t, f.store.SetDefaultKey(context.Background(), "bob", "bob@example.org", key.Fingerprint))

	err = f.mgr.KeyReset(context.Background(), key.Fingerprint, &peer)
	require.NoError(t, err)

	_, terr := f.store.GetTrust(context.Background(), "bob", key.Fingerprint)
	require.Error(t, terr)
}

func TestGroupedOwnResetSendsSelfMessageAndFansOutDeviceGroup(t *testing.T) {
	f := newFixture(t)
	phone := ownIdentity(t, f, "alice", "alice@phone", identity.FlagDeviceGroup)

	// second device sharing the same key
	laptop := identity.Identity{UserID: "alice", Address: "alice@laptop", KeyFingerprint: phone.KeyFingerprint, Flags: identity.FlagOwn | identity.FlagDeviceGroup, CommType: identity.CommPEP, Confirmed: true}
	require.NoError(t, f.store.SetIdentity(context.Background(), laptop))
	require.NoError(t, f.store.SetDefaultKey(context.Background(), laptop.UserID, laptop.Address, laptop.KeyFingerprint))

	err := f.mgr.KeyReset(context.Background(), phone.KeyFingerprint, &phone)
	require.NoError(t, err)

	require.True(t, f.crypto.IsRevoked(phone.KeyFingerprint))
	require.Len(t, f.tr.Sent(), 1, "expected exactly one self-addressed command-list message")

	updatedPhone, err := f.store.GetIdentity(context.Background(), "alice", "alice@phone")
	require.NoError(t, err)
	updatedLaptop, err := f.store.GetIdentity(context.Background(), "alice", "alice@laptop")
	require.NoError(t, err)
	require.NotEqual(t, phone.KeyFingerprint, updatedPhone.KeyFingerprint)
	require.NotEqual(t, phone.KeyFingerprint, updatedLaptop.KeyFingerprint)
}

func TestNotifyRecentContactsRequiresAsymmetricContact(t *testing.T) {
	f := newFixture(t)
	alice := ownIdentity(t, f, "alice", "alice@example.org", 0)
	peerKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	peer := identity.Identity{UserID: "bob", Address: "bob@example.org", KeyFingerprint: peerKey.Fingerprint, CommType: identity.CommPEP}
	require.NoError(t, f.store.SetIdentity(context.Background(), peer))
	require.NoError(t, f.store.SetDefaultKey(context.Background(), "bob", "bob@example.org", peerKey.Fingerprint))

	// peer never contacted alice — no notification should be attempted.
	err = f.mgr.notifyRecentContacts(context.Background(), alice, alice.KeyFingerprint, "new-fpr-placeholder")
	require.NoError(t, err)
	require.Empty(t, f.tr.Sent())
}

func TestReceiveKeyResetRejectsRevokedSigner(t *testing.T) {
	f := newFixture(t)
	signerKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, f.crypto.Revoke(signerKey.Fingerprint))

	msg := InboundMessage{SignerFingerprint: signerKey.Fingerprint, FromAddress: "bob@example.org"}
	err = f.mgr.ReceiveKeyReset(context.Background(), msg, codec.KeyResetList{Commands: []codec.KeyResetCommand{{Identity: codec.IdentityRef{Address: "x"}, NewFpr: "y"}}})
	require.Error(t, err)
}

func TestReceiveKeyResetRejectsEmptyCommandList(t *testing.T) {
	f := newFixture(t)
	signerKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)

	msg := InboundMessage{SignerFingerprint: signerKey.Fingerprint, FromAddress: "bob@example.org"}
	err = f.mgr.ReceiveKeyReset(context.Background(), msg, codec.KeyResetList{})
	require.Error(t, err)
}

func TestReceiveKeyResetUnknownOldKeyIsKeyNotReset(t *testing.T) {
	f := newFixture(t)
	signerKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	sender := identity.Identity{UserID: "bob", Address: "bob@example.org", KeyFingerprint: signerKey.Fingerprint}
	require.NoError(t, f.store.SetIdentity(context.Background(), sender))

	newKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	pub, priv, err := f.crypto.Export(newKey.Fingerprint)
	require.NoError(t, err)

	msg := InboundMessage{
		SignerFingerprint: signerKey.Fingerprint,
		FromAddress:       "bob@example.org",
		Attachments:       []transport.Attachment{{Data: append(append([]byte{}, pub...), priv...)}},
	}
	list := codec.KeyResetList{Commands: []codec.KeyResetCommand{{
		Identity: codec.IdentityRef{UserID: "bob", Address: "bob@example.org", KeyFingerprint: "unknown-old-fpr"},
		NewFpr:   newKey.Fingerprint,
	}}}

	err = f.mgr.ReceiveKeyReset(context.Background(), msg, list)
	require.Error(t, err)
}

func TestReceiveKeyResetAppliesValidatedPeerReset(t *testing.T) {
	f := newFixture(t)
	signerKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	sender := identity.Identity{UserID: "bob", Address: "bob@example.org", KeyFingerprint: signerKey.Fingerprint}
	require.NoError(t, f.store.SetIdentity(context.Background(), sender))
	oldKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, f.store.SetTrust(context.Background(), identity.TrustEntry{UserID: "bob", KeyFingerprint: oldKey.Fingerprint, CommType: identity.CommStrongUnconfirmed}))
	require.NoError(t, f.crypto.Revoke(oldKey.Fingerprint))

	newKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	pub, priv, err := f.crypto.Export(newKey.Fingerprint)
	require.NoError(t, err)

	msg := InboundMessage{
		SignerFingerprint: signerKey.Fingerprint,
		FromAddress:       "bob@example.org",
		Attachments:       []transport.Attachment{{Data: append(append([]byte{}, pub...), priv...)}},
	}
	list := codec.KeyResetList{Commands: []codec.KeyResetCommand{{
		Identity: codec.IdentityRef{UserID: "bob", Address: "bob@example.org", KeyFingerprint: oldKey.Fingerprint},
		NewFpr:   newKey.Fingerprint,
	}}}

	err = f.mgr.ReceiveKeyReset(context.Background(), msg, list)
	require.NoError(t, err)

	updated, err := f.store.GetIdentityByAddress(context.Background(), "bob@example.org")
	require.NoError(t, err)
	require.Equal(t, newKey.Fingerprint, updated.KeyFingerprint)
}
