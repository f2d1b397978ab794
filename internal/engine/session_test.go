package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshcore/trustengine/internal/cryptoprovider"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/peerrating"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
)

func newTestSession(t *testing.T, tr transport.Transport) (*Session, store.Store, *cryptoprovider.Provider) {
	t.Helper()
	crypto := cryptoprovider.New()
	st := store.NewMemStore()
	return NewSession(st, crypto, peerrating.New(), tr), st, crypto
}

func registerOwn(t *testing.T, st store.Store, crypto *cryptoprovider.Provider, userID, address string) identity.Identity {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id := identity.Identity{UserID: userID, Address: address, KeyFingerprint: key.Fingerprint, Flags: identity.FlagOwn, CommType: identity.CommPEP, Confirmed: true}
	require.NoError(t, st.SetIdentity(context.Background(), id))
	require.NoError(t, st.SetDefaultKey(context.Background(), userID, address, key.Fingerprint))
	return id
}

func registerReliablePeer(t *testing.T, st store.Store, crypto *cryptoprovider.Provider, userID, address string) identity.Identity {
	t.Helper()
	key, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	id := identity.Identity{UserID: userID, Address: address, KeyFingerprint: key.Fingerprint, CommType: identity.CommStrongUnconfirmed}
	require.NoError(t, st.SetIdentity(context.Background(), id))
	require.NoError(t, st.SetDefaultKey(context.Background(), userID, address, key.Fingerprint))
	return id
}

// TestCreateGroupRoundTripsThroughDispatch exercises the full pipeline:
// Groups.CreateGroup builds, signs and encrypts a groupCreate command,
// MemTransport stands in for the wire, and feeding the captured message
// back into Dispatch decrypts, verifies and routes it to onGroupCreate on
// the recipient's own Session.
func TestCreateGroupRoundTripsThroughDispatch(t *testing.T) {
	tr := transport.NewMem()

	managerSession, managerStore, managerCrypto := newTestSession(t, tr)
	manager := registerOwn(t, managerStore, managerCrypto, "alice", "alice@example.org")

	memberSession, memberStore, memberCrypto := newTestSession(t, tr)
	member := registerOwn(t, memberStore, memberCrypto, "bob", "bob@example.org")

	// Each session must know the other's identity to validate sender/recipient.
	require.NoError(t, managerStore.SetIdentity(context.Background(), member))
	require.NoError(t, managerStore.SetDefaultKey(context.Background(), member.UserID, member.Address, member.KeyFingerprint))
	memberAsReliable := member
	memberAsReliable.CommType = identity.CommStrongUnconfirmed
	require.NoError(t, managerStore.SetIdentity(context.Background(), memberAsReliable))

	require.NoError(t, memberStore.SetIdentity(context.Background(), manager))
	require.NoError(t, memberStore.SetDefaultKey(context.Background(), manager.UserID, manager.Address, manager.KeyFingerprint))

	// ...and each Crypto Provider must hold the other's public key.
	memberPub, _, err := memberCrypto.Export(member.KeyFingerprint)
	require.NoError(t, err)
	_, err = managerCrypto.Import(memberPub, nil)
	require.NoError(t, err)
	managerPub, _, err := managerCrypto.Export(manager.KeyFingerprint)
	require.NoError(t, err)
	_, err = memberCrypto.Import(managerPub, nil)
	require.NoError(t, err)

	groupIdentity := identity.Identity{UserID: "group1", Address: "group1@example.org"}
	result, err := managerSession.Groups.CreateGroup(context.Background(), groupIdentity, manager, []identity.Identity{memberAsReliable})
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)

	sent := tr.Sent()
	require.Len(t, sent, 1)
	outMsg := sent[0]

	err = memberSession.Dispatch(context.Background(), RawInbound{
		ToAddress:   outMsg.ToAddress,
		FromAddress: outMsg.FromAddress,
		Ciphertext:  outMsg.Envelope,
		Attachments: outMsg.Attachments,
	})
	require.NoError(t, err)

	exists, err := memberStore.ExistsGroup(context.Background(), groupIdentity.Address)
	require.NoError(t, err)
	require.True(t, exists)

	adopted, err := memberStore.GetIdentityByAddress(context.Background(), groupIdentity.Address)
	require.NoError(t, err)
	require.True(t, adopted.IsOwn())
	require.True(t, adopted.IsGroupIdentity())
}

func TestDispatchUnknownRecipientIsCannotFindIdentity(t *testing.T) {
	tr := transport.NewMem()
	session, _, _ := newTestSession(t, tr)

	err := session.Dispatch(context.Background(), RawInbound{ToAddress: "nobody@example.org", FromAddress: "nobody-else@example.org", Ciphertext: []byte("garbage")})
	require.Error(t, err)
}

func TestSessionRecentEventsCapturesGroupActivity(t *testing.T) {
	tr := transport.NewMem()
	session, st, crypto := newTestSession(t, tr)
	manager := registerOwn(t, st, crypto, "alice", "alice@example.org")
	groupIdentity := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	_, err := session.Groups.CreateGroup(context.Background(), groupIdentity, manager, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		for _, evt := range session.RecentEvents() {
			if evt.Source == "group" && evt.Type == "group-created" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}
