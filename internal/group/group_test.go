package group

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meshcore/trustengine/internal/codec"
	"github.com/meshcore/trustengine/internal/cryptoprovider"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/outbound"
	"github.com/meshcore/trustengine/internal/peerrating"
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
	mgr := New(st, crypto, peerrating.New(), builder)
	return fixture{crypto: crypto, store: st, tr: tr, mgr: mgr}
}

func ownIdentity(t *testing.T, f fixture, userID, address string) identity.Identity {
	t.Helper()
	key, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	id := identity.Identity{UserID: userID, Address: address, KeyFingerprint: key.Fingerprint, Flags: identity.FlagOwn, CommType: identity.CommPEP, Confirmed: true}
	require.NoError(t, f.store.SetIdentity(context.Background(), id))
	require.NoError(t, f.store.SetDefaultKey(context.Background(), userID, address, key.Fingerprint))
	return id
}

func reliablePeer(t *testing.T, f fixture, userID, address string) identity.Identity {
	t.Helper()
	key, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)
	id := identity.Identity{UserID: userID, Address: address, KeyFingerprint: key.Fingerprint, CommType: identity.CommStrongUnconfirmed}
	require.NoError(t, f.store.SetIdentity(context.Background(), id))
	require.NoError(t, f.store.SetDefaultKey(context.Background(), userID, address, key.Fingerprint))
	return id
}

func TestCreateGroupFansOutToReliableMembers(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	member := reliablePeer(t, f, "bob", "bob@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	result, err := f.mgr.CreateGroup(context.Background(), groupID, manager, []identity.Identity{member})
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.Empty(t, result.Failures)
	require.Len(t, f.tr.Sent(), 1)

	exists, err := f.store.ExistsGroup(context.Background(), groupID.Address)
	require.NoError(t, err)
	require.True(t, exists)
}

func TestCreateGroupRejectsNonOwnManager(t *testing.T) {
	f := newFixture(t)
	manager := reliablePeer(t, f, "alice", "alice@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	_, err := f.mgr.CreateGroup(context.Background(), groupID, manager, nil)
	require.Error(t, err)
}

func TestCreateGroupRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	_, err := f.mgr.CreateGroup(context.Background(), groupID, manager, nil)
	require.NoError(t, err)

	_, err = f.mgr.CreateGroup(context.Background(), groupID, manager, nil)
	require.Error(t, err)
}

func TestGroupJoinIsIdempotent(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	asMember := ownIdentity(t, f, "bob", "bob@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	require.NoError(t, f.store.CreateGroup(context.Background(), groupID.Address, manager.UserID))
	require.NoError(t, f.store.AddOwnMembership(context.Background(), groupID.Address, manager.UserID, asMember.UserID))

	require.NoError(t, f.mgr.GroupJoin(context.Background(), groupID, asMember))
	require.Len(t, f.tr.Sent(), 1)

	// Second call is a no-op: no additional send.
	require.NoError(t, f.mgr.GroupJoin(context.Background(), groupID, asMember))
	require.Len(t, f.tr.Sent(), 1)
}

func TestLeaveGroupSucceedsEvenIfNeverJoined(t *testing.T) {
	f := newFixture(t)
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}
	member := ownIdentity(t, f, "bob", "bob@example.org")

	err := f.mgr.LeaveGroup(context.Background(), groupID, member)
	require.NoError(t, err)
}

func TestGroupDissolveAsOwnManagerRevokesAndNotifies(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	member := reliablePeer(t, f, "bob", "bob@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	result, err := f.mgr.CreateGroup(context.Background(), groupID, manager, []identity.Identity{member})
	require.NoError(t, err)
	require.Equal(t, 1, result.Sent)
	require.NoError(t, f.store.SetMemberJoined(context.Background(), groupID.Address, member.UserID, store.MemberJoined))

	groupRow, err := f.store.GetGroup(context.Background(), groupID.Address)
	require.NoError(t, err)
	groupIdentity, err := f.store.GetIdentityByAddress(context.Background(), groupID.Address)
	require.NoError(t, err)
	_ = groupRow

	require.NoError(t, f.mgr.GroupDissolve(context.Background(), groupIdentity, manager))
	require.True(t, f.crypto.IsRevoked(groupIdentity.KeyFingerprint))
	require.Len(t, f.tr.Sent(), 2) // groupCreate, then groupDissolve to the joined member

	active, err := f.store.IsGroupActive(context.Background(), groupID.Address)
	require.NoError(t, err)
	require.False(t, active)
}

func TestGroupRatingEmptyMemberListIsFullyAnonymous(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}
	require.NoError(t, f.store.CreateGroup(context.Background(), groupID.Address, manager.UserID))

	rating, err := f.mgr.GroupRating(context.Background(), groupID, manager)
	require.NoError(t, err)
	require.Equal(t, identity.RatingFullyAnonymous, rating)
}

func TestGroupRatingTakesMinimumAcrossMembers(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	weak := reliablePeer(t, f, "bob", "bob@example.org")
	strong := identity.Identity{UserID: "carol", Address: "carol@example.org", CommType: identity.CommPEP, Confirmed: true}
	require.NoError(t, f.store.SetIdentity(context.Background(), strong))

	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}
	require.NoError(t, f.store.CreateGroup(context.Background(), groupID.Address, manager.UserID))
	require.NoError(t, f.store.AddMember(context.Background(), groupID.Address, weak.UserID))
	require.NoError(t, f.store.AddMember(context.Background(), groupID.Address, strong.UserID))
	require.NoError(t, f.store.SetMemberJoined(context.Background(), groupID.Address, weak.UserID, store.MemberJoined))
	require.NoError(t, f.store.SetMemberJoined(context.Background(), groupID.Address, strong.UserID, store.MemberJoined))

	rating, err := f.mgr.GroupRating(context.Background(), groupID, manager)
	require.NoError(t, err)
	require.Equal(t, identity.RatingReliable, rating) // min(reliable, trusted-and-anonymized)
}

func TestGroupRemoveMemberTriggersKeyReset(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	member := reliablePeer(t, f, "bob", "bob@example.org")
	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}

	_, err := f.mgr.CreateGroup(context.Background(), groupID, manager, []identity.Identity{member})
	require.NoError(t, err)

	groupIdentity, err := f.store.GetIdentityByAddress(context.Background(), groupID.Address)
	require.NoError(t, err)

	resetCalled := false
	f.mgr.SetKeyResetter(resetterFunc(func(ctx context.Context, fpr string, id *identity.Identity) error {
		resetCalled = true
		require.Equal(t, groupIdentity.KeyFingerprint, fpr)
		return nil
	}))

	err = f.mgr.GroupRemoveMember(context.Background(), groupIdentity, member)
	require.NoError(t, err)
	require.True(t, resetCalled)
}

type resetterFunc func(ctx context.Context, fpr string, id *identity.Identity) error

func (r resetterFunc) KeyReset(ctx context.Context, fpr string, id *identity.Identity) error {
	return r(ctx, fpr, id)
}

func TestOnGroupAdoptedRejectsSignerClaimMismatch(t *testing.T) {
	f := newFixture(t)
	manager := ownIdentity(t, f, "alice", "alice@example.org")
	member := reliablePeer(t, f, "bob", "bob@example.org")
	impostorKey, err := f.crypto.GenerateKeyPair()
	require.NoError(t, err)

	groupID := identity.Identity{UserID: "group1", Address: "group1@example.org"}
	require.NoError(t, f.store.CreateGroup(context.Background(), groupID.Address, manager.UserID))
	require.NoError(t, f.store.AddMember(context.Background(), groupID.Address, member.UserID))

	env := buildCommand(codec.CommandGroupAdopted, groupID, member)
	msg := InboundMessage{SignerFingerprint: impostorKey.Fingerprint, FromAddress: member.Address, ToAddresses: []string{manager.Address}}

	err = f.mgr.onGroupAdopted(context.Background(), msg, identity.RatingTrusted, *env.ManagedGroup)
	require.Error(t, err)
}
