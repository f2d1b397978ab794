package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meshcore/trustengine/internal/identity"
)

// backends returns one fresh instance per Store implementation under test, so
// every case below runs against both the sqlite-backed and in-memory forms.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sql, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { sql.Close() })

	return map[string]Store{
		"sqlite": sql,
		"memory": NewMemStore(),
	}
}

func TestIdentityRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := identity.Identity{
				UserID: "alice", Address: "alice@example.org",
				KeyFingerprint: "FPR1", DisplayName: "Alice", CommType: identity.CommPEP,
			}
			require.NoError(t, s.SetIdentity(ctx, id))

			got, err := s.GetIdentity(ctx, "alice", "alice@example.org")
			require.NoError(t, err)
			require.Equal(t, "FPR1", got.KeyFingerprint)
			require.Equal(t, identity.CommPEP, got.CommType)

			_, err = s.GetIdentity(ctx, "nobody", "nobody@example.org")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestMyselfSetsOwnFlag(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			id := identity.Identity{UserID: "me", Address: "me@example.org", KeyFingerprint: "FPRSELF"}
			got, err := s.Myself(ctx, id)
			require.NoError(t, err)
			require.True(t, got.IsOwn())
		})
	}
}

func TestTrustAndDefaultKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SetIdentity(ctx, identity.Identity{UserID: "bob", Address: "bob@example.org"}))
			require.NoError(t, s.SetTrust(ctx, identity.TrustEntry{UserID: "bob", KeyFingerprint: "FPRB", CommType: identity.CommStrongUnconfirmed}))

			tr, err := s.GetTrust(ctx, "bob", "FPRB")
			require.NoError(t, err)
			require.Equal(t, identity.CommStrongUnconfirmed, tr.CommType)

			require.NoError(t, s.SetDefaultKey(ctx, "bob", "bob@example.org", "FPRB"))
			fpr, ok, err := s.DefaultKey(ctx, "bob", "bob@example.org")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "FPRB", fpr)

			ufpr, ok, err := s.UserDefaultKey(ctx, "bob")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "FPRB", ufpr)

			require.NoError(t, s.ClearTrust(ctx, "bob", "FPRB"))
			_, err = s.GetTrust(ctx, "bob", "FPRB")
			require.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestGroupLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateGroup(ctx, "group1@example.org", "manager@example.org"))

			exists, err := s.ExistsGroup(ctx, "group1@example.org")
			require.NoError(t, err)
			require.True(t, exists)

			active, err := s.IsGroupActive(ctx, "group1@example.org")
			require.NoError(t, err)
			require.True(t, active)

			manager, err := s.GetGroupManager(ctx, "group1@example.org")
			require.NoError(t, err)
			require.Equal(t, "manager@example.org", manager)

			require.NoError(t, s.DisableGroup(ctx, "group1@example.org"))
			active, err = s.IsGroupActive(ctx, "group1@example.org")
			require.NoError(t, err)
			require.False(t, active)

			_, err = s.GetGroupManager(ctx, "no-such-group@example.org")
			require.ErrorIs(t, err, ErrGroupNotFound)
		})
	}
}

func TestMemberLifecycle(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.CreateGroup(ctx, "group2@example.org", "manager@example.org"))
			require.NoError(t, s.AddMember(ctx, "group2@example.org", "carol@example.org"))

			invited, err := s.IsInvitedMember(ctx, "group2@example.org", "carol@example.org")
			require.NoError(t, err)
			require.True(t, invited)

			require.NoError(t, s.SetMemberJoined(ctx, "group2@example.org", "carol@example.org", MemberJoined))
			active, err := s.IsActiveMember(ctx, "group2@example.org", "carol@example.org")
			require.NoError(t, err)
			require.True(t, active)

			members, err := s.GetMembers(ctx, "group2@example.org", true)
			require.NoError(t, err)
			require.Len(t, members, 1)
			require.Equal(t, "carol@example.org", members[0].MemberIdentity)

			require.NoError(t, s.RemoveMember(ctx, "group2@example.org", "carol@example.org"))
			members, err = s.GetMembers(ctx, "group2@example.org", false)
			require.NoError(t, err)
			require.Len(t, members, 0)

			err = s.SetMemberJoined(ctx, "group2@example.org", "ghost@example.org", MemberJoined)
			require.ErrorIs(t, err, ErrMemberNotFound)
		})
	}
}

func TestOwnMembership(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.AddOwnMembership(ctx, "group3@example.org", "manager@example.org", "me@example.org"))

			m, err := s.GetOwnMembership(ctx, "group3@example.org", "me@example.org")
			require.NoError(t, err)
			require.False(t, m.Joined)
			require.True(t, m.Active)

			require.NoError(t, s.SetOwnMembershipJoined(ctx, "group3@example.org", "me@example.org"))
			m, err = s.GetOwnMembership(ctx, "group3@example.org", "me@example.org")
			require.NoError(t, err)
			require.True(t, m.Joined)

			list, err := s.ListOwnMemberships(ctx, "group3@example.org")
			require.NoError(t, err)
			require.Len(t, list, 1)

			require.NoError(t, s.SetOwnMembershipLeft(ctx, "group3@example.org", "me@example.org"))
			m, err = s.GetOwnMembership(ctx, "group3@example.org", "me@example.org")
			require.NoError(t, err)
			require.False(t, m.Joined)

			_, err = s.GetOwnMembership(ctx, "no-group@example.org", "me@example.org")
			require.ErrorIs(t, err, ErrMembershipNotFound)
		})
	}
}

func TestKeyResetLedgers(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			notified, err := s.HasNotifiedContact(ctx, "me@example.org", "OLDFPR", "dave@example.org")
			require.NoError(t, err)
			require.False(t, notified)

			require.NoError(t, s.SetNotifiedContact(ctx, "me@example.org", "OLDFPR", "dave@example.org"))
			notified, err = s.HasNotifiedContact(ctx, "me@example.org", "OLDFPR", "dave@example.org")
			require.NoError(t, err)
			require.True(t, notified)

			_, ok, err := s.GetReplacement(ctx, "OLDFPR")
			require.NoError(t, err)
			require.False(t, ok)

			now := time.Unix(1_700_000_000, 0).UTC()
			require.NoError(t, s.SetReplacement(ctx, "OLDFPR", "NEWFPR", now))
			rep, ok, err := s.GetReplacement(ctx, "OLDFPR")
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "NEWFPR", rep.ReplacementFpr)
		})
	}
}

func TestTransactionCommit(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)

			require.NoError(t, tx.CreateGroup(ctx, "txgroup@example.org", "manager@example.org"))
			require.NoError(t, tx.AddMember(ctx, "txgroup@example.org", "eve@example.org"))
			require.NoError(t, tx.Commit())

			exists, err := s.ExistsGroup(ctx, "txgroup@example.org")
			require.NoError(t, err)
			require.True(t, exists)
		})
	}
}
