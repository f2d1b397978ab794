// Package store defines the persistent Store contract of §4.5 and §3: the
// single source of truth for identities, trust, groups, membership,
// own-membership and the notified-contact / replacement ledgers. The
// Engine never infers state from prior messages held only in memory.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/meshcore/trustengine/internal/identity"
)

// Sentinel errors a Store implementation returns; callers translate these
// into engine.Status values at the boundary (see internal/engine/status.go).
var (
	ErrNotFound          = errors.New("store: row not found")
	ErrAlreadyExists     = errors.New("store: row already exists")
	ErrGroupNotFound     = errors.New("store: group not found")
	ErrMemberNotFound    = errors.New("store: member not found")
	ErrMembershipNotFound = errors.New("store: no membership status found")
)

// GroupRow is the persisted (group_identity, manager, active) row of §3.
type GroupRow struct {
	GroupIdentity string
	Manager       string // user_id of the manager identity
	Active        bool
	CreatedAt     time.Time
}

// MemberRow is the persisted (group_identity, member_identity, joined) row.
// Joined transitions invited -> joined -> left monotonically per §3.
type MemberRow struct {
	GroupIdentity  string
	MemberIdentity string
	Joined         MemberState
	UpdatedAt      time.Time
}

// MemberState is the three-value lifecycle of a group member row (§3).
type MemberState int

const (
	MemberInvited MemberState = iota
	MemberJoined
	MemberLeft
)

// OwnMembershipRow records, per (group_identity, own_identity), whether
// this device has accepted the invitation — distinct from the manager's
// view of the member list (§3).
type OwnMembershipRow struct {
	GroupIdentity string
	OwnIdentity   string
	Manager       string
	Joined        bool
	Active        bool
}

// NotifiedContactRow is a write-only idempotence marker: a key-reset
// notification for RevokedFpr has been sent from OwnAddress to PeerUserID.
type NotifiedContactRow struct {
	OwnAddress  string
	RevokedFpr  string
	PeerUserID  string
	NotifiedAt  time.Time
}

// ReplacementRow records (revoked_fpr -> replacement_fpr) so an inbound
// message encrypted to a revoked key can be routed to its replacement.
type ReplacementRow struct {
	RevokedFpr     string
	ReplacementFpr string
	At             time.Time
}

// Tx brackets a sequence of Store calls so the Engine can compose
// transactions per §5 ("Engine composes transactions by bracketing
// sequences with begin/commit/rollback primitives").
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Store is the persistence contract of §4.5. Every method is expected to
// be atomic per call; composite operations are bracketed with Begin/Commit.
type Store interface {
	Begin(ctx context.Context) (Tx, error)

	// Identities & trust (§3).
	UpdateIdentity(ctx context.Context, id identity.Identity) error
	Myself(ctx context.Context, id identity.Identity) (identity.Identity, error)
	SetIdentity(ctx context.Context, id identity.Identity) error
	GetIdentity(ctx context.Context, userID, address string) (identity.Identity, error)
	// GetIdentityByUserID returns any one identity row clustered under
	// userID — used where only the local clustering key is known (e.g. a
	// group's manager is recorded by user_id alone in GroupRow).
	GetIdentityByUserID(ctx context.Context, userID string) (identity.Identity, error)
	// GetIdentityByAddress resolves an identity from its external handle
	// alone — used on receive when only the envelope's To/From address is
	// known and the local user_id clustering hasn't been established yet.
	GetIdentityByAddress(ctx context.Context, address string) (identity.Identity, error)
	GetTrust(ctx context.Context, userID, fpr string) (identity.TrustEntry, error)
	SetTrust(ctx context.Context, t identity.TrustEntry) error
	// ListTrustForUser returns every trust row for userID — the set of
	// keys §4.2 regime 2 ("no F, I is own without address") iterates.
	ListTrustForUser(ctx context.Context, userID string) ([]identity.TrustEntry, error)
	// ListOwnIdentities returns every identity flagged own — the set
	// key_reset_all_own_keys (§4.2 regime 1) iterates.
	ListOwnIdentities(ctx context.Context) ([]identity.Identity, error)
	// ListIdentitiesByFingerprint returns every identity whose current
	// key is fpr — the "device group" gather step of §4.2.a.
	ListIdentitiesByFingerprint(ctx context.Context, fpr string) ([]identity.Identity, error)
	ClearTrust(ctx context.Context, userID, fpr string) error
	DefaultKey(ctx context.Context, userID, address string) (string, bool, error)
	UserDefaultKey(ctx context.Context, userID string) (string, bool, error)
	SetDefaultKey(ctx context.Context, userID, address, fpr string) error
	ClearDefaultKey(ctx context.Context, userID, address, fpr string) error
	RecentContacts(ctx context.Context, sinceOwnAddress string) ([]identity.Identity, error)
	HasContacted(ctx context.Context, peerUserID, ownAddress string) (bool, error)

	// Groups (§4.5).
	CreateGroup(ctx context.Context, groupIdentity, manager string) error
	ExistsGroup(ctx context.Context, groupIdentity string) (bool, error)
	EnableGroup(ctx context.Context, groupIdentity string) error
	DisableGroup(ctx context.Context, groupIdentity string) error
	IsGroupActive(ctx context.Context, groupIdentity string) (bool, error)
	GetGroupManager(ctx context.Context, groupIdentity string) (string, error)
	GetGroup(ctx context.Context, groupIdentity string) (GroupRow, error)

	AddMember(ctx context.Context, groupIdentity, member string) error
	RemoveMember(ctx context.Context, groupIdentity, member string) error
	SetMemberJoined(ctx context.Context, groupIdentity, member string, state MemberState) error
	GetMembers(ctx context.Context, groupIdentity string, activeOnly bool) ([]MemberRow, error)
	IsInvitedMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error)
	IsActiveMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error)

	AddOwnMembership(ctx context.Context, groupIdentity, manager, ownIdentity string) error
	SetOwnMembershipJoined(ctx context.Context, groupIdentity, ownIdentity string) error
	SetOwnMembershipLeft(ctx context.Context, groupIdentity, ownIdentity string) error
	GetOwnMembership(ctx context.Context, groupIdentity, ownIdentity string) (OwnMembershipRow, error)
	ListOwnMemberships(ctx context.Context, groupIdentity string) ([]OwnMembershipRow, error)

	// Key-reset ledgers (§3, §4.2.c).
	SetNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) error
	HasNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) (bool, error)
	SetReplacement(ctx context.Context, oldFpr, newFpr string, at time.Time) error
	GetReplacement(ctx context.Context, oldFpr string) (ReplacementRow, bool, error)
}
