// Package group implements the Group Engine of spec.md §4.1: the
// managed-group lifecycle state machine on both the sending and
// receiving side, and the three wire commands (groupCreate, groupAdopted,
// groupDissolve) that drive it.
package group

import (
	"context"
	"fmt"
	"sync"

	"github.com/meshcore/trustengine/internal/codec"
	"github.com/meshcore/trustengine/internal/engine"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/logging"
	"github.com/meshcore/trustengine/internal/outbound"
	"github.com/meshcore/trustengine/internal/peerrating"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
)

var log = logging.Logger("group")

// CryptoProvider is the narrow slice of the Crypto Provider contract the
// Group Engine needs, addressed by fingerprint throughout.
type CryptoProvider interface {
	GenerateKeyPair() (identity.Key, error)
	Export(fpr string) (pub, priv []byte, err error)
	Import(pub, priv []byte) (string, error)
	Revoke(fpr string) error
	IsRevoked(fpr string) bool
	HasPrivate(fpr string) bool
}

// KeyResetter is the hook group_remove_member drives: the departing
// member held the group's private key, so removing them forces a group
// key reset (§4.1, §4.2). Satisfied by keyreset.Manager.
type KeyResetter interface {
	KeyReset(ctx context.Context, fpr string, id *identity.Identity) error
}

// FanoutFailure records one recipient's failure inside a fan-out send; a
// per-recipient failure never aborts the overall operation (§4.1
// "Ordering/tie-breaks").
type FanoutFailure struct {
	Recipient identity.Identity
	Err       error
}

// FanoutResult is the outcome of a multi-recipient dispatch.
type FanoutResult struct {
	Sent     int
	Failures []FanoutFailure
}

// Manager is the Group Engine: sender and receiver handlers for the three
// managed-group commands, holding the collaborators §2 of SPEC_FULL.md
// wires in (Store, Crypto Provider, Peer Evaluator, Outbound Builder).
type Manager struct {
	store     store.Store
	crypto    CryptoProvider
	rater     peerrating.Evaluator
	builder   *outbound.Builder
	resetter  KeyResetter

	mu        sync.RWMutex
	listeners []chan Event
}

// New wires a Group Engine against its collaborators.
func New(st store.Store, crypto CryptoProvider, rater peerrating.Evaluator, builder *outbound.Builder) *Manager {
	return &Manager{store: st, crypto: crypto, rater: rater, builder: builder}
}

// SetKeyResetter installs the key-reset hook used by GroupRemoveMember.
// Kept as a setter (rather than a constructor argument) because
// keyreset.Manager and group.Manager are constructed independently by
// the session wiring in internal/engine and may reference each other.
func (m *Manager) SetKeyResetter(r KeyResetter) { m.resetter = r }

// Subscribe registers a listener for Group Engine events. Unsubscribe by
// discarding the channel; the Manager never closes channels it emits on.
func (m *Manager) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	m.mu.Lock()
	m.listeners = append(m.listeners, ch)
	m.mu.Unlock()
	return ch
}

func (m *Manager) emit(evt Event) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.listeners {
		select {
		case ch <- evt:
		default:
		}
	}
}

// ─── Sender-side operations (§4.1) ──────────────────────────────────────

// CreateGroup implements create_group(group_identity, manager, members).
// Preconditions: manager is own; group_identity has no existing row.
func (m *Manager) CreateGroup(ctx context.Context, groupIdentity, manager identity.Identity, members []identity.Identity) (FanoutResult, error) {
	if !manager.IsOwn() {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w (manager must be own)", engine.StatusIllegalValue)
	}
	if manager.Flags.Has(identity.FlagGroupIdentity) {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w (manager must not bear group-identity flag)", engine.StatusIllegalValue)
	}
	exists, err := m.store.ExistsGroup(ctx, groupIdentity.Address)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w", err)
	}
	if exists {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w (group already exists)", engine.StatusCannotCreateGroup)
	}

	// Ensure a fresh keypair for group_identity (generate if absent).
	if groupIdentity.KeyFingerprint == "" || !m.crypto.HasPrivate(groupIdentity.KeyFingerprint) {
		key, kerr := m.crypto.GenerateKeyPair()
		if kerr != nil {
			return FanoutResult{}, fmt.Errorf("group: create_group: generate group key: %w", kerr)
		}
		groupIdentity.KeyFingerprint = key.Fingerprint
	}
	groupIdentity.Flags |= identity.FlagGroupIdentity

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w", engine.StatusUnknownDBError)
	}
	ok := false
	defer func() {
		if !ok {
			tx.Rollback()
		}
	}()

	if err := tx.SetIdentity(ctx, groupIdentity); err != nil {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w", err)
	}
	if err := tx.CreateGroup(ctx, groupIdentity.Address, manager.UserID); err != nil {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w", engine.StatusCannotCreateGroup)
	}
	for _, member := range members {
		if err := tx.AddMember(ctx, groupIdentity.Address, member.UserID); err != nil {
			return FanoutResult{}, fmt.Errorf("group: create_group: %w", engine.StatusCannotAddMember)
		}
	}
	if err := tx.Commit(); err != nil {
		return FanoutResult{}, fmt.Errorf("group: create_group: %w", engine.StatusUnknownDBError)
	}
	ok = true

	result := m.fanoutCreate(ctx, groupIdentity, manager, members)
	m.emit(Event{Type: EventGroupCreated, Group: groupIdentity.Address, From: manager.Address})
	return result, nil
}

// fanoutCreate dispatches a groupCreate command, carrying the group's
// private key, to every member whose rating is at least reliable.
func (m *Manager) fanoutCreate(ctx context.Context, groupIdentity, manager identity.Identity, members []identity.Identity) FanoutResult {
	result := FanoutResult{}
	pub, priv, err := m.crypto.Export(groupIdentity.KeyFingerprint)
	if err != nil {
		result.Failures = append(result.Failures, FanoutFailure{Err: fmt.Errorf("export group key: %w", err)})
		return result
	}

	for _, member := range members {
		rating, rerr := m.rater.Rate(ctx, member)
		if rerr != nil {
			result.Failures = append(result.Failures, FanoutFailure{Recipient: member, Err: rerr})
			continue
		}
		if !rating.AtLeast(identity.RatingReliable) {
			continue
		}
		env := buildCommand(codec.CommandGroupCreate, groupIdentity, manager)
		payload, err := codec.Encode(env)
		if err != nil {
			result.Failures = append(result.Failures, FanoutFailure{Recipient: member, Err: err})
			continue
		}
		// Each recipient's attachment is a fresh copy (Build duplicates
		// internally too, but the export above is shared across the loop
		// so we copy here as well — §9 "owned payload / borrowed recipient").
		attachment := transport.Attachment{
			Filename: GroupKeyFilename,
			MimeType: GroupKeyMIME,
			Data:     append(append([]byte{}, pub...), priv...),
		}
		if _, err := m.builder.Build(ctx, manager, member, payload, []transport.Attachment{attachment}); err != nil {
			result.Failures = append(result.Failures, FanoutFailure{Recipient: member, Err: err})
			continue
		}
		result.Sent++
	}
	return result
}

// GroupJoin implements group_join(group_identity, as_member). Idempotent:
// already-joined is success.
func (m *Manager) GroupJoin(ctx context.Context, groupIdentity identity.Identity, asMember identity.Identity) error {
	if !asMember.IsOwn() {
		return fmt.Errorf("group: group_join: %w (as_member must be own)", engine.StatusIllegalValue)
	}
	own, err := m.store.GetOwnMembership(ctx, groupIdentity.Address, asMember.UserID)
	if err != nil {
		return fmt.Errorf("group: group_join: %w", engine.StatusNoMembershipStatusFound)
	}
	if own.Joined {
		return nil // idempotent
	}

	manager, err := m.managerIdentity(ctx, groupIdentity)
	if err != nil {
		return err
	}
	env := buildCommand(codec.CommandGroupAdopted, groupIdentity, asMember)
	payload, err := codec.Encode(env)
	if err != nil {
		return fmt.Errorf("group: group_join: %w", err)
	}
	if _, err := m.builder.Build(ctx, asMember, manager, payload, nil); err != nil {
		return fmt.Errorf("group: group_join: %w", err)
	}

	if err := m.store.SetOwnMembershipJoined(ctx, groupIdentity.Address, asMember.UserID); err != nil {
		return fmt.Errorf("group: group_join: %w", err)
	}
	m.emit(Event{Type: EventGroupJoined, Group: groupIdentity.Address, From: asMember.Address})
	return nil
}

// LeaveGroup implements leave_group(group_identity, member). No
// notification is emitted — §9 leaves this unresolved in the source, and
// this module implements spec.md literally rather than inventing one.
// Success even if member never joined.
func (m *Manager) LeaveGroup(ctx context.Context, groupIdentity identity.Identity, member identity.Identity) error {
	if !member.IsOwn() {
		return fmt.Errorf("group: leave_group: %w (member must be own)", engine.StatusIllegalValue)
	}
	if err := m.store.SetOwnMembershipLeft(ctx, groupIdentity.Address, member.UserID); err != nil {
		if err == store.ErrMembershipNotFound {
			return nil
		}
		return fmt.Errorf("group: leave_group: %w", err)
	}
	return nil
}

// GroupDissolve implements group_dissolve(group_identity, manager).
func (m *Manager) GroupDissolve(ctx context.Context, groupIdentity identity.Identity, manager identity.Identity) error {
	row, err := m.store.GetGroup(ctx, groupIdentity.Address)
	if err != nil {
		return fmt.Errorf("group: group_dissolve: %w", engine.StatusGroupNotFound)
	}
	if row.Manager != manager.UserID {
		return fmt.Errorf("group: group_dissolve: %w (manager mismatch)", engine.StatusIllegalValue)
	}

	if err := m.store.DisableGroup(ctx, groupIdentity.Address); err != nil {
		return fmt.Errorf("group: group_dissolve: %w", engine.StatusCannotDisableGroup)
	}

	if manager.IsOwn() {
		if err := m.crypto.Revoke(groupIdentity.KeyFingerprint); err != nil {
			return fmt.Errorf("group: group_dissolve: revoke group key: %w", err)
		}
		members, err := m.store.GetMembers(ctx, groupIdentity.Address, true)
		if err != nil {
			return fmt.Errorf("group: group_dissolve: %w", err)
		}
		for _, row := range members {
			memberIdentity, ierr := m.store.GetIdentityByUserID(ctx, row.MemberIdentity)
			if ierr != nil {
				memberIdentity = identity.Identity{UserID: row.MemberIdentity}
			}
			env := buildCommand(codec.CommandGroupDissolve, groupIdentity, manager)
			payload, perr := codec.Encode(env)
			if perr != nil {
				log.Errorf("group_dissolve: encode: %v", perr)
				continue
			}
			if _, serr := m.builder.Build(ctx, manager, memberIdentity, payload, nil); serr != nil {
				log.Warnf("group_dissolve: send to %s: %v", row.MemberIdentity, serr)
			}
		}
	} else {
		// Manager is a peer: every own-membership under this group flips
		// to left — a single idempotent transition over the whole set.
		memberships, err := m.store.ListOwnMemberships(ctx, groupIdentity.Address)
		if err != nil {
			return fmt.Errorf("group: group_dissolve: %w", err)
		}
		for _, own := range memberships {
			if err := m.store.SetOwnMembershipLeft(ctx, groupIdentity.Address, own.OwnIdentity); err != nil {
				log.Warnf("group_dissolve: set left for %s: %v", own.OwnIdentity, err)
			}
		}
	}
	m.emit(Event{Type: EventGroupDissolved, Group: groupIdentity.Address, From: manager.Address})
	return nil
}

// GroupInviteMember implements group_invite_member(group_identity, new_member).
func (m *Manager) GroupInviteMember(ctx context.Context, groupIdentity identity.Identity, newMember identity.Identity) error {
	if err := m.store.AddMember(ctx, groupIdentity.Address, newMember.UserID); err != nil {
		return fmt.Errorf("group: group_invite_member: %w", engine.StatusCannotAddMember)
	}
	manager, err := m.managerIdentity(ctx, groupIdentity)
	if err != nil {
		return err
	}
	if newMember.IsOwn() {
		if err := m.store.AddOwnMembership(ctx, groupIdentity.Address, manager.UserID, newMember.UserID); err != nil {
			return fmt.Errorf("group: group_invite_member: %w", err)
		}
		return m.GroupJoin(ctx, groupIdentity, newMember)
	}

	result := m.fanoutCreate(ctx, groupIdentity, manager, []identity.Identity{newMember})
	if len(result.Failures) > 0 {
		return fmt.Errorf("group: group_invite_member: %w", result.Failures[0].Err)
	}
	return nil
}

// GroupRemoveMember implements group_remove_member(group_identity, member).
// The departing member held the group's private key, so removal forces a
// key reset (§4.2) on the group identity.
func (m *Manager) GroupRemoveMember(ctx context.Context, groupIdentity identity.Identity, member identity.Identity) error {
	if err := m.store.RemoveMember(ctx, groupIdentity.Address, member.UserID); err != nil {
		return fmt.Errorf("group: group_remove_member: %w", err)
	}
	m.emit(Event{Type: EventMemberRemoved, Group: groupIdentity.Address, From: member.Address})
	if m.resetter == nil {
		return nil
	}
	gi := groupIdentity
	return m.resetter.KeyReset(ctx, groupIdentity.KeyFingerprint, &gi)
}

// GroupRating implements group_rating(group_identity, manager).
func (m *Manager) GroupRating(ctx context.Context, groupIdentity identity.Identity, manager identity.Identity) (identity.Rating, error) {
	if !manager.IsOwn() {
		return m.rater.Rate(ctx, manager)
	}
	members, err := m.store.GetMembers(ctx, groupIdentity.Address, true)
	if err != nil {
		return identity.RatingUndefined, fmt.Errorf("group: group_rating: %w", err)
	}
	if len(members) == 0 {
		// Tie-break for an empty active-member list (§4.1, §9): fully
		// anonymous baseline, not a null dereference.
		return identity.RatingFullyAnonymous, nil
	}
	min := identity.RatingFullyAnonymous // highest rating; any member lowers it
	for _, row := range members {
		id, err := m.store.GetIdentityByUserID(ctx, row.MemberIdentity)
		if err != nil {
			id = identity.Identity{UserID: row.MemberIdentity}
		}
		r, err := m.rater.Rate(ctx, id)
		if err != nil {
			return identity.RatingUndefined, fmt.Errorf("group: group_rating: %w", err)
		}
		if r < min {
			min = r
		}
	}
	return min, nil
}

func (m *Manager) managerIdentity(ctx context.Context, groupIdentity identity.Identity) (identity.Identity, error) {
	row, err := m.store.GetGroup(ctx, groupIdentity.Address)
	if err != nil {
		return identity.Identity{}, fmt.Errorf("group: %w", engine.StatusGroupNotFound)
	}
	id, err := m.store.GetIdentityByUserID(ctx, row.Manager)
	if err != nil {
		return identity.Identity{UserID: row.Manager}, nil
	}
	return id, nil
}

// ─── Receive-side state machine (§4.1) ──────────────────────────────────

// ReceiveManagedGroupMessage dispatches a decoded Distribution envelope's
// managed-group choice to its validator, per §9's "tagged-union match"
// note: no virtual dispatch, a plain Go type switch on the command kind.
func (m *Manager) ReceiveManagedGroupMessage(ctx context.Context, msg InboundMessage, rating identity.Rating, cmd codec.ManagedGroupCommand) error {
	switch cmd.Kind {
	case codec.CommandGroupCreate:
		return m.onGroupCreate(ctx, msg, rating, cmd)
	case codec.CommandGroupAdopted:
		return m.onGroupAdopted(ctx, msg, rating, cmd)
	case codec.CommandGroupDissolve:
		return m.onGroupDissolve(ctx, msg, rating, cmd)
	default:
		return fmt.Errorf("group: receive: %w", engine.StatusDistributionIllegalMessage)
	}
}

func (m *Manager) envelopeOK(ctx context.Context, msg InboundMessage, rating identity.Rating) (identity.Identity, error) {
	if !rating.AtLeast(identity.RatingReliable) {
		return identity.Identity{}, fmt.Errorf("group: %w (rating below reliable)", engine.StatusDistributionIllegalMessage)
	}
	if len(msg.ToAddresses) != 1 {
		return identity.Identity{}, fmt.Errorf("group: %w (expected exactly one recipient)", engine.StatusDistributionIllegalMessage)
	}
	recipient, err := m.store.GetIdentityByAddress(ctx, msg.ToAddresses[0])
	if err != nil {
		return identity.Identity{}, fmt.Errorf("group: %w", engine.StatusCannotFindIdentity)
	}
	if !recipient.IsOwn() {
		return identity.Identity{}, fmt.Errorf("group: %w (recipient is not own)", engine.StatusDistributionIllegalMessage)
	}
	return recipient, nil
}

// onGroupCreate implements the receive-side "On groupCreate" steps (§4.1).
func (m *Manager) onGroupCreate(ctx context.Context, msg InboundMessage, rating identity.Rating, cmd codec.ManagedGroupCommand) error {
	recipient, err := m.envelopeOK(ctx, msg, rating)
	if err != nil {
		return err
	}

	groupIdentity := refToIdentity(cmd.First)
	manager := refToIdentity(cmd.Second)

	managerKey, ok, err := m.store.DefaultKey(ctx, manager.UserID, manager.Address)
	if err != nil {
		return fmt.Errorf("group: on_group_create: %w", err)
	}
	if !ok || managerKey == "" {
		return fmt.Errorf("group: on_group_create: %w", engine.StatusKeyNotFound)
	}

	if len(msg.Attachments) == 0 {
		return fmt.Errorf("group: on_group_create: %w (missing group key attachment)", engine.StatusDistributionIllegalMessage)
	}
	pub, priv := splitKeyAttachment(msg.Attachments[0].Data)
	fpr, err := m.crypto.Import(pub, priv)
	if err != nil || !m.crypto.HasPrivate(fpr) {
		return fmt.Errorf("group: on_group_create: %w (key import failed)", engine.StatusKeyUnsuitable)
	}
	if groupIdentity.KeyFingerprint != "" && fpr != groupIdentity.KeyFingerprint {
		return fmt.Errorf("group: on_group_create: %w (imported key fingerprint mismatch)", engine.StatusKeyUnsuitable)
	}
	groupIdentity.KeyFingerprint = fpr

	groupIdentity.UserID = recipient.UserID
	groupIdentity.Flags |= identity.FlagOwn | identity.FlagGroupIdentity

	tx, err := m.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("group: on_group_create: %w", engine.StatusUnknownDBError)
	}
	ok2 := false
	defer func() {
		if !ok2 {
			tx.Rollback()
		}
	}()
	if err := tx.SetIdentity(ctx, groupIdentity); err != nil {
		return fmt.Errorf("group: on_group_create: %w", err)
	}
	if err := tx.CreateGroup(ctx, groupIdentity.Address, manager.UserID); err != nil {
		return fmt.Errorf("group: on_group_create: %w", engine.StatusCannotCreateGroup)
	}
	if err := tx.AddOwnMembership(ctx, groupIdentity.Address, manager.UserID, recipient.UserID); err != nil {
		return fmt.Errorf("group: on_group_create: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("group: on_group_create: %w", engine.StatusUnknownDBError)
	}
	ok2 = true
	return nil
}

// splitKeyAttachment reads an Export-shaped attachment (pub||priv, as
// produced by fanoutCreate) back into its two halves. Export's pub blob
// has a fixed 64-byte length (box public + sign public, see
// cryptoprovider.Provider); anything shorter than that is malformed.
func splitKeyAttachment(data []byte) (pub, priv []byte) {
	const pubLen = 64
	if len(data) < pubLen {
		return data, nil
	}
	return data[:pubLen], data[pubLen:]
}

// onGroupAdopted implements the receive-side "On groupAdopted" steps.
func (m *Manager) onGroupAdopted(ctx context.Context, msg InboundMessage, rating identity.Rating, cmd codec.ManagedGroupCommand) error {
	if _, err := m.envelopeOK(ctx, msg, rating); err != nil {
		return err
	}

	groupRef := refToIdentity(cmd.First)
	claimedMember := refToIdentity(cmd.Second)

	row, err := m.store.GetGroup(ctx, groupRef.Address)
	if err != nil {
		return fmt.Errorf("group: on_group_adopted: %w", engine.StatusMessageIgnore) // not our group
	}
	self, err := m.store.GetIdentityByUserID(ctx, row.Manager)
	if err != nil || !self.IsOwn() {
		// Not our group, or we are not the stored manager (not our business).
		return fmt.Errorf("group: on_group_adopted: %w", engine.StatusMessageIgnore)
	}

	member, err := m.store.GetIdentity(ctx, claimedMember.UserID, claimedMember.Address)
	if err != nil {
		member = claimedMember
	}
	invited, err := m.store.IsInvitedMember(ctx, groupRef.Address, member.UserID)
	if err != nil {
		return fmt.Errorf("group: on_group_adopted: %w", err)
	}
	if !invited {
		return fmt.Errorf("group: on_group_adopted: %w", engine.StatusMessageIgnore)
	}

	// Signer check (§9): the envelope's signer fingerprint is the source
	// of truth for who sent the command; the payload identity is only
	// what the sender claims. Both must line up.
	if msg.SignerFingerprint != member.KeyFingerprint || msg.FromAddress != member.Address {
		return fmt.Errorf("group: on_group_adopted: %w (signer/claimed mismatch)", engine.StatusDistributionIllegalMessage)
	}

	if err := m.store.SetMemberJoined(ctx, groupRef.Address, member.UserID, store.MemberJoined); err != nil {
		return fmt.Errorf("group: on_group_adopted: %w", err)
	}
	m.emit(Event{Type: EventMemberJoined, Group: groupRef.Address, From: member.Address})
	return nil
}

// onGroupDissolve implements the receive-side "On groupDissolve" steps.
func (m *Manager) onGroupDissolve(ctx context.Context, msg InboundMessage, rating identity.Rating, cmd codec.ManagedGroupCommand) error {
	if _, err := m.envelopeOK(ctx, msg, rating); err != nil {
		return err
	}
	if msg.SignerFingerprint == "" {
		return fmt.Errorf("group: on_group_dissolve: %w (missing signer)", engine.StatusDistributionIllegalMessage)
	}

	groupRef := refToIdentity(cmd.First)
	claimedManager := refToIdentity(cmd.Second)

	if claimedManager.IsOwn() {
		// We don't dissolve our own group by receiving a message about it.
		return fmt.Errorf("group: on_group_dissolve: %w", engine.StatusMessageIgnore)
	}

	manager, err := m.store.GetIdentity(ctx, claimedManager.UserID, claimedManager.Address)
	if err != nil {
		manager = claimedManager
	}

	if msg.SignerFingerprint != manager.KeyFingerprint {
		trust, terr := m.store.GetTrust(ctx, manager.UserID, msg.SignerFingerprint)
		if terr != nil || !trust.CommType.AtLeast(identity.CommStrongUnconfirmed) {
			return fmt.Errorf("group: on_group_dissolve: %w", engine.StatusMessageIgnore)
		}
	}
	if msg.FromAddress != manager.Address {
		return fmt.Errorf("group: on_group_dissolve: %w (from address mismatch)", engine.StatusDistributionIllegalMessage)
	}

	if err := m.store.DisableGroup(ctx, groupRef.Address); err != nil {
		return fmt.Errorf("group: on_group_dissolve: %w", engine.StatusCannotDisableGroup)
	}
	memberships, err := m.store.ListOwnMemberships(ctx, groupRef.Address)
	if err != nil {
		return fmt.Errorf("group: on_group_dissolve: %w", err)
	}
	for _, own := range memberships {
		if err := m.store.SetOwnMembershipLeft(ctx, groupRef.Address, own.OwnIdentity); err != nil {
			log.Warnf("on_group_dissolve: set left for %s: %v", own.OwnIdentity, err)
		}
	}

	if groupRef.KeyFingerprint != "" && !m.crypto.IsRevoked(groupRef.KeyFingerprint) {
		log.Warnf("on_group_dissolve: group key %s not yet observed as revoked", groupRef.KeyFingerprint)
	}

	m.emit(Event{Type: EventGroupDissolved, Group: groupRef.Address, From: manager.Address})
	return nil
}
