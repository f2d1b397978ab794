// Package keyreset implements the Key-Reset Engine of spec.md §4.2: own-key
// reset (single, grouped, all-own), partner-key reset, the reset-command
// send/receive protocol, and the revocation/notified-contact bookkeeping
// that keeps them correct.
package keyreset

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meshcore/trustengine/internal/codec"
	"github.com/meshcore/trustengine/internal/engine"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/logging"
	"github.com/meshcore/trustengine/internal/outbound"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
)

var log = logging.Logger("keyreset")

// CryptoProvider is the narrow slice of the Crypto Provider contract the
// Key-Reset Engine needs.
type CryptoProvider interface {
	GenerateKeyPair() (identity.Key, error)
	Sign(fpr string, data []byte) ([]byte, error)
	Export(fpr string) (pub, priv []byte, err error)
	Import(pub, priv []byte) (string, error)
	Revoke(fpr string) error
	IsRevoked(fpr string) bool
	IsMistrusted(fpr string) bool
	Mistrust(fpr string) error
	ClearMistrust(fpr string) error
	Delete(fpr string) error
	HasPrivate(fpr string) bool
	RawRating(fpr string) (identity.Rating, error)
}

// InboundMessage is what the caller hands ReceiveKeyReset after
// decrypting a message per §6's "Inbound demultiplex" contract.
type InboundMessage struct {
	SignerFingerprint string
	FromAddress       string
	Attachments       []transport.Attachment
}

// Event is emitted to local listeners on every reset the engine performs.
type Event struct {
	Type    string
	UserID  string
	Address string
	OldFpr  string
	NewFpr  string
}

const (
	EventOwnKeyReset  = "own-key-reset"
	EventPeerKeyReset = "peer-key-reset"
)

// Manager is the Key-Reset Engine, holding the same collaborator shape as
// group.Manager: Store, Crypto Provider, Outbound Builder.
type Manager struct {
	store   store.Store
	crypto  CryptoProvider
	builder *outbound.Builder

	mu        sync.RWMutex
	listeners []chan Event
}

// New wires a Key-Reset Engine against its collaborators.
func New(st store.Store, crypto CryptoProvider, builder *outbound.Builder) *Manager {
	return &Manager{store: st, crypto: crypto, builder: builder}
}

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

// ─── key_reset(key_fpr?, identity?) — the five regimes of §4.2 ─────────

// KeyReset implements key_reset(key_fpr?, identity?). At least one of
// (fpr, id.UserID) must be present; fpr == "" and id == nil together mean
// "no F, no I" (regime 1).
func (m *Manager) KeyReset(ctx context.Context, fpr string, id *identity.Identity) error {
	switch {
	case fpr == "" && id == nil:
		return m.resetAllOwnKeys(ctx)
	case fpr == "" && id != nil && id.IsOwn() && id.Address == "":
		return m.resetEveryKeyForOwnUser(ctx, *id)
	case fpr == "" && id != nil && id.Address != "":
		resolved, ok, err := m.resolveDefaultFpr(ctx, *id)
		if err != nil {
			return fmt.Errorf("keyreset: key_reset: %w", err)
		}
		if !ok {
			return nil // nothing to do
		}
		return m.KeyReset(ctx, resolved, id)
	case fpr != "":
		return m.resetWithFingerprint(ctx, fpr, id)
	default:
		return fmt.Errorf("keyreset: key_reset: %w (need fpr or identity)", engine.StatusIllegalValue)
	}
}

func (m *Manager) resolveDefaultFpr(ctx context.Context, id identity.Identity) (string, bool, error) {
	if fpr, ok, err := m.store.DefaultKey(ctx, id.UserID, id.Address); err != nil {
		return "", false, err
	} else if ok && fpr != "" {
		return fpr, true, nil
	}
	return m.store.UserDefaultKey(ctx, id.UserID)
}

// resetAllOwnKeys implements key_reset_all_own_keys: regime 1.
func (m *Manager) resetAllOwnKeys(ctx context.Context) error {
	ids, err := m.store.ListOwnIdentities(ctx)
	if err != nil {
		return fmt.Errorf("keyreset: reset_all_own_keys: %w", err)
	}
	for _, id := range ids {
		if id.KeyFingerprint == "" {
			continue
		}
		own := id
		if err := m.KeyReset(ctx, id.KeyFingerprint, &own); err != nil {
			return err
		}
	}
	return nil
}

// resetEveryKeyForOwnUser implements regime 2: "no F, I is own without
// address" — recursively reset every key associated with I.user_id.
func (m *Manager) resetEveryKeyForOwnUser(ctx context.Context, id identity.Identity) error {
	entries, err := m.store.ListTrustForUser(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("keyreset: reset_every_key_for_own_user: %w", err)
	}
	for _, e := range entries {
		own := id
		if err := m.KeyReset(ctx, e.KeyFingerprint, &own); err != nil {
			return err
		}
	}
	return nil
}

// resetWithFingerprint dispatches regimes 4/5: an own key confirms it is
// in fact owned (private half present) before any further regime
// decision, per §4.2's universal own-key precondition.
func (m *Manager) resetWithFingerprint(ctx context.Context, fpr string, id *identity.Identity) error {
	if id != nil && id.IsOwn() {
		if !m.crypto.HasPrivate(fpr) {
			return fmt.Errorf("keyreset: key_reset: %w (not a privately-held own key)", engine.StatusKeyUnsuitable)
		}
		if id.IsDeviceGrouped() {
			return m.groupedOwnReset(ctx, fpr, *id)
		}
		return m.singleResetOwn(ctx, fpr, *id)
	}
	return m.singleResetPeer(ctx, fpr, id)
}

// ─── §4.2.a grouped own reset ───────────────────────────────────────────

// resetPair is one (identity, freshly generated replacement key) entry —
// kept separate from command-list assembly since "pick new keys" is a
// genuine seam reusable outside the self-message path.
type resetPair struct {
	Identity identity.Identity
	NewFpr   string
}

// groupedOwnReset implements §4.2.a: every own identity sharing fpr gets
// a fresh key; the change is announced to the device group in one
// self-addressed command-list message before the old key is revoked.
func (m *Manager) groupedOwnReset(ctx context.Context, fpr string, triggering identity.Identity) error {
	ids, err := m.store.ListIdentitiesByFingerprint(ctx, fpr)
	if err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
	}
	var group []identity.Identity
	for _, id := range ids {
		if id.IsOwn() {
			group = append(group, id)
		}
	}
	if len(group) == 0 {
		group = []identity.Identity{triggering}
	}

	pairs, err := m.generateResetKeys(group)
	if err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
	}

	list := m.buildOwnCommandList(fpr, pairs)
	env := codec.Envelope{Kind: codec.EnvelopeKeyReset, KeyReset: &list}
	payload, err := codec.Encode(env)
	if err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: encode command list: %w", err)
	}

	attachments, err := m.buildReplacementAttachments(pairs)
	if err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
	}

	selfAddr := group[0].Address
	if _, err := m.builder.BuildToFingerprint(ctx, selfAddr, selfAddr, fpr, fpr, payload, attachments); err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: self message: %w", err)
	}

	// Only after the self-message is enqueued: revoke the old key, mark
	// compromised, and cut it loose everywhere it was a default.
	if err := m.crypto.Revoke(fpr); err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: revoke old key: %w", err)
	}
	if err := m.crypto.Mistrust(fpr); err != nil {
		return fmt.Errorf("keyreset: grouped_own_reset: mistrust old key: %w", err)
	}

	now := time.Now()
	for _, p := range pairs {
		id := p.Identity
		id.KeyFingerprint = p.NewFpr
		if err := m.store.SetIdentity(ctx, id); err != nil {
			return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
		}
		if err := m.store.SetDefaultKey(ctx, id.UserID, id.Address, p.NewFpr); err != nil {
			return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
		}
		if err := m.store.ClearDefaultKey(ctx, id.UserID, id.Address, fpr); err != nil {
			return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
		}
		if err := m.store.SetReplacement(ctx, fpr, p.NewFpr, now); err != nil {
			return fmt.Errorf("keyreset: grouped_own_reset: %w", err)
		}
		if err := m.notifyRecentContacts(ctx, id, fpr, p.NewFpr); err != nil {
			return fmt.Errorf("keyreset: grouped_own_reset: notify contacts: %w", err)
		}
		m.emit(Event{Type: EventOwnKeyReset, UserID: id.UserID, Address: id.Address, OldFpr: fpr, NewFpr: p.NewFpr})
	}
	return nil
}

// generateResetKeys picks a fresh replacement key per identity.
func (m *Manager) generateResetKeys(ids []identity.Identity) ([]resetPair, error) {
	out := make([]resetPair, 0, len(ids))
	for _, id := range ids {
		key, err := m.crypto.GenerateKeyPair()
		if err != nil {
			return nil, fmt.Errorf("generate replacement key for %s: %w", id.Address, err)
		}
		out = append(out, resetPair{Identity: id, NewFpr: key.Fingerprint})
	}
	return out, nil
}

// buildOwnCommandList assembles the device-group self-message's command
// list.
func (m *Manager) buildOwnCommandList(oldFpr string, pairs []resetPair) codec.KeyResetList {
	cmds := make([]codec.KeyResetCommand, 0, len(pairs))
	for _, p := range pairs {
		ref := identityToRef(p.Identity)
		ref.KeyFingerprint = oldFpr // identity_with_old_fpr, per §4.2.a
		cmds = append(cmds, codec.KeyResetCommand{Identity: ref, NewFpr: p.NewFpr})
	}
	return codec.KeyResetList{Major: codec.CurrentMajor, Minor: codec.CurrentMinor, Commands: cmds}
}

// buildReplacementAttachments exports the public halves of every new key
// plus the private halves of own new keys (§4.2.a) for the device-group
// self-message. The standalone per-contact notice (§4.2.c) carries no
// attachments.
func (m *Manager) buildReplacementAttachments(pairs []resetPair) ([]transport.Attachment, error) {
	out := make([]transport.Attachment, 0, len(pairs))
	for _, p := range pairs {
		pub, priv, err := m.crypto.Export(p.NewFpr)
		if err != nil {
			return nil, fmt.Errorf("export replacement key %s: %w", p.NewFpr, err)
		}
		out = append(out, transport.Attachment{
			Filename: p.Identity.Address + "-key.asc",
			MimeType: "application/pgp-keys",
			Data:     append(append([]byte{}, pub...), priv...),
		})
	}
	return out, nil
}

// ─── §4.2.b single reset ────────────────────────────────────────────────

// singleResetOwn implements the own-key, partner-facing branch of §4.2.b.
func (m *Manager) singleResetOwn(ctx context.Context, fpr string, id identity.Identity) error {
	if err := m.crypto.Revoke(fpr); err != nil {
		return fmt.Errorf("keyreset: single_reset: revoke: %w", err)
	}
	key, err := m.crypto.GenerateKeyPair()
	if err != nil {
		return fmt.Errorf("keyreset: single_reset: generate: %w", err)
	}
	newFpr := key.Fingerprint

	id.KeyFingerprint = newFpr
	if err := m.store.SetIdentity(ctx, id); err != nil {
		return fmt.Errorf("keyreset: single_reset: %w", err)
	}
	if err := m.store.SetDefaultKey(ctx, id.UserID, id.Address, newFpr); err != nil {
		return fmt.Errorf("keyreset: single_reset: %w", err)
	}
	if err := m.crypto.Mistrust(fpr); err != nil {
		return fmt.Errorf("keyreset: single_reset: mistrust: %w", err)
	}
	if err := m.store.ClearDefaultKey(ctx, id.UserID, id.Address, fpr); err != nil {
		return fmt.Errorf("keyreset: single_reset: %w", err)
	}
	if err := m.store.SetReplacement(ctx, fpr, newFpr, time.Now()); err != nil {
		return fmt.Errorf("keyreset: single_reset: %w", err)
	}

	// The new key inherits a pEp/appropriate comm-type from its raw
	// rating — never confirmed purely from arithmetic (§4.2.b).
	rating, _ := m.crypto.RawRating(newFpr)
	if err := m.store.SetTrust(ctx, identity.TrustEntry{
		UserID: id.UserID, KeyFingerprint: newFpr, CommType: ratingToCommType(rating), Confirmed: false,
	}); err != nil {
		return fmt.Errorf("keyreset: single_reset: %w", err)
	}

	if err := m.notifyRecentContacts(ctx, id, fpr, newFpr); err != nil {
		return fmt.Errorf("keyreset: single_reset: notify contacts: %w", err)
	}
	m.emit(Event{Type: EventOwnKeyReset, UserID: id.UserID, Address: id.Address, OldFpr: fpr, NewFpr: newFpr})
	return nil
}

// singleResetPeer implements the peer-key branch of §4.2.b: we don't know
// whether the peer will re-announce with a new key, so the next contact
// will TOFU.
func (m *Manager) singleResetPeer(ctx context.Context, fpr string, id *identity.Identity) error {
	var userID, address string
	if id != nil {
		userID, address = id.UserID, id.Address
	}
	if err := m.store.ClearTrust(ctx, userID, fpr); err != nil {
		return fmt.Errorf("keyreset: single_reset_peer: %w", err)
	}
	if m.crypto.IsMistrusted(fpr) {
		if err := m.crypto.ClearMistrust(fpr); err != nil {
			return fmt.Errorf("keyreset: single_reset_peer: %w", err)
		}
	}
	if address != "" {
		if err := m.store.ClearDefaultKey(ctx, userID, address, fpr); err != nil {
			return fmt.Errorf("keyreset: single_reset_peer: %w", err)
		}
	}
	if err := m.crypto.Delete(fpr); err != nil {
		return fmt.Errorf("keyreset: single_reset_peer: %w", err)
	}
	m.emit(Event{Type: EventPeerKeyReset, UserID: userID, Address: address, OldFpr: fpr})
	return nil
}

// ─── §4.2.c recent-contact notification ─────────────────────────────────

// notifyRecentContacts implements §4.2.c exactly: the asymmetric contact
// check and the write-only notified-contact ledger.
func (m *Manager) notifyRecentContacts(ctx context.Context, ownFrom identity.Identity, oldFpr, newFpr string) error {
	peers, err := m.store.RecentContacts(ctx, ownFrom.Address)
	if err != nil {
		return fmt.Errorf("recent contacts: %w", err)
	}
	for _, peer := range peers {
		if peer.UserID == ownFrom.UserID {
			continue // skip self
		}
		notified, err := m.store.HasNotifiedContact(ctx, ownFrom.Address, oldFpr, peer.UserID)
		if err != nil {
			return fmt.Errorf("has notified contact: %w", err)
		}
		if notified {
			continue
		}
		// Asymmetric contact check: only notify a peer who has themselves
		// contacted ownFrom before.
		contacted, err := m.store.HasContacted(ctx, peer.UserID, ownFrom.Address)
		if err != nil {
			return fmt.Errorf("has contacted: %w", err)
		}
		if !contacted {
			continue
		}

		ref := identityToRef(ownFrom)
		ref.KeyFingerprint = oldFpr
		list := codec.KeyResetList{
			Major:    codec.CurrentMajor,
			Minor:    codec.CurrentMinor,
			Commands: []codec.KeyResetCommand{{Identity: ref, NewFpr: newFpr}},
		}
		env := codec.Envelope{Kind: codec.EnvelopeKeyReset, KeyReset: &list}
		payload, err := codec.Encode(env)
		if err != nil {
			return fmt.Errorf("encode standalone reset: %w", err)
		}
		// No private key material on a standalone notice — only the
		// device-group self-message carries private halves.
		if _, err := m.builder.Build(ctx, ownFrom, peer, payload, nil); err != nil {
			return fmt.Errorf("notify %s: %w", peer.Address, err)
		}
		if err := m.store.SetNotifiedContact(ctx, ownFrom.Address, oldFpr, peer.UserID); err != nil {
			return fmt.Errorf("record notified contact: %w", err)
		}
	}
	return nil
}

// ─── receive_key_reset(msg) ──────────────────────────────────────────────

// resetPlan is one validated, to-be-applied command from an inbound list.
// Building the whole plan before mutating anything is what gives receive
// its "no partial application" guarantee (§4.2, §8).
type resetPlan struct {
	target  identity.Identity
	oldFpr  string
	newFpr  string
	ownOld  bool
	skipped bool
}

// ReceiveKeyReset implements the five-step receive algorithm of §4.2 and
// the fatal/recoverable distinction of §7: malformed payloads, unknown
// old keys, revoked signer keys and mistrusted signer keys are fatal.
func (m *Manager) ReceiveKeyReset(ctx context.Context, msg InboundMessage, payload codec.KeyResetList) error {
	// Step 1: cannot accept reset instructions from a dead key.
	if m.crypto.IsRevoked(msg.SignerFingerprint) {
		return fmt.Errorf("keyreset: receive_key_reset: %w (signer key revoked)", engine.StatusKeyRevoked)
	}
	if m.crypto.IsMistrusted(msg.SignerFingerprint) {
		return fmt.Errorf("keyreset: receive_key_reset: %w (signer key mistrusted)", engine.StatusKeyRevoked)
	}

	// Step 2: resolve sender identity (own or peer).
	sender, err := m.store.GetIdentityByAddress(ctx, msg.FromAddress)
	senderIsOwn := err == nil && sender.IsOwn()
	if senderIsOwn {
		trust, terr := m.store.GetTrust(ctx, sender.UserID, msg.SignerFingerprint)
		if terr != nil || !trust.CommType.AtLeast(identity.CommPEP) {
			return fmt.Errorf("keyreset: receive_key_reset: %w (own sender key not trusted)", engine.StatusKeyRevoked)
		}
	}

	if len(payload.Commands) == 0 {
		return fmt.Errorf("keyreset: receive_key_reset: %w (empty command list)", engine.StatusMalformedKeyResetMsg)
	}

	// Step 3: import every attachment up front; track which new
	// fingerprints the Crypto Provider now actually knows about.
	imported := map[string]bool{}
	for _, att := range msg.Attachments {
		pub, priv := splitKeyAttachment(att.Data)
		if fpr, ierr := m.crypto.Import(pub, priv); ierr == nil {
			imported[fpr] = true
		}
	}

	// Validate every command has an identity (with address) and a new_fpr.
	for _, cmd := range payload.Commands {
		if cmd.Identity.Address == "" || cmd.NewFpr == "" {
			return fmt.Errorf("keyreset: receive_key_reset: %w (missing address or new_fpr)", engine.StatusMalformedKeyResetMsg)
		}
	}

	// Step 4, validation pass: build the whole plan before mutating
	// anything, so a single bad command aborts the list cleanly.
	plan := make([]resetPlan, 0, len(payload.Commands))
	for _, cmd := range payload.Commands {
		oldFpr := cmd.Identity.KeyFingerprint
		if senderIsOwn && m.crypto.IsRevoked(oldFpr) {
			plan = append(plan, resetPlan{skipped: true}) // idempotent replay
			continue
		}
		if !imported[cmd.NewFpr] {
			return fmt.Errorf("keyreset: receive_key_reset: %w (new key not locally findable)", engine.StatusMalformedKeyResetMsg)
		}

		target, terr := m.store.GetIdentityByAddress(ctx, cmd.Identity.Address)
		if terr != nil {
			target = refToIdentity(cmd.Identity)
			target.KeyFingerprint = oldFpr
		} else {
			target.UserID = resolveUserID(target, cmd.Identity)
		}

		if _, terr := m.store.GetTrust(ctx, target.UserID, oldFpr); terr != nil {
			// We refuse to accept a reset for a key we never associated
			// with the sender — surfaced verbatim to the app (§7).
			return fmt.Errorf("keyreset: receive_key_reset: %w", engine.StatusKeyNotReset)
		}

		if !senderIsOwn {
			if !m.crypto.IsRevoked(oldFpr) {
				return fmt.Errorf("keyreset: receive_key_reset: %w (peer old key not yet revoked)", engine.StatusMalformedKeyResetMsg)
			}
			if m.crypto.IsRevoked(cmd.NewFpr) {
				return fmt.Errorf("keyreset: receive_key_reset: %w (new key already revoked)", engine.StatusMalformedKeyResetMsg)
			}
		}

		plan = append(plan, resetPlan{target: target, oldFpr: oldFpr, newFpr: cmd.NewFpr, ownOld: senderIsOwn})
	}

	// Step 4/5, apply pass: every command in the validated plan is now
	// applied; a failure here is infrastructural, not a reason to leave
	// some commands applied and others not, since validation already
	// ruled out malformed input.
	now := time.Now()
	for _, p := range plan {
		if p.skipped {
			continue
		}
		if p.ownOld {
			if err := m.crypto.Revoke(p.oldFpr); err != nil && !m.crypto.IsRevoked(p.oldFpr) {
				return fmt.Errorf("keyreset: receive_key_reset: revoke old: %w", err)
			}
		} else {
			if err := m.crypto.Delete(p.oldFpr); err != nil {
				return fmt.Errorf("keyreset: receive_key_reset: delete old: %w", err)
			}
		}

		target := p.target
		target.KeyFingerprint = p.newFpr
		if err := m.store.SetIdentity(ctx, target); err != nil {
			return fmt.Errorf("keyreset: receive_key_reset: %w", err)
		}
		if err := m.store.SetDefaultKey(ctx, target.UserID, target.Address, p.newFpr); err != nil {
			return fmt.Errorf("keyreset: receive_key_reset: %w", err)
		}

		rating, _ := m.crypto.RawRating(p.newFpr)
		if err := m.store.SetTrust(ctx, identity.TrustEntry{
			UserID: target.UserID, KeyFingerprint: p.newFpr, CommType: ratingToCommType(rating), Confirmed: false,
		}); err != nil {
			return fmt.Errorf("keyreset: receive_key_reset: %w", err)
		}
		if err := m.store.SetReplacement(ctx, p.oldFpr, p.newFpr, now); err != nil {
			return fmt.Errorf("keyreset: receive_key_reset: %w", err)
		}
		log.Debugf("applied reset %s -> %s for %s", p.oldFpr, p.newFpr, target.Address)
	}
	return nil
}

func resolveUserID(stored identity.Identity, ref codec.IdentityRef) string {
	if ref.UserID != "" {
		return ref.UserID
	}
	return stored.UserID
}

// splitKeyAttachment mirrors group's attachment layout: a fixed 64-byte
// public blob (box public + sign public) followed by the private halves,
// if any.
func splitKeyAttachment(data []byte) (pub, priv []byte) {
	const pubLen = 64
	if len(data) < pubLen {
		return data, nil
	}
	return data[:pubLen], data[pubLen:]
}

// ratingToCommType derives a comm-type from a raw Crypto Provider rating,
// always landing below the confirmed pEp tier — confirmation is a human
// action, never derived arithmetically (§4.2.b).
func ratingToCommType(r identity.Rating) identity.CommType {
	switch {
	case r <= identity.RatingMistrust:
		return identity.CommMistrusted
	case r < identity.RatingUnreliable:
		return identity.CommKeyNotFound
	case r < identity.RatingReliable:
		return identity.CommStrongUnconfirmed
	default:
		return identity.CommPEPUnconfirmed
	}
}

func refToIdentity(ref codec.IdentityRef) identity.Identity {
	return identity.Identity{
		UserID:         ref.UserID,
		Address:        ref.Address,
		KeyFingerprint: ref.KeyFingerprint,
		DisplayName:    ref.DisplayName,
	}
}

func identityToRef(id identity.Identity) codec.IdentityRef {
	return codec.IdentityRef{
		UserID:         id.UserID,
		Address:        id.Address,
		KeyFingerprint: id.KeyFingerprint,
		DisplayName:    id.DisplayName,
	}
}
