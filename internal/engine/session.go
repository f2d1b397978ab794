package engine

import (
	"context"
	"fmt"

	"github.com/meshcore/trustengine/internal/codec"
	"github.com/meshcore/trustengine/internal/cryptoprovider"
	"github.com/meshcore/trustengine/internal/group"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/keyreset"
	"github.com/meshcore/trustengine/internal/logging"
	"github.com/meshcore/trustengine/internal/outbound"
	"github.com/meshcore/trustengine/internal/peerrating"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
	"github.com/meshcore/trustengine/internal/util"
)

var log = logging.Logger("engine")

// RawInbound is what the transport layer hands Session.Dispatch after
// taking a message off the wire: still-encrypted bytes addressed to one
// of our own identities, per §6's "Inbound demultiplex" contract.
type RawInbound struct {
	ToAddress   string
	FromAddress string
	Ciphertext  []byte
	Attachments []transport.Attachment
}

// Session is the composition root of §4.10/§2: it owns the Store, Crypto
// Provider, Peer Evaluator and Transport, constructs the Outbound
// Builder and the Group/Key-Reset Engines against them, and wires
// group_remove_member's key-reset hook. Callers drive it exclusively
// through the sender-side Manager methods and Dispatch; Session itself
// holds no managed-group or key-reset logic of its own.
type Session struct {
	Store     store.Store
	Crypto    *cryptoprovider.Provider
	Rater     peerrating.Evaluator
	Transport transport.Transport

	Builder  *outbound.Builder
	Groups   *group.Manager
	KeyReset *keyreset.Manager

	history *util.RingBuffer[HistoryEvent]
}

// NewSession wires every collaborator per §2's "Components" table. Any of
// rater/tr may be nil; a nil rater defaults to peerrating.Default{}, a
// nil Transport leaves the Outbound Builder in its fail-synchronously
// state until one is registered later (mirrors transport.Transport's own
// "absence is a fatal precondition" contract).
func NewSession(st store.Store, crypto *cryptoprovider.Provider, rater peerrating.Evaluator, tr transport.Transport) *Session {
	if rater == nil {
		rater = peerrating.New()
	}
	builder := outbound.New(crypto, st, tr)
	groups := group.New(st, crypto, rater, builder)
	resets := keyreset.New(st, crypto, builder)
	groups.SetKeyResetter(resets)

	return &Session{
		Store:     st,
		Crypto:    crypto,
		Rater:     rater,
		Transport: tr,
		Builder:   builder,
		Groups:    groups,
		KeyReset:  resets,
		history:   watchHistory(groups, resets),
	}
}

// SetTransport installs (or replaces) the Transport backing the Outbound
// Builder, e.g. once a libp2p host has finished bootstrapping.
func (s *Session) SetTransport(tr transport.Transport) {
	s.Transport = tr
	s.Builder.Transport = tr
}

// AttachLibP2P wires tr as both the outbound Transport and the inbound
// entry point: every stream tr receives is converted to a RawInbound and
// handed to Dispatch.
func (s *Session) AttachLibP2P(tr *transport.LibP2PTransport) {
	s.SetTransport(tr)
	tr.SetHandler(func(ctx context.Context, msg transport.InboundMessage) error {
		err := s.Dispatch(ctx, RawInbound{
			ToAddress:   msg.ToAddress,
			FromAddress: msg.FromAddress,
			Ciphertext:  msg.Envelope,
			Attachments: msg.Attachments,
		})
		if err != nil && !Ignorable(err) {
			log.Warnf("dispatch from %s: %v", msg.FromAddress, err)
		}
		return err
	})
}

// Dispatch implements the inbound half of §6: decrypt with the
// recipient's own key, verify the detached signature against the
// claimed sender's default key, decode the Distribution envelope, rate
// the sender, and hand the decoded command to whichever Engine owns its
// kind. A message-ignore status is the one outcome callers should treat
// as equivalent to OK (§7); every other non-nil error is surfaced.
func (s *Session) Dispatch(ctx context.Context, raw RawInbound) error {
	recipient, err := s.Store.GetIdentityByAddress(ctx, raw.ToAddress)
	if err != nil || recipient.KeyFingerprint == "" {
		return fmt.Errorf("engine: dispatch: %w", StatusCannotFindIdentity)
	}

	framed, err := s.Crypto.Decrypt(recipient.KeyFingerprint, raw.Ciphertext)
	if err != nil {
		return fmt.Errorf("engine: dispatch: %w", StatusDistributionIllegalMessage)
	}
	payload, sig, err := outbound.Unframe(framed)
	if err != nil {
		return fmt.Errorf("engine: dispatch: %w", StatusDistributionIllegalMessage)
	}

	sender, err := s.Store.GetIdentityByAddress(ctx, raw.FromAddress)
	if err != nil || sender.KeyFingerprint == "" {
		return fmt.Errorf("engine: dispatch: %w", StatusCannotFindIdentity)
	}
	if ok, verr := s.Crypto.Verify(sender.KeyFingerprint, payload, sig); verr != nil || !ok {
		return fmt.Errorf("engine: dispatch: %w (signature verification failed)", StatusDistributionIllegalMessage)
	}

	env, err := codec.Decode(payload)
	if err != nil {
		return fmt.Errorf("engine: dispatch: %w", StatusDistributionIllegalMessage)
	}

	rating, rerr := s.Rater.Rate(ctx, sender)
	if rerr != nil {
		rating = identity.RatingUndefined
	}

	switch env.Kind {
	case codec.EnvelopeManagedGroup:
		msg := group.InboundMessage{
			SignerFingerprint: sender.KeyFingerprint,
			FromAddress:       raw.FromAddress,
			ToAddresses:       []string{raw.ToAddress},
			Attachments:       raw.Attachments,
		}
		if env.ManagedGroup == nil {
			return fmt.Errorf("engine: dispatch: %w", StatusDistributionIllegalMessage)
		}
		return s.Groups.ReceiveManagedGroupMessage(ctx, msg, rating, *env.ManagedGroup)
	case codec.EnvelopeKeyReset:
		if env.KeyReset == nil {
			return fmt.Errorf("engine: dispatch: %w", StatusMalformedKeyResetMsg)
		}
		msg := keyreset.InboundMessage{
			SignerFingerprint: sender.KeyFingerprint,
			FromAddress:       raw.FromAddress,
			Attachments:       raw.Attachments,
		}
		return s.KeyReset.ReceiveKeyReset(ctx, msg, *env.KeyReset)
	default:
		log.Warnf("dispatch: unknown envelope kind %d from %s", env.Kind, raw.FromAddress)
		return fmt.Errorf("engine: dispatch: %w", StatusDistributionIllegalMessage)
	}
}
