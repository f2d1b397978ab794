// Package outbound implements the Outbound Builder of spec.md §4.4: it
// wraps a command payload into a signed, encrypted Distribution message
// and hands it to Transport. Transport owns the message from that point.
package outbound

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/meshcore/trustengine/internal/cryptoprovider"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/logging"
	"github.com/meshcore/trustengine/internal/store"
	"github.com/meshcore/trustengine/internal/transport"
)

var log = logging.Logger("outbound")

// ErrNoTrust is returned when the recipient has no acceptable default key
// to encrypt to (§4.4 step 3).
var ErrNoTrust = fmt.Errorf("outbound: recipient has no acceptable key")

// ErrSendNotRegistered mirrors transport.ErrSendNotRegistered: the builder
// fails synchronously if no Transport has been registered (§4.4).
var ErrSendNotRegistered = transport.ErrSendNotRegistered

// CryptoProvider is the narrow slice of the Crypto Provider contract the
// builder needs: sign and encrypt, addressed by fingerprint.
type CryptoProvider interface {
	Sign(fpr string, data []byte) ([]byte, error)
	Encrypt(recipientFpr string, plaintext []byte) ([]byte, error)
}

// Builder assembles a signed/encrypted command message with attachments
// and hands it to Transport (§4.4).
type Builder struct {
	Crypto    CryptoProvider
	Store     store.Store
	Transport transport.Transport
}

// New returns a Builder wired against the given collaborators. Transport
// may be nil; Build then fails with ErrSendNotRegistered, per §4.4 "if
// Transport is not registered, the builder fails synchronously".
func New(crypto CryptoProvider, st store.Store, tr transport.Transport) *Builder {
	return &Builder{Crypto: crypto, Store: st, Transport: tr}
}

// signedEnvelope is the wire shape Build produces before encryption: the
// codec-encoded payload plus a detached signature, so the recipient can
// verify sender authenticity once decrypted.
type signedEnvelope struct {
	Payload   []byte
	Signature []byte
}

// Build wraps payload into a distribution envelope signed by ownFrom and
// encrypted to recipient's default key, tags it auto-consume, and hands
// it to Transport. The five steps mirror §4.4 verbatim.
func (b *Builder) Build(ctx context.Context, ownFrom, recipient identity.Identity, payload []byte, attachments []transport.Attachment) (transport.OutboundMessage, error) {
	if b.Transport == nil {
		return transport.OutboundMessage{}, ErrSendNotRegistered
	}
	if ownFrom.KeyFingerprint == "" {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: own_from has no signing key")
	}

	// Step 2: sign with own_from's key — required, no unsigned distribution
	// messages.
	sig, err := b.Crypto.Sign(ownFrom.KeyFingerprint, payload)
	if err != nil {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: sign: %w", err)
	}

	// Step 3: encrypt to the recipient's default key.
	recipientFpr := recipient.KeyFingerprint
	if recipientFpr == "" && b.Store != nil {
		fpr, ok, derr := b.Store.DefaultKey(ctx, recipient.UserID, recipient.Address)
		if derr != nil {
			return transport.OutboundMessage{}, fmt.Errorf("outbound: resolve recipient default key: %w", derr)
		}
		if !ok {
			// Fall back to the recipient user's default key.
			fpr, ok, derr = b.Store.UserDefaultKey(ctx, recipient.UserID)
			if derr != nil {
				return transport.OutboundMessage{}, fmt.Errorf("outbound: resolve recipient default key: %w", derr)
			}
		}
		if ok {
			recipientFpr = fpr
		}
	}
	if recipientFpr == "" {
		return transport.OutboundMessage{}, ErrNoTrust
	}

	framed := frameSigned(signedEnvelope{Payload: payload, Signature: sig})
	ciphertext, err := b.Crypto.Encrypt(recipientFpr, framed)
	if err != nil {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: encrypt: %w", err)
	}

	// Attachments are duplicated per recipient (§9: "owned payload /
	// borrowed recipient") so one recipient's Transport consumption cannot
	// disturb another's.
	dup := make([]transport.Attachment, len(attachments))
	for i, a := range attachments {
		data := make([]byte, len(a.Data))
		copy(data, a.Data)
		dup[i] = transport.Attachment{Filename: a.Filename, MimeType: a.MimeType, Data: data}
	}

	msg := transport.OutboundMessage{
		ID:          uuid.NewString(),
		FromAddress: ownFrom.Address,
		ToAddress:   recipient.Address,
		Envelope:    ciphertext,
		Attachments: dup,
		AutoConsume: true, // step 4: tag for silent process-and-drop
	}

	// Step 5: hand to Transport. Transport owns msg from here.
	if err := b.Transport.Send(ctx, msg); err != nil {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: send: %w", err)
	}
	log.Debugf("sent %s -> %s (%d bytes, %d attachments)", ownFrom.Address, recipient.Address, len(msg.Envelope), len(dup))
	return msg, nil
}

// BuildToFingerprint is Build's variant for the one case §4.2.a needs: a
// self-addressed device-group message that must be signed by and
// encrypted to a specific old fingerprint, not whatever the Store
// currently names as the recipient's default key (the whole point of the
// message is to reach devices that have not yet heard about the new key).
func (b *Builder) BuildToFingerprint(ctx context.Context, fromAddress, toAddress, signFpr, encryptFpr string, payload []byte, attachments []transport.Attachment) (transport.OutboundMessage, error) {
	if b.Transport == nil {
		return transport.OutboundMessage{}, ErrSendNotRegistered
	}
	sig, err := b.Crypto.Sign(signFpr, payload)
	if err != nil {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: sign: %w", err)
	}
	framed := frameSigned(signedEnvelope{Payload: payload, Signature: sig})
	ciphertext, err := b.Crypto.Encrypt(encryptFpr, framed)
	if err != nil {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: encrypt: %w", err)
	}

	dup := make([]transport.Attachment, len(attachments))
	for i, a := range attachments {
		data := make([]byte, len(a.Data))
		copy(data, a.Data)
		dup[i] = transport.Attachment{Filename: a.Filename, MimeType: a.MimeType, Data: data}
	}

	msg := transport.OutboundMessage{
		ID:          uuid.NewString(),
		FromAddress: fromAddress,
		ToAddress:   toAddress,
		Envelope:    ciphertext,
		Attachments: dup,
		AutoConsume: true,
	}
	if err := b.Transport.Send(ctx, msg); err != nil {
		return transport.OutboundMessage{}, fmt.Errorf("outbound: send: %w", err)
	}
	return msg, nil
}

// frameSigned length-prefixes payload ahead of signature so the receiver
// (outside this package's scope — the decrypting caller per §6) can split
// the two without ambiguity. It is a tiny TLV, matching the codec's own
// length-prefixed style rather than introducing a second framing idiom.
func frameSigned(env signedEnvelope) []byte {
	out := make([]byte, 0, 4+len(env.Payload)+4+len(env.Signature))
	out = appendUint32(out, uint32(len(env.Payload)))
	out = append(out, env.Payload...)
	out = appendUint32(out, uint32(len(env.Signature)))
	out = append(out, env.Signature...)
	return out
}

func appendUint32(b []byte, v uint32) []byte {
	return append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// Unframe splits a decrypted plaintext back into payload and signature,
// the inverse of frameSigned. Exported so engine.Dispatch (the inbound
// side, outside this package's core scope but sharing its wire shape) can
// recover the signed payload after Crypto.Decrypt.
func Unframe(data []byte) (payload, signature []byte, err error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("outbound: truncated frame")
	}
	n := readUint32(data)
	data = data[4:]
	if len(data) < int(n) {
		return nil, nil, fmt.Errorf("outbound: truncated payload")
	}
	payload = data[:n]
	data = data[n:]
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("outbound: truncated signature length")
	}
	m := readUint32(data)
	data = data[4:]
	if len(data) < int(m) {
		return nil, nil, fmt.Errorf("outbound: truncated signature")
	}
	signature = data[:m]
	return payload, signature, nil
}

func readUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ensure cryptoprovider.Provider satisfies CryptoProvider at compile time
// without importing it into the exported API surface.
var _ CryptoProvider = (*cryptoprovider.Provider)(nil)
