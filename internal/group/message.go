package group

import (
	"github.com/meshcore/trustengine/internal/codec"
	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/transport"
)

// GroupKeyFilename / GroupKeyMIME name the private-key attachment §4.1
// requires on groupCreate.
const (
	GroupKeyFilename = "group-key.asc"
	GroupKeyMIME     = "application/pgp-keys"
)

// InboundMessage is what the caller hands ReceiveManagedGroupMessage
// after decrypting a message per §6's "Inbound demultiplex" contract: the
// engine trusts the rating and the signer fingerprint exposed here, and
// does not re-verify cryptographically (§6).
type InboundMessage struct {
	// SignerFingerprint is the cryptographically-verified signer of the
	// envelope — the source of truth for who sent the command (§9).
	SignerFingerprint string
	// FromAddress is the envelope's From header — what the sender claims
	// about themselves, to be cross-checked against SignerFingerprint.
	FromAddress string
	// ToAddresses lists every recipient address on the envelope.
	ToAddresses []string
	Attachments []transport.Attachment
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

// buildCommand assembles the codec envelope for one of the three wire
// commands of §4.1.
func buildCommand(kind codec.CommandKind, groupIdentity, second identity.Identity) codec.Envelope {
	return codec.Envelope{
		Kind: codec.EnvelopeManagedGroup,
		ManagedGroup: &codec.ManagedGroupCommand{
			Kind:   kind,
			First:  identityToRef(groupIdentity),
			Second: identityToRef(second),
		},
	}
}

// Event is emitted to local listeners on every state transition the Group
// Engine performs, for observability (no browser frontend in this
// module — a programmatic event bus replaces a push-based UI channel).
type Event struct {
	Type  string
	Group string
	From  string
}

const (
	EventGroupCreated   = "group-created"
	EventGroupJoined    = "group-joined"
	EventMemberJoined   = "member-joined"
	EventGroupDissolved = "group-dissolved"
	EventMemberRemoved  = "member-removed"
)
