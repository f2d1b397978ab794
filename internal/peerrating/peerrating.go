// Package peerrating implements the Peer Evaluator contract: identity
// rating, pEp-user classification and version negotiation are out of
// scope here (spec), so the default implementation derives a rating
// purely from an identity's comm-type.
package peerrating

import (
	"context"

	"github.com/meshcore/trustengine/internal/identity"
)

// Evaluator rates an identity for the purpose of deciding whether a
// distribution command may be sent to or accepted from it.
type Evaluator interface {
	Rate(ctx context.Context, id identity.Identity) (identity.Rating, error)
}

// Default maps CommType directly onto Rating. Real peer evaluation
// (message history, protocol version negotiation) is explicitly out of
// scope; this is the narrow relationship spec.md implies between
// comm-type and rating.
type Default struct{}

func New() Default { return Default{} }

func (Default) Rate(ctx context.Context, id identity.Identity) (identity.Rating, error) {
	if id.CommType == identity.CommMistrusted {
		return identity.RatingMistrust, nil
	}
	if !id.CommType.AtLeast(identity.CommKeyNotFound) {
		return identity.RatingUndefined, nil
	}

	switch {
	case id.CommType == identity.CommKeyNotFound:
		return identity.RatingHaveNoKey, nil
	case id.CommType == identity.CommKeyExpired, id.CommType == identity.CommKeyRevoked:
		return identity.RatingUnreliable, nil
	case id.CommType == identity.CommStrongUnconfirmed, id.CommType == identity.CommOpenPGPUnconfirmed:
		return identity.RatingReliable, nil
	case id.CommType == identity.CommPEPUnconfirmed:
		return identity.RatingReliable, nil
	case id.CommType == identity.CommPEP && id.Confirmed:
		return identity.RatingTrustedAndAnonymized, nil
	case id.CommType == identity.CommPEP:
		return identity.RatingTrusted, nil
	default:
		return identity.RatingUndefined, nil
	}
}
