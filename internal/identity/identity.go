// Package identity implements the shared data model of §3: identities,
// trust entries, comm-types and ratings. It holds no storage or crypto
// logic of its own — those are the Store and Crypto Provider contracts.
package identity

import "fmt"

// Flag is a capability bit carried on an Identity.
type Flag uint8

const (
	// FlagOwn marks an identity whose private key this device holds.
	FlagOwn Flag = 1 << iota
	// FlagGroupIdentity marks an identity representing a group's shared key.
	FlagGroupIdentity
	// FlagDeviceGroup marks an own identity that shares its key with other
	// devices of the same user (see GLOSSARY "Device group").
	FlagDeviceGroup
	// FlagNotForSync excludes an identity from device-group synchronization.
	FlagNotForSync
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// CommType is the ordered confidence/trust enum of §3: unknown <
// key-not-found < key-expired < key-revoked < mistrusted <
// strong-unconfirmed < OpenPGP-unconfirmed < pEp-unconfirmed < pEp.
// Confirmation is tracked separately (see Identity.Confirmed) since it is
// a human action, never derived arithmetically (§4.2.b).
type CommType int

const (
	CommUnknown CommType = iota
	CommKeyNotFound
	CommKeyExpired
	CommKeyRevoked
	CommMistrusted
	CommStrongUnconfirmed
	CommOpenPGPUnconfirmed
	CommPEPUnconfirmed
	CommPEP
)

func (c CommType) String() string {
	switch c {
	case CommUnknown:
		return "unknown"
	case CommKeyNotFound:
		return "key-not-found"
	case CommKeyExpired:
		return "key-expired"
	case CommKeyRevoked:
		return "key-revoked"
	case CommMistrusted:
		return "mistrusted"
	case CommStrongUnconfirmed:
		return "strong-unconfirmed"
	case CommOpenPGPUnconfirmed:
		return "OpenPGP-unconfirmed"
	case CommPEPUnconfirmed:
		return "pEp-unconfirmed"
	case CommPEP:
		return "pEp"
	default:
		return fmt.Sprintf("CommType(%d)", int(c))
	}
}

// AtLeast reports whether c meets or exceeds the given minimum, per the
// ordering defined by §3.
func (c CommType) AtLeast(min CommType) bool { return c >= min }

// Identity is the (user_id, address, key_fingerprint) triple of §3, plus
// its attributes.
type Identity struct {
	UserID         string
	Address        string
	KeyFingerprint string
	DisplayName    string
	Flags          Flag
	CommType       CommType
	Confirmed      bool
}

// IsOwn reports whether this identity is one whose private key the local
// device holds.
func (i Identity) IsOwn() bool { return i.Flags.Has(FlagOwn) }

// IsGroupIdentity reports whether this identity represents a group's
// shared keypair.
func (i Identity) IsGroupIdentity() bool { return i.Flags.Has(FlagGroupIdentity) }

// IsDeviceGrouped reports whether this own identity shares its key across
// a device group.
func (i Identity) IsDeviceGrouped() bool { return i.Flags.Has(FlagDeviceGroup) }

// TrustEntry is a (user_id, key_fingerprint) -> comm-type row. Multiple
// keys per identity are permitted; see §3 "identity default" / "user
// default" resolution, which lives in the Store contract.
type TrustEntry struct {
	UserID         string
	KeyFingerprint string
	CommType       CommType
	Confirmed      bool
}

// Rating is the ordinal trust/confidence measure attached to a message or
// identity (GLOSSARY). RatingReliable is the minimum acceptable rating for
// processing a distribution command (§4.1).
type Rating int

const (
	RatingMistrust Rating = iota - 2
	RatingUndefined
	RatingCannotDecrypt
	RatingHaveNoKey
	RatingUnreliable
	RatingReliable
	RatingTrusted
	RatingTrustedAndAnonymized
	RatingFullyAnonymous
)

func (r Rating) AtLeast(min Rating) bool { return r >= min }

// Key pairs a fingerprint with the comm-type/trust context needed to pick
// defaults. It is the shape the Store returns for "identity default" /
// "user default" lookups (§3).
type Key struct {
	Fingerprint string
	CommType    CommType
	IsDefault   bool
}
