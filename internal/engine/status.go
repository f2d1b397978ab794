// Package engine wires the Store, Crypto Provider, Peer Evaluator and
// Transport together behind one Session (§4.10), and defines the typed
// status enum §7 requires: "Errors are communicated via a typed status
// enum, never via sentinel pointers."
package engine

import "errors"

// Status is a comparable error type carrying one of the named categories
// of §7. It implements error so callers can use errors.Is/errors.As
// across the Store boundary exactly as they would with any other error.
type Status string

func (s Status) Error() string { return string(s) }

// Input errors (§7 "illegal-value").
const (
	StatusIllegalValue Status = "illegal-value"
)

// Not-found errors (§7).
const (
	StatusGroupNotFound          Status = "group-not-found"
	StatusCannotFindIdentity     Status = "cannot-find-identity"
	StatusKeyNotFound            Status = "key-not-found"
	StatusNoMembershipStatusFound Status = "no-membership-status-found"
)

// Cryptographic errors (§7).
const (
	StatusKeyRevoked    Status = "key-revoked"
	StatusKeyUnsuitable Status = "key-unsuitable"
	StatusKeyNotReset   Status = "key-not-reset"
	StatusNoTrust       Status = "no-trust"
)

// Protocol errors (§7) — safe to drop on receive.
const (
	StatusDistributionIllegalMessage Status = "distribution-illegal-message"
	StatusMalformedKeyResetMsg       Status = "malformed-key-reset-msg"
	StatusMessageIgnore              Status = "message-ignore"
)

// Infrastructural errors (§7).
const (
	StatusOutOfMemory             Status = "out-of-memory"
	StatusUnknownDBError          Status = "unknown-db-error"
	StatusSendFunctionNotRegistered Status = "send-function-not-registered"
	StatusCannotCreateGroup       Status = "cannot-create-group"
	StatusCannotEnableGroup       Status = "cannot-enable-group"
	StatusCannotDisableGroup      Status = "cannot-disable-group"
	StatusCannotAddMember         Status = "cannot-add-member"
	StatusCannotLeaveGroup        Status = "cannot-leave-group"
)

// Ignorable reports whether a status is the one §7 exception: a
// message-ignore status is equivalent to OK for the receive-side caller —
// the malicious or stale message is dropped, local state is untouched,
// and the caller is not troubled.
func Ignorable(err error) bool {
	return errors.Is(err, StatusMessageIgnore)
}
