// Package transport implements the Transport contract of spec.md §6: a
// single "send and take ownership" callback the Outbound Builder hands a
// finished message to. The engine itself never blocks past the call.
package transport

import (
	"context"
	"errors"
)

// ErrSendNotRegistered is returned by a nil Transport — "absence of a
// messageToSend registration is a fatal precondition for any
// send-initiating operation" (spec.md §6).
var ErrSendNotRegistered = errors.New("transport: send function not registered")

// Attachment is one piece of key material (or other binary payload)
// riding alongside a command, e.g. the group private key on groupCreate.
type Attachment struct {
	Filename string
	MimeType string
	Data     []byte
}

// OutboundMessage is the finished, signed-and-encrypted wire message the
// Outbound Builder hands to Transport. Transport owns it from that point
// (spec.md §9: "callbacks that consume a message take ownership").
type OutboundMessage struct {
	ID          string
	FromAddress string
	ToAddress   string
	Envelope    []byte // codec-encoded, signed, encrypted Distribution envelope
	Attachments []Attachment
	AutoConsume bool // tags the message so the receiver processes-and-drops it silently
}

// Transport is the narrow external-collaborator contract spec.md §6
// abstracts the MIME/message transport behind. Send must not block past
// enqueuing; timeouts and retries are Transport's concern, not the
// engine's (spec.md §5).
type Transport interface {
	Send(ctx context.Context, msg OutboundMessage) error
}
