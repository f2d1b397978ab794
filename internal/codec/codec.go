// Package codec implements the bidirectional, deterministic Command
// Codec of spec.md §4.3: the binary wire form for the Distribution
// envelope, carrying either a managed-group command or a key-reset
// command list.
//
// The encoding is a hand-rolled, length-prefixed binary form via
// encoding/binary — explicit field-by-field binary writes, no
// reflection-based codec — so a best-effort decode can skip trailing
// fields it doesn't recognize instead of misaligning the stream.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Current wire version. Encode always stamps this; Decode fails closed on
// an unrecognized major and decodes best-effort on an unrecognized minor.
const (
	CurrentMajor uint8 = 1
	CurrentMinor uint8 = 0
)

var (
	ErrUnsupportedVersion = errors.New("codec: unsupported major version")
	ErrTruncated          = errors.New("codec: truncated input")
	ErrUnknownEnvelope    = errors.New("codec: unknown envelope type")
	ErrUnknownCommand     = errors.New("codec: unknown managed-group command kind")
)

// EnvelopeKind distinguishes the two Distribution choices of spec.md §6.
type EnvelopeKind uint8

const (
	EnvelopeManagedGroup EnvelopeKind = 1
	EnvelopeKeyReset     EnvelopeKind = 2
)

// CommandKind distinguishes the three managed-group wire commands of
// spec.md §4.1.
type CommandKind uint8

const (
	CommandGroupCreate   CommandKind = 1
	CommandGroupAdopted  CommandKind = 2
	CommandGroupDissolve CommandKind = 3
)

// IdentityRef is the {address, key-fingerprint, user_id, display_name}
// tuple the codec carries for identities — spec.md §4.3 deliberately
// keeps the codec oblivious to anything beyond these semantic fields.
type IdentityRef struct {
	UserID         string
	Address        string
	KeyFingerprint string
	DisplayName    string
}

// ManagedGroupCommand is one of the three spec.md §4.1 wire commands,
// each wrapping two identity structures.
type ManagedGroupCommand struct {
	Kind    CommandKind
	First   IdentityRef // group_identity in every variant
	Second  IdentityRef // manager (groupCreate/groupDissolve) or member (groupAdopted)
}

// KeyResetCommand is one {identity, new_fpr} pair from spec.md §4.2's
// command list.
type KeyResetCommand struct {
	Identity IdentityRef
	NewFpr   string
}

// KeyResetList is the keyreset choice's inner {version, command-list}
// payload (spec.md §6). The inner version travels separately from the
// envelope's own version so a list can be re-encoded on its own.
type KeyResetList struct {
	Major    uint8
	Minor    uint8
	Commands []KeyResetCommand
}

// Envelope is the single Distribution envelope of spec.md §6: exactly one
// of ManagedGroup or KeyReset is populated, selected by Kind.
type Envelope struct {
	Major, Minor uint8
	Kind         EnvelopeKind
	ManagedGroup *ManagedGroupCommand
	KeyReset     *KeyResetList
}

// Encode serializes env into its binary wire form, stamping the current
// codec version regardless of whatever version fields env itself carries.
func Encode(env Envelope) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(CurrentMajor)
	buf.WriteByte(CurrentMinor)
	buf.WriteByte(byte(env.Kind))
	buf.WriteByte(0) // reserved

	switch env.Kind {
	case EnvelopeManagedGroup:
		if env.ManagedGroup == nil {
			return nil, fmt.Errorf("codec: encode managedgroup envelope with nil command")
		}
		if err := encodeManagedGroup(&buf, *env.ManagedGroup); err != nil {
			return nil, err
		}
	case EnvelopeKeyReset:
		if env.KeyReset == nil {
			return nil, fmt.Errorf("codec: encode keyreset envelope with nil list")
		}
		if err := encodeKeyReset(&buf, *env.KeyReset); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownEnvelope
	}
	return buf.Bytes(), nil
}

// Decode parses the binary wire form produced by Encode. On any error the
// returned Envelope is the zero value — decoding never returns a partially
// populated result.
func Decode(data []byte) (Envelope, error) {
	r := bytes.NewReader(data)
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return Envelope{}, ErrTruncated
	}
	major, minor, kind := header[0], header[1], header[2]
	if major != CurrentMajor {
		return Envelope{}, ErrUnsupportedVersion
	}

	switch EnvelopeKind(kind) {
	case EnvelopeManagedGroup:
		cmd, err := decodeManagedGroup(r)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Major: major, Minor: minor, Kind: EnvelopeManagedGroup, ManagedGroup: &cmd}, nil
	case EnvelopeKeyReset:
		list, err := decodeKeyReset(r)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Major: major, Minor: minor, Kind: EnvelopeKeyReset, KeyReset: &list}, nil
	default:
		return Envelope{}, ErrUnknownEnvelope
	}
}

// --- managed-group ---

func encodeManagedGroup(buf *bytes.Buffer, cmd ManagedGroupCommand) error {
	buf.WriteByte(byte(cmd.Kind))
	writeRecord(buf, func(b *bytes.Buffer) { writeIdentity(b, cmd.First) })
	writeRecord(buf, func(b *bytes.Buffer) { writeIdentity(b, cmd.Second) })
	return nil
}

func decodeManagedGroup(r *bytes.Reader) (ManagedGroupCommand, error) {
	kindByte, err := r.ReadByte()
	if err != nil {
		return ManagedGroupCommand{}, ErrTruncated
	}
	kind := CommandKind(kindByte)
	if kind != CommandGroupCreate && kind != CommandGroupAdopted && kind != CommandGroupDissolve {
		return ManagedGroupCommand{}, ErrUnknownCommand
	}

	first, err := readRecord(r, readIdentity)
	if err != nil {
		return ManagedGroupCommand{}, err
	}
	second, err := readRecord(r, readIdentity)
	if err != nil {
		return ManagedGroupCommand{}, err
	}
	return ManagedGroupCommand{Kind: kind, First: first, Second: second}, nil
}

// --- key-reset ---

func encodeKeyReset(buf *bytes.Buffer, list KeyResetList) error {
	buf.WriteByte(list.Major)
	buf.WriteByte(list.Minor)
	writeUint32(buf, uint32(len(list.Commands)))
	for _, cmd := range list.Commands {
		writeRecord(buf, func(b *bytes.Buffer) {
			writeIdentity(b, cmd.Identity)
			writeString(b, cmd.NewFpr)
		})
	}
	return nil
}

func decodeKeyReset(r *bytes.Reader) (KeyResetList, error) {
	versionBytes := make([]byte, 2)
	if _, err := io.ReadFull(r, versionBytes); err != nil {
		return KeyResetList{}, ErrTruncated
	}
	count, err := readUint32(r)
	if err != nil {
		return KeyResetList{}, err
	}

	commands := make([]KeyResetCommand, 0, count)
	for i := uint32(0); i < count; i++ {
		cmd, err := readRecord(r, func(rr *bytes.Reader) (KeyResetCommand, error) {
			id, err := readIdentity(rr)
			if err != nil {
				return KeyResetCommand{}, err
			}
			fpr, err := readString(rr)
			if err != nil {
				return KeyResetCommand{}, err
			}
			return KeyResetCommand{Identity: id, NewFpr: fpr}, nil
		})
		if err != nil {
			return KeyResetList{}, err
		}
		commands = append(commands, cmd)
	}

	return KeyResetList{Major: versionBytes[0], Minor: versionBytes[1], Commands: commands}, nil
}

// --- primitives ---

// writeRecord length-prefixes a sub-structure so that a future minor
// version can append trailing fields a current decoder doesn't recognize;
// readRecord only ever consumes up to the declared length and skips the
// remainder, which is how an unrecognized-minor decode stays best-effort
// instead of misaligning the stream.
func writeRecord(buf *bytes.Buffer, write func(*bytes.Buffer)) {
	var inner bytes.Buffer
	write(&inner)
	writeUint32(buf, uint32(inner.Len()))
	buf.Write(inner.Bytes())
}

func readRecord[T any](r *bytes.Reader, read func(*bytes.Reader) (T, error)) (T, error) {
	var zero T
	length, err := readUint32(r)
	if err != nil {
		return zero, err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return zero, ErrTruncated
	}
	inner := bytes.NewReader(raw)
	value, err := read(inner)
	if err != nil {
		return zero, err
	}
	// Trailing bytes belong to a newer minor's fields we don't know about;
	// ignoring them is exactly the best-effort decode spec.md §4.3 asks for.
	return value, nil
}

func writeIdentity(buf *bytes.Buffer, id IdentityRef) {
	writeString(buf, id.UserID)
	writeString(buf, id.Address)
	writeString(buf, id.KeyFingerprint)
	writeString(buf, id.DisplayName)
}

func readIdentity(r *bytes.Reader) (IdentityRef, error) {
	userID, err := readString(r)
	if err != nil {
		return IdentityRef{}, err
	}
	address, err := readString(r)
	if err != nil {
		return IdentityRef{}, err
	}
	fpr, err := readString(r)
	if err != nil {
		return IdentityRef{}, err
	}
	displayName, err := readString(r)
	if err != nil {
		// A pre-this-minor identity with no display_name field is still a
		// valid decode — best-effort on a future/earlier minor.
		return IdentityRef{UserID: userID, Address: address, KeyFingerprint: fpr}, nil
	}
	return IdentityRef{UserID: userID, Address: address, KeyFingerprint: fpr, DisplayName: displayName}, nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	length, err := readUint32(r)
	if err != nil {
		return "", err
	}
	raw := make([]byte, length)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", ErrTruncated
	}
	return string(raw), nil
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, ErrTruncated
	}
	return binary.BigEndian.Uint32(b[:]), nil
}
