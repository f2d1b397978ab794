package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

// ProtocolID is the libp2p stream protocol a LibP2PTransport speaks: one
// well-known protocol.ID, registered via SetStreamHandler and dialed via
// NewStream.
const ProtocolID = "/trustengine/distribution/1.0.0"

// PeerResolver maps the address strings OutboundMessage carries onto
// libp2p peer info. Distinct from the Store's identity bookkeeping:
// Store knows *who* an address belongs to, PeerResolver knows *where* to
// dial them.
type PeerResolver interface {
	Resolve(address string) (peer.AddrInfo, error)
}

// AddressBook is a PeerResolver backed by a static, in-memory map: a
// minimal bootstrap list from addresses to known libp2p peer info.
type AddressBook struct {
	mu    sync.RWMutex
	peers map[string]peer.AddrInfo
}

func NewAddressBook() *AddressBook {
	return &AddressBook{peers: make(map[string]peer.AddrInfo)}
}

func (a *AddressBook) Set(address string, info peer.AddrInfo) {
	a.mu.Lock()
	a.peers[address] = info
	a.mu.Unlock()
}

func (a *AddressBook) Resolve(address string) (peer.AddrInfo, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	info, ok := a.peers[address]
	if !ok {
		return peer.AddrInfo{}, fmt.Errorf("transport: no known route to %q", address)
	}
	return info, nil
}

// InboundMessage is the wire-decoded shape a LibP2PTransport hands to its
// registered InboundHandler — still encrypted; decoding the Distribution
// envelope itself is engine.Session.Dispatch's job, kept out of this
// package to avoid a dependency cycle (engine already imports transport).
type InboundMessage struct {
	FromAddress string
	ToAddress   string
	Envelope    []byte
	Attachments []Attachment
}

// InboundHandler is invoked once per received stream. It owns deciding
// whether a failure is worth logging; LibP2PTransport itself stays
// opinion-free about Distribution semantics.
type InboundHandler func(ctx context.Context, msg InboundMessage) error

// LibP2PTransport implements Transport over a libp2p host, dialing one
// stream per outbound message over its single Distribution protocol.
type LibP2PTransport struct {
	host     host.Host
	resolver PeerResolver

	mu      sync.RWMutex
	handler InboundHandler
}

// NewLibP2PTransport registers the Distribution stream handler on h and
// returns a Transport ready to Send once a handler is set.
func NewLibP2PTransport(h host.Host, resolver PeerResolver) *LibP2PTransport {
	t := &LibP2PTransport{host: h, resolver: resolver}
	h.SetStreamHandler(protocol.ID(ProtocolID), t.handleStream)
	return t
}

// SetHandler installs the callback invoked for every inbound Distribution
// stream. Safe to call after streams have already started arriving;
// streams received before any handler is set are dropped silently.
func (t *LibP2PTransport) SetHandler(h InboundHandler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

// Send implements Transport: resolve, dial, write, done. Per spec.md §5,
// Send must not block past enqueuing the message — opening one stream and
// writing it synchronously satisfies that for a point-to-point transport
// (no retry/backoff here; that is Transport's concern per §5, and this
// implementation chooses "caller retries" as its policy).
func (t *LibP2PTransport) Send(ctx context.Context, msg OutboundMessage) error {
	info, err := t.resolver.Resolve(msg.ToAddress)
	if err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := t.host.Connect(ctx, info); err != nil {
		return fmt.Errorf("transport: connect %s: %w", info.ID, err)
	}
	s, err := t.host.NewStream(ctx, info.ID, protocol.ID(ProtocolID))
	if err != nil {
		return fmt.Errorf("transport: open stream to %s: %w", info.ID, err)
	}
	defer s.Close()
	if err := writeWireMessage(s, msg); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

func (t *LibP2PTransport) handleStream(s network.Stream) {
	defer s.Close()
	msg, err := readWireMessage(bufio.NewReader(s))
	if err != nil {
		return
	}
	t.mu.RLock()
	h := t.handler
	t.mu.RUnlock()
	if h == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = h(ctx, msg)
}

// --- wire framing: length-prefixed fields, same TLV idiom as codec ---

func writeWireMessage(w io.Writer, msg OutboundMessage) error {
	bw := bufio.NewWriter(w)
	if err := writeWireString(bw, msg.FromAddress); err != nil {
		return err
	}
	if err := writeWireString(bw, msg.ToAddress); err != nil {
		return err
	}
	if err := writeWireBytes(bw, msg.Envelope); err != nil {
		return err
	}
	if err := writeWireUint32(bw, uint32(len(msg.Attachments))); err != nil {
		return err
	}
	for _, a := range msg.Attachments {
		if err := writeWireString(bw, a.Filename); err != nil {
			return err
		}
		if err := writeWireString(bw, a.MimeType); err != nil {
			return err
		}
		if err := writeWireBytes(bw, a.Data); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func readWireMessage(r io.Reader) (InboundMessage, error) {
	from, err := readWireString(r)
	if err != nil {
		return InboundMessage{}, err
	}
	to, err := readWireString(r)
	if err != nil {
		return InboundMessage{}, err
	}
	envelope, err := readWireBytes(r)
	if err != nil {
		return InboundMessage{}, err
	}
	count, err := readWireUint32(r)
	if err != nil {
		return InboundMessage{}, err
	}
	attachments := make([]Attachment, 0, count)
	for i := uint32(0); i < count; i++ {
		filename, err := readWireString(r)
		if err != nil {
			return InboundMessage{}, err
		}
		mime, err := readWireString(r)
		if err != nil {
			return InboundMessage{}, err
		}
		data, err := readWireBytes(r)
		if err != nil {
			return InboundMessage{}, err
		}
		attachments = append(attachments, Attachment{Filename: filename, MimeType: mime, Data: data})
	}
	return InboundMessage{FromAddress: from, ToAddress: to, Envelope: envelope, Attachments: attachments}, nil
}

func writeWireUint32(w io.Writer, v uint32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readWireUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func writeWireBytes(w io.Writer, data []byte) error {
	if err := writeWireUint32(w, uint32(len(data))); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readWireBytes(r io.Reader) ([]byte, error) {
	n, err := readWireUint32(r)
	if err != nil {
		return nil, err
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeWireString(w io.Writer, s string) error {
	return writeWireBytes(w, []byte(s))
}

func readWireString(r io.Reader) (string, error) {
	data, err := readWireBytes(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
