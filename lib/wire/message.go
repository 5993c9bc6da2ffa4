package wire

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// RecommendedHeadroom is the headroom ingress interfaces should allocate in
// front of a received packet. Growing a run packet to route-header form
// needs 48 bytes in front of the switch header; the rest absorbs handle and
// crypto header pushes on the outbound path.
const RecommendedHeadroom = 128

var (
	ErrMessageHeadroom = oops.Errorf("message: insufficient headroom")
	ErrMessageShort    = oops.Errorf("message: short read past end")
)

// Message is a packet buffer with headroom. The live content is
// buf[start:end]; Shift moves the start boundary so headers can be stripped
// and later revealed without copying the payload.
type Message struct {
	buf   []byte
	start int
	end   int
}

// NewMessage returns a message with length zeroed content bytes and the
// given headroom in front of them.
func NewMessage(length, headroom int) *Message {
	return &Message{
		buf:   make([]byte, headroom+length),
		start: headroom,
		end:   headroom + length,
	}
}

// FromBytes returns a message whose content is a copy of payload, with the
// given headroom in front.
func FromBytes(payload []byte, headroom int) *Message {
	m := NewMessage(len(payload), headroom)
	copy(m.buf[m.start:], payload)
	return m
}

// Len returns the current content length.
func (m *Message) Len() int { return m.end - m.start }

// Bytes returns the live content. The slice aliases the backing buffer;
// writes through it are writes to the message.
func (m *Message) Bytes() []byte { return m.buf[m.start:m.end] }

// Headroom returns the bytes available in front of the content.
func (m *Message) Headroom() int { return m.start }

// Shift moves the start of the content. A positive n reveals n bytes of
// headroom at the head; a negative n strips -n bytes from the head.
func (m *Message) Shift(n int) error {
	if n > m.start {
		return oops.Wrapf(ErrMessageHeadroom, "shift %d with headroom %d", n, m.start)
	}
	if -n > m.Len() {
		return oops.Wrapf(ErrMessageShort, "shift %d with length %d", n, m.Len())
	}
	m.start -= n
	return nil
}

// Push prepends b to the content.
func (m *Message) Push(b []byte) error {
	if err := m.Shift(len(b)); err != nil {
		return err
	}
	copy(m.buf[m.start:], b)
	return nil
}

// Pop strips and returns the first n content bytes. The returned slice
// aliases the backing buffer.
func (m *Message) Pop(n int) ([]byte, error) {
	if n > m.Len() {
		return nil, oops.Wrapf(ErrMessageShort, "pop %d with length %d", n, m.Len())
	}
	b := m.buf[m.start : m.start+n]
	m.start += n
	return b, nil
}

// Push32 prepends a big-endian 32-bit word.
func (m *Message) Push32(v uint32) error {
	if err := m.Shift(4); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(m.buf[m.start:], v)
	return nil
}

// Pop32 strips and returns a big-endian 32-bit word.
func (m *Message) Pop32() (uint32, error) {
	b, err := m.Pop(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Peek32 returns the big-endian 32-bit word at the head without consuming it.
func (m *Message) Peek32() (uint32, error) {
	if m.Len() < 4 {
		return 0, oops.Wrapf(ErrMessageShort, "peek with length %d", m.Len())
	}
	return binary.BigEndian.Uint32(m.buf[m.start:]), nil
}

// Push32LE prepends a little-endian bus word (event kind, pathfinder id).
func (m *Message) Push32LE(v uint32) error {
	if err := m.Shift(4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.buf[m.start:], v)
	return nil
}

// Pop32LE strips and returns a little-endian bus word.
func (m *Message) Pop32LE() (uint32, error) {
	b, err := m.Pop(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Peek32LE returns the little-endian bus word at the head without consuming it.
func (m *Message) Peek32LE() (uint32, error) {
	if m.Len() < 4 {
		return 0, oops.Wrapf(ErrMessageShort, "peek with length %d", m.Len())
	}
	return binary.LittleEndian.Uint32(m.buf[m.start:]), nil
}

// Extend grows the content by n bytes at the tail, reallocating if the
// backing buffer has no spare capacity. Used by in-place AEAD sealing to
// make room for the authenticator.
func (m *Message) Extend(n int) {
	need := m.end + n
	if need > len(m.buf) {
		grown := make([]byte, need)
		copy(grown, m.buf)
		m.buf = grown
	}
	m.end += n
}

// Truncate shortens the content to n bytes, dropping the tail.
func (m *Message) Truncate(n int) error {
	if n > m.Len() || n < 0 {
		return oops.Wrapf(ErrMessageShort, "truncate to %d with length %d", n, m.Len())
	}
	m.end = m.start + n
	return nil
}
