package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageShiftStripAndReveal(t *testing.T) {
	m := FromBytes([]byte{1, 2, 3, 4, 5, 6, 7, 8}, 16)
	require.Equal(t, 8, m.Len())
	require.Equal(t, 16, m.Headroom())

	require.NoError(t, m.Shift(-4))
	assert.Equal(t, []byte{5, 6, 7, 8}, m.Bytes())
	assert.Equal(t, 20, m.Headroom())

	require.NoError(t, m.Shift(4))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, m.Bytes())
}

func TestMessageShiftBounds(t *testing.T) {
	m := FromBytes([]byte{1, 2, 3}, 4)
	if err := m.Shift(5); err == nil {
		t.Error("expected headroom error shifting past buffer start")
	}
	if err := m.Shift(-4); err == nil {
		t.Error("expected short error stripping past end")
	}
	// Failed shifts leave the message untouched.
	assert.Equal(t, []byte{1, 2, 3}, m.Bytes())
}

func TestMessagePushPop32(t *testing.T) {
	m := NewMessage(0, 16)
	require.NoError(t, m.Push32(0x00000099))
	require.Equal(t, 4, m.Len())
	// Big-endian on the wire.
	assert.Equal(t, []byte{0, 0, 0, 0x99}, m.Bytes())

	v, err := m.Peek32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x99), v)
	require.Equal(t, 4, m.Len(), "peek must not consume")

	v, err = m.Pop32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x99), v)
	assert.Equal(t, 0, m.Len())

	if _, err := m.Pop32(); err == nil {
		t.Error("expected short error popping empty message")
	}
}

func TestMessageBusWordsLittleEndian(t *testing.T) {
	m := NewMessage(0, 8)
	require.NoError(t, m.Push32LE(uint32(CoreSearchReq)))
	assert.Equal(t, []byte{0x04, 0x04, 0, 0}, m.Bytes())

	v, err := m.Peek32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(CoreSearchReq), v)

	v, err = m.Pop32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(CoreSearchReq), v)
}

func TestMessagePopAliasesBuffer(t *testing.T) {
	m := FromBytes([]byte{0xaa, 0xbb, 0xcc, 0xdd}, 4)
	head, err := m.Pop(2)
	require.NoError(t, err)
	require.NoError(t, m.Shift(2))
	// The popped view and the revealed content are the same storage.
	head[0] = 0x11
	assert.Equal(t, byte(0x11), m.Bytes()[0])
}

func TestMessageExtendAndTruncate(t *testing.T) {
	m := FromBytes([]byte("payload"), 2)
	m.Extend(16)
	assert.Equal(t, 7+16, m.Len())
	assert.True(t, bytes.HasPrefix(m.Bytes(), []byte("payload")))

	require.NoError(t, m.Truncate(7))
	assert.Equal(t, []byte("payload"), m.Bytes())

	if err := m.Truncate(8); err == nil {
		t.Error("expected error growing via Truncate")
	}
}

func TestMessageRetainedViewSurvivesShifts(t *testing.T) {
	// The switch ingress pattern: retain a header view, strip past it,
	// and read it back later.
	m := NewMessage(24, 32)
	copy(m.Bytes(), []byte("switchheadr!"))
	view := m.Bytes()[:12]
	require.NoError(t, m.Shift(-12))
	require.NoError(t, m.Shift(-4))
	assert.Equal(t, []byte("switchheadr!"), []byte(view))
}
