package eventbus

import (
	"testing"

	"github.com/go-fcnet/go-fcnet/lib/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busMessage(t *testing.T, kind wire.EventKind, payload []byte) *wire.Message {
	t.Helper()
	m := wire.FromBytes(payload, 16)
	require.NoError(t, m.Push32LE(wire.PathfinderBroadcast))
	require.NoError(t, m.Push32LE(uint32(kind)))
	return m
}

func TestDispatchRoutesByKind(t *testing.T) {
	e := NewEventEmitter(nil)

	var nodeCalls, sessionsCalls int
	e.RegisterCore(wire.IfaceFunc(func(m *wire.Message) error {
		nodeCalls++
		// Handlers consume the bus words themselves.
		kind, err := m.Pop32LE()
		require.NoError(t, err)
		assert.Equal(t, uint32(wire.PathfinderNode), kind)
		return nil
	}), wire.PathfinderNode)
	e.RegisterCore(wire.IfaceFunc(func(m *wire.Message) error {
		sessionsCalls++
		return nil
	}), wire.PathfinderSessions)

	require.NoError(t, e.DispatchFromPathfinder(busMessage(t, wire.PathfinderNode, nil)))
	assert.Equal(t, 1, nodeCalls)
	assert.Equal(t, 0, sessionsCalls)

	require.NoError(t, e.DispatchFromPathfinder(busMessage(t, wire.PathfinderSessions, nil)))
	assert.Equal(t, 1, sessionsCalls)
}

func TestDispatchUnhandledKind(t *testing.T) {
	e := NewEventEmitter(nil)
	err := e.DispatchFromPathfinder(busMessage(t, wire.EventKind(77), nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnhandledKind)
}

func TestDispatchEmptyMessage(t *testing.T) {
	e := NewEventEmitter(nil)
	if err := e.DispatchFromPathfinder(wire.NewMessage(0, 0)); err == nil {
		t.Error("expected error on message without a kind word")
	}
}

func TestSendReachesSink(t *testing.T) {
	var got *wire.Message
	e := NewEventEmitter(wire.IfaceFunc(func(m *wire.Message) error {
		got = m
		return nil
	}))
	m := busMessage(t, wire.CoreSearchReq, []byte{0xfc})
	require.NoError(t, e.Send(m))
	require.NotNil(t, got)
	kind, err := got.Peek32LE()
	require.NoError(t, err)
	assert.Equal(t, uint32(wire.CoreSearchReq), kind)
}

func TestSendWithoutSinkDrops(t *testing.T) {
	e := NewEventEmitter(nil)
	assert.NoError(t, e.Send(busMessage(t, wire.CoreSession, nil)))
}

func TestSetSink(t *testing.T) {
	e := NewEventEmitter(nil)
	calls := 0
	e.SetSink(wire.IfaceFunc(func(m *wire.Message) error {
		calls++
		return nil
	}))
	require.NoError(t, e.Send(busMessage(t, wire.CoreSession, nil)))
	assert.Equal(t, 1, calls)
}
