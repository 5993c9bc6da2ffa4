package cryptoauth

import (
	"crypto/rand"
	"testing"
	"time"

	"github.com/go-fcnet/go-fcnet/lib/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCA(t *testing.T) *CryptoAuth {
	t.Helper()
	var key [32]byte
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	ca, err := New(key)
	require.NoError(t, err)
	return ca
}

// newTestPair returns two nodes and a session on each pointing at the
// other. The ip6 values are arbitrary; cryptoauth does not interpret them.
func newTestPair(t *testing.T) (aSess, bSess *Session) {
	t.Helper()
	a := newTestCA(t)
	b := newTestCA(t)
	var ipA, ipB [16]byte
	ipA[0], ipA[15] = 0xfc, 0x0a
	ipB[0], ipB[15] = 0xfc, 0x0b

	aSess, err := a.NewSession(b.PublicKey(), ipB, true, "a->b")
	require.NoError(t, err)
	bSess, err = b.NewSession(a.PublicKey(), ipA, false, "b->a")
	require.NoError(t, err)
	return aSess, bSess
}

func TestHandshakeAndRunRoundTrip(t *testing.T) {
	aSess, bSess := newTestPair(t)
	assert.Equal(t, StateInit, aSess.GetState())

	// A -> B hello.
	m := wire.FromBytes([]byte("hello from a"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	assert.Equal(t, StateHandshake1, aSess.GetState())

	stage, err := m.Peek32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), stage, "first handshake packet carries stage 0")

	require.NoError(t, bSess.Decrypt(m))
	assert.Equal(t, []byte("hello from a"), m.Bytes())
	assert.Equal(t, StateHandshake2, bSess.GetState())

	// B -> A key.
	m = wire.FromBytes([]byte("key from b"), wire.RecommendedHeadroom)
	require.NoError(t, bSess.Encrypt(m))
	assert.Equal(t, StateHandshake3, bSess.GetState())

	stage, err = m.Peek32()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), stage, "responder's packet carries stage 2")

	require.NoError(t, aSess.Decrypt(m))
	assert.Equal(t, []byte("key from b"), m.Bytes())
	assert.Equal(t, StateEstablished, aSess.GetState())

	// A -> B run.
	m = wire.FromBytes([]byte("run 1"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	nonce, err := m.Peek32()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, nonce, uint32(4), "run nonces start above the reserved range")

	require.NoError(t, bSess.Decrypt(m))
	assert.Equal(t, []byte("run 1"), m.Bytes())
	assert.Equal(t, StateEstablished, bSess.GetState())

	// B -> A run.
	m = wire.FromBytes([]byte("run 2"), wire.RecommendedHeadroom)
	require.NoError(t, bSess.Encrypt(m))
	require.NoError(t, aSess.Decrypt(m))
	assert.Equal(t, []byte("run 2"), m.Bytes())
}

func TestHandshakeCarriesSenderKey(t *testing.T) {
	aSess, _ := newTestPair(t)
	m := wire.FromBytes([]byte("x"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))

	key, err := wire.HandshakePublicKey(m.Bytes())
	require.NoError(t, err)
	pub := aSess.ca.PublicKey()
	assert.Equal(t, pub[:], key, "handshake header embeds the sender's static key")
}

func TestRunNoncesIncrease(t *testing.T) {
	aSess, bSess := newTestPair(t)
	runHandshake(t, aSess, bSess)

	var last uint32
	for i := 0; i < 3; i++ {
		m := wire.FromBytes([]byte("tick"), wire.RecommendedHeadroom)
		require.NoError(t, aSess.Encrypt(m))
		n, err := m.Peek32()
		require.NoError(t, err)
		if i > 0 && n != last+1 {
			t.Fatalf("nonce %d after %d", n, last)
		}
		last = n
		require.NoError(t, bSess.Decrypt(m))
	}
}

func runHandshake(t *testing.T, aSess, bSess *Session) {
	t.Helper()
	m := wire.FromBytes([]byte("h"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	require.NoError(t, bSess.Decrypt(m))
	m = wire.FromBytes([]byte("k"), wire.RecommendedHeadroom)
	require.NoError(t, bSess.Encrypt(m))
	require.NoError(t, aSess.Decrypt(m))
}

func TestDecryptRejectsCorruptPacket(t *testing.T) {
	aSess, bSess := newTestPair(t)
	m := wire.FromBytes([]byte("hello"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	m.Bytes()[m.Len()-1] ^= 0xff
	err := bSess.Decrypt(m)
	require.Error(t, err)
	assert.Equal(t, StateInit, bSess.GetState(), "failed handshake leaves state untouched")
}

func TestDecryptRejectsRunBeforeHandshake(t *testing.T) {
	aSess, bSess := newTestPair(t)
	// Skip the handshake entirely: force a run packet from a fresh session.
	aSess.state = StateEstablished
	m := wire.FromBytes([]byte("early"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	if err := bSess.Decrypt(m); err == nil {
		t.Error("expected run packet before handshake to fail")
	}
}

func TestDecryptRejectsWrongPeer(t *testing.T) {
	aSess, _ := newTestPair(t)
	_, cSess := newTestPair(t)
	m := wire.FromBytes([]byte("hello"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	if err := cSess.Decrypt(m); err == nil {
		t.Error("expected handshake for another peer to fail authentication")
	}
}

func TestResetIfTimeout(t *testing.T) {
	// The initiating side of the pair owns the retry.
	aSess, _ := newTestPair(t)

	m := wire.FromBytes([]byte("h"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	require.Equal(t, StateHandshake1, aSess.GetState())

	// A recent handshake is left alone.
	aSess.ResetIfTimeout()
	assert.Equal(t, StateHandshake1, aSess.GetState())

	aSess.lastHandshake = time.Now().Add(-2 * ResetTimeout)
	aSess.ResetIfTimeout()
	assert.Equal(t, StateInit, aSess.GetState())

	// Established sessions never rewind.
	aSess.state = StateEstablished
	aSess.lastHandshake = time.Now().Add(-2 * ResetTimeout)
	aSess.ResetIfTimeout()
	assert.Equal(t, StateEstablished, aSess.GetState())
}

func TestResetIfTimeoutResponderWaits(t *testing.T) {
	aSess, bSess := newTestPair(t)

	// Half a handshake: B has received the hello and is waiting.
	m := wire.FromBytes([]byte("h"), wire.RecommendedHeadroom)
	require.NoError(t, aSess.Encrypt(m))
	require.NoError(t, bSess.Decrypt(m))
	require.Equal(t, StateHandshake2, bSess.GetState())

	// However stale, the responder never rewinds; the initiator retries.
	bSess.lastHandshake = time.Now().Add(-2 * ResetTimeout)
	bSess.ResetIfTimeout()
	assert.Equal(t, StateHandshake2, bSess.GetState())
}

func TestNewSessionRejectsLowOrderKey(t *testing.T) {
	ca := newTestCA(t)
	var zeroKey [32]byte
	var ip6 [16]byte
	if _, err := ca.NewSession(zeroKey, ip6, true, "bad"); err == nil {
		t.Error("expected low-order key to be rejected")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateInit, "INIT"},
		{StateHandshake1, "HANDSHAKE1"},
		{StateHandshake2, "HANDSHAKE2"},
		{StateHandshake3, "HANDSHAKE3"},
		{StateEstablished, "ESTABLISHED"},
		{State(99), "INVALID"},
	}
	for _, tt := range tests {
		if got := StateString(tt.state); got != tt.want {
			t.Errorf("StateString(%d) = %q, want %q", tt.state, got, tt.want)
		}
	}
}
