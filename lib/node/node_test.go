package node

import (
	"encoding/hex"
	"testing"

	"github.com/go-fcnet/go-fcnet/lib/address"
	"github.com/go-fcnet/go-fcnet/lib/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNodeGeneratesIdentity(t *testing.T) {
	n, err := NewNode(&config.DefaultSessionManagerConfig, "")
	require.NoError(t, err)
	defer n.Close()

	ip6 := n.Address()
	assert.Equal(t, byte(address.Prefix), ip6[0])

	pub := n.PublicKey()
	derived, ok := address.ForPublicKey(pub[:])
	require.True(t, ok)
	assert.Equal(t, ip6, derived)
	assert.NotNil(t, n.SessionManager())
	assert.NotNil(t, n.EventEmitter())
}

func TestNewNodeWithConfiguredKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)

	n, err := NewNode(nil, hex.EncodeToString(key[:]))
	require.NoError(t, err)
	defer n.Close()
	ip6 := n.Address()
	assert.Equal(t, byte(address.Prefix), ip6[0])

	// The same key yields the same identity.
	again, err := NewNode(nil, hex.EncodeToString(key[:]))
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, n.Address(), again.Address())
}

func TestNewNodeRejectsBadKey(t *testing.T) {
	if _, err := NewNode(nil, "not-hex"); err == nil {
		t.Error("expected error for non-hex key")
	}
	if _, err := NewNode(nil, "abcd"); err == nil {
		t.Error("expected error for short key")
	}
}

func TestNodeLifecycle(t *testing.T) {
	n, err := NewNode(nil, "")
	require.NoError(t, err)

	n.Start()
	n.Start() // idempotent

	done := make(chan struct{})
	go func() {
		n.Wait()
		close(done)
	}()
	n.Stop()
	<-done
	n.Close()
}
