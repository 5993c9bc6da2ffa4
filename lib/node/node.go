// Package node assembles a running fcnet core: the long-term keypair, the
// pathfinder event bus and the session manager, with a lifecycle in the
// Start/Stop/Wait/Close shape.
package node

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/go-fcnet/go-fcnet/lib/address"
	"github.com/go-fcnet/go-fcnet/lib/config"
	"github.com/go-fcnet/go-fcnet/lib/cryptoauth"
	"github.com/go-fcnet/go-fcnet/lib/eventbus"
	"github.com/go-fcnet/go-fcnet/lib/sessionmanager"
	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/samber/oops"
)

var log = logger.GetLogger()

// keyAttempts bounds the search for a private key whose public key derives
// an fc00::/8 address; roughly one key in 256 qualifies.
const keyAttempts = 100000

// Node is one fcnet core instance. The session manager's inside and switch
// interfaces are exposed for the embedding transport and TUN layers to
// connect to.
type Node struct {
	ca *cryptoauth.CryptoAuth
	ee *eventbus.EventEmitter
	sm *sessionmanager.SessionManager

	ip6 [16]byte

	mu      sync.Mutex
	done    chan struct{}
	started bool
}

// NewNode builds a node from a hex private key. An empty key means
// generate an ephemeral one, with a warning that the identity is not kept.
func NewNode(cfg *config.SessionManagerConfig, privateKeyHex string) (*Node, error) {
	var key [32]byte
	if privateKeyHex == "" {
		generated, err := GeneratePrivateKey()
		if err != nil {
			return nil, err
		}
		key = generated
		log.WithFields(logger.Fields{
			"at":     "NewNode",
			"reason": "no_configured_key",
		}).Warn("generated an ephemeral private key; configure router.private_key to keep this identity")
	} else {
		raw, err := hex.DecodeString(privateKeyHex)
		if err != nil || len(raw) != 32 {
			return nil, oops.Errorf("router.private_key must be 64 hex characters")
		}
		copy(key[:], raw)
	}

	ca, err := cryptoauth.New(key)
	if err != nil {
		return nil, err
	}
	pub := ca.PublicKey()
	ip6, ok := address.ForPublicKey(pub[:])
	if !ok {
		return nil, oops.Errorf("private key does not derive an fc00::/8 address")
	}

	ee := eventbus.NewEventEmitter(nil)
	sm, err := sessionmanager.NewSessionManager(cfg, ca, ee)
	if err != nil {
		return nil, err
	}

	n := &Node{
		ca:   ca,
		ee:   ee,
		sm:   sm,
		ip6:  ip6,
		done: make(chan struct{}),
	}
	log.WithFields(logger.Fields{
		"at": "NewNode",
		"ip": address.PrintIP(ip6),
	}).Debug("node created")
	return n, nil
}

// GeneratePrivateKey searches for a private key whose derived address is
// inside fc00::/8.
func GeneratePrivateKey() ([32]byte, error) {
	var key [32]byte
	for i := 0; i < keyAttempts; i++ {
		if _, err := rand.Read(key[:]); err != nil {
			return key, oops.Wrapf(err, "reading randomness")
		}
		ca, err := cryptoauth.New(key)
		if err != nil {
			continue
		}
		pub := ca.PublicKey()
		if _, ok := address.ForPublicKey(pub[:]); ok {
			return key, nil
		}
	}
	return key, oops.Errorf("no fc-prefixed key found in %d attempts", keyAttempts)
}

// Start launches the session manager's background work.
func (n *Node) Start() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return
	}
	n.started = true
	n.sm.Start()
	log.Debug("node started")
}

// Stop halts background work and releases Wait.
func (n *Node) Stop() {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return
	}
	n.started = false
	n.mu.Unlock()
	n.sm.Stop()
	close(n.done)
}

// Wait blocks until Stop is called.
func (n *Node) Wait() {
	<-n.done
}

// Close tears down every session after stopping.
func (n *Node) Close() {
	n.Stop()
	n.sm.Close()
	log.Debug("node closed")
}

// SessionManager exposes the core for interface wiring.
func (n *Node) SessionManager() *sessionmanager.SessionManager { return n.sm }

// EventEmitter exposes the bus for pathfinder wiring.
func (n *Node) EventEmitter() *eventbus.EventEmitter { return n.ee }

// Address returns the node's key-derived fc address.
func (n *Node) Address() [16]byte { return n.ip6 }

// PublicKey returns the node's long-term public key.
func (n *Node) PublicKey() [32]byte { return n.ca.PublicKey() }
