package cryptoauth

import (
	"crypto/subtle"

	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/samber/oops"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

var log = logger.GetLogger()

var (
	// ErrBadKey means a public key is unusable for key agreement.
	ErrBadKey = oops.Errorf("cryptoauth: unusable public key")
	// ErrDecrypt means a packet failed authentication.
	ErrDecrypt = oops.Errorf("cryptoauth: authentication failed")
)

// CryptoAuth holds the node's long-term keypair and mints sessions toward
// peers.
type CryptoAuth struct {
	privateKey [32]byte
	publicKey  [32]byte
}

// New derives the public key from privateKey and returns a CryptoAuth.
func New(privateKey [32]byte) (*CryptoAuth, error) {
	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, oops.Wrapf(err, "deriving public key")
	}
	ca := &CryptoAuth{privateKey: privateKey}
	copy(ca.publicKey[:], pub)
	return ca, nil
}

// PublicKey returns the node's long-term public key.
func (ca *CryptoAuth) PublicKey() [32]byte { return ca.publicKey }

// NewSession creates a session toward the peer owning herPublicKey. herIp6
// is the peer's key-derived address, retained for log decoration and route
// header population. isOutgoing marks locally initiated sessions: only
// those restart a stalled handshake (see ResetIfTimeout). name tags the
// session in debug logs.
func (ca *CryptoAuth) NewSession(herPublicKey [32]byte, herIp6 [16]byte, isOutgoing bool, name string) (*Session, error) {
	shared, err := curve25519.X25519(ca.privateKey[:], herPublicKey[:])
	if err != nil {
		return nil, oops.Wrapf(ErrBadKey, "key agreement: %v", err)
	}
	var zero [32]byte
	if subtle.ConstantTimeCompare(shared, zero[:]) == 1 {
		return nil, oops.Wrapf(ErrBadKey, "low-order public key")
	}

	s := &Session{
		ca:           ca,
		herPublicKey: herPublicKey,
		herIp6:       herIp6,
		isOutgoing:   isOutgoing,
		name:         name,
		sendNonce:    firstRunNonce,
	}

	hsSend := deriveKey(shared, ca.publicKey, keyTagHandshake)
	hsRecv := deriveKey(shared, herPublicKey, keyTagHandshake)
	runSend := deriveKey(shared, ca.publicKey, keyTagRun)
	runRecv := deriveKey(shared, herPublicKey, keyTagRun)

	if s.handshakeSend, err = chacha20poly1305.NewX(hsSend[:]); err != nil {
		return nil, oops.Wrapf(err, "handshake send cipher")
	}
	if s.handshakeRecv, err = chacha20poly1305.NewX(hsRecv[:]); err != nil {
		return nil, oops.Wrapf(err, "handshake recv cipher")
	}
	if s.runSend, err = chacha20poly1305.New(runSend[:]); err != nil {
		return nil, oops.Wrapf(err, "run send cipher")
	}
	if s.runRecv, err = chacha20poly1305.New(runRecv[:]); err != nil {
		return nil, oops.Wrapf(err, "run recv cipher")
	}
	return s, nil
}

const (
	keyTagHandshake = 'h'
	keyTagRun       = 'r'
)

// deriveKey splits the shared secret into directional keys: the sender's
// public key and a purpose tag select the direction, so one side's send key
// is the other side's receive key.
func deriveKey(shared []byte, senderPub [32]byte, tag byte) [32]byte {
	h, err := blake2s.New256(shared)
	if err != nil {
		// blake2s only rejects oversized keys; shared is always 32 bytes.
		panic(err)
	}
	h.Write(senderPub[:])
	h.Write([]byte{tag})
	var out [32]byte
	h.Sum(out[:0])
	return out
}
