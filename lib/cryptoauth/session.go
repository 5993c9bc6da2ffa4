package cryptoauth

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"time"

	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/go-fcnet/go-fcnet/lib/wire"
	"github.com/samber/oops"
)

// Run packet nonces start here; 0-3 are handshake stage words.
const firstRunNonce = 4

// ResetTimeout is how long a handshake may sit mid-exchange before
// ResetIfTimeout rewinds it to Init.
const ResetTimeout = 60 * time.Second

const tagLen = 16

// Session is one peer's encryption state. It is not safe for concurrent
// use; the session manager serializes access.
type Session struct {
	ca           *CryptoAuth
	herPublicKey [32]byte
	herIp6       [16]byte
	isOutgoing   bool
	name         string

	state         State
	lastHandshake time.Time
	sendNonce     uint32

	handshakeSend cipher.AEAD
	handshakeRecv cipher.AEAD
	runSend       cipher.AEAD
	runRecv       cipher.AEAD

	// TODO: replay window for run packet nonces.
}

// HerIp6 returns the peer's key-derived address.
func (s *Session) HerIp6() [16]byte { return s.herIp6 }

// HerPublicKey returns the peer's long-term public key.
func (s *Session) HerPublicKey() [32]byte { return s.herPublicKey }

// GetState returns the current handshake state.
func (s *Session) GetState() State { return s.state }

// ResetIfTimeout rewinds a session stuck mid-handshake to Init so the next
// outbound packet restarts the exchange. Only the initiating side rewinds;
// a responder holds its state and waits for the peer's retry, otherwise
// both ends could flip to fresh hellos at once. Established and fresh
// sessions are untouched.
func (s *Session) ResetIfTimeout() {
	if !s.isOutgoing {
		return
	}
	if s.state == StateInit || s.state == StateEstablished {
		return
	}
	if time.Since(s.lastHandshake) < ResetTimeout {
		return
	}
	log.WithFields(logger.Fields{
		"at":      "(Session) ResetIfTimeout",
		"session": s.name,
		"state":   StateString(s.state),
	}).Debug("resetting stalled handshake")
	s.state = StateInit
}

// Encrypt seals m in place: a handshake packet while the session is still
// negotiating, a run packet afterward.
func (s *Session) Encrypt(m *wire.Message) error {
	if s.state < StateHandshake3 {
		return s.encryptHandshake(m)
	}
	return s.encryptRun(m)
}

// Decrypt opens m in place, dispatching on the leading word: values 0-3
// are handshake stages, anything larger is a run packet nonce.
func (s *Session) Decrypt(m *wire.Message) error {
	w, err := m.Peek32()
	if err != nil {
		return oops.Wrapf(ErrDecrypt, "runt packet")
	}
	if w > 3 {
		return s.decryptRun(m)
	}
	return s.decryptHandshake(m)
}

func (s *Session) encryptHandshake(m *wire.Message) error {
	var stage uint32
	switch s.state {
	case StateInit:
		stage = 0
	case StateHandshake1:
		stage = 1
	case StateHandshake2:
		stage = 2
	}

	var hdr [wire.CryptoHeaderSize]byte
	binary.BigEndian.PutUint32(hdr[0:4], stage)
	if _, err := rand.Read(hdr[wire.HandshakeNonceOffset:wire.HandshakePublicKeyOffset]); err != nil {
		return oops.Wrapf(err, "handshake nonce")
	}
	copy(hdr[wire.HandshakePublicKeyOffset:], s.ca.publicKey[:])

	m.Extend(tagLen)
	b := m.Bytes()
	s.handshakeSend.Seal(b[:0], hdr[wire.HandshakeNonceOffset:wire.HandshakePublicKeyOffset], b[:len(b)-tagLen], hdr[:])
	if err := m.Push(hdr[:]); err != nil {
		return err
	}

	switch s.state {
	case StateInit:
		s.state = StateHandshake1
	case StateHandshake2:
		s.state = StateHandshake3
	}
	s.lastHandshake = time.Now()
	return nil
}

func (s *Session) decryptHandshake(m *wire.Message) error {
	hdr, err := m.Pop(wire.CryptoHeaderSize)
	if err != nil {
		return oops.Wrapf(ErrDecrypt, "runt handshake")
	}
	if m.Len() < tagLen {
		return oops.Wrapf(ErrDecrypt, "handshake without payload")
	}
	stage := binary.BigEndian.Uint32(hdr[0:4])
	ct := m.Bytes()
	pt, err := s.handshakeRecv.Open(ct[:0], hdr[wire.HandshakeNonceOffset:wire.HandshakePublicKeyOffset], ct, hdr)
	if err != nil {
		return oops.Wrapf(ErrDecrypt, "handshake stage %d", stage)
	}
	if err := m.Truncate(len(pt)); err != nil {
		return err
	}
	if stage >= 2 {
		s.state = StateEstablished
	} else if s.state < StateHandshake2 {
		s.state = StateHandshake2
	}
	s.lastHandshake = time.Now()
	return nil
}

func (s *Session) encryptRun(m *wire.Message) error {
	n := s.sendNonce
	s.sendNonce++
	var nonce [12]byte
	binary.BigEndian.PutUint32(nonce[8:], n)

	m.Extend(tagLen)
	b := m.Bytes()
	s.runSend.Seal(b[:0], nonce[:], b[:len(b)-tagLen], nil)
	return m.Push32(n)
}

func (s *Session) decryptRun(m *wire.Message) error {
	n, err := m.Pop32()
	if err != nil {
		return oops.Wrapf(ErrDecrypt, "runt run packet")
	}
	if s.state < StateHandshake2 {
		return oops.Wrapf(ErrDecrypt, "run packet in state %s", StateString(s.state))
	}
	if m.Len() < tagLen {
		return oops.Wrapf(ErrDecrypt, "run packet without authenticator")
	}
	var nonce [12]byte
	binary.BigEndian.PutUint32(nonce[8:], n)
	ct := m.Bytes()
	pt, err := s.runRecv.Open(ct[:0], nonce[:], ct, nil)
	if err != nil {
		return oops.Wrapf(ErrDecrypt, "run nonce %d", n)
	}
	if err := m.Truncate(len(pt)); err != nil {
		return err
	}
	s.state = StateEstablished
	return nil
}
