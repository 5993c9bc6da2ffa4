package wire

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// SwitchHeaderSize is the wire size of the switch-layer header: a 64-bit
// routing label followed by a congestion byte, a label-shift byte and a
// 16-bit penalty field.
const SwitchHeaderSize = 12

// RouteHeaderSize is the wire size of the inside-interface header:
// switch header, version word, pad word, ip6, public key.
const RouteHeaderSize = 68

// Route header field offsets.
const (
	RouteHeaderVersionOffset   = 12
	RouteHeaderIP6Offset       = 20
	RouteHeaderPublicKeyOffset = 36
)

// Handshake crypto header layout: stage word, 12-byte auth challenge,
// 24-byte nonce, 32-byte sender public key. The sealed payload follows.
const (
	CryptoHeaderSize          = 72
	HandshakeNonceOffset      = 16
	HandshakePublicKeyOffset  = 40
	HandshakeChallengeOffset  = 4
	HandshakeAuthenticatorLen = 16
)

// SwitchHeader is the decoded form of the 12-byte switch-layer header.
type SwitchHeader struct {
	Label      uint64
	Congestion uint8
	LabelShift uint8
	Penalty    uint16
}

// ParseSwitchHeader decodes a switch header from the first 12 bytes of b.
func ParseSwitchHeader(b []byte) (SwitchHeader, error) {
	if len(b) < SwitchHeaderSize {
		return SwitchHeader{}, oops.Errorf("switch header: %d bytes, need %d", len(b), SwitchHeaderSize)
	}
	return SwitchHeader{
		Label:      binary.BigEndian.Uint64(b[0:8]),
		Congestion: b[8],
		LabelShift: b[9],
		Penalty:    binary.BigEndian.Uint16(b[10:12]),
	}, nil
}

// Marshal writes the header into the first 12 bytes of b.
func (h *SwitchHeader) Marshal(b []byte) error {
	if len(b) < SwitchHeaderSize {
		return oops.Errorf("switch header: %d bytes, need %d", len(b), SwitchHeaderSize)
	}
	binary.BigEndian.PutUint64(b[0:8], h.Label)
	b[8] = h.Congestion
	b[9] = h.LabelShift
	binary.BigEndian.PutUint16(b[10:12], h.Penalty)
	return nil
}

// SwitchLabel reads the big-endian label from a raw switch header.
func SwitchLabel(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[0:8])
}

// RouteHeader is the decoded form of the 68-byte inside-interface header.
type RouteHeader struct {
	SH        SwitchHeader
	Version   uint32
	IP6       [16]byte
	PublicKey [32]byte
}

// ParseRouteHeader decodes a route header from the first 68 bytes of b.
func ParseRouteHeader(b []byte) (RouteHeader, error) {
	if len(b) < RouteHeaderSize {
		return RouteHeader{}, oops.Errorf("route header: %d bytes, need %d", len(b), RouteHeaderSize)
	}
	sh, err := ParseSwitchHeader(b)
	if err != nil {
		return RouteHeader{}, err
	}
	h := RouteHeader{
		SH:      sh,
		Version: binary.BigEndian.Uint32(b[RouteHeaderVersionOffset:]),
	}
	copy(h.IP6[:], b[RouteHeaderIP6Offset:])
	copy(h.PublicKey[:], b[RouteHeaderPublicKeyOffset:])
	return h, nil
}

// Marshal writes the header into the first 68 bytes of b. The pad word is
// zeroed.
func (h *RouteHeader) Marshal(b []byte) error {
	if len(b) < RouteHeaderSize {
		return oops.Errorf("route header: %d bytes, need %d", len(b), RouteHeaderSize)
	}
	if err := h.SH.Marshal(b); err != nil {
		return err
	}
	binary.BigEndian.PutUint32(b[RouteHeaderVersionOffset:], h.Version)
	binary.BigEndian.PutUint32(b[RouteHeaderVersionOffset+4:], 0)
	copy(b[RouteHeaderIP6Offset:], h.IP6[:])
	copy(b[RouteHeaderPublicKeyOffset:], h.PublicKey[:])
	return nil
}

// RouteLabel reads the label from a raw route header.
func RouteLabel(b []byte) uint64 {
	return binary.BigEndian.Uint64(b[0:8])
}

// SetRouteLabel writes the label into a raw route header.
func SetRouteLabel(b []byte, label uint64) {
	binary.BigEndian.PutUint64(b[0:8], label)
}

// RouteVersion reads the version word from a raw route header.
func RouteVersion(b []byte) uint32 {
	return binary.BigEndian.Uint32(b[RouteHeaderVersionOffset:])
}

// HandshakePublicKey returns the sender's static public key embedded in a
// raw handshake crypto header.
func HandshakePublicKey(b []byte) ([]byte, error) {
	if len(b) < CryptoHeaderSize {
		return nil, oops.Errorf("crypto header: %d bytes, need %d", len(b), CryptoHeaderSize)
	}
	return b[HandshakePublicKeyOffset : HandshakePublicKeyOffset+32], nil
}
