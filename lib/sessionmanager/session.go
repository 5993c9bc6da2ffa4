package sessionmanager

import (
	"github.com/go-fcnet/go-fcnet/lib/cryptoauth"
)

// Session is the per-peer state owned by the manager: the cryptoauth
// session plus the handles and switch labels used to move packets.
type Session struct {
	// CaSession is the owned crypto state; its HerIp6 is the session's
	// identity in the table.
	CaSession *cryptoauth.Session

	// ReceiveHandle is what the peer stamps on packets destined to us.
	// Fixed for the session lifetime.
	ReceiveHandle uint32

	// SendHandle is what we stamp on run packets to the peer, learned from
	// the first decrypted handshake payload.
	SendHandle uint32

	// SendSwitchLabel is the route we use to reach the peer.
	SendSwitchLabel uint64

	// RecvSwitchLabel is the last route observed on an inbound packet.
	RecvSwitchLabel uint64

	// Version is the peer's protocol version, zero until learned.
	Version uint32

	// TimeOfCreation is milliseconds at allocation, for diagnostics.
	TimeOfCreation int64

	slot      int
	destroyed bool
}
