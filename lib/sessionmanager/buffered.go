package sessionmanager

import (
	"time"

	"github.com/go-fcnet/go-fcnet/lib/address"
	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/go-fcnet/go-fcnet/lib/wire"
)

// BufferTimeout is both the maximum age of a buffered packet and the
// period of the pruning tick.
const BufferTimeout = 10 * time.Second

// bufferedMessage is an outbound packet parked while a pathfinder resolves
// its destination.
type bufferedMessage struct {
	msg           *wire.Message
	insertionTime time.Time
}

// needsLookup parks m until a NODE event resolves its destination and
// raises a CORE_SEARCH_REQ. A packet already parked for the same address
// is displaced; at the ceiling the pruner runs once and the packet is
// dropped if that freed nothing. Caller holds the manager lock and owns
// the route header at the head of m.
func (sm *SessionManager) needsLookup(m *wire.Message) error {
	var ip6 [16]byte
	copy(ip6[:], m.Bytes()[wire.RouteHeaderIP6Offset:wire.RouteHeaderPublicKeyOffset])
	log.WithFields(logger.Fields{
		"at": "needsLookup",
		"ip": address.PrintIP(ip6),
	}).Debug("buffering a packet and beginning a search")

	if _, ok := sm.buffered[ip6]; ok {
		delete(sm.buffered, ip6)
		log.WithFields(logger.Fields{
			"at": "needsLookup",
			"ip": address.PrintIP(ip6),
		}).Debug("DROP message which needs lookup because new one received")
	}
	if len(sm.buffered) >= sm.maxBufferedMessages {
		sm.checkTimedOutBuffers()
		if len(sm.buffered) >= sm.maxBufferedMessages {
			log.WithFields(logger.Fields{
				"at":  "needsLookup",
				"max": sm.maxBufferedMessages,
			}).Debug("DROP message needing lookup, maxBufferedMessages reached")
			return ErrBufferFull
		}
	}
	sm.buffered[ip6] = &bufferedMessage{msg: m, insertionTime: sm.now()}

	ev := wire.NewMessage(16, 8)
	copy(ev.Bytes(), ip6[:])
	if err := ev.Push32LE(wire.PathfinderBroadcast); err != nil {
		return err
	}
	if err := ev.Push32LE(uint32(wire.CoreSearchReq)); err != nil {
		return err
	}
	return sm.ee.Send(ev)
}

// checkTimedOutBuffers expires parked packets past BufferTimeout. Caller
// holds the manager lock.
func (sm *SessionManager) checkTimedOutBuffers() {
	for ip6, bm := range sm.buffered {
		if sm.now().Sub(bm.insertionTime) < BufferTimeout {
			continue
		}
		delete(sm.buffered, ip6)
		log.WithFields(logger.Fields{
			"at": "checkTimedOutBuffers",
			"ip": address.PrintIP(ip6),
		}).Debug("expiring buffered message")
	}
}
