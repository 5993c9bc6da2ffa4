package sessionmanager

import (
	"github.com/go-fcnet/go-fcnet/lib/address"
	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/go-fcnet/go-fcnet/lib/wire"
)

// sessionFields decorates a session debug line the way every log site
// here does: version, both handles, address and the label in question.
func sessionFields(s *Session, label uint64) logger.Fields {
	return logger.Fields{
		"ver":  s.Version,
		"send": s.SendHandle,
		"recv": s.ReceiveHandle,
		"ip":   address.PrintIP(s.CaSession.HerIp6()),
		"path": address.PrintPath(label),
	}
}

// sendSession emits one event about s on the bus: a Node record addressed
// to destPf under the given kind. Caller holds the manager lock.
func (sm *SessionManager) sendSession(s *Session, path uint64, destPf uint32, ev wire.EventKind) {
	node := wire.Node{
		Path:      path,
		Metric:    wire.MetricUnknown,
		Version:   s.Version,
		IP6:       s.CaSession.HerIp6(),
		PublicKey: s.CaSession.HerPublicKey(),
	}
	m := wire.NewMessage(wire.NodeSize, 8)
	if err := node.Marshal(m.Bytes()); err != nil {
		log.WithError(err).Error("marshalling node record")
		return
	}
	if err := m.Push32LE(destPf); err != nil {
		log.WithError(err).Error("pushing event destination")
		return
	}
	if err := m.Push32LE(uint32(ev)); err != nil {
		log.WithError(err).Error("pushing event kind")
		return
	}
	if err := sm.ee.Send(m); err != nil {
		log.WithFields(logger.Fields{
			"at":    "sendSession",
			"kind":  ev.String(),
			"error": err.Error(),
		}).Warn("event bus rejected session event")
	}
}

// sessionsRequest answers a PATHFINDER_SESSIONS query: one CORE_SESSION
// event per live session, addressed back to the asking pathfinder. Caller
// holds the manager lock.
func (sm *SessionManager) sessionsRequest(sourcePf uint32) error {
	for _, h := range sm.table.handles() {
		sess := sm.table.lookupByHandle(h)
		if sess == nil {
			continue
		}
		sm.sendSession(sess, sess.SendSwitchLabel, sourcePf, wire.CoreSession)
	}
	return nil
}
