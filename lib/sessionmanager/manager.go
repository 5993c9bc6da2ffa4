package sessionmanager

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/go-fcnet/go-fcnet/lib/address"
	"github.com/go-fcnet/go-fcnet/lib/config"
	"github.com/go-fcnet/go-fcnet/lib/cryptoauth"
	"github.com/go-fcnet/go-fcnet/lib/eventbus"
	"github.com/go-fcnet/go-fcnet/lib/util"
	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/go-fcnet/go-fcnet/lib/wire"
	"github.com/samber/oops"
)

var log = logger.GetLogger()

// Shortest acceptable switch packet: switch header, nonce-or-handle word,
// and the minimum crypto framing of a run packet.
const minSwitchPacket = wire.SwitchHeaderSize + 4 + 20

// SessionManager owns every peer session and moves packets between the
// inside and switch interfaces, coordinating with pathfinders over the
// event bus. All entry points serialize behind one mutex.
type SessionManager struct {
	mu sync.Mutex

	maxBufferedMessages        int
	metricHalflifeMilliseconds int

	ca    *cryptoauth.CryptoAuth
	ee    *eventbus.EventEmitter
	table *sessionTable

	buffered map[[16]byte]*bufferedMessage

	insideSink wire.Iface
	switchSink wire.Iface

	// now is split out so tests can steer the buffer TTL.
	now func() time.Time

	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// NewSessionManager builds a manager around the node's CryptoAuth and
// registers it on the event bus for NODE and SESSIONS events.
func NewSessionManager(cfg *config.SessionManagerConfig, ca *cryptoauth.CryptoAuth, ee *eventbus.EventEmitter) (*SessionManager, error) {
	if cfg == nil {
		cfg = &config.DefaultSessionManagerConfig
	}
	table, err := newSessionTable()
	if err != nil {
		return nil, err
	}
	sm := &SessionManager{
		maxBufferedMessages:        cfg.MaxBufferedMessages,
		metricHalflifeMilliseconds: cfg.MetricHalflifeMilliseconds,
		ca:                         ca,
		ee:                         ee,
		table:                      table,
		buffered:                   make(map[[16]byte]*bufferedMessage),
		now:                        time.Now,
	}
	ee.RegisterCore(wire.IfaceFunc(sm.HandleEvent), wire.PathfinderNode, wire.PathfinderSessions)
	log.WithFields(logger.Fields{
		"at":           "NewSessionManager",
		"first_handle": table.firstHandle,
		"max_buffered": sm.maxBufferedMessages,
	}).Debug("session manager created")
	return sm, nil
}

// SetInsideSink connects the upstream receiver of decrypted packets.
func (sm *SessionManager) SetInsideSink(iface wire.Iface) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.insideSink = iface
}

// SetSwitchSink connects the downstream receiver of encrypted packets.
func (sm *SessionManager) SetSwitchSink(iface wire.Iface) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.switchSink = iface
}

// Start launches the buffer pruning tick.
func (sm *SessionManager) Start() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.started {
		return
	}
	sm.started = true
	sm.stop = make(chan struct{})
	sm.wg.Add(1)
	go sm.pruneLoop()
}

// Stop halts the pruning tick and waits for it to exit.
func (sm *SessionManager) Stop() {
	sm.mu.Lock()
	if !sm.started {
		sm.mu.Unlock()
		return
	}
	sm.started = false
	close(sm.stop)
	sm.mu.Unlock()
	sm.wg.Wait()
}

// Close stops the manager and tears down every session, emitting one
// CORE_SESSION_ENDED per session.
func (sm *SessionManager) Close() {
	sm.Stop()
	sm.mu.Lock()
	defer sm.mu.Unlock()
	for _, h := range sm.table.handles() {
		if sess := sm.table.lookupByHandle(h); sess != nil {
			sm.destroySession(sess)
		}
	}
}

func (sm *SessionManager) pruneLoop() {
	defer sm.wg.Done()
	ticker := time.NewTicker(BufferTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sm.mu.Lock()
			sm.checkTimedOutBuffers()
			sm.mu.Unlock()
		case <-sm.stop:
			return
		}
	}
}

// SessionForIp6 returns the live session for an address, or nil.
func (sm *SessionManager) SessionForIp6(ip6 [16]byte) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.table.lookupByIp6(ip6)
}

// SessionForHandle returns the live session owning a handle, or nil.
func (sm *SessionManager) SessionForHandle(handle uint32) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.table.lookupByHandle(handle)
}

// HandleList returns a snapshot of every live session's handle.
func (sm *SessionManager) HandleList() []uint32 {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.table.handles()
}

// DestroySession removes s from the table and emits exactly one
// CORE_SESSION_ENDED carrying its last known send label.
func (sm *SessionManager) DestroySession(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.destroySession(s)
}

func (sm *SessionManager) destroySession(s *Session) {
	if s.destroyed {
		return
	}
	s.destroyed = true
	sm.table.remove(s)
	sm.sendSession(s, s.SendSwitchLabel, wire.PathfinderBroadcast, wire.CoreSessionEnded)
	log.WithFields(sessionFields(s, s.SendSwitchLabel)).Debug("session ended")
}

// getSession returns the session for ip6, creating it when absent. On an
// existing session only zero fields are filled in; the handshake direction
// is fixed at creation. isOutgoing marks sessions this node initiates, so
// the crypto layer knows which side restarts a stalled handshake. Creation
// emits CORE_SESSION before the session is returned, so the bus sees the
// peer before any packet moves. Caller holds the manager lock.
func (sm *SessionManager) getSession(ip6 [16]byte, publicKey [32]byte, version uint32, label uint64, isOutgoing bool) (*Session, error) {
	if sess := sm.table.lookupByIp6(ip6); sess != nil {
		if sess.Version == 0 {
			sess.Version = version
		}
		if sess.SendSwitchLabel == 0 {
			sess.SendSwitchLabel = label
		}
		return sess, nil
	}
	caSess, err := sm.ca.NewSession(publicKey, ip6, isOutgoing, "inner")
	if err != nil {
		return nil, err
	}
	sess := &Session{
		CaSession:       caSess,
		Version:         version,
		SendSwitchLabel: label,
		TimeOfCreation:  sm.now().UnixMilli(),
	}
	handle, err := sm.table.insert(ip6, sess)
	if err != nil {
		util.Panicf("session table insert failed: %v", err)
	}
	sess.ReceiveHandle = handle
	sm.sendSession(sess, label, wire.PathfinderBroadcast, wire.CoreSession)
	return sess, nil
}

// HandleSwitchPacket is the switch ingress pipeline: decode the
// nonce-or-handle, resolve or create the session, decrypt, rewrite to
// route-header form and forward upstream. Drops return a descriptive
// error after a debug log; the packet is abandoned either way.
func (sm *SessionManager) HandleSwitchPacket(m *wire.Message) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if m.Len() < minSwitchPacket {
		log.WithFields(logger.Fields{"at": "HandleSwitchPacket", "len": m.Len()}).Debug("DROP runt")
		return ErrRunt
	}

	// The header bytes stay put in the backing buffer while the head
	// moves past them; this view stays valid until the route header is
	// written below.
	switchHeader := m.Bytes()[:wire.SwitchHeaderSize]
	if err := m.Shift(-wire.SwitchHeaderSize); err != nil {
		return err
	}

	nonceOrHandle, err := m.Peek32()
	if err != nil {
		return err
	}

	var sess *Session
	if nonceOrHandle > 3 {
		// > 3 it's a handle.
		sess = sm.table.lookupByHandle(nonceOrHandle)
		if sess == nil {
			log.WithFields(logger.Fields{
				"at":     "HandleSwitchPacket",
				"handle": nonceOrHandle,
			}).Debug("DROP message with unrecognized handle")
			return ErrUnknownHandle
		}
		if err := m.Shift(-4); err != nil {
			return err
		}
	} else {
		if m.Len() < wire.CryptoHeaderSize+4 {
			log.WithFields(logger.Fields{"at": "HandleSwitchPacket", "len": m.Len()}).Debug("DROP runt")
			return ErrRunt
		}
		keyBytes, err := wire.HandshakePublicKey(m.Bytes())
		if err != nil {
			return err
		}
		var herKey [32]byte
		copy(herKey[:], keyBytes)
		ip6, ok := address.ForPublicKey(herKey[:])
		if !ok {
			log.WithFields(logger.Fields{"at": "HandleSwitchPacket"}).Debug("DROP handshake with non-fc key")
			return ErrBadHandshakeKey
		}
		// A packet which claims to be "from us" causes problems.
		if herKey == sm.ca.PublicKey() {
			log.WithFields(logger.Fields{"at": "HandleSwitchPacket"}).Debug("DROP handshake from ourselves")
			return ErrOwnKey
		}
		label := wire.SwitchLabel(switchHeader)
		sess, err = sm.getSession(ip6, herKey, 0, label, false)
		if err != nil {
			log.WithFields(logger.Fields{
				"at":    "HandleSwitchPacket",
				"error": err.Error(),
			}).Debug("DROP handshake with unusable key")
			return err
		}
		fields := sessionFields(sess, label)
		fields["nonce"] = nonceOrHandle
		log.WithFields(fields).Debug("new session")
	}

	if err := sess.CaSession.Decrypt(m); err != nil {
		fields := sessionFields(sess, wire.SwitchLabel(switchHeader))
		fields["nonce"] = nonceOrHandle
		fields["state"] = cryptoauth.StateString(sess.CaSession.GetState())
		log.WithFields(fields).Debug("DROP failed decrypting message")
		return oops.Wrapf(ErrDecryptFailed, "%v", err)
	}

	setupPacket := nonceOrHandle <= 3
	if setupPacket {
		// The first four plaintext bytes are the handle the peer chose
		// for us to stamp on outbound run packets.
		handle, err := m.Pop32()
		if err != nil {
			return err
		}
		sess.SendHandle = handle
		log.WithFields(sessionFields(sess, wire.SwitchLabel(switchHeader))).Debug("received start message")
	} else {
		log.WithFields(sessionFields(sess, wire.SwitchLabel(switchHeader))).Debug("received run message")
	}

	if err := m.Shift(wire.RouteHeaderSize); err != nil {
		util.Panicf("growing route header: %v", err)
	}
	header := m.Bytes()[:wire.RouteHeaderSize]
	// The switch header must be copied before the ip6/publicKey writes:
	// on a run packet the grown route header overlaps the region where
	// the original header sits.
	copy(header[:wire.SwitchHeaderSize], switchHeader)
	binary.BigEndian.PutUint32(header[wire.RouteHeaderVersionOffset:], sess.Version)
	binary.BigEndian.PutUint32(header[wire.RouteHeaderVersionOffset+4:], 0)
	herIp6 := sess.CaSession.HerIp6()
	copy(header[wire.RouteHeaderIP6Offset:], herIp6[:])
	herKey := sess.CaSession.HerPublicKey()
	copy(header[wire.RouteHeaderPublicKeyOffset:], herKey[:])

	path := wire.RouteLabel(header)
	if sess.SendSwitchLabel == 0 {
		sess.SendSwitchLabel = path
	}
	if path != sess.RecvSwitchLabel {
		sess.RecvSwitchLabel = path
		sm.sendSession(sess, path, wire.PathfinderBroadcast, wire.CoreDiscoveredPath)
	}

	if sm.insideSink == nil {
		return nil
	}
	return sm.insideSink.Send(m)
}

// HandleInsidePacket is the inside ingress pipeline: resolve the session
// named by the route header (creating it from an embedded key), choose a
// label and hand off to readyToSend, or buffer-and-search when no route
// is known.
func (sm *SessionManager) HandleInsidePacket(m *wire.Message) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if m.Len() < wire.RouteHeaderSize {
		util.Panicf("inside packet shorter than a route header: %d bytes", m.Len())
	}
	header := m.Bytes()[:wire.RouteHeaderSize]
	var ip6 [16]byte
	copy(ip6[:], header[wire.RouteHeaderIP6Offset:])
	var publicKey [32]byte
	copy(publicKey[:], header[wire.RouteHeaderPublicKeyOffset:])
	version := wire.RouteVersion(header)
	label := wire.RouteLabel(header)

	sess := sm.table.lookupByIp6(ip6)
	if sess == nil {
		if publicKey != ([32]byte{}) {
			var err error
			sess, err = sm.getSession(ip6, publicKey, version, label, true)
			if err != nil {
				log.WithFields(logger.Fields{
					"at":    "HandleInsidePacket",
					"ip":    address.PrintIP(ip6),
					"error": err.Error(),
				}).Debug("DROP packet with unusable key")
				return err
			}
		} else {
			return sm.needsLookup(m)
		}
	}

	if version != 0 {
		sess.Version = version
	}

	if label != 0 {
		// Label supplied by the sender wins.
	} else if sess.SendSwitchLabel != 0 {
		wire.SetRouteLabel(header, sess.SendSwitchLabel)
	} else {
		return sm.needsLookup(m)
	}

	return sm.readyToSend(m, sess)
}

// readyToSend strips the route header, encrypts and emits the packet on
// the switch interface. Pre-handshake packets carry our receive handle
// inside the sealed payload so the peer can authenticate which session we
// are; established packets carry the peer's handle in clear in front of
// the ciphertext. Failures here are corruption, not traffic.
func (sm *SessionManager) readyToSend(m *wire.Message, sess *Session) error {
	var switchHeader [wire.SwitchHeaderSize]byte
	copy(switchHeader[:], m.Bytes()[:wire.SwitchHeaderSize])
	if err := m.Shift(-wire.RouteHeaderSize); err != nil {
		util.Panicf("stripping route header: %v", err)
	}

	sess.CaSession.ResetIfTimeout()
	preHandshake3 := sess.CaSession.GetState() < cryptoauth.StateHandshake3
	if preHandshake3 {
		// Put the handle into the message so that it's authenticated.
		if err := m.Push32(sess.ReceiveHandle); err != nil {
			util.Panicf("pushing receive handle: %v", err)
		}
	}

	if err := sess.CaSession.Encrypt(m); err != nil {
		util.Panicf("encrypt failed: %v", err)
	}

	if preHandshake3 {
		log.WithFields(sessionFields(sess, binary.BigEndian.Uint64(switchHeader[:8]))).Debug("sending start message")
	} else {
		if err := m.Push32(sess.SendHandle); err != nil {
			util.Panicf("pushing send handle: %v", err)
		}
		log.WithFields(sessionFields(sess, binary.BigEndian.Uint64(switchHeader[:8]))).Debug("sending run message")
	}

	if err := m.Push(switchHeader[:]); err != nil {
		util.Panicf("revealing switch header: %v", err)
	}

	if sm.switchSink == nil {
		return nil
	}
	return sm.switchSink.Send(m)
}

// HandleEvent is the event ingress pipeline, registered on the bus for
// PATHFINDER_NODE and PATHFINDER_SESSIONS.
func (sm *SessionManager) HandleEvent(m *wire.Message) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	kindWord, err := m.Pop32LE()
	if err != nil {
		return oops.Wrapf(err, "event without kind")
	}
	sourcePf, err := m.Pop32LE()
	if err != nil {
		return oops.Wrapf(err, "event without source")
	}

	switch wire.EventKind(kindWord) {
	case wire.PathfinderSessions:
		if m.Len() != 0 {
			util.Panicf("SESSIONS request with %d trailing bytes", m.Len())
		}
		return sm.sessionsRequest(sourcePf)
	case wire.PathfinderNode:
	default:
		util.Panicf("event kind %d reached the session manager", kindWord)
	}

	recordBytes, err := m.Pop(wire.NodeSize)
	if err != nil {
		util.Panicf("truncated NODE event: %v", err)
	}
	node, err := wire.UnmarshalNode(recordBytes)
	if err != nil {
		util.Panicf("bad NODE record: %v", err)
	}
	if m.Len() != 0 {
		util.Panicf("NODE event with %d trailing bytes", m.Len())
	}

	bm, hasBuffered := sm.buffered[node.IP6]
	if !hasBuffered {
		sess := sm.table.lookupByIp6(node.IP6)
		if sess == nil {
			// We discovered a node we're not interested in.
			log.WithFields(logger.Fields{
				"at": "HandleEvent",
				"ip": address.PrintIP(node.IP6),
			}).Debug("ignoring discovery for unknown peer")
			return nil
		}
		sess.SendSwitchLabel = node.Path
		sess.Version = node.Version
		return nil
	}

	sess, err := sm.getSession(node.IP6, node.PublicKey, node.Version, node.Path, true)
	if err != nil {
		log.WithFields(logger.Fields{
			"at":    "HandleEvent",
			"ip":    address.PrintIP(node.IP6),
			"error": err.Error(),
		}).Debug("discovery with unusable key")
		return err
	}

	// Send what's on the buffer. It was parked without a route, so the
	// discovered label goes into its header the same way inside ingress
	// fills one in before handing off.
	if wire.RouteLabel(bm.msg.Bytes()) == 0 {
		wire.SetRouteLabel(bm.msg.Bytes(), sess.SendSwitchLabel)
	}
	delete(sm.buffered, node.IP6)
	return sm.readyToSend(bm.msg, sess)
}
