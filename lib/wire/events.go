package wire

import (
	"encoding/binary"

	"github.com/samber/oops"
)

// EventKind identifies a message class on the pathfinder event bus.
type EventKind uint32

// Inbound (pathfinder to core) event kinds.
const (
	PathfinderNode     EventKind = 1
	PathfinderSessions EventKind = 2
)

// Outbound (core to pathfinder) event kinds.
const (
	CoreSession        EventKind = 1025
	CoreSessionEnded   EventKind = 1026
	CoreDiscoveredPath EventKind = 1027
	CoreSearchReq      EventKind = 1028
)

// PathfinderBroadcast addresses an outbound event to every pathfinder.
const PathfinderBroadcast uint32 = 0xffffffff

// MetricUnknown is emitted in every Node record the core produces; path
// quality is not scored here.
const MetricUnknown uint32 = 0xffffffff

func (k EventKind) String() string {
	switch k {
	case PathfinderNode:
		return "PATHFINDER_NODE"
	case PathfinderSessions:
		return "PATHFINDER_SESSIONS"
	case CoreSession:
		return "CORE_SESSION"
	case CoreSessionEnded:
		return "CORE_SESSION_ENDED"
	case CoreDiscoveredPath:
		return "CORE_DISCOVERED_PATH"
	case CoreSearchReq:
		return "CORE_SEARCH_REQ"
	}
	return "UNKNOWN"
}

// NodeSize is the wire size of a Node record.
const NodeSize = 64

// Node is the fixed-size peer record shared by several bus events:
// path, metric, version, ip6, public key.
type Node struct {
	Path      uint64
	Metric    uint32
	Version   uint32
	IP6       [16]byte
	PublicKey [32]byte
}

// Marshal writes the record into the first NodeSize bytes of b.
func (n *Node) Marshal(b []byte) error {
	if len(b) < NodeSize {
		return oops.Errorf("node record: %d bytes, need %d", len(b), NodeSize)
	}
	binary.BigEndian.PutUint64(b[0:8], n.Path)
	binary.BigEndian.PutUint32(b[8:12], n.Metric)
	binary.BigEndian.PutUint32(b[12:16], n.Version)
	copy(b[16:32], n.IP6[:])
	copy(b[32:64], n.PublicKey[:])
	return nil
}

// UnmarshalNode decodes a Node record from the first NodeSize bytes of b.
func UnmarshalNode(b []byte) (Node, error) {
	if len(b) < NodeSize {
		return Node{}, oops.Errorf("node record: %d bytes, need %d", len(b), NodeSize)
	}
	n := Node{
		Path:    binary.BigEndian.Uint64(b[0:8]),
		Metric:  binary.BigEndian.Uint32(b[8:12]),
		Version: binary.BigEndian.Uint32(b[12:16]),
	}
	copy(n.IP6[:], b[16:32])
	copy(n.PublicKey[:], b[32:64])
	return n, nil
}

// Iface is one end of a packet channel between components. Implementations
// must accept every submitted message; transport backpressure is not
// modelled at this layer.
type Iface interface {
	Send(m *Message) error
}

// IfaceFunc adapts a function to the Iface interface.
type IfaceFunc func(m *Message) error

func (f IfaceFunc) Send(m *Message) error { return f(m) }
