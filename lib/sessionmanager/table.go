package sessionmanager

import (
	"crypto/rand"
	"math/big"

	"github.com/samber/oops"
)

// Handle numbers 0-3 are reserved for cryptoauth handshake stage words.
const (
	minFirstHandle = 4
	maxFirstHandle = 100000
)

// sessionTable is the dual-keyed session index: by address and by handle.
// Sessions live in a slab whose slot numbers are stable until removal, so
// handle = firstHandle + slot survives any amount of insertion and removal
// around it.
type sessionTable struct {
	firstHandle uint32
	slots       []*Session
	free        []int
	byIp6       map[[16]byte]int
}

func newSessionTable() (*sessionTable, error) {
	span := big.NewInt(maxFirstHandle - minFirstHandle + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, oops.Wrapf(err, "choosing first handle")
	}
	return &sessionTable{
		firstHandle: uint32(n.Int64()) + minFirstHandle,
		byIp6:       make(map[[16]byte]int),
	}, nil
}

func (t *sessionTable) lookupByIp6(ip6 [16]byte) *Session {
	slot, ok := t.byIp6[ip6]
	if !ok {
		return nil
	}
	return t.slots[slot]
}

func (t *sessionTable) lookupByHandle(handle uint32) *Session {
	if handle < t.firstHandle {
		return nil
	}
	slot := int(handle - t.firstHandle)
	if slot >= len(t.slots) {
		return nil
	}
	return t.slots[slot]
}

// insert adds a session under ip6 and returns its allocated handle. The
// caller checks for an existing entry first; a duplicate insert is an error.
func (t *sessionTable) insert(ip6 [16]byte, s *Session) (uint32, error) {
	if _, ok := t.byIp6[ip6]; ok {
		return 0, oops.Errorf("session table: duplicate entry")
	}
	var slot int
	if n := len(t.free); n > 0 {
		slot = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[slot] = s
	} else {
		slot = len(t.slots)
		t.slots = append(t.slots, s)
	}
	t.byIp6[ip6] = slot
	s.slot = slot
	return t.firstHandle + uint32(slot), nil
}

func (t *sessionTable) remove(s *Session) {
	if t.slots[s.slot] != s {
		return
	}
	t.slots[s.slot] = nil
	t.free = append(t.free, s.slot)
	delete(t.byIp6, s.CaSession.HerIp6())
}

// handles returns a snapshot of the externally visible handle values of
// every live session.
func (t *sessionTable) handles() []uint32 {
	out := make([]uint32, 0, len(t.byIp6))
	for _, slot := range t.byIp6 {
		out = append(out, t.firstHandle+uint32(slot))
	}
	return out
}

func (t *sessionTable) count() int { return len(t.byIp6) }
