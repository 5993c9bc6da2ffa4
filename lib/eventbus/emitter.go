// Package eventbus connects the core to its pathfinders. Core components
// register for the inbound event kinds they handle; pathfinder-side
// delivery is a synchronous send to every registered subscriber, so events
// raised within one ingress call are observed in program order before that
// call returns.
package eventbus

import (
	"github.com/go-fcnet/go-fcnet/lib/util/logger"
	"github.com/go-fcnet/go-fcnet/lib/wire"
	"github.com/samber/oops"
)

var log = logger.GetLogger()

// ErrUnhandledKind means an inbound event carried a kind no core component
// registered for.
var ErrUnhandledKind = oops.Errorf("eventbus: no handler for event kind")

// EventEmitter routes bus messages between pathfinders and the core. The
// sink receives every outbound core event; it may be nil when no
// pathfinder is attached, in which case outbound events are dropped.
type EventEmitter struct {
	core map[wire.EventKind][]wire.Iface
	sink wire.Iface
}

// NewEventEmitter returns an emitter delivering outbound events to sink.
func NewEventEmitter(sink wire.Iface) *EventEmitter {
	return &EventEmitter{
		core: make(map[wire.EventKind][]wire.Iface),
		sink: sink,
	}
}

// RegisterCore subscribes h to inbound events of the given kinds.
func (e *EventEmitter) RegisterCore(h wire.Iface, kinds ...wire.EventKind) {
	for _, k := range kinds {
		e.core[k] = append(e.core[k], h)
		log.WithFields(logger.Fields{
			"at":   "(EventEmitter) RegisterCore",
			"kind": k.String(),
		}).Debug("core handler registered")
	}
}

// SetSink replaces the pathfinder-side sink for outbound events.
func (e *EventEmitter) SetSink(sink wire.Iface) { e.sink = sink }

// DispatchFromPathfinder delivers an inbound bus message to the core
// handlers registered for its kind. The leading bus word is peeked, not
// consumed; handlers pop the kind and source words themselves.
func (e *EventEmitter) DispatchFromPathfinder(m *wire.Message) error {
	w, err := m.Peek32LE()
	if err != nil {
		return oops.Wrapf(err, "event without kind word")
	}
	kind := wire.EventKind(w)
	handlers := e.core[kind]
	if len(handlers) == 0 {
		return oops.Wrapf(ErrUnhandledKind, "kind %s", kind)
	}
	for _, h := range handlers {
		if err := h.Send(m); err != nil {
			return err
		}
	}
	return nil
}

// Send delivers an outbound core event to the pathfinder sink.
func (e *EventEmitter) Send(m *wire.Message) error {
	if e.sink == nil {
		log.WithFields(logger.Fields{
			"at":     "(EventEmitter) Send",
			"reason": "no_sink",
		}).Debug("dropping outbound event, no pathfinder attached")
		return nil
	}
	return e.sink.Send(m)
}
