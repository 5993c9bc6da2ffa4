// Package wire defines the packet formats shared by the fcnet core: the
// Message buffer used to rewrite headers in place, the 12-byte switch
// header, the 68-byte route header carried on the inside interface, the
// crypto header framing, and the event records exchanged with pathfinders
// over the event bus.
//
// A Message owns one backing buffer. Header stripping and revealing is
// offset bookkeeping (Shift), so a retained view of an earlier header stays
// valid while later pipeline stages consume or produce bytes around it.
// Extend, which grows the tail, moves the content to a new buffer when the
// current one has no spare capacity; views taken before that point still
// refer to the old buffer.
//
// Multi-byte fields in packet headers and Node records are big-endian. The
// two leading bus words of an event message (event kind, destination or
// source pathfinder id) are little-endian, fixing the bus ABI's host-order
// convention to one byte order.
package wire
