// Package sessionmanager sits between the inside interface, which carries
// plaintext packets addressed to fc00::/8 peers, and the switch interface,
// which carries ciphertext labelled by a 64-bit routing path. For every
// remote peer it owns a cryptoauth session and a pair of 32-bit handles
// used to demultiplex packets without re-parsing identity, and it buffers
// outbound packets for peers whose route is still being resolved by a
// pathfinder.
//
// # Pipelines
//
//   - Switch ingress: decode nonce-or-handle, resolve or create the
//     session, decrypt, rewrite to route-header form, forward inside.
//   - Inside ingress: resolve the session by address (or create it from an
//     embedded key), choose a label, encrypt, forward to the switch. With
//     no route known the packet is buffered and a CORE_SEARCH_REQ raised.
//   - Event ingress: PATHFINDER_NODE discoveries update or create sessions
//     and drain buffered packets; PATHFINDER_SESSIONS enumerates peers.
//
// # Concurrency
//
// All entry points serialize behind one mutex, the Go rendition of the
// original single-threaded event loop: each ingress call runs to
// completion, and events it raises are delivered synchronously in program
// order before it returns. The buffer pruner ticks every ten seconds under
// the same serialization.
//
// # Handles
//
// Handle values 0-3 are reserved by the crypto layer for handshake stage
// words. Allocated handles are firstHandle + slot, where firstHandle is
// random per manager and a slot number is never reused while its session
// lives, so a handle stays valid across any amount of table churn.
package sessionmanager
