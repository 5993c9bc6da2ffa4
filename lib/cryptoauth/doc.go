// Package cryptoauth provides the per-peer authenticated encryption
// sessions used by the session manager: X25519 static-static key agreement
// between long-term keys, BLAKE2s-derived directional keys, and a staged
// handshake that carries the sender's public key in clear so a receiver can
// identify the peer before any session exists.
//
// Handshake packets are a 72-byte crypto header (stage word, auth
// challenge, 24-byte nonce, sender public key) followed by an
// XChaCha20-Poly1305 sealed payload with the header as associated data.
// Run packets are a 32-bit counter nonce (values 0-3 are reserved to mark
// handshake stages) followed by a ChaCha20-Poly1305 sealed payload.
//
// Session state progresses monotonically:
//
//	Init -> Handshake1 (hello sent) -> Handshake2 (hello received)
//	     -> Handshake3 (key sent)   -> Established
//
// A locally initiated session stuck mid-handshake rewinds to Init after a
// timeout so the next outbound packet restarts the exchange; responder
// sessions hold their state and wait for the initiator's retry.
package cryptoauth
