// Package address derives fcnet addresses from long-term public keys. An
// address is the first 16 bytes of SHA-512(SHA-512(publicKey)) and is valid
// only when it falls inside fc00::/8, so two peers with the same key have
// the same address by construction.
package address

import (
	"crypto/sha512"
	"fmt"
)

// Prefix is the leading byte of every valid key-derived address.
const Prefix = 0xfc

// ForPublicKey derives the address for a 32-byte public key. The boolean is
// false when the key does not produce an fc-prefixed address; such keys are
// not usable on the network.
func ForPublicKey(publicKey []byte) ([16]byte, bool) {
	var ip6 [16]byte
	first := sha512.Sum512(publicKey)
	second := sha512.Sum512(first[:])
	copy(ip6[:], second[:16])
	return ip6, ip6[0] == Prefix
}

// PrintIP formats an address in the canonical fixed-width form used by
// debug logs, e.g. "fc68:1e7b:...".
func PrintIP(ip6 [16]byte) string {
	out := make([]byte, 0, 40)
	for i := 0; i < 16; i += 2 {
		if i > 0 {
			out = append(out, ':')
		}
		out = fmt.Appendf(out, "%02x%02x", ip6[i], ip6[i+1])
	}
	return string(out)
}

// PrintPath formats a 64-bit switch label in the dotted form used by debug
// logs, e.g. "0000.0000.0000.0013".
func PrintPath(label uint64) string {
	return fmt.Sprintf("%04x.%04x.%04x.%04x",
		uint16(label>>48), uint16(label>>32), uint16(label>>16), uint16(label))
}
