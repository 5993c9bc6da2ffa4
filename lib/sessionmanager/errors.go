package sessionmanager

import "github.com/samber/oops"

var (
	// ErrRunt means a packet was too short for its framing.
	ErrRunt = oops.Errorf("drop: runt packet")
	// ErrUnknownHandle means a run packet carried a handle no live session owns.
	ErrUnknownHandle = oops.Errorf("drop: unrecognized handle")
	// ErrBadHandshakeKey means a handshake key does not derive an fc address.
	ErrBadHandshakeKey = oops.Errorf("drop: handshake with non-fc key")
	// ErrOwnKey means a handshake claimed to come from this node's own key.
	ErrOwnKey = oops.Errorf("drop: handshake from ourselves")
	// ErrDecryptFailed means the crypto layer rejected a packet.
	ErrDecryptFailed = oops.Errorf("drop: decrypt failed")
	// ErrBufferFull means the pending-lookup buffer is at its ceiling.
	ErrBufferFull = oops.Errorf("drop: max buffered messages reached")
)
