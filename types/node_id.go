package types

import (
	"fmt"
)

// NodeIDByteLength is the length of the address a NodeID encodes.
const NodeIDByteLength = 20

// NodeID is a hex-encoded peer identifier. It is the peer reference used when
// issuing requests and when reporting misbehaving peers.
type NodeID string

// Validate checks that id is the lowercase hex encoding of a
// NodeIDByteLength-byte address.
func (id NodeID) Validate() error {
	if len(id) != 2*NodeIDByteLength {
		return fmt.Errorf("invalid node ID %q: length %d, expected %d", string(id), len(id), 2*NodeIDByteLength)
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; !('0' <= c && c <= '9' || 'a' <= c && c <= 'f') {
			return fmt.Errorf("invalid node ID %q: %q at %d is not a lowercase hex digit", string(id), c, i)
		}
	}
	return nil
}
