package overlay

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Errors
var (
	ErrInvalidNodeID   = errors.New("overlay: invalid node id")
	ErrInvalidNodeAddr = errors.New("overlay: invalid node address")
)

// NodeID is the public key naming an overlay endpoint.
type NodeID [ed25519.PublicKeySize]byte

// String renders the node id as lowercase hex.
func (id NodeID) String() string {
	return hex.EncodeToString(id[:])
}

// Short returns an abbreviated node id for log lines.
func (id NodeID) Short() string {
	return id.String()[:8]
}

// ParseNodeID parses a 64-character hex node id.
func ParseNodeID(s string) (NodeID, error) {
	var id NodeID

	raw, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || len(raw) != len(id) {
		return NodeID{}, fmt.Errorf("%w: %q", ErrInvalidNodeID, s)
	}

	copy(id[:], raw)

	return id, nil
}

// NodeAddr names a dialable overlay endpoint: the public key that must
// answer, and the UDP address to reach it at.
type NodeAddr struct {
	ID   NodeID
	Addr *net.UDPAddr
}

// String renders the address in the "key@host:port" form the host prints
// and the client parses.
func (a NodeAddr) String() string {
	return a.ID.String() + "@" + a.Addr.String()
}

// ParseNodeAddr parses a "key@host:port" node address.
func ParseNodeAddr(s string) (NodeAddr, error) {
	key, hostport, found := strings.Cut(strings.TrimSpace(s), "@")
	if !found {
		return NodeAddr{}, fmt.Errorf("%w: missing @ in %q", ErrInvalidNodeAddr, s)
	}

	id, err := ParseNodeID(key)
	if err != nil {
		return NodeAddr{}, err
	}

	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return NodeAddr{}, fmt.Errorf("%w: %v", ErrInvalidNodeAddr, err)
	}

	return NodeAddr{ID: id, Addr: addr}, nil
}
