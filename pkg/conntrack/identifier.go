package conntrack

import (
	"fmt"
	"net/netip"
)

// Endpoint is one side of a bidirectional flow.
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

// Compare orders endpoints by address family, then raw address bytes, then
// port. netip.Addr.Compare already sorts IPv4 before IPv6.
func (e Endpoint) Compare(other Endpoint) int {
	if c := e.Addr.Compare(other.Addr); c != 0 {
		return c
	}
	switch {
	case e.Port < other.Port:
		return -1
	case e.Port > other.Port:
		return 1
	}
	return 0
}

// Identifier is the canonical, direction-agnostic key of one flow. The key
// discriminates flows that share both endpoints, usually the IP protocol
// number. Identifiers built from the two observation orders of the same
// flow are equal, so the struct can be used directly as a map key.
type Identifier[K comparable] struct {
	// Lower is the lesser endpoint under Endpoint.Compare.
	Lower Endpoint

	// Upper is the greater endpoint.
	Upper Endpoint

	// Key discriminates flows between the same endpoint pair.
	Key K
}

// NewIdentifier builds an Identifier from the endpoints as observed on the
// wire. The source/destination order does not matter; both orders
// canonicalize to the same value. It never fails: equal endpoints form a
// legal degenerate self-flow.
func NewIdentifier[K comparable](srcAddr netip.Addr, srcPort uint16, dstAddr netip.Addr, dstPort uint16, key K) Identifier[K] {
	src := Endpoint{Addr: srcAddr, Port: srcPort}
	dst := Endpoint{Addr: dstAddr, Port: dstPort}
	if src.Compare(dst) > 0 {
		src, dst = dst, src
	}
	return Identifier[K]{Lower: src, Upper: dst, Key: key}
}

func (id Identifier[K]) String() string {
	return fmt.Sprintf("%s:%d <-> %s:%d (%v)", id.Lower.Addr, id.Lower.Port, id.Upper.Addr, id.Upper.Port, id.Key)
}
