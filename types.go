// Copyright 2024 Terminos Storage Protocol
// This file is part of the tos library.
//
// The tos library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tos library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tos library. If not, see <http://www.gnu.org/licenses/>.

package dhtring

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// NodeInfo is a node's socket address together with its ring position.
// A named record type rather than a generic pair/tuple.
type NodeInfo struct {
	Address   *net.UDPAddr
	FirstHash int32
}

// Equal compares NodeInfo by (address, firstHash), the equality used throughout
// the routing table and membership invariants.
func (n NodeInfo) Equal(o NodeInfo) bool {
	return addrEqual(n.Address, o.Address) && n.FirstHash == o.FirstHash
}

func (n NodeInfo) IsZero() bool {
	return n.Address == nil
}

func (n NodeInfo) String() string {
	if n.Address == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s:%d", n.Address.String(), n.FirstHash)
}

// serializeNodeInfo renders a NodeInfo as ip:port:firstHash.
func serializeNodeInfo(n NodeInfo) string {
	return fmt.Sprintf("%s:%d:%d", n.Address.IP.String(), n.Address.Port, n.FirstHash)
}

// parseNodeInfo parses the ip:port:firstHash wire format.
func parseNodeInfo(s string) (NodeInfo, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return NodeInfo{}, fmt.Errorf("invalid NodeInfo %q", s)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return NodeInfo{}, fmt.Errorf("invalid NodeInfo port %q: %w", s, err)
	}
	hash, err := strconv.ParseInt(parts[2], 10, 32)
	if err != nil {
		return NodeInfo{}, fmt.Errorf("invalid NodeInfo firstHash %q: %w", s, err)
	}
	ip := net.ParseIP(parts[0])
	if ip == nil {
		return NodeInfo{}, fmt.Errorf("invalid NodeInfo address %q", s)
	}
	return NodeInfo{Address: &net.UDPAddr{IP: ip, Port: port}, FirstHash: int32(hash)}, nil
}

// serializeAddr renders an address as ip:port.
func serializeAddr(a *net.UDPAddr) string {
	return fmt.Sprintf("%s:%d", a.IP.String(), a.Port)
}

func parseAddr(s string) (*net.UDPAddr, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", s, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid address port %q: %w", s, err)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("invalid address host %q", s)
	}
	return &net.UDPAddr{IP: ip, Port: port}, nil
}

func addrEqual(a, b *net.UDPAddr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// HashRange is an inclusive [Low, High] interval of the ring's hash space.
// A named record type rather than a generic pair/tuple.
type HashRange struct {
	Low  int32
	High int32
}

// Contains reports whether h falls within the inclusive range.
func (r HashRange) Contains(h int32) bool {
	return h >= r.Low && h <= r.High
}

func (r HashRange) String() string {
	return fmt.Sprintf("%d:%d", r.Low, r.High)
}

// FullRing is the range owned by the sole node of a single-node ring.
func FullRing() HashRange {
	return HashRange{Low: 0, High: int32(HashSpace - 1)}
}

// serializeHashRange renders a HashRange as low:high.
func serializeHashRange(r HashRange) string {
	return fmt.Sprintf("%d:%d", r.Low, r.High)
}

func parseHashRange(s string) (HashRange, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return HashRange{}, fmt.Errorf("invalid HashRange %q", s)
	}
	low, err := strconv.ParseInt(parts[0], 10, 32)
	if err != nil {
		return HashRange{}, fmt.Errorf("invalid HashRange low %q: %w", s, err)
	}
	high, err := strconv.ParseInt(parts[1], 10, 32)
	if err != nil {
		return HashRange{}, fmt.Errorf("invalid HashRange high %q: %w", s, err)
	}
	return HashRange{Low: int32(low), High: int32(high)}, nil
}

// splitPoint computes the new node's range boundary M when a node owning
// (L,R) admits a joiner: M = 1 + (R+L)/2, reflected if negative. The sum is
// carried in 64-bit arithmetic so it never itself overflows for any valid
// (L,R) within the 31-bit ring space; the reflection branch is kept as a
// defensive guard for the same formula.
func splitPoint(low, high int32) int32 {
	m := 1 + (int64(high)+int64(low))/2
	if m < 0 {
		m = -m + 1
	}
	return int32(m)
}
