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
	"io"

	"github.com/dustin/go-humanize"
)

// RoutingTable is a bounded, ordered collection of NodeInfo entries. Rather
// than Kademlia-style XOR-distance buckets, this ring keeps a single bounded
// sequence, since Chord's forwarding rule scans the whole table rather than
// a single bucket.
type RoutingTable struct {
	myInfo   NodeInfo
	capacity int
	entries  []NodeInfo
}

// NewRoutingTable returns an empty table bound to myInfo with the given capacity.
func NewRoutingTable(myInfo NodeInfo, capacity int) *RoutingTable {
	return &RoutingTable{myInfo: myInfo, capacity: capacity}
}

// SetMyInfo updates the owning node's identity, used when a node's firstHash
// changes (a joining node learning its range from the success reply).
func (t *RoutingTable) SetMyInfo(n NodeInfo) {
	t.myInfo = n
}

// Entries returns a snapshot of the table's current contents.
func (t *RoutingTable) Entries() []NodeInfo {
	out := make([]NodeInfo, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *RoutingTable) Len() int {
	return len(t.entries)
}

// AddRoute implements insertion rule, including its "evict first
// non-successor" eviction policy. succInfo is supplied by the caller since
// the routing table doesn't itself track ring neighbors.
func (t *RoutingTable) AddRoute(n NodeInfo, succInfo NodeInfo) {
	if n.Equal(t.myInfo) {
		return
	}
	for _, e := range t.entries {
		if e.Equal(n) {
			return
		}
	}

	if len(t.entries) <= t.capacity {
		t.entries = append(t.entries, n)
		return
	}

	for i, e := range t.entries {
		if !e.Equal(succInfo) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			t.entries = append(t.entries, n)
			return
		}
	}
	// every entry equals succInfo: do not insert.
}

// RemoveRoute deletes every entry whose address equals n.Address, scanning
// back-to-front to preserve indices during deletion.
func (t *RoutingTable) RemoveRoute(n NodeInfo) {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if addrEqual(t.entries[i].Address, n.Address) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
		}
	}
}

// ringDistance is the clockwise distance from a node at position firstHash to
// target hash h, computed modulo RingModulus rather than HashSpace. This
// reproduces a likely off-by-one in the reference modulus choice, preserved
// here for wire interop rather than corrected.
func ringDistance(h, firstHash int32) int64 {
	d := int64(h) - int64(firstHash)
	d %= RingModulus
	if d < 0 {
		d += RingModulus
	}
	return d
}

// NextHop chooses the route minimizing the clockwise ring distance to h,
// keeping the last-scanned minimum on ties.
func (t *RoutingTable) NextHop(h int32) (NodeInfo, bool) {
	if len(t.entries) == 0 {
		return NodeInfo{}, false
	}

	best := t.entries[0]
	bestDist := ringDistance(h, best.FirstHash)

	for _, e := range t.entries[1:] {
		d := ringDistance(h, e.FirstHash)
		if d <= bestDist {
			best = e
			bestDist = d
		}
	}

	return best, true
}

// Debug writes a human-readable dump of the table to w. The node calls it
// only when its debug option is enabled and a packet changed the table.
func (t *RoutingTable) Debug(w io.Writer) {
	fmt.Fprintf(w, "routing table (%s entries):\n", humanize.Comma(int64(len(t.entries))))
	for _, e := range t.entries {
		fmt.Fprintf(w, "  %s\n", e.String())
	}
}
