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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bareNode builds a Node with a live socket but no dispatcher goroutine
// running, so handler methods can be called directly and synchronously.
func bareNode(t *testing.T) *Node {
	t.Helper()
	sock, err := openSocket("127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { sock.close() })

	n := &Node{
		sock:   sock,
		myInfo: NodeInfo{Address: sock.localAddr()},
		store:  NewStore(),
	}
	n.rteTbl = NewRoutingTable(n.myInfo, 4)
	n.hashRange = FullRing()
	return n
}

func TestForwardFailsOnTTLExpiry(t *testing.T) {
	n := bareNode(t)
	client := newRawClient(t)

	// call forward directly with ttl already spent and a single known
	// neighbor it could otherwise send to.
	neighbor := nodeAt(9999, 100)
	n.rteTbl.AddRoute(neighbor, neighbor)

	p := &Packet{Type: TypeGet, Key: "k", TTL: 0, HasTTL: true, ClientAdr: client.addr()}
	n.forward(p, 50)

	reply := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeFailure, reply.Type)
	assert.Equal(t, "time to live expired", reply.Reason)
}

func TestForwardDecrementsTTLAndSendsToNextHop(t *testing.T) {
	n := bareNode(t)
	neighborSock, err := openSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer neighborSock.close()

	neighbor := NodeInfo{Address: neighborSock.localAddr(), FirstHash: 100}
	n.rteTbl.AddRoute(neighbor, neighbor)

	p := &Packet{Type: TypeGet, Key: "k", TTL: 5, HasTTL: true}
	n.forward(p, 50)

	buf := make([]byte, MaxDatagramSize)
	require.NoError(t, neighborSock.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	size, _, err := neighborSock.recv(buf)
	require.NoError(t, err)
	got, err := Unmarshal(buf[:size])
	require.NoError(t, err)
	assert.Equal(t, int32(4), got.TTL)
}

// TestForwardWireTTLReachesZeroWithoutDefaulting covers the case a plain
// TTL-is-unset check would get wrong: a packet decremented to exactly 0 by
// forward must reach the wire as ttl:0, not get silently reset to
// DefaultTTL, or the next hop would never detect expiry and keep forwarding.
func TestForwardWireTTLReachesZeroWithoutDefaulting(t *testing.T) {
	n := bareNode(t)
	neighborSock, err := openSocket("127.0.0.1:0")
	require.NoError(t, err)
	defer neighborSock.close()

	neighbor := NodeInfo{Address: neighborSock.localAddr(), FirstHash: 100}
	n.rteTbl.AddRoute(neighbor, neighbor)

	p := &Packet{Type: TypeGet, Key: "k", TTL: 1, HasTTL: true}
	n.forward(p, 50)

	buf := make([]byte, MaxDatagramSize)
	require.NoError(t, neighborSock.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	size, _, err := neighborSock.recv(buf)
	require.NoError(t, err)
	got, err := Unmarshal(buf[:size])
	require.NoError(t, err)
	assert.Equal(t, int32(0), got.TTL)
}

func TestHandleDatagramRepliesFailureOnCheckViolation(t *testing.T) {
	n := bareNode(t)
	client := newRawClient(t)

	p := &Packet{Type: TypeGet, TTL: 10, HasTTL: true} // missing required key
	data := p.Marshal(n.nextTag)

	n.handleDatagram(rawDatagram{data: data, addr: client.addr()})

	reply := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeFailure, reply.Type)
	assert.NotEmpty(t, reply.Reason)
}

func TestHandlePutOwnedStoresAndReplies(t *testing.T) {
	n := bareNode(t)
	client := newRawClient(t)

	p := &Packet{Type: TypePut, Key: "k", Val: "v", HasVal: true, TTL: 10, HasTTL: true}
	n.handlePut(p, client.addr())

	val, ok := n.store.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", val)

	reply := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeSuccess, reply.Type)
}

func TestHandleGetNoMatch(t *testing.T) {
	n := bareNode(t)
	client := newRawClient(t)

	p := &Packet{Type: TypeGet, Key: "missing", TTL: 10, HasTTL: true}
	n.handleGet(p, client.addr())

	reply := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeNoMatch, reply.Type)
}
