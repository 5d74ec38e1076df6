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
	"context"
	"net"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startSolo(t *testing.T, cache bool) *Node {
	t.Helper()
	cfg := &Config{
		ListenAddress: "127.0.0.1:0",
		NumRoutes:     4,
		CfgFile:       filepath.Join(t.TempDir(), "n.cfg"),
		Cache:         cache,
	}
	n, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

func joinVia(t *testing.T, pred *Node, cache bool) *Node {
	t.Helper()
	predFile := filepath.Join(t.TempDir(), "pred.cfg")
	require.NoError(t, writeBootstrapFile(predFile, pred.Info().Address))

	cfg := &Config{
		ListenAddress: "127.0.0.1:0",
		NumRoutes:     4,
		CfgFile:       filepath.Join(t.TempDir(), "n.cfg"),
		PredFile:      predFile,
		Cache:         cache,
	}
	n, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

// rawClient is a bare UDP socket standing in for an external caller that
// speaks the wire protocol directly, used to exercise a node's dispatcher
// without going through another Node.
type rawClient struct {
	conn *net.UDPConn
}

func newRawClient(t *testing.T) *rawClient {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &rawClient{conn: conn}
}

func (c *rawClient) addr() *net.UDPAddr {
	return c.conn.LocalAddr().(*net.UDPAddr)
}

func (c *rawClient) send(t *testing.T, p *Packet, dst *net.UDPAddr) {
	t.Helper()
	var tag int64
	data := p.Marshal(func() int64 { tag++; return tag })
	_, err := c.conn.WriteToUDP(data, dst)
	require.NoError(t, err)
}

func (c *rawClient) recv(t *testing.T, timeout time.Duration) *Packet {
	t.Helper()
	require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(timeout)))
	buf := make([]byte, MaxDatagramSize)
	n, _, err := c.conn.ReadFromUDP(buf)
	require.NoError(t, err)
	p, err := Unmarshal(buf[:n])
	require.NoError(t, err)
	return p
}

func TestSingleNodeHashSplit(t *testing.T) {
	a := startSolo(t, false)
	assert.Equal(t, FullRing(), a.HashRange())

	b := joinVia(t, a, false)

	require.Eventually(t, func() bool {
		return b.HashRange() == (HashRange{Low: 1073741824, High: 2147483647})
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, HashRange{Low: 0, High: 1073741823}, a.HashRange())

	require.Eventually(t, func() bool { return len(a.Routes()) == 1 }, time.Second, 10*time.Millisecond)
	routes := a.Routes()
	assert.True(t, routes[0].Equal(b.Info()))
}

func TestKeyTransferOnJoin(t *testing.T) {
	a := startSolo(t, false)
	a.store.Put("dungeons", "dragons")
	require.GreaterOrEqual(t, Hash("dungeons"), int32(1073741824))

	b := joinVia(t, a, false)

	require.Eventually(t, func() bool { return b.StoreLen() == 1 }, 2*time.Second, 10*time.Millisecond)
	v, ok := b.store.Get("dungeons")
	assert.True(t, ok)
	assert.Equal(t, "dragons", v)
	assert.Equal(t, 0, a.StoreLen())

	client := newRawClient(t)
	client.send(t, &Packet{Type: TypeGet, Key: "dungeons", TTL: 10, HasTTL: true}, a.Info().Address)
	reply := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeSuccess, reply.Type)
	assert.Equal(t, "dragons", reply.Val)
}

func TestRelayCachingAndShortcutLearning(t *testing.T) {
	a := startSolo(t, true)
	b := joinVia(t, a, false)
	c := joinVia(t, b, false)

	require.Eventually(t, func() bool {
		return c.HashRange().High == int32(HashSpace-1) && c.HashRange() != b.HashRange()
	}, 2*time.Second, 10*time.Millisecond)

	var targetKey string
	for i := 0; i < 1000; i++ {
		k := "key" + strconv.Itoa(i)
		if c.HashRange().Contains(Hash(k)) {
			targetKey = k
			break
		}
	}
	require.NotEmpty(t, targetKey, "expected to find a key owned by C within the attempts")
	c.store.Put(targetKey, "shortcut-value")

	client := newRawClient(t)
	client.send(t, &Packet{Type: TypeGet, Key: targetKey, TTL: 10, HasTTL: true}, a.Info().Address)
	first := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeSuccess, first.Type)
	assert.Equal(t, "shortcut-value", first.Val)

	require.Eventually(t, func() bool {
		for _, r := range a.Routes() {
			if r.Equal(c.Info()) {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	v, ok := a.cache.Get(targetKey)
	assert.True(t, ok)
	assert.Equal(t, "shortcut-value", v)

	// second get answers straight from the cache: stop C so a forward
	// would time out, proving A no longer needs to reach the owner.
	c.Close()
	client.send(t, &Packet{Type: TypeGet, Key: targetKey, TTL: 10, HasTTL: true}, a.Info().Address)
	second := client.recv(t, 2*time.Second)
	assert.Equal(t, TypeSuccess, second.Type)
	assert.Equal(t, "shortcut-value", second.Val)
}

func TestGracefulLeave(t *testing.T) {
	a := startSolo(t, false)
	b := joinVia(t, a, false)
	c := joinVia(t, b, false)

	require.Eventually(t, func() bool { return c.SuccInfo().Equal(a.Info()) || a.SuccInfo().Equal(c.Info()) }, 2*time.Second, 10*time.Millisecond)

	bOldHigh := b.HashRange().High

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.Leave(ctx))

	require.Eventually(t, func() bool { return a.SuccInfo().Equal(c.Info()) }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, bOldHigh, a.HashRange().High)
	require.Eventually(t, func() bool { return c.PredInfo().Equal(a.Info()) }, 2*time.Second, 10*time.Millisecond)
}
