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

// Package dhtring implements a Chord-style ring of DHT nodes: hash-range
// ownership, bounded-table forwarding and an ASCII line protocol over UDP.
package dhtring

import (
	"context"
	"log"
	"net"
	"os"
)

// rawDatagram is a single received UDP payload, handed from the reader
// goroutine to the dispatcher over a channel so that every piece of mutable
// node state is touched from exactly one goroutine.
type rawDatagram struct {
	data []byte
	addr *net.UDPAddr
}

// Node is a single ring member: its identity, neighbors, owned range, store,
// routing table and dispatcher loop, with the sync.Map/bucket concurrency a
// multi-goroutine design would need dropped in favor of a single dispatcher
// goroutine.
type Node struct {
	sock *socket
	log  *log.Logger
	dbg  bool

	myInfo    NodeInfo
	predInfo  NodeInfo
	succInfo  NodeInfo
	hashRange HashRange

	store *Store
	cache *Store // nil when the reply cache is disabled

	rteTbl *RoutingTable

	sendTag int64

	joining  bool
	joinDone chan error

	leaving    bool
	leaveErrCh chan error

	incoming       chan rawDatagram
	leaveRequested chan struct{}
	stopped        chan struct{}
	terminated     bool
}

// New brings up a node per cfg: binds its socket, then either starts a
// single-node ring (Solo, cfg.PredFile == "") or joins an existing one
// through the address recorded in cfg.PredFile (Joining). New blocks until a
// Joining node's handshake completes, since joins are assumed to be
// serialized by the operator.
func New(cfg *Config) (*Node, error) {
	numRoutes := cfg.NumRoutes
	if numRoutes <= 0 {
		numRoutes = DefaultNumRoutes
	}

	sock, err := openSocket(cfg.ListenAddress)
	if err != nil {
		return nil, err
	}

	n := &Node{
		sock:           sock,
		log:            log.New(os.Stderr, "dhtring: ", log.LstdFlags),
		dbg:            cfg.Debug,
		myInfo:         NodeInfo{Address: sock.localAddr(), FirstHash: 0},
		store:          NewStore(),
		incoming:       make(chan rawDatagram, 64),
		leaveRequested: make(chan struct{}, 1),
		stopped:        make(chan struct{}),
		leaveErrCh:     make(chan error, 1),
	}
	n.rteTbl = NewRoutingTable(n.myInfo, numRoutes)
	if cfg.Cache {
		n.cache = NewStore()
	}

	if err := writeBootstrapFile(cfg.CfgFile, n.myInfo.Address); err != nil {
		sock.close()
		return nil, err
	}

	go n.readLoop()

	if cfg.PredFile == "" {
		n.bootstrapSolo()
		go n.run()
		return n, nil
	}

	predAddr, err := readBootstrapFile(cfg.PredFile)
	if err != nil {
		sock.close()
		return nil, err
	}

	n.joinDone = make(chan error, 1)
	n.joining = true
	n.predInfo = NodeInfo{Address: predAddr, FirstHash: 0}
	n.succInfo = n.predInfo

	go n.run()

	joinPkt := &Packet{
		Type:          TypeJoin,
		SenderInfo:    n.myInfo,
		HasSenderInfo: true,
		PredInfo:      n.myInfo,
		HasPredInfo:   true,
	}
	if err := n.sendPacket(joinPkt, predAddr); err != nil {
		n.Close()
		return nil, err
	}

	select {
	case err := <-n.joinDone:
		if err != nil {
			n.Close()
			return nil, err
		}
	case <-n.stopped:
		return nil, ErrJoinFailed
	}

	return n, nil
}

// bootstrapSolo initializes a brand-new, single-node ring owning the whole space.
func (n *Node) bootstrapSolo() {
	n.hashRange = FullRing()
	n.predInfo = n.myInfo
	n.succInfo = n.myInfo
}

// Info reports the node's current identity, useful for tests and for writing
// a fresh predecessor bootstrap file for the next joiner.
func (n *Node) Info() NodeInfo {
	return n.myInfo
}

// HashRange reports the node's currently owned range.
func (n *Node) HashRange() HashRange {
	return n.hashRange
}

// PredInfo reports the node's current predecessor.
func (n *Node) PredInfo() NodeInfo {
	return n.predInfo
}

// SuccInfo reports the node's current successor.
func (n *Node) SuccInfo() NodeInfo {
	return n.succInfo
}

// Routes reports a snapshot of the node's routing table entries.
func (n *Node) Routes() []NodeInfo {
	return n.rteTbl.Entries()
}

// StoreLen reports the number of keys currently held locally, used by tests
// to assert transfer-on-join/leave behavior.
func (n *Node) StoreLen() int {
	return n.store.Len()
}

func (n *Node) nextTag() int64 {
	n.sendTag++
	return n.sendTag
}

// sendPacket marshals p and writes it to dst, logging the outgoing packet in
// debug mode. It does not log or retry a failed send; errors are the
// caller's to aggregate or log.
func (n *Node) sendPacket(p *Packet, dst *net.UDPAddr) error {
	data := p.Marshal(n.nextTag)
	if n.dbg {
		n.log.Printf("-> %s: %s %v", dst, p.Type, p.Key)
	}
	return n.sock.send(data, dst)
}

func (n *Node) logSendErr(err error) {
	if err != nil && n.dbg {
		n.log.Printf("send error: %v", err)
	}
}

// readLoop feeds the dispatcher loop; it owns the only blocking recv call, so
// no other goroutine ever touches n.sock for reads.
func (n *Node) readLoop() {
	buf := make([]byte, MaxDatagramSize)
	for {
		size, addr, err := n.sock.recv(buf)
		if err != nil {
			close(n.incoming)
			return
		}
		if size == 0 {
			continue
		}
		cp := make([]byte, size)
		copy(cp, buf[:size])
		select {
		case n.incoming <- rawDatagram{data: cp, addr: addr}:
		case <-n.stopped:
			return
		}
	}
}

// run is the single dispatcher goroutine: every mutation of ring state,
// store or routing table happens here, and nowhere else.
func (n *Node) run() {
	for !n.terminated {
		select {
		case <-n.leaveRequested:
			n.beginLeave()
		case dgram, ok := <-n.incoming:
			if !ok {
				n.terminated = true
				continue
			}
			n.handleDatagram(dgram)
		}
	}
	close(n.stopped)
}

// Close tears the node down without running the graceful Leave protocol;
// used by tests and by operators that don't care about handing off their range.
func (n *Node) Close() error {
	err := n.sock.close()
	<-n.stopped
	return err
}

// Leave runs the graceful departure protocol and blocks
// until the node's range and store have been fully handed to its
// predecessor, or ctx is done first.
func (n *Node) Leave(ctx context.Context) error {
	select {
	case <-n.stopped:
		return ErrAlreadyStopped
	default:
	}

	select {
	case n.leaveRequested <- struct{}{}:
	case <-n.stopped:
		return ErrAlreadyStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-n.leaveErrCh:
		closeErr := n.sock.close()
		<-n.stopped
		if err != nil {
			return err
		}
		return closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
