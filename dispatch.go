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
)

// handleDatagram is the dispatcher's single entry point for an inbound
// packet: parse, validate, learn a route if offered, then dispatch by type.
func (n *Node) handleDatagram(dg rawDatagram) {
	p, err := Unmarshal(dg.data)
	if err != nil {
		if n.dbg {
			n.log.Printf("<- %s: unparseable packet: %v", dg.addr, err)
		}
		return
	}
	if n.dbg {
		n.log.Printf("<- %s: %s %v", dg.addr, p.Type, p.Key)
	}

	if ok, reason := p.Check(); !ok {
		fail := &Packet{Type: TypeFailure, Tag: p.Tag, TTL: p.TTL, HasTTL: p.HasTTL, Reason: reason}
		n.logSendErr(n.sendPacket(fail, dg.addr))
		return
	}

	if n.dbg {
		before := fmt.Sprint(n.rteTbl.Entries())
		defer func() {
			if fmt.Sprint(n.rteTbl.Entries()) != before {
				n.rteTbl.Debug(n.log.Writer())
			}
		}()
	}

	// join is excluded alongside leave: a joiner's senderInfo carries a
	// placeholder firstHash of 0 before handleJoin assigns its real ring
	// position, and learning the placeholder here would leave a stale
	// duplicate entry for the same address once the real one is added.
	if p.HasSenderInfo && p.Type != TypeLeave && p.Type != TypeJoin {
		n.rteTbl.AddRoute(p.SenderInfo, n.succInfo)
	}

	switch p.Type {
	case TypeGet:
		n.handleGet(p, dg.addr)
	case TypePut:
		n.handlePut(p, dg.addr)
	case TypeTransfer:
		n.handleXfer(p, dg.addr)
	case TypeSuccess:
		if n.joining {
			n.applyJoinSuccess(p)
			return
		}
		n.handleReply(p, dg.addr)
	case TypeNoMatch, TypeFailure:
		n.handleReply(p, dg.addr)
	case TypeJoin:
		n.handleJoin(p, dg.addr)
	case TypeUpdate:
		n.handleUpdate(p)
	case TypeLeave:
		n.handleLeaveForward(p, dg.addr)
	}
}

// handleGet answers a lookup locally (owned range, or a cache hit) or
// forwards it on. Replies for an owned/cached lookup go to the relay when
// one is recorded, so the relay can learn a shortcut route and cache the
// answer (handleReply); otherwise they go straight to the sender.
func (n *Node) handleGet(p *Packet, sender *net.UDPAddr) {
	h := Hash(p.Key)
	owned := n.hashRange.Contains(h)

	var val string
	var found bool
	if owned {
		val, found = n.store.Get(p.Key)
	} else if n.cache != nil {
		val, found = n.cache.Get(p.Key)
	}

	if owned || found {
		reply := &Packet{Tag: p.Tag, TTL: p.TTL, HasTTL: p.HasTTL, Key: p.Key, HasHashRange: true, HashRange: n.hashRange}
		if found {
			reply.Type = TypeSuccess
			reply.Val = val
			reply.HasVal = true
		} else {
			reply.Type = TypeNoMatch
		}

		dest := sender
		if p.RelayAdr != nil {
			dest = p.RelayAdr
			reply.ClientAdr = p.ClientAdr
			reply.HasSenderInfo = true
			reply.SenderInfo = n.myInfo
		}
		n.logSendErr(n.sendPacket(reply, dest))
		return
	}

	fp := *p
	if fp.RelayAdr == nil {
		fp.RelayAdr = n.myInfo.Address
		fp.ClientAdr = sender
	}
	n.forward(&fp, h)
}

// handlePut answers or forwards a write. Unlike handleGet, an owned put
// replies straight to the recorded client rather than to the relay: there
// is no value to learn a repeat route for.
func (n *Node) handlePut(p *Packet, sender *net.UDPAddr) {
	h := Hash(p.Key)
	if n.hashRange.Contains(h) {
		if p.HasVal {
			n.store.Put(p.Key, p.Val)
		} else {
			n.store.Remove(p.Key)
		}

		reply := &Packet{Type: TypeSuccess, Tag: p.Tag, TTL: p.TTL, HasTTL: p.HasTTL, Key: p.Key}
		if p.HasVal {
			reply.Val = p.Val
			reply.HasVal = true
		}

		dest := sender
		if p.ClientAdr != nil {
			dest = p.ClientAdr
		}
		n.logSendErr(n.sendPacket(reply, dest))
		return
	}

	fp := *p
	if fp.RelayAdr == nil {
		fp.RelayAdr = n.myInfo.Address
		fp.ClientAdr = sender
	}
	n.forward(&fp, h)
}

// handleXfer accepts a key handed over by a neighbor during join or leave.
func (n *Node) handleXfer(p *Packet, _ *net.UDPAddr) {
	n.store.Put(p.Key, p.Val)
}

// forward relays a get/put one hop closer to its owner, or fails it back to
// the original client once its ttl is exhausted.
func (n *Node) forward(p *Packet, h int32) {
	if p.TTL <= 0 {
		if p.ClientAdr != nil {
			fail := &Packet{Type: TypeFailure, Tag: p.Tag, Reason: "time to live expired"}
			n.logSendErr(n.sendPacket(fail, p.ClientAdr))
		}
		return
	}

	next, ok := n.rteTbl.NextHop(h)
	if !ok {
		if n.dbg {
			n.log.Printf("forward: %v", ErrNoRoute)
		}
		return
	}

	p.TTL--
	n.logSendErr(n.sendPacket(p, next.Address))
}

// handleReply processes a success/no-match/failure arriving at a node acting
// as a relay: it learns a shortcut route to the answering owner, optionally
// caches the answer, then strips relay bookkeeping and forwards the final
// reply on to the original client.
func (n *Node) handleReply(p *Packet, sender *net.UDPAddr) {
	if p.HasHashRange {
		n.rteTbl.AddRoute(NodeInfo{Address: sender, FirstHash: p.HashRange.Low}, n.succInfo)
	}
	if n.cache != nil && p.Key != "" && p.HasVal {
		n.cache.Put(p.Key, p.Val)
	}

	final := &Packet{Type: p.Type, Tag: p.Tag, TTL: p.TTL, HasTTL: p.HasTTL, Key: p.Key, Reason: p.Reason}
	if p.HasVal {
		final.Val = p.Val
		final.HasVal = true
	}
	if p.HasHashRange {
		final.HasHashRange = true
		final.HashRange = p.HashRange
	}

	dest := p.ClientAdr
	if dest == nil {
		dest = sender
	}
	n.logSendErr(n.sendPacket(final, dest))
}
