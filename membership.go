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
	"net"

	"github.com/hashicorp/go-multierror"
)

// handleJoin runs on an existing ring member P that a joiner J has reached
// directly. It splits P's range at the midpoint, hands J the upper half
// plus every key that now falls in it, and patches P's old successor's
// predecessor pointer.
func (n *Node) handleJoin(p *Packet, _ *net.UDPAddr) {
	joinerAddr := p.SenderInfo.Address
	low, high := n.hashRange.Low, n.hashRange.High
	mid := splitPoint(low, high)

	jInfo := NodeInfo{Address: joinerAddr, FirstHash: mid}
	oldSucc := n.succInfo
	wasSolo := oldSucc.Equal(n.myInfo)

	var merr *multierror.Error

	n.succInfo = jInfo
	n.rteTbl.AddRoute(jInfo, jInfo)
	n.hashRange = HashRange{Low: low, High: mid - 1}

	if wasSolo {
		// No distinct successor to notify: P was the only node, so P's own
		// predecessor becomes J directly instead of round-tripping a packet
		// to itself.
		n.predInfo = jInfo
	} else {
		upd := &Packet{Type: TypeUpdate, HasPredInfo: true, PredInfo: jInfo}
		if err := n.sendPacket(upd, oldSucc.Address); err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	type kv struct{ key, val string }
	var toMove []kv
	n.store.Iterate(func(k, v string) {
		if Hash(k) >= mid {
			toMove = append(toMove, kv{k, v})
		}
	})
	for _, e := range toMove {
		tp := &Packet{Type: TypeTransfer, Key: e.key, Val: e.val, HasVal: true, SenderInfo: n.myInfo, HasSenderInfo: true}
		if err := n.sendPacket(tp, joinerAddr); err != nil {
			merr = multierror.Append(merr, err)
		}
		n.store.Remove(e.key)
	}

	success := &Packet{
		Type:         TypeSuccess,
		HasPredInfo:  true,
		PredInfo:     n.myInfo,
		HasSuccInfo:  true,
		SuccInfo:     oldSucc,
		HasHashRange: true,
		HashRange:    HashRange{Low: mid, High: high},
	}
	if err := n.sendPacket(success, joinerAddr); err != nil {
		merr = multierror.Append(merr, err)
	}

	if merr.ErrorOrNil() != nil && n.dbg {
		n.log.Printf("handleJoin: %v", merr)
	}
}

// applyJoinSuccess completes a Joining node's handshake once its chosen
// predecessor replies with the range it was handed.
func (n *Node) applyJoinSuccess(p *Packet) {
	n.hashRange = p.HashRange
	n.myInfo.FirstHash = p.HashRange.Low
	n.predInfo = p.PredInfo
	n.succInfo = p.SuccInfo
	n.rteTbl.SetMyInfo(n.myInfo)
	n.rteTbl.AddRoute(n.succInfo, n.succInfo)
	n.joining = false
	n.joinDone <- nil
}

// handleUpdate applies whichever fields are present to local state. A
// changed succInfo is also learned as a route.
func (n *Node) handleUpdate(p *Packet) {
	if p.HasPredInfo {
		n.predInfo = p.PredInfo
	}
	if p.HasSuccInfo {
		n.succInfo = p.SuccInfo
		n.rteTbl.AddRoute(n.succInfo, n.succInfo)
	}
	if p.HasHashRange {
		n.hashRange = p.HashRange
	}
}

// beginLeave kicks off the Leaving protocol: a solo ring has nothing to hand
// off and terminates immediately; otherwise a leave packet announcing this
// node begins a lap of the ring.
func (n *Node) beginLeave() {
	if n.succInfo.Equal(n.myInfo) {
		n.terminated = true
		n.leaveErrCh <- nil
		return
	}

	n.leaving = true
	leave := &Packet{Type: TypeLeave, SenderInfo: n.myInfo, HasSenderInfo: true}
	n.logSendErr(n.sendPacket(leave, n.succInfo.Address))
}

// handleLeaveForward relays a leave packet around the ring, removing the
// departing node from the routing table as it passes through, and completes
// the departure once the packet returns to its own sender.
func (n *Node) handleLeaveForward(p *Packet, _ *net.UDPAddr) {
	if p.SenderInfo.Equal(n.myInfo) {
		if n.leaving {
			err := n.completeLeave()
			n.leaveErrCh <- err
			n.terminated = true
		}
		return
	}

	n.rteTbl.RemoveRoute(p.SenderInfo)
	n.logSendErr(n.sendPacket(p, n.succInfo.Address))
}

// completeLeave hands this node's entire range and store to its predecessor,
// patches both neighbors' pointers, and resets local state. Every stored
// entry is transferred regardless of its hash, since the predecessor's range
// grows to cover the vacated space and will own all of it going forward.
func (n *Node) completeLeave() error {
	var merr *multierror.Error

	pred := n.predInfo
	succ := n.succInfo
	oldHigh := n.hashRange.High

	n.store.Iterate(func(k, v string) {
		tp := &Packet{Type: TypeTransfer, Key: k, Val: v, HasVal: true, SenderInfo: n.myInfo, HasSenderInfo: true}
		if err := n.sendPacket(tp, pred.Address); err != nil {
			merr = multierror.Append(merr, err)
		}
	})

	updPred := &Packet{
		Type:         TypeUpdate,
		HasSuccInfo:  true,
		SuccInfo:     succ,
		HasHashRange: true,
		HashRange:    HashRange{Low: pred.FirstHash, High: oldHigh},
	}
	if err := n.sendPacket(updPred, pred.Address); err != nil {
		merr = multierror.Append(merr, err)
	}

	updSucc := &Packet{Type: TypeUpdate, HasPredInfo: true, PredInfo: pred}
	if err := n.sendPacket(updSucc, succ.Address); err != nil {
		merr = multierror.Append(merr, err)
	}

	n.store = NewStore()
	if n.cache != nil {
		n.cache = NewStore()
	}
	n.rteTbl = NewRoutingTable(n.myInfo, n.rteTbl.capacity)

	return merr.ErrorOrNil()
}
