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
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

// PacketType is the `type` field of a wire packet.
type PacketType string

const (
	TypeGet      PacketType = "get"
	TypePut      PacketType = "put"
	TypeSuccess  PacketType = "success"
	TypeNoMatch  PacketType = "no match"
	TypeFailure  PacketType = "failure"
	TypeJoin     PacketType = "join"
	TypeLeave    PacketType = "leave"
	TypeUpdate   PacketType = "update"
	TypeTransfer PacketType = "transfer"
)

// Packet is the parsed form of a single DHT protocol datagram. Handlers
// build a fresh Packet for every reply rather than mutating the one they
// received.
type Packet struct {
	Type   PacketType
	Key    string
	Val    string
	HasVal bool
	Tag    int64
	TTL    int32
	HasTTL bool
	Reason string

	ClientAdr *net.UDPAddr
	RelayAdr  *net.UDPAddr

	HashRange    HashRange
	HasHashRange bool

	SuccInfo      NodeInfo
	HasSuccInfo   bool
	PredInfo      NodeInfo
	HasPredInfo   bool
	SenderInfo    NodeInfo
	HasSenderInfo bool
}

// Marshal serializes the packet to its line-oriented wire form, assigning tag
// from the supplied generator if the packet has none set. TTL defaults only
// apply when the packet was never given an explicit one (HasTTL false); a
// packet whose TTL was decremented to 0 by forward must reach the wire as
// 0, not get silently reset to DefaultTTL.
func (p *Packet) Marshal(nextTag func() int64) []byte {
	if p.Tag == 0 && nextTag != nil {
		p.Tag = nextTag()
	}
	if !p.HasTTL {
		p.TTL = DefaultTTL
		p.HasTTL = true
	}

	var b bytes.Buffer
	b.WriteString(ProtocolMagic)
	b.WriteByte('\n')

	line := func(k, v string) {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}

	line("type", string(p.Type))
	if p.Key != "" {
		line("key", p.Key)
	}
	if p.HasVal {
		line("val", p.Val)
	}
	line("tag", strconv.FormatInt(p.Tag, 10))
	line("ttl", strconv.FormatInt(int64(p.TTL), 10))
	if p.Reason != "" {
		line("reason", p.Reason)
	}
	if p.ClientAdr != nil {
		line("clientAdr", serializeAddr(p.ClientAdr))
	}
	if p.RelayAdr != nil {
		line("relayAdr", serializeAddr(p.RelayAdr))
	}
	if p.HasHashRange {
		line("hashRange", serializeHashRange(p.HashRange))
	}
	if p.HasSuccInfo {
		line("succInfo", serializeNodeInfo(p.SuccInfo))
	}
	if p.HasPredInfo {
		line("predInfo", serializeNodeInfo(p.PredInfo))
	}
	if p.HasSenderInfo {
		line("senderInfo", serializeNodeInfo(p.SenderInfo))
	}

	return b.Bytes()
}

// ErrBadMagic is returned by Unmarshal when the mandatory first line is absent
// or doesn't match the protocol magic string.
var ErrBadMagic = errors.New("dhtring: missing or invalid protocol header")

// Unmarshal parses a raw datagram into a Packet).
func Unmarshal(data []byte) (*Packet, error) {
	sc := bufio.NewScanner(bytes.NewReader(data))
	if !sc.Scan() {
		return nil, ErrBadMagic
	}
	if sc.Text() != ProtocolMagic {
		return nil, ErrBadMagic
	}

	p := &Packet{}

	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("dhtring: malformed line %q", line)
		}

		switch k {
		case "type":
			p.Type = PacketType(v)
		case "key":
			p.Key = v
		case "val":
			p.Val = v
			p.HasVal = true
		case "tag":
			tag, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("dhtring: bad tag %q: %w", v, err)
			}
			p.Tag = tag
		case "ttl":
			ttl, err := strconv.ParseInt(v, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("dhtring: bad ttl %q: %w", v, err)
			}
			p.TTL = int32(ttl)
			p.HasTTL = true
		case "reason":
			p.Reason = v
		case "clientAdr":
			addr, err := parseAddr(v)
			if err != nil {
				return nil, err
			}
			p.ClientAdr = addr
		case "relayAdr":
			addr, err := parseAddr(v)
			if err != nil {
				return nil, err
			}
			p.RelayAdr = addr
		case "hashRange":
			hr, err := parseHashRange(v)
			if err != nil {
				return nil, err
			}
			p.HashRange = hr
			p.HasHashRange = true
		case "succInfo":
			ni, err := parseNodeInfo(v)
			if err != nil {
				return nil, err
			}
			p.SuccInfo = ni
			p.HasSuccInfo = true
		case "predInfo":
			ni, err := parseNodeInfo(v)
			if err != nil {
				return nil, err
			}
			p.PredInfo = ni
			p.HasPredInfo = true
		case "senderInfo":
			ni, err := parseNodeInfo(v)
			if err != nil {
				return nil, err
			}
			p.SenderInfo = ni
			p.HasSenderInfo = true
		default:
			// unrecognized fields are ignored, not fatal
		}
	}

	if !p.HasTTL {
		p.TTL = DefaultTTL
		p.HasTTL = true
	}

	return p, sc.Err()
}

// Check validates semantic preconditions per packet type). On
// failure it returns a diagnostic reason string; the dispatcher uses this to
// populate a failure reply.
func (p *Packet) Check() (ok bool, reason string) {
	switch p.Type {
	case TypeGet:
		if p.Key == "" {
			return false, "get requires key"
		}
	case TypePut:
		if p.Key == "" {
			return false, "put requires key"
		}
	case TypeSuccess:
		if !p.HasHashRange {
			return false, "success requires hashRange"
		}
	case TypeNoMatch:
		if p.Key == "" || !p.HasHashRange {
			return false, "no match requires key and hashRange"
		}
	case TypeFailure:
		if p.Reason == "" {
			return false, "failure requires reason"
		}
	case TypeJoin:
		if !p.HasSenderInfo || !p.HasPredInfo {
			return false, "join requires senderInfo and predInfo"
		}
	case TypeLeave:
		if !p.HasSenderInfo {
			return false, "leave requires senderInfo"
		}
	case TypeUpdate:
		if !p.HasPredInfo && !p.HasSuccInfo && !p.HasHashRange {
			return false, "update requires at least one of predInfo, succInfo, hashRange"
		}
	case TypeTransfer:
		if p.Key == "" || !p.HasVal || !p.HasSenderInfo {
			return false, "transfer requires key, val and senderInfo"
		}
	default:
		return false, fmt.Sprintf("unrecognized packet type %q", p.Type)
	}

	return true, ""
}
