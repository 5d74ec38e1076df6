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

import "math"

const (
	// HashBits is the width of the ring's hash space.
	HashBits = 31
	// HashSpace is 2^31, the number of distinct positions on the ring.
	HashSpace = int64(1) << HashBits
	// RingModulus is the modulus used by forward's wrap-around distance metric:
	// 2^31-1 rather than the full 2^31 hash space, reproduced as-is for wire
	// interop with existing nodes.
	RingModulus = int64(math.MaxInt32)

	// DefaultTTL is applied to outgoing packets that don't specify one.
	DefaultTTL = 100
	// DefaultNumRoutes is used when a node isn't configured with an explicit value.
	DefaultNumRoutes = 4

	// ProtocolMagic is the mandatory first line of every packet.
	ProtocolMagic = "CSE473 DHTPv0.1"

	// MaxDatagramSize bounds a single read/write; packets in this protocol
	// are short key:value line lists and never approach this size.
	MaxDatagramSize = 8192
)
