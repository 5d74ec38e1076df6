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

import "errors"

// Sentinel errors.
var (
	// ErrAlreadyStopped is returned by Leave when the dispatcher has already
	// terminated (double Leave/Close, or Leave after Close).
	ErrAlreadyStopped = errors.New("dhtring: node already stopped")
	// ErrJoinFailed is returned by New when a Joining node's dispatcher stops
	// before the predecessor's success reply arrives.
	ErrJoinFailed = errors.New("dhtring: join handshake failed")
	// ErrNoRoute is logged by forward() in debug mode, which then drops the
	// packet, when the routing table has no entries at all to forward
	// through; not part of the wire
	// protocol, since a ring of one or more nodes always carries at least
	// succInfo once joined.
	ErrNoRoute = errors.New("dhtring: no route available")
)
