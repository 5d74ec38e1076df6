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

// Config carries the node's start-up options.
type Config struct {
	// ListenAddress is the udp ip:port to bind, with an explicit port since a
	// socket needs one to accept client traffic.
	ListenAddress string
	// NumRoutes is the routing table capacity. Defaults to DefaultNumRoutes.
	NumRoutes int
	// CfgFile is the path this node writes its own "<ip> <port>" bootstrap line to.
	CfgFile string
	// PredFile, if set, is read for a predecessor's "<ip> <port>" bootstrap
	// line; its presence selects the Joining state over the Solo state.
	PredFile string
	// Cache enables the optional read-through reply cache.
	Cache bool
	// Debug echoes every received/sent packet to stderr, and dumps the routing
	// table there whenever handling a packet changes it.
	Debug bool
}
