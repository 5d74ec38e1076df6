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
	"syscall"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"
)

// socket wraps a udp4 PacketConn. Reads and writes go through the batch
// API with the batch size pinned to one message, since the wire protocol is
// strictly request/reply rather than pipelined traffic.
type socket struct {
	pc   *ipv4.PacketConn
	conn *net.UDPConn
}

// listenControl sets SO_REUSEADDR and SO_REUSEPORT before bind, letting a
// node rejoin the same port quickly after a crash or test restart.
func listenControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		if sockErr != nil {
			return
		}
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// openSocket binds a udp4 socket at addr ("ip:port"; an empty port lets the
// kernel assign one, used by tests that spin up many nodes on one host).
func openSocket(addr string) (*socket, error) {
	lc := net.ListenConfig{Control: listenControl}
	pc, err := lc.ListenPacket(context.Background(), "udp4", addr)
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)
	return &socket{pc: ipv4.NewPacketConn(conn), conn: conn}, nil
}

// localAddr reports the address the socket is bound to.
func (s *socket) localAddr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// send writes a single datagram to dst.
func (s *socket) send(data []byte, dst *net.UDPAddr) error {
	msgs := []ipv4.Message{{Buffers: [][]byte{data}, Addr: dst}}
	_, err := s.pc.WriteBatch(msgs, 0)
	return err
}

// recv blocks for exactly one datagram, returning its payload and sender.
func (s *socket) recv(buf []byte) (int, *net.UDPAddr, error) {
	msgs := []ipv4.Message{{Buffers: [][]byte{buf}}}
	n, err := s.pc.ReadBatch(msgs, 0)
	if err != nil {
		return 0, nil, err
	}
	if n == 0 {
		return 0, nil, nil
	}
	addr, _ := msgs[0].Addr.(*net.UDPAddr)
	return msgs[0].N, addr, nil
}

func (s *socket) close() error {
	return s.conn.Close()
}
