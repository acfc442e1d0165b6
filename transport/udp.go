// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/dltlink/lib/receiver"
)

// udpConn is a bound datagram receiver.
type udpConn struct {
	shutdownState
	conn        *net.UDPConn
	description string
}

var _ Conn = (*udpConn)(nil)

// listenUDP binds address with SO_REUSEADDR and, when group is set,
// joins that IPv4 multicast group on the given interface.
func listenUDP(ctx context.Context, address, group, iface string) (*udpConn, error) {
	listenConfig := net.ListenConfig{
		Control: func(_, _ string, raw syscall.RawConn) error {
			var optionErr error
			err := raw.Control(func(fd uintptr) {
				optionErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return optionErr
		},
	}
	packetConn, err := listenConfig.ListenPacket(ctx, "udp4", address)
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", address, err)
	}
	conn := packetConn.(*net.UDPConn)

	description := "udp " + conn.LocalAddr().String()
	if group != "" {
		if err := joinGroup(conn, group, iface); err != nil {
			conn.Close()
			return nil, err
		}
		description += " group " + group
	}
	return &udpConn{conn: conn, description: description}, nil
}

// joinGroup issues IP_ADD_MEMBERSHIP for group on iface.
func joinGroup(conn *net.UDPConn, group, iface string) error {
	groupIP := net.ParseIP(group).To4()
	if groupIP == nil || !groupIP.IsMulticast() {
		return fmt.Errorf("multicast group %q is not an IPv4 multicast address", group)
	}
	interfaceIP, err := interfaceAddress(iface)
	if err != nil {
		return err
	}

	request := &unix.IPMreq{}
	copy(request.Multiaddr[:], groupIP)
	copy(request.Interface[:], interfaceIP)

	raw, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("joining %s: %w", group, err)
	}
	var joinErr error
	if err := raw.Control(func(fd uintptr) {
		joinErr = unix.SetsockoptIPMreq(int(fd), unix.IPPROTO_IP, unix.IP_ADD_MEMBERSHIP, request)
	}); err != nil {
		return fmt.Errorf("joining %s: %w", group, err)
	}
	if joinErr != nil {
		return fmt.Errorf("joining %s on %q: %w", group, iface, joinErr)
	}
	return nil
}

// interfaceAddress resolves an interface name or IPv4 literal to the
// address used in the membership request. Empty means INADDR_ANY.
func interfaceAddress(iface string) (net.IP, error) {
	if iface == "" {
		return net.IPv4zero.To4(), nil
	}
	if ip := net.ParseIP(iface); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("multicast interface %q is not an IPv4 address", iface)
	}
	netInterface, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, fmt.Errorf("multicast interface %q: %w", iface, err)
	}
	addresses, err := netInterface.Addrs()
	if err != nil {
		return nil, fmt.Errorf("listing addresses of %q: %w", iface, err)
	}
	for _, address := range addresses {
		if ipNet, ok := address.(*net.IPNet); ok {
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return ip4, nil
			}
		}
	}
	return nil, fmt.Errorf("multicast interface %q has no IPv4 address", iface)
}

// Read returns one datagram. A datagram larger than p is reported as
// ErrDatagramTruncated and yields no bytes.
func (c *udpConn) Read(p []byte) (int, error) {
	if c.isShutdown() {
		return 0, ErrShutdown
	}
	n, _, flags, _, err := c.conn.ReadMsgUDP(p, nil)
	if err != nil {
		return n, c.readError(err)
	}
	if flags&unix.MSG_TRUNC != 0 {
		return 0, fmt.Errorf("%w: datagram exceeds %d byte buffer", ErrDatagramTruncated, len(p))
	}
	return n, nil
}

func (c *udpConn) Write([]byte) (int, error) {
	return 0, fmt.Errorf("%w: writing on a udp receiver", ErrUnsupported)
}

func (c *udpConn) Kind() receiver.Kind { return receiver.Datagram }

func (c *udpConn) SetReadDeadline(deadline time.Time) error {
	return c.setReadDeadline(c.conn, deadline)
}

func (c *udpConn) Shutdown() error { return c.wake(c.conn) }

func (c *udpConn) Close() error {
	err := c.conn.Close()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (c *udpConn) String() string { return c.description }

// LocalAddr returns the bound address.
func (c *udpConn) LocalAddr() net.Addr { return c.conn.LocalAddr() }
