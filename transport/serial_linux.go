// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

var termiosSpeeds = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
	921600: unix.B921600,
}

// openSerial opens device non-blocking so the runtime poller owns it,
// which is what makes read deadlines and Shutdown work on a tty.
func openSerial(device string, baudRate int) (Conn, error) {
	speed, ok := termiosSpeeds[baudRate]
	if !ok {
		return nil, fmt.Errorf("%w: baud rate %d", ErrUnsupported, baudRate)
	}
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", device, err)
	}
	if err := configureRaw(fd, speed); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("configuring %s: %w", device, err)
	}
	file := os.NewFile(uintptr(fd), device)
	return newStreamConn(file, fmt.Sprintf("serial %s@%d", device, baudRate)), nil
}

// configureRaw puts the tty in raw 8N1 mode: no echo, no line editing,
// no flow control, no byte translation.
func configureRaw(fd int, speed uint32) error {
	termios, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	termios.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	termios.Oflag &^= unix.OPOST
	termios.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	termios.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	termios.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | speed
	termios.Ispeed = speed
	termios.Ospeed = speed
	termios.Cc[unix.VMIN] = 1
	termios.Cc[unix.VTIME] = 0
	return unix.IoctlSetTermios(fd, unix.TCSETS, termios)
}
