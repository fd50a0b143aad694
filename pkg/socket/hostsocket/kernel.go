// Copyright 2024 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package hostsocket implements a blocking-socket endpoint on top of a
// non-blocking kernel socket and a readiness poller. See SPEC_FULL.md.
package hostsocket

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxTransfer is the largest number of bytes moved in a single read/write
// syscall, per spec.md §4.1 and §4.6.
const MaxTransfer = 128 * 1024

// DefaultBacklog is the backlog clamp target from spec.md §4.4.
const DefaultBacklog = 50

// ioResult is the small result-code set the kernel adapter returns, per
// spec.md §4.1: n bytes of progress, would-block, signal interruption, or
// end of stream.
type ioResult struct {
	n    int
	kind ioResultKind
	err  error // set iff kind == ioErr
}

type ioResultKind int

const (
	ioProgress ioResultKind = iota
	ioUnavailable
	ioInterrupted
	ioEOF
	ioErr
)

// kernelAdapter is the interface the operation drivers use to reach the
// host kernel. It exists (rather than calling unix.* directly from the
// drivers) so that tests can substitute a fake implementation to observe,
// e.g., that no single write exceeds MaxTransfer — see kernel_fake_test.go.
type kernelAdapter interface {
	socket(stream bool) (int, error)
	bind(fd int, sa unix.Sockaddr) error
	listen(fd, backlog int) error
	connect(fd int, sa unix.Sockaddr) ioResult
	accept(fd int) (int, unix.Sockaddr, ioResult)
	read(fd int, buf []byte) ioResult
	write(fd int, buf []byte) ioResult
	shutdown(fd int, how int) error
	close(fd int) error
	setNonblock(fd int, nonblocking bool) error
	getsockname(fd int) (unix.Sockaddr, error)
	getpeername(fd int) (unix.Sockaddr, error)
	getsockoptInt(fd, level, name int) (int, error)
	setsockoptInt(fd, level, name, value int) error
	getsockoptLinger(fd int) (*unix.Linger, error)
	setsockoptLinger(fd int, l *unix.Linger) error
	sendOOB(fd int, b byte) ioResult
	available(fd int) (int, error)
}

// hostKernel is the real kernelAdapter, a thin synchronous wrapper over
// non-blocking unix syscalls, grounded on the teacher's
// pkg/sentry/socket/hostinet/socket_unsafe.go.
type hostKernel struct{}

func (hostKernel) socket(stream bool) (int, error) {
	typ := unix.SOCK_STREAM
	if !stream {
		typ = unix.SOCK_DGRAM
	}
	fd, err := unix.Socket(unix.AF_INET6, typ, 0)
	if err != nil {
		fd, err = unix.Socket(unix.AF_INET, typ, 0)
	}
	if err != nil {
		return -1, err
	}
	// fds are allocated blocking; callers flip to non-blocking lazily,
	// per spec.md §4.4 ("Allocates fd ... in blocking mode").
	return fd, nil
}

func (hostKernel) bind(fd int, sa unix.Sockaddr) error {
	return unix.Bind(fd, sa)
}

func (hostKernel) listen(fd, backlog int) error {
	return unix.Listen(fd, backlog)
}

func (hostKernel) connect(fd int, sa unix.Sockaddr) ioResult {
	err := unix.Connect(fd, sa)
	if err == nil {
		return ioResult{kind: ioProgress}
	}
	if err == unix.EISCONN {
		return ioResult{kind: ioProgress}
	}
	return errToIOResult(err)
}

func errToIOResult(err error) ioResult {
	switch err {
	case unix.EAGAIN, unix.EINPROGRESS, unix.EALREADY:
		return ioResult{kind: ioUnavailable}
	case unix.EINTR:
		return ioResult{kind: ioInterrupted}
	default:
		return ioResult{kind: ioErr, err: err}
	}
}

func (hostKernel) accept(fd int) (int, unix.Sockaddr, ioResult) {
	nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return -1, nil, errToIOResult(err)
	}
	return nfd, sa, ioResult{kind: ioProgress}
}

func (hostKernel) read(fd int, buf []byte) ioResult {
	if len(buf) == 0 {
		return ioResult{kind: ioProgress}
	}
	n, err := unix.Read(fd, buf)
	if err != nil {
		return errToIOResult(err)
	}
	if n == 0 {
		return ioResult{kind: ioEOF}
	}
	return ioResult{kind: ioProgress, n: n}
}

func (hostKernel) write(fd int, buf []byte) ioResult {
	if len(buf) == 0 {
		return ioResult{kind: ioProgress}
	}
	n, err := unix.Write(fd, buf)
	if err != nil {
		return errToIOResult(err)
	}
	return ioResult{kind: ioProgress, n: n}
}

func (hostKernel) shutdown(fd int, how int) error {
	return unix.Shutdown(fd, how)
}

func (hostKernel) close(fd int) error {
	return unix.Close(fd)
}

func (hostKernel) setNonblock(fd int, nonblocking bool) error {
	return unix.SetNonblock(fd, nonblocking)
}

func (hostKernel) getsockname(fd int) (unix.Sockaddr, error) {
	return unix.Getsockname(fd)
}

func (hostKernel) getpeername(fd int) (unix.Sockaddr, error) {
	return unix.Getpeername(fd)
}

func (hostKernel) getsockoptInt(fd, level, name int) (int, error) {
	return unix.GetsockoptInt(fd, level, name)
}

func (hostKernel) setsockoptInt(fd, level, name, value int) error {
	return unix.SetsockoptInt(fd, level, name, value)
}

func (hostKernel) getsockoptLinger(fd int) (*unix.Linger, error) {
	return unix.GetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER)
}

func (hostKernel) setsockoptLinger(fd int, l *unix.Linger) error {
	return unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, l)
}

// sendOOB sends a single out-of-band byte, used by sendUrgentData.
func (hostKernel) sendOOB(fd int, b byte) ioResult {
	buf := [1]byte{b}
	n, _, errno := unix.Syscall6(unix.SYS_SENDTO, uintptr(fd), uintptr(unsafe.Pointer(&buf[0])), 1, uintptr(unix.MSG_OOB), 0, 0)
	if errno != 0 {
		return errToIOResult(errno)
	}
	return ioResult{kind: ioProgress, n: int(n)}
}

// available reports the number of bytes the kernel could deliver from fd
// without blocking, via the FIONREAD ioctl.
func (hostKernel) available(fd int) (int, error) {
	n, err := unix.IoctlGetInt(fd, unix.SIOCINQ)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// isConnReset reports whether err is ECONNRESET or EPIPE, both of which are
// classified as a connection reset, per spec.md §7 ("a connection-reset
// error latches reset").
func isConnReset(err error) bool {
	return err == unix.ECONNRESET || err == unix.EPIPE
}
