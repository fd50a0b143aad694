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

package hostsocket

import (
	"time"

	"golang.org/x/sys/unix"
)

// Option identifies a legacy socket option, per spec.md §6's identifier set.
type Option int

const (
	SOTimeout Option = iota
	SOLinger
	SOReuseAddr
	SOReusePort
	SOSndBuf
	SORcvBuf
	SOKeepAlive
	SOOOBInline
	IPTos
	TCPNoDelay
	SOBindAddr
)

// SupportedOptions reports the options this endpoint accepts, grounded on
// the teacher's hostinet/sockopt.go level/name table.
func (e *Endpoint) SupportedOptions() []Option {
	return []Option{SOTimeout, SOLinger, SOReuseAddr, SOReusePort, SOSndBuf, SORcvBuf, SOKeepAlive, SOOOBInline, IPTos, TCPNoDelay, SOBindAddr}
}

// GetOption reads a socket option's current value, per spec.md §4.4/§6.
func (e *Endpoint) GetOption(opt Option) (int, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if err := e.checkOpenLocked(); err != nil {
		return 0, err
	}
	switch opt {
	case SOTimeout:
		return int(e.timeout / time.Millisecond), nil
	case SOLinger:
		l, err := e.kernel.getsockoptLinger(e.fd)
		if err != nil {
			return 0, Wrap(err)
		}
		if l.Onoff == 0 {
			return -1, nil
		}
		return int(l.Linger), nil
	case SOReuseAddr:
		if e.isReuseAddress {
			return 1, nil
		}
		v, err := e.kernel.getsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR)
		if err != nil {
			return 0, Wrap(err)
		}
		return v, nil
	case SOReusePort:
		v, err := e.kernel.getsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_REUSEPORT)
		if err != nil {
			return 0, New(KindUnsupported, "SO_REUSEPORT not supported by this kernel")
		}
		return v, nil
	case SOSndBuf:
		v, err := e.kernel.getsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_SNDBUF)
		return v, Wrap(err)
	case SORcvBuf:
		v, err := e.kernel.getsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_RCVBUF)
		return v, Wrap(err)
	case SOKeepAlive:
		v, err := e.kernel.getsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE)
		return v, Wrap(err)
	case SOOOBInline:
		v, err := e.kernel.getsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_OOBINLINE)
		return v, Wrap(err)
	case IPTos:
		// Cached so reads do not require a syscall, per spec.md §4.4.
		return e.trafficClass, nil
	case TCPNoDelay:
		v, err := e.kernel.getsockoptInt(e.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY)
		return v, Wrap(err)
	case SOBindAddr:
		return 0, New(KindUnsupported, "SO_BINDADDR is read via the address field, not GetOption")
	default:
		return 0, New(KindUnsupported, "unknown option")
	}
}

// SetOption sets a socket option's value, per spec.md §4.4/§6. SO_BINDADDR
// is read-only and rejected here unconditionally.
func (e *Endpoint) SetOption(opt Option, value int) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	switch opt {
	case SOTimeout:
		if value < 0 {
			return New(KindBadArgument, "SO_TIMEOUT must be >= 0")
		}
		e.timeout = time.Duration(value) * time.Millisecond
		return nil
	case SOLinger:
		if value < -1 {
			return New(KindBadArgument, "negative SO_LINGER is invalid")
		}
		l := &unix.Linger{}
		if value < 0 {
			l.Onoff = 0
		} else {
			l.Onoff = 1
			l.Linger = int32(value)
		}
		return Wrap(e.kernel.setsockoptLinger(e.fd, l))
	case SOReuseAddr:
		e.isReuseAddress = value != 0
		// Also attempt the kernel option directly; platforms whose bind is
		// inherently exclusive ignore the failure and rely purely on the
		// emulated isReuseAddress flag, which GetOption reports.
		e.kernel.setsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, boolToInt(value != 0))
		return nil
	case SOReusePort:
		if err := e.kernel.setsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, boolToInt(value != 0)); err != nil {
			return New(KindUnsupported, "SO_REUSEPORT not supported by this kernel")
		}
		return nil
	case SOSndBuf:
		if value <= 0 {
			return New(KindBadArgument, "SO_SNDBUF must be > 0")
		}
		return Wrap(e.kernel.setsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, value))
	case SORcvBuf:
		if value <= 0 {
			return New(KindBadArgument, "SO_RCVBUF must be > 0")
		}
		return Wrap(e.kernel.setsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_RCVBUF, value))
	case SOKeepAlive:
		return Wrap(e.kernel.setsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(value != 0)))
	case SOOOBInline:
		return Wrap(e.kernel.setsockoptInt(e.fd, unix.SOL_SOCKET, unix.SO_OOBINLINE, boolToInt(value != 0)))
	case IPTos:
		if err := e.kernel.setsockoptInt(e.fd, unix.IPPROTO_IP, unix.IP_TOS, value); err != nil {
			return Wrap(err)
		}
		e.trafficClass = value
		return nil
	case TCPNoDelay:
		return Wrap(e.kernel.setsockoptInt(e.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(value != 0)))
	case SOBindAddr:
		return New(KindUnsupported, "SO_BINDADDR is read-only")
	default:
		return New(KindUnsupported, "unknown option")
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
