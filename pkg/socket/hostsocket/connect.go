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
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Connect drives UNCONNECTED -> CONNECTING -> CONNECTED, per spec.md §4.4.
// millis>0 is a deadline, 0 is infinite. If connecting reached CONNECTING
// and then fails for any reason, the endpoint is closed before the error
// is surfaced, decorated with the target address — the endpoint is not
// reusable after a failed connect.
func (e *Endpoint) Connect(host string, port int, millis int) error {
	target, rerr := resolveConnectTarget(host)
	if rerr != nil {
		return rerr
	}

	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return err
	}
	switch e.state {
	case StateConnecting:
		e.stateMu.Unlock()
		return New(KindConnectionInProgress, "connect already in progress")
	case StateConnected:
		e.stateMu.Unlock()
		return New(KindAlreadyConnected, "already connected")
	case StateUnconnected:
	default:
		e.stateMu.Unlock()
		return New(KindNotOpen, "connect before create")
	}
	e.state = StateConnecting
	e.stateMu.Unlock()

	if e.preConnect != nil {
		if err := e.preConnect(target, port); err != nil {
			e.Close()
			return wrapConnectErr(target, port, Wrap(err))
		}
	}

	sa, err := sockaddrFromIP(target, port)
	if err != nil {
		e.Close()
		return wrapConnectErr(target, port, New(KindBadAddress, err.Error()))
	}

	timeout := time.Duration(millis) * time.Millisecond
	first := true
	fn := func(fd int) ioResult {
		if first {
			first = false
			return e.kernel.connect(fd, sa)
		}
		errno, gerr := e.kernel.getsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if gerr != nil {
			return ioResult{kind: ioErr, err: gerr}
		}
		if errno != 0 {
			return ioResult{kind: ioErr, err: unix.Errno(errno)}
		}
		return ioResult{kind: ioProgress}
	}

	res, driverErr := e.runLoop(roleRead, eventOut, timeout, fn)
	if driverErr != nil {
		e.Close()
		return wrapConnectErr(target, port, driverErr)
	}
	if res.kind == ioErr {
		e.Close()
		return wrapConnectErr(target, port, Wrap(res.err))
	}

	e.stateMu.Lock()
	if e.state != StateConnecting {
		// A concurrent close() already moved us to CLOSING/CLOSED.
		e.stateMu.Unlock()
		return New(KindNotOpen, "socket closed")
	}
	e.state = StateConnected
	e.address = target
	e.port = port
	if e.localport == 0 {
		if boundSA, gerr := e.kernel.getsockname(e.fd); gerr == nil {
			_, lport := ipFromSockaddr(boundSA)
			e.localport = lport
		}
	}
	e.stateMu.Unlock()
	e.logState("connect")
	return nil
}

func wrapConnectErr(target net.IP, port int, err error) error {
	if e, ok := err.(*Error); ok {
		return &Error{Kind: e.Kind, Message: fmt.Sprintf("%s (%v:%d)", e.Message, target, port), Cause: e.Cause}
	}
	return err
}
