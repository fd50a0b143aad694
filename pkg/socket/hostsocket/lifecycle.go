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
	"net"
)

// Create allocates fd in blocking mode and moves the endpoint from
// StateNew to StateUnconnected, per spec.md §4.4.
func (e *Endpoint) Create(stream bool) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state != StateNew {
		return New(KindBadArgument, "create called outside NEW state")
	}

	if !stream {
		if err := e.datagramAcct.BeforeCreate(); err != nil {
			return Wrap(err)
		}
	}

	fd, err := e.kernel.socket(stream)
	if err != nil {
		if !stream {
			e.datagramAcct.AfterClose() // undo the before-create hook on failure.
		}
		return Wrap(err)
	}

	w, err := newWakeFD()
	if err != nil {
		e.kernel.close(fd)
		if !stream {
			e.datagramAcct.AfterClose()
		}
		return Wrap(err)
	}

	e.fd = fd
	e.stream = stream
	e.wake = w
	e.closer = newDescriptorCloser(fd, stream, e.kernel, e.datagramAcct)
	registerFinalizer(e, e.closer)
	e.state = StateUnconnected
	e.logState("create")
	return nil
}

// Bind requires state >= UNCONNECTED and localport == 0, per spec.md §4.4.
// The supplied address is recorded verbatim — "callers depend on seeing
// 0.0.0.0 rather than the kernel-reported ::0 on dual-stack" — rather than
// whatever the kernel reports back.
func (e *Endpoint) Bind(addr net.IP, port int) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	if e.state < StateUnconnected {
		return New(KindNotOpen, "bind before create")
	}
	if e.localport != 0 {
		return New(KindBadArgument, "already bound")
	}

	if e.preBind != nil {
		if err := e.preBind(addr, port); err != nil {
			return Wrap(err)
		}
	}

	sa, err := sockaddrFromIP(addr, port)
	if err != nil {
		return New(KindBadAddress, err.Error())
	}
	if err := e.kernel.bind(e.fd, sa); err != nil {
		return Wrap(err)
	}

	boundSA, err := e.kernel.getsockname(e.fd)
	if err != nil {
		return Wrap(err)
	}
	_, lport := ipFromSockaddr(boundSA)

	e.address = addr // verbatim, per spec.md §4.4.
	e.localport = lport
	e.logState("bind")
	return nil
}

// Listen requires the endpoint is bound; backlog < 1 is clamped to
// DefaultBacklog, per spec.md §4.4.
func (e *Endpoint) Listen(backlog int) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if err := e.checkOpenLocked(); err != nil {
		return err
	}
	if e.localport == 0 {
		return New(KindNotBound, "listen before bind")
	}
	if backlog < 1 {
		backlog = DefaultBacklog
	}
	if err := e.kernel.listen(e.fd, backlog); err != nil {
		return Wrap(err)
	}
	e.logState("listen")
	return nil
}

// switchNonBlockingLocked flips fd to non-blocking mode if a finite
// timeout is about to be used and it isn't already, per spec.md §4.5 step
// 3. Sticky for the life of fd. Must be called with stateMu held.
func (e *Endpoint) switchNonBlockingLocked() error {
	if e.nonBlocking {
		return nil
	}
	if err := e.kernel.setNonblock(e.fd, true); err != nil {
		return Wrap(err)
	}
	e.nonBlocking = true
	return nil
}

