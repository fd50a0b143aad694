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
	"golang.org/x/time/rate"
)

// acceptRetryLimiter throttles the EMFILE/ENFILE/ECONNABORTED retry loop in
// Accept below, the Go analogue of the teacher's rate-limited logger guarding
// a hot accept-failure path — see internal/log/rate_limited.go.
var acceptRetryLimiter = rate.NewLimiter(rate.Every(time.Second), 1)

func isAcceptRetryable(err error) bool {
	switch err {
	case unix.EMFILE, unix.ENFILE, unix.ECONNABORTED:
		return true
	default:
		return false
	}
}

// Accept requires state==UNCONNECTED (or CONNECTED, for a listener reused as
// an endpoint), stream==true and bound, per spec.md §4.4. It produces a new
// accepted fd in blocking mode plus the peer address, installed into target.
//
// If target is a *Endpoint, the new (fd, closer, stream, addresses,
// state=CONNECTED) is installed under target's own state-lock atomically.
// Otherwise the boundary fields are written through target's
// ForeignFieldWriter capability, per spec.md §9. If the local-address lookup
// after accept fails, the new fd is closed and the error propagates.
func (e *Endpoint) Accept(target any, millis int) error {
	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return err
	}
	if e.state != StateUnconnected && e.state != StateConnected {
		e.stateMu.Unlock()
		return New(KindNotOpen, "accept before create")
	}
	if !e.stream {
		e.stateMu.Unlock()
		return New(KindNotStream, "accept on a datagram socket")
	}
	if e.localport == 0 {
		e.stateMu.Unlock()
		return New(KindNotBound, "accept before bind")
	}
	e.stateMu.Unlock()

	timeout := time.Duration(millis) * time.Millisecond

	var newfd int
	var peerSA unix.Sockaddr
	fn := func(fd int) ioResult {
		nfd, sa, res := e.kernel.accept(fd)
		if res.kind == ioErr && isAcceptRetryable(res.err) && acceptRetryLimiter.Allow() {
			// A transient EMFILE/ENFILE/ECONNABORTED from accept(2) is not
			// fatal to the listener: surface it as would-block so runLoop
			// parks and retries rather than closing the listening socket.
			return ioResult{kind: ioUnavailable}
		}
		if res.kind != ioProgress {
			return res
		}
		newfd = nfd
		peerSA = sa
		return res
	}

	res, driverErr := e.runLoop(roleRead, eventIn, timeout, fn)
	if driverErr != nil {
		return driverErr
	}
	if res.kind == ioErr {
		return Wrap(res.err)
	}

	peerAddr, peerPort := ipFromSockaddr(peerSA)

	localSA, err := e.kernel.getsockname(newfd)
	if err != nil {
		e.kernel.close(newfd)
		return Wrap(err)
	}
	_, localPort := ipFromSockaddr(localSA)

	if err := e.kernel.setNonblock(newfd, false); err != nil {
		e.kernel.close(newfd)
		return Wrap(err)
	}

	switch t := target.(type) {
	case *Endpoint:
		w, werr := newWakeFD()
		if werr != nil {
			e.kernel.close(newfd)
			return Wrap(werr)
		}
		t.stateMu.Lock()
		t.fd = newfd
		t.stream = true
		t.nonBlocking = false
		t.wake = w
		t.closer = newDescriptorCloser(newfd, true, t.kernel, t.datagramAcct)
		registerFinalizer(t, t.closer)
		t.state = StateConnected
		t.address = peerAddr
		t.port = peerPort
		t.localport = localPort
		t.stateMu.Unlock()
		t.logState("accept")
	case ForeignFieldWriter:
		t.SetBoundaryFields(newfd, localPort, peerAddr, peerPort)
	default:
		e.kernel.close(newfd)
		return New(KindBadArgument, "accept target implements neither *Endpoint nor ForeignFieldWriter")
	}

	e.logState("accept")
	return nil
}
