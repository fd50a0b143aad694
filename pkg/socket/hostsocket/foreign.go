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

// CopyTo atomically transfers (fd, closer, stream, endpoint fields) from e
// to target, per spec.md §3/§9. e becomes CLOSED without closing fd;
// target adopts it. If target is a *Endpoint, fields are written directly
// under target's state-lock; otherwise they are written through target's
// ForeignFieldWriter capability.
//
// DECISIONS (SPEC_FULL.md, Open Question (b)): copyTo to a foreign
// endpoint does NOT transfer the non-blocking flag, preserved unchanged
// from the source behavior — a foreign endpoint has no field to receive
// it and is assumed to manage its own blocking mode.
func (e *Endpoint) CopyTo(target any) error {
	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return err
	}

	fd := e.fd
	stream := e.stream
	closer := e.closer
	address := e.address
	localport := e.localport
	port := e.port

	if closer != nil {
		closer.disable()
	}
	e.state = StateClosed
	e.stateMu.Unlock()
	clearFinalizer(e)

	switch t := target.(type) {
	case *Endpoint:
		w, werr := newWakeFD()
		if werr != nil {
			e.kernel.close(fd)
			return Wrap(werr)
		}
		t.stateMu.Lock()
		t.fd = fd
		t.stream = stream
		t.wake = w
		t.closer = newDescriptorCloser(fd, stream, t.kernel, t.datagramAcct)
		registerFinalizer(t, t.closer)
		t.address = address
		t.localport = localport
		t.port = port
		t.state = StateConnected
		t.stateMu.Unlock()
	case ForeignFieldWriter:
		t.SetBoundaryFields(fd, localport, address, port)
	default:
		return New(KindBadArgument, "copyTo target implements neither *Endpoint nor ForeignFieldWriter")
	}
	return nil
}

// PostCustomAccept installs an already-accepted fd (obtained outside this
// package's Accept, e.g. from a custom acceptor loop) into e, mirroring
// accept's same-type installation path without performing the accept(2)
// syscall itself.
func (e *Endpoint) PostCustomAccept(fd int, address []byte, port int) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.state != StateNew && e.state != StateUnconnected {
		return New(KindBadArgument, "postCustomAccept outside NEW/UNCONNECTED")
	}
	w, werr := newWakeFD()
	if werr != nil {
		return Wrap(werr)
	}
	e.fd = fd
	e.stream = true
	e.wake = w
	e.closer = newDescriptorCloser(fd, true, e.kernel, e.datagramAcct)
	registerFinalizer(e, e.closer)
	e.address = address
	e.port = port
	boundSA, err := e.kernel.getsockname(fd)
	if err == nil {
		_, lport := ipFromSockaddr(boundSA)
		e.localport = lport
	}
	e.state = StateConnected
	return nil
}
