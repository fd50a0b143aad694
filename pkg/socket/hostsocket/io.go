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

// Read fills buf with at most one syscall's worth of data (bounded by
// MaxTransfer internally, though callers rarely pass a buffer that large),
// per spec.md §4.1/§4.6. Returns (-1, nil) at EOF, matching the legacy
// blocking-socket contract's read() return convention.
func (e *Endpoint) Read(buf []byte) (int, error) {
	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return 0, err
	}
	if e.state != StateConnected {
		e.stateMu.Unlock()
		return 0, New(KindNotConnected, "read before connect")
	}
	if e.isInputClosed {
		e.stateMu.Unlock()
		return -1, nil
	}
	timeout := e.timeout
	e.stateMu.Unlock()

	if len(buf) > MaxTransfer {
		buf = buf[:MaxTransfer]
	}

	fn := func(fd int) ioResult { return e.kernel.read(fd, buf) }
	res, driverErr := e.runLoop(roleRead, eventIn, timeout, fn)
	if driverErr != nil {
		return 0, driverErr
	}
	switch res.kind {
	case ioEOF:
		return -1, nil
	case ioErr:
		return 0, classifyIOErr(res.err)
	default:
		return res.n, nil
	}
}

// Write writes buf in chunks of at most MaxTransfer, looping until the full
// buffer is consumed or an error occurs, per spec.md §4.1/§4.6.
func (e *Endpoint) Write(buf []byte) (int, error) {
	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return 0, err
	}
	if e.state != StateConnected {
		e.stateMu.Unlock()
		return 0, New(KindNotConnected, "write before connect")
	}
	if e.isOutputClosed {
		e.stateMu.Unlock()
		return 0, New(KindIO, "output shutdown")
	}
	timeout := e.timeout
	e.stateMu.Unlock()

	total := 0
	for total < len(buf) {
		chunk := buf[total:]
		if len(chunk) > MaxTransfer {
			chunk = chunk[:MaxTransfer]
		}
		fn := func(fd int) ioResult { return e.kernel.write(fd, chunk) }
		res, driverErr := e.runLoop(roleWrite, eventOut, timeout, fn)
		if driverErr != nil {
			return total, driverErr
		}
		if res.kind == ioErr {
			return total, classifyIOErr(res.err)
		}
		total += res.n
	}
	return total, nil
}

// Available reports the number of bytes the kernel could deliver without
// blocking, delegated to the kernel adapter when the endpoint is
// open+connected and input is not half-closed, per spec.md §4.6; otherwise 0.
func (e *Endpoint) Available() (int, error) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.checkOpenLocked() != nil || e.state != StateConnected || e.isInputClosed {
		return 0, nil
	}
	n, err := e.kernel.available(e.fd)
	if err != nil {
		return 0, Wrap(err)
	}
	return n, nil
}

// SupportsUrgentData reports whether sendUrgentData can be used; stream
// sockets support TCP urgent (OOB) data.
func (e *Endpoint) SupportsUrgentData() bool {
	return e.stream
}

// SendUrgentData writes a single OOB byte via a retry loop, per spec.md
// §4.6. If the kernel reports would-block, this fails rather than parking —
// a documented gap carried over unchanged; see SPEC_FULL.md DECISIONS.
func (e *Endpoint) SendUrgentData(b byte) error {
	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return err
	}
	if e.state != StateConnected {
		e.stateMu.Unlock()
		return New(KindNotConnected, "sendUrgentData before connect")
	}
	fd := e.fd
	e.stateMu.Unlock()

	for {
		res := e.kernel.sendOOB(fd, b)
		switch res.kind {
		case ioProgress:
			return nil
		case ioUnavailable:
			return New(KindIO, "sendUrgentData: not implemented yet")
		case ioInterrupted:
			continue
		default:
			return classifyIOErr(res.err)
		}
	}
}

// classifyIOErr maps a raw kernel error into the socket-layer error
// taxonomy of spec.md §7, latching connection-reset distinctly from a
// generic IO error.
func classifyIOErr(err error) error {
	if err == nil {
		return nil
	}
	if isConnReset(err) {
		return New(KindConnectionReset, "connection reset")
	}
	return Wrap(err)
}
