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

import "golang.org/x/sys/unix"

// ShutdownInput issues the kernel half-shutdown for reads and signals any
// in-flight reader so it unblocks promptly, per spec.md §4.4. Idempotent.
func (e *Endpoint) ShutdownInput() error {
	return e.shutdownHalf(unix.SHUT_RD, roleRead)
}

// ShutdownOutput is ShutdownInput's write-side counterpart.
func (e *Endpoint) ShutdownOutput() error {
	return e.shutdownHalf(unix.SHUT_WR, roleWrite)
}

func (e *Endpoint) shutdownHalf(how int, r role) error {
	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return err
	}
	if e.state != StateConnected {
		e.stateMu.Unlock()
		return New(KindNotConnected, "shutdown before connect")
	}
	already := how == unix.SHUT_RD && e.isInputClosed || how == unix.SHUT_WR && e.isOutputClosed
	if already {
		e.stateMu.Unlock()
		return nil
	}
	fd := e.fd
	var tok *opToken
	if r == roleRead {
		tok = e.readOp
	} else {
		tok = e.writeOp
	}
	if how == unix.SHUT_RD {
		e.isInputClosed = true
	} else {
		e.isOutputClosed = true
	}
	e.stateMu.Unlock()

	err := e.kernel.shutdown(fd, how)
	if tok != nil {
		tok.signal()
	}
	if err != nil {
		return Wrap(err)
	}
	e.logState("shutdown")
	return nil
}

// Close runs the five-step drain protocol of spec.md §5: mark CLOSING,
// optionally nudge the peer with a write-shutdown, preclose and signal any
// in-flight syscalls, wait for both role slots to drain, then run the
// closer and mark CLOSED. Idempotent — concurrent/repeated calls observe
// state already >= CLOSING and return immediately.
func (e *Endpoint) Close() error {
	e.stateMu.Lock()

	if e.state >= StateClosing {
		e.stateMu.Unlock()
		return nil
	}
	if e.state == StateNew {
		e.state = StateClosed
		e.stateMu.Unlock()
		return nil
	}

	e.state = StateClosing

	if e.lingerDisabled() && e.fd >= 0 {
		e.kernel.shutdown(e.fd, unix.SHUT_WR)
	}
	// Otherwise SO_LINGER is enabled: skip the nudge and let the kernel
	// honor the linger timeout on the closer's close(2) call below.

	readTok, writeTok := e.readOp, e.writeOp
	if readTok != nil || writeTok != nil {
		e.wake.notify()
		if readTok != nil {
			readTok.signal()
		}
		if writeTok != nil {
			writeTok.signal()
		}
	}

	for e.readOp != nil || e.writeOp != nil {
		e.cond.Wait()
	}

	closer := e.closer
	e.stateMu.Unlock()

	if closer != nil {
		closer.run()
	}
	clearFinalizer(e)
	e.wake.close()

	e.stateMu.Lock()
	e.state = StateClosed
	e.stateMu.Unlock()
	e.logState("close")
	return nil
}

// lingerDisabled reports whether SO_LINGER is currently off, the default,
// per spec.md §4.4/§5 ("-1/false means disabled").
func (e *Endpoint) lingerDisabled() bool {
	l, err := e.kernel.getsockoptLinger(e.fd)
	if err != nil || l == nil {
		return true
	}
	return l.Onoff == 0
}
