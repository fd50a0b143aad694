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
	"sync"
	"time"
)

// role selects which of the two role-locks (spec.md §5) an operation
// drives: read-side covers read/accept/connect, write-side covers write.
type role int

const (
	roleRead role = iota
	roleWrite
)

func (e *Endpoint) roleLock(r role) *sync.Mutex {
	if r == roleRead {
		return &e.readLock
	}
	return &e.writeLock
}

// setOpLocked/clearOpLocked install/clear the per-role opToken. Must be
// called with stateMu held. Mirrors spec.md §4.5 step 2 ("record the
// current native thread id into the role's slot") and step 6 ("clear the
// thread slot").
func (e *Endpoint) setOpLocked(r role, tok *opToken) {
	if r == roleRead {
		e.readOp = tok
	} else {
		e.writeOp = tok
	}
}

func (e *Endpoint) clearOpLocked(r role) {
	e.setOpLocked(r, nil)
	if e.state == StateClosing {
		e.cond.Broadcast()
	}
}

// runLoop drives the try-syscall/park/retry algorithm from spec.md §4.5
// shared by connect, accept, read and write. fn performs one attempt at
// the underlying syscall and must be safe to call repeatedly. evt is the
// readiness event to park on between attempts. timeout is the effective
// deadline for this call (0 means infinite, matching SO_TIMEOUT/millis
// semantics).
func (e *Endpoint) runLoop(r role, evt event, timeout time.Duration, fn func(fd int) ioResult) (ioResult, error) {
	lock := e.roleLock(r)
	lock.Lock()
	defer lock.Unlock()

	e.stateMu.Lock()
	if err := e.checkOpenLocked(); err != nil {
		e.stateMu.Unlock()
		return ioResult{}, err
	}
	fd := e.fd
	wake := e.wake
	tok := newOpToken()
	e.setOpLocked(r, tok)
	var switchErr error
	if timeout > 0 {
		switchErr = e.switchNonBlockingLocked()
	}
	e.stateMu.Unlock()

	// finish mirrors the original's endRead/endWrite epilogue: completed
	// tracks whether fn actually produced a result worth keeping (a
	// progress result of any size, including the zero-byte ones accept and
	// connect return, or a definite EOF). A kernel error does not count as
	// completed. Only an op that did not complete is overridden by a close
	// that raced in concurrently — it then reports "socket closed" — while
	// a completed op is returned as-is even if the endpoint is already
	// closing by the time finish runs.
	finish := func(res ioResult, err error) (ioResult, error) {
		completed := res.kind == ioProgress || res.kind == ioEOF
		e.stateMu.Lock()
		e.clearOpLocked(r)
		if err == nil && !completed && e.state > StateConnected {
			err = errClosed
		}
		e.stateMu.Unlock()
		return res, err
	}

	if switchErr != nil {
		return finish(ioResult{}, switchErr)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		select {
		case <-tok.cancel:
			return finish(ioResult{}, errClosed)
		default:
		}

		res := fn(fd)
		if res.kind == ioInterrupted {
			continue
		}
		if res.kind != ioUnavailable {
			return finish(res, nil)
		}

		wr, err := wait(fd, evt, deadline, wake)
		if err != nil {
			return finish(ioResult{}, Wrap(err))
		}
		if wr.woken {
			return finish(ioResult{}, errClosed)
		}
		if wr.timeout {
			return finish(ioResult{}, New(KindTimeout, "i/o timeout"))
		}
		// Otherwise fd is (believed) ready; loop back and retry fn.
	}
}
