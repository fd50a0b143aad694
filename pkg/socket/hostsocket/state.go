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
	"sync"
	"time"

	"github.com/Michael-Mc-Mahon/blocksock/internal/log"
)

// State is the endpoint's lifecycle stage, per spec.md §3/§4.4.
type State int

const (
	StateNew State = iota
	StateUnconnected
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// PreConnectHook and PreBindHook are the optional platform integration
// points from spec.md §6 (transparent-proxy/firewall integration).
type PreConnectHook func(addr net.IP, port int) error
type PreBindHook func(addr net.IP, port int) error

// ForeignFieldWriter is the capability a foreign endpoint type must
// implement so accept/copyTo can install the boundary fields into it
// without reflection, per spec.md §9.
type ForeignFieldWriter interface {
	SetBoundaryFields(fd int, localport int, address net.IP, port int)
}

// opToken is the Go replacement for spec.md's "thread slot": a live
// in-flight-operation marker plus a cancel channel closed by close()'s
// preclose step. See SPEC_FULL.md DECISIONS ("native thread id -> Go").
type opToken struct {
	cancel chan struct{}
}

func newOpToken() *opToken {
	return &opToken{cancel: make(chan struct{})}
}

func (t *opToken) signal() {
	select {
	case <-t.cancel:
	default:
		close(t.cancel)
	}
}

// Endpoint is a blocking-socket endpoint bridging a non-blocking kernel
// socket and a readiness poller, per spec.md §1-§5. The field set mirrors
// spec.md §3's table exactly.
type Endpoint struct {
	server bool // immutable; set once at construction.

	readLock  sync.Mutex // role-lock, read side: read/accept/connect.
	writeLock sync.Mutex // role-lock, write side: write.

	stateMu sync.Mutex // state-lock.
	cond    *sync.Cond // signaled on stateMu when drain conditions change.

	state       State
	fd          int
	stream      bool
	nonBlocking bool
	closer      *descriptorCloser
	wake        wakeFD

	readOp  *opToken // non-nil only while a read-side syscall is in flight.
	writeOp *opToken // non-nil only while a write-side syscall is in flight.

	timeout        time.Duration
	isInputClosed  bool
	isOutputClosed bool
	isReuseAddress bool
	trafficClass   int

	address   net.IP
	localport int
	port      int

	kernel       kernelAdapter
	preConnect   PreConnectHook
	preBind      PreBindHook
	datagramAcct DatagramAccounter

	closeErr error // never set: Close's drain wait cannot be interrupted, so there is no deferred interrupt to re-raise.
}

// Options configures optional collaborators injected into NewEndpoint, per
// spec.md §9 ("inject them as interfaces rather than statics").
type Options struct {
	Server      bool
	PreConnect  PreConnectHook
	PreBind     PreBindHook
	Accounter   DatagramAccounter
	testKernel  kernelAdapter // test-only seam; nil selects hostKernel{}.
}

// NewEndpoint allocates an Endpoint in StateNew, per spec.md §3's lifecycle.
func NewEndpoint(opts Options) *Endpoint {
	e := &Endpoint{
		server: opts.Server,
		state:  StateNew,
		fd:     -1,
		kernel: opts.testKernel,
		preConnect: opts.PreConnect,
		preBind:    opts.PreBind,
	}
	if e.kernel == nil {
		e.kernel = hostKernel{}
	}
	e.datagramAcct = opts.Accounter
	e.cond = sync.NewCond(&e.stateMu)
	return e
}

// State returns the current lifecycle stage without taking the state-lock,
// per spec.md §3 ("publicly readable without locking").
func (e *Endpoint) State() State {
	return State(stateLoad(e))
}

// stateLoad centralizes the (deliberately unsynchronized) raw read of
// e.state; every *mutating* access to e.state happens with
// stateMu held, but spec.md explicitly allows lock-free reads of the
// current value, so this helper just documents that contract at one place
// rather than sprinkling //nolint-style comments through the file.
func stateLoad(e *Endpoint) State {
	return e.state
}

// checkOpenLocked returns errClosed if state has advanced to CLOSING or
// CLOSED, per spec.md §4.4 ("any operation finding state >= CLOSING
// reports socket closed unless it is itself close"). Must be called with
// stateMu held.
func (e *Endpoint) checkOpenLocked() error {
	if e.state >= StateClosing {
		return errClosed
	}
	return nil
}

func (e *Endpoint) logState(op string) {
	if log.Log().IsLogging(log.Debug) {
		log.Debugf("hostsocket: fd=%d op=%s state=%s", e.fd, op, e.State())
	}
}
