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
	"runtime"
	"sync/atomic"

	"github.com/Michael-Mc-Mahon/blocksock/internal/log"
)

// DatagramAccounter is the external resource hook for non-stream sockets,
// per spec.md §6. It is injected rather than reached through package-level
// state so the endpoint remains testable in isolation (spec.md §9).
type DatagramAccounter interface {
	BeforeCreate() error
	AfterClose()
}

// noopAccounter is used when the caller does not supply a DatagramAccounter.
type noopAccounter struct{}

func (noopAccounter) BeforeCreate() error { return nil }
func (noopAccounter) AfterClose()         {}

// descriptorCloser is the single-shot fd owner described in spec.md §4.3.
// run() is safe to call from close() or from the finalizer registered
// against the owning Endpoint; exactly one of those calls will actually
// close fd, the way the teacher's pkg/fd.FD guarantees with its own
// CAS-guarded finalizer (fd.go's atomic.SwapInt64 in FD.Close).
type descriptorCloser struct {
	fd       int32
	closed   atomic.Bool
	stream   bool
	kernel   kernelAdapter
	acct     DatagramAccounter
	disabled atomic.Bool
}

func newDescriptorCloser(fd int, stream bool, kernel kernelAdapter, acct DatagramAccounter) *descriptorCloser {
	if acct == nil {
		acct = noopAccounter{}
	}
	return &descriptorCloser{fd: int32(fd), stream: stream, kernel: kernel, acct: acct}
}

// run performs compare-and-set(closed: false->true) and, on success,
// closes fd and notifies the datagram accounter for non-stream sockets.
func (c *descriptorCloser) run() {
	if c.disabled.Load() {
		return
	}
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if err := c.kernel.close(int(c.fd)); err != nil {
		log.Warningf("hostsocket: close(fd=%d) failed: %v", c.fd, err)
	}
	if !c.stream {
		c.acct.AfterClose()
	}
}

// disable sets the disabled flag, which makes every later run() a no-op,
// without closing fd; used on ownership
// transfer (accept's target installation, copyTo) per spec.md §4.3.
func (c *descriptorCloser) disable() {
	c.disabled.Store(true)
}

// registerFinalizer arms the phantom-reachability cleanup hook: if owner is
// garbage collected without an explicit Close, the descriptor is still
// closed. Grounded on the teacher's pkg/fd.New, which does the same with
// runtime.SetFinalizer(f, (*FD).Close).
func registerFinalizer(owner *Endpoint, c *descriptorCloser) {
	runtime.SetFinalizer(owner, func(e *Endpoint) {
		c.run()
	})
}

func clearFinalizer(owner *Endpoint) {
	runtime.SetFinalizer(owner, nil)
}
