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
	"bytes"
	"sync"
	"testing"

	"golang.org/x/sys/unix"
)

// fakeKernel is an in-memory kernelAdapter: write() appends to a shared
// buffer, read() drains it. It exists to observe, per spec.md §8 scenario 6,
// that no single write() call ever receives more than MaxTransfer bytes.
type fakeKernel struct {
	mu         sync.Mutex
	buf        bytes.Buffer
	maxSeenLen int
	writeCalls int
}

func (k *fakeKernel) socket(stream bool) (int, error) { return 1, nil }
func (k *fakeKernel) bind(fd int, sa unix.Sockaddr) error { return nil }
func (k *fakeKernel) listen(fd, backlog int) error        { return nil }
func (k *fakeKernel) connect(fd int, sa unix.Sockaddr) ioResult {
	return ioResult{kind: ioProgress}
}
func (k *fakeKernel) accept(fd int) (int, unix.Sockaddr, ioResult) {
	return 2, &unix.SockaddrInet4{}, ioResult{kind: ioProgress}
}

func (k *fakeKernel) read(fd int, buf []byte) ioResult {
	k.mu.Lock()
	defer k.mu.Unlock()
	n, _ := k.buf.Read(buf)
	if n == 0 {
		return ioResult{kind: ioUnavailable}
	}
	return ioResult{kind: ioProgress, n: n}
}

func (k *fakeKernel) write(fd int, buf []byte) ioResult {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.writeCalls++
	if len(buf) > k.maxSeenLen {
		k.maxSeenLen = len(buf)
	}
	n, _ := k.buf.Write(buf)
	return ioResult{kind: ioProgress, n: n}
}

func (k *fakeKernel) shutdown(fd int, how int) error       { return nil }
func (k *fakeKernel) close(fd int) error                   { return nil }
func (k *fakeKernel) setNonblock(fd int, nonblocking bool) error { return nil }
func (k *fakeKernel) getsockname(fd int) (unix.Sockaddr, error) {
	return &unix.SockaddrInet4{Port: 4242}, nil
}
func (k *fakeKernel) getpeername(fd int) (unix.Sockaddr, error) {
	return &unix.SockaddrInet4{Port: 4343}, nil
}
func (k *fakeKernel) getsockoptInt(fd, level, name int) (int, error) { return 0, nil }
func (k *fakeKernel) setsockoptInt(fd, level, name, value int) error { return nil }
func (k *fakeKernel) getsockoptLinger(fd int) (*unix.Linger, error) {
	return &unix.Linger{Onoff: 0}, nil
}
func (k *fakeKernel) setsockoptLinger(fd int, l *unix.Linger) error { return nil }
func (k *fakeKernel) sendOOB(fd int, b byte) ioResult                { return ioResult{kind: ioProgress, n: 1} }
func (k *fakeKernel) available(fd int) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.buf.Len(), nil
}

func newFakeEndpoint(t *testing.T, k *fakeKernel) *Endpoint {
	t.Helper()
	e := NewEndpoint(Options{testKernel: k})
	if err := e.Create(true); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.state = StateConnected
	return e
}

// TestWriteChunking verifies a write larger than MaxTransfer is split into
// multiple syscalls, none exceeding MaxTransfer, per spec.md §8 scenario 6.
func TestWriteChunking(t *testing.T) {
	k := &fakeKernel{}
	e := newFakeEndpoint(t, k)
	defer e.Close()

	payload := make([]byte, MaxTransfer*2+17)
	for i := range payload {
		payload[i] = byte(i)
	}

	n, err := e.Write(payload)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != len(payload) {
		t.Fatalf("wrote %d bytes, want %d", n, len(payload))
	}
	if k.maxSeenLen > MaxTransfer {
		t.Fatalf("single write() call received %d bytes, want <= %d", k.maxSeenLen, MaxTransfer)
	}
	if k.writeCalls < 3 {
		t.Fatalf("expected at least 3 write() calls chunking %d bytes, got %d", len(payload), k.writeCalls)
	}

	readBack := make([]byte, len(payload))
	total := 0
	for total < len(readBack) {
		n, err := e.Read(readBack[total:])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if n == -1 {
			t.Fatalf("unexpected EOF after %d bytes", total)
		}
		total += n
	}
	if !bytes.Equal(readBack, payload) {
		t.Fatalf("round-tripped bytes do not match")
	}
}

// TestReadEOFLatches verifies that once input is marked closed
// (isInputClosed), Read reports end of stream: it returns (-1, nil).
func TestReadEOFLatches(t *testing.T) {
	k := &fakeKernel{}
	e := newFakeEndpoint(t, k)
	e.isInputClosed = true
	n, err := e.Read(make([]byte, 16))
	if err != nil || n != -1 {
		t.Fatalf("Read after isInputClosed = (%d, %v), want (-1, nil)", n, err)
	}
}

// TestCloseIdempotent verifies repeated Close calls are harmless, per
// spec.md §8's idempotence invariant.
func TestCloseIdempotent(t *testing.T) {
	k := &fakeKernel{}
	e := newFakeEndpoint(t, k)
	if err := e.Close(); err != nil {
		t.Fatalf("first close: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if e.State() != StateClosed {
		t.Fatalf("state = %v, want closed", e.State())
	}
}

// TestOperationAfterCloseReportsClosed verifies any operation on a closed
// endpoint reports "socket closed" rather than touching the kernel adapter.
func TestOperationAfterCloseReportsClosed(t *testing.T) {
	k := &fakeKernel{}
	e := newFakeEndpoint(t, k)
	e.Close()

	if _, err := e.Read(make([]byte, 1)); !Is(err, KindNotOpen) {
		t.Fatalf("Read after close = %v, want KindNotOpen", err)
	}
	if _, err := e.Write([]byte("x")); !Is(err, KindNotOpen) {
		t.Fatalf("Write after close = %v, want KindNotOpen", err)
	}
}
