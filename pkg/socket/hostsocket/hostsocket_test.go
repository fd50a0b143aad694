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

package hostsocket_test

import (
	"testing"
	"time"

	"github.com/Michael-Mc-Mahon/blocksock/pkg/socket/hostsocket"
	"github.com/Michael-Mc-Mahon/blocksock/pkg/socket/hstest"
)

// TestHappyEcho is spec.md §8 scenario 1: A binds-listens, B connects, B
// writes "hello", A reads exactly 5 bytes "hello".
func TestHappyEcho(t *testing.T) {
	b, a := hstest.Pipe(t.Fatalf)
	defer a.Close()
	defer b.Close()

	if _, err := b.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 5)
	n := 0
	for n < len(buf) {
		got, err := a.Read(buf[n:])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		n += got
	}
	if string(buf) != "hello" {
		t.Fatalf("read %q, want %q", buf, "hello")
	}
}

// TestReadTimeout is spec.md §8 scenario 2: B sets SO_TIMEOUT=250ms, A
// writes nothing; B's read raises Timeout after >= 250ms, and B remains
// connected and can read once A writes.
func TestReadTimeout(t *testing.T) {
	b, a := hstest.Pipe(t.Fatalf)
	defer a.Close()
	defer b.Close()

	if err := b.SetOption(hostsocket.SOTimeout, 250); err != nil {
		t.Fatalf("setoption: %v", err)
	}

	start := time.Now()
	_, err := b.Read(make([]byte, 16))
	elapsed := time.Since(start)
	if !hostsocket.Is(err, hostsocket.KindTimeout) {
		t.Fatalf("read = %v, want Timeout", err)
	}
	if elapsed < 250*time.Millisecond {
		t.Fatalf("read returned after %v, want >= 250ms", elapsed)
	}
	if b.State() != hostsocket.StateConnected {
		t.Fatalf("state = %v, want connected", b.State())
	}

	if _, err := a.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 2)
	if _, err := b.Read(buf); err != nil {
		t.Fatalf("read after timeout: %v", err)
	}
	if string(buf) != "ok" {
		t.Fatalf("read %q, want %q", buf, "ok")
	}
}

// TestAsyncCloseUnblocksRead is spec.md §8 scenario 3: a blocked read
// unblocks with "socket closed" within bounded time when close() is called
// from another goroutine, and subsequent reads also report closed.
func TestAsyncCloseUnblocksRead(t *testing.T) {
	b, a := hstest.Pipe(t.Fatalf)
	defer a.Close()

	done := make(chan error, 1)
	go func() {
		_, err := b.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if !hostsocket.Is(err, hostsocket.KindNotOpen) {
			t.Fatalf("blocked read returned %v, want socket closed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("blocked read did not unblock within bounded time")
	}

	if _, err := b.Read(make([]byte, 1)); !hostsocket.Is(err, hostsocket.KindNotOpen) {
		t.Fatalf("read after close = %v, want socket closed", err)
	}
}

// TestAsyncCloseUnblocksAcceptedRead mirrors TestAsyncCloseUnblocksRead for
// the accepted side of the pair, which never goes through Create() and so
// only gets its wake fd from Accept's target installation.
func TestAsyncCloseUnblocksAcceptedRead(t *testing.T) {
	b, a := hstest.Pipe(t.Fatalf)
	defer b.Close()

	done := make(chan error, 1)
	go func() {
		_, err := a.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case err := <-done:
		if !hostsocket.Is(err, hostsocket.KindNotOpen) {
			t.Fatalf("blocked read returned %v, want socket closed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("blocked read did not unblock within bounded time")
	}
}

// TestHalfShutdown is spec.md §8 scenario 4: A writes 3 bytes then
// shutdownOutput; B reads 3 bytes then sees EOF; B may still write to A
// which A can still read.
func TestHalfShutdown(t *testing.T) {
	b, a := hstest.Pipe(t.Fatalf)
	defer a.Close()
	defer b.Close()

	if _, err := a.Write([]byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := a.ShutdownOutput(); err != nil {
		t.Fatalf("shutdownOutput: %v", err)
	}

	buf := make([]byte, 3)
	n := 0
	for n < len(buf) {
		got, err := b.Read(buf[n:])
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		n += got
	}
	if string(buf) != "abc" {
		t.Fatalf("read %q, want %q", buf, "abc")
	}
	if n2, err := b.Read(make([]byte, 1)); err != nil || n2 != -1 {
		t.Fatalf("read after peer shutdown = (%d, %v), want (-1, nil)", n2, err)
	}

	if _, err := b.Write([]byte("xyz")); err != nil {
		t.Fatalf("b write after half-shutdown: %v", err)
	}
	buf2 := make([]byte, 3)
	n = 0
	for n < len(buf2) {
		got, err := a.Read(buf2[n:])
		if err != nil {
			t.Fatalf("a read: %v", err)
		}
		n += got
	}
	if string(buf2) != "xyz" {
		t.Fatalf("a read %q, want %q", buf2, "xyz")
	}
}

// TestConnectTimeout is spec.md §8 scenario 5: connecting to a
// non-routable address with millis=200 raises Timeout and the endpoint
// transitions to CLOSED.
func TestConnectTimeout(t *testing.T) {
	e := hostsocket.NewEndpoint(hostsocket.Options{})
	if err := e.Create(true); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := e.Connect("10.255.255.1", 9, 200)
	if err == nil {
		t.Fatalf("connect to non-routable address succeeded unexpectedly")
	}
	if e.State() != hostsocket.StateClosed {
		t.Fatalf("state = %v, want closed", e.State())
	}
}
