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
)

// event is the small readiness mask the operation drivers care about,
// matching the POLLIN/POLLOUT subset of the teacher's waiter.EventMask
// (pkg/waiter/waiter.go) — this module does not need the full
// Queue/Entry/multi-event-subscriber machinery of that package since each
// Endpoint has at most one reader and one writer, never a set of
// subscribers.
type event int16

const (
	eventIn  event = unix.POLLIN
	eventOut event = unix.POLLOUT
)

// wakeFD is a self-pipe-style preclose signal: an eventfd registered
// alongside the socket fd in every poll(2) call made on its behalf. Writing
// to it wakes any goroutine currently parked in poll(), the Go analogue of
// the teacher's preClose(fd) (which relies on a host dup-over trick the Go
// runtime's own netpoller does not expose for raw, non-net.Conn fds).
//
// Grounded on pkg/eventfd/eventfd.go's Create/Notify, trimmed of the mmap
// counter path this module never uses.
type wakeFD struct {
	fd int
}

func newWakeFD() (wakeFD, error) {
	fd, _, errno := unix.RawSyscall(unix.SYS_EVENTFD2, 0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC, 0)
	if errno != 0 {
		return wakeFD{}, errno
	}
	return wakeFD{fd: int(fd)}, nil
}

// notify wakes any goroutine parked in poll() on this wakeFD. Safe to call
// more than once; the eventfd counter simply accumulates until drained.
func (w wakeFD) notify() {
	var buf [8]byte
	buf[7] = 1
	unix.Write(w.fd, buf[:])
}

func (w wakeFD) drain() {
	var buf [8]byte
	unix.Read(w.fd, buf[:])
}

func (w wakeFD) close() {
	unix.Close(w.fd)
}

// waitResult is what Wait returns: which of the requested events the
// socket fd is ready for (0 if woken by wakeFD or by timeout), and whether
// a preclose wake was observed.
type waitResult struct {
	ready   event
	woken   bool
	timeout bool
}

// wait parks until fd is ready for one of mask's events, the deadline
// elapses, or w is notified. deadline.IsZero() means wait forever, matching
// spec.md §4.2's "nanos=0 means forever".
//
// Grounded on the teacher's fdnotifier/poll_unsafe.go, which polls a single
// fd with EINTR retried in a loop; this adds the deadline and the wakeFD
// slot fdnotifier's NonBlockingPoll doesn't need (it never blocks).
func wait(fd int, mask event, deadline time.Time, w wakeFD) (waitResult, error) {
	for {
		timeoutMS := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return waitResult{timeout: true}, nil
			}
			timeoutMS = int(remaining / time.Millisecond)
			if timeoutMS == 0 {
				timeoutMS = 1
			}
		}

		fds := []unix.PollFd{
			{Fd: int32(fd), Events: int16(mask)},
			{Fd: int32(w.fd), Events: int16(eventIn)},
		}
		n, err := unix.Poll(fds, timeoutMS)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return waitResult{}, err
		}
		if n == 0 {
			// poll's timeout is whole milliseconds, truncated, so it can
			// expire just short of the deadline; the check above decides.
			continue
		}
		if fds[1].Revents != 0 {
			w.drain()
			return waitResult{woken: true}, nil
		}
		return waitResult{ready: event(fds[0].Revents)}, nil
	}
}
