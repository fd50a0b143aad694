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
	"errors"
	"fmt"
)

// Kind classifies an Error without pinning callers to a concrete error
// value, mirroring the distinction the teacher's pkg/syserr draws between
// a small set of translatable kinds and an arbitrary wrapped message.
type Kind int

// The error kinds the endpoint can report. These correspond to spec.md §7.
const (
	KindNotOpen Kind = iota
	KindNotConnected
	KindAlreadyConnected
	KindConnectionInProgress
	KindNotBound
	KindNotStream
	KindUnresolvedHost
	KindBadAddress
	KindTimeout
	KindConnectionReset
	KindIO
	KindBadArgument
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindNotOpen:
		return "not open"
	case KindNotConnected:
		return "not connected"
	case KindAlreadyConnected:
		return "already connected"
	case KindConnectionInProgress:
		return "connection in progress"
	case KindNotBound:
		return "not bound"
	case KindNotStream:
		return "not a stream socket"
	case KindUnresolvedHost:
		return "unresolved host"
	case KindBadAddress:
		return "bad address"
	case KindTimeout:
		return "timeout"
	case KindConnectionReset:
		return "connection reset"
	case KindIO:
		return "io error"
	case KindBadArgument:
		return "bad argument"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is the error type every exported Endpoint operation returns. It
// carries a Kind so callers can discriminate without string matching, and
// preserves the originating message the way the teacher's syserr.Error
// preserves the underlying errno's text.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New creates an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an IO-kind *Error that preserves cause's message, per
// spec.md §7 ("Option-layer IO errors are always converted to socket
// errors with the original message preserved"). A cause that is already an
// *Error is returned unchanged, keeping its own Kind.
func Wrap(cause error) *Error {
	if cause == nil {
		return nil
	}
	if e, ok := cause.(*Error); ok {
		return e
	}
	return &Error{Kind: KindIO, Message: cause.Error(), Cause: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err (or any error it wraps) is a *Error of kind k.
func Is(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Kind == k {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// errClosed is the canonical "socket closed" error raised whenever an
// operation observes state >= closing, per spec.md §4.4.
var errClosed = New(KindNotOpen, "socket closed")
