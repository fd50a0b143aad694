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

// InputStream is the read-stream view of spec.md §4.6: remembers sticky eof
// and reset flags, not required thread-safe (a single goroutine is expected
// to own a given stream).
type InputStream struct {
	e     *Endpoint
	eof   bool
	reset bool
}

// GetInputStream returns e's read-stream view.
func (e *Endpoint) GetInputStream() *InputStream { return &InputStream{e: e} }

// Read fills p, latching eof/reset the first time either is observed.
func (s *InputStream) Read(p []byte) (int, error) {
	if s.eof {
		return -1, nil
	}
	if s.reset {
		return 0, New(KindConnectionReset, "connection reset")
	}
	n, err := s.e.Read(p)
	if err != nil {
		if Is(err, KindConnectionReset) {
			s.reset = true
		}
		return n, err
	}
	if n == -1 {
		s.eof = true
	}
	return n, nil
}

// Available delegates to the endpoint's Available, per spec.md §4.6.
func (s *InputStream) Available() (int, error) { return s.e.Available() }

// Close closes the owning endpoint, per spec.md §4.6 ("closing the stream
// closes the endpoint").
func (s *InputStream) Close() error { return s.e.Close() }

// OutputStream is the write-stream view of spec.md §4.6: writes in chunks
// of at most MaxTransfer, looping until the full buffer is consumed.
type OutputStream struct {
	e *Endpoint
}

// GetOutputStream returns e's write-stream view.
func (e *Endpoint) GetOutputStream() *OutputStream { return &OutputStream{e: e} }

// Write writes all of p, wrapping any I/O error as a socket error.
func (s *OutputStream) Write(p []byte) (int, error) {
	return s.e.Write(p)
}

// Close closes the owning endpoint, per spec.md §4.6.
func (s *OutputStream) Close() error { return s.e.Close() }
