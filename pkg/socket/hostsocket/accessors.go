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

import "net"

// LocalPort returns the kernel-chosen local port, valid once bound.
func (e *Endpoint) LocalPort() int {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.localport
}

// RemoteAddr returns the peer address, valid once CONNECTED.
func (e *Endpoint) RemoteAddr() net.IP {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.address
}

// RemotePort returns the peer port, valid once CONNECTED.
func (e *Endpoint) RemotePort() int {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.port
}

// IsStream reports whether the endpoint was created as a stream socket.
func (e *Endpoint) IsStream() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.stream
}
