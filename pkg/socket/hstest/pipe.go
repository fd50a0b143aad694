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

// Package hstest provides loopback test fixtures for pkg/socket/hostsocket,
// kept as a separate package (rather than test helpers inlined per _test.go
// file) so both the hostsocket package's own tests and any downstream
// consumer's tests can build a connected endpoint pair the same way.
package hstest

import (
	"fmt"
	"net"

	"github.com/Michael-Mc-Mahon/blocksock/pkg/socket/hostsocket"
)

// Pipe binds a listener on 127.0.0.1:0, connects a client to it, and accepts
// the server side, returning both ends already CONNECTED. Fails the test
// via t.Fatalf-shaped callback so call sites can use *testing.T or
// *testing.B interchangeably without importing "testing" here.
func Pipe(fatalf func(format string, args ...any)) (client, server *hostsocket.Endpoint) {
	listener := hostsocket.NewEndpoint(hostsocket.Options{Server: true})
	if err := listener.Create(true); err != nil {
		fatalf("hstest: listener create: %v", err)
		return nil, nil
	}
	if err := listener.Bind(net.ParseIP("127.0.0.1"), 0); err != nil {
		fatalf("hstest: listener bind: %v", err)
		return nil, nil
	}
	if err := listener.Listen(1); err != nil {
		fatalf("hstest: listener listen: %v", err)
		return nil, nil
	}
	port, err := ListenerPort(listener)
	if err != nil {
		fatalf("hstest: listener port: %v", err)
		return nil, nil
	}

	acceptErr := make(chan error, 1)
	server = hostsocket.NewEndpoint(hostsocket.Options{})
	go func() {
		acceptErr <- listener.Accept(server, 0)
	}()

	client = hostsocket.NewEndpoint(hostsocket.Options{})
	if err := client.Create(true); err != nil {
		fatalf("hstest: client create: %v", err)
		return nil, nil
	}
	if err := client.Connect("127.0.0.1", port, 0); err != nil {
		fatalf("hstest: client connect: %v", err)
		return nil, nil
	}
	if err := <-acceptErr; err != nil {
		fatalf("hstest: accept: %v", err)
		return nil, nil
	}
	listener.Close()
	return client, server
}

// ListenerPort reads back the kernel-assigned port of a bound endpoint.
func ListenerPort(e *hostsocket.Endpoint) (int, error) {
	port := e.LocalPort()
	if port == 0 {
		return 0, fmt.Errorf("hstest: endpoint has no local port")
	}
	return port, nil
}
