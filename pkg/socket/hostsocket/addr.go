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
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// sockaddrFromIP builds a unix.Sockaddr for addr:port, always in IPv6 form
// so that it matches the dual-stack AF_INET6 fd the kernel adapter
// allocates in socket(): a plain v4 address is given as its v4-mapped
// (::ffff:a.b.c.d) IPv6 equivalent.
func sockaddrFromIP(addr net.IP, port int) (unix.Sockaddr, error) {
	if addr == nil || addr.IsUnspecified() || len(addr) == 0 {
		return &unix.SockaddrInet6{Port: port}, nil
	}
	if v4 := addr.To4(); v4 != nil {
		var sa unix.SockaddrInet6
		sa.Addr[10], sa.Addr[11] = 0xff, 0xff
		copy(sa.Addr[12:], v4)
		sa.Port = port
		return &sa, nil
	}
	v6 := addr.To16()
	if v6 == nil {
		return nil, fmt.Errorf("not an IP address: %v", addr)
	}
	var sa unix.SockaddrInet6
	copy(sa.Addr[:], v6)
	sa.Port = port
	return &sa, nil
}

// ipFromSockaddr is the inverse of sockaddrFromIP, used to read back
// kernel-assigned ports/addresses (e.g. after bind, accept).
func ipFromSockaddr(sa unix.Sockaddr) (net.IP, int) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := make(net.IP, 4)
		copy(ip, a.Addr[:])
		return ip, a.Port
	case *unix.SockaddrInet6:
		ip := make(net.IP, 16)
		copy(ip, a.Addr[:])
		return ip, a.Port
	default:
		return nil, 0
	}
}

// resolveConnectTarget resolves host to an IP, per spec.md §4.4:
// unresolved addresses fail fast with "unknown host"; the wildcard address
// resolves to the local host.
func resolveConnectTarget(host string) (net.IP, error) {
	if host == "" || host == "0.0.0.0" || host == "::" {
		return net.ParseIP("127.0.0.1"), nil
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil || len(ips) == 0 {
		return nil, New(KindUnresolvedHost, host)
	}
	return ips[0], nil
}
