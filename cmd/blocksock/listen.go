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

package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/google/subcommands"

	"github.com/Michael-Mc-Mahon/blocksock/internal/hsconfig"
	"github.com/Michael-Mc-Mahon/blocksock/internal/log"
	"github.com/Michael-Mc-Mahon/blocksock/pkg/socket/hostsocket"
)

type listenCmd struct {
	cfg  hsconfig.Config
	addr string
}

func (*listenCmd) Name() string     { return "listen" }
func (*listenCmd) Synopsis() string { return "bind, listen and echo accepted connections" }
func (*listenCmd) Usage() string {
	return "listen [flags] <addr:port>\n  start an echo listener on addr:port\n"
}

func (c *listenCmd) SetFlags(fs *flag.FlagSet) {
	hsconfig.RegisterFlags(fs, &c.cfg)
}

func (c *listenCmd) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.cfg.Verbose {
		log.SetGlobal(log.NewBasicLogger(os.Stderr, log.Debug))
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(fs.Output(), c.Usage())
		return subcommands.ExitUsageError
	}
	host, portStr, err := net.SplitHostPort(fs.Arg(0))
	if err != nil {
		log.Warningf("blocksock listen: %v", err)
		return subcommands.ExitFailure
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	l := hostsocket.NewEndpoint(hostsocket.Options{Server: true})
	if err := l.Create(true); err != nil {
		log.Warningf("blocksock listen: create: %v", err)
		return subcommands.ExitFailure
	}
	if c.cfg.ReuseAddr {
		l.SetOption(hostsocket.SOReuseAddr, 1)
	}
	if err := l.Bind(net.ParseIP(host), port); err != nil {
		log.Warningf("blocksock listen: bind: %v", err)
		return subcommands.ExitFailure
	}
	if err := l.Listen(c.cfg.Backlog); err != nil {
		log.Warningf("blocksock listen: listen: %v", err)
		return subcommands.ExitFailure
	}
	log.Infof("blocksock listen: accepting on %s:%d", host, port)

	for {
		conn := hostsocket.NewEndpoint(hostsocket.Options{})
		if err := l.Accept(conn, 0); err != nil {
			log.Warningf("blocksock listen: accept: %v", err)
			continue
		}
		if c.cfg.Timeout > 0 {
			conn.SetOption(hostsocket.SOTimeout, int(c.cfg.Timeout.Milliseconds()))
		}
		go echo(conn)
	}
}

func echo(e *hostsocket.Endpoint) {
	defer e.Close()
	buf := make([]byte, 32*1024)
	for {
		n, err := e.Read(buf)
		if err != nil {
			log.Warningf("blocksock listen: read: %v", err)
			return
		}
		if n == -1 {
			return
		}
		if _, err := e.Write(buf[:n]); err != nil {
			log.Warningf("blocksock listen: write: %v", err)
			return
		}
	}
}
