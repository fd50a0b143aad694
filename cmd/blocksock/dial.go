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
	"bufio"
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

type dialCmd struct {
	cfg hsconfig.Config
}

func (*dialCmd) Name() string     { return "dial" }
func (*dialCmd) Synopsis() string { return "connect and relay stdin/stdout" }
func (*dialCmd) Usage() string {
	return "dial [flags] <addr:port>\n  connect to addr:port, copy stdin to the socket and the socket to stdout\n"
}

func (c *dialCmd) SetFlags(fs *flag.FlagSet) {
	hsconfig.RegisterFlags(fs, &c.cfg)
}

func (c *dialCmd) Execute(ctx context.Context, fs *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if c.cfg.Verbose {
		log.SetGlobal(log.NewBasicLogger(os.Stderr, log.Debug))
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(fs.Output(), c.Usage())
		return subcommands.ExitUsageError
	}
	host, portStr, err := net.SplitHostPort(fs.Arg(0))
	if err != nil {
		log.Warningf("blocksock dial: %v", err)
		return subcommands.ExitFailure
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	e := hostsocket.NewEndpoint(hostsocket.Options{})
	if err := e.Create(true); err != nil {
		log.Warningf("blocksock dial: create: %v", err)
		return subcommands.ExitFailure
	}
	defer e.Close()

	millis := int(c.cfg.Timeout.Milliseconds())
	if err := e.Connect(host, port, millis); err != nil {
		log.Warningf("blocksock dial: connect: %v", err)
		return subcommands.ExitFailure
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 32*1024)
		for {
			n, err := e.Read(buf)
			if err != nil || n == -1 {
				return
			}
			os.Stdout.Write(buf[:n])
		}
	}()

	scanner := bufio.NewReader(os.Stdin)
	buf := make([]byte, 4096)
	for {
		n, rerr := scanner.Read(buf)
		if n > 0 {
			if _, werr := e.Write(buf[:n]); werr != nil {
				log.Warningf("blocksock dial: write: %v", werr)
				break
			}
		}
		if rerr != nil {
			break
		}
	}
	e.ShutdownOutput()
	<-done
	return subcommands.ExitSuccess
}
