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

// Command blocksock is a small harness over pkg/socket/hostsocket, exposing
// the endpoint as two subcommands: listen (echo server) and dial (echo
// client). Grounded on runsc's subcommand registration pattern.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/Michael-Mc-Mahon/blocksock/internal/log"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&listenCmd{}, "")
	subcommands.Register(&dialCmd{}, "")

	flag.Parse()
	log.SetGlobal(log.NewBasicLogger(os.Stderr, log.Info))
	os.Exit(int(subcommands.Execute(context.Background())))
}
