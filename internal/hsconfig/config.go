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

// Package hsconfig holds the flag-derived configuration shared by the
// blocksock command line tools, in the style of runsc's own config package:
// a single struct, a RegisterFlags that binds it to a flag.FlagSet, and no
// package-level mutable state.
package hsconfig

import (
	"flag"
	"time"
)

// Config collects the knobs exposed on the command line.
type Config struct {
	// Timeout is the SO_TIMEOUT that listen applies to each accepted
	// connection's reads, and the connect timeout that dial uses; 0 = infinite.
	Timeout time.Duration
	// Backlog is the listen backlog; <1 is clamped by the endpoint itself.
	Backlog int
	// ReuseAddr sets SO_REUSEADDR on listeners before bind.
	ReuseAddr bool
	// Verbose raises the ambient logger to Debug.
	Verbose bool
}

// RegisterFlags binds c's fields onto fs, returning c for chaining.
func RegisterFlags(fs *flag.FlagSet, c *Config) *Config {
	fs.DurationVar(&c.Timeout, "timeout", 0, "read timeout for accepted connections (listen) or connect timeout (dial), 0 for infinite")
	fs.IntVar(&c.Backlog, "backlog", 50, "listen backlog")
	fs.BoolVar(&c.ReuseAddr, "reuseaddr", true, "set SO_REUSEADDR before bind")
	fs.BoolVar(&c.Verbose, "v", false, "enable debug logging")
	return c
}
