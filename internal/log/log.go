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

// Package log is a small leveled logger adapted from the teacher module's
// own pkg/log (glog-style header, rate-limited wrapper over
// golang.org/x/time/rate). It exists so hostsocket's diagnostic trail
// (state transitions and descriptor-close failures) is
// not printed through fmt.Println, matching the ambient logging texture
// of the rest of the corpus.
package log

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

// Level is the severity of a log line, mirroring the teacher's three-level
// Warning/Info/Debug scheme (pkg/log/json.go).
type Level int32

const (
	Warning Level = iota
	Info
	Debug
)

func (l Level) String() string {
	switch l {
	case Warning:
		return "W"
	case Info:
		return "I"
	case Debug:
		return "D"
	default:
		return "?"
	}
}

// Logger is the interface hostsocket depends on.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warningf(format string, v ...any)
	IsLogging(level Level) bool
}

// basicLogger writes glog-style lines ("Lmmdd hh:mm:ss.uuuuuu] msg") to an
// *os.File, the same header shape as the teacher's GoogleEmitter
// (pkg/log/glog.go), trimmed of the thread-id/caller-file plumbing this
// module has no use for.
type basicLogger struct {
	out      *os.File
	minLevel atomic.Int32
}

// NewBasicLogger returns a Logger writing to out, logging lines at minLevel
// and at every more severe level: a Debug logger also writes Info and
// Warning lines, an Info logger writes Info and Warning, and a Warning
// logger writes only Warning.
func NewBasicLogger(out *os.File, minLevel Level) Logger {
	l := &basicLogger{out: out}
	l.minLevel.Store(int32(minLevel))
	return l
}

func (l *basicLogger) IsLogging(level Level) bool {
	return int32(level) <= l.minLevel.Load()
}

func (l *basicLogger) emit(level Level, format string, v ...any) {
	if !l.IsLogging(level) {
		return
	}
	now := time.Now()
	_, month, day := now.Date()
	hour, minute, second := now.Clock()
	fmt.Fprintf(l.out, "%s%02d%02d %02d:%02d:%02d.%06d] %s\n",
		level, int(month), day, hour, minute, second, now.Nanosecond()/1000,
		fmt.Sprintf(format, v...))
}

func (l *basicLogger) Debugf(format string, v ...any)   { l.emit(Debug, format, v...) }
func (l *basicLogger) Infof(format string, v ...any)    { l.emit(Info, format, v...) }
func (l *basicLogger) Warningf(format string, v ...any) { l.emit(Warning, format, v...) }

var global atomic.Pointer[Logger]

func init() {
	var l Logger = NewBasicLogger(os.Stderr, Info)
	global.Store(&l)
}

// SetGlobal replaces the package-level logger used by Debugf/Infof/
// Warningf and by BasicRateLimitedLogger.
func SetGlobal(l Logger) { global.Store(&l) }

// Log returns the current global logger.
func Log() Logger { return *global.Load() }

func Debugf(format string, v ...any)   { Log().Debugf(format, v...) }
func Infof(format string, v ...any)    { Log().Infof(format, v...) }
func Warningf(format string, v ...any) { Log().Warningf(format, v...) }
