/*************************************************************************
 * Copyright 2025 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package debug implements the SIGUSR1 stack/heap/CPU profile dump that
// mgmd and fstd install at startup (cmd/mgmd, cmd/fstd) for live
// troubleshooting without restarting the daemon.
package debug

import (
	"bytes"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"
)

const (
	cpuProfileDuration = 10 * time.Second
	maxStackDumpSize   = 256 * 1024 * 1024
)

// HandleDebugSignals traps SIGUSR1 and, on each receipt, writes a stack
// trace, a heap profile, and a 10s CPU profile into a fresh temp directory
// named after the daemon (name is used as the MkdirTemp prefix). Intended
// to run in its own goroutine for the lifetime of the process.
func HandleDebugSignals(name string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGUSR1)

	for range c {
		dir, err := os.MkdirTemp("", name)
		if err != nil {
			continue
		}

		DumpDebugFiles(dir)
	}
}

// DumpDebugFiles writes a stack trace, heap profile, and CPU profile into
// dir. Each is best-effort: a failure to create one file does not prevent
// the others from being written.
func DumpDebugFiles(dir string) {
	generateStackTrace(dir)
	generateMemoryProfile(dir)
	generateCPUProfile(dir)
}

func generateStackTrace(dir string) {
	st, err := os.Create(filepath.Join(dir, "stack"))
	if err != nil {
		return
	}
	defer st.Close()

	// grow the buffer until the full trace fits, or we hit the cap
	size := 1024 * 1024
	var buf []byte
	var n int
	for {
		buf = make([]byte, size)
		n = runtime.Stack(buf, true)
		if n < size {
			break
		}
		size *= 2
		if size >= maxStackDumpSize {
			return
		}
	}
	st.Write(buf[:n])
}

func generateMemoryProfile(dir string) {
	mem, err := os.Create(filepath.Join(dir, "mem.prof"))
	if err != nil {
		return
	}
	defer mem.Close()

	var membuf bytes.Buffer
	runtime.GC()
	if err := pprof.WriteHeapProfile(&membuf); err == nil {
		mem.Write(membuf.Bytes())
	}
}

func generateCPUProfile(dir string) {
	cpu, err := os.Create(filepath.Join(dir, "cpu.prof"))
	if err != nil {
		return
	}
	defer cpu.Close()

	var cpubuf bytes.Buffer
	if err := pprof.StartCPUProfile(&cpubuf); err == nil {
		time.Sleep(cpuProfileDuration)
		pprof.StopCPUProfile()
		cpu.Write(cpubuf.Bytes())
	}
}
