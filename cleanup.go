// Copyright (C) 2015-2016  Nexedi SA and Contributors.
//                          Kirill Smelkov <kirr@nexedi.com>
//
// This program is free software: you can Use, Study, Modify and Redistribute
// it under the terms of the GNU General Public License version 3, or (at your
// option) any later version, as published by the Free Software Foundation.
//
// This program is distributed WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//
// See COPYING file for full licensing terms.

// Myba | LIFO cleanup stack fired on every abnormal exit path.
package main

import (
    "os"
    "os/signal"
    "sync"
    "syscall"
)

// CleanupStack accumulates deferred closures across call frames (commit
// pipeline, replay engine, ...) and runs them LIFO exactly once, whether
// triggered by a normal return path, a raised *Error, or a signal.
type CleanupStack struct {
    mu    sync.Mutex
    stack []func()
    done  bool
}

var globalCleanup = &CleanupStack{}

// Push registers f to run during Run(), most-recently-pushed first.
func (c *CleanupStack) Push(f func()) {
    c.mu.Lock()
    defer c.mu.Unlock()
    c.stack = append(c.stack, f)
}

// Run fires every registered cleanup in LIFO order. Idempotent: a second
// call is a no-op, so it is safe to call both from a signal handler and from
// main()'s normal exit path.
func (c *CleanupStack) Run() {
    c.mu.Lock()
    if c.done {
        c.mu.Unlock()
        return
    }
    c.done = true
    stack := c.stack
    c.stack = nil
    c.mu.Unlock()

    for i := len(stack) - 1; i >= 0; i-- {
        func() {
            defer errcatch(func(e *Error) {
                infof("# cleanup: %s", e)
            })
            stack[i]()
        }()
    }
}

// InstallSignalCleanup arranges for globalCleanup to run (and the process to
// exit) on SIGINT/SIGHUP/SIGTERM, per spec.md §5's cancellation model.
func InstallSignalCleanup() {
    ch := make(chan os.Signal, 1)
    signal.Notify(ch, syscall.SIGINT, syscall.SIGHUP, syscall.SIGTERM)
    go func() {
        <-ch
        globalCleanup.Run()
        os.Exit(1)
    }()
}
