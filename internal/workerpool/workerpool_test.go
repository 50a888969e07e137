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

package workerpool

import (
    "fmt"
    "sync/atomic"
    "testing"
)

func TestRunAllSucceed(t *testing.T) {
    var n int32
    jobs := make([]Job, 20)
    for i := range jobs {
        jobs[i] = Job{Fn: func() (string, string, error) {
            atomic.AddInt32(&n, 1)
            return "", "", nil
        }}
    }
    if err := New(4).Run(jobs); err != nil {
        t.Fatalf("Run: %s", err)
    }
    if n != 20 {
        t.Fatalf("ran %d jobs, want 20", n)
    }
}

func TestRunFailureDrainsAndReturnsError(t *testing.T) {
    var ran int32
    jobs := make([]Job, 10)
    for i := range jobs {
        i := i
        jobs[i] = Job{Fn: func() (string, string, error) {
            atomic.AddInt32(&ran, 1)
            if i == 5 {
                return "", "", fmt.Errorf("job %d failed", i)
            }
            return "", "", nil
        }}
    }
    err := New(3).Run(jobs)
    if err == nil {
        t.Fatal("expected error")
    }
    if ran != 10 {
        t.Fatalf("pool did not drain: ran %d of 10", ran)
    }
}

func TestRunEmpty(t *testing.T) {
    if err := New(4).Run(nil); err != nil {
        t.Fatalf("Run(nil): %s", err)
    }
}
