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

// Package workerpool implements the bounded-concurrency fan-out of spec.md
// §4.7 / §9: a fixed worker set consumes a channel of jobs, each job's
// stdout/stderr is captured, and captured output is replayed - in
// submission order - only after the pool has fully drained. Any worker
// error drains the pool and fails the whole Run.
//
// Grounded on the pack's ParallelEncryptor.EncryptFiles (channel of jobs +
// sync.WaitGroup + per-job error collection), generalized from
// file-encryption jobs to arbitrary captured-output jobs so it also drives
// the decrypt (C9) and reencrypt (C10) fan-outs.
package workerpool

import (
    "fmt"
    "runtime"
    "sync"
)

// Job is one unit of parallel work. Fn runs on a worker goroutine; its
// returned stdout/stderr are captured and replayed, in submission order,
// only once every job has finished.
type Job struct {
    Fn func() (stdout, stderr string, err error)
}

type jobResult struct {
    index  int
    stdout string
    stderr string
    err    error
}

// Pool runs a bounded set of workers against a list of jobs.
type Pool struct {
    NWorkers int
}

// New returns a Pool sized to n workers; n<=0 defaults to runtime.NumCPU(),
// matching spec.md §4.7's "N workers (default = online CPU count)".
func New(n int) *Pool {
    if n <= 0 {
        n = runtime.NumCPU()
    }
    return &Pool{NWorkers: n}
}

// Run executes every job, replays each job's captured stdout/stderr in
// submission order after the pool drains, and returns the first error
// encountered (if any). Partial progress on other jobs is allowed to
// complete before Run returns - the pool always drains fully, matching
// spec.md §4.7's "pool drains, replays all captured output, and signals
// failure" contract.
func (p *Pool) Run(jobs []Job) error {
    if len(jobs) == 0 {
        return nil
    }

    nworkers := p.NWorkers
    if nworkers <= 0 {
        nworkers = runtime.NumCPU()
    }
    if nworkers > len(jobs) {
        nworkers = len(jobs)
    }

    type indexed struct {
        index int
        job   Job
    }
    jobChan := make(chan indexed, len(jobs))
    for i, j := range jobs {
        jobChan <- indexed{i, j}
    }
    close(jobChan)

    results := make([]jobResult, len(jobs))
    var wg sync.WaitGroup
    wg.Add(nworkers)
    for w := 0; w < nworkers; w++ {
        go func() {
            defer wg.Done()
            for ij := range jobChan {
                stdout, stderr, err := ij.job.Fn()
                results[ij.index] = jobResult{ij.index, stdout, stderr, err}
            }
        }()
    }
    wg.Wait()

    var firstErr error
    for _, r := range results {
        if r.stdout != "" {
            fmt.Print(r.stdout)
        }
        if r.stderr != "" {
            fmt.Print(r.stderr)
        }
        if r.err != nil && firstErr == nil {
            firstErr = r.err
        }
    }
    return firstErr
}
