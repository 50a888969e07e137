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

// Myba | Interactive IO bound to a dedicated /dev/tty descriptor, so
// password and overwrite prompts survive pipelines that redirected stdin.
package main

import (
    "bufio"
    "fmt"
    "os"
    "strings"
    "sync"

    "golang.org/x/term"
)

// TTY lazily opens /dev/tty once per process and serves every subsequent
// password/overwrite prompt from that one descriptor.
type TTY struct {
    mu sync.Mutex
    f  *os.File
}

var controllingTTY = &TTY{}

func (t *TTY) open() (*os.File, error) {
    t.mu.Lock()
    defer t.mu.Unlock()
    return t.openLocked()
}

// openLocked is open()'s body, for callers that already hold t.mu - letting
// them span a whole prompt+read exchange under one lock without a double
// lock/deadlock.
func (t *TTY) openLocked() (*os.File, error) {
    if t.f == nil {
        f, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
        if err != nil {
            return nil, err
        }
        t.f = f
    }
    return t.f, nil
}

// ReadPassword prompts on the controlling TTY and reads a password without
// echo, via golang.org/x/term.
func (t *TTY) ReadPassword(prompt string) (string, error) {
    f, err := t.open()
    if err != nil {
        return "", err
    }
    fmt.Fprint(f, prompt)
    pw, err := term.ReadPassword(int(f.Fd()))
    fmt.Fprintln(f)
    if err != nil {
        return "", err
    }
    return string(pw), nil
}

// ConfirmOverwrite implements spec.md §4.9's overwrite policy: prompt y/N on
// the TTY unless yesOverwrite is set; with no TTY available, treat as
// refusal unless yesOverwrite is set (spec.md §8 boundary). The checkout
// pipeline (C9) calls this concurrently from its worker pool, one job per
// matched path, so the whole prompt+read exchange is serialized under
// controllingTTY.mu - not just the open() - to keep two overlapping prompts
// from interleaving output or stealing each other's typed answer.
func ConfirmOverwrite(path string, yesOverwrite bool) bool {
    if yesOverwrite {
        return true
    }
    return controllingTTY.confirmOverwrite(path)
}

func (t *TTY) confirmOverwrite(path string) bool {
    t.mu.Lock()
    defer t.mu.Unlock()

    f, err := t.openLocked()
    if err != nil {
        return false
    }
    fmt.Fprintf(f, "%s already exists, overwrite? [y/N] ", path)
    line, _ := bufio.NewReader(f).ReadString('\n')
    return strings.EqualFold(strings.TrimSpace(line), "y")
}

// ResolvePassword returns cfg.Password if set, else prompts once on the TTY
// and stores the answer in cfg.Password. The typed password is not asked for
// a second time to confirm it.
func ResolvePassword(cfg *Config) string {
    if cfg.Password != "" {
        return cfg.Password
    }
    pw, err := controllingTTY.ReadPassword("Password: ")
    raiseif(err)
    cfg.Password = pw
    return pw
}
