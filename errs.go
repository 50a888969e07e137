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

// Myba | Error propagation: panic-carrying errors with calling-context chains.
//
// Every operation that can fail deep in a call chain (commit pipeline, decrypt
// pipeline, replay engine) raises an *Error instead of threading `if err !=
// nil { return ... }` through every frame; the top of each command catches it
// once via errcatch and reports it together with the chain of callers that
// were on the stack when it happened.
package main

import (
    "fmt"
    "runtime"
)

// Error wraps an underlying error together with the chain of "context"
// strings added as the panic unwound through calling frames.
type Error struct {
    Err     error
    Context []string
}

func (e *Error) Error() string {
    msg := e.Err.Error()
    for _, ctx := range e.Context {
        msg = ctx + ": " + msg
    }
    return msg
}

func (e *Error) Unwrap() error {
    return e.Err
}

// aserror coerces a plain error (e.g. recovered from a non-*Error panic, or
// returned by a stdlib call) into *Error.
func aserror(err interface{}) *Error {
    switch e := err.(type) {
    case *Error:
        return e
    case error:
        return &Error{Err: e}
    default:
        return &Error{Err: fmt.Errorf("%v", e)}
    }
}

// raise panics with err wrapped as *Error. Caught by errcatch at the top of
// the enclosing command.
func raise(err error) {
    panic(aserror(err))
}

// raisef is raise(fmt.Errorf(format, a...)).
func raisef(format string, a ...interface{}) {
    raise(fmt.Errorf(format, a...))
}

// raiseif raises err if it is non-nil; no-op otherwise.
func raiseif(err error) {
    if err != nil {
        raise(err)
    }
}

// erraddcontext prepends ctx to e's context chain, returning e for chaining.
func erraddcontext(err error, ctx string) *Error {
    e := aserror(err)
    e.Context = append([]string{ctx}, e.Context...)
    return e
}

// erraddcallingcontext is erraddcontext with a "called from <here>" framing,
// used at a command's top-level recover site.
func erraddcallingcontext(here string, err error) *Error {
    return erraddcontext(err, "called from "+here)
}

// myfuncname returns the name of the calling function, for erraddcallingcontext.
func myfuncname() string {
    pc, _, _, ok := runtime.Caller(1)
    if !ok {
        return "?"
    }
    fn := runtime.FuncForPC(pc)
    if fn == nil {
        return "?"
    }
    return fn.Name()
}

// errcatch recovers a panic raised via raise/raiseif/raisef and hands the
// resulting *Error to f. Panics that did not originate from raise() are
// re-raised unchanged - errcatch only catches this package's error protocol,
// not arbitrary bugs.
func errcatch(f func(e *Error)) {
    r := recover()
    if r == nil {
        return
    }
    e, ok := r.(*Error)
    if !ok {
        panic(r)
    }
    f(e)
}

// -------- concrete error kinds named by the backup pipeline --------

// CipherError reports failure of an external cipher subprocess (openssl/gpg).
type CipherError struct {
    Op  string // "encrypt" | "decrypt"
    Err error
}

func (e *CipherError) Error() string {
    return fmt.Sprintf("cipher %s: %s", e.Op, e.Err)
}

func (e *CipherError) Unwrap() error { return e.Err }

// WrongPasswordError is raised when a decrypt/checkout operation's cipher
// step fails in a way that indicates the passphrase, not the ciphertext, is
// the problem (e.g. padding/MAC failure surfaced by the cipher subprocess).
type WrongPasswordError struct {
    Err error
}

func (e *WrongPasswordError) Error() string {
    return fmt.Sprintf("wrong password (or corrupt data): %s", e.Err)
}

func (e *WrongPasswordError) Unwrap() error { return e.Err }

// UsageError is raised for invalid command-line invocations.
type UsageError struct {
    Msg string
}

func (e *UsageError) Error() string { return "usage: " + e.Msg }

// UnsupportedEntryError is raised when the commit state machine encounters a
// `git diff --name-status` entry type it does not know how to handle.
type UnsupportedEntryError struct {
    Status string
    Path   string
}

func (e *UnsupportedEntryError) Error() string {
    return fmt.Sprintf("%s %s: unsupported diff status", e.Status, e.Path)
}

// AlreadyRestoredError is raised by the sequential restore when the plain repo
// is not empty, i.e. already has a HEAD commit (carried in Sha1).
type AlreadyRestoredError struct {
    Sha1 Sha1
}

func (e *AlreadyRestoredError) Error() string {
    return fmt.Sprintf("%s: already restored", e.Sha1)
}

// OverwriteRefusedError is raised by checkout/decrypt when a target path
// already exists and neither YES_OVERWRITE nor an interactive "yes" answer
// authorized clobbering it. Existing content is not compared.
type OverwriteRefusedError struct {
    Path string
}

func (e *OverwriteRefusedError) Error() string {
    return fmt.Sprintf("%s: refusing to overwrite (use YES_OVERWRITE or confirm interactively)", e.Path)
}

// Wrap adds a short human hint to err, grounded on the icemarkom-secure-backup
// internal/errors convention of attaching actionable remediation text to a
// wrapped error instead of only a context string.
func Wrap(err error, msg, hint string) error {
    if err == nil {
        return nil
    }
    if hint == "" {
        return fmt.Errorf("%s: %w", msg, err)
    }
    return fmt.Errorf("%s: %w (%s)", msg, err, hint)
}
