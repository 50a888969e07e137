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

// Myba | Run subprocesses (git, openssl, gpg) with captured stdio
package main

import (
    "bytes"
    "fmt"
    "os"
    "os/exec"
    "strings"
)

// how/whether to redirect stdio of spawned process
type StdioRedirect int

const (
    PIPE StdioRedirect = iota // connect stdio channel via PIPE to parent (default value)
    DontRedirect
)

// RunWith carries the knobs a spawned subprocess needs: stdin content,
// stdio redirection mode, environment, and (for cipher primitives) an
// out-of-argv passphrase channel inherited as fd 3 in the child.
type RunWith struct {
    stdin     string
    stdout    StdioRedirect     // PIPE | DontRedirect
    stderr    StdioRedirect     // PIPE | DontRedirect
    raw       bool              // !raw -> stdout, stderr are stripped
    env       map[string]string // !nil -> subprocess environment setup from env
    extraFile *os.File          // !nil -> inherited as child fd 3 (e.g. passphrase pipe)
}

// run `argv0 *argv` -> error, stdout, stderr
func _run(argv0 string, argv []string, ctx RunWith) (err error, stdout, stderr string) {
    debugf("%s %s", argv0, strings.Join(argv, " "))

    cmd := exec.Command(argv0, argv...)
    stdoutBuf := bytes.Buffer{}
    stderrBuf := bytes.Buffer{}

    if ctx.stdin != "" {
        cmd.Stdin = strings.NewReader(ctx.stdin)
    }

    switch ctx.stdout {
    case PIPE:
        cmd.Stdout = &stdoutBuf
    case DontRedirect:
        cmd.Stdout = os.Stdout
    default:
        panic("runcmd: stdout redirect mode invalid")
    }

    switch ctx.stderr {
    case PIPE:
        cmd.Stderr = &stderrBuf
    case DontRedirect:
        cmd.Stderr = os.Stderr
    default:
        panic("runcmd: stderr redirect mode invalid")
    }

    if ctx.env != nil {
        env := []string{}
        for k, v := range ctx.env {
            env = append(env, k+"="+v)
        }
        cmd.Env = env
    }

    if ctx.extraFile != nil {
        // inherited as fd 3 in the child - out-of-argv, out-of-environment
        // channel for secrets (passphrases).
        cmd.ExtraFiles = []*os.File{ctx.extraFile}
    }

    err = cmd.Run()
    stdout = String(stdoutBuf.Bytes())
    stderr = String(stderrBuf.Bytes())

    if !ctx.raw {
        // prettify stdout (e.g. so that 'sha1\n' becomes 'sha1' and can be used directly)
        stdout = strings.TrimSpace(stdout)
        stderr = strings.TrimSpace(stderr)
    }

    return err, stdout, stderr
}

// error a subprocess returned with non-zero exit status
type RunError struct {
    RunErrContext
    *exec.ExitError
}

type RunErrContext struct {
    argv0  string
    argv   []string
    stdin  string
    stdout string
    stderr string
}

func (e *RunError) Error() string {
    msg := e.RunErrContext.Error()
    if e.stderr == "" {
        msg += "(failed)\n"
    }
    return msg
}

func (e *RunErrContext) Error() string {
    msg := e.argv0 + " " + strings.Join(e.argv, " ")
    if e.stdin == "" {
        msg += " </dev/null\n"
    } else {
        msg += " <<EOF\n" + e.stdin
        if !strings.HasSuffix(msg, "\n") {
            msg += "\n"
        }
        msg += "EOF\n"
    }

    msg += e.stderr
    if !strings.HasSuffix(msg, "\n") {
        msg += "\n"
    }
    return msg
}

// backward-compatible alias kept for GitError-specific call sites
type GitError = RunError
type GitErrContext = RunErrContext

// argv -> []string, ctx    (for passing argv + RunWith handy - see grun() for details)
func _runargv(argv ...interface{}) (argvs []string, ctx RunWith) {
    ctx_seen := false

    for _, arg := range argv {
        switch arg := arg.(type) {
        case string:
            argvs = append(argvs, arg)
        default:
            argvs = append(argvs, fmt.Sprint(arg))
        case RunWith:
            if ctx_seen {
                panic("runcmd: multiple RunWith contexts")
            }
            ctx, ctx_seen = arg, true
        }
    }

    return argvs, ctx
}

// run `argv0 *argv` -> err, stdout, stderr
// - error is returned only when subprocess could run and exits with error status
// - on other errors (e.g. argv0 not found) - exception is raised
//
// NOTE err is concrete *RunError, not error
func grun(argv0 string, argv ...interface{}) (err *RunError, stdout, stderr string) {
    return grun2(argv0, _runargv(argv...))
}

func grun2(argv0 string, argv []string, ctx RunWith) (err *RunError, stdout, stderr string) {
    e, stdout, stderr := _run(argv0, argv, ctx)
    eexec, _ := e.(*exec.ExitError)
    if e != nil && eexec == nil {
        raisef("%s %s : %s", argv0, strings.Join(argv, " "), e)
    }
    if eexec != nil {
        err = &RunError{RunErrContext{argv0, argv, ctx.stdin, stdout, stderr}, eexec}
    }
    return err, stdout, stderr
}

// run `argv0 *argv` -> stdout, raise exception on error
func xrun(argv0 string, argv ...interface{}) string {
    return xrun2(argv0, _runargv(argv...))
}

func xrun2(argv0 string, argv []string, ctx RunWith) string {
    gerr, stdout, _ := grun2(argv0, argv, ctx)
    if gerr != nil {
        raise(gerr)
    }
    return stdout
}

// -------- git-specific thin wrappers kept for call-site compatibility with teacher idiom --------

func ggit(argv ...interface{}) (err *RunError, stdout, stderr string) {
    return grun2("git", _runargv(argv...))
}

func ggit2(argv []string, ctx RunWith) (err *RunError, stdout, stderr string) {
    return grun2("git", argv, ctx)
}

func xgit(argv ...interface{}) string {
    return xrun2("git", _runargv(argv...))
}

func xgit2(argv []string, ctx RunWith) string {
    return xrun2("git", argv, ctx)
}

// like xgit(), but automatically parse stdout to Sha1
func xgitSha1(argv ...interface{}) Sha1 {
    return xgit2Sha1(_runargv(argv...))
}

// error when subprocess output is not valid sha1
type GitSha1Error struct {
    RunErrContext
}

func (e *GitSha1Error) Error() string {
    msg := e.RunErrContext.Error()
    msg += fmt.Sprintf("expected valid sha1 (got %q)\n", e.stdout)
    return msg
}

func xgit2Sha1(argv []string, ctx RunWith) Sha1 {
    gerr, stdout, stderr := grun2("git", argv, ctx)
    if gerr != nil {
        raise(gerr)
    }
    sha1, err := Sha1Parse(stdout)
    if err != nil {
        raise(&GitSha1Error{RunErrContext{"git", argv, ctx.stdin, stdout, stderr}})
    }
    return sha1
}

// generic wrapper: run named repo's git (--git-dir=path) command
func xgitDir(gitDir string, argv ...interface{}) string {
    full := append([]interface{}{"--git-dir=" + gitDir}, argv...)
    return xrun2("git", _runargv(full...))
}
