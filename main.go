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

/*
Myba - Encrypted, version-controlled, distributed file backup

This program tracks a directory of plaintext files in a local bare "plain"
repository P, and mirrors every commit into a second bare repository E whose
tracked contents are ciphertext, encrypted with a password-derived key. Only
E is ever pushed to a remote; P never leaves the machine.
*/
package main

import (
    "flag"
    "fmt"
    "os"
    "runtime/debug"
)

var commands = map[string]func([]string){
    "init":      cmd_init,
    "add":       cmd_add,
    "rm":        cmd_rm,
    "commit":    cmd_commit,
    "push":      cmd_push,
    "pull":      cmd_pull,
    "clone":     cmd_clone,
    "remote":    cmd_remote,
    "decrypt":   cmd_decrypt,
    "reencrypt": cmd_reencrypt,
    "checkout":  cmd_checkout,
    "diff":      cmd_diff,
    "log":       cmd_log,
    "status":    cmd_status,
    "ls-files":  cmd_ls_files,
    "largest":   cmd_largest,
    "gc":        cmd_gc,
    "git":       cmd_git,
    "git_enc":   cmd_git_enc,
}

func usage() {
    fmt.Fprintf(os.Stderr,
`myba [options] <command>

    init             create plain and encrypted repositories
    add PATH...      track path(s)
    rm PATH...       untrack path(s)
    commit [-m MSG]  commit staged changes and mirror them encrypted
    push [REMOTE]    push E, then fetch --refetch --all and gc
    pull [REMOTE]    pull E and refresh decrypted manifests
    clone URL        partial-clone E, init P, decrypt manifests
    remote add N URL register a promisor remote on E
    decrypt [--squash]   restore P's history from E (sequential, or squashed)
    reencrypt            re-derive E under a new password
    checkout ARGS... checkout a plain/encrypted commit or plaintext paths
    diff/log/status/ls-files [OPTS]  read-only passthrough to P
    largest          largest tracked plaintexts by decrypted size
    gc               reduce E's cone, mark local packs promisor and drop them
    git CMD...       raw git passthrough scoped to P
    git_enc CMD...   raw git passthrough scoped to E

  common options:

    -h --help       this help text.
    -v              increase verbosity.
    -q              decrease verbosity.
`)
}

// pipelineFromEnv loads Config from the environment and opens the existing
// P/E facades - the common setup every command but init/clone needs.
func pipelineFromEnv() *Pipeline {
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    enc := OpenEncRepo(cfg.EncryptedRepo())
    cfg.Password = ResolvePassword(cfg)
    return NewPipeline(cfg, plain, enc)
}

func cmd_init(argv []string) {
    cfg := LoadConfig()
    InitPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    InitEncRepo(cfg.EncryptedRepo())
    infof("# initialized plain repo at %s, encrypted repo at %s", cfg.PlainRepo, cfg.EncryptedRepo())
}

func cmd_add(argv []string) {
    if len(argv) == 0 {
        raise(&UsageError{Msg: "add PATH..."})
    }
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    plain.Add(argv...)
}

func cmd_rm(argv []string) {
    if len(argv) == 0 {
        raise(&UsageError{Msg: "rm PATH..."})
    }
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    plain.Rm(argv...)
}

func cmd_commit(argv []string) {
    fset := flag.NewFlagSet("commit", flag.ExitOnError)
    msg := fset.String("m", "", "commit message")
    fset.Parse(argv)

    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    sha1, changed := plain.Commit(*msg)
    if !changed {
        infof("# nothing to commit")
        return
    }

    enc := OpenEncRepo(cfg.EncryptedRepo())
    cfg.Password = ResolvePassword(cfg)
    p := NewPipeline(cfg, plain, enc)
    encSha1 := p.Commit(sha1)
    infof("# committed %s -> %s", sha1, encSha1)
}

func cmd_push(argv []string) {
    remote := ""
    if len(argv) > 0 {
        remote = argv[0]
    }
    pipelineFromEnv().Push(remote)
}

func cmd_pull(argv []string) {
    remote := ""
    if len(argv) > 0 {
        remote = argv[0]
    }
    pipelineFromEnv().Pull(remote)
}

func cmd_clone(argv []string) {
    if len(argv) != 1 {
        raise(&UsageError{Msg: "clone URL"})
    }
    cfg := LoadConfig()
    Clone(cfg, argv[0])
}

func cmd_remote(argv []string) {
    if len(argv) < 1 {
        raise(&UsageError{Msg: "remote add NAME URL"})
    }
    p := pipelineFromEnv()
    switch argv[0] {
    case "add":
        if len(argv) != 3 {
            raise(&UsageError{Msg: "remote add NAME URL"})
        }
        p.AddRemote(argv[1], argv[2])
    default:
        raise(&UsageError{Msg: "remote: unknown subcommand " + argv[0]})
    }
}

func cmd_decrypt(argv []string) {
    fset := flag.NewFlagSet("decrypt", flag.ExitOnError)
    squash := fset.Bool("squash", false, "aggregate all manifests into one commit")
    fset.Parse(argv)

    p := pipelineFromEnv()
    if *squash {
        p.RestoreSquash()
    } else {
        p.Restore()
    }
}

func cmd_reencrypt(argv []string) {
    p := pipelineFromEnv()
    newPassword, err := controllingTTY.ReadPassword("New password: ")
    raiseif(err)
    p.Reencrypt(newPassword)
}

func cmd_checkout(argv []string) {
    if len(argv) == 0 {
        raise(&UsageError{Msg: "checkout PATH...|COMMIT"})
    }
    pipelineFromEnv().Checkout(argv)
}

func cmd_diff(argv []string) {
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    fmt.Print(plain.Diff(argv...))
}

func cmd_log(argv []string) {
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    fmt.Print(plain.Log(argv...))
}

func cmd_status(argv []string) {
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    fmt.Print(plain.Status(argv...))
}

func cmd_ls_files(argv []string) {
    cfg := LoadConfig()
    plain := OpenPlainRepo(cfg.PlainRepo, cfg.WorkTree)
    fmt.Print(plain.LsFiles(argv...))
}

func cmd_largest(argv []string) {
    cfg := LoadConfig()
    Largest(cfg, 20)
}

func cmd_gc(argv []string) {
    pipelineFromEnv().GC()
}

func cmd_git(argv []string) {
    cfg := LoadConfig()
    xrun("git", append([]interface{}{"--git-dir=" + cfg.PlainRepo, "--work-tree=" + cfg.WorkTree}, stringsToIface(argv)...)...)
}

func cmd_git_enc(argv []string) {
    cfg := LoadConfig()
    encDir := cfg.EncryptedRepo()
    xrun("git", append([]interface{}{"--git-dir=" + encDir + "/.git", "--work-tree=" + encDir}, stringsToIface(argv)...)...)
}

func main() {
    flag.Usage = usage
    quiet := 0
    flag.Var((*countFlag)(&verbose), "v", "verbosity level")
    flag.Var((*countFlag)(&quiet), "q", "decrease verbosity")
    flag.Parse()
    verbose -= quiet
    argv := flag.Args()

    if len(argv) == 0 {
        usage()
        os.Exit(1)
    }

    cmd := commands[argv[0]]
    if cmd == nil {
        fmt.Fprintf(os.Stderr, "E: unknown command %q\n", argv[0])
        os.Exit(1)
    }

    InstallSignalCleanup()
    defer globalCleanup.Run()

    here := myfuncname()
    defer errcatch(func(e *Error) {
        e = erraddcallingcontext(here, e)
        fmt.Fprintln(os.Stderr, e)

        if verbose > 2 {
            fmt.Fprint(os.Stderr, "\n")
            debug.PrintStack()
        }

        globalCleanup.Run()
        os.Exit(1)
    })

    cmd(argv[1:])
}
