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

// Myba | Encrypted-repo facade (C6): sparse-checkout, partial-clone
// promisor remotes, LFS threshold promotion.
package main

import (
    "os"
    "strings"
)

// EncRepo wraps E, configured per spec.md §4.5/§4.6: bigFileThreshold=100
// (every enc-blob is opaque), push-current-branch, fetch-parallelism 4,
// sparse-checkout cone mode with initial cone {manifest/} plus the
// self-copy, and an info/attributes rule marking all paths binary-and-no-diff.
type EncRepo struct {
    GitDir   string
    WorkTree string
}

func InitEncRepo(gitDir string) *EncRepo {
    err := os.MkdirAll(gitDir, 0777)
    raiseif(err)
    xrun("git", "init", gitDir)

    r := &EncRepo{GitDir: gitDir, WorkTree: gitDir}
    r.git("config", "core.bigFileThreshold", "100")
    r.git("config", "push.default", "current")
    r.git("config", "fetch.parallel", "4")
    r.git("config", "core.sparseCheckout", "true")
    r.git("config", "core.sparseCheckoutCone", "true")

    attrs := gitDir + "/.git/info/attributes"
    err = os.WriteFile(attrs, []byte("* binary -diff\n"), 0666)
    raiseif(err)

    r.SparseCone([]string{"manifest"})
    return r
}

func OpenEncRepo(gitDir string) *EncRepo {
    return &EncRepo{GitDir: gitDir, WorkTree: gitDir}
}

func (r *EncRepo) git(argv ...interface{}) string {
    full := append([]interface{}{"--git-dir=" + r.GitDir + "/.git", "--work-tree=" + r.WorkTree}, argv...)
    return xgit(full...)
}

func (r *EncRepo) git2(argv []string, ctx RunWith) string {
    full := append([]string{"--git-dir=" + r.GitDir + "/.git", "--work-tree=" + r.WorkTree}, argv...)
    return xgit2(full, ctx)
}

func (r *EncRepo) gitErr2(argv []string, ctx RunWith) (*RunError, string, string) {
    full := append([]string{"--git-dir=" + r.GitDir + "/.git", "--work-tree=" + r.WorkTree}, argv...)
    return ggit2(full, ctx)
}

// SparseCone sets the sparse-checkout cone to exactly prefixes (cone-mode
// requires directory prefixes - the checkout pipeline (C9) truncates
// enc-paths to their parent directory before calling this).
func (r *EncRepo) SparseCone(prefixes []string) {
    argv := append([]interface{}{"sparse-checkout", "set", "--cone"}, stringsToIface(prefixes)...)
    r.git(argv...)
}

// TrackLFS marks pattern for LFS tracking and stages the resulting
// .gitattributes update, per spec.md §4.8's LFS promotion step.
func (r *EncRepo) TrackLFS(pattern string) {
    r.git("lfs", "track", pattern)
    r.git("add", ".gitattributes")
}

// UntrackLFS removes pattern from LFS tracking, tolerating absence (LFS may
// be unused, spec.md §7 error policy).
func (r *EncRepo) UntrackLFS(pattern string) {
    gerr, _, _ := r.gitErr2([]string{"lfs", "untrack", pattern}, RunWith{})
    if gerr != nil {
        debugf("# lfs untrack %s: %s (tolerated)", pattern, gerr)
    }
}

// Add stages the given enc-paths with --sparse so paths outside the current
// cone are still recorded in the index (spec.md §4.8: `enc add --sparse`).
func (r *EncRepo) Add(paths ...string) {
    argv := append([]interface{}{"add", "--sparse", "--"}, stringsToIface(paths)...)
    r.git(argv...)
}

func (r *EncRepo) Rm(paths ...string) {
    argv := append([]interface{}{"rm", "--cached", "--ignore-unmatch", "--"}, stringsToIface(paths)...)
    r.git(argv...)
}

// WithRemotesHidden implements spec.md §4.8's "temporarily remove all
// remote registrations, then restore them" optimization as a scoped
// configuration override with a guaranteed restore on any exit path
// (including panic), per §9's re-architecture pointer.
func (r *EncRepo) WithRemotesHidden(f func()) {
    // exit status 1 means no remote.* keys matched - not an error, just no
    // remotes registered yet (the common case for a brand new E).
    gerr, saved, _ := r.gitErr2([]string{"config", "--get-regexp", `^remote\.`}, RunWith{})
    if gerr != nil {
        if gerr.ExitCode() != 1 {
            raise(gerr)
        }
        saved = ""
    }
    names := remoteNames(saved)
    for _, name := range names {
        r.git("config", "--remove-section", "remote."+name)
    }

    globalCleanup.Push(func() { r.restoreRemoteConfig(saved) })
    defer r.restoreRemoteConfig(saved)

    f()
}

func (r *EncRepo) restoreRemoteConfig(saved string) {
    for _, line := range splitlines(saved, "\n") {
        if line == "" {
            continue
        }
        key, val, err := split2(line, " ")
        if err != nil {
            continue
        }
        gerr, _, _ := r.gitErr2([]string{"config", key, val}, RunWith{})
        if gerr != nil {
            debugf("# restore remote config %s: %s", key, gerr)
        }
    }
}

func remoteNames(cfgDump string) []string {
    seen := StrSet{}
    names := []string{}
    for _, line := range splitlines(cfgDump, "\n") {
        if !strings.HasPrefix(line, "remote.") {
            continue
        }
        rest := strings.TrimPrefix(line, "remote.")
        i := strings.LastIndex(rest, ".")
        if i < 0 {
            continue
        }
        name := rest[:i]
        if !seen.Contains(name) {
            seen.Add(name)
            names = append(names, name)
        }
    }
    return names
}

// AddRemote registers name->url as a promisor remote with filter blob:none,
// per spec.md §4.11.
func (r *EncRepo) AddRemote(name, url string) {
    r.git("remote", "add", name, url)
    r.git("config", "remote."+name+".promisor", "true")
    r.git("config", "remote."+name+".partialclonefilter", "blob:none")
}

func (r *EncRepo) RemoteNames() []string {
    out := r.git("remote")
    names := []string{}
    for _, n := range splitlines(out, "\n") {
        if n != "" {
            names = append(names, n)
        }
    }
    return names
}

func (r *EncRepo) Push(remote string, stdio StdioRedirect) {
    r.git2([]string{"push", remote}, RunWith{stdout: stdio, stderr: stdio})
}

func (r *EncRepo) Fetch(remote string, stdio StdioRedirect) {
    r.git2([]string{"fetch", "--refetch", remote}, RunWith{stdout: stdio, stderr: stdio})
}

func (r *EncRepo) Pull(remote string, stdio StdioRedirect) {
    argv := []string{"pull"}
    if remote != "" {
        argv = append(argv, remote)
    }
    r.git2(argv, RunWith{stdout: stdio, stderr: stdio})
}

func (r *EncRepo) Commit(msg string) Sha1 {
    r.git2([]string{"commit", "--allow-empty-message", "-m", msg}, RunWith{})
	sha1, err := Sha1Parse(r.git("rev-parse", "HEAD"))
    raiseif(err)
    return sha1
}

func (r *EncRepo) Head() Sha1 {
    sha1, err := Sha1Parse(r.git("rev-parse", "HEAD"))
    raiseif(err)
    return sha1
}

func (r *EncRepo) TryHead() (Sha1, bool) {
    gerr, out, _ := r.gitErr2([]string{"rev-parse", "--verify", "HEAD"}, RunWith{})
    if gerr != nil {
        return Sha1{}, false
    }
    sha1, err := Sha1Parse(out)
    if err != nil {
        return Sha1{}, false
    }
    return sha1, true
}
