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

// Myba | Plain-repo facade (C5): bare VCS over the tracked working tree.
package main

import (
    "fmt"
    "os"
    "strings"
)

// PlainRepo wraps the bare plain repository P with working tree root
// WorkTree, configured per spec.md §4.5: detect-renames-and-copies, large
// rename limit, ignore global excludes, explicit bare work-tree override.
// Grounded on the teacher's direct xgit(...) call sites throughout
// git-backup.go, generalized to this spec's add/rm/commit/status/log/diff
// vocabulary.
type PlainRepo struct {
    GitDir   string
    WorkTree string
}

// StatusEntry is one line of `git diff --name-status`, the input to the
// commit pipeline's per-entry state machine (spec.md §4.8).
type StatusEntry struct {
    Status     string // first character: A M R C D T U or other
    Similarity int    // parsed from e.g. "R87" -> 87; 0 if not a rename/copy
    Path       string // for A/M/D/T/U: the single path
    OldPath    string // for R/C: the source path
}

// InitPlainRepo creates the bare repository at gitDir and applies the
// config spec.md §4.5 requires.
func InitPlainRepo(gitDir, workTree string) *PlainRepo {
    err := os.MkdirAll(gitDir, 0777)
    raiseif(err)
    xrun("git", "init", "--bare", gitDir)

    r := &PlainRepo{GitDir: gitDir, WorkTree: workTree}
    r.git("config", "core.worktree", workTree)
    r.git("config", "core.bare", "false")
    r.git("config", "merge.renames", "true")
    r.git("config", "diff.renames", "true")
    r.git("config", "diff.renameLimit", "999999")
    r.git("config", "core.excludesfile", "")

    exclude := r.GitDir + "/info/exclude"
    err = os.MkdirAll(r.GitDir+"/info", 0777)
    raiseif(err)
    err = os.WriteFile(exclude, []byte(".myba-tmp*\n"), 0666)
    raiseif(err)

    return r
}

func OpenPlainRepo(gitDir, workTree string) *PlainRepo {
    return &PlainRepo{GitDir: gitDir, WorkTree: workTree}
}

func (r *PlainRepo) git(argv ...interface{}) string {
    full := append([]interface{}{"--git-dir=" + r.GitDir, "--work-tree=" + r.WorkTree}, argv...)
    return xgit(full...)
}

func (r *PlainRepo) git2(argv []string, ctx RunWith) string {
    full := append([]string{"--git-dir=" + r.GitDir, "--work-tree=" + r.WorkTree}, argv...)
    return xgit2(full, ctx)
}

// CheckoutTreeInto materializes commit's tree into workTree, an arbitrary
// scratch directory, via a private index file rather than r's own index -
// used by the reencrypt replay (C10) so the commit pipeline (C8) reads a
// historical commit's content instead of P's live working tree.
func (r *PlainRepo) CheckoutTreeInto(commit Sha1, workTree string) {
    indexFile := workTree + "/.git-index"
    env := envWithOverrides(map[string]string{"GIT_INDEX_FILE": indexFile})

    xgit2([]string{"--git-dir=" + r.GitDir, "--work-tree=" + workTree,
        "read-tree", commit.String()}, RunWith{env: env})
    xgit2([]string{"--git-dir=" + r.GitDir, "--work-tree=" + workTree,
        "checkout-index", "-a", "-f"}, RunWith{env: env})

    raiseif(os.Remove(indexFile))
}

// Add stages the given paths, plus a ".mybabackup" directory marker for any
// directory among them, per spec.md §6's recursive-add-by-marker semantics.
func (r *PlainRepo) Add(paths ...string) {
    for _, p := range paths {
        info, err := os.Stat(r.WorkTree + "/" + p)
        if err == nil && info.IsDir() {
            marker := r.WorkTree + "/" + p + "/.mybabackup"
            if _, err := os.Stat(marker); os.IsNotExist(err) {
                werr := os.WriteFile(marker, nil, 0666)
                raiseif(werr)
            }
        }
    }
    argv := append([]interface{}{"add", "--"}, stringsToIface(paths)...)
    r.git(argv...)
}

// Rm unstages/removes the given paths from the working tree and index.
func (r *PlainRepo) Rm(paths ...string) {
    argv := append([]interface{}{"rm", "-r", "--"}, stringsToIface(paths)...)
    r.git(argv...)
}

// Commit commits the index, skipping if there is nothing staged, matching
// spec.md §4.8's precondition that P's HEAD has already advanced before the
// commit pipeline mirrors it into E.
func (r *PlainRepo) Commit(msg string) (Sha1, bool) {
    diff := r.git("diff", "--cached", "--name-only")
    if strings.TrimSpace(diff) == "" {
        head, ok := r.TryHead()
        return head, ok
    }
    r.git("commit", "-m", msg)
    return r.Head(), true
}

func (r *PlainRepo) Head() Sha1 {
    sha1, err := Sha1Parse(r.git("rev-parse", "HEAD"))
    raiseif(err)
    return sha1
}

func (r *PlainRepo) TryHead() (Sha1, bool) {
    gerr, out, _ := r.gitErr("rev-parse", "--verify", "HEAD")
    if gerr != nil {
        return Sha1{}, false
    }
    sha1, err := Sha1Parse(out)
    if err != nil {
        return Sha1{}, false
    }
    return sha1, true
}

func (r *PlainRepo) gitErr(argv ...interface{}) (*RunError, string, string) {
    full := append([]interface{}{"--git-dir=" + r.GitDir, "--work-tree=" + r.WorkTree}, argv...)
    return ggit(full...)
}

// NameStatus parses `git diff --name-status -M -C <parent> <commit>` into
// the per-entry listing the commit pipeline (C8) state machine consumes.
func (r *PlainRepo) NameStatus(commit Sha1) []StatusEntry {
    parents := r.git("rev-list", "--parents", "-n", "1", commit)
    fields := strings.Fields(parents)

    var out string
    if len(fields) > 1 {
        out = r.git("diff", "--name-status", "-M", "-C", fields[1], fields[0])
    } else {
        // root commit: diff against the empty tree
        out = r.git("diff", "--name-status", "-M", "-C",
            "4b825dc642cb6eb9a060e54bf8d69288fbee4904", commit)
    }
    return parseNameStatus(out)
}

func parseNameStatus(raw string) []StatusEntry {
    entries := []StatusEntry{}
    for _, line := range splitlines(raw, "\n") {
        if line == "" {
            continue
        }
        fields := strings.Split(line, "\t")
        if len(fields) < 2 {
            continue
        }
        statuscode := fields[0]
        e := StatusEntry{Status: statuscode[:1]}
        if (e.Status == "R" || e.Status == "C") && len(fields) >= 3 {
            var sim int
            fmt.Sscanf(statuscode[1:], "%d", &sim)
            e.Similarity = sim
            e.OldPath = fields[1]
            e.Path = fields[2]
        } else {
            e.Path = fields[1]
        }
        entries = append(entries, e)
    }
    return entries
}

func (r *PlainRepo) Log(argv ...string) string {
    full := append([]interface{}{"log"}, stringsToIface(argv)...)
    return r.git(full...)
}

func (r *PlainRepo) Diff(argv ...string) string {
    full := append([]interface{}{"diff"}, stringsToIface(argv)...)
    return r.git(full...)
}

func (r *PlainRepo) Status(argv ...string) string {
    full := append([]interface{}{"status"}, stringsToIface(argv)...)
    return r.git(full...)
}

func (r *PlainRepo) LsFiles(argv ...string) string {
    full := append([]interface{}{"ls-files"}, stringsToIface(argv)...)
    return r.git(full...)
}

func stringsToIface(ss []string) []interface{} {
    out := make([]interface{}, len(ss))
    for i, s := range ss {
        out[i] = s
    }
    return out
}
