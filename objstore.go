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

// Myba | Low-level blob/commit primitives shared by the plain and
// encrypted repo facades: turn a file into a blob and back, and run
// `git commit-tree` with explicit author/committer metadata so replay (C10)
// can reproduce a plain commit's original author, date and message exactly.
package main

import (
    "os"
    pathpkg "path"
    "strings"
    "syscall"
)

// file -> blob_sha1, mode, written into gitDir's object database. Not called
// by the commit or replay pipelines, which stage files with `git add`.
func file_to_blob(gitDir, path string) (Sha1, uint32) {
    argv := []string{"hash-object", "-w", "--no-filters"}
    stdin := ""

    var st syscall.Stat_t
    err := syscall.Lstat(path, &st)
    if err != nil {
        raise(&os.PathError{Op: "lstat", Path: path, Err: err})
    }

    if st.Mode&syscall.S_IFMT == syscall.S_IFLNK {
        argv = append(argv, "--stdin")
        stdin, err = os.Readlink(path)
        raiseif(err)
    } else {
        argv = append(argv, "--", path)
    }

    full := append([]string{"--git-dir=" + gitDir}, argv...)
    blob_sha1 := xgit2Sha1(full, RunWith{stdin: stdin})
    return blob_sha1, st.Mode
}

// blob_sha1, mode -> file at path. Not called by the checkout/decrypt
// pipeline (C9), which writes decrypted plaintext with os.WriteFile.
func blob_to_file(gitDir string, blob_sha1 Sha1, mode uint32, path string) {
    blob_content := xgitDir(gitDir, "cat-file", "blob", blob_sha1, RunWith{raw: true})

    err := os.MkdirAll(pathpkg.Dir(path), 0777)
    raiseif(err)

    if mode&syscall.S_IFMT == syscall.S_IFLNK {
        err = os.Symlink(blob_content, path)
        raiseif(err)
    } else {
        err = writefile(path, Bytes(blob_content), mode)
        raiseif(err)
    }
}

// AuthorInfo carries the author/committer identity+date triple that replay
// (C10) must reproduce exactly from a decrypted plain-commit's metadata.
type AuthorInfo struct {
    name  string
    email string
    date  string
}

// envWithOverrides copies the current process environment into a map and
// applies overrides on top, for subprocess calls (RunWith.env) that need to
// set one or two variables without losing the rest of the environment
// (PATH, HOME, ...) the way a bare `env = map{...}` assignment would.
func envWithOverrides(overrides map[string]string) map[string]string {
    env := map[string]string{}
    for _, e := range os.Environ() {
        i := strings.Index(e, "=")
        if i == -1 {
            continue
        }
        env[e[:i]] = e[i+1:]
    }
    for k, v := range overrides {
        env[k] = v
    }
    return env
}

// xcommit_tree2 runs `git commit-tree` against gitDir with explicit
// author/committer env, so a replayed commit can carry the original plain
// commit's identity and date instead of the replaying process's own.
func xcommit_tree2(gitDir string, tree Sha1, parents []Sha1, msg string, author, committer AuthorInfo) Sha1 {
    argv := []string{"--git-dir=" + gitDir, "commit-tree", tree.String()}
    for _, p := range parents {
        argv = append(argv, "-p", p.String())
    }

    overrides := map[string]string{}
    if author.name != "" {
        overrides["GIT_AUTHOR_NAME"] = author.name
    }
    if author.email != "" {
        overrides["GIT_AUTHOR_EMAIL"] = author.email
    }
    if author.date != "" {
        overrides["GIT_AUTHOR_DATE"] = author.date
    }
    if committer.name != "" {
        overrides["GIT_COMMITTER_NAME"] = committer.name
    }
    if committer.email != "" {
        overrides["GIT_COMMITTER_EMAIL"] = committer.email
    }
    if committer.date != "" {
        overrides["GIT_COMMITTER_DATE"] = committer.date
    }

    return xgit2Sha1(argv, RunWith{stdin: msg, env: envWithOverrides(overrides)})
}

func xcommit_tree(gitDir string, tree Sha1, parents []Sha1, msg string) Sha1 {
    return xcommit_tree2(gitDir, tree, parents, msg, AuthorInfo{}, AuthorInfo{})
}

// mktree_empty returns the sha1 of the canonical empty tree for gitDir.
func mktree_empty(gitDir string) Sha1 {
    return xgitSha1("--git-dir="+gitDir, "mktree", RunWith{stdin: ""})
}

