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

// Myba | Replay engines (C10): restore (sequential and --squash) and
// reencrypt, per spec.md §4.10.
package main

import (
    "fmt"
    "os"
    "strings"

    "lab.nexedi.com/kirr/myba/internal/compress"
    "lab.nexedi.com/kirr/myba/internal/manifest"
)

// encCommitList returns E's commit history in topological, parent-before-child
// order - the order spec.md §4.10's sequential restore requires.
func (p *Pipeline) encCommitList() []Sha1 {
    out := p.Enc.git("rev-list", "--reverse", "HEAD")
    shas := []Sha1{}
    for _, line := range splitlines(out, "\n") {
        if line == "" {
            continue
        }
        sha1, err := Sha1Parse(line)
        raiseif(err)
        shas = append(shas, sha1)
    }
    return shas
}

// Restore sequentially replays E's history onto a fresh P: for each
// encrypted commit, oldest first, check it out, decrypt its manifest and
// message, and commit onto P with the original author/date/message.
func (p *Pipeline) Restore() {
    if head, ok := p.Plain.TryHead(); ok {
        raise(&AlreadyRestoredError{Sha1: head})
    }

    for _, encSha1 := range p.encCommitList() {
        p.restoreOneCommit(encSha1)
    }
}

func (p *Pipeline) restoreOneCommit(encSha1 Sha1) {
    p.Enc.SparseCone([]string{"manifest"})
    p.Enc.git("checkout", encSha1, "--", "manifest")

    msg := p.Enc.git("log", "-1", "--format=%B", encSha1)
    author, body, listing, err := p.decodeCommitMessage(msg)
    if err != nil {
        raise(err)
    }

    // manifests are named by plain commit hash (commit.go's stageManifest):
    // pick the one(s) this encrypted commit added or changed.
    var mf manifest.Manifest
    added := p.Enc.git("diff-tree", "--no-commit-id", "--name-only", "--diff-filter=AM", "-r", "--root", encSha1, "--", "manifest")
    for _, name := range splitlines(added, "\n") {
        ct, rerr := os.ReadFile(p.Enc.WorkTree + "/" + name)
        raiseif(rerr)
        gz, derr := p.Cipher.Decrypt("", ct)
        raiseif(derr)
        m, err := manifest.Decode(compress.MaybeGunzip(gz))
        raiseif(err)
        mf = append(mf, m...)
    }

    if len(mf) == 0 && strings.TrimSpace(listing) == "" {
        return // metadata-only / no staged changes: skip
    }

    prefixes := StrSet{}
    for _, e := range mf {
        prefixes.Add(encPathDir(e.EncPath))
    }
    p.Enc.SparseCone(append([]string{"manifest"}, prefixes.Elements()...))
    p.Enc.git("checkout", encSha1, "--", ".")

    for _, e := range mf {
        ct, err := os.ReadFile(p.Enc.WorkTree + "/" + e.EncPath)
        raiseif(err)
        gz, err := p.Cipher.Decrypt(e.PlainPath, ct)
        raiseif(err)
        plain := compress.MaybeGunzip(gz)

        dst := p.Plain.WorkTree + "/" + e.PlainPath
        raiseif(os.MkdirAll(parentDir(dst), 0777))
        raiseif(os.WriteFile(dst, plain, 0666))
        p.Plain.Add(e.PlainPath)
    }

    tree := p.Plain.git("write-tree")
    treeSha1, err := Sha1Parse(tree)
    raiseif(err)

    parents := []Sha1{}
    if head, ok := p.Plain.TryHead(); ok {
        parents = append(parents, head)
    }
    // author is also used as committer: the encoded message (commit.go's
    // encodeCommitMessage) only carries one identity+date pair, matching
    // spec.md §4.10's "recover ... the original author+date."
    commitSha1 := xcommit_tree2(p.Plain.GitDir, treeSha1, parents, body, author, author)
    p.Plain.git("update-ref", "HEAD", commitSha1)
}

// RestoreSquash implements spec.md §4.10's squash variant: aggregate the
// union of all local manifests, decrypt each file once, and make a single
// commit.
func (p *Pipeline) RestoreSquash() {
    entries, err := os.ReadDir(p.Cfg.ManifestDir())
    if err != nil {
        raisef("decrypt --squash: no local manifests under %s", p.Cfg.ManifestDir())
    }

    all := manifest.Manifest{}
    for _, ent := range entries {
        if ent.IsDir() {
            continue
        }
        raw, err := os.ReadFile(p.Cfg.ManifestDir() + "/" + ent.Name())
        if err != nil {
            continue
        }
        mf, err := manifest.Decode(raw)
        if err != nil {
            continue
        }
        all = append(all, mf...)
    }
    agg := manifest.Sorted(all)

    prefixes := StrSet{}
    for _, e := range agg {
        prefixes.Add(encPathDir(e.EncPath))
    }
    p.Enc.SparseCone(append([]string{"manifest"}, prefixes.Elements()...))
    p.Enc.git("checkout", "HEAD", "--", ".")

    for _, e := range agg {
        ct, err := os.ReadFile(p.Enc.WorkTree + "/" + e.EncPath)
        raiseif(err)
        gz, err := p.Cipher.Decrypt(e.PlainPath, ct)
        raiseif(err)
        plain := compress.MaybeGunzip(gz)

        dst := p.Plain.WorkTree + "/" + e.PlainPath
        raiseif(os.MkdirAll(parentDir(dst), 0777))
        raiseif(os.WriteFile(dst, plain, 0666))
        p.Plain.Add(e.PlainPath)
    }

    p.Plain.Commit(fmt.Sprintf("Restore at %s", p.Enc.Head()))
}

// Reencrypt rewrites E under a new password: disable sparse-checkout,
// clear every tracked entry except the self-bootstrap copy, then walk P's
// history oldest-to-newest, checking out each commit into a fresh scratch
// directory and running the commit pipeline (C8) against that throwaway
// tree instead of P's live working tree - so every replayed commit is
// encrypted from the plaintext that existed at that point in P's history,
// not whatever currently sits on disk (spec.md §4.10).
func (p *Pipeline) Reencrypt(newPassword string) {
    origPlainHead, _ := p.Plain.TryHead()
    origEncHead, _ := p.Enc.TryHead()
    // put both HEADs back only if the replay below did not complete
    completed := false
    globalCleanup.Push(func() {
        if completed {
            return
        }
        if origEncHead != (Sha1{}) {
            p.Enc.git("update-ref", "HEAD", origEncHead)
        }
        if origPlainHead != (Sha1{}) {
            p.Plain.git("update-ref", "HEAD", origPlainHead)
        }
    })

    p.Enc.git("sparse-checkout", "disable")
    p.clearEncTree()

    newCfg := *p.Cfg
    newCfg.Password = newPassword
    newPipeline := NewPipeline(&newCfg, p.Plain, p.Enc)

    for _, commitSha1 := range p.plainCommitList() {
        p.reencryptOneCommit(newPipeline, commitSha1)
    }
    completed = true
}

// reencryptOneCommit materializes commitSha1's tree into a scratch
// directory and runs newPipeline.Commit against it, so encryptPath
// (commit.go) reads that historical content instead of P's live worktree.
func (p *Pipeline) reencryptOneCommit(newPipeline *Pipeline, commitSha1 Sha1) {
    scratch, err := os.MkdirTemp("", "myba-reencrypt-")
    raiseif(err)
    defer os.RemoveAll(scratch)

    p.Plain.CheckoutTreeInto(commitSha1, scratch)

    newPipeline.SrcRoot = scratch
    newPipeline.Commit(commitSha1)
}

// clearEncTree removes every tracked path in E's index except the
// self-bootstrap binary, committing the removal before replay begins.
func (p *Pipeline) clearEncTree() {
    out := p.Enc.git("ls-files")
    var toRemove []string
    for _, line := range splitlines(out, "\n") {
        if line == "" || line == "myba" {
            continue
        }
        toRemove = append(toRemove, line)
    }
    if len(toRemove) == 0 {
        return
    }
    p.Enc.Rm(toRemove...)
    p.Enc.Commit("Clear tracked entries before reencrypt")
}

// plainCommitList returns P's commit history, oldest first.
func (p *Pipeline) plainCommitList() []Sha1 {
    out := p.Plain.git("rev-list", "--reverse", "HEAD")
    shas := []Sha1{}
    for _, line := range splitlines(out, "\n") {
        if line == "" {
            continue
        }
        sha1, err := Sha1Parse(line)
        raiseif(err)
        shas = append(shas, sha1)
    }
    return shas
}
