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

// Myba | Remote & GC orchestrator (C11), per spec.md §4.11.
package main

import (
    "os"
    "path/filepath"
    "strings"
    "time"
)

// gcQuiesce is the pause between push completion and gc, giving the VCS's
// own background gc time to quiesce before this process starts trimming
// pack files underneath it (spec.md §5).
const gcQuiesce = 200 * time.Millisecond

// AddRemote registers name->url on E as a promisor remote, per spec.md
// §4.11's first line.
func (p *Pipeline) AddRemote(name, url string) {
    p.Enc.AddRemote(name, url)
}

// Push pushes to remote, or to every registered remote if remote is "", then
// refetches promisor state and runs gc (spec.md §4.11).
func (p *Pipeline) Push(remote string) {
    remotes := []string{remote}
    if remote == "" {
        remotes = p.Enc.RemoteNames()
    }
    for _, r := range remotes {
        p.Enc.Push(r, gitprogress())
    }
    p.Enc.git2([]string{"fetch", "--refetch", "--all"}, RunWith{stderr: gitprogress()})
    time.Sleep(gcQuiesce)
    p.GC()
}

// Pull pulls from remote (or E's default) and refreshes decrypted
// manifests, per spec.md §4.11.
func (p *Pipeline) Pull(remote string) {
    p.Enc.Pull(remote, gitprogress())
    p.decryptManifestsOnDisk()
}

// GC reduces E's sparse cone to manifest/ and, for every local packfile,
// drops a sibling .promisor marker and deletes the .pack/.idx, per
// spec.md §4.11's gc definition.
func (p *Pipeline) GC() {
    p.Enc.SparseCone([]string{"manifest"})

    packDir := p.Enc.GitDir + "/.git/objects/pack"
    entries, err := os.ReadDir(packDir)
    if err != nil {
        return
    }
    for _, ent := range entries {
        if !strings.HasSuffix(ent.Name(), ".pack") {
            continue
        }
        base := strings.TrimSuffix(ent.Name(), ".pack")
        promisor := filepath.Join(packDir, base+".promisor")
        raiseif(os.WriteFile(promisor, nil, 0666))
        raiseif(os.Remove(filepath.Join(packDir, base+".pack")))
        idx := filepath.Join(packDir, base+".idx")
        if _, err := os.Stat(idx); err == nil {
            raiseif(os.Remove(idx))
        }
    }
}

// Clone partial-clones url with blob:none into cfg.EncryptedRepo(), runs
// init-like configuration on P, prompts for the password, and decrypts
// manifests - per spec.md §4.11's clone definition.
func Clone(cfg *Config, url string) *Pipeline {
    encDir := cfg.EncryptedRepo()
    raiseif(os.MkdirAll(encDir, 0777))
    xrun("git", "clone", "--filter=blob:none", "--no-checkout", url, encDir)

    enc := OpenEncRepo(encDir)
    enc.git("config", "core.bigFileThreshold", "100")
    enc.git("config", "push.default", "current")
    enc.git("config", "core.sparseCheckout", "true")
    enc.git("config", "core.sparseCheckoutCone", "true")
    enc.SparseCone([]string{"manifest"})
    enc.git("checkout", "HEAD")

    plain := InitPlainRepo(cfg.PlainRepo, cfg.WorkTree)

    if cfg.Password == "" {
        cfg.Password = ResolvePassword(cfg)
    }
    pipeline := NewPipeline(cfg, plain, enc)
    pipeline.decryptManifestsOnDisk()
    return pipeline
}
