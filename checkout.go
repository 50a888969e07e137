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

// Myba | Checkout/decrypt pipeline (C9): the three input shapes of
// spec.md §4.9 - plain commit, encrypted commit, or plaintext path patterns.
package main

import (
    "fmt"
    "os"
    "path/filepath"
    "regexp"
    "sort"
    "strings"

    "lab.nexedi.com/kirr/myba/internal/compress"
    "lab.nexedi.com/kirr/myba/internal/manifest"
    "lab.nexedi.com/kirr/myba/internal/workerpool"
)

// Checkout dispatches on arg[0] per spec.md §4.9/§6: a plain commit-ish, an
// encrypted commit-ish, or (the fallback) a set of plaintext path patterns.
func (p *Pipeline) Checkout(args []string) {
    if len(args) > 0 {
        if gerr, _, _ := p.Plain.gitErr("rev-parse", "--verify", args[0]); gerr == nil {
            p.checkoutPlainCommit(args[0])
            return
        }
        if gerr, _, _ := p.Enc.gitErr2([]string{"rev-parse", "--verify", args[0]}, RunWith{}); gerr == nil {
            p.checkoutEncCommit(args[0])
            return
        }
    }
    p.checkoutPathPatterns(args)
}

// checkoutPlainCommit delegates straight to P's own checkout; E is untouched.
func (p *Pipeline) checkoutPlainCommit(commitish string) {
    p.Plain.git("checkout", commitish, "--", ".")
}

// checkoutEncCommit reduces E's cone to manifest/, checks it out, and
// decrypts the manifests recovered into P/manifest/.
func (p *Pipeline) checkoutEncCommit(commitish string) {
    p.Enc.SparseCone([]string{"manifest"})
    p.Enc.git("checkout", commitish, "--", "manifest")
    p.decryptManifestsOnDisk()
}

// decryptManifestsOnDisk decrypts every manifest/* blob currently present in
// E's working tree into P's plaintext manifest/ directory. Wrong-password
// failures are reported per-manifest and the bad file removed, so a retry
// with the correct password starts clean (spec.md §7/§8 scenario 6).
func (p *Pipeline) decryptManifestsOnDisk() {
    dir := p.Enc.WorkTree + "/manifest"
    entries, err := os.ReadDir(dir)
    if err != nil {
        return
    }
    raiseif(os.MkdirAll(p.Cfg.ManifestDir(), 0777))

    anyFailed := false
    for _, ent := range entries {
        if ent.IsDir() {
            continue
        }
        ct, err := os.ReadFile(dir + "/" + ent.Name())
        raiseif(err)
        gz, err := p.Cipher.Decrypt("", ct)
        if err != nil {
            infof("W: manifest %s: cipher failure (%s), skipped", ent.Name(), err)
            anyFailed = true
            continue
        }
        raw := compress.MaybeGunzip(gz)
        if strings.IndexByte(string(raw), 0) >= 0 {
            infof("W: manifest %s: decrypts to NUL-containing data (wrong password?), removing", ent.Name())
            os.Remove(dir + "/" + ent.Name())
            anyFailed = true
            continue
        }
        raiseif(os.WriteFile(p.Cfg.ManifestDir()+"/"+ent.Name(), raw, 0666))
    }
    if anyFailed {
        raisef("decrypt: one or more manifests failed to decrypt")
    }
}

// checkoutPathPatterns implements spec.md §4.9 shape 3: scan local
// manifests for plaintext-path matches, reduce E's cone to the matched
// enc-path parent directories, and decrypt each match into W.
func (p *Pipeline) checkoutPathPatterns(patterns []string) {
    matches := p.scanManifestsForPatterns(patterns)
    if len(matches) == 0 {
        infof("# no tracked paths match given pattern(s)")
        return
    }

    prefixes := StrSet{"manifest": {}}
    for _, m := range matches {
        prefixes.Add(encPathDir(m.EncPath))
    }
    p.Enc.SparseCone(append([]string{"manifest"}, prefixes.Elements()...))
    p.Enc.git("checkout", "HEAD", "--", ".")

    jobs := make([]workerpool.Job, len(matches))
    for i, m := range matches {
        m := m
        jobs[i] = workerpool.Job{Fn: func() (string, string, error) {
            return p.decryptOne(m)
        }}
    }
    if err := p.Pool.Run(jobs); err != nil {
        raise(err)
    }
}

type manifestMatch struct {
    EncPath   string
    PlainPath string
}

// scanManifestsForPatterns reads every P/manifest/* file and collects lines
// whose plaintext side matches ^<pattern>(/|$), deduplicated-sorted.
func (p *Pipeline) scanManifestsForPatterns(patterns []string) []manifestMatch {
    regexes := make([]*regexp.Regexp, len(patterns))
    for i, pat := range patterns {
        regexes[i] = regexp.MustCompile("^" + regexp.QuoteMeta(pat) + `(/|$)`)
    }

    seen := map[string]manifestMatch{}
    entries, err := os.ReadDir(p.Cfg.ManifestDir())
    if err != nil {
        return nil
    }
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
        for _, e := range mf {
            for _, re := range regexes {
                if re.MatchString(e.PlainPath) {
                    seen[e.EncPath] = manifestMatch{EncPath: e.EncPath, PlainPath: e.PlainPath}
                    break
                }
            }
        }
    }

    out := make([]manifestMatch, 0, len(seen))
    for _, m := range seen {
        out = append(out, m)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].EncPath < out[j].EncPath })
    return out
}

// decryptOne reads the ciphertext at m.EncPath from E's working tree,
// decrypts+decompresses it, and writes it to W/m.PlainPath, honoring the
// overwrite policy of spec.md §4.9.
func (p *Pipeline) decryptOne(m manifestMatch) (stdout, stderr string, err error) {
    ct, err := os.ReadFile(p.Enc.WorkTree + "/" + m.EncPath)
    if err != nil {
        return "", "", err
    }
    gz, err := p.Cipher.Decrypt(m.PlainPath, ct)
    if err != nil {
        return "", "", &WrongPasswordError{Err: err}
    }
    plain := compress.MaybeGunzip(gz)

    dst := p.Plain.WorkTree + "/" + m.PlainPath
    if _, statErr := os.Stat(dst); statErr == nil {
        if !ConfirmOverwrite(m.PlainPath, p.Cfg.YesOverwrite) {
            return "", "", &OverwriteRefusedError{Path: m.PlainPath}
        }
    }

    if err := os.MkdirAll(filepath.Dir(dst), 0777); err != nil {
        return "", "", err
    }
    if err := os.WriteFile(dst, plain, 0666); err != nil {
        return "", "", err
    }
    return "", fmt.Sprintf("# %s\t-> %s\n", m.EncPath, m.PlainPath), nil
}

// encPathDir truncates an enc-path to its parent directory, as cone-mode
// sparse-checkout requires directory prefixes (spec.md §4.9).
func encPathDir(encPath string) string {
    i := strings.LastIndex(encPath, "/")
    if i < 0 {
        return encPath
    }
    return encPath[:i]
}
