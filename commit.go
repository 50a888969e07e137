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

// Myba | Commit pipeline (C8): mirrors P's HEAD into an encrypted commit on
// E, implementing the per-entry name-status state machine of spec.md §4.8.
package main

import (
    "encoding/base64"
    "fmt"
    "os"
    "strings"

    "lab.nexedi.com/kirr/myba/internal/cipher"
    "lab.nexedi.com/kirr/myba/internal/compress"
    "lab.nexedi.com/kirr/myba/internal/encpath"
    "lab.nexedi.com/kirr/myba/internal/manifest"
    "lab.nexedi.com/kirr/myba/internal/workerpool"
)

// Pipeline bundles the facades and primitives every C8/C9/C10 operation
// needs, threaded explicitly instead of living behind package-level
// globals.
type Pipeline struct {
    Cfg    *Config
    Plain  *PlainRepo
    Enc    *EncRepo
    Cipher cipher.Cipher
    Pool   *workerpool.Pool

    // SrcRoot, if set, is read instead of Plain.WorkTree when encrypting
    // plaintext - the reencrypt replay (C10) points this at a scratch
    // checkout of a historical commit instead of P's live working tree.
    SrcRoot string
}

// readRoot is the directory encryptPath reads plaintext from: Plain.WorkTree
// normally, or SrcRoot when replaying a historical commit (spec.md §4.10).
func (p *Pipeline) readRoot() string {
    if p.SrcRoot != "" {
        return p.SrcRoot
    }
    return p.Plain.WorkTree
}

// NewPipeline wires the cipher primitive chosen by Cfg.UseGPG, per
// spec.md §4.1's two interchangeable modes.
func NewPipeline(cfg *Config, plain *PlainRepo, enc *EncRepo) *Pipeline {
    var c cipher.Cipher
    if cfg.UseGPG {
        c = &cipher.GPGCipher{Password: cfg.Password, S2KCount: cfg.GpgS2KCount}
    } else {
        c = &cipher.OpenSSLCipher{Password: cfg.Password, Iters: cfg.KdfIters}
    }
    return &Pipeline{
        Cfg: cfg, Plain: plain, Enc: enc, Cipher: c,
        Pool: workerpool.New(cfg.NJobs),
    }
}

// encryptedJob is the outcome of encrypting one plain path in the parallel
// phase, consumed by the serial VCS-mutation phase that follows it
// (spec.md §4.8's "encrypt phase, parallelizable" / "VCS phase, serial" split).
type encryptedJob struct {
    entry    StatusEntry
    encPath  string
    diskPath string // path under Enc.WorkTree where ciphertext was written
    size     int64
}

// Commit mirrors the plain commit at plainSha1 into E. Preconditions:
// plainSha1 is already P's HEAD (spec.md §4.8).
func (p *Pipeline) Commit(plainSha1 Sha1) Sha1 {
    entries := p.Plain.NameStatus(plainSha1)

    p.bootstrapSelf()

    jobs := make([]workerpool.Job, 0, len(entries))
    results := make([]*encryptedJob, len(entries))
    for i, e := range entries {
        i, e := i, e
        switch e.Status {
        case "A", "M":
            jobs = append(jobs, workerpool.Job{Fn: func() (string, string, error) {
                ej, err := p.encryptPath(e)
                if err != nil {
                    return "", "", err
                }
                results[i] = ej
                return "", "", nil
            }})
        case "T":
            jobs = append(jobs, workerpool.Job{Fn: func() (string, string, error) {
                ej, err := p.handleTypeChange(e)
                warn := fmt.Sprintf("W: %s: type change, best-effort copy\n", e.Path)
                if err != nil {
                    return "", warn, err
                }
                results[i] = ej
                return "", warn, nil
            }})
        case "R", "C":
            jobs = append(jobs, workerpool.Job{Fn: func() (string, string, error) {
                ej, err := p.encryptPath(e)
                if err != nil {
                    return "", "", err
                }
                results[i] = ej
                return "", "", nil
            }})
        case "D":
            // nothing to encrypt
        case "U":
            jobs = append(jobs, workerpool.Job{Fn: func() (string, string, error) {
                return "", fmt.Sprintf("W: %s: unmerged entry skipped\n", e.Path), nil
            }})
        default:
            jobs = append(jobs, workerpool.Job{Fn: func() (string, string, error) {
                return "", "", &UnsupportedEntryError{Status: e.Status, Path: e.Path}
            }})
        }
    }

    if err := p.Pool.Run(jobs); err != nil {
        raise(err)
    }

    mf := manifest.Manifest{}
    var addPaths []string
    var rmPaths []string

    p.Enc.WithRemotesHidden(func() {
        for i, e := range entries {
            switch e.Status {
            case "A", "M", "T":
                ej := results[i]
                if ej == nil {
                    continue
                }
                p.promoteLFSIfNeeded(ej)
                addPaths = append(addPaths, ej.encPath)
                mf = append(mf, manifest.Entry{EncPath: ej.encPath, PlainPath: e.Path})
            case "R":
                oldEnc := encpath.Derive(e.OldPath, p.Cfg.Password)
                rmPaths = append(rmPaths, oldEnc)
                ej := results[i]
                if ej != nil {
                    p.promoteLFSIfNeeded(ej)
                    addPaths = append(addPaths, ej.encPath)
                    mf = append(mf, manifest.Entry{EncPath: ej.encPath, PlainPath: e.Path})
                }
            case "C":
                ej := results[i]
                if ej != nil {
                    p.promoteLFSIfNeeded(ej)
                    addPaths = append(addPaths, ej.encPath)
                    mf = append(mf, manifest.Entry{EncPath: ej.encPath, PlainPath: e.Path})
                }
            case "D":
                oldEnc := encpath.Derive(e.Path, p.Cfg.Password)
                rmPaths = append(rmPaths, oldEnc)
            }
        }

        if len(addPaths) > 0 {
            p.Enc.Add(addPaths...)
        }
        for _, rp := range rmPaths {
            p.Enc.Rm(rp)
            p.Enc.UntrackLFS(rp)
        }
    })

    p.stageManifest(plainSha1, mf)

    msg := p.encodeCommitMessage(plainSha1, entries)
    return p.Enc.Commit(msg)
}

// encryptPath encrypts the plain path named by e (its new path for
// renames/copies) and writes the ciphertext under E's working tree at
// enc_path(plain_path, password). Pepper is the plaintext path, per
// spec.md §4.1.
func (p *Pipeline) encryptPath(e StatusEntry) (*encryptedJob, error) {
    data, err := os.ReadFile(p.readRoot() + "/" + e.Path)
    if err != nil {
        return nil, err
    }
    return p.encryptData(e, data)
}

// handleTypeChange implements spec.md §4.8's T (type-change) entry: if the
// new path is now a regular file it is treated exactly like A/M; otherwise
// it is a best-effort copy of whatever raw bytes the filesystem entry
// resolves to (currently: a symlink's target). The caller always emits a
// warning regardless of which branch is taken.
func (p *Pipeline) handleTypeChange(e StatusEntry) (*encryptedJob, error) {
    full := p.readRoot() + "/" + e.Path
    info, err := os.Lstat(full)
    if err != nil {
        return nil, err
    }
    if info.Mode().IsRegular() {
        return p.encryptPath(e)
    }
    if info.Mode()&os.ModeSymlink != 0 {
        target, err := os.Readlink(full)
        if err != nil {
            return nil, err
        }
        return p.encryptData(e, []byte(target))
    }
    return nil, fmt.Errorf("%s: unsupported non-regular file type %s, skipped", e.Path, info.Mode())
}

// encryptData is the common tail of encryptPath/handleTypeChange: compress,
// encrypt, and write data (whatever its source) to E's working tree at
// enc_path(e.Path, password).
func (p *Pipeline) encryptData(e StatusEntry, data []byte) (*encryptedJob, error) {
    plainPath := e.Path
    body := data
    if !compress.IsBinary(data) {
        body = compress.Gzip(data)
    }

    ct, err := p.Cipher.Encrypt(plainPath, body)
    if err != nil {
        return nil, &CipherError{Op: "encrypt", Err: err}
    }

    enc := encpath.Derive(plainPath, p.Cfg.Password)
    diskPath := p.Enc.WorkTree + "/" + enc
    if err := os.MkdirAll(parentDir(diskPath), 0777); err != nil {
        return nil, err
    }
    if err := os.WriteFile(diskPath, ct, 0666); err != nil {
        return nil, err
    }

    return &encryptedJob{entry: e, encPath: enc, diskPath: diskPath, size: int64(len(ct))}, nil
}

func (p *Pipeline) promoteLFSIfNeeded(ej *encryptedJob) {
    if ej.size > p.Cfg.LfsThreshold {
        p.Enc.TrackLFS(ej.encPath)
    }
}

// bootstrapSelf commits a copy of the running binary into E's root, once,
// the first time E has no prior commit (spec.md §4.8 self-bootstrap).
func (p *Pipeline) bootstrapSelf() {
    if _, ok := p.Enc.TryHead(); ok {
        return
    }
    self, err := os.Executable()
    if err != nil {
        debugf("# self-bootstrap: cannot resolve executable: %s (skipped)", err)
        return
    }
    data, err := os.ReadFile(self)
    if err != nil {
        debugf("# self-bootstrap: cannot read executable: %s (skipped)", err)
        return
    }
    dst := p.Enc.WorkTree + "/myba"
    raiseif(os.WriteFile(dst, data, 0777))
    p.Enc.Add("myba")
}

// stageManifest writes the plaintext manifest under P/manifest/<hash> and,
// if non-empty, its ciphertext twin into E/manifest/<hash> (spec.md §4.8,
// §4.4: "a zero-length manifest is not committed").
func (p *Pipeline) stageManifest(plainSha1 Sha1, mf manifest.Manifest) {
    manifestDir := p.Cfg.ManifestDir()
    raiseif(os.MkdirAll(manifestDir, 0777))
    plainManifestPath := manifestDir + "/" + plainSha1.String()
    raiseif(os.WriteFile(plainManifestPath, manifest.Encode(mf), 0666))

    if len(mf) == 0 {
        return
    }

    gz := manifest.GzipEncode(mf)
    ct, err := p.Cipher.Encrypt("", gz)
    raiseif(err)

    encManifestDir := p.Enc.WorkTree + "/manifest"
    raiseif(os.MkdirAll(encManifestDir, 0777))
    encManifestPath := encManifestDir + "/" + plainSha1.String()
    raiseif(os.WriteFile(encManifestPath, ct, 0666))
    p.Enc.Add("manifest/" + plainSha1.String())
}

// encodeCommitMessage builds base64(ciphertext(gzip(author-header + %B +
// name-status))), per spec.md §3's "Encrypted commit message" with an empty
// pepper. The author header ("name\temail\tdate") lets the replay engine
// (C10) recover and reapply P's original author identity and date, per
// spec.md §4.10/§8.
func (p *Pipeline) encodeCommitMessage(plainSha1 Sha1, entries []StatusEntry) string {
    name := p.Plain.git("log", "-1", "--format=%an", plainSha1)
    email := p.Plain.git("log", "-1", "--format=%ae", plainSha1)
    date := p.Plain.git("log", "-1", "--format=%aI", plainSha1)
    header := fmt.Sprintf("%s\t%s\t%s", name, email, date)

    body := p.Plain.git("log", "-1", "--format=%B", plainSha1)
    listing := ""
    for _, e := range entries {
        if e.OldPath != "" {
            listing += fmt.Sprintf("%s\t%s\t%s\n", e.Status, e.OldPath, e.Path)
        } else {
            listing += fmt.Sprintf("%s\t%s\n", e.Status, e.Path)
        }
    }

    gz := compress.Gzip([]byte(header + "\x00" + body + "\x00" + listing))
    ct, err := p.Cipher.Encrypt("", gz)
    raiseif(err)
    return base64.StdEncoding.EncodeToString(ct)
}

// decodeCommitMessage reverses encodeCommitMessage, recovering the original
// author/date alongside the commit body and name-status listing.
func (p *Pipeline) decodeCommitMessage(msg string) (author AuthorInfo, body, listing string, err error) {
    raw, err := base64.StdEncoding.DecodeString(msg)
    if err != nil {
        return AuthorInfo{}, "", "", err
    }
    gz, err := p.Cipher.Decrypt("", raw)
    if err != nil {
        return AuthorInfo{}, "", "", &WrongPasswordError{Err: err}
    }
    plain := compress.MaybeGunzip(gz)

    header, rest, err := headtail(string(plain), "\x00")
    if err != nil {
        return AuthorInfo{}, "", "", err
    }
    body, listing, err = split2(rest, "\x00")
    if err != nil {
        return AuthorInfo{}, "", "", err
    }

    fields := strings.SplitN(header, "\t", 3)
    if len(fields) == 3 {
        author = AuthorInfo{name: fields[0], email: fields[1], date: fields[2]}
    }
    return author, body, listing, nil
}

func parentDir(path string) string {
    i := len(path) - 1
    for i >= 0 && path[i] != '/' {
        i--
    }
    if i < 0 {
        return "."
    }
    return path[:i]
}
