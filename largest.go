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

// Myba | `largest` command (§5 supplement): largest tracked plaintexts by
// decrypted size, read from the locally decrypted manifests + P's own
// working tree, without touching E's ciphertext.
package main

import (
    "fmt"
    "os"
    "sort"

    "lab.nexedi.com/kirr/myba/internal/manifest"
)

type sizedPath struct {
    Path string
    Size int64
}

// Largest prints the top n plaintext paths tracked in P, by on-disk size,
// deduplicated across every local manifest.
func Largest(cfg *Config, n int) {
    entries, err := os.ReadDir(cfg.ManifestDir())
    if err != nil {
        infof("# no local manifests under %s", cfg.ManifestDir())
        return
    }

    seen := StrSet{}
    var sized []sizedPath
    for _, ent := range entries {
        if ent.IsDir() {
            continue
        }
        raw, err := os.ReadFile(cfg.ManifestDir() + "/" + ent.Name())
        if err != nil {
            continue
        }
        mf, err := manifest.Decode(raw)
        if err != nil {
            continue
        }
        for _, e := range mf {
            if seen.Contains(e.PlainPath) {
                continue
            }
            seen.Add(e.PlainPath)
            info, err := os.Stat(cfg.WorkTree + "/" + e.PlainPath)
            if err != nil {
                continue
            }
            sized = append(sized, sizedPath{Path: e.PlainPath, Size: info.Size()})
        }
    }

    sort.Slice(sized, func(i, j int) bool { return sized[i].Size > sized[j].Size })
    if n > 0 && len(sized) > n {
        sized = sized[:n]
    }
    for _, s := range sized {
        fmt.Printf("%10d  %s\n", s.Size, s.Path)
    }
}
