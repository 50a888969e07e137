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

// Package manifest encodes/decodes the per-commit (enc_path, plain_path)
// listing described in spec.md §3/§4.4.
package manifest

import (
    "fmt"
    "sort"
    "strings"

    "lab.nexedi.com/kirr/myba/internal/compress"
)

// Entry binds one tracked file's encrypted path to its plaintext path.
type Entry struct {
    EncPath   string
    PlainPath string
}

// Manifest is an ordered list of entries; order is insertion order of the
// commit walk (spec.md §3), not sorted, unless explicitly aggregated.
type Manifest []Entry

// Encode renders m as "<enc>\t<plain>\n" lines, in m's own order - no
// escaping, matching spec.md §4.4 (paths with TAB/newline are ill-formed
// input, out of scope).
func Encode(m Manifest) []byte {
    var sb strings.Builder
    for _, e := range m {
        fmt.Fprintf(&sb, "%s\t%s\n", e.EncPath, e.PlainPath)
    }
    return []byte(sb.String())
}

// Decode parses the plaintext manifest form produced by Encode.
func Decode(raw []byte) (Manifest, error) {
    m := Manifest{}
    lines := strings.Split(string(raw), "\n")
    for i, line := range lines {
        if line == "" {
            if i == len(lines)-1 {
                continue // trailing newline
            }
        }
        if line == "" {
            continue
        }
        enc, plain, ok := strings.Cut(line, "\t")
        if !ok {
            return nil, fmt.Errorf("manifest: malformed line %q", line)
        }
        m = append(m, Entry{EncPath: enc, PlainPath: plain})
    }
    return m, nil
}

// GzipEncode is Gzip(Encode(m)), the form staged before encryption
// (spec.md §4.4: "gzip(-2) then encrypt("", ...)").
func GzipEncode(m Manifest) []byte {
    return compress.Gzip(Encode(m))
}

// GzipDecode reverses GzipEncode.
func GzipDecode(raw []byte) (Manifest, error) {
    return Decode(compress.MaybeGunzip(raw))
}

// Sorted returns a copy of m sorted and deduplicated by EncPath, the form
// used when aggregating manifests across commits (spec.md §3:
// "sorted-unique when aggregated").
func Sorted(m Manifest) Manifest {
    seen := map[string]bool{}
    out := make(Manifest, 0, len(m))
    for _, e := range m {
        if seen[e.EncPath] {
            continue
        }
        seen[e.EncPath] = true
        out = append(out, e)
    }
    sort.Slice(out, func(i, j int) bool { return out[i].EncPath < out[j].EncPath })
    return out
}

// Merge aggregates multiple manifests into one sorted-unique manifest, used
// by decrypt --squash (spec.md §4.10) to union all local manifests.
func Merge(manifests ...Manifest) Manifest {
    all := Manifest{}
    for _, m := range manifests {
        all = append(all, m...)
    }
    return Sorted(all)
}
