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

// Package compress implements the text/binary heuristic and self-describing
// gzip framing from spec.md §4.3. Stdlib compress/gzip is used deliberately
// (see DESIGN.md): the self-describing decode depends on byte-identical
// RFC1952 framing, which is exactly what the standard library already
// produces.
package compress

import (
    "bytes"
    "compress/gzip"
    "io"
)

const sniffLen = 8 * 1024

// IsBinary classifies data as binary if any NUL byte appears in the first
// 8KiB, per spec.md §4.3.
func IsBinary(data []byte) bool {
    sample := data
    if len(sample) > sniffLen {
        sample = sample[:sniffLen]
    }
    return bytes.IndexByte(sample, 0) >= 0
}

// Gzip compresses data at level 2, the level spec.md §4.3/§4.4 fixes for
// textual blobs and manifests.
func Gzip(data []byte) []byte {
    var buf bytes.Buffer
    w, err := gzip.NewWriterLevel(&buf, 2)
    if err != nil {
        // gzip.NewWriterLevel only errors on an out-of-range level constant
        panic(err)
    }
    _, err = w.Write(data)
    if err != nil {
        panic(err)
    }
    if err := w.Close(); err != nil {
        panic(err)
    }
    return buf.Bytes()
}

// MaybeGunzip attempts a gzip integrity test on data; on success it returns
// the inflated bytes, else it returns data unchanged. This is what makes
// compression self-describing without a side channel (spec.md §4.3).
func MaybeGunzip(data []byte) []byte {
    r, err := gzip.NewReader(bytes.NewReader(data))
    if err != nil {
        return data
    }
    out, err := io.ReadAll(r)
    if err != nil {
        return data
    }
    return out
}
