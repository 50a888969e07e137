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

// Package encpath derives the deterministic encrypted-tree path for a
// plaintext path, per spec.md §3. Pure function: no I/O, no filesystem
// access, and the password is never retained or logged.
package encpath

import (
    "crypto/sha512"
    "encoding/hex"
    "fmt"
)

// Derive computes enc_path(plainPath, password) =
// "d/<h[0:2]>/<h[2:4]>/<h[4:]>" where
// h = lowercase_hex(SHA512(plainPath || password || plainPath || password)).
//
// The double concatenation (not the single plainPath||password form some
// versions use) is the spec.md §9 open question resolved for this
// implementation - see DESIGN.md.
func Derive(plainPath, password string) string {
    h := sha512.New()
    h.Write([]byte(plainPath))
    h.Write([]byte(password))
    h.Write([]byte(plainPath))
    h.Write([]byte(password))
    hexsum := hex.EncodeToString(h.Sum(nil))

    return fmt.Sprintf("d/%s/%s/%s", hexsum[0:2], hexsum[2:4], hexsum[4:])
}
