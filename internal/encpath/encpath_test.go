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

package encpath

import (
    "strings"
    "testing"
)

func TestDeriveDeterministic(t *testing.T) {
    a := Derive("foo/bar", "secret")
    b := Derive("foo/bar", "secret")
    if a != b {
        t.Fatalf("Derive not deterministic: %q != %q", a, b)
    }
}

func TestDeriveDiffersByInput(t *testing.T) {
    base := Derive("foo/bar", "secret")
    if Derive("foo/baz", "secret") == base {
        t.Fatal("different plain paths collided")
    }
    if Derive("foo/bar", "othersecret") == base {
        t.Fatal("different passwords collided")
    }
}

func TestDeriveLayout(t *testing.T) {
    p := Derive("foo/bar", "secret")
    parts := strings.Split(p, "/")
    if len(parts) != 4 || parts[0] != "d" {
        t.Fatalf("unexpected layout: %q", p)
    }
    if len(parts[1]) != 2 || len(parts[2]) != 2 {
        t.Fatalf("fanout components wrong size: %q", p)
    }
    if len(parts[1])+len(parts[2])+len(parts[3]) != sha512HexLen(t) {
        t.Fatalf("total hex length mismatch: %q", p)
    }
}

func sha512HexLen(t *testing.T) int {
    t.Helper()
    return 128
}
