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

package manifest

import (
    "reflect"
    "testing"
)

func TestEncodeDecodeRoundtrip(t *testing.T) {
    m := Manifest{
        {EncPath: "d/aa/bb/cc", PlainPath: "foo/bar"},
        {EncPath: "d/11/22/33", PlainPath: "foo/baz"},
    }
    got, err := Decode(Encode(m))
    if err != nil {
        t.Fatalf("decode: %s", err)
    }
    if !reflect.DeepEqual(got, m) {
        t.Fatalf("roundtrip mismatch: got %+v want %+v", got, m)
    }
}

func TestGzipEncodeDecodeRoundtrip(t *testing.T) {
    m := Manifest{{EncPath: "d/aa/bb/cc", PlainPath: "foo/bar"}}
    got, err := GzipDecode(GzipEncode(m))
    if err != nil {
        t.Fatalf("decode: %s", err)
    }
    if !reflect.DeepEqual(got, m) {
        t.Fatalf("roundtrip mismatch: got %+v want %+v", got, m)
    }
}

func TestSortedDedup(t *testing.T) {
    m := Manifest{
        {EncPath: "d/bb", PlainPath: "b"},
        {EncPath: "d/aa", PlainPath: "a"},
        {EncPath: "d/aa", PlainPath: "a-dup"},
    }
    got := Sorted(m)
    want := Manifest{{EncPath: "d/aa", PlainPath: "a"}, {EncPath: "d/bb", PlainPath: "b"}}
    if !reflect.DeepEqual(got, want) {
        t.Fatalf("Sorted mismatch: got %+v want %+v", got, want)
    }
}

func TestMerge(t *testing.T) {
    a := Manifest{{EncPath: "d/aa", PlainPath: "a"}}
    b := Manifest{{EncPath: "d/aa", PlainPath: "a"}, {EncPath: "d/bb", PlainPath: "b"}}
    got := Merge(a, b)
    if len(got) != 2 {
        t.Fatalf("Merge did not dedup: %+v", got)
    }
}

func TestDecodeEmpty(t *testing.T) {
    m, err := Decode(nil)
    if err != nil {
        t.Fatalf("decode empty: %s", err)
    }
    if len(m) != 0 {
        t.Fatalf("expected empty manifest, got %+v", m)
    }
}
