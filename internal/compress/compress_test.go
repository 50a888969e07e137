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

package compress

import "testing"

func TestIsBinary(t *testing.T) {
    if IsBinary([]byte("hello, world\n")) {
        t.Fatal("text misclassified as binary")
    }
    if !IsBinary([]byte("hello\x00world")) {
        t.Fatal("NUL-containing data not classified as binary")
    }
}

func TestGzipRoundtrip(t *testing.T) {
    text := []byte("the quick brown fox jumps over the lazy dog\n")
    gz := Gzip(text)
    got := MaybeGunzip(gz)
    if string(got) != string(text) {
        t.Fatalf("roundtrip mismatch: got %q want %q", got, text)
    }
}

func TestMaybeGunzipPassthrough(t *testing.T) {
    raw := []byte("not actually gzip data")
    got := MaybeGunzip(raw)
    if string(got) != string(raw) {
        t.Fatalf("non-gzip input was altered: got %q want %q", got, raw)
    }
}
