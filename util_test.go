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

package main

import (
    "testing"
)

func TestSplit2(t *testing.T) {
    var tests = []struct {
        input, s1, s2 string
        ok             bool
    }{
        {"", "", "", false},
        {" ", "", "", true},
        {"hello", "", "", false},
        {"hello world", "hello", "world", true},
        {"hello world 1", "", "", false},
    }

    for _, tt := range tests {
        s1, s2, err := split2(tt.input, " ")
        ok := err == nil
        if s1 != tt.s1 || s2 != tt.s2 || ok != tt.ok {
            t.Errorf("split2(%q) -> %q %q %v  ; want %q %q %v", tt.input, s1, s2, ok, tt.s1, tt.s2, tt.ok)
        }
    }
}

func TestHeadtail(t *testing.T) {
    var tests = []struct {
        input, head, tail string
        ok                bool
    }{
        {"", "", "", false},
        {" ", "", "", true},
        {"  ", "", " ", true},
        {"hello world", "hello", "world", true},
        {"hello world 1", "hello", "world 1", true},
        {"hello  world 2", "hello", " world 2", true},
    }

    for _, tt := range tests {
        head, tail, err := headtail(tt.input, " ")
        ok := err == nil
        if head != tt.head || tail != tt.tail || ok != tt.ok {
            t.Errorf("headtail(%q) -> %q %q %v  ; want %q %q %v", tt.input, head, tail, ok, tt.head, tt.tail, tt.ok)
        }
    }
}

func TestStripReprefix(t *testing.T) {
    if got := strip_prefix("/a/b", "/a/b/c/d"); got != "c/d" {
        t.Errorf("strip_prefix -> %q, want c/d", got)
    }
    if got := reprefix("/a", "/b", "/a/str"); got != "/b/str" {
        t.Errorf("reprefix -> %q, want /b/str", got)
    }
}
