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

// Myba | Miscellaneous utilities
package main

import (
    "fmt"
    "os"
    "strings"
    "syscall"
)

// String converts []byte to string with a copy.
// (the teacher's go123/mem.String did this without copying; that package's
// source wasn't available to ground the unsafe-aliasing contract against,
// so we pay the copy instead - see DESIGN.md)
func String(b []byte) string {
    return string(b)
}

// Bytes converts string to []byte with a copy - see String() above.
func Bytes(s string) []byte {
    return []byte(s)
}

// split string into lines. The last line, if it is empty, is omitted from the result
// (rationale is: string.Split("hello\nworld\n", "\n") -> ["hello", "world", ""])
func splitlines(s, sep string) []string {
    sv := strings.Split(s, sep)
    l := len(sv)
    if l > 0 && sv[l-1] == "" {
        sv = sv[:l-1]
    }
    return sv
}

// split string by sep and expect exactly 2 parts
func split2(s, sep string) (s1, s2 string, err error) {
    parts := strings.Split(s, sep)
    if len(parts) != 2 {
        return "", "", fmt.Errorf("split2: %q has %v parts (expected 2, sep: %q)", s, len(parts), sep)
    }
    return parts[0], parts[1], nil
}

// (head+sep+tail) -> head, tail
func headtail(s, sep string) (head, tail string, err error) {
    parts := strings.SplitN(s, sep, 2)
    if len(parts) != 2 {
        return "", "", fmt.Errorf("headtail: %q has no %q", s, sep)
    }
    return parts[0], parts[1], nil
}

// strip_prefix("/a/b", "/a/b/c/d/e") -> "c/d/e" (without leading /)
// path must start with prefix
func strip_prefix(prefix, path string) string {
    if !strings.HasPrefix(path, prefix) {
        panic(fmt.Errorf("strip_prefix: %q has no prefix %q", path, prefix))
    }
    path = path[len(prefix):]
    for strings.HasPrefix(path, "/") {
        path = path[1:] // strip leading /
    }
    return path
}

// reprefix("/a", "/b", "/a/str") -> "/b/str"
// path must start with prefix_from
func reprefix(prefix_from, prefix_to, path string) string {
    path = strip_prefix(prefix_from, path)
    return fmt.Sprintf("%s/%s", prefix_to, path)
}

// like ioutil.WriteFile() but takes native mode/perm
func writefile(path string, data []byte, perm uint32) error {
    fd, err := syscall.Open(path, syscall.O_WRONLY|syscall.O_CREAT|syscall.O_TRUNC, perm)
    if err != nil {
        return &os.PathError{Op: "open", Path: path, Err: err}
    }
    f := os.NewFile(uintptr(fd), path)
    _, err = f.Write(data)
    err2 := f.Close()
    if err == nil {
        err = err2
    }
    return err
}
