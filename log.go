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

// Myba | Leveled logging, matching the teacher's verbose/infof/debugf trio.
package main

import "fmt"

// verbose output
// 0 - silent
// 1 - info
// 2 - progress of long-running operations
// 3 - debug
var verbose = 1

func infof(format string, a ...interface{}) {
    if verbose > 0 {
        fmt.Printf(format, a...)
        fmt.Println()
    }
}

// gitprogress says what to pass to a git subprocess for stdout/stderr:
// DontRedirect - no redirection (terminal sees it), PIPE - capture for us.
func gitprogress() StdioRedirect {
    if verbose > 1 {
        return DontRedirect
    }
    return PIPE
}

func debugf(format string, a ...interface{}) {
    if verbose > 2 {
        fmt.Printf(format, a...)
        fmt.Println()
    }
}
