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

package cipher

import (
    "crypto/sha512"
    "os/exec"
    "testing"

    "golang.org/x/crypto/pbkdf2"
)

// roundtrip exercises the real openssl binary when present; skipped in
// environments without it rather than faking the subprocess.
func TestOpenSSLRoundtrip(t *testing.T) {
    if _, err := exec.LookPath("openssl"); err != nil {
		t.Skip("openssl not available")
    }

    c := &OpenSSLCipher{Password: "hunter2", Iters: 1000}
    plain := []byte("the quick brown fox\x00binary-safe")

    for _, pepper := range []string{"", "some/plain/path"} {
        enc, err := c.Encrypt(pepper, plain)
        if err != nil {
            t.Fatalf("encrypt: %s", err)
        }
        dec, err := c.Decrypt(pepper, enc)
        if err != nil {
            t.Fatalf("decrypt: %s", err)
        }
        if string(dec) != string(plain) {
            t.Fatalf("roundtrip mismatch: got %q want %q", dec, plain)
        }
    }
}

// TestPBKDF2KeyLengthContract asserts the key-derivation contract C1 relies
// on (32-byte AES-256 key from PBKDF2-HMAC-SHA512) without needing a system
// openssl binary - same pre-derived-key test-double pattern as the pack's
// xgrabba crypto package.
func TestPBKDF2KeyLengthContract(t *testing.T) {
    key := pbkdf2.Key([]byte("hunter2"), []byte("somesalt"), 1000, 32, sha512.New)
    if len(key) != 32 {
        t.Fatalf("pbkdf2 key length = %d, want 32", len(key))
    }
}
