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

// Package cipher adapts the out-of-core symmetric cipher primitive (OpenSSL
// or GPG) to encrypt/decrypt byte streams for a fixed password, one pepper
// per call. The primitive itself is an external collaborator (spec.md §1);
// this package only shells out to it and manages the passphrase/framing
// contract around it.
package cipher

import (
    "bytes"
    "fmt"
    "io"
    "os"
    "os/exec"
    "strconv"
)

// Cipher encrypts/decrypts a byte stream under password||pepper. Pepper is
// the empty string for manifests and commit messages, and the plaintext
// path for per-file blobs, so identical bytes at different paths yield
// different ciphertexts (spec.md §4.1).
type Cipher interface {
    Encrypt(pepper string, plaintext []byte) ([]byte, error)
    Decrypt(pepper string, ciphertext []byte) ([]byte, error)
}

// saltedMagic is the 8-byte "Salted__" magic that opens OpenSSL's
// "Salted__"+8-byte-salt framing.
var saltedMagic = []byte("Salted__")

// OpenSSLCipher drives `openssl enc -aes-256-ctr -pbkdf2 -md sha512`.
// Resolves spec.md §9's Salted__ open question by stripping the magic
// prefix on encrypt and re-prepending it on decrypt (DESIGN.md open
// question 4).
type OpenSSLCipher struct {
    Password string
    Iters    int // PBKDF2 iteration count, default 321731 per spec.md §4.1
    Path     string
}

func (c *OpenSSLCipher) openssl() string {
    if c.Path != "" {
        return c.Path
    }
    return "openssl"
}

func (c *OpenSSLCipher) Encrypt(pepper string, plaintext []byte) ([]byte, error) {
    out, err := c.run(pepper, plaintext, []string{
        "enc", "-aes-256-ctr", "-pbkdf2", "-md", "sha512",
        "-iter", strconv.Itoa(c.iters()),
    })
    if err != nil {
        return nil, err
    }
    if len(out) < len(saltedMagic)+8 {
        return nil, fmt.Errorf("cipher: openssl output too short to carry Salted__ header")
    }
    // strip the 8-byte Salted__ magic + 8-byte salt is kept; only the
    // literal "Salted__" 8 bytes are dropped, per spec.md §4.1 and
    // DESIGN.md's resolution of the open question.
    return out[len(saltedMagic):], nil
}

func (c *OpenSSLCipher) Decrypt(pepper string, ciphertext []byte) ([]byte, error) {
    framed := make([]byte, 0, len(saltedMagic)+len(ciphertext))
    framed = append(framed, saltedMagic...)
    framed = append(framed, ciphertext...)
    return c.run(pepper, framed, []string{
        "enc", "-d", "-aes-256-ctr", "-pbkdf2", "-md", "sha512",
        "-iter", strconv.Itoa(c.iters()),
    })
}

func (c *OpenSSLCipher) iters() int {
    if c.Iters > 0 {
        return c.Iters
    }
    return 321731
}

func (c *OpenSSLCipher) run(pepper string, in []byte, argv []string) ([]byte, error) {
    argv = append(argv, "-pass", "fd:3")
    return runWithPassphraseFd(c.openssl(), argv, c.Password+pepper, in)
}

// GPGCipher drives `gpg --batch --symmetric --cipher-algo AES256
// --s2k-digest-algo SHA512 --s2k-mode 3 --s2k-count N --passphrase-fd 3`.
type GPGCipher struct {
    Password string
    S2KCount int // default 32111731 per spec.md §4.1
    Path     string
}

func (c *GPGCipher) gpg() string {
    if c.Path != "" {
        return c.Path
    }
    return "gpg"
}

func (c *GPGCipher) s2kcount() int {
    if c.S2KCount > 0 {
        return c.S2KCount
    }
    return 32111731
}

func (c *GPGCipher) Encrypt(pepper string, plaintext []byte) ([]byte, error) {
    argv := []string{
        "--batch", "--quiet", "--yes",
        "--symmetric", "--cipher-algo", "AES256",
        "--s2k-digest-algo", "SHA512", "--s2k-mode", "3",
        "--s2k-count", strconv.Itoa(c.s2kcount()),
        "--compress-algo", "none", // we compress ourselves, C3
        "--passphrase-fd", "3",
        "-o", "-",
    }
    return runWithPassphraseFd(c.gpg(), argv, c.Password+pepper, plaintext)
}

func (c *GPGCipher) Decrypt(pepper string, ciphertext []byte) ([]byte, error) {
    argv := []string{
        "--batch", "--quiet", "--yes",
        "--decrypt", "--passphrase-fd", "3", "-o", "-",
    }
    return runWithPassphraseFd(c.gpg(), argv, c.Password+pepper, ciphertext)
}

// runWithPassphraseFd spawns argv0 with passphrase delivered as an inherited
// fd 3, never through argv or the environment (spec.md §4.1). Grounded on
// runcmd.go's RunWith.extraFile mechanism, reimplemented here at the
// exec.Cmd level since this package does not import package main.
func runWithPassphraseFd(argv0 string, argv []string, passphrase string, in []byte) ([]byte, error) {
    r, w, err := os.Pipe()
    if err != nil {
        return nil, err
    }
    defer r.Close()

    cmd := exec.Command(argv0, argv...)
    cmd.Stdin = bytes.NewReader(in)
    cmd.ExtraFiles = []*os.File{r}
    var stdout, stderr bytes.Buffer
    cmd.Stdout = &stdout
    cmd.Stderr = &stderr

    if err := cmd.Start(); err != nil {
        w.Close()
        return nil, err
    }

    _, werr := io.WriteString(w, passphrase)
    w.Close()

    err = cmd.Wait()
    if werr != nil && err == nil {
        err = werr
    }
    if err != nil {
        return nil, fmt.Errorf("%s: %w: %s", argv0, err, stderr.String())
    }
    return stdout.Bytes(), nil
}
