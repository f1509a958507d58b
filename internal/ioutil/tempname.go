// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package ioutil

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Basename is the tempfile basename every intermediate file in a
// build lives under. All names derived from it are `<base>.tmp<hash>`
// or the multi-part naming `<base>.multipart_file.<tag>.part<k>`.
type Basename string

// Dir returns the directory portion, creating it if necessary so that
// callers can open files under it immediately.
func (b Basename) Dir() (string, error) {
	dir := filepath.Dir(string(b))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", NewIOError("ioutil", "create tempfile directory", err)
	}
	return dir, nil
}

// TempName derives a fresh `<base>.tmp<hash>` path. The hash is
// computed from random bytes via xxhash, purely to avoid collisions
// between concurrently-live streams under one basename, not for any
// security property.
func (b Basename) TempName() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", NewIOError("ioutil", "generate random tempfile suffix", err)
	}
	h := xxhash.Sum64(buf[:])
	return fmt.Sprintf("%s.tmp%016x", string(b), h), nil
}

// PartName derives the k-th physical file name of a multi-part stream.
func (b Basename) PartName(streamTag string, k int) string {
	return string(b) + ".multipart_file." + streamTag + ".part" + strconv.Itoa(k)
}

// Remove deletes a tempfile, tolerating it already being gone (a
// reader may have raced the driver's end-of-pass cleanup).
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return NewIOError("ioutil", "remove tempfile "+path, err)
	}
	return nil
}
