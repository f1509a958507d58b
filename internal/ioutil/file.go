// Copyright (c) 2025 Nikita Kamenev
// Licensed under the MIT License. See LICENSE file in the project root for details.
package ioutil

import "os"

// OpenRead opens path for sequential reading, wrapping any failure as
// a fatal *IOError identifying component.
func OpenRead(component, path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, NewIOError(component, "open for read "+path, err)
	}
	return f, nil
}

// CreateWrite creates path for sequential writing, truncating any
// existing file.
func CreateWrite(component, path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, NewIOError(component, "create for write "+path, err)
	}
	return f, nil
}

// Size returns the size in bytes of the file at path.
func Size(component, path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, NewIOError(component, "stat "+path, err)
	}
	return fi.Size(), nil
}

// Counters accumulates the I/O volume of a component, reported back
// to Build's Stats as raw counters; formatting them for a human is
// the caller's job.
type Counters struct {
	BytesRead    int64
	BytesWritten int64
}

func (c *Counters) AddRead(n int64)    { c.BytesRead += n }
func (c *Counters) AddWritten(n int64) { c.BytesWritten += n }

// Total returns the combined I/O volume.
func (c *Counters) Total() int64 { return c.BytesRead + c.BytesWritten }
