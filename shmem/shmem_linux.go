/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

//go:build linux

// Package shmem creates and maps the shared memory regions that back
// ring buffers shared across processes. A Region is a flat byte
// mapping; layout and framing inside it belong to the ringbuf package.
//
// Named segments live under /dev/shm, so any process that knows the
// name can map the same bytes. CreateAnon builds a memfd-backed
// segment instead, for setups that hand the descriptor to a child.
package shmem

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const shmDir = "/dev/shm"

// Region is a live shared memory mapping. It stays valid until Close.
type Region struct {
	f    *os.File
	data []byte
}

func path(name string) string {
	return shmDir + "/" + name
}

// Create creates the named segment with the given size, truncating any
// previous content, and maps it read-write. The kernel zero-fills new
// pages, which is exactly the zero-initialized state a fresh ring
// region needs.
func Create(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shmem: invalid segment size %d", size)
	}
	f, err := os.OpenFile(path(name), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shmem: create %q: %w", name, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: size %q: %w", name, err)
	}
	return mapFile(f, size)
}

// Open maps the named segment created by another process, at the size
// that process gave it.
func Open(name string) (*Region, error) {
	f, err := os.OpenFile(path(name), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("shmem: open %q: %w", name, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: stat %q: %w", name, err)
	}
	return mapFile(f, int(st.Size()))
}

// CreateAnon creates an anonymous memfd-backed segment. It has no
// filesystem name; share it by passing the descriptor (Region.File) to
// the peer, which maps it with Map.
func CreateAnon(name string, size int) (*Region, error) {
	if size <= 0 {
		return nil, fmt.Errorf("shmem: invalid segment size %d", size)
	}
	fd, err := unix.MemfdCreate(name, unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("shmem: memfd_create %q: %w", name, err)
	}
	f := os.NewFile(uintptr(fd), name)
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: size %q: %w", name, err)
	}
	return mapFile(f, size)
}

// Map maps an inherited or duplicated segment descriptor at its
// current size. The Region takes ownership of f.
func Map(f *os.File) (*Region, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("shmem: stat %q: %w", f.Name(), err)
	}
	return mapFile(f, int(st.Size()))
}

func mapFile(f *os.File, size int) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size,
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shmem: mmap %q: %w", f.Name(), err)
	}
	return &Region{f: f, data: data}, nil
}

// Bytes returns the mapped bytes. The slice aliases shared memory and
// must not be used after Close.
func (r *Region) Bytes() []byte { return r.data }

// Size returns the mapping length in bytes.
func (r *Region) Size() int { return len(r.data) }

// Base returns the mapping's base address, page-aligned, for handle
// constructors that take a raw pointer.
func (r *Region) Base() unsafe.Pointer { return unsafe.Pointer(&r.data[0]) }

// File exposes the backing descriptor, e.g. to pass a memfd segment to
// a child process. It stays owned by the Region.
func (r *Region) File() *os.File { return r.f }

// Close unmaps the segment and closes the descriptor. Other mappings
// of the same segment are unaffected.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Unlink removes the named segment from the namespace. Live mappings
// keep working until unmapped; new Opens fail.
func Unlink(name string) error {
	if err := os.Remove(path(name)); err != nil {
		return fmt.Errorf("shmem: unlink %q: %w", name, err)
	}
	return nil
}
