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

package ringbuf

import (
	"sync/atomic"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/cloudwego/shmring/memcopy"
	"github.com/cloudwego/shmring/unsafex"
)

// Reader is the consumer handle of a ring. It may advance head and
// read payload bytes between head and tail; it never writes anything
// else in the region. At most one Reader may operate on a region at a
// time.
type Reader struct {
	ring
}

// NewReader opens the consumer side of the ring laid out in region.
// The region must stay mapped for the lifetime of the handle and its
// base must be 8-byte aligned.
func NewReader(region []byte) (*Reader, error) {
	r, err := mapRegion(region)
	if err != nil {
		return nil, err
	}
	return &Reader{ring: r}, nil
}

// OpenReader opens the consumer side of the ring at base, a mapping of
// size bytes.
//
// This is the raw shared-memory boundary: base must point to a live
// mapping of at least size bytes, 8-byte aligned, and the mapping must
// outlive the handle.
func OpenReader(base unsafe.Pointer, size int) (*Reader, error) {
	if base == nil {
		return nil, ErrNilBase
	}
	return NewReader(unsafex.BytesAt(base, size))
}

// SetHead moves the read position without copying anything out.
// It is meant for tests and for callers that advance the ring by
// external means; normal consumption goes through Pop.
func (r *Reader) SetHead(pos int) {
	atomic.StoreUint64(r.head, uint64(pos))
}

// Pop extracts the next frame's payload into out and advances head
// past the frame. It returns the payload length.
//
// (0, ErrEmpty) means no complete frame is visible yet; retry later.
// A zero-length frame returns (0, nil): the frame was consumed.
// If out cannot hold the payload, Pop returns ErrShortBuffer and
// consumes nothing.
func (r *Reader) Pop(out []byte) (int, error) {
	head := r.Head() // only this handle stores head
	tail := r.Tail()
	msgLen, err := r.peekFrame(head, r.usedAt(head, tail))
	if err != nil {
		return 0, err
	}
	if len(out) < msgLen {
		return 0, ErrShortBuffer
	}
	n := len(r.buf)
	var newHead int
	if head+W > n {
		// prefix straddled the wrap, so the body sits contiguously at
		// the front of the payload
		start := W - (n - head)
		memcopy.Copy(out[:msgLen], r.buf[start:start+msgLen])
		newHead = start + msgLen
	} else if body := head + W; msgLen > n-body {
		// body wraps
		first := n - body
		memcopy.Copy(out[:first], r.buf[body:])
		memcopy.Copy(out[first:msgLen], r.buf[:msgLen-first])
		newHead = msgLen - first
	} else {
		memcopy.Copy(out[:msgLen], r.buf[body:body+msgLen])
		newHead = (body + msgLen) % n
	}
	atomic.StoreUint64(r.head, uint64(newHead))
	return msgLen, nil
}

// PopBytes pops the next frame into a freshly allocated buffer sized
// to its payload. The buffer is fully overwritten, so it is allocated
// without zeroing.
func (r *Reader) PopBytes() ([]byte, error) {
	head := r.Head()
	tail := r.Tail()
	msgLen, err := r.peekFrame(head, r.usedAt(head, tail))
	if err != nil {
		return nil, err
	}
	out := dirtmake.Bytes(msgLen, msgLen)
	if _, err := r.Pop(out); err != nil {
		return nil, err
	}
	return out, nil
}
