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
	"encoding/binary"
	"sync/atomic"
	"unsafe"

	"github.com/cloudwego/shmring/memcopy"
	"github.com/cloudwego/shmring/unsafex"
)

// Writer is the producer handle of a ring. It may advance tail and
// write payload bytes ahead of tail; head is observed read-only. At
// most one Writer may operate on a region at a time.
type Writer struct {
	ring
}

// NewWriter opens the producer side of the ring laid out in region.
// The region must stay mapped for the lifetime of the handle and its
// base must be 8-byte aligned.
func NewWriter(region []byte) (*Writer, error) {
	r, err := mapRegion(region)
	if err != nil {
		return nil, err
	}
	return &Writer{ring: r}, nil
}

// OpenWriter opens the producer side of the ring at base, a mapping of
// size bytes.
//
// This is the raw shared-memory boundary: base must point to a live
// mapping of at least size bytes, 8-byte aligned, and the mapping must
// outlive the handle.
func OpenWriter(base unsafe.Pointer, size int) (*Writer, error) {
	if base == nil {
		return nil, ErrNilBase
	}
	return NewWriter(unsafex.BytesAt(base, size))
}

// Push appends msg as one frame: the 8-byte little-endian length
// followed by the payload, wrapping as needed. It returns the
// on-wire size len(msg)+8.
//
// (0, ErrNoSpace) means the frame does not fit right now; retry after
// the consumer drains. ErrTooLarge means the frame is wider than the
// ring can ever hold. Tail is published only after the whole frame is
// in place.
func (w *Writer) Push(msg []byte) (int, error) {
	msgLen := len(msg)
	n := len(w.buf)
	if msgLen+W > n-1 {
		return 0, ErrTooLarge
	}
	tail := w.Tail() // only this handle stores tail
	head := w.Head()
	if msgLen+W > n-w.usedAt(head, tail)-1 {
		return 0, ErrNoSpace
	}

	var prefix [W]byte
	binary.LittleEndian.PutUint64(prefix[:], uint64(msgLen))

	untilEnd := n - tail
	var newTail int
	if untilEnd < W {
		// prefix straddles the wrap; the body then fits contiguously
		// at the front
		memcopy.Copy(w.buf[tail:], prefix[:untilEnd])
		memcopy.Copy(w.buf[:W-untilEnd], prefix[untilEnd:])
		start := W - untilEnd
		memcopy.Copy(w.buf[start:start+msgLen], msg)
		newTail = start + msgLen
	} else if untilEnd <= W+msgLen {
		// body wraps (or lands exactly on the edge)
		memcopy.Copy(w.buf[tail:tail+W], prefix[:])
		first := untilEnd - W
		memcopy.Copy(w.buf[tail+W:], msg[:first])
		memcopy.Copy(w.buf[:msgLen-first], msg[first:])
		newTail = msgLen - first
	} else {
		memcopy.Copy(w.buf[tail:tail+W], prefix[:])
		memcopy.Copy(w.buf[tail+W:tail+W+msgLen], msg)
		newTail = (tail + W + msgLen) % n
	}
	atomic.StoreUint64(w.tail, uint64(newTail))
	return W + msgLen, nil
}
