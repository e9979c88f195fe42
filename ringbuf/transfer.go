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

	"github.com/cloudwego/shmring/memcopy"
)

// Transfer moves as many whole frames as fit from src's ring into
// dst's ring without deframing them, and returns the number of on-wire
// bytes moved.
//
// The frames' on-wire bytes are copied verbatim, so framing is
// preserved in the destination. The move is quantized on frame
// boundaries: a frame that does not fit stays in src for a later call.
// Source and destination wrap splits yield at most four contiguous
// copies. Each ring's index is stored exactly once, after the copy.
//
// (0, nil) means no work was possible: dst full, src empty, or the
// next frame wider than dst's free space.
func Transfer(src *Reader, dst *Writer) (int, error) {
	dstTail := dst.Tail()
	free := len(dst.buf) - dst.usedAt(dst.Head(), dstTail) - 1
	if free == 0 {
		return 0, nil
	}

	srcHead := src.Head()
	acc, err := src.accumulate(free, srcHead, src.Tail())
	if err != nil {
		return 0, err
	}
	if acc == 0 {
		return 0, nil
	}

	// Slice the acc bytes at src's head into one run, or two if they
	// straddle src's wrap.
	nSrc := len(src.buf)
	pos := dstTail
	if untilEnd := nSrc - srcHead; acc <= untilEnd {
		pos = dst.copyIn(src.buf[srcHead:srcHead+acc], pos)
	} else {
		pos = dst.copyIn(src.buf[srcHead:], pos)
		pos = dst.copyIn(src.buf[:acc-untilEnd], pos)
	}
	// pos landed at (dstTail+acc) mod N_dst
	atomic.StoreUint64(dst.tail, uint64(pos))
	atomic.StoreUint64(src.head, uint64((srcHead+acc)%nSrc))
	return acc, nil
}

// accumulate walks whole frames from head, summing their on-wire sizes
// while the total stays within limit. The walk advances a local
// phantom head and never touches shared state. It stops cleanly at the
// first incomplete frame: in a live ring that is just the producer's
// tail not having caught up yet.
func (r *ring) accumulate(limit, head, tail int) (int, error) {
	acc := 0
	for {
		msgLen, err := r.peekFrame(head, r.usedAt(head, tail))
		if err == ErrEmpty {
			return acc, nil
		}
		if err != nil {
			return 0, err
		}
		frame := W + msgLen
		if acc+frame > limit {
			return acc, nil
		}
		acc += frame
		head = (head + frame) % len(r.buf)
	}
}

// copyIn lays run down at offset pos of the payload, splitting it if
// it straddles the wrap, and returns the offset just past it. The tail
// index is untouched; the caller publishes it once all runs are in.
func (r *ring) copyIn(run []byte, pos int) int {
	n := len(r.buf)
	if untilEnd := n - pos; len(run) > untilEnd {
		memcopy.Copy(r.buf[pos:], run[:untilEnd])
		memcopy.Copy(r.buf[:len(run)-untilEnd], run[untilEnd:])
		return len(run) - untilEnd
	}
	memcopy.Copy(r.buf[pos:pos+len(run)], run)
	return (pos + len(run)) % n
}
