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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopTwice(t *testing.T) {
	r, w, _ := newRing(t, testRegionSize)
	msg := []byte("AAAABB")

	n, err := w.Push(msg)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, 0, w.Head())
	assert.Equal(t, 14, w.Tail())
	assert.Equal(t, 36, w.Size())
	assert.Equal(t, 14, w.Used())
	assert.Equal(t, 21, w.Free())
	assert.False(t, w.IsEmpty())
	assert.False(t, w.IsFull())

	out := make([]byte, 6)
	n, err = r.Pop(out)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, msg, out)
	assert.Equal(t, 14, r.Head())
	assert.Equal(t, 14, r.Tail())
	assert.Equal(t, 0, r.Used())
	assert.Equal(t, 35, r.Free())
	assert.True(t, r.IsEmpty())
	assert.False(t, r.IsFull())

	n, err = w.Push(msg)
	require.NoError(t, err)
	assert.Equal(t, 14, n)
	assert.Equal(t, 28, w.Tail())

	out = make([]byte, 6)
	n, err = r.Pop(out)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, msg, out)
	assert.Equal(t, 28, r.Head())
	assert.Equal(t, 28, r.Tail())
	assert.True(t, r.IsEmpty())
}

func TestFillToFullThenDrain(t *testing.T) {
	r, w, _ := newRing(t, testRegionSize)
	first := []byte("AAAABBBBCC") // frame 18
	second := []byte("AAAABBBBC") // frame 17, 35 bytes total == N-1

	_, err := w.Push(first)
	require.NoError(t, err)
	_, err = w.Push(second)
	require.NoError(t, err)
	assert.True(t, r.IsFull())
	assert.True(t, w.IsFull())

	got, err := r.PopBytes()
	require.NoError(t, err)
	assert.Equal(t, first, got)
	got, err = r.PopBytes()
	require.NoError(t, err)
	assert.Equal(t, second, got)
	assert.True(t, r.IsEmpty())
	assert.True(t, w.IsEmpty())

	// the freed ring takes a maximal frame again
	n, err := w.Push([]byte("AAAABBBBCCCCDDDDEEEEFFFFGGG"))
	require.NoError(t, err)
	assert.Equal(t, 35, n)
}

// Body straddles the wrap point; the prefix does not.
func TestPopBodyWrap(t *testing.T) {
	r, w, _ := newRing(t, testRegionSize)

	_, err := w.Push([]byte("AAAABB"))
	require.NoError(t, err)
	_, err = r.Pop(make([]byte, 6))
	require.NoError(t, err) // head == tail == 14

	msg := []byte("AAAABBBBCCCCDDDDEEEE") // frame 28 wraps at byte 36
	_, err = w.Push(msg)
	require.NoError(t, err)
	assert.Equal(t, 6, w.Tail())

	out := make([]byte, 20)
	n, err := r.Pop(out)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, msg, out)
	assert.Equal(t, 6, r.Head())
	assert.True(t, r.IsEmpty())
}

// The length prefix itself straddles the wrap point.
func TestPopPrefixWrap(t *testing.T) {
	r, w, _ := newRing(t, testRegionSize)

	_, err := w.Push([]byte("AAAABBBBCCCCDDDDEEEEFFFF")) // frame 32
	require.NoError(t, err)
	_, err = r.Pop(make([]byte, 24))
	require.NoError(t, err) // head == tail == 32, 4 bytes before the edge

	msg := []byte("AAAABBBBCCCCDDDDEEEE")
	_, err = w.Push(msg) // prefix splits 4+4 across the wrap
	require.NoError(t, err)
	assert.Equal(t, 24, w.Tail())

	out := make([]byte, 20)
	n, err := r.Pop(out)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, msg, out)
	assert.Equal(t, 24, r.Head())
	assert.True(t, r.IsEmpty())
}

func TestPopShortBuffer(t *testing.T) {
	r, w, region := newRing(t, testRegionSize)
	_, err := w.Push([]byte("AAAABB"))
	require.NoError(t, err)

	snapshot := append([]byte(nil), region...)
	out := make([]byte, 5)
	_, err = r.Pop(out)
	assert.ErrorIs(t, err, ErrShortBuffer)
	assert.Equal(t, snapshot, region) // nothing consumed, nothing written
	assert.Equal(t, make([]byte, 5), out)

	n, err := r.Pop(make([]byte, 6))
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestPopEmptyLeavesStateUntouched(t *testing.T) {
	r, _, region := newRing(t, testRegionSize)
	snapshot := append([]byte(nil), region...)

	out := make([]byte, 8)
	n, err := r.Pop(out)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Equal(t, 0, n)
	assert.Equal(t, snapshot, region)
	assert.Equal(t, make([]byte, 8), out)

	_, err = r.PopBytes()
	assert.ErrorIs(t, err, ErrEmpty)
}
