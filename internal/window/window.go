// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package window keeps fixed-length rolling histories of samples for display.
package window

// DefaultCapacity is the number of samples kept per series when no capacity
// is configured.
const DefaultCapacity = 50

// Window is a fixed-capacity ring buffer that keeps the most recent values.
// Appending to a full window evicts the oldest value.
// A Window is not safe for concurrent use.
type Window[T any] struct {
	buf   []T
	start int // index of the oldest value
	n     int
}

// New returns an empty window holding at most capacity values.
// A non-positive capacity falls back to DefaultCapacity.
func New[T any](capacity int) *Window[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window[T]{buf: make([]T, capacity)}
}

// Append adds v as the newest value.
func (w *Window[T]) Append(v T) {
	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = v
		w.n++
		return
	}
	w.buf[w.start] = v
	w.start = (w.start + 1) % len(w.buf)
}

// Snapshot returns a copy of the values, oldest first.
func (w *Window[T]) Snapshot() []T {
	out := make([]T, w.n)
	first := copy(out, w.buf[w.start:min(w.start+w.n, len(w.buf))])
	copy(out[first:], w.buf[:w.n-first])
	return out
}

// Last returns the newest value, or false when the window is empty.
func (w *Window[T]) Last() (T, bool) {
	if w.n == 0 {
		var zero T
		return zero, false
	}
	return w.buf[(w.start+w.n-1)%len(w.buf)], true
}

// Len returns the number of values held.
func (w *Window[T]) Len() int { return w.n }

// Cap returns the fixed capacity.
func (w *Window[T]) Cap() int { return len(w.buf) }
