// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
)

// Algorithm identifies an orientation estimation variant.
type Algorithm int32

const (
	// AccelTilt derives roll and pitch from gravity only; yaw stays 0.
	AccelTilt Algorithm = 1
	// Complementary blends integrated gyro rates with the accelerometer tilt.
	Complementary Algorithm = 2
	// Kalman runs a scalar Kalman filter per tilt axis.
	Kalman Algorithm = 3
)

var algorithmNames = map[Algorithm]string{
	AccelTilt:     "accel-tilt",
	Complementary: "complementary",
	Kalman:        "kalman",
}

// Algorithms lists the implemented variants in selector order.
func Algorithms() []Algorithm {
	return []Algorithm{AccelTilt, Complementary, Kalman}
}

func (a Algorithm) String() string {
	if name, ok := algorithmNames[a]; ok {
		return name
	}
	return fmt.Sprintf("algorithm(%d)", int32(a))
}

// Valid reports whether a has an implementation.
func (a Algorithm) Valid() bool {
	_, ok := algorithmNames[a]
	return ok
}

// ParseAlgorithm accepts either the selector number ("1") or the name
// ("accel-tilt").
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if n, err := strconv.Atoi(s); err == nil {
		a := Algorithm(n)
		if !a.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnsupportedAlgorithm, n)
		}
		return a, nil
	}
	for a, name := range algorithmNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s)
}

// Selector holds the active algorithm. Set may be called from any goroutine;
// the acquisition loop reads it once per cycle.
type Selector struct {
	v atomic.Int32
}

// NewSelector returns a selector starting at a.
func NewSelector(a Algorithm) *Selector {
	s := &Selector{}
	s.Set(a)
	return s
}

// Get returns the active algorithm.
func (s *Selector) Get() Algorithm { return Algorithm(s.v.Load()) }

// Set switches the active algorithm. Unimplemented values are stored as-is
// and surface as ErrUnsupportedAlgorithm on the next estimate.
func (s *Selector) Set(a Algorithm) { s.v.Store(int32(a)) }
