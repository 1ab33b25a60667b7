// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

// Raw represents a single six-axis sample as it arrives on the wire.
type Raw struct {
	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`
}

// AxisNames lists the sample fields in wire order.
var AxisNames = [6]string{"ax", "ay", "az", "gx", "gy", "gz"}

// Values returns the sample fields in wire order.
func (r Raw) Values() [6]int16 {
	return [6]int16{r.Ax, r.Ay, r.Az, r.Gx, r.Gy, r.Gz}
}

// RawSource is anything that can provide raw samples over time.
type RawSource interface {
	NextRaw() (Raw, error)
}
