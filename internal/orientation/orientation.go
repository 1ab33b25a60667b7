// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"errors"
	"math"

	"github.com/relabs-tech/inertial_viewer/internal/imu"
)

// ErrUnsupportedAlgorithm is returned when the selected algorithm has no
// implementation.
var ErrUnsupportedAlgorithm = errors.New("unsupported orientation algorithm")

// Pose is the canonical representation of orientation for the app, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

const (
	// DefaultGyroLSBPerDPS matches the ±250°/s gyroscope range.
	DefaultGyroLSBPerDPS = 131.0
	// DefaultAlpha is the gyro weight of the complementary filter.
	DefaultAlpha = 0.98
	// DefaultKalmanQ is the process noise per second, in deg².
	DefaultKalmanQ = 0.5
	// DefaultKalmanR is the accelerometer tilt measurement noise, in deg².
	DefaultKalmanR = 9.0
)

// Params tunes the gyro-aided algorithms. AccelTilt ignores it.
type Params struct {
	DT            float64 // seconds since the previous estimate
	GyroLSBPerDPS float64
	Alpha         float64
	KalmanQ       float64
	KalmanR       float64
}

// DefaultParams returns the tuning used when nothing is configured.
func DefaultParams() Params {
	return Params{
		GyroLSBPerDPS: DefaultGyroLSBPerDPS,
		Alpha:         DefaultAlpha,
		KalmanQ:       DefaultKalmanQ,
		KalmanR:       DefaultKalmanR,
	}
}

// Prior is the filter memory carried from one estimate to the next. It is
// passed in and handed back explicitly so Estimate stays a pure function.
type Prior struct {
	Pose     Pose    `json:"pose"`
	Valid    bool    `json:"valid"`
	RollVar  float64 `json:"roll_var"`
	PitchVar float64 `json:"pitch_var"`
}

// Estimate derives a pose from one raw sample with the given algorithm.
// The returned Prior feeds the next call; on error it is the input prior.
func Estimate(raw imu.Raw, algo Algorithm, prior Prior, p Params) (Pose, Prior, error) {
	ax, ay, az := float64(raw.Ax), float64(raw.Ay), float64(raw.Az)

	switch algo {
	case AccelTilt:
		pose := ComputePoseFromAccel(ax, ay, az)
		return pose, Prior{Pose: pose, Valid: true}, nil

	case Complementary:
		if !prior.Valid {
			pose := ComputePoseFromAccel(ax, ay, az)
			return pose, Prior{Pose: pose, Valid: true}, nil
		}
		pose := complementary(raw, prior.Pose, p)
		return pose, Prior{Pose: pose, Valid: true}, nil

	case Kalman:
		return kalman(raw, prior, p)

	default:
		return Pose{}, prior, ErrUnsupportedAlgorithm
	}
}

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is 0: it is not observable from gravity alone.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
		Yaw:   0,
	}
}

// ComputePoseFromIMURaw blends gyro-integrated angles from prev with the
// accelerometer tilt using the default complementary filter tuning.
// deltaTime is in seconds.
func ComputePoseFromIMURaw(ax, ay, az, gx, gy, gz float64, prev Pose, deltaTime float64) Pose {
	p := DefaultParams()
	p.DT = deltaTime
	return complementaryRates(ComputePoseFromAccel(ax, ay, az), rates(gx, gy, gz, p), prev, p)
}

func complementary(raw imu.Raw, prev Pose, p Params) Pose {
	accel := ComputePoseFromAccel(float64(raw.Ax), float64(raw.Ay), float64(raw.Az))
	return complementaryRates(accel, rates(float64(raw.Gx), float64(raw.Gy), float64(raw.Gz), p), prev, p)
}

func complementaryRates(accel Pose, r [3]float64, prev Pose, p Params) Pose {
	dt := math.Max(p.DT, 0)
	gyroRoll := prev.Roll + r[0]*dt
	gyroPitch := prev.Pitch + r[1]*dt

	return Pose{
		Roll:  wrap180(accel.Roll + p.Alpha*wrap180(gyroRoll-accel.Roll)),
		Pitch: wrap180(accel.Pitch + p.Alpha*wrap180(gyroPitch-accel.Pitch)),
		Yaw:   wrap180(prev.Yaw + r[2]*dt),
	}
}

func kalman(raw imu.Raw, prior Prior, p Params) (Pose, Prior, error) {
	accel := ComputePoseFromAccel(float64(raw.Ax), float64(raw.Ay), float64(raw.Az))
	if !prior.Valid {
		next := Prior{Pose: accel, Valid: true, RollVar: p.KalmanR, PitchVar: p.KalmanR}
		return accel, next, nil
	}

	dt := math.Max(p.DT, 0)
	r := rates(float64(raw.Gx), float64(raw.Gy), float64(raw.Gz), p)

	roll, rollVar := kalmanStep(prior.Pose.Roll, prior.RollVar, r[0], accel.Roll, dt, p)
	pitch, pitchVar := kalmanStep(prior.Pose.Pitch, prior.PitchVar, r[1], accel.Pitch, dt, p)

	pose := Pose{Roll: roll, Pitch: pitch, Yaw: wrap180(prior.Pose.Yaw + r[2]*dt)}
	return pose, Prior{Pose: pose, Valid: true, RollVar: rollVar, PitchVar: pitchVar}, nil
}

// kalmanStep runs one predict/update cycle of a scalar angle filter: the gyro
// rate drives the prediction and the accelerometer tilt is the measurement.
// With no variance on either side the update is skipped.
func kalmanStep(angle, variance, rate, measured, dt float64, p Params) (float64, float64) {
	angle += rate * dt
	variance += p.KalmanQ * dt
	if variance+p.KalmanR <= 0 {
		return wrap180(angle), variance
	}

	gain := variance / (variance + p.KalmanR)
	angle += gain * wrap180(measured-angle)
	variance *= 1 - gain

	return wrap180(angle), variance
}

// rates converts raw gyro counts to °/s.
func rates(gx, gy, gz float64, p Params) [3]float64 {
	lsb := p.GyroLSBPerDPS
	if lsb <= 0 {
		lsb = DefaultGyroLSBPerDPS
	}
	return [3]float64{gx / lsb, gy / lsb, gz / lsb}
}

// wrap180 maps an angle in degrees into (-180, 180].
func wrap180(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg > 180 {
		deg -= 360
	} else if deg <= -180 {
		deg += 360
	}
	return deg
}
