/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package tsmath implements timestamp and fixed-point arithmetic of the gPTP
media-dependent layer: conversion of wire timestamps to nanoseconds,
correction field and scaled rate offset encoding, and the interval helpers
used to arm state machine timers.
*/
package tsmath

import (
	"math"
	"math/big"
	"time"

	"github.com/facebook/gptp/ptp/protocol"
)

const (
	nsPerSecond = uint64(time.Second)
	twoPow41    = 1 << 41

	// pre-shift limits of the correction field, values outside overflow int64 once scaled by 2**16
	maxCorrectionNs = math.MaxInt64 >> 16
	minCorrectionNs = math.MinInt64 >> 16
)

// MaxTimerDuration is the longest duration any timer is armed with, longer intervals saturate to it
const MaxTimerDuration = 24 * time.Hour

// TimestampToNs converts 48 bit seconds split into hi and lo parts plus nanoseconds into nanoseconds
func TimestampToNs(secondsHi uint16, secondsLo uint32, nanoseconds uint32) uint64 {
	seconds := uint64(secondsHi)<<32 | uint64(secondsLo)
	return seconds*nsPerSecond + uint64(nanoseconds)
}

// PTPTimestampToNs converts wire Timestamp into nanoseconds
func PTPTimestampToNs(ts protocol.Timestamp) uint64 {
	hi, lo := ts.Seconds.HiLo()
	return TimestampToNs(hi, lo, ts.Nanoseconds)
}

/*
CorrectionField computes Follow_Up correction field:
((origNs - upstreamTxNs) * rateRatio + fupCorrectionNs) << 16.
Fraction of nanosecond is truncated before the shift.
Results which can't be represented saturate to math.MaxInt64 (which also
is the 'too big' correction value) or math.MinInt64.
*/
func CorrectionField(origNs, upstreamTxNs int64, rateRatio float64, fupCorrectionNs int64) int64 {
	diff, ok := sub64(origNs, upstreamTxNs)
	if !ok {
		return saturate(upstreamTxNs < 0)
	}
	var ns int64
	if rateRatio == 1.0 {
		// exact integer path
		ns, ok = add64(diff, fupCorrectionNs)
		if !ok {
			return saturate(diff > 0)
		}
	} else {
		f := float64(diff)*rateRatio + float64(fupCorrectionNs)
		if math.IsNaN(f) {
			return 0
		}
		if f > maxCorrectionNs {
			return math.MaxInt64
		}
		if f < minCorrectionNs {
			return math.MinInt64
		}
		ns = int64(f)
	}
	if ns > maxCorrectionNs {
		return math.MaxInt64
	}
	if ns < minCorrectionNs {
		return math.MinInt64
	}
	return ns << 16
}

func saturate(positive bool) int64 {
	if positive {
		return math.MaxInt64
	}
	return math.MinInt64
}

func sub64(a, b int64) (int64, bool) {
	r := a - b
	if (b > 0 && r > a) || (b < 0 && r < a) {
		return 0, false
	}
	return r, true
}

func add64(a, b int64) (int64, bool) {
	r := a + b
	if (b > 0 && r < a) || (b < 0 && r > a) {
		return 0, false
	}
	return r, true
}

// ScaledRateOffset encodes rate ratio as (rateRatio - 1) * 2**41, saturating to int32 range
func ScaledRateOffset(rateRatio float64) int32 {
	v := (rateRatio - 1.0) * twoPow41
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt32:
		return math.MaxInt32
	case v <= math.MinInt32:
		return math.MinInt32
	}
	return int32(v)
}

// RateRatioFromScaled decodes cumulativeScaledRateOffset into rate ratio
func RateRatioFromScaled(x int32) float64 {
	return 1.0 + float64(x)/twoPow41
}

// LogIntervalToDuration returns seconds * 2**log2Interval, truncated to whole milliseconds.
// Non-zero intervals are never shorter than 1ms and never longer than MaxTimerDuration.
func LogIntervalToDuration(seconds uint16, log2Interval int8) time.Duration {
	if seconds == 0 {
		return 0
	}
	maxMs := uint64(MaxTimerDuration / time.Millisecond)
	ms := uint64(seconds) * 1000
	if log2Interval >= 0 {
		// at least 1000ms, so any shift above 32 is beyond maxMs and would overflow
		if log2Interval > 32 || ms<<uint(log2Interval) > maxMs {
			return MaxTimerDuration
		}
		ms <<= uint(log2Interval)
	} else {
		shift := -int(log2Interval)
		if shift >= 64 {
			ms = 0
		} else {
			ms >>= uint(shift)
		}
	}
	if ms == 0 {
		ms = 1
	}
	if ms > maxMs {
		return MaxTimerDuration
	}
	return time.Duration(ms) * time.Millisecond
}

// NewUScaledNS returns seconds * 2**log2Interval as UScaledNS, saturating at 96 bits
func NewUScaledNS(seconds uint16, log2Interval int8) protocol.UScaledNS {
	v := new(big.Int).SetUint64(uint64(seconds) * nsPerSecond)
	shift := 16 + int(log2Interval)
	if shift >= 0 {
		v.Lsh(v, uint(shift))
	} else {
		v.Rsh(v, uint(-shift))
	}
	var b [12]byte
	if v.BitLen() > len(b)*8 {
		for i := range b {
			b[i] = 0xff
		}
	} else {
		v.FillBytes(b[:])
	}
	return protocol.UScaledNS{
		NanosecondsMSB:        uint16(b[0])<<8 | uint16(b[1]),
		NanosecondsLSB:        beUint64(b[2:10]),
		FractionalNanoseconds: uint16(b[10])<<8 | uint16(b[11]),
	}
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// UScaledNSToDuration converts UScaledNS interval into timer duration with millisecond granularity
func UScaledNSToDuration(u protocol.UScaledNS) time.Duration {
	if u.NanosecondsMSB != 0 || u.NanosecondsLSB > uint64(MaxTimerDuration) {
		return MaxTimerDuration
	}
	ms := u.NanosecondsLSB / uint64(time.Millisecond)
	if ms == 0 && !u.Zero() {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// PropagationDelay computes mean link delay ((t4-t1)*rateRatio - (t3-t2)) / 2
func PropagationDelay(t1, t2, t3, t4 int64, rateRatio float64) float64 {
	return (float64(t4-t1)*rateRatio - float64(t3-t2)) / 2
}

// NeighborRateRatio computes (t3-iniT3)/(t4-iniT4). Second value is false when ratio can't be computed.
func NeighborRateRatio(t3, iniT3, t4, iniT4 int64) (float64, bool) {
	if t4 == iniT4 {
		return 0, false
	}
	return float64(t3-iniT3) / float64(t4-iniT4), true
}

// UpstreamTxTime computes syncIngress - (propDelay + asymmetry) / rateRatio, all in nanoseconds
func UpstreamTxTime(syncIngressNs int64, propDelayNs, asymmetryNs, rateRatio float64) int64 {
	if rateRatio == 0 {
		rateRatio = 1.0
	}
	return syncIngressNs - int64((propDelayNs+asymmetryNs)/rateRatio)
}
