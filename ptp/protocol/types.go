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

package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"
	"time"
)

// 2 ** 16
const twoPow16 = 65536

// MessageType is type for Message Types
type MessageType uint8

// As per Table 36 Values of messageType field, gPTP subset as per IEEE 802.1AS-2020 Table 10-7
const (
	MessageSync               MessageType = 0x0
	MessagePDelayReq          MessageType = 0x2
	MessagePDelayResp         MessageType = 0x3
	MessageFollowUp           MessageType = 0x8
	MessagePDelayRespFollowUp MessageType = 0xA
	MessageAnnounce           MessageType = 0xB
	MessageSignaling          MessageType = 0xC
)

// MessageTypeToString is a map from MessageType to string
var MessageTypeToString = map[MessageType]string{
	MessageSync:               "SYNC",
	MessagePDelayReq:          "PDELAY_REQ",
	MessagePDelayResp:         "PDELAY_RESP",
	MessageFollowUp:           "FOLLOW_UP",
	MessagePDelayRespFollowUp: "PDELAY_RESP_FOLLOW_UP",
	MessageAnnounce:           "ANNOUNCE",
	MessageSignaling:          "SIGNALING",
}

func (m MessageType) String() string {
	return MessageTypeToString[m]
}

// SdoIDAndMsgType is a uint8 where first 4 bites contain majorSdoId and last 4 bits MessageType
type SdoIDAndMsgType uint8

// MsgType extracts MessageType from SdoIDAndMsgType
func (m SdoIDAndMsgType) MsgType() MessageType {
	return MessageType(m & 0xf)
}

// SdoID extracts majorSdoId from SdoIDAndMsgType
func (m SdoIDAndMsgType) SdoID() uint8 {
	return uint8(m >> 4)
}

// NewSdoIDAndMsgType builds new SdoIDAndMsgType from MessageType and majorSdoId
func NewSdoIDAndMsgType(msgType MessageType, sdoID uint8) SdoIDAndMsgType {
	return SdoIDAndMsgType(sdoID<<4 | uint8(msgType))
}

// ProbeMsgType reads first 8 bits of data and tries to decode it to SdoIDAndMsgType, then return MessageType
func ProbeMsgType(data []byte) (msg MessageType, err error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("not enough data to probe MsgType")
	}
	return SdoIDAndMsgType(data[0]).MsgType(), nil
}

/*
Correction is the value of the correction measured in nanoseconds and multiplied by 2**16.
For example, 2.5 ns is represented as 0000 0000 0002 8000 base 16
A value of one in all bits, except the most significant, of the field shall indicate that the correction is too big to be represented.
*/
type Correction int64

// CorrectionTooBig is the value signalling a correction which can't be represented
const CorrectionTooBig Correction = 0x7fffffffffffffff

// Nanoseconds decodes Correction to human-understandable nanoseconds
func (t Correction) Nanoseconds() float64 {
	if t.TooBig() {
		return math.Inf(1)
	}
	return float64(t) / twoPow16
}

// WholeNanoseconds returns the integer nanosecond part of the correction, dropping the fraction
func (t Correction) WholeNanoseconds() int64 {
	return int64(t) >> 16
}

// Duration converts Correction to time.Duration, ignoring
// case where correction is too big, and dropping fractions of nanoseconds
func (t Correction) Duration() time.Duration {
	if !t.TooBig() {
		return time.Duration(t.Nanoseconds())
	}
	return 0
}

func (t Correction) String() string {
	if t.TooBig() {
		return "Correction(Too big)"
	}
	return fmt.Sprintf("Correction(%.3fns)", t.Nanoseconds())
}

// TooBig means correction is too big to be represented.
func (t Correction) TooBig() bool {
	return t == CorrectionTooBig
}

// NewCorrection returns Correction built from Nanoseconds
func NewCorrection(ns float64) Correction {
	t := ns * twoPow16
	if t >= math.MaxInt64 {
		return CorrectionTooBig
	}
	if t <= math.MinInt64 {
		return Correction(math.MinInt64)
	}
	return Correction(t)
}

// The ClockIdentity type identifies unique entities within a PTP Network, e.g. a PTP Instance or an entity of a common service.
type ClockIdentity uint64

// String formats ClockIdentity same way ptp4l pmc client does
func (c ClockIdentity) String() string {
	ptr := make([]byte, 8)
	binary.BigEndian.PutUint64(ptr, uint64(c))
	return fmt.Sprintf("%02x%02x%02x.%02x%02x.%02x%02x%02x",
		ptr[0], ptr[1], ptr[2], ptr[3],
		ptr[4], ptr[5], ptr[6], ptr[7],
	)
}

// NewClockIdentity creates new ClockIdentity from MAC address
func NewClockIdentity(mac net.HardwareAddr) (ClockIdentity, error) {
	b := [8]byte{}
	switch len(mac) {
	case 6: // EUI-48
		b[0] = mac[0]
		b[1] = mac[1]
		b[2] = mac[2]
		b[3] = 0xFF
		b[4] = 0xFE
		b[5] = mac[3]
		b[6] = mac[4]
		b[7] = mac[5]
	case 8: // EUI-64
		copy(b[:], mac)
	default:
		return 0, fmt.Errorf("unsupported MAC %v, must be either EUI48 or EUI64", mac)
	}
	return ClockIdentity(binary.BigEndian.Uint64(b[:])), nil
}

// ParseClockIdentity parses ClockIdentity from the string form produced by ClockIdentity.String
func ParseClockIdentity(s string) (ClockIdentity, error) {
	var b [8]byte
	n, err := fmt.Sscanf(s, "%02x%02x%02x.%02x%02x.%02x%02x%02x",
		&b[0], &b[1], &b[2], &b[3], &b[4], &b[5], &b[6], &b[7])
	if err != nil {
		return 0, fmt.Errorf("parsing clock identity %q: %w", s, err)
	}
	if n != 8 {
		return 0, fmt.Errorf("parsing clock identity %q: got %d octets", s, n)
	}
	return ClockIdentity(binary.BigEndian.Uint64(b[:])), nil
}

// The PortIdentity type identifies a PTP Port or a Link Port
type PortIdentity struct {
	ClockIdentity ClockIdentity
	PortNumber    uint16
}

// String formats PortIdentity same way ptp4l pmc client does
func (p PortIdentity) String() string {
	return fmt.Sprintf("%s-%d", p.ClockIdentity, p.PortNumber)
}

// PTPSeconds type representing seconds
type PTPSeconds [6]uint8 // uint48

// Empty returns 0 seconds
func (s PTPSeconds) Empty() bool {
	return s == [6]uint8{0, 0, 0, 0, 0, 0}
}

// Seconds returns number of seconds as uint64
func (s PTPSeconds) Seconds() uint64 {
	return uint64(s[5]) | uint64(s[4])<<8 | uint64(s[3])<<16 | uint64(s[2])<<24 |
		uint64(s[1])<<32 | uint64(s[0])<<40
}

// HiLo splits seconds into the 16 most significant and 32 least significant bits
func (s PTPSeconds) HiLo() (uint16, uint32) {
	return uint16(s[0])<<8 | uint16(s[1]), binary.BigEndian.Uint32(s[2:])
}

// NewPTPSeconds creates a new instance of PTPSeconds from the number of seconds
func NewPTPSeconds(v uint64) PTPSeconds {
	s := PTPSeconds{}
	s[0] = byte(v >> 40)
	s[1] = byte(v >> 32)
	s[2] = byte(v >> 24)
	s[3] = byte(v >> 16)
	s[4] = byte(v >> 8)
	s[5] = byte(v)
	return s
}

/*
Timestamp type represents a positive time with respect to the epoch.
The secondsField member is the integer portion of the timestamp in units of seconds.
The nanosecondsField member is the fractional portion of the timestamp in units of nanoseconds.
The nanosecondsField member is always less than 10**9 .
*/
type Timestamp struct {
	Seconds     PTPSeconds
	Nanoseconds uint32
}

// Time turns Timestamp into normal Go time.Time
func (t Timestamp) Time() time.Time {
	if t.Empty() {
		return time.Time{}
	}
	return time.Unix(int64(t.Seconds.Seconds()), int64(t.Nanoseconds))
}

// Empty timestamp
func (t Timestamp) Empty() bool {
	return t.Nanoseconds == 0 && t.Seconds.Empty()
}

// String representation of the timestamp
func (t Timestamp) String() string {
	if t.Empty() {
		return "Timestamp(empty)"
	}
	return fmt.Sprintf("Timestamp(%d.%09d)", t.Seconds.Seconds(), t.Nanoseconds)
}

// NewTimestamp allows to create Timestamp from time.Time
func NewTimestamp(t time.Time) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	return Timestamp{
		Seconds:     NewPTPSeconds(uint64(t.Unix())),
		Nanoseconds: uint32(t.Nanosecond()),
	}
}

// NewTimestampFromNs creates Timestamp from nanoseconds since the epoch
func NewTimestampFromNs(ns uint64) Timestamp {
	return Timestamp{
		Seconds:     NewPTPSeconds(ns / uint64(time.Second)),
		Nanoseconds: uint32(ns % uint64(time.Second)),
	}
}

// LogInterval shall be the logarithm, to base 2, of the requested period in seconds.
type LogInterval int8

// Duration returns LogInterval as time.Duration
func (i LogInterval) Duration() time.Duration {
	secs := math.Pow(2, float64(i))
	return time.Duration(secs * float64(time.Second))
}

// LogIntervalUnspecified is used in messages where the interval has no meaning
const LogIntervalUnspecified LogInterval = 0x7f

/*
ScaledNS is a signed 96 bit nanosecond value multiplied by 2**16,
as used in the lastGmPhaseChange field of the Follow_Up information TLV.
*/
type ScaledNS struct {
	NanosecondsMSB        uint16
	NanosecondsLSB        uint64
	FractionalNanoseconds uint16
}

// Nanoseconds decodes ScaledNS into float nanoseconds. Values beyond float64 precision are approximated.
func (s ScaledNS) Nanoseconds() float64 {
	msb := int16(s.NanosecondsMSB)
	frac := float64(s.FractionalNanoseconds) / twoPow16
	switch {
	case msb == 0:
		return float64(s.NanosecondsLSB) + frac
	case msb == -1 && s.NanosecondsLSB>>63 == 1:
		// negative value which fits into int64 nanoseconds
		return float64(int64(s.NanosecondsLSB)) + frac
	}
	return float64(msb)*math.Pow(2, 64) + float64(s.NanosecondsLSB) + frac
}

/*
UScaledNS is an unsigned 96 bit nanosecond value multiplied by 2**16,
used to carry time intervals such as pdelayReqInterval.
*/
type UScaledNS struct {
	NanosecondsMSB        uint16
	NanosecondsLSB        uint64
	FractionalNanoseconds uint16
}

// Zero reports if interval is not set
func (u UScaledNS) Zero() bool {
	return u == UScaledNS{}
}
