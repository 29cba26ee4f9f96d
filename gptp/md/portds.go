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
Package md implements the media-dependent layer of gPTP (IEEE 802.1AS):
Pdelay requester and responder, Sync receiver and Sync sender state machines,
driven by a per-port tick.

Asynchronous events (received messages, transmit timestamps, upper layer
triggers) never touch state machine fields directly. They only set flags,
increment counters or store a single buffer reference into a slot owned by
the port, and the next tick consumes them.
*/
package md

import (
	"time"

	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// MaxPorts is the capacity of the port arena
const MaxPorts = 32

// PortID is an IEEE 802.1AS port number. Valid ports start at 1.
type PortID uint8

// index returns position of the port in the arena
func (id PortID) index() int {
	return int(id) - 1
}

// DefaultDS is the time-aware system global data set
type DefaultDS struct {
	ClockIdentity ptp.ClockIdentity
	NumberPorts   int
}

// PortDS holds per-port configuration and results of the delay measurement
type PortDS struct {
	PortIdentity ptp.PortIdentity

	// computed by Pdelay requester
	NeighborRateRatio float64
	NeighborPropDelay time.Duration
	AsCapable         bool
	IsMeasuringDelay  bool

	NeighborPropDelayThresh  time.Duration
	DelayAsymmetry           time.Duration
	ComputeNeighborRateRatio bool
	ComputeNeighborPropDelay bool

	InitialLogPdelayReqInterval int8
	CurLogPdelayReqInterval     int8
	PdelayReqInterval           ptp.UScaledNS
	AllowedLostResponses        uint8

	CurrentLogSyncInterval int8
	SyncReceiptTimeout     uint8

	PttPortEnabled bool
}

// NewPortDS returns PortDS with defaults of 802.1AS
func NewPortDS() PortDS {
	return PortDS{
		NeighborRateRatio:           1.0,
		NeighborPropDelayThresh:     800 * time.Nanosecond,
		ComputeNeighborRateRatio:    true,
		ComputeNeighborPropDelay:    true,
		InitialLogPdelayReqInterval: 0,
		CurLogPdelayReqInterval:     0,
		PdelayReqInterval:           tsmath.NewUScaledNS(1, 0),
		AllowedLostResponses:        3,
		CurrentLogSyncInterval:      -3,
		SyncReceiptTimeout:          3,
	}
}
