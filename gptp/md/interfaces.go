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

package md

import (
	"time"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

// Packet is a reference counted network buffer with decoded gPTP message
type Packet interface {
	Ref()
	Unref()
	SetTimestamp(ts time.Time)
	// Timestamp is ingress time for received packets and egress time for sent ones, zero if unknown
	Timestamp() time.Time
	Iface() string
	Message() ptp.Packet
}

// MessageBuilder prepares outgoing messages. Every returned Packet holds one reference owned by the caller.
type MessageBuilder interface {
	BuildSync(port PortID) (Packet, error)
	// BuildFollowUp returns Follow_Up matching sent sync, with information TLV header populated
	BuildFollowUp(port PortID, sync Packet) (Packet, error)
	BuildPDelayReq(port PortID) (Packet, error)
	// BuildPDelayResp answers req, filling requestReceiptTimestamp from req ingress timestamp
	BuildPDelayResp(port PortID, req Packet) (Packet, error)
	// BuildPDelayRespFollowUp fills responseOriginTimestamp from resp egress timestamp
	BuildPDelayRespFollowUp(port PortID, resp Packet) (Packet, error)
}

// Sender transmits packets. Send consumes one reference of pkt whatever the outcome.
// Once egress timestamp of pkt is known it is stored on pkt and Engine.TxTimestamp is called.
type Sender interface {
	Send(port PortID, pkt Packet) error
}

// SyncSink is the upper synchronization layer receiving time information from Sync receivers
type SyncSink interface {
	RcvdMDSync(port PortID, info *SyncInfo)
}

// Stats is a metric collection interface
type Stats interface {
	// IncTX atomically add 1 to the counter
	IncTX(port PortID, t ptp.MessageType)
	// IncTXError atomically add 1 to the counter
	IncTXError(port PortID, t ptp.MessageType)
	// IncTXTimestampMissing atomically add 1 to the counter
	IncTXTimestampMissing(port PortID, t ptp.MessageType)
	// IncRX atomically add 1 to the counter
	IncRX(port PortID, t ptp.MessageType)
	// IncRXDiscard atomically add 1 to the counter
	IncRXDiscard(port PortID, t ptp.MessageType)
	// IncNeighborPropDelayExceeded atomically add 1 to the counter
	IncNeighborPropDelayExceeded(port PortID)
	// IncPDelayLostResponsesExceeded atomically add 1 to the counter
	IncPDelayLostResponsesExceeded(port PortID)
	// IncPDelayMultipleResponses atomically add 1 to the counter
	IncPDelayMultipleResponses(port PortID)
	// IncPDelayCooldown atomically add 1 to the counter
	IncPDelayCooldown(port PortID)
	// IncSyncFollowUpTimeout atomically add 1 to the counter
	IncSyncFollowUpTimeout(port PortID)
	// SetAsCapable atomically sets the gauge
	SetAsCapable(port PortID, asCapable bool)
	// SetNeighborPropDelay atomically sets the gauge
	SetNeighborPropDelay(port PortID, d time.Duration)
	// SetNeighborRateRatio atomically sets the gauge
	SetNeighborRateRatio(port PortID, rr float64)
}
