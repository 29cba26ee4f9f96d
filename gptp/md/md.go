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
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

var (
	errSequenceMismatch     = errors.New("sequence id mismatch")
	errLocalClockIdentity   = errors.New("message originated from local clock")
	errPortIdentityMismatch = errors.New("port identity mismatch")
	errMissingTimestamp     = errors.New("missing timestamp")
	errUnexpectedMessage    = errors.New("unexpected message")
)

// EngineConfig is a configuration of the media-dependent layer
type EngineConfig struct {
	ClockIdentity ptp.ClockIdentity
}

// Option customizes Engine
type Option func(e *Engine)

// WithTimerFactory overrides the timer implementation
func WithTimerFactory(f TimerFactory) Option {
	return func(e *Engine) {
		e.newTimer = f
	}
}

// port groups everything a single port owns
type port struct {
	ds   PortDS
	req  pdelayReq
	resp pdelayResp
	rcv  syncRcv
	send syncSend
}

// Engine runs media-dependent state machines of all ports
type Engine struct {
	defaultDS DefaultDS

	builder MessageBuilder
	sender  Sender
	sink    SyncSink
	stats   Stats

	newTimer TimerFactory

	numPorts atomic.Int32
	ports    [MaxPorts]port
}

// New creates Engine. Ports are added with AddPort before the first tick.
func New(cfg EngineConfig, builder MessageBuilder, sender Sender, sink SyncSink, stats Stats, opts ...Option) *Engine {
	e := &Engine{
		defaultDS: DefaultDS{ClockIdentity: cfg.ClockIdentity},
		builder:   builder,
		sender:    sender,
		sink:      sink,
		stats:     stats,
		newTimer:  NewTimer,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddPort registers a new port with given data set and returns its id
func (e *Engine) AddPort(ds PortDS) (PortID, error) {
	n := int(e.numPorts.Load())
	if n >= MaxPorts {
		return 0, fmt.Errorf("can't add port: all %d ports are in use", MaxPorts)
	}
	id := PortID(n + 1)
	p := &e.ports[id.index()]
	ds.PortIdentity = ptp.PortIdentity{
		ClockIdentity: e.defaultDS.ClockIdentity,
		PortNumber:    uint16(id),
	}
	p.ds = ds
	p.req.timer = e.newTimer()
	p.rcv.timer = e.newTimer()
	e.numPorts.Store(int32(n + 1))
	e.defaultDS.NumberPorts = n + 1
	return id, nil
}

// NumPorts returns number of registered ports
func (e *Engine) NumPorts() int {
	return int(e.numPorts.Load())
}

// Ports returns ids of all registered ports
func (e *Engine) Ports() []PortID {
	ids := make([]PortID, e.NumPorts())
	for i := range ids {
		ids[i] = PortID(i + 1)
	}
	return ids
}

func (e *Engine) port(id PortID) *port {
	if id == 0 || int(id) > e.NumPorts() {
		return nil
	}
	return &e.ports[id.index()]
}

// PortDS gives access to port data set. It must only be used from the goroutine ticking the port.
func (e *Engine) PortDS(id PortID) *PortDS {
	p := e.port(id)
	if p == nil {
		return nil
	}
	return &p.ds
}

// DefaultDS returns global data set
func (e *Engine) DefaultDS() DefaultDS {
	return e.defaultDS
}

// InitStateMachines resets every port to initial state of all state machines
func (e *Engine) InitStateMachines() {
	for _, id := range e.Ports() {
		p := e.port(id)
		e.initPDelayReq(p)
		e.initPDelayResp(p)
		e.initSyncRcv(p)
		e.initSyncSend(p)
	}
}

// StateMachines runs one tick of all state machines of the port
func (e *Engine) StateMachines(id PortID) {
	p := e.port(id)
	if p == nil {
		log.Errorf("state machines: unknown port %d", id)
		return
	}
	e.pdelayReqStateMachine(id, p)
	e.pdelayRespStateMachine(id, p)
	e.syncRcvStateMachine(id, p)
	e.syncSendStateMachine(id, p)
}

// Receive hands a received message over to the port. Engine takes ownership of the pkt reference.
// Safe to call from any goroutine.
func (e *Engine) Receive(id PortID, pkt Packet) {
	p := e.port(id)
	if p == nil {
		pkt.Unref()
		return
	}
	msgType := pkt.Message().MessageType()
	e.stats.IncRX(id, msgType)
	logReceive(id, pkt, "")
	switch msgType {
	case ptp.MessagePDelayReq:
		p.resp.reqIn.put(pkt)
	case ptp.MessagePDelayResp:
		if !p.req.rcvd(&p.req.respIn, &p.req.rcvdRespCount, pkt) {
			e.stats.IncRXDiscard(id, msgType)
		}
	case ptp.MessagePDelayRespFollowUp:
		if !p.req.rcvd(&p.req.followUpIn, &p.req.rcvdFollowUpCount, pkt) {
			e.stats.IncRXDiscard(id, msgType)
		}
	case ptp.MessageSync:
		p.rcv.syncIn.put(pkt)
	case ptp.MessageFollowUp:
		p.rcv.followUpIn.put(pkt)
	default:
		e.stats.IncRXDiscard(id, msgType)
		pkt.Unref()
	}
}

// TxTimestamp notifies the port that egress timestamp of pkt is now known.
// Ownership is not transferred. Safe to call from any goroutine.
func (e *Engine) TxTimestamp(id PortID, pkt Packet) {
	p := e.port(id)
	if p == nil {
		return
	}
	switch pkt.Message().MessageType() {
	case ptp.MessageSync:
		p.send.timestampAvail.Store(true)
	case ptp.MessagePDelayResp:
		p.resp.timestampAvail.Store(true)
	}
}

// TriggerMDSync asks Sync sender of the port to send Sync and Follow_Up carrying info.
// Safe to call from any goroutine.
func (e *Engine) TriggerMDSync(id PortID, info SyncInfo) {
	p := e.port(id)
	if p == nil {
		return
	}
	p.send.mdSyncIn.Store(&info)
}

// PortSnapshot is a point in time view of the port
type PortSnapshot struct {
	Port                   PortID
	PDelayReqState         PDelayReqState
	PDelayRespState        PDelayRespState
	SyncRcvState           SyncRcvState
	SyncSendState          SyncSendState
	AsCapable              bool
	IsMeasuringDelay       bool
	NeighborPropDelay      time.Duration
	NeighborRateRatio      float64
	NeighborRateRatioValid bool
	LostResponses          uint8
	MultipleRespCount      uint8
}

// Snapshot returns port view. It must only be used from the goroutine ticking the port.
func (e *Engine) Snapshot(id PortID) (PortSnapshot, error) {
	p := e.port(id)
	if p == nil {
		return PortSnapshot{}, fmt.Errorf("unknown port %d", id)
	}
	return PortSnapshot{
		Port:                   id,
		PDelayReqState:         p.req.state,
		PDelayRespState:        p.resp.state,
		SyncRcvState:           p.rcv.state,
		SyncSendState:          p.send.state,
		AsCapable:              p.ds.AsCapable,
		IsMeasuringDelay:       p.ds.IsMeasuringDelay,
		NeighborPropDelay:      p.ds.NeighborPropDelay,
		NeighborRateRatio:      p.ds.NeighborRateRatio,
		NeighborRateRatioValid: p.req.neighborRateRatioValid,
		LostResponses:          p.req.lostResponses,
		MultipleRespCount:      p.req.multipleRespCount,
	}, nil
}

// PDelayReqState returns current state of Pdelay requester, NotEnabled for unknown ports
func (e *Engine) PDelayReqState(id PortID) PDelayReqState {
	p := e.port(id)
	if p == nil {
		return PDelayReqNotEnabled
	}
	return p.req.state
}

// PDelayRespState returns current state of Pdelay responder, NotEnabled for unknown ports
func (e *Engine) PDelayRespState(id PortID) PDelayRespState {
	p := e.port(id)
	if p == nil {
		return PDelayRespNotEnabled
	}
	return p.resp.state
}

// SyncRcvState returns current state of Sync receiver, Discard for unknown ports
func (e *Engine) SyncRcvState(id PortID) SyncRcvState {
	p := e.port(id)
	if p == nil {
		return SyncRcvDiscard
	}
	return p.rcv.state
}

// SyncSendState returns current state of Sync sender, Initializing for unknown ports
func (e *Engine) SyncSendState(id PortID) SyncSendState {
	p := e.port(id)
	if p == nil {
		return SyncSendInitializing
	}
	return p.send.state
}

// send transmits pkt keeping a reference for the caller if keep is set
func (e *Engine) send(id PortID, pkt Packet, keep bool) error {
	t := pkt.Message().MessageType()
	if keep {
		pkt.Ref()
	}
	logSent(id, pkt, "")
	if err := e.sender.Send(id, pkt); err != nil {
		e.stats.IncTXError(id, t)
		return fmt.Errorf("sending %s: %w", t, err)
	}
	e.stats.IncTX(id, t)
	return nil
}

// couple of helpers to log nice lines about happening communication
func logSent(id PortID, pkt Packet, msg string, v ...interface{}) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	h := pkt.Message().GetHeader()
	log.Debug(color.GreenString("[port %d] %s -> %s seq=%d %s", id, pkt.Iface(), h.MessageType(), h.SequenceID, fmt.Sprintf(msg, v...)))
}

func logReceive(id PortID, pkt Packet, msg string, v ...interface{}) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	h := pkt.Message().GetHeader()
	log.Debug(color.BlueString("[port %d] %s <- %s seq=%d from %s %s", id, pkt.Iface(), h.MessageType(), h.SequenceID, h.SourcePortIdentity, fmt.Sprintf(msg, v...)))
}
