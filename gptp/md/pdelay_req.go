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
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

const (
	// consecutive intervals with multiple responses after which requests are paused
	multipleRespLimit = 3
	multipleRespPause = 5 * time.Minute
)

// pdelayReq is MDPdelayReq state, 802.1AS 11.2.19
type pdelayReq struct {
	state PDelayReqState
	timer Timer

	lostResponses          uint8
	multipleRespCount      uint8
	neighborRateRatioValid bool
	initPDelayCompute      bool
	iniRespIngressTs       int64
	iniRespEvtTs           int64

	// owned by the state machine
	req      Packet
	resp     Packet
	followUp Packet

	// filled asynchronously
	respIn            slot
	followUpIn        slot
	rcvdRespCount     atomic.Uint32
	rcvdFollowUpCount atomic.Uint32
	// sequence id of the last request sent, noKey if none
	pendingSeq atomic.Int32
}

// rcvd hands a response or its follow up over to the state machine.
// Only messages answering the last request are counted.
func (s *pdelayReq) rcvd(in *slot, count *atomic.Uint32, pkt Packet) bool {
	seq := pkt.Message().GetHeader().SequenceID
	want := s.pendingSeq.Load()
	if want == noKey || int32(seq) == want {
		count.Add(1)
	}
	return in.putMatching(pkt, seq, want)
}

func (s *pdelayReq) releaseAll() {
	unref(&s.req)
	unref(&s.resp)
	unref(&s.followUp)
	s.respIn.release()
	s.followUpIn.release()
}

func (s *pdelayReq) multipleResponses() bool {
	return s.rcvdRespCount.Load() > 1 || s.rcvdFollowUpCount.Load() > 1
}

func (e *Engine) initPDelayReq(p *port) {
	s := &p.req
	if s.timer != nil {
		s.timer.Stop()
	}
	s.releaseAll()
	s.pendingSeq.Store(noKey)
	s.state = PDelayReqNotEnabled
	s.lostResponses = 0
	s.multipleRespCount = 0
	s.neighborRateRatioValid = false
	s.initPDelayCompute = true
	s.iniRespIngressTs = 0
	s.iniRespEvtTs = 0
	s.rcvdRespCount.Store(0)
	s.rcvdFollowUpCount.Store(0)
	p.ds.NeighborRateRatio = 1.0
	p.ds.AsCapable = false
	p.ds.IsMeasuringDelay = false
}

// enablePDelayReq is the entry of INITIAL_SEND_PDELAY_REQ
func (e *Engine) enablePDelayReq(id PortID, p *port) {
	s := &p.req
	ds := &p.ds
	ds.CurLogPdelayReqInterval = ds.InitialLogPdelayReqInterval
	ds.PdelayReqInterval = tsmath.NewUScaledNS(1, ds.CurLogPdelayReqInterval)
	ds.ComputeNeighborRateRatio = true
	ds.ComputeNeighborPropDelay = true
	ds.NeighborRateRatio = 1.0
	ds.IsMeasuringDelay = false
	ds.AsCapable = false
	s.lostResponses = 0
	s.multipleRespCount = 0
	s.neighborRateRatioValid = false
	s.initPDelayCompute = true
	s.rcvdRespCount.Store(0)
	s.rcvdFollowUpCount.Store(0)
	e.stats.SetAsCapable(id, false)
	e.stats.SetNeighborRateRatio(id, ds.NeighborRateRatio)
}

func (e *Engine) pdelayReqStateMachine(id PortID, p *port) {
	s := &p.req
	ds := &p.ds

	// a peer answering more than once is not a point to point link
	if ds.AsCapable && s.multipleResponses() {
		log.Warningf("[port %d] multiple pdelay responses received, port is not AS capable", id)
		ds.AsCapable = false
		e.stats.SetAsCapable(id, false)
	}

	if !ds.PttPortEnabled {
		if s.state != PDelayReqNotEnabled {
			log.Debugf("[port %d] pdelay req: %s -> %s", id, s.state, PDelayReqNotEnabled)
			s.timer.Stop()
			s.releaseAll()
			s.pendingSeq.Store(noKey)
			s.state = PDelayReqNotEnabled
		}
		return
	}

	if s.state == PDelayReqNotEnabled {
		e.enablePDelayReq(id, p)
		e.setPDelayReqState(id, PDelayReqInitialSendReq)
	}

	switch s.state {
	case PDelayReqInitialSendReq, PDelayReqSendReq:
		e.sendPDelayReq(id, p)
		e.setPDelayReqState(id, PDelayReqWaitResp)

	case PDelayReqWaitResp:
		if s.timer.Expired() {
			log.Debugf("[port %d] no pdelay response received", id)
			e.resetPDelayReq(id, p)
			return
		}
		resp := s.respIn.take()
		if resp == nil {
			return
		}
		s.resp = resp
		if err := e.validatePDelayResp(p); err != nil {
			log.Warningf("[port %d] invalid pdelay response: %v", id, err)
			e.stats.IncRXDiscard(id, ptp.MessagePDelayResp)
			e.resetPDelayReq(id, p)
			return
		}
		e.setPDelayReqState(id, PDelayReqWaitFollowUp)

	case PDelayReqWaitFollowUp:
		if s.timer.Expired() {
			log.Debugf("[port %d] no pdelay response follow up received", id)
			e.resetPDelayReq(id, p)
			return
		}
		fup := s.followUpIn.take()
		if fup == nil {
			return
		}
		s.followUp = fup
		if err := e.validatePDelayRespFollowUp(p); err != nil {
			log.Warningf("[port %d] invalid pdelay response follow up: %v", id, err)
			e.stats.IncRXDiscard(id, ptp.MessagePDelayRespFollowUp)
			e.resetPDelayReq(id, p)
			return
		}
		if err := e.computePDelay(id, p); err != nil {
			log.Warningf("[port %d] failed to compute pdelay: %v", id, err)
			e.resetPDelayReq(id, p)
			return
		}
		unref(&s.req)
		unref(&s.resp)
		unref(&s.followUp)
		e.setPDelayReqState(id, PDelayReqWaitIntervalTimer)

	case PDelayReqWaitIntervalTimer:
		if !s.timer.Expired() {
			return
		}
		paused := e.checkMultipleResponses(id, p)
		s.rcvdRespCount.Store(0)
		s.rcvdFollowUpCount.Store(0)
		if !paused {
			e.setPDelayReqState(id, PDelayReqSendReq)
		}
	}
}

func (e *Engine) setPDelayReqState(id PortID, state PDelayReqState) {
	s := &e.ports[id.index()].req
	if s.state != state {
		log.Debugf("[port %d] pdelay req: %s -> %s", id, s.state, state)
	}
	s.state = state
}

func (e *Engine) sendPDelayReq(id PortID, p *port) {
	s := &p.req
	s.releaseAll()
	pkt, err := e.builder.BuildPDelayReq(id)
	if err != nil {
		log.Errorf("[port %d] building pdelay request: %v", id, err)
		s.pendingSeq.Store(noKey)
	} else {
		s.req = pkt
		s.pendingSeq.Store(int32(pkt.Message().GetHeader().SequenceID))
		if err := e.send(id, pkt, true); err != nil {
			log.Errorf("[port %d] %v", id, err)
		}
	}
	s.timer.Stop()
	s.timer.Start(tsmath.UScaledNSToDuration(p.ds.PdelayReqInterval))
}

// resetPDelayReq is RESET state, it always ends in WAITING_FOR_PDELAY_INTERVAL_TIMER
func (e *Engine) resetPDelayReq(id PortID, p *port) {
	s := &p.req
	ds := &p.ds
	unref(&s.req)
	unref(&s.resp)
	unref(&s.followUp)
	if s.lostResponses < ds.AllowedLostResponses {
		s.lostResponses++
	} else {
		if ds.AsCapable || ds.IsMeasuringDelay {
			log.Warningf("[port %d] more than %d pdelay responses lost, port is not AS capable", id, ds.AllowedLostResponses)
			e.stats.IncPDelayLostResponsesExceeded(id)
		}
		ds.IsMeasuringDelay = false
		ds.AsCapable = false
		s.initPDelayCompute = true
		e.stats.SetAsCapable(id, false)
	}
	e.setPDelayReqState(id, PDelayReqWaitIntervalTimer)
}

// checkMultipleResponses returns true if requests are paused because of a misbehaving peer
func (e *Engine) checkMultipleResponses(id PortID, p *port) bool {
	s := &p.req
	ds := &p.ds
	if !s.multipleResponses() {
		s.multipleRespCount = 0
		return false
	}
	ds.AsCapable = false
	s.multipleRespCount++
	e.stats.SetAsCapable(id, false)
	e.stats.IncPDelayMultipleResponses(id)
	if s.multipleRespCount < multipleRespLimit {
		return false
	}
	s.multipleRespCount = 0
	pause := multipleRespPause - tsmath.UScaledNSToDuration(ds.PdelayReqInterval)
	log.Warningf("[port %d] multiple pdelay responses in %d consecutive intervals, pausing requests for %v", id, multipleRespLimit, pause)
	e.stats.IncPDelayCooldown(id)
	s.timer.Stop()
	s.timer.Start(pause)
	return true
}

func (e *Engine) validatePDelayResp(p *port) error {
	s := &p.req
	resp, ok := s.resp.Message().(*ptp.PDelayResp)
	if !ok {
		return errUnexpectedMessage
	}
	if s.req == nil {
		return fmt.Errorf("%w: no outstanding request", errSequenceMismatch)
	}
	req := s.req.Message().GetHeader()
	if resp.RequestingPortIdentity != p.ds.PortIdentity {
		return fmt.Errorf("%w: requesting port %s, ours %s", errPortIdentityMismatch, resp.RequestingPortIdentity, p.ds.PortIdentity)
	}
	if resp.SequenceID != req.SequenceID {
		return fmt.Errorf("%w: got %d, want %d", errSequenceMismatch, resp.SequenceID, req.SequenceID)
	}
	if resp.SourcePortIdentity.ClockIdentity == e.defaultDS.ClockIdentity {
		return fmt.Errorf("%w: %s", errLocalClockIdentity, resp.SourcePortIdentity.ClockIdentity)
	}
	return nil
}

func (e *Engine) validatePDelayRespFollowUp(p *port) error {
	s := &p.req
	fup, ok := s.followUp.Message().(*ptp.PDelayRespFollowUp)
	if !ok {
		return errUnexpectedMessage
	}
	if s.req == nil || s.resp == nil {
		return fmt.Errorf("%w: no outstanding request", errSequenceMismatch)
	}
	req := s.req.Message().GetHeader()
	resp := s.resp.Message().GetHeader()
	if fup.RequestingPortIdentity != p.ds.PortIdentity {
		return fmt.Errorf("%w: requesting port %s, ours %s", errPortIdentityMismatch, fup.RequestingPortIdentity, p.ds.PortIdentity)
	}
	if fup.SequenceID != req.SequenceID {
		return fmt.Errorf("%w: got %d, want %d", errSequenceMismatch, fup.SequenceID, req.SequenceID)
	}
	if fup.SourcePortIdentity.ClockIdentity == e.defaultDS.ClockIdentity {
		return fmt.Errorf("%w: %s", errLocalClockIdentity, fup.SourcePortIdentity.ClockIdentity)
	}
	if fup.SourcePortIdentity != resp.SourcePortIdentity {
		return fmt.Errorf("%w: follow up from %s, response from %s", errPortIdentityMismatch, fup.SourcePortIdentity, resp.SourcePortIdentity)
	}
	return nil
}

// computePDelay updates neighbor rate ratio and propagation delay from t1..t4
func (e *Engine) computePDelay(id PortID, p *port) error {
	s := &p.req
	ds := &p.ds

	egress := s.req.Timestamp()
	if egress.IsZero() {
		return fmt.Errorf("%w: pdelay request egress", errMissingTimestamp)
	}
	ingress := s.resp.Timestamp()
	if ingress.IsZero() {
		return fmt.Errorf("%w: pdelay response ingress", errMissingTimestamp)
	}
	resp := s.resp.Message().(*ptp.PDelayResp)
	fup := s.followUp.Message().(*ptp.PDelayRespFollowUp)

	t1 := egress.UnixNano()
	t2 := int64(tsmath.PTPTimestampToNs(resp.RequestReceiptTimestamp)) + resp.CorrectionField.WholeNanoseconds()
	t3 := int64(tsmath.PTPTimestampToNs(fup.ResponseOriginTimestamp)) + fup.CorrectionField.WholeNanoseconds()
	t4 := ingress.UnixNano()

	if s.initPDelayCompute {
		s.iniRespIngressTs = t4
		s.iniRespEvtTs = t3
		ds.NeighborRateRatio = 1.0
		s.neighborRateRatioValid = false
		s.initPDelayCompute = false
	} else if ds.ComputeNeighborRateRatio {
		rr, ok := tsmath.NeighborRateRatio(t3, s.iniRespEvtTs, t4, s.iniRespIngressTs)
		if ok {
			ds.NeighborRateRatio = rr
		}
		s.neighborRateRatioValid = ok
		s.iniRespIngressTs = t4
		s.iniRespEvtTs = t3
	}

	if ds.ComputeNeighborPropDelay {
		ds.NeighborPropDelay = time.Duration(tsmath.PropagationDelay(t1, t2, t3, t4, ds.NeighborRateRatio))
	}
	log.Debugf("[port %d] t1=%d t2=%d t3=%d t4=%d neighborRateRatio=%.9f neighborPropDelay=%v",
		id, t1, t2, t3, t4, ds.NeighborRateRatio, ds.NeighborPropDelay)

	if ds.NeighborPropDelay <= ds.NeighborPropDelayThresh {
		ds.AsCapable = true
	} else {
		log.Warningf("[port %d] neighbor propagation delay %v exceeds threshold %v", id, ds.NeighborPropDelay, ds.NeighborPropDelayThresh)
		ds.AsCapable = false
		e.stats.IncNeighborPropDelayExceeded(id)
	}
	s.lostResponses = 0
	ds.IsMeasuringDelay = true

	e.stats.SetAsCapable(id, ds.AsCapable)
	e.stats.SetNeighborPropDelay(id, ds.NeighborPropDelay)
	e.stats.SetNeighborRateRatio(id, ds.NeighborRateRatio)
	return nil
}
