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
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

// pdelayResp is MDPdelayResp state, 802.1AS 11.2.20
type pdelayResp struct {
	state PDelayRespState
	// response waiting for its egress timestamp
	resp Packet

	reqIn          slot
	timestampAvail atomic.Bool
}

func (e *Engine) initPDelayResp(p *port) {
	s := &p.resp
	unref(&s.resp)
	s.reqIn.release()
	s.timestampAvail.Store(false)
	s.state = PDelayRespNotEnabled
}

func (e *Engine) pdelayRespStateMachine(id PortID, p *port) {
	s := &p.resp
	if !p.ds.PttPortEnabled {
		if s.state != PDelayRespNotEnabled {
			e.setPDelayRespState(id, PDelayRespNotEnabled)
		}
		unref(&s.resp)
		// requests received while disabled are dropped
		s.reqIn.release()
		return
	}

	switch s.state {
	case PDelayRespNotEnabled:
		// a request arriving before this tick is answered in InitialWaitReq
		e.setPDelayRespState(id, PDelayRespInitialWaitReq)

	case PDelayRespInitialWaitReq, PDelayRespWaitReq:
		e.answerPDelayReq(id, p)

	case PDelayRespWaitTimestamp:
		if s.timestampAvail.Swap(false) && !s.resp.Timestamp().IsZero() {
			e.sendPDelayRespFollowUp(id, p)
			unref(&s.resp)
			e.setPDelayRespState(id, PDelayRespWaitReq)
			return
		}
		if !s.reqIn.empty() {
			log.Warningf("[port %d] no egress timestamp of pdelay response, answering new request", id)
			e.stats.IncTXTimestampMissing(id, ptp.MessagePDelayResp)
			unref(&s.resp)
			e.setPDelayRespState(id, PDelayRespWaitReq)
			e.answerPDelayReq(id, p)
		}
	}
}

func (e *Engine) setPDelayRespState(id PortID, state PDelayRespState) {
	s := &e.ports[id.index()].resp
	if s.state != state {
		log.Debugf("[port %d] pdelay resp: %s -> %s", id, s.state, state)
	}
	s.state = state
}

// answerPDelayReq sends Pdelay_Resp for a pending request
func (e *Engine) answerPDelayReq(id PortID, p *port) {
	s := &p.resp
	req := s.reqIn.take()
	if req == nil {
		return
	}
	defer req.Unref()
	if req.Message().GetHeader().SourcePortIdentity.ClockIdentity == e.defaultDS.ClockIdentity {
		log.Warningf("[port %d] ignoring pdelay request from local clock", id)
		e.stats.IncRXDiscard(id, ptp.MessagePDelayReq)
		return
	}
	if req.Timestamp().IsZero() {
		log.Warningf("[port %d] ignoring pdelay request: %v", id, errMissingTimestamp)
		e.stats.IncRXDiscard(id, ptp.MessagePDelayReq)
		return
	}
	resp, err := e.builder.BuildPDelayResp(id, req)
	if err != nil {
		log.Errorf("[port %d] building pdelay response: %v", id, err)
		return
	}
	s.timestampAvail.Store(false)
	s.resp = resp
	if err := e.send(id, resp, true); err != nil {
		log.Errorf("[port %d] %v", id, err)
		unref(&s.resp)
		e.setPDelayRespState(id, PDelayRespWaitReq)
		return
	}
	e.setPDelayRespState(id, PDelayRespWaitTimestamp)
}

func (e *Engine) sendPDelayRespFollowUp(id PortID, p *port) {
	fup, err := e.builder.BuildPDelayRespFollowUp(id, p.resp.resp)
	if err != nil {
		log.Errorf("[port %d] building pdelay response follow up: %v", id, err)
		return
	}
	if err := e.send(id, fup, false); err != nil {
		log.Errorf("[port %d] %v", id, err)
	}
}
