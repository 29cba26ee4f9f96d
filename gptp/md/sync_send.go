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

	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// syncSend is MDSyncSend state, 802.1AS 11.2.15
type syncSend struct {
	state SyncSendState
	// sync in flight, held until its egress timestamp is known
	sync Packet
	info SyncInfo

	mdSyncIn       atomic.Pointer[SyncInfo]
	timestampAvail atomic.Bool
}

func (e *Engine) initSyncSend(p *port) {
	s := &p.send
	unref(&s.sync)
	s.mdSyncIn.Store(nil)
	s.timestampAvail.Store(false)
	s.info = SyncInfo{}
	s.state = SyncSendInitializing
}

func (e *Engine) syncSendStateMachine(id PortID, p *port) {
	s := &p.send
	if !p.ds.PttPortEnabled || !p.ds.AsCapable {
		unref(&s.sync)
		s.mdSyncIn.Store(nil)
		e.setSyncSendState(id, SyncSendInitializing)
		return
	}

	switch s.state {
	case SyncSendInitializing:
		e.setSyncSendState(id, SyncSendSendSync)
		e.sendSync(id, p)

	case SyncSendSendSync:
		e.sendSync(id, p)

	case SyncSendSendFollowUp:
		if s.timestampAvail.Swap(false) && !s.sync.Timestamp().IsZero() {
			e.sendFollowUp(id, p)
			unref(&s.sync)
			e.setSyncSendState(id, SyncSendSendSync)
			return
		}
		// next sync interval started and the timestamp never came
		if s.mdSyncIn.Load() != nil {
			log.Warningf("[port %d] no egress timestamp of sync seq=%d, sending next sync", id, s.sync.Message().GetHeader().SequenceID)
			e.stats.IncTXTimestampMissing(id, ptp.MessageSync)
			unref(&s.sync)
			e.setSyncSendState(id, SyncSendSendSync)
			e.sendSync(id, p)
		}
	}
}

func (e *Engine) setSyncSendState(id PortID, state SyncSendState) {
	s := &e.ports[id.index()].send
	if s.state != state {
		log.Debugf("[port %d] sync send: %s -> %s", id, s.state, state)
	}
	s.state = state
}

// sendSync sends Sync if upper layer asked for it
func (e *Engine) sendSync(id PortID, p *port) {
	s := &p.send
	info := s.mdSyncIn.Swap(nil)
	if info == nil {
		return
	}
	pkt, err := e.builder.BuildSync(id)
	if err != nil {
		log.Errorf("[port %d] building sync: %v", id, err)
		return
	}
	s.info = *info
	s.timestampAvail.Store(false)
	s.sync = pkt
	if err := e.send(id, pkt, true); err != nil {
		log.Errorf("[port %d] %v", id, err)
		unref(&s.sync)
		return
	}
	e.setSyncSendState(id, SyncSendSendFollowUp)
}

// sendFollowUp sends Follow_Up of the sync in flight
func (e *Engine) sendFollowUp(id PortID, p *port) {
	s := &p.send
	pkt, err := e.builder.BuildFollowUp(id, s.sync)
	if err != nil {
		log.Errorf("[port %d] building follow up: %v", id, err)
		return
	}
	fup, ok := pkt.Message().(*ptp.FollowUp)
	if !ok {
		log.Errorf("[port %d] builder returned %s instead of follow up", id, pkt.Message().MessageType())
		pkt.Unref()
		return
	}
	egress := s.sync.Timestamp()
	info := &s.info
	if info.LocalOrigin() {
		fup.PreciseOriginTimestamp = ptp.NewTimestamp(egress)
		fup.CorrectionField = ptp.Correction(tsmath.CorrectionField(0, 0, 1.0, info.correctionNs()))
	} else {
		fup.PreciseOriginTimestamp = info.PreciseOriginTimestamp
		fup.CorrectionField = ptp.Correction(tsmath.CorrectionField(egress.UnixNano(), info.UpstreamTxTime, info.RateRatio, info.correctionNs()))
	}
	fup.CumulativeScaledRateOffset = tsmath.ScaledRateOffset(info.RateRatio)
	fup.GMTimeBaseIndicator = info.GMTimeBaseIndicator
	fup.LastGMPhaseChange = info.LastGMPhaseChange
	fup.ScaledLastGMFreqChange = info.ScaledLastGMFreqChange
	if err := e.send(id, pkt, false); err != nil {
		log.Errorf("[port %d] %v", id, err)
	}
}
