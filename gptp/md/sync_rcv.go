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
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// syncRcv is MDSyncReceive state, 802.1AS 11.2.14
type syncRcv struct {
	state SyncRcvState
	timer Timer
	// sync waiting for its follow up
	sync                   Packet
	followUpReceiptTimeout time.Duration

	syncIn     slot
	followUpIn slot
}

func (s *syncRcv) releaseAll() {
	unref(&s.sync)
	s.syncIn.release()
	s.followUpIn.release()
}

func (e *Engine) initSyncRcv(p *port) {
	s := &p.rcv
	if s.timer != nil {
		s.timer.Stop()
	}
	s.releaseAll()
	s.followUpReceiptTimeout = 0
	s.state = SyncRcvDiscard
}

func (e *Engine) syncRcvStateMachine(id PortID, p *port) {
	s := &p.rcv
	if !p.ds.PttPortEnabled || !p.ds.AsCapable {
		if s.sync != nil {
			s.timer.Stop()
		}
		s.releaseAll()
		e.setSyncRcvState(id, SyncRcvDiscard)
		return
	}

	switch s.state {
	case SyncRcvDiscard, SyncRcvWaitSync:
		if sync := s.syncIn.take(); sync != nil {
			e.acceptSync(id, p, sync)
			return
		}
		// follow up without sync
		if fup := s.followUpIn.take(); fup != nil {
			log.Debugf("[port %d] dropping follow up, no sync pending", id)
			e.stats.IncRXDiscard(id, ptp.MessageFollowUp)
			fup.Unref()
		}

	case SyncRcvWaitFollowUp:
		if s.timer.Expired() {
			log.Warningf("[port %d] no follow up received after sync seq=%d within %v", id, s.sync.Message().GetHeader().SequenceID, s.followUpReceiptTimeout)
			e.stats.IncSyncFollowUpTimeout(id)
			unref(&s.sync)
			e.setSyncRcvState(id, SyncRcvDiscard)
			return
		}
		if sync := s.syncIn.take(); sync != nil {
			unref(&s.sync)
			e.acceptSync(id, p, sync)
		}
		fup := s.followUpIn.take()
		if fup == nil {
			return
		}
		defer fup.Unref()
		if err := matchFollowUp(s.sync, fup); err != nil {
			log.Debugf("[port %d] dropping follow up: %v", id, err)
			e.stats.IncRXDiscard(id, ptp.MessageFollowUp)
			return
		}
		info := e.newSyncInfo(p, s.sync, fup)
		s.timer.Stop()
		unref(&s.sync)
		e.setSyncRcvState(id, SyncRcvWaitSync)
		e.sink.RcvdMDSync(id, info)
	}
}

func (e *Engine) setSyncRcvState(id PortID, state SyncRcvState) {
	s := &e.ports[id.index()].rcv
	if s.state != state {
		log.Debugf("[port %d] sync rcv: %s -> %s", id, s.state, state)
	}
	s.state = state
}

// acceptSync takes ownership of sync and waits for its follow up
func (e *Engine) acceptSync(id PortID, p *port, sync Packet) {
	s := &p.rcv
	s.sync = sync
	interval := int8(sync.Message().GetHeader().LogMessageInterval)
	s.followUpReceiptTimeout = tsmath.LogIntervalToDuration(1, interval)
	s.timer.Stop()
	s.timer.Start(s.followUpReceiptTimeout)
	e.setSyncRcvState(id, SyncRcvWaitFollowUp)
}

func matchFollowUp(sync, fup Packet) error {
	if _, ok := fup.Message().(*ptp.FollowUp); !ok {
		return errUnexpectedMessage
	}
	sh := sync.Message().GetHeader()
	fh := fup.Message().GetHeader()
	if sh.SequenceID != fh.SequenceID {
		return fmt.Errorf("%w: got %d, want %d", errSequenceMismatch, fh.SequenceID, sh.SequenceID)
	}
	if sync.Timestamp().IsZero() {
		return fmt.Errorf("%w: sync ingress", errMissingTimestamp)
	}
	return nil
}

// newSyncInfo builds SyncInfo out of matching Sync and Follow_Up
func (e *Engine) newSyncInfo(p *port, sync, fup Packet) *SyncInfo {
	ds := &p.ds
	f := fup.Message().(*ptp.FollowUp)
	// neighbor frequency offset adds to the cumulative one carried by the Follow_Up TLV
	rateRatio := 1.0
	if f.FollowUpInformationTLV.Valid() {
		rateRatio = tsmath.RateRatioFromScaled(f.CumulativeScaledRateOffset)
	}
	return &SyncInfo{
		SourcePortIdentity:      f.SourcePortIdentity,
		LogMessageInterval:      f.LogMessageInterval,
		PreciseOriginTimestamp:  f.PreciseOriginTimestamp,
		CorrectionField:         sync.Message().GetHeader().CorrectionField,
		FollowUpCorrectionField: f.CorrectionField,
		RateRatio:               rateRatio + (ds.NeighborRateRatio - 1.0),
		GMTimeBaseIndicator:     f.GMTimeBaseIndicator,
		LastGMPhaseChange:       f.LastGMPhaseChange,
		ScaledLastGMFreqChange:  f.ScaledLastGMFreqChange,
		UpstreamTxTime: tsmath.UpstreamTxTime(
			sync.Timestamp().UnixNano(),
			float64(ds.NeighborPropDelay),
			float64(ds.DelayAsymmetry),
			ds.NeighborRateRatio,
		),
	}
}
