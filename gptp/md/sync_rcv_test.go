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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

func syncPacket(seq uint16, ingress int64, logInterval ptp.LogInterval) *fakePacket {
	h := header(ptp.MessageSync, seq, peerPort)
	h.FlagField = ptp.FlagTwoStep
	h.LogMessageInterval = logInterval
	p := newFakePacket(&ptp.Sync{Header: h})
	p.SetTimestamp(ts(ingress))
	return p
}

func followUpPacket(seq uint16, origin uint64) *fakePacket {
	h := header(ptp.MessageFollowUp, seq, peerPort)
	h.LogMessageInterval = -3
	h.CorrectionField = ptp.NewCorrection(1000)
	fup := &ptp.FollowUp{
		Header:                 h,
		FollowUpBody:           ptp.FollowUpBody{PreciseOriginTimestamp: ptp.NewTimestampFromNs(origin)},
		FollowUpInformationTLV: ptp.NewFollowUpInformationTLV(),
	}
	fup.CumulativeScaledRateOffset = tsmath.ScaledRateOffset(1.000002)
	fup.GMTimeBaseIndicator = 7
	return newFakePacket(fup)
}

// newSyncRcvEnv returns env with AS capable port measured at 500ns delay
func newSyncRcvEnv(t *testing.T) (*testEnv, *port) {
	env := newTestEnv(t)
	p := env.port()
	p.ds.AsCapable = true
	p.ds.NeighborPropDelay = 500 * time.Nanosecond
	p.ds.DelayAsymmetry = 100 * time.Nanosecond
	p.ds.NeighborRateRatio = 1.0
	env.e.syncRcvStateMachine(1, p)
	return env, p
}

func TestSyncRcv(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	sync := syncPacket(5, 10_000_000_000, -3)
	env.e.Receive(1, sync)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvWaitFollowUp, env.e.SyncRcvState(1))
	require.True(t, env.rcvTimer().running)
	require.Equal(t, 125*time.Millisecond, env.rcvTimer().d)
	require.Equal(t, 1, sync.refs)

	var got *SyncInfo
	env.sink.EXPECT().RcvdMDSync(PortID(1), gomock.Any()).Do(func(_ PortID, info *SyncInfo) {
		got = info
	}).Times(1)
	fup := followUpPacket(5, 9_999_000_000)
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvWaitSync, env.e.SyncRcvState(1))
	require.False(t, env.rcvTimer().running)
	require.Equal(t, 0, sync.refs)
	require.Equal(t, 0, fup.refs)

	require.NotNil(t, got)
	require.Equal(t, peerPort, got.SourcePortIdentity)
	require.Equal(t, ptp.LogInterval(-3), got.LogMessageInterval)
	require.Equal(t, ptp.NewTimestampFromNs(9_999_000_000), got.PreciseOriginTimestamp)
	require.Equal(t, ptp.NewCorrection(1000), got.FollowUpCorrectionField)
	require.Equal(t, uint16(7), got.GMTimeBaseIndicator)
	require.InDelta(t, 1.000002, got.RateRatio, 1e-9)
	// 10s - (500ns + 100ns) / 1.0
	require.Equal(t, int64(9_999_999_400), got.UpstreamTxTime)
	require.False(t, got.LocalOrigin())
}

func TestSyncRcvSequenceMismatch(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	sync := syncPacket(5, 10_000_000_000, 0)
	env.e.Receive(1, sync)
	env.e.syncRcvStateMachine(1, p)

	fup := followUpPacket(6, 9_999_000_000)
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvWaitFollowUp, env.e.SyncRcvState(1))
	require.Same(t, sync, p.rcv.sync.(*fakePacket))
	require.Equal(t, 1, sync.refs)
	require.Equal(t, 0, fup.refs)
	require.Equal(t, 1, env.counters["rx_discard.FOLLOW_UP"])
	require.True(t, env.rcvTimer().running)
}

func TestSyncRcvFollowUpTimeout(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	sync := syncPacket(5, 10_000_000_000, 0)
	env.e.Receive(1, sync)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, time.Second, env.rcvTimer().d)

	env.rcvTimer().fire()
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvDiscard, env.e.SyncRcvState(1))
	require.Equal(t, 0, sync.refs)
	require.Nil(t, p.rcv.sync)
	require.Equal(t, 1, env.counters["follow_up_timeout"])

	// late follow up is dropped, the sync is not released again
	fup := followUpPacket(5, 9_999_000_000)
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvDiscard, env.e.SyncRcvState(1))
	require.Equal(t, 0, sync.refs)
	require.Equal(t, 0, fup.refs)
	require.Equal(t, 1, env.counters["follow_up_timeout"])
}

func TestSyncRcvExtraSync(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	first := syncPacket(5, 10_000_000_000, 0)
	env.e.Receive(1, first)
	env.e.syncRcvStateMachine(1, p)

	second := syncPacket(6, 11_000_000_000, -1)
	env.e.Receive(1, second)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvWaitFollowUp, env.e.SyncRcvState(1))
	require.Equal(t, 0, first.refs)
	require.Equal(t, 1, second.refs)
	require.Equal(t, 2, env.rcvTimer().starts)
	require.Equal(t, 500*time.Millisecond, env.rcvTimer().d)

	env.sink.EXPECT().RcvdMDSync(PortID(1), gomock.Any()).Times(1)
	env.e.Receive(1, followUpPacket(6, 10_999_000_000))
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvWaitSync, env.e.SyncRcvState(1))
	require.Equal(t, 0, second.refs)
}

func TestSyncRcvFollowUpWithoutSync(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	fup := followUpPacket(5, 9_999_000_000)
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvDiscard, env.e.SyncRcvState(1))
	require.Equal(t, 0, fup.refs)
}

func TestSyncRcvNotAsCapable(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	sync := syncPacket(5, 10_000_000_000, 0)
	env.e.Receive(1, sync)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvWaitFollowUp, env.e.SyncRcvState(1))

	p.ds.AsCapable = false
	fup := followUpPacket(5, 9_999_000_000)
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvDiscard, env.e.SyncRcvState(1))
	require.Equal(t, 0, sync.refs)
	require.Equal(t, 0, fup.refs)
	require.False(t, env.rcvTimer().running)

	// syncs are dropped while not AS capable
	next := syncPacket(6, 11_000_000_000, 0)
	env.e.Receive(1, next)
	env.e.syncRcvStateMachine(1, p)
	require.Equal(t, SyncRcvDiscard, env.e.SyncRcvState(1))
	require.Equal(t, 0, next.refs)
}

func TestSyncRcvFollowUpWithoutTLV(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	p.ds.NeighborRateRatio = 1.000001
	env.e.Receive(1, syncPacket(5, 10_000_000_000, 0))
	env.e.syncRcvStateMachine(1, p)

	var got *SyncInfo
	env.sink.EXPECT().RcvdMDSync(PortID(1), gomock.Any()).Do(func(_ PortID, info *SyncInfo) {
		got = info
	}).Times(1)
	fup := followUpPacket(5, 9_999_000_000)
	fup.msg.(*ptp.FollowUp).FollowUpInformationTLV = ptp.FollowUpInformationTLV{}
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	require.NotNil(t, got)
	require.Equal(t, 1.000001, got.RateRatio)
}

func TestSyncRcvRateRatioAccumulation(t *testing.T) {
	env, p := newSyncRcvEnv(t)
	p.ds.NeighborRateRatio = 1.0005
	env.e.Receive(1, syncPacket(6, 10_000_000_000, -3))
	env.e.syncRcvStateMachine(1, p)

	var got *SyncInfo
	env.sink.EXPECT().RcvdMDSync(PortID(1), gomock.Any()).Do(func(_ PortID, info *SyncInfo) {
		got = info
	}).Times(1)
	fup := followUpPacket(6, 9_999_000_000)
	fup.msg.(*ptp.FollowUp).CumulativeScaledRateOffset = tsmath.ScaledRateOffset(1.0005)
	env.e.Receive(1, fup)
	env.e.syncRcvStateMachine(1, p)
	require.NotNil(t, got)
	// offsets add up, product would give 1.00100025
	require.InDelta(t, 1.001, got.RateRatio, 1e-9)
}
