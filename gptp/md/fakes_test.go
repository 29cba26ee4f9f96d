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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

const (
	localClock ptp.ClockIdentity = 0x0c42a1fffe000001
	peerClock  ptp.ClockIdentity = 0x0c42a1fffe000002
)

var peerPort = ptp.PortIdentity{ClockIdentity: peerClock, PortNumber: 1}

type fakePacket struct {
	refs  int
	ts    time.Time
	msg   ptp.Packet
	iface string
}

func newFakePacket(msg ptp.Packet) *fakePacket {
	return &fakePacket{refs: 1, msg: msg, iface: "eth0"}
}

func (p *fakePacket) Ref() { p.refs++ }
func (p *fakePacket) Unref() {
	p.refs--
	if p.refs < 0 {
		panic(fmt.Sprintf("%s seq=%d released too many times", p.msg.MessageType(), p.msg.GetHeader().SequenceID))
	}
}
func (p *fakePacket) SetTimestamp(ts time.Time) { p.ts = ts }
func (p *fakePacket) Timestamp() time.Time      { return p.ts }
func (p *fakePacket) Iface() string             { return p.iface }
func (p *fakePacket) Message() ptp.Packet       { return p.msg }

type fakeTimer struct {
	running bool
	expired bool
	d       time.Duration
	starts  int
}

func (t *fakeTimer) Start(d time.Duration) {
	t.running = true
	t.expired = false
	t.d = d
	t.starts++
}

func (t *fakeTimer) Stop() { t.running = false }

func (t *fakeTimer) Expired() bool { return t.expired }

func (t *fakeTimer) fire() {
	if t.running {
		t.running = false
		t.expired = true
	}
}

func header(t ptp.MessageType, seq uint16, src ptp.PortIdentity) ptp.Header {
	return ptp.Header{
		SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(t, ptp.MajorSdoIDGPTP),
		Version:            ptp.Version,
		SequenceID:         seq,
		SourcePortIdentity: src,
	}
}

// fakeBuilder builds real messages, the way transport does, without the wire
type fakeBuilder struct {
	seq   map[ptp.MessageType]uint16
	built []*fakePacket
	err   error
}

func (b *fakeBuilder) next(t ptp.MessageType) uint16 {
	if b.seq == nil {
		b.seq = map[ptp.MessageType]uint16{}
	}
	s := b.seq[t]
	b.seq[t]++
	return s
}

func (b *fakeBuilder) keep(msg ptp.Packet) (Packet, error) {
	if b.err != nil {
		return nil, b.err
	}
	p := newFakePacket(msg)
	b.built = append(b.built, p)
	return p, nil
}

func local(port PortID) ptp.PortIdentity {
	return ptp.PortIdentity{ClockIdentity: localClock, PortNumber: uint16(port)}
}

func (b *fakeBuilder) BuildSync(port PortID) (Packet, error) {
	h := header(ptp.MessageSync, b.next(ptp.MessageSync), local(port))
	h.FlagField = ptp.FlagTwoStep
	return b.keep(&ptp.Sync{Header: h})
}

func (b *fakeBuilder) BuildFollowUp(port PortID, sync Packet) (Packet, error) {
	return b.keep(&ptp.FollowUp{
		Header:                 header(ptp.MessageFollowUp, sync.Message().GetHeader().SequenceID, local(port)),
		FollowUpInformationTLV: ptp.NewFollowUpInformationTLV(),
	})
}

func (b *fakeBuilder) BuildPDelayReq(port PortID) (Packet, error) {
	return b.keep(&ptp.PDelayReq{Header: header(ptp.MessagePDelayReq, b.next(ptp.MessagePDelayReq), local(port))})
}

func (b *fakeBuilder) BuildPDelayResp(port PortID, req Packet) (Packet, error) {
	rh := req.Message().GetHeader()
	return b.keep(&ptp.PDelayResp{
		Header: header(ptp.MessagePDelayResp, rh.SequenceID, local(port)),
		PDelayRespBody: ptp.PDelayRespBody{
			RequestReceiptTimestamp: ptp.NewTimestamp(req.Timestamp()),
			RequestingPortIdentity:  rh.SourcePortIdentity,
		},
	})
}

func (b *fakeBuilder) BuildPDelayRespFollowUp(port PortID, resp Packet) (Packet, error) {
	r := resp.Message().(*ptp.PDelayResp)
	return b.keep(&ptp.PDelayRespFollowUp{
		Header: header(ptp.MessagePDelayRespFollowUp, r.SequenceID, local(port)),
		PDelayRespFollowUpBody: ptp.PDelayRespFollowUpBody{
			ResponseOriginTimestamp: ptp.NewTimestamp(resp.Timestamp()),
			RequestingPortIdentity:  r.RequestingPortIdentity,
		},
	})
}

type testEnv struct {
	t       *testing.T
	e       *Engine
	sender  *MockSender
	sink    *MockSyncSink
	stats   *MockStats
	builder *fakeBuilder
	timers  []*fakeTimer
	// sent packets, in order
	sent []*fakePacket
	// egress timestamp stamped by sender, zero leaves packets unstamped
	egress   time.Time
	counters map[string]int
	sendErr  error
}

func newTestEnv(t *testing.T) *testEnv {
	ctrl := gomock.NewController(t)
	env := &testEnv{
		t:        t,
		sender:   NewMockSender(ctrl),
		sink:     NewMockSyncSink(ctrl),
		stats:    NewMockStats(ctrl),
		builder:  &fakeBuilder{},
		counters: map[string]int{},
	}
	env.sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ PortID, pkt Packet) error {
		p := pkt.(*fakePacket)
		if !env.egress.IsZero() {
			p.SetTimestamp(env.egress)
		}
		env.sent = append(env.sent, p)
		p.Unref()
		return env.sendErr
	}).AnyTimes()
	env.countStats()
	env.e = New(
		EngineConfig{ClockIdentity: localClock},
		env.builder, env.sender, env.sink, env.stats,
		WithTimerFactory(func() Timer {
			ft := &fakeTimer{}
			env.timers = append(env.timers, ft)
			return ft
		}),
	)
	ds := NewPortDS()
	ds.PttPortEnabled = true
	ds.NeighborPropDelayThresh = time.Millisecond
	id, err := env.e.AddPort(ds)
	require.NoError(t, err)
	require.Equal(t, PortID(1), id)
	env.e.InitStateMachines()
	return env
}

func (env *testEnv) countStats() {
	count := func(name string) func(PortID) {
		return func(PortID) { env.counters[name]++ }
	}
	countType := func(name string) func(PortID, ptp.MessageType) {
		return func(_ PortID, t ptp.MessageType) { env.counters[name+"."+t.String()]++ }
	}
	st := env.stats.EXPECT()
	st.IncTX(gomock.Any(), gomock.Any()).Do(countType("tx")).AnyTimes()
	st.IncTXError(gomock.Any(), gomock.Any()).Do(countType("tx_error")).AnyTimes()
	st.IncTXTimestampMissing(gomock.Any(), gomock.Any()).Do(countType("tx_ts_missing")).AnyTimes()
	st.IncRX(gomock.Any(), gomock.Any()).Do(countType("rx")).AnyTimes()
	st.IncRXDiscard(gomock.Any(), gomock.Any()).Do(countType("rx_discard")).AnyTimes()
	st.IncNeighborPropDelayExceeded(gomock.Any()).Do(count("prop_delay_exceeded")).AnyTimes()
	st.IncPDelayLostResponsesExceeded(gomock.Any()).Do(count("lost_responses_exceeded")).AnyTimes()
	st.IncPDelayMultipleResponses(gomock.Any()).Do(count("multiple_responses")).AnyTimes()
	st.IncPDelayCooldown(gomock.Any()).Do(count("cooldown")).AnyTimes()
	st.IncSyncFollowUpTimeout(gomock.Any()).Do(count("follow_up_timeout")).AnyTimes()
	st.SetAsCapable(gomock.Any(), gomock.Any()).AnyTimes()
	st.SetNeighborPropDelay(gomock.Any(), gomock.Any()).AnyTimes()
	st.SetNeighborRateRatio(gomock.Any(), gomock.Any()).AnyTimes()
}

func (env *testEnv) tick() {
	env.e.StateMachines(1)
}

func (env *testEnv) port() *port {
	return &env.e.ports[0]
}

func (env *testEnv) ds() *PortDS {
	return env.e.PortDS(1)
}

// timers are created in AddPort order: pdelay request, then sync receive
func (env *testEnv) reqTimer() *fakeTimer { return env.timers[0] }
func (env *testEnv) rcvTimer() *fakeTimer { return env.timers[1] }

func (env *testEnv) sentOf(t ptp.MessageType) []*fakePacket {
	res := []*fakePacket{}
	for _, p := range env.sent {
		if p.msg.MessageType() == t {
			res = append(res, p)
		}
	}
	return res
}

func (env *testEnv) lastSent(t ptp.MessageType) *fakePacket {
	s := env.sentOf(t)
	require.NotEmpty(env.t, s, "no %s sent", t)
	return s[len(s)-1]
}

func ts(ns int64) time.Time {
	return time.Unix(0, ns)
}
