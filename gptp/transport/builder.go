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

package transport

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/facebook/gptp/gptp/md"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// control field values of 802.1AS Table 10-7
const (
	controlSync     uint8 = 0
	controlFollowUp uint8 = 2
	controlOther    uint8 = 5
)

type builderPort struct {
	iface     string
	ds        *md.PortDS
	syncSeq   uint16
	pdelaySeq uint16
}

// Builder builds gPTP messages of the media-dependent layer. It implements md.MessageBuilder.
type Builder struct {
	sync.Mutex
	domain uint8
	ports  map[md.PortID]*builderPort
}

// NewBuilder returns Builder for given gPTP domain
func NewBuilder(domain uint8) *Builder {
	return &Builder{
		domain: domain,
		ports:  map[md.PortID]*builderPort{},
	}
}

// AddPort registers port, its data set is read to fill identities and intervals
func (b *Builder) AddPort(id md.PortID, iface string, ds *md.PortDS) {
	b.Lock()
	defer b.Unlock()
	b.ports[id] = &builderPort{iface: iface, ds: ds}
}

func (b *Builder) port(id md.PortID) (*builderPort, error) {
	p, found := b.ports[id]
	if !found {
		return nil, fmt.Errorf("unknown port %d", id)
	}
	return p, nil
}

func (b *Builder) header(p *builderPort, t ptp.MessageType, length int, seq uint16, control uint8, interval ptp.LogInterval) ptp.Header {
	return ptp.Header{
		SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(t, ptp.MajorSdoIDGPTP),
		Version:            ptp.Version,
		MessageLength:      uint16(length),
		DomainNumber:       b.domain,
		FlagField:          ptp.FlagPTPTimescale,
		SourcePortIdentity: p.ds.PortIdentity,
		SequenceID:         seq,
		ControlField:       control,
		LogMessageInterval: interval,
	}
}

// BuildSync builds two-step Sync
func (b *Builder) BuildSync(id md.PortID) (md.Packet, error) {
	b.Lock()
	defer b.Unlock()
	p, err := b.port(id)
	if err != nil {
		return nil, err
	}
	msg := &ptp.Sync{
		Header: b.header(p, ptp.MessageSync, binary.Size(ptp.Sync{}), p.syncSeq, controlSync, ptp.LogInterval(p.ds.CurrentLogSyncInterval)),
	}
	msg.FlagField |= ptp.FlagTwoStep
	p.syncSeq++
	return NewBuffer(p.iface, msg), nil
}

// BuildFollowUp builds Follow_Up for sync. Timestamp, correction and TLV values are left to the caller.
func (b *Builder) BuildFollowUp(id md.PortID, sync md.Packet) (md.Packet, error) {
	b.Lock()
	defer b.Unlock()
	p, err := b.port(id)
	if err != nil {
		return nil, err
	}
	sh := sync.Message().GetHeader()
	msg := &ptp.FollowUp{
		Header:                 b.header(p, ptp.MessageFollowUp, binary.Size(ptp.FollowUp{}), sh.SequenceID, controlFollowUp, sh.LogMessageInterval),
		FollowUpInformationTLV: ptp.NewFollowUpInformationTLV(),
	}
	return NewBuffer(p.iface, msg), nil
}

// BuildPDelayReq builds Pdelay_Req
func (b *Builder) BuildPDelayReq(id md.PortID) (md.Packet, error) {
	b.Lock()
	defer b.Unlock()
	p, err := b.port(id)
	if err != nil {
		return nil, err
	}
	msg := &ptp.PDelayReq{
		Header: b.header(p, ptp.MessagePDelayReq, binary.Size(ptp.PDelayReq{}), p.pdelaySeq, controlOther, ptp.LogInterval(p.ds.CurLogPdelayReqInterval)),
	}
	p.pdelaySeq++
	return NewBuffer(p.iface, msg), nil
}

// BuildPDelayResp builds Pdelay_Resp answering req
func (b *Builder) BuildPDelayResp(id md.PortID, req md.Packet) (md.Packet, error) {
	b.Lock()
	defer b.Unlock()
	p, err := b.port(id)
	if err != nil {
		return nil, err
	}
	if req.Timestamp().IsZero() {
		return nil, fmt.Errorf("pdelay request seq=%d has no ingress timestamp", req.Message().GetHeader().SequenceID)
	}
	rh := req.Message().GetHeader()
	msg := &ptp.PDelayResp{
		Header: b.header(p, ptp.MessagePDelayResp, binary.Size(ptp.PDelayResp{}), rh.SequenceID, controlOther, ptp.LogIntervalUnspecified),
		PDelayRespBody: ptp.PDelayRespBody{
			RequestReceiptTimestamp: ptp.NewTimestamp(req.Timestamp()),
			RequestingPortIdentity:  rh.SourcePortIdentity,
		},
	}
	msg.FlagField |= ptp.FlagTwoStep
	msg.DomainNumber = rh.DomainNumber
	return NewBuffer(p.iface, msg), nil
}

// BuildPDelayRespFollowUp builds Pdelay_Resp_Follow_Up carrying egress time of resp
func (b *Builder) BuildPDelayRespFollowUp(id md.PortID, resp md.Packet) (md.Packet, error) {
	b.Lock()
	defer b.Unlock()
	p, err := b.port(id)
	if err != nil {
		return nil, err
	}
	r, ok := resp.Message().(*ptp.PDelayResp)
	if !ok {
		return nil, fmt.Errorf("can't build pdelay response follow up for %s", resp.Message().MessageType())
	}
	msg := &ptp.PDelayRespFollowUp{
		Header: b.header(p, ptp.MessagePDelayRespFollowUp, binary.Size(ptp.PDelayRespFollowUp{}), r.SequenceID, controlOther, ptp.LogIntervalUnspecified),
		PDelayRespFollowUpBody: ptp.PDelayRespFollowUpBody{
			ResponseOriginTimestamp: ptp.NewTimestamp(resp.Timestamp()),
			RequestingPortIdentity:  r.RequestingPortIdentity,
		},
	}
	msg.DomainNumber = r.DomainNumber
	return NewBuffer(p.iface, msg), nil
}
