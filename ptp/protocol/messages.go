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

package protocol

// all references are given for IEEE 802.1AS-2020 and IEEE 1588-2019 Standards

import (
	"bytes"
	"encoding"
	"encoding/binary"
	"fmt"
)

// Version is what version of PTP protocol we implement
const Version uint8 = 2

// MajorSdoIDGPTP is the majorSdoId (transportSpecific) of gPTP messages, 10.6.2.2.1
const MajorSdoIDGPTP uint8 = 1

// Header Table 35 Common PTP message header
type Header struct {
	SdoIDAndMsgType     SdoIDAndMsgType // first 4 bits is majorSdoId, next 4 bits are msgtype
	Version             uint8
	MessageLength       uint16
	DomainNumber        uint8
	MinorSdoID          uint8
	FlagField           uint16
	CorrectionField     Correction
	MessageTypeSpecific uint32
	SourcePortIdentity  PortIdentity
	SequenceID          uint16
	ControlField        uint8
	LogMessageInterval  LogInterval
}

// MessageType returns MessageType
func (p *Header) MessageType() MessageType {
	return p.SdoIDAndMsgType.MsgType()
}

// SetSequence populates sequence field
func (p *Header) SetSequence(sequence uint16) {
	p.SequenceID = sequence
}

// GetHeader gives access to the common header
func (p *Header) GetHeader() *Header {
	return p
}

// flags used in FlagField as per Table 37 Values of flagField
const (
	// first octet
	FlagAlternateMaster  uint16 = 1 << (8 + 0)
	FlagTwoStep          uint16 = 1 << (8 + 1)
	FlagUnicast          uint16 = 1 << (8 + 2)
	FlagProfileSpecific1 uint16 = 1 << (8 + 5)
	FlagProfileSpecific2 uint16 = 1 << (8 + 6)
	// second octet
	FlagLeap61                   uint16 = 1 << 0
	FlagLeap59                   uint16 = 1 << 1
	FlagCurrentUtcOffsetValid    uint16 = 1 << 2
	FlagPTPTimescale             uint16 = 1 << 3
	FlagTimeTraceable            uint16 = 1 << 4
	FlagFrequencyTraceable       uint16 = 1 << 5
	FlagSynchronizationUncertain uint16 = 1 << 6
)

// TLVType is type for TLV types
type TLVType uint16

// TLVOrganizationExtension is the only TLV type gPTP MD layer messages carry
const TLVOrganizationExtension TLVType = 0x0003

// TLVHead is a common part of all TLVs
type TLVHead struct {
	TLVType     TLVType
	LengthField uint16 // The length of all TLVs shall be an even number of octets
}

// OrganizationIEEE8021 is the organizationId of IEEE 802.1 TLVs
var OrganizationIEEE8021 = [3]uint8{0x00, 0x80, 0xC2}

// followUpInformationLength is the lengthField of Follow_Up information TLV, 11.4.4.3.3
const followUpInformationLength = 28

// FollowUpInformationTLV 802.1AS-2020 Table 11-11 Follow_Up information TLV
type FollowUpInformationTLV struct {
	TLVHead
	OrganizationID             [3]uint8
	OrganizationSubType        [3]uint8
	CumulativeScaledRateOffset int32
	GMTimeBaseIndicator        uint16
	LastGMPhaseChange          ScaledNS
	ScaledLastGMFreqChange     int32
}

// NewFollowUpInformationTLV returns TLV with organization fields populated
func NewFollowUpInformationTLV() FollowUpInformationTLV {
	return FollowUpInformationTLV{
		TLVHead: TLVHead{
			TLVType:     TLVOrganizationExtension,
			LengthField: followUpInformationLength,
		},
		OrganizationID:      OrganizationIEEE8021,
		OrganizationSubType: [3]uint8{0, 0, 1},
	}
}

// Valid checks TLV is actually a Follow_Up information TLV
func (t *FollowUpInformationTLV) Valid() bool {
	return t.TLVType == TLVOrganizationExtension &&
		t.LengthField == followUpInformationLength &&
		t.OrganizationID == OrganizationIEEE8021 &&
		t.OrganizationSubType == [3]uint8{0, 0, 1}
}

// SyncBody 802.1AS Table 11-9, two-step Sync carries only reserved octets
type SyncBody struct {
	Reserved [10]uint8
}

// Sync is a full gPTP two-step Sync packet
type Sync struct {
	Header
	SyncBody
}

// FollowUpBody Table 45 Follow_Up message fields
type FollowUpBody struct {
	PreciseOriginTimestamp Timestamp
}

// FollowUp is a full gPTP Follow_Up packet with Follow_Up information TLV
type FollowUp struct {
	Header
	FollowUpBody
	FollowUpInformationTLV
}

// UnmarshalBinary parses Follow_Up, tolerating peers which omit the information TLV
func (p *FollowUp) UnmarshalBinary(b []byte) error {
	r := bytes.NewReader(b)
	if err := binary.Read(r, binary.BigEndian, &p.Header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &p.FollowUpBody); err != nil {
		return fmt.Errorf("reading follow up body: %w", err)
	}
	p.FollowUpInformationTLV = FollowUpInformationTLV{}
	if r.Len() < binary.Size(FollowUpInformationTLV{}) {
		return nil
	}
	if err := binary.Read(r, binary.BigEndian, &p.FollowUpInformationTLV); err != nil {
		return fmt.Errorf("reading follow up information tlv: %w", err)
	}
	return nil
}

// PDelayReqBody Table 47 Pdelay_Req message fields
type PDelayReqBody struct {
	OriginTimestamp Timestamp
	Reserved        [10]uint8
}

// PDelayReq is a full Pdelay_Req packet
type PDelayReq struct {
	Header
	PDelayReqBody
}

// PDelayRespBody Table 48 Pdelay_Resp message fields
type PDelayRespBody struct {
	RequestReceiptTimestamp Timestamp
	RequestingPortIdentity  PortIdentity
}

// PDelayResp is a full Pdelay_Resp packet
type PDelayResp struct {
	Header
	PDelayRespBody
}

// PDelayRespFollowUpBody Table 49 Pdelay_Resp_Follow_Up message fields
type PDelayRespFollowUpBody struct {
	ResponseOriginTimestamp Timestamp
	RequestingPortIdentity  PortIdentity
}

// PDelayRespFollowUp is a full Pdelay_Resp_Follow_Up packet
type PDelayRespFollowUp struct {
	Header
	PDelayRespFollowUpBody
}

// Packet is an iterface to abstract all different packets
type Packet interface {
	MessageType() MessageType
	SetSequence(uint16)
	GetHeader() *Header
}

// Bytes converts any packet to []bytes
func Bytes(p Packet) ([]byte, error) {
	// interface smuggling
	if pp, ok := p.(encoding.BinaryMarshaler); ok {
		return pp.MarshalBinary()
	}
	var b bytes.Buffer
	if err := binary.Write(&b, binary.BigEndian, p); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// FromBytes parses []byte into any packet
func FromBytes(rawBytes []byte, p Packet) error {
	// interface smuggling
	if pp, ok := p.(encoding.BinaryUnmarshaler); ok {
		return pp.UnmarshalBinary(rawBytes)
	}
	reader := bytes.NewReader(rawBytes)
	return binary.Read(reader, binary.BigEndian, p)
}

// DecodePacket provides single entry point to try and decode any []bytes to gPTP MD packet.
// Resulting Packet user can then either switch based on MessageType(), or just with type switch.
func DecodePacket(b []byte) (Packet, error) {
	msgType, err := ProbeMsgType(b)
	if err != nil {
		return nil, err
	}
	var p Packet
	switch msgType {
	case MessageSync:
		p = &Sync{}
	case MessageFollowUp:
		p = &FollowUp{}
	case MessagePDelayReq:
		p = &PDelayReq{}
	case MessagePDelayResp:
		p = &PDelayResp{}
	case MessagePDelayRespFollowUp:
		p = &PDelayRespFollowUp{}
	default:
		return nil, fmt.Errorf("unsupported type %s (%d)", msgType, msgType)
	}

	if err := FromBytes(b, p); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", msgType, err)
	}
	return p, nil
}
