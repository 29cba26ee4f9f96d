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
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

// EtherType of IEEE 1588 / 802.1AS messages
const EtherType layers.EthernetType = 0x88F7

// PeerMulticast is the destination address of all media-dependent gPTP messages.
// Bridges never forward it, so messages reach only the link peer.
var PeerMulticast = net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}

// LayerTypeGPTP is gopacket layer type of gPTP messages carried over Ethernet
var LayerTypeGPTP = gopacket.RegisterLayerType(1588, gopacket.LayerTypeMetadata{Name: "gPTP", Decoder: gopacket.DecodeFunc(decodeGPTP)})

func init() {
	layers.EthernetTypeMetadata[EtherType] = layers.EnumMetadata{
		DecodeWith: LayerTypeGPTP,
		Name:       "gPTP",
		LayerType:  LayerTypeGPTP,
	}
}

// LayerGPTP is a gopacket layer holding decoded gPTP message
type LayerGPTP struct {
	layers.BaseLayer
	Packet ptp.Packet
}

// LayerType returns LayerTypeGPTP
func (l *LayerGPTP) LayerType() gopacket.LayerType { return LayerTypeGPTP }

// Payload is empty as it's the final layer
func (l *LayerGPTP) Payload() []byte { return nil }

func decodeGPTP(data []byte, p gopacket.PacketBuilder) error {
	pkt, err := ptp.DecodePacket(data)
	if err != nil {
		return fmt.Errorf("decoding gPTP packet: %w", err)
	}
	l := &LayerGPTP{
		BaseLayer: layers.BaseLayer{Contents: data},
		Packet:    pkt,
	}
	p.AddLayer(l)
	p.SetApplicationLayer(l)
	return nil
}

// EncodeFrame wraps gPTP message into Ethernet frame sent from src to PeerMulticast
func EncodeFrame(src net.HardwareAddr, msg ptp.Packet) ([]byte, error) {
	payload, err := ptp.Bytes(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", msg.MessageType(), err)
	}
	eth := &layers.Ethernet{
		SrcMAC:       src,
		DstMAC:       PeerMulticast,
		EthernetType: EtherType,
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("serializing frame: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeFrame extracts source address and gPTP message from Ethernet frame
func DecodeFrame(frame []byte) (net.HardwareAddr, ptp.Packet, error) {
	packet := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.NoCopy)
	if errLayer := packet.ErrorLayer(); errLayer != nil {
		return nil, nil, fmt.Errorf("decoding frame: %w", errLayer.Error())
	}
	ethLayer := packet.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return nil, nil, fmt.Errorf("not an ethernet frame")
	}
	eth := ethLayer.(*layers.Ethernet)
	gptpLayer := packet.Layer(LayerTypeGPTP)
	if gptpLayer == nil {
		return nil, nil, fmt.Errorf("not a gPTP frame, ethertype %s", eth.EthernetType)
	}
	return eth.SrcMAC, gptpLayer.(*LayerGPTP).Packet, nil
}
