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

package cmd

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"

	"github.com/facebook/gptp/gptp/transport"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

var testMAC = net.HardwareAddr{0x0c, 0x42, 0xa1, 0x00, 0x00, 0x01}

func writeCapture(t *testing.T, msgs ...ptp.Packet) string {
	path := filepath.Join(t.TempDir(), "gptp.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for _, msg := range msgs {
		frame, err := transport.EncodeFrame(testMAC, msg)
		require.NoError(t, err)
		ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(frame), Length: len(frame)}
		require.NoError(t, w.WritePacket(ci, frame))
	}
	return path
}

func testMessages() []ptp.Packet {
	port := ptp.PortIdentity{ClockIdentity: 0x0c42a1fffe000001, PortNumber: 1}
	return []ptp.Packet{
		&ptp.PDelayReq{Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessagePDelayReq, ptp.MajorSdoIDGPTP),
			Version:            ptp.Version,
			MessageLength:      54,
			SourcePortIdentity: port,
			SequenceID:         3,
		}},
		&ptp.Sync{Header: ptp.Header{
			SdoIDAndMsgType:    ptp.NewSdoIDAndMsgType(ptp.MessageSync, ptp.MajorSdoIDGPTP),
			Version:            ptp.Version,
			MessageLength:      44,
			SourcePortIdentity: port,
			SequenceID:         4,
		}},
	}
}

func TestDecode(t *testing.T) {
	path := writeCapture(t, testMessages()...)

	var out bytes.Buffer
	require.NoError(t, decode(path, nil, &out))
	require.Contains(t, out.String(), "0c:42:a1:00:00:01 -> 01:80:c2:00:00:0e")
	require.Contains(t, out.String(), "protocol.PDelayReq")
	require.Contains(t, out.String(), "protocol.Sync")
}

func TestDecodeFilter(t *testing.T) {
	path := writeCapture(t, testMessages()...)
	filter, err := parseMessageTypes([]string{"pdelay_req"})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, decode(path, filter, &out))
	require.Contains(t, out.String(), "protocol.PDelayReq")
	require.NotContains(t, out.String(), "protocol.Sync")
}

func TestDecodeErrors(t *testing.T) {
	var out bytes.Buffer
	require.Error(t, decode(filepath.Join(t.TempDir(), "missing.pcap"), nil, &out))

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a capture"), 0644))
	require.Error(t, decode(garbage, nil, &out))
}

func TestParseMessageTypes(t *testing.T) {
	filter, err := parseMessageTypes([]string{"SYNC", "follow_up"})
	require.NoError(t, err)
	require.Equal(t, map[ptp.MessageType]bool{ptp.MessageSync: true, ptp.MessageFollowUp: true}, filter)

	_, err = parseMessageTypes([]string{"DELAY_REQ"})
	require.Error(t, err)
}
