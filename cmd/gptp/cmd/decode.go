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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/gptp/gptp/transport"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

var decodeTypesFlag []string

func init() {
	RootCmd.AddCommand(decodeCmd)
	decodeCmd.Flags().StringSliceVarP(&decodeTypesFlag, "type", "t", nil, "message types to print, all if empty")
}

// packetHandle abstracts packet handles provided by pcapgo.Reader and pcapgo.NgReader
type packetHandle interface {
	gopacket.PacketDataSource
	LinkType() layers.LinkType
}

func parseMessageTypes(names []string) (map[ptp.MessageType]bool, error) {
	filter := map[ptp.MessageType]bool{}
	for _, name := range names {
		found := false
		for t, s := range ptp.MessageTypeToString {
			if s == strings.ToUpper(name) {
				filter[t] = true
				found = true
			}
		}
		if !found {
			return nil, fmt.Errorf("unsupported msg type %q", name)
		}
	}
	return filter, nil
}

func openPcap(f io.ReadSeeker) (packetHandle, error) {
	// try NgReader, if it fails fall back to Reader
	handle, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err == nil {
		return handle, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return pcapgo.NewReader(f)
}

// decode dumps every gPTP message of the capture to w
func decode(input string, filter map[ptp.MessageType]bool, w io.Writer) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()
	handle, err := openPcap(f)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", input, err)
	}

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	for packet := range packetSource.Packets() {
		l := packet.Layer(transport.LayerTypeGPTP)
		if l == nil {
			continue
		}
		msg := l.(*transport.LayerGPTP).Packet
		if len(filter) > 0 && !filter[msg.MessageType()] {
			continue
		}
		if ethLayer := packet.Layer(layers.LayerTypeEthernet); ethLayer != nil {
			eth := ethLayer.(*layers.Ethernet)
			spew.Fprintf(w, "%s -> %s\n", eth.SrcMAC, eth.DstMAC)
		}
		spew.Fdump(w, msg)
		fmt.Fprintln(w)
	}
	return nil
}

var decodeCmd = &cobra.Command{
	Use:   "decode <file.pcap>",
	Short: "Print gPTP messages from pcap or pcapng capture",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		filter, err := parseMessageTypes(decodeTypesFlag)
		if err != nil {
			log.Fatal(err)
		}
		if err := decode(args[0], filter, os.Stdout); err != nil {
			log.Fatal(err)
		}
	},
}
