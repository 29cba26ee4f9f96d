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
	"sort"

	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/gptp/gptp/daemon"
)

var (
	statusAddressFlag  string
	statusCountersFlag bool
)

func init() {
	RootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusAddressFlag, "address", "a", fmt.Sprintf("http://localhost:%d", daemon.DefaultConfig().MonitoringPort), "monitoring endpoint of gptp daemon")
	statusCmd.Flags().BoolVar(&statusCountersFlag, "counters", false, "print counters instead of port status")
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func printStatus(w io.Writer, status []*daemon.PortStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header("Port", "Iface", "Role", "asCapable", "Pdelay Req", "Pdelay Resp", "Sync Rcv", "Sync Send", "Prop Delay", "Rate Ratio", "Sync From")
	for _, s := range status {
		rr := "-"
		if s.NeighborRateRatioValid {
			rr = fmt.Sprintf("%.9f", s.NeighborRateRatio)
		}
		row := []string{
			fmt.Sprintf("%d", s.Port),
			s.Iface,
			string(s.Role),
			yesNo(s.AsCapable),
			s.PDelayReqState,
			s.PDelayRespState,
			s.SyncRcvState,
			s.SyncSendState,
			fmt.Sprintf("%dns", s.NeighborPropDelay),
			rr,
			s.LastSyncFrom,
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

func printCounters(w io.Writer, counters daemon.Counters) error {
	keys := make([]string, 0, len(counters))
	for k := range counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	table := tablewriter.NewWriter(w)
	table.Header("Counter", "Value")
	for _, k := range keys {
		if err := table.Append([]string{k, fmt.Sprintf("%d", counters[k])}); err != nil {
			return err
		}
	}
	return table.Render()
}

func runStatus(address string, counters bool, w io.Writer) error {
	if counters {
		c, err := daemon.FetchCounters(address)
		if err != nil {
			return err
		}
		return printCounters(w, c)
	}
	s, err := daemon.FetchPortStatus(address)
	if err != nil {
		return err
	}
	return printStatus(w, s)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print state of gPTP ports of the running daemon",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()

		if err := runStatus(statusAddressFlag, statusCountersFlag, os.Stdout); err != nil {
			log.Fatal(err)
		}
	},
}
