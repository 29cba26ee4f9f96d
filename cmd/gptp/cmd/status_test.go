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
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/facebook/gptp/gptp/daemon"
)

func TestPrintStatus(t *testing.T) {
	status := []*daemon.PortStatus{
		{
			Port:                   1,
			Iface:                  "eth0",
			Role:                   daemon.RoleSlave,
			PDelayReqState:         "WAITING_FOR_PDELAY_INTERVAL_TIMER",
			SyncRcvState:           "WAITING_FOR_SYNC",
			AsCapable:              true,
			NeighborPropDelay:      512,
			NeighborRateRatio:      1.000001,
			NeighborRateRatioValid: true,
			LastSyncFrom:           "0c42a1.fffe.000001-1",
		},
	}
	var out bytes.Buffer
	require.NoError(t, printStatus(&out, status))
	require.Contains(t, out.String(), "eth0")
	require.Contains(t, out.String(), "slave")
	require.Contains(t, out.String(), "512ns")
	require.Contains(t, out.String(), "1.000001000")
	require.Contains(t, out.String(), "0c42a1.fffe.000001-1")
}

func TestRunStatus(t *testing.T) {
	stats := daemon.NewJSONStats()
	stats.SetPortStatus(&daemon.PortStatus{Port: 2, Iface: "eth1", Role: daemon.RoleMaster, SyncSendState: "SEND_SYNC"})
	stats.UpdateCounterBy("gptp.port.2.tx.sync", 42)
	srv := httptest.NewServer(stats.Handler())
	defer srv.Close()

	var out bytes.Buffer
	require.NoError(t, runStatus(srv.URL, false, &out))
	require.Contains(t, out.String(), "eth1")
	require.Contains(t, out.String(), "master")

	out.Reset()
	require.NoError(t, runStatus(srv.URL, true, &out))
	require.Contains(t, out.String(), "gptp.port.2.tx.sync")
	require.Contains(t, out.String(), "42")

	srv.Close()
	require.Error(t, runStatus(srv.URL, false, &out))
}
