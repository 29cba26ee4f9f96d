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

package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"

	"github.com/facebook/gptp/gptp/md"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// PortStatus is a representation of a monitoring struct for a gPTP port
type PortStatus struct {
	Port                   md.PortID `json:"port"`
	Iface                  string    `json:"iface"`
	Role                   Role      `json:"role"`
	PDelayReqState         string    `json:"pdelay_req_state"`
	PDelayRespState        string    `json:"pdelay_resp_state"`
	SyncRcvState           string    `json:"sync_rcv_state"`
	SyncSendState          string    `json:"sync_send_state"`
	AsCapable              bool      `json:"as_capable"`
	IsMeasuringDelay       bool      `json:"is_measuring_delay"`
	NeighborPropDelay      int64     `json:"neighbor_prop_delay_ns"`
	NeighborRateRatio      float64   `json:"neighbor_rate_ratio"`
	NeighborRateRatioValid bool      `json:"neighbor_rate_ratio_valid"`
	LostResponses          uint8     `json:"lost_responses"`
	LastSyncFrom           string    `json:"last_sync_from,omitempty"`
}

// NewPortStatus converts port snapshot into PortStatus
func NewPortStatus(s md.PortSnapshot, iface string, role Role) *PortStatus {
	return &PortStatus{
		Port:                   s.Port,
		Iface:                  iface,
		Role:                   role,
		PDelayReqState:         s.PDelayReqState.String(),
		PDelayRespState:        s.PDelayRespState.String(),
		SyncRcvState:           s.SyncRcvState.String(),
		SyncSendState:          s.SyncSendState.String(),
		AsCapable:              s.AsCapable,
		IsMeasuringDelay:       s.IsMeasuringDelay,
		NeighborPropDelay:      s.NeighborPropDelay.Nanoseconds(),
		NeighborRateRatio:      s.NeighborRateRatio,
		NeighborRateRatioValid: s.NeighborRateRatioValid,
		LostResponses:          s.LostResponses,
	}
}

// Counters is various counters exported by gPTP daemon
type Counters map[string]int64

// portKey returns name of per-port counter
func portKey(port md.PortID, name string) string {
	return fmt.Sprintf("gptp.port.%d.%s", port, name)
}

func msgKey(port md.PortID, name string, t ptp.MessageType) string {
	return portKey(port, fmt.Sprintf("%s.%s", name, strings.ToLower(t.String())))
}

// running keeps mean and standard deviation of measurements within aggregation window
type running struct {
	s     *welford.Stats
	count int64
}

func (r *running) add(v float64) {
	if r.s == nil {
		r.s = welford.New()
	}
	r.s.Add(v)
	r.count++
}

// Stats keeps daemon counters. It implements md.Stats.
type Stats struct {
	mux       sync.Mutex
	counters  Counters
	status    map[md.PortID]*PortStatus
	propDelay map[md.PortID]*running
	rateRatio map[md.PortID]*running
}

// NewStats created new instance of Stats
func NewStats() *Stats {
	return &Stats{
		counters:  Counters{},
		status:    map[md.PortID]*PortStatus{},
		propDelay: map[md.PortID]*running{},
		rateRatio: map[md.PortID]*running{},
	}
}

// UpdateCounterBy will increment counter
func (s *Stats) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

// SetCounter will set a counter to the provided value.
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// GetCounters returns an map of counters
func (s *Stats) GetCounters() Counters {
	ret := make(Counters)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// SetPortStatus sets status of the port
func (s *Stats) SetPortStatus(status *PortStatus) {
	s.mux.Lock()
	s.status[status.Port] = status
	s.mux.Unlock()
}

// GetPortStatus returns status of all ports in port order
func (s *Stats) GetPortStatus() []*PortStatus {
	s.mux.Lock()
	ret := make([]*PortStatus, 0, len(s.status))
	for _, st := range s.status {
		c := *st
		ret = append(ret, &c)
	}
	s.mux.Unlock()
	sort.Slice(ret, func(i, j int) bool { return ret[i].Port < ret[j].Port })
	return ret
}

// IncTX counts transmitted message
func (s *Stats) IncTX(port md.PortID, t ptp.MessageType) {
	s.UpdateCounterBy(msgKey(port, "tx", t), 1)
}

// IncTXError counts message which failed to be sent
func (s *Stats) IncTXError(port md.PortID, t ptp.MessageType) {
	s.UpdateCounterBy(msgKey(port, "tx_error", t), 1)
}

// IncTXTimestampMissing counts event message which never got egress timestamp
func (s *Stats) IncTXTimestampMissing(port md.PortID, t ptp.MessageType) {
	s.UpdateCounterBy(msgKey(port, "tx_ts_missing", t), 1)
}

// IncRX counts received message
func (s *Stats) IncRX(port md.PortID, t ptp.MessageType) {
	s.UpdateCounterBy(msgKey(port, "rx", t), 1)
}

// IncRXDiscard counts received message which was dropped
func (s *Stats) IncRXDiscard(port md.PortID, t ptp.MessageType) {
	s.UpdateCounterBy(msgKey(port, "rx_discard", t), 1)
}

// IncNeighborPropDelayExceeded counts measurements above the threshold
func (s *Stats) IncNeighborPropDelayExceeded(port md.PortID) {
	s.UpdateCounterBy(portKey(port, "neighbor_prop_delay_exceeded"), 1)
}

// IncPDelayLostResponsesExceeded counts times port lost asCapable due to missing responses
func (s *Stats) IncPDelayLostResponsesExceeded(port md.PortID) {
	s.UpdateCounterBy(portKey(port, "pdelay_lost_responses_exceeded"), 1)
}

// IncPDelayMultipleResponses counts intervals with more than one response
func (s *Stats) IncPDelayMultipleResponses(port md.PortID) {
	s.UpdateCounterBy(portKey(port, "pdelay_multiple_responses"), 1)
}

// IncPDelayCooldown counts times Pdelay requests were paused
func (s *Stats) IncPDelayCooldown(port md.PortID) {
	s.UpdateCounterBy(portKey(port, "pdelay_cooldowns"), 1)
}

// IncSyncFollowUpTimeout counts Sync messages never followed up
func (s *Stats) IncSyncFollowUpTimeout(port md.PortID) {
	s.UpdateCounterBy(portKey(port, "sync_follow_up_timeouts"), 1)
}

// SetAsCapable sets asCapable gauge
func (s *Stats) SetAsCapable(port md.PortID, asCapable bool) {
	var v int64
	if asCapable {
		v = 1
	}
	s.SetCounter(portKey(port, "as_capable"), v)
}

// SetNeighborPropDelay sets propagation delay gauge
func (s *Stats) SetNeighborPropDelay(port md.PortID, d time.Duration) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.counters[portKey(port, "neighbor_prop_delay_ns")] = d.Nanoseconds()
	r, found := s.propDelay[port]
	if !found {
		r = &running{}
		s.propDelay[port] = r
	}
	r.add(float64(d.Nanoseconds()))
}

// SetNeighborRateRatio sets rate ratio gauge, exported as offset from 1.0 in parts per billion
func (s *Stats) SetNeighborRateRatio(port md.PortID, rr float64) {
	ppb := (rr - 1.0) * 1e9
	s.mux.Lock()
	defer s.mux.Unlock()
	s.counters[portKey(port, "neighbor_rate_ratio_ppb")] = int64(ppb)
	r, found := s.rateRatio[port]
	if !found {
		r = &running{}
		s.rateRatio[port] = r
	}
	r.add(ppb)
}

// Aggregate publishes mean and stddev of measurements since previous call and starts a new window
func (s *Stats) Aggregate() {
	s.mux.Lock()
	defer s.mux.Unlock()
	publish := func(name string, m map[md.PortID]*running) {
		for port, r := range m {
			if r.count == 0 {
				continue
			}
			s.counters[portKey(port, name+".mean")] = int64(r.s.Mean())
			s.counters[portKey(port, name+".stddev")] = int64(r.s.Stddev())
			s.counters[portKey(port, name+".samples")] = r.count
			m[port] = &running{}
		}
	}
	publish("neighbor_prop_delay_ns", s.propDelay)
	publish("neighbor_rate_ratio_ppb", s.rateRatio)
}

// Reset all the values of counters
func (s *Stats) Reset() {
	s.mux.Lock()
	for k := range s.counters {
		s.counters[k] = 0
	}
	s.mux.Unlock()
}

// JSONStats is what we want to report as stats via http
type JSONStats struct {
	*Stats
	sys SysStats
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	return &JSONStats{Stats: NewStats()}
}

// CollectSysStats samples process and runtime stats into counters
func (s *JSONStats) CollectSysStats(now time.Time) error {
	sys, err := s.sys.Collect(now)
	if err != nil {
		return err
	}
	for k, v := range sys {
		s.SetCounter(k, int64(v))
	}
	return nil
}

// Start runs http server and collects aggregated stats every interval
func (s *JSONStats) Start(monitoringport int, interval time.Duration) error {
	go func() {
		for now := range time.Tick(interval) {
			s.Aggregate()
			if err := s.CollectSysStats(now); err != nil {
				log.Warningf("failed to get system metrics %s", err)
			}
		}
	}()

	addr := fmt.Sprintf(":%d", monitoringport)
	log.Infof("Starting http json server on %s", addr)
	return http.ListenAndServe(addr, s.Handler())
}

// Handler returns http handler serving port status at / and counters at /counters
func (s *JSONStats) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRootRequest)
	mux.HandleFunc("/counters", s.handleCountersRequest)
	return mux
}

func (s *JSONStats) handleRootRequest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetPortStatus())
}

func (s *JSONStats) handleCountersRequest(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetCounters())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

func fetch(url string, v interface{}) error {
	c := http.Client{
		Timeout: time.Second * 2,
	}
	resp, err := c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", url, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// FetchPortStatus returns port status fetched from the url
func FetchPortStatus(url string) ([]*PortStatus, error) {
	var s []*PortStatus
	err := fetch(url, &s)
	return s, err
}

// FetchCounters returns counters map fetched from the url
func FetchCounters(url string) (Counters, error) {
	c := Counters{}
	err := fetch(fmt.Sprintf("%s/counters", url), &c)
	return c, err
}
