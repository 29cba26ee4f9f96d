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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/gptp/gptp/md"
	"github.com/facebook/gptp/gptp/tsmath"
	ptp "github.com/facebook/gptp/ptp/protocol"
)

// SyncTrigger hands time information to the Sync sender of a port
type SyncTrigger interface {
	TriggerMDSync(id md.PortID, info md.SyncInfo)
}

// Relay is the layer above media-dependent state machines.
// Time received on slave ports is passed to every master port,
// grandmaster originates it periodically. It implements md.SyncSink.
type Relay struct {
	sync.Mutex
	clock       ptp.ClockIdentity
	grandmaster bool
	gmInterval  time.Duration
	gmLogSync   int8
	nextGMSync  time.Time

	trigger SyncTrigger
	roles   map[md.PortID]Role
	last    map[md.PortID]md.SyncInfo
}

// NewRelay returns Relay. When grandmaster is set, master ports get locally originated time every 2^logSyncInterval seconds.
func NewRelay(clock ptp.ClockIdentity, grandmaster bool, logSyncInterval int8) *Relay {
	return &Relay{
		clock:       clock,
		grandmaster: grandmaster,
		gmInterval:  tsmath.LogIntervalToDuration(1, logSyncInterval),
		gmLogSync:   logSyncInterval,
		roles:       map[md.PortID]Role{},
		last:        map[md.PortID]md.SyncInfo{},
	}
}

// Attach sets where relayed time goes to
func (r *Relay) Attach(t SyncTrigger) {
	r.Lock()
	defer r.Unlock()
	r.trigger = t
}

// SetRole sets role of the port
func (r *Relay) SetRole(id md.PortID, role Role) {
	r.Lock()
	defer r.Unlock()
	r.roles[id] = role
}

// masters returns master ports in port order
func (r *Relay) masters() []md.PortID {
	ids := []md.PortID{}
	for id := md.PortID(1); int(id) <= md.MaxPorts; id++ {
		if r.roles[id] == RoleMaster {
			ids = append(ids, id)
		}
	}
	return ids
}

// RcvdMDSync is called by the Sync receiver of a port
func (r *Relay) RcvdMDSync(id md.PortID, info *md.SyncInfo) {
	r.Lock()
	defer r.Unlock()
	r.last[id] = *info
	if r.grandmaster || r.roles[id] != RoleSlave || r.trigger == nil {
		log.Tracef("[port %d] not relaying sync from %s", id, info.SourcePortIdentity)
		return
	}
	for _, m := range r.masters() {
		r.trigger.TriggerMDSync(m, *info)
	}
}

// LastSync returns the latest time information received on the port
func (r *Relay) LastSync(id md.PortID) (md.SyncInfo, bool) {
	r.Lock()
	defer r.Unlock()
	info, found := r.last[id]
	return info, found
}

// Tick originates time on master ports once per sync interval in grandmaster mode
func (r *Relay) Tick(now time.Time) {
	r.Lock()
	defer r.Unlock()
	if !r.grandmaster || r.trigger == nil || now.Before(r.nextGMSync) {
		return
	}
	r.nextGMSync = now.Add(r.gmInterval)
	info := md.SyncInfo{
		SourcePortIdentity: ptp.PortIdentity{ClockIdentity: r.clock},
		LogMessageInterval: ptp.LogInterval(r.gmLogSync),
		RateRatio:          1.0,
	}
	for _, m := range r.masters() {
		r.trigger.TriggerMDSync(m, info)
	}
}
