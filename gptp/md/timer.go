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
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a single-shot timer owned by one state machine.
// Expiry is a level consumed by the owner: Start clears it, Stop never does.
type Timer interface {
	Start(d time.Duration)
	Stop()
	Expired() bool
}

// TimerFactory creates timers for new ports
type TimerFactory func() Timer

// NewTimer returns Timer backed by time.AfterFunc
func NewTimer() Timer {
	return &afterFuncTimer{}
}

type afterFuncTimer struct {
	sync.Mutex
	t *time.Timer
	// generation of the last Start or Stop, callbacks of older generations are ignored
	gen     uint64
	expired atomic.Bool
}

// Start (re)arms the timer, clearing pending expiry
func (t *afterFuncTimer) Start(d time.Duration) {
	t.Lock()
	defer t.Unlock()
	if t.t != nil {
		t.t.Stop()
	}
	t.gen++
	gen := t.gen
	t.expired.Store(false)
	t.t = time.AfterFunc(d, func() {
		t.Lock()
		defer t.Unlock()
		if t.gen == gen {
			t.expired.Store(true)
		}
	})
}

// Stop cancels the timer. Already expired timer stays expired.
func (t *afterFuncTimer) Stop() {
	t.Lock()
	defer t.Unlock()
	t.gen++
	if t.t != nil {
		t.t.Stop()
		t.t = nil
	}
}

// Expired reports if timer fired since last Start
func (t *afterFuncTimer) Expired() bool {
	return t.expired.Load()
}
