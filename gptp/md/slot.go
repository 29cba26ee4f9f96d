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
	"sync/atomic"
)

type held struct {
	pkt Packet
	// sequence id of pkt, noKey if not tracked
	key int32
}

const noKey = -1

// slot is a single buffer reference handed over from the asynchronous side to the tick
type slot struct {
	p atomic.Pointer[held]
}

// put stores pkt, releasing the buffer it displaced. Returns true if something was displaced.
func (s *slot) put(pkt Packet) bool {
	old := s.p.Swap(&held{pkt: pkt, key: noKey})
	if old == nil {
		return false
	}
	old.pkt.Unref()
	return true
}

// putMatching stores pkt if slot is empty. A held buffer is kept, unless pkt
// carries the wanted key and the held one doesn't. Returns false if pkt was released.
func (s *slot) putMatching(pkt Packet, key uint16, want int32) bool {
	h := &held{pkt: pkt, key: int32(key)}
	for {
		old := s.p.Load()
		if old == nil {
			if s.p.CompareAndSwap(nil, h) {
				return true
			}
			continue
		}
		if want == noKey || old.key == want || h.key != want {
			pkt.Unref()
			return false
		}
		if s.p.CompareAndSwap(old, h) {
			old.pkt.Unref()
			return true
		}
	}
}

// take transfers ownership of the stored buffer to the caller
func (s *slot) take() Packet {
	h := s.p.Swap(nil)
	if h == nil {
		return nil
	}
	return h.pkt
}

// release drops the stored buffer, if any
func (s *slot) release() {
	if pkt := s.take(); pkt != nil {
		pkt.Unref()
	}
}

func (s *slot) empty() bool {
	return s.p.Load() == nil
}

// unref releases buffer owned by a state machine field and clears the field
func unref(pkt *Packet) {
	if *pkt != nil {
		(*pkt).Unref()
		*pkt = nil
	}
}
