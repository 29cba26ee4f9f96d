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
	"sync"

	"github.com/facebook/gptp/gptp/md"
)

// Link transmits packets of a single port
type Link interface {
	Send(pkt md.Packet) error
}

// Sender dispatches packets to links of their ports. It implements md.Sender.
type Sender struct {
	sync.RWMutex
	links map[md.PortID]Link
}

// NewSender returns empty Sender
func NewSender() *Sender {
	return &Sender{links: map[md.PortID]Link{}}
}

// AddLink registers link of port
func (s *Sender) AddLink(port md.PortID, l Link) {
	s.Lock()
	defer s.Unlock()
	s.links[port] = l
}

// Send passes packet to the link of port, consuming one reference
func (s *Sender) Send(port md.PortID, pkt md.Packet) error {
	s.RLock()
	l, found := s.links[port]
	s.RUnlock()
	if !found {
		pkt.Unref()
		return fmt.Errorf("no link for port %d", port)
	}
	return l.Send(pkt)
}
