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

/*
Package transport carries gPTP messages between the media-dependent layer
and the wire: reference counted buffers, message builders, Ethernet framing
and timestamping raw sockets.
*/
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	ptp "github.com/facebook/gptp/ptp/protocol"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &Buffer{}
	},
}

// Buffer is a reference counted gPTP message with its timestamp.
// It implements md.Packet.
type Buffer struct {
	refs atomic.Int32

	mu    sync.Mutex
	ts    time.Time
	iface string
	msg   ptp.Packet
}

// NewBuffer returns Buffer holding msg with a single reference
func NewBuffer(iface string, msg ptp.Packet) *Buffer {
	b := bufferPool.Get().(*Buffer)
	b.iface = iface
	b.msg = msg
	b.ts = time.Time{}
	b.refs.Store(1)
	return b
}

// Ref adds a reference
func (b *Buffer) Ref() {
	b.refs.Add(1)
}

// Unref drops a reference, buffer is recycled once nobody references it
func (b *Buffer) Unref() {
	n := b.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic(fmt.Sprintf("transport: buffer released more times than referenced (%d)", n))
	}
	b.mu.Lock()
	b.msg = nil
	b.ts = time.Time{}
	b.mu.Unlock()
	bufferPool.Put(b)
}

// Refs returns current number of references
func (b *Buffer) Refs() int {
	return int(b.refs.Load())
}

// SetTimestamp sets ingress or egress timestamp
func (b *Buffer) SetTimestamp(ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ts = ts
}

// Timestamp returns ingress or egress timestamp
func (b *Buffer) Timestamp() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ts
}

// Iface returns name of the interface packet was received on or will be sent from
func (b *Buffer) Iface() string {
	return b.iface
}

// Message returns gPTP message carried by the buffer
func (b *Buffer) Message() ptp.Packet {
	return b.msg
}
