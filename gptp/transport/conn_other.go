//go:build !linux

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
	"context"
	"fmt"
	"runtime"

	"github.com/facebook/gptp/gptp/md"
)

// TXCallback is called once egress timestamp of event message is known
type TXCallback func(b *Buffer)

// Conn is not available on this platform
type Conn struct{}

var errUnsupported = fmt.Errorf("gPTP raw sockets are not supported on %s", runtime.GOOS)

// Listen is not supported
func Listen(_ string, _ Timestamping, _ TXCallback) (*Conn, error) {
	return nil, errUnsupported
}

// Iface returns empty name
func (c *Conn) Iface() string { return "" }

// Send drops the packet
func (c *Conn) Send(pkt md.Packet) error {
	pkt.Unref()
	return errUnsupported
}

// RunTX is not supported
func (c *Conn) RunTX(_ context.Context) error { return errUnsupported }

// Receive is not supported
func (c *Conn) Receive(_ context.Context) (*Buffer, error) { return nil, errUnsupported }

// Close does nothing
func (c *Conn) Close() error { return nil }
